package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/config"
	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/model"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStoreService wraps the object storage collaborator. Check images
// move through three buckets: incoming (drop zone), audited (originals),
// archived (derivatives).
type ObjectStoreService struct {
	client *minio.Client
	config *config.MinioConfig
}

func NewObjectStoreService(cfg *config.MinioConfig) (*ObjectStoreService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ObjectStoreService{
		client: client,
		config: cfg,
	}, nil
}

// EnsureBuckets creates any of the given buckets that don't exist yet
func (s *ObjectStoreService) EnsureBuckets(ctx context.Context, buckets ...string) error {
	for _, bucket := range buckets {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
		}

		if !exists {
			err = s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
			if err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
	}

	return nil
}

// List returns a fresh listing of the bucket. An empty bucket is not an
// error; it yields zero candidates.
func (s *ObjectStoreService) List(ctx context.Context, bucket string) ([]model.ObjectInfo, error) {
	var objects []model.ObjectInfo
	for object := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", bucket, object.Err)
		}
		objects = append(objects, model.ObjectInfo{
			Key:          object.Key,
			LastModified: object.LastModified,
		})
	}

	return objects, nil
}

// Get downloads an object and returns its bytes and declared content type.
func (s *ObjectStoreService) Get(ctx context.Context, bucket, key string) ([]byte, string, error) {
	object, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get object %s/%s: %w", bucket, key, err)
	}
	defer object.Close()

	stat, err := object.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("failed to stat object %s/%s: %w", bucket, key, err)
	}

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read object %s/%s: %w", bucket, key, err)
	}

	return data, stat.ContentType, nil
}

// Put stores an object. Re-writing the same key is a no-op from the
// pipeline's point of view, which keeps stage replay safe.
func (s *ObjectStoreService) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to store object %s/%s: %w", bucket, key, err)
	}

	return nil
}

// PresignedURL generates a presigned URL for the object with expiration
func (s *ObjectStoreService) PresignedURL(ctx context.Context, bucket, key string) (string, error) {
	expiry := time.Duration(s.config.PresignExpireMinute) * time.Minute
	url, err := s.client.PresignedGetObject(ctx, bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

// Delete removes an object. A key that is already gone counts as success:
// a retried pipeline run may race its own earlier attempt.
func (s *ObjectStoreService) Delete(ctx context.Context, bucket, key string) error {
	err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("failed to delete object %s/%s: %w", bucket, key, err)
	}

	return nil
}
