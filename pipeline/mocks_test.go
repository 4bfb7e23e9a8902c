package pipeline

import (
	"context"

	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/model"
	"github.com/stretchr/testify/mock"
)

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) List(ctx context.Context, bucket string) ([]model.ObjectInfo, error) {
	args := m.Called(ctx, bucket)
	var objects []model.ObjectInfo
	if v := args.Get(0); v != nil {
		objects = v.([]model.ObjectInfo)
	}
	return objects, args.Error(1)
}

func (m *MockObjectStore) Get(ctx context.Context, bucket, key string) ([]byte, string, error) {
	args := m.Called(ctx, bucket, key)
	var data []byte
	if v := args.Get(0); v != nil {
		data = v.([]byte)
	}
	return data, args.String(1), args.Error(2)
}

func (m *MockObjectStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	args := m.Called(ctx, bucket, key, data, contentType)
	return args.Error(0)
}

func (m *MockObjectStore) PresignedURL(ctx context.Context, bucket, key string) (string, error) {
	args := m.Called(ctx, bucket, key)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) Delete(ctx context.Context, bucket, key string) error {
	args := m.Called(ctx, bucket, key)
	return args.Error(0)
}

type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Insert(ctx context.Context, token, db, id string, doc any) error {
	args := m.Called(ctx, token, db, id, doc)
	return args.Error(0)
}

func (m *MockDocumentStore) Get(ctx context.Context, token, db, id string, out any) error {
	args := m.Called(ctx, token, db, id, out)
	return args.Error(0)
}

type MockOCRClient struct {
	mock.Mock
}

func (m *MockOCRClient) Scan(ctx context.Context, token, imageRef, recordID string) (string, error) {
	args := m.Called(ctx, token, imageRef, recordID)
	return args.String(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) RecordDeposit(ctx context.Context, rec *model.CheckRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockLedger) Contains(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockTokenSource struct {
	mock.Mock
}

func (m *MockTokenSource) Token(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
