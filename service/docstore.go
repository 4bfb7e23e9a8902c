package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sentinel outcomes of document store operations. ErrConflict is the
// idempotent-conflict case: the same logical record was already written,
// which callers treat as success.
var (
	ErrConflict = errors.New("document already exists")
	ErrNotFound = errors.New("document not found")
)

// DocStoreService talks to the CouchDB-style document store holding the
// audited, parsed, and rejected record databases.
type DocStoreService struct {
	baseURL    string
	httpClient *http.Client
}

func NewDocStoreService(baseURL string) *DocStoreService {
	return &DocStoreService{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Insert writes a document keyed by id. Returns ErrConflict when the id is
// already taken; any other non-2xx status is a transport-level failure.
func (s *DocStoreService) Insert(ctx context.Context, token, db, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", id, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/%s/%s", s.baseURL, db, id), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return ErrConflict
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("insert into %s/%s failed with status %d: %s", db, id, resp.StatusCode, string(msg))
	}
}

// Get fetches a document by id into out. Returns ErrNotFound on 404.
func (s *DocStoreService) Get(ctx context.Context, token, db, id string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s/%s", s.baseURL, db, id), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to parse document %s/%s: %w", db, id, err)
		}
		return nil
	default:
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("get %s/%s failed with status %d: %s", db, id, resp.StatusCode, string(msg))
	}
}
