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

	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/config"
)

// ErrContractViolation marks a collaborator response that breaks its
// contract: not a transient fault, so never retried within an invocation.
var ErrContractViolation = errors.New("collaborator contract violation")

// OCRService invokes the external OCR collaborator that reads the MICR
// line off an audited check image. One synchronous attempt per call;
// retries are the orchestrator's job.
type OCRService struct {
	config     *config.OCRConfig
	httpClient *http.Client
}

// ocrScanRequest is the wire request for a scan.
type ocrScanRequest struct {
	ImageRef string `json:"imageRef"`
	RecordID string `json:"recordId"`
}

// ocrScanResponse is the wire response; the MICR plaintext arrives
// base64-encoded.
type ocrScanResponse struct {
	PlaintextBase64 *string `json:"plaintextBase64"`
	ErrorMsg        string  `json:"err_msg,omitempty"`
}

func NewOCRService(cfg *config.OCRConfig) *OCRService {
	return &OCRService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Scan submits the audited image reference and returns the base64-encoded
// MICR plaintext. 5xx and transport errors are plain (retryable) errors;
// 4xx and undecodable bodies wrap ErrContractViolation.
func (s *OCRService) Scan(ctx context.Context, token, imageRef, recordID string) (string, error) {
	body, err := json.Marshal(ocrScanRequest{ImageRef: imageRef, RecordID: recordID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL+"/v1/scan", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("OCR collaborator returned status %d: %s", resp.StatusCode, string(raw))
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: OCR scan rejected with status %d: %s", ErrContractViolation, resp.StatusCode, string(raw))
	}

	var result ocrScanResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("%w: undecodable OCR response: %s", ErrContractViolation, string(raw))
	}
	if result.PlaintextBase64 == nil {
		return "", fmt.Errorf("%w: OCR response missing plaintextBase64 field", ErrContractViolation)
	}

	return *result.PlaintextBase64, nil
}
