package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/config"
)

// IAMService exchanges the service API key for a short-lived bearer token.
// The orchestrator fetches one token per pipeline invocation and passes it
// explicitly through stage calls; it is never cached process-wide, so a
// concurrent invocation can never pick up another run's expired token.
type IAMService struct {
	config     *config.IAMConfig
	httpClient *http.Client
}

type iamTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func NewIAMService(cfg *config.IAMConfig) *IAMService {
	return &IAMService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Token fetches a fresh bearer token.
func (s *IAMService) Token(ctx context.Context) (string, error) {
	form := url.Values{
		"apikey":        {s.config.APIKey},
		"response_type": {"cloud_iam"},
		"grant_type":    {"urn:ibm:params:oauth:grant-type:apikey"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result iamTokenResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access_token")
	}

	return result.AccessToken, nil
}
