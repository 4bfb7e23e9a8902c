package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/config"
)

// NotifyService sends customer emails through the notification
// collaborator. Fire-and-confirm: no delivery receipt is tracked, and the
// channel is at-least-once (a retried pipeline run may re-send).
type NotifyService struct {
	config     *config.NotifyConfig
	httpClient *http.Client
}

type mailAddress struct {
	Email string `json:"email"`
}

type mailPersonalization struct {
	To []mailAddress `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailRequest struct {
	Personalizations []mailPersonalization `json:"personalizations"`
	From             mailAddress           `json:"from"`
	Subject          string                `json:"subject"`
	Content          []mailContent         `json:"content"`
}

func NewNotifyService(cfg *config.NotifyConfig) *NotifyService {
	return &NotifyService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Send delivers a plain-text email to a single recipient.
func (s *NotifyService) Send(ctx context.Context, to, subject, body string) error {
	payload := mailRequest{
		Personalizations: []mailPersonalization{{To: []mailAddress{{Email: to}}}},
		From:             mailAddress{Email: s.config.FromAddress},
		Subject:          subject,
		Content:          []mailContent{{Type: "text/plain", Value: body}},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL+"/v3/mail/send", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notification send failed with status %d: %s", resp.StatusCode, string(msg))
	}

	return nil
}
