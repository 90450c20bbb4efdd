package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sakanect/pkg/logger"
)

// EmailSender delivers transactional mail. Delivery is best effort: callers
// log failures and carry on.
type EmailSender interface {
	Send(ctx context.Context, to, subject, text string) error
}

type EmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// HTTPEmailService posts to the notification gateway's
// /api/notifications/email endpoint.
type HTTPEmailService struct {
	baseURL string
	client  *http.Client
}

func NewHTTPEmailService(baseURL string, timeout time.Duration) *HTTPEmailService {
	return &HTTPEmailService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPEmailService) Send(ctx context.Context, to, subject, text string) error {
	if to == "" {
		return nil
	}

	jsonData, err := json.Marshal(EmailRequest{To: to, Subject: subject, Text: text})
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/notifications/email", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	logger.Debug("Email queued for %s: %s", to, subject)
	return nil
}

// NoopEmailService is used when no EMAIL_API_URL is configured.
type NoopEmailService struct{}

func (NoopEmailService) Send(ctx context.Context, to, subject, text string) error {
	logger.Debug("Email disabled, skipping %q to %s", subject, to)
	return nil
}
