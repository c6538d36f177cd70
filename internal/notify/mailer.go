package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Mailer sends a transactional email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one outbound email.
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// HTTPMailer talks to a Resend-compatible transactional email API:
// POST <base>/emails with a bearer key and a JSON body.
type HTTPMailer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPMailer creates a mailer against the given API base URL.
func NewHTTPMailer(baseURL, apiKey string, timeout time.Duration) *HTTPMailer {
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPMailer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// sendResponse is the provider's reply; only the id matters.
type sendResponse struct {
	ID string `json:"id"`
}

// sendError is the provider's error shape.
type sendError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Send posts the message to the provider.
func (m *HTTPMailer) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr sendError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("email provider: %s (status %d)", apiErr.Message, resp.StatusCode)
		}
		return fmt.Errorf("email provider returned status %d", resp.StatusCode)
	}

	var ok sendResponse
	if err := json.Unmarshal(data, &ok); err != nil {
		return fmt.Errorf("parse email response: %w", err)
	}
	return nil
}
