// Package messaging delivers outbound WhatsApp messages. Direct sends go
// through a provider HTTP client; fan-out traffic goes through a durable
// RabbitMQ queue drained by a consumer that uses the same client.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client sends a text message to a single phone number.
type Client interface {
	SendText(ctx context.Context, toPhone, body string) error
}

// KapsoClient implements Client against the Kapso WhatsApp API.
type KapsoClient struct {
	apiKey        string
	baseURL       string
	phoneNumberID string
	httpClient    *http.Client
}

// KapsoConfig holds configuration for the Kapso client
type KapsoConfig struct {
	APIKey        string
	BaseURL       string
	PhoneNumberID string
	Timeout       time.Duration // default: 15s
}

// NewKapsoClient creates a new Kapso WhatsApp client
func NewKapsoClient(cfg KapsoConfig) (*KapsoClient, error) {
	if cfg.BaseURL == "" || cfg.PhoneNumberID == "" {
		return nil, fmt.Errorf("kapso base URL and phone number id must be configured")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &KapsoClient{
		apiKey:        cfg.APIKey,
		baseURL:       cfg.BaseURL,
		phoneNumberID: cfg.PhoneNumberID,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type textMessage struct {
	To   string      `json:"to"`
	Type string      `json:"type"`
	Text messageBody `json:"text"`
}

type messageBody struct {
	Body string `json:"body"`
}

// SendText posts a text message to the provider.
func (c *KapsoClient) SendText(ctx context.Context, toPhone, body string) error {
	payload, err := json.Marshal(&textMessage{
		To:   toPhone,
		Type: "text",
		Text: messageBody{Body: body},
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("provider error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}
