package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Payload is the webhook message body
type Payload struct {
	Content string `json:"content"`
}

// Response is what the webhook endpoint answered
type Response struct {
	StatusCode int
	Status     string
	Body       string
}

// OK reports a 2xx status
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// DiscordSender posts messages to Discord-compatible webhooks.
type DiscordSender struct {
	client *http.Client
}

// NewDiscordSender creates a new webhook sender
func NewDiscordSender(timeout time.Duration) *DiscordSender {
	return &DiscordSender{client: &http.Client{Timeout: timeout}}
}

// Send posts payload to url. Any HTTP answer, including error statuses, is
// returned as a Response; only transport failures produce an error.
func (s *DiscordSender) Send(ctx context.Context, url string, payload Payload) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to post webhook: %w", err)
	}
	defer resp.Body.Close()

	// Error bodies are short JSON documents; cap what we keep.
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &Response{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(data)}, nil
}
