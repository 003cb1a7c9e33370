// Package whatsapp wraps the WhatsApp Business Cloud API send endpoints.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://graph.facebook.com/v19.0"

// Config controls how the WhatsApp client behaves.
type Config struct {
	BaseURL       string
	APIToken      string
	PhoneNumberID string
	Timeout       time.Duration
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Client posts outbound messages and read receipts to the provider. A client
// without credentials is valid: every send degrades to a logged no-op that
// reports failure, so missing configuration never crashes the pipeline.
type Client struct {
	baseURL       string
	apiToken      string
	phoneNumberID string
	httpClient    *http.Client
	logger        *slog.Logger
}

// New creates a configured Client with sane defaults.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.APIToken) == "" || strings.TrimSpace(cfg.PhoneNumberID) == "" {
		logger.Warn("whatsapp: API token or phone number id not configured, outbound messaging disabled")
	}
	return &Client{
		baseURL:       baseURL,
		apiToken:      strings.TrimSpace(cfg.APIToken),
		phoneNumberID: strings.TrimSpace(cfg.PhoneNumberID),
		httpClient:    httpClient,
		logger:        logger,
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.apiToken != "" && c.phoneNumberID != ""
}

// SendText delivers a text message to the given WhatsApp id. Success is solely
// an HTTP 2xx from the provider; transport errors, timeouts, and error statuses
// all return false and are logged, never propagated.
func (c *Client) SendText(ctx context.Context, toID, body string) bool {
	if !c.Configured() {
		c.logger.Warn("whatsapp: not configured, cannot send message", "to", toID)
		return false
	}
	payload := struct {
		MessagingProduct string `json:"messaging_product"`
		To               string `json:"to"`
		Type             string `json:"type"`
		Text             struct {
			Body string `json:"body"`
		} `json:"text"`
	}{MessagingProduct: "whatsapp", To: toID, Type: "text"}
	payload.Text.Body = body

	if ok := c.post(ctx, payload); !ok {
		c.logger.Error("whatsapp: failed to send message", "to", toID)
		return false
	}
	c.logger.Info("whatsapp: message sent", "to", toID, "length", len(body))
	return true
}

// MarkAsRead flags the given provider message id as read. Failures are logged
// and reported as false; they never affect the caller's own outcome.
func (c *Client) MarkAsRead(ctx context.Context, messageID string) bool {
	if !c.Configured() {
		c.logger.Warn("whatsapp: not configured, cannot mark message as read")
		return false
	}
	payload := struct {
		MessagingProduct string `json:"messaging_product"`
		Status           string `json:"status"`
		MessageID        string `json:"message_id"`
	}{MessagingProduct: "whatsapp", Status: "read", MessageID: messageID}

	if ok := c.post(ctx, payload); !ok {
		c.logger.Warn("whatsapp: failed to mark message as read", "message_id", messageID)
		return false
	}
	return true
}

func (c *Client) post(ctx context.Context, payload any) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("whatsapp: marshal payload", "error", err)
		return false
	}
	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("whatsapp: build request", "error", err)
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("whatsapp: http error", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true
	}
	data, _ := io.ReadAll(resp.Body)
	c.logger.Error("whatsapp: provider rejected request", "status", resp.StatusCode, "body", string(data))
	return false
}
