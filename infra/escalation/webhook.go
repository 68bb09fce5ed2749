// Package escalation posts exhausted dispatches to an operator webhook.
package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	coreescalation "github.com/fieldmatch/dispatchd/core/escalation"
)

// Config defines the operator webhook endpoint.
type Config struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 5
	}
}

// WebhookEscalator POSTs escalations as JSON for operator follow-up.
type WebhookEscalator struct {
	URL    string
	Client *http.Client
}

// NewWebhookEscalator creates an escalator with a bounded HTTP client.
func NewWebhookEscalator(cfg Config) *WebhookEscalator {
	cfg.SetDefaults()
	return &WebhookEscalator{
		URL:    cfg.URL,
		Client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

// Escalate implements escalation.Escalator.
func (w *WebhookEscalator) Escalate(ctx context.Context, esc coreescalation.Escalation) error {
	payload, err := json.Marshal(esc)
	if err != nil {
		return fmt.Errorf("encode escalation: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("escalation webhook returned status %d", resp.StatusCode)
	}
	return nil
}
