package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SlackAdapter posts change summaries to a Slack incoming webhook.
type SlackAdapter struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// SlackConfig configures the Slack adapter.
type SlackConfig struct {
	// WebhookURL is the Slack incoming webhook URL
	WebhookURL string

	// Channel overrides the default channel (optional)
	Channel string

	// HTTPClient overrides the default client (optional)
	HTTPClient *http.Client
}

// NewSlackAdapter creates a Slack adapter.
func NewSlackAdapter(cfg SlackConfig) (*SlackAdapter, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SlackAdapter{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		client:     client,
	}, nil
}

// Name returns the adapter name.
func (s *SlackAdapter) Name() string {
	return "slack"
}

// Send posts the event.
func (s *SlackAdapter) Send(ctx context.Context, event *Event) error {
	var emoji, color string
	switch event.Op {
	case OpCreated:
		emoji, color = ":sparkles:", "#2E7D32"
	case OpUpdated:
		emoji, color = ":pencil2:", "#1565C0"
	case OpDeleted:
		emoji, color = ":wastebasket:", "#8E1B1B"
	}

	payload := map[string]any{
		"username":   "Madhesh Literature Festival",
		"icon_emoji": ":books:",
		"attachments": []map[string]any{
			{
				"color":  color,
				"title":  fmt.Sprintf("%s %s", emoji, event.Summary()),
				"footer": fmt.Sprintf("%s · %s", event.Collection, event.RecordID),
				"ts":     event.Timestamp.Unix(),
			},
		},
	}
	if s.channel != "" {
		payload["channel"] = s.channel
	}
	return s.sendWebhook(ctx, payload)
}

func (s *SlackAdapter) sendWebhook(ctx context.Context, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("slack webhook error: %s", string(body))
	}
	return nil
}

// Close closes the adapter.
func (s *SlackAdapter) Close() error {
	return nil
}
