package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookSender posts every notification to one configured endpoint.
type WebhookSender struct {
	client *http.Client
	url    string
	logger *zap.Logger
}

type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// NewWebhookSender creates a new webhook sender
func NewWebhookSender(logger *zap.Logger, cfg WebhookConfig) *WebhookSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WebhookSender{
		client: &http.Client{Timeout: timeout},
		url:    cfg.URL,
		logger: logger,
	}
}

func (s *WebhookSender) Channel() string { return ChannelWebhook }

func (s *WebhookSender) Accepts(Message) bool { return s.url != "" }

// Send POSTs the message as JSON. Any non-2xx response is an error.
func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "rentals-reminders/1.0")
	req.Header.Set("X-Notification-ID", msg.NotificationID)
	req.Header.Set("X-Notification-Type", msg.Type)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	preview, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d, body: %s", resp.StatusCode, string(preview))
	}

	s.logger.Info("webhook delivered",
		zap.String("notification_id", msg.NotificationID),
		zap.Int("status_code", resp.StatusCode),
	)

	return nil
}
