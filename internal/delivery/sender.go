// Package delivery pushes written notifications to channels outside the app
// (email, SMS, webhooks, queues).
package delivery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/db"
)

// Channel names
const (
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelWebhook = "webhook"
	ChannelQueue   = "queue"
	ChannelTopic   = "topic"
	ChannelLog     = "log"
)

// Message is the channel-neutral view of a written notification.
type Message struct {
	NotificationID string    `json:"notification_id"`
	ApplicationID  string    `json:"application_id,omitempty"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Body           string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`

	RecipientID    string  `json:"recipient_id"`
	RecipientName  string  `json:"recipient_name,omitempty"`
	RecipientEmail *string `json:"-"`
	RecipientPhone *string `json:"-"`
}

// NewMessage builds a Message from a stored notification and its recipient.
func NewMessage(notif *db.Notification, to db.Recipient) Message {
	msg := Message{
		NotificationID: notif.ID.String(),
		Type:           notif.Type,
		Title:          notif.Title,
		Body:           notif.Message,
		CreatedAt:      notif.CreatedAt,
		RecipientID:    to.ID.String(),
		RecipientName:  to.FullName,
		RecipientEmail: to.Email,
		RecipientPhone: to.Phone,
	}
	if notif.ApplicationID != nil {
		msg.ApplicationID = notif.ApplicationID.String()
	}
	return msg
}

// Sender is the unified interface for all delivery channels
// Implementations: Email (SES), SMS (SNS), Webhooks, SQS queue, SNS topic
type Sender interface {
	Channel() string
	// Accepts reports whether msg can be delivered on this channel, for
	// example whether the recipient has an email address.
	Accepts(msg Message) bool
	Send(ctx context.Context, msg Message) error
}

// LogSender is a simple sender that logs messages (for development)
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Channel() string { return ChannelLog }

func (s *LogSender) Accepts(Message) bool { return true }

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info("logging notification delivery (development mode)",
		zap.String("notification_id", msg.NotificationID),
		zap.String("recipient_id", msg.RecipientID),
		zap.String("type", msg.Type),
		zap.String("title", msg.Title),
		zap.String("message", msg.Body),
	)
	return nil
}

func hasValue(s *string) bool {
	return s != nil && *s != ""
}
