package delivery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/db"
	"github.com/lalithlochan/rentals/internal/metrics"
)

// Fanout delivers a notification on every configured channel that accepts
// it. It implements reminder.Dispatcher.
type Fanout struct {
	senders []Sender
	logger  *zap.Logger
}

// NewFanout creates a dispatcher over senders.
func NewFanout(logger *zap.Logger, senders ...Sender) *Fanout {
	return &Fanout{
		senders: senders,
		logger:  logger,
	}
}

// Channels lists the configured channel names in order.
func (f *Fanout) Channels() []string {
	names := make([]string, 0, len(f.senders))
	for _, s := range f.senders {
		names = append(names, s.Channel())
	}
	return names
}

// Dispatch sends notif to every accepting channel. One channel failing does
// not stop the others; all failures are joined into the returned error.
func (f *Fanout) Dispatch(ctx context.Context, notif *db.Notification, to db.Recipient) error {
	msg := NewMessage(notif, to)

	var errs []error
	for _, sender := range f.senders {
		channel := sender.Channel()
		if !sender.Accepts(msg) {
			metrics.RecordDelivery(channel, metrics.ResultSkipped)
			continue
		}

		if err := sender.Send(ctx, msg); err != nil {
			metrics.RecordDelivery(channel, metrics.ResultFailed)
			f.logger.Warn("delivery failed",
				zap.Error(err),
				zap.String("channel", channel),
				zap.String("notification_id", msg.NotificationID),
			)
			errs = append(errs, fmt.Errorf("%s: %w", channel, err))
			continue
		}

		metrics.RecordDelivery(channel, metrics.ResultSent)
		f.logger.Debug("notification delivered",
			zap.String("channel", channel),
			zap.String("notification_id", msg.NotificationID),
		)
	}

	return errors.Join(errs...)
}
