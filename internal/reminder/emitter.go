package reminder

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/calendar"
	"github.com/lalithlochan/rentals/internal/db"
	"github.com/lalithlochan/rentals/internal/metrics"
)

// NotificationStore is the write side of the notification table.
type NotificationStore interface {
	// InsertNotification reports false without error when a row with the
	// same dedup key already exists.
	InsertNotification(ctx context.Context, notif *db.Notification) (bool, error)
}

// Dispatcher pushes a written notification to out-of-app channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, notif *db.Notification, to db.Recipient) error
}

// Outcome counts what happened to one candidate's notices.
type Outcome struct {
	Sent    int
	Skipped int
	Failed  int
}

// Emitter decides and writes the notices for one candidate.
type Emitter struct {
	store      NotificationStore
	dispatcher Dispatcher
	policy     OverduePolicy
	logger     *zap.Logger
}

// NewEmitter creates an emitter. dispatcher may be nil.
func NewEmitter(store NotificationStore, dispatcher Dispatcher, policy OverduePolicy, logger *zap.Logger) *Emitter {
	if policy == "" {
		policy = OverdueDaily
	}
	return &Emitter{
		store:      store,
		dispatcher: dispatcher,
		policy:     policy,
		logger:     logger,
	}
}

// Emit writes every notice c earns today. Write failures are logged and
// counted; they never stop the caller.
func (e *Emitter) Emit(ctx context.Context, c Candidate, today calendar.Date) Outcome {
	var out Outcome

	for _, notice := range Decide(c, today, e.policy) {
		appID := c.Tenancy.ApplicationID
		key := notice.DedupKey
		notif := &db.Notification{
			ID:            uuid.New(),
			UserID:        c.Tenancy.Resident.ID,
			ApplicationID: &appID,
			Type:          notice.Type,
			Title:         notice.Title,
			Message:       notice.Message,
			DedupKey:      &key,
		}

		inserted, err := e.store.InsertNotification(ctx, notif)
		if err != nil {
			out.Failed++
			metrics.RecordNotification(notice.Type, metrics.ResultFailed)
			e.logger.Error("failed to write notification",
				zap.Error(err),
				zap.String("tenancy_id", appID.String()),
				zap.String("type", notice.Type),
			)
			continue
		}

		if !inserted {
			out.Skipped++
			metrics.RecordNotification(notice.Type, metrics.ResultSkipped)
			e.logger.Debug("notification already sent",
				zap.String("tenancy_id", appID.String()),
				zap.String("dedup_key", key),
			)
			continue
		}

		out.Sent++
		metrics.RecordNotification(notice.Type, metrics.ResultSent)
		e.logger.Info("notification written",
			zap.String("notification_id", notif.ID.String()),
			zap.String("tenancy_id", appID.String()),
			zap.String("type", notice.Type),
			zap.Int("days_until_due", c.DaysUntilDue),
		)

		if e.dispatcher != nil {
			if err := e.dispatcher.Dispatch(ctx, notif, c.Tenancy.Resident); err != nil {
				e.logger.Warn("notification delivery incomplete",
					zap.Error(err),
					zap.String("notification_id", notif.ID.String()),
				)
			}
		}
	}

	return out
}
