package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/calendar"
)

// ErrNotFound is returned when a row addressed by ID does not exist.
var ErrNotFound = errors.New("not found")

// Repository handles database operations for tenancies and notifications
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new repository
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ListDueTenancies returns accepted applications that have a next payment
// date and whose first reminder configuration is enabled. A NULL or
// negative days_before becomes DefaultDaysBefore; zero means the due day.
func (r *Repository) ListDueTenancies(ctx context.Context) ([]*DueTenancy, error) {
	query := `
		SELECT
			a.id, a.resident_id, p.full_name, p.email, p.phone,
			a.residence_id, res.title, a.room_id, rm.room_number,
			a.next_payment_due, COALESCE(pr.days_before, $2)
		FROM applications a
		JOIN LATERAL (
			SELECT days_before, is_enabled
			FROM payment_reminders
			WHERE application_id = a.id
			ORDER BY created_at ASC
			LIMIT 1
		) pr ON TRUE
		JOIN profiles p ON p.id = a.resident_id
		JOIN residences res ON res.id = a.residence_id
		LEFT JOIN rooms rm ON rm.id = a.room_id
		WHERE a.status = $1
			AND a.next_payment_due IS NOT NULL
			AND pr.is_enabled
		ORDER BY a.next_payment_due ASC, a.id ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, ApplicationAccepted, DefaultDaysBefore)
	if err != nil {
		return nil, fmt.Errorf("query due tenancies: %w", err)
	}
	defer rows.Close()

	var tenancies []*DueTenancy
	for rows.Next() {
		var (
			t   DueTenancy
			due time.Time
		)
		err := rows.Scan(
			&t.ApplicationID,
			&t.Resident.ID,
			&t.Resident.FullName,
			&t.Resident.Email,
			&t.Resident.Phone,
			&t.ResidenceID,
			&t.ResidenceTitle,
			&t.RoomID,
			&t.RoomNumber,
			&due,
			&t.DaysBefore,
		)
		if err != nil {
			return nil, fmt.Errorf("scan due tenancy: %w", err)
		}
		t.NextPaymentDue = calendar.FromStoredDate(due)
		if t.DaysBefore < 0 {
			t.DaysBefore = DefaultDaysBefore
		}
		tenancies = append(tenancies, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due tenancies: %w", err)
	}

	r.logger.Debug("due tenancies loaded", zap.Int("count", len(tenancies)))

	return tenancies, nil
}

// InsertNotification writes notif unless another row already carries the
// same dedup key. It reports whether a row was inserted.
func (r *Repository) InsertNotification(ctx context.Context, notif *Notification) (bool, error) {
	query := `
		INSERT INTO notifications (
			id, user_id, application_id, type, title, message, is_read, dedup_key
		) VALUES (
			$1, $2, $3, $4, $5, $6, FALSE, $7
		)
		ON CONFLICT (dedup_key) WHERE dedup_key IS NOT NULL DO NOTHING
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(
		ctx,
		query,
		notif.ID,
		notif.UserID,
		notif.ApplicationID,
		notif.Type,
		notif.Title,
		notif.Message,
		notif.DedupKey,
	).Scan(&notif.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		r.logger.Debug("notification already exists",
			zap.String("user_id", notif.UserID.String()),
			zap.String("type", notif.Type),
		)
		return false, nil
	}

	if err != nil {
		r.logger.Error("failed to insert notification",
			zap.Error(err),
			zap.String("notification_id", notif.ID.String()),
			zap.String("type", notif.Type),
		)
		return false, fmt.Errorf("insert notification: %w", err)
	}

	notif.IsRead = false

	return true, nil
}

// ListNotificationsByRecipient returns a resident's notifications, newest first
func (r *Repository) ListNotificationsByRecipient(
	ctx context.Context,
	userID uuid.UUID,
	unreadOnly bool,
	limit int,
	offset int,
) ([]*Notification, error) {
	query := `
		SELECT id, user_id, application_id, type, title, message, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND ($2 = FALSE OR is_read = FALSE)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*Notification, 0)
	for rows.Next() {
		var notif Notification
		err := rows.Scan(
			&notif.ID,
			&notif.UserID,
			&notif.ApplicationID,
			&notif.Type,
			&notif.Title,
			&notif.Message,
			&notif.IsRead,
			&notif.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, &notif)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return notifications, nil
}

// MarkNotificationRead flags a notification as read
func (r *Repository) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool().Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("failed to mark notification read",
			zap.Error(err),
			zap.String("notification_id", id.String()),
		)
		return fmt.Errorf("mark notification read: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}

	return nil
}
