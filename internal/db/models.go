package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/lalithlochan/rentals/internal/calendar"
)

// Notification represents a resident-facing notification row
type Notification struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	ApplicationID *uuid.UUID `json:"application_id,omitempty"`
	Type          string     `json:"type"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	IsRead        bool       `json:"is_read"`
	DedupKey      *string    `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Notification types written by the reminder job. Other producers in the
// marketplace write their own types into the same table.
const (
	TypePaymentReminder = "payment_reminder"
	TypePaymentOverdue  = "payment_overdue"
)

// Application status constants
const (
	ApplicationPending  = "pending"
	ApplicationAccepted = "accepted"
	ApplicationRejected = "rejected"
)

// DefaultDaysBefore applies when a reminder configuration has no threshold.
const DefaultDaysBefore = 7

// Recipient holds the resident contact data joined from profiles.
type Recipient struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    *string   `json:"email,omitempty"`
	Phone    *string   `json:"phone,omitempty"`
}

// DueTenancy is an accepted application with an enabled reminder
// configuration and a known next payment date. A tenancy always has one
// residence and at most one room.
type DueTenancy struct {
	ApplicationID  uuid.UUID     `json:"application_id"`
	Resident       Recipient     `json:"resident"`
	ResidenceID    uuid.UUID     `json:"residence_id"`
	ResidenceTitle string        `json:"residence_title"`
	RoomID         *uuid.UUID    `json:"room_id,omitempty"`
	RoomNumber     *string       `json:"room_number,omitempty"`
	NextPaymentDue calendar.Date `json:"next_payment_due"`
	DaysBefore     int           `json:"days_before"`
}
