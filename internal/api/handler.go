package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/db"
	"github.com/lalithlochan/rentals/internal/reminder"
)

// JobRunner runs the payment reminder job once.
type JobRunner interface {
	Run(ctx context.Context) (reminder.Summary, error)
}

// NotificationRepository is the read side of resident notifications
type NotificationRepository interface {
	ListNotificationsByRecipient(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*db.Notification, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID) error
}

// SummarySource returns the last stored run summary, nil when there is none.
type SummarySource interface {
	Last(ctx context.Context, job string) (*reminder.Summary, error)
}

// TriggerResponse is the body of a successful trigger call
type TriggerResponse struct {
	Success   bool   `json:"success"`
	Checked   int    `json:"checked"`
	Sent      int    `json:"sent"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Timestamp string `json:"timestamp"`
}

// TriggerError is the body of a failed trigger call
type TriggerError struct {
	Error string `json:"error"`
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger    *zap.Logger
	runner    JobRunner
	repo      NotificationRepository
	summaries SummarySource // nil if Redis not configured
}

// NewHandler creates a new API handler
func NewHandler(logger *zap.Logger, runner JobRunner, repo NotificationRepository) *Handler {
	return &Handler{
		logger:    logger,
		runner:    runner,
		repo:      repo,
		summaries: nil,
	}
}

// NewHandlerWithSummaries creates a handler that can serve the last run summary
func NewHandlerWithSummaries(logger *zap.Logger, runner JobRunner, repo NotificationRepository, summaries SummarySource) *Handler {
	h := NewHandler(logger, runner, repo)
	h.summaries = summaries
	return h
}

// TriggerOptions handles OPTIONS /v1/jobs/payment-reminders
func (h *Handler) TriggerOptions(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.WriteHeader(http.StatusOK)
}

// TriggerPaymentReminders handles POST /v1/jobs/payment-reminders.
// The request body is ignored.
func (h *Handler) TriggerPaymentReminders(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	summary, err := h.runner.Run(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, reminder.ErrRunInProgress) {
			status = http.StatusConflict
		} else {
			h.logger.Error("payment reminder run failed", zap.Error(err))
		}
		writeJSON(w, status, TriggerError{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, TriggerResponse{
		Success:   true,
		Checked:   summary.Checked,
		Sent:      summary.Sent,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
		Timestamp: summary.Timestamp.UTC().Format(time.RFC3339),
	})
}

// LastRun handles GET /v1/jobs/payment-reminders/last
func (h *Handler) LastRun(w http.ResponseWriter, r *http.Request) {
	if h.summaries == nil {
		h.writeError(w, http.StatusNotFound, "not_found", "No run summary available", "run history requires Redis")
		return
	}

	summary, err := h.summaries.Last(r.Context(), reminder.JobName)
	if err != nil {
		h.logger.Error("failed to load last run summary", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "storage_error", "Failed to load run summary", "")
		return
	}
	if summary == nil {
		h.writeError(w, http.StatusNotFound, "not_found", "No run summary available", "")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// ListResidentNotifications handles GET /v1/residents/{id}/notifications
func (h *Handler) ListResidentNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idStr := chi.URLParam(r, "id")
	residentID, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid resident ID", "ID must be a valid UUID")
		return
	}

	// Parse pagination parameters with defaults
	limit := 20
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	unreadOnly := false
	if unreadStr := r.URL.Query().Get("unread"); unreadStr != "" {
		u, err := strconv.ParseBool(unreadStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid unread flag", "unread must be true or false")
			return
		}
		unreadOnly = u
	}

	notifications, err := h.repo.ListNotificationsByRecipient(ctx, residentID, unreadOnly, limit, offset)
	if err != nil {
		h.logger.Error("failed to list notifications",
			zap.Error(err),
			zap.String("resident_id", idStr),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list notifications", "")
		return
	}

	if notifications == nil {
		notifications = []*db.Notification{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":   notifications,
		"limit":  limit,
		"offset": offset,
		"count":  len(notifications),
	})
}

// MarkNotificationRead handles PATCH /v1/notifications/{id}/read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	notifID, err := uuid.Parse(idStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid notification ID", "ID must be a valid UUID")
		return
	}

	if err := h.repo.MarkNotificationRead(r.Context(), notifID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Notification not found", "")
			return
		}
		h.logger.Error("failed to mark notification read",
			zap.Error(err),
			zap.String("id", idStr),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to update notification", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      idStr,
		"is_read": true,
	})
}

// Routes registers the /v1 endpoints on r.
func (h *Handler) Routes(r chi.Router, triggerToken string) {
	r.Route("/jobs/payment-reminders", func(r chi.Router) {
		r.Options("/", h.TriggerOptions)
		r.With(BearerAuthMiddleware(triggerToken)).Post("/", h.TriggerPaymentReminders)
		r.Get("/last", h.LastRun)
	})
	r.Get("/residents/{id}/notifications", h.ListResidentNotifications)
	r.Patch("/notifications/{id}/read", h.MarkNotificationRead)
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
