// Package reminder implements the payment-due reminder batch job: resolve
// the tenancies to evaluate, decide which notices each one earns today and
// write them exactly once.
package reminder

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/calendar"
	"github.com/lalithlochan/rentals/internal/db"
)

// TenancySource is the read side of the marketplace store.
type TenancySource interface {
	ListDueTenancies(ctx context.Context) ([]*db.DueTenancy, error)
}

// Candidate is a tenancy resolved against the run's day.
type Candidate struct {
	Tenancy      *db.DueTenancy
	DaysUntilDue int
}

// Resolver loads the due set for a run.
type Resolver struct {
	source TenancySource
	logger *zap.Logger
}

// NewResolver creates a resolver over source.
func NewResolver(source TenancySource, logger *zap.Logger) *Resolver {
	return &Resolver{source: source, logger: logger}
}

// Resolve returns every eligible tenancy with its day count relative to
// today. Any read failure is returned as is; the caller treats it as fatal.
func (r *Resolver) Resolve(ctx context.Context, today calendar.Date) ([]Candidate, error) {
	tenancies, err := r.source.ListDueTenancies(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve due tenancies: %w", err)
	}

	candidates := make([]Candidate, 0, len(tenancies))
	for _, t := range tenancies {
		if t == nil || t.NextPaymentDue.IsZero() {
			continue
		}
		if t.DaysBefore < 0 {
			t.DaysBefore = db.DefaultDaysBefore
		}
		candidates = append(candidates, Candidate{
			Tenancy:      t,
			DaysUntilDue: today.DaysUntil(t.NextPaymentDue),
		})
	}

	r.logger.Info("due set resolved",
		zap.String("today", today.String()),
		zap.Int("candidates", len(candidates)),
	)

	return candidates, nil
}
