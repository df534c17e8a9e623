package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/circuitbreaker"
)

// HealthChecker is satisfied by *db.DB.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler reports database reachability plus the state of each
// delivery breaker. Only the database decides the status code.
func HealthHandler(checker HealthChecker, logger *zap.Logger, breakers ...*circuitbreaker.CircuitBreaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		channels := make([]circuitbreaker.Stats, 0, len(breakers))
		for _, b := range breakers {
			channels = append(channels, b.Stats())
		}

		if err := checker.Health(ctx); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":   "unavailable",
				"database": err.Error(),
				"channels": channels,
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"channels": channels,
		})
	}
}
