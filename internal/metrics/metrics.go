package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Notification and delivery results
const (
	ResultSent    = "sent"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentals_http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rentals_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 5, 30},
		},
		[]string{"method", "path"},
	)

	reminderRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentals_reminder_runs_total",
			Help: "Payment reminder runs by outcome",
		},
		[]string{"outcome"},
	)

	reminderRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rentals_reminder_run_duration_seconds",
			Help:    "Wall time of a payment reminder run",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 300},
		},
	)

	reminderChecked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rentals_reminder_tenancies_checked_total",
			Help: "Tenancies evaluated by payment reminder runs",
		},
	)

	reminderLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rentals_reminder_last_success_timestamp_seconds",
			Help: "Unix time of the last successful payment reminder run",
		},
	)

	notificationsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentals_notifications_total",
			Help: "Reminder notifications by type and write result",
		},
		[]string{"type", "result"},
	)

	deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rentals_notification_deliveries_total",
			Help: "Out-of-app notification deliveries by channel and result",
		},
		[]string{"channel", "result"},
	)

	lockContention = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rentals_reminder_lock_contention_total",
			Help: "Runs rejected because another run was in progress",
		},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rentals_circuit_breaker_state",
			Help: "Delivery circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)

	rateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rentals_rate_limit_rejections_total",
			Help: "Requests rejected by rate limiter",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRun records a finished reminder run
func RecordRun(outcome string, duration time.Duration) {
	reminderRuns.WithLabelValues(outcome).Inc()
	reminderRunDuration.Observe(duration.Seconds())
	if outcome == RunSucceeded {
		reminderLastSuccess.SetToCurrentTime()
	}
}

// RecordChecked adds the number of tenancies a run evaluated
func RecordChecked(n int) {
	reminderChecked.Add(float64(n))
}

// RecordNotification records the write result of one reminder notification
func RecordNotification(notifType, result string) {
	notificationsWritten.WithLabelValues(notifType, result).Inc()
}

// RecordDelivery records one channel delivery attempt
func RecordDelivery(channel, result string) {
	deliveries.WithLabelValues(channel, result).Inc()
}

// RecordLockContention records a run rejected by the run lock
func RecordLockContention() {
	lockContention.Inc()
}

// SetBreakerState publishes the state of a named circuit breaker
func SetBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection() {
	rateLimitRejections.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns HTTP middleware that records request metrics. Paths
// are labelled by chi route pattern so IDs do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		RecordRequest(r.Method, routeLabel(r), wrapped.status, time.Since(start))
	})
}

func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
