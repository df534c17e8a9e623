// Package circuitbreaker keeps a failing delivery channel from being called
// once per resident during a reminder run.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/metrics"
)

// State of a channel breaker. Closed passes deliveries, Open rejects them
// until the cooldown ends, HalfOpen lets a single trial delivery through.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrCircuitOpen is returned for deliveries rejected by an open breaker.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config tunes one channel breaker.
type Config struct {
	// Channel is the delivery channel guarded, used in logs and metrics.
	Channel string
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int
	// Cooldown is how long an open breaker rejects before a trial.
	Cooldown time.Duration
}

// DefaultConfig returns the settings used for every delivery channel.
func DefaultConfig(channel string) Config {
	return Config{
		Channel:          channel,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// CircuitBreaker tracks consecutive delivery failures of one channel.
// Safe for concurrent use by the run's emit workers.
type CircuitBreaker struct {
	mu     sync.Mutex
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	state       State
	consecutive int
	openedAt    time.Time
	changedAt   time.Time
	trialActive bool

	delivered int64
	failed    int64
	rejected  int64
}

// New creates a closed breaker. Zero config values fall back to DefaultConfig.
func New(cfg Config, logger *zap.Logger) *CircuitBreaker {
	def := DefaultConfig(cfg.Channel)
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}

	cb := &CircuitBreaker{cfg: cfg, logger: logger, now: time.Now}
	cb.changedAt = cb.now()
	metrics.SetBreakerState(cfg.Channel, int(StateClosed))
	return cb
}

// Allow reports whether a delivery may be attempted now. After the
// cooldown the first caller gets the trial; others are rejected until the
// trial's outcome is recorded.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.Cooldown {
		cb.setState(StateHalfOpen)
	}

	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if !cb.trialActive {
			cb.trialActive = true
			return true
		}
	}

	cb.rejected++
	return false
}

// RecordSuccess closes the breaker and clears the failure streak.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.delivered++
	cb.consecutive = 0
	if cb.state != StateClosed {
		cb.logger.Info("delivery channel recovered", zap.String("channel", cb.cfg.Channel))
		cb.setState(StateClosed)
	}
}

// RecordFailure extends the failure streak. A failed trial reopens the
// breaker at once.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failed++
	cb.consecutive++

	if cb.state == StateHalfOpen || (cb.state == StateClosed && cb.consecutive >= cb.cfg.FailureThreshold) {
		cb.logger.Warn("delivery channel disabled after failures",
			zap.String("channel", cb.cfg.Channel),
			zap.Int("consecutive_failures", cb.consecutive),
			zap.Duration("cooldown", cb.cfg.Cooldown),
		)
		cb.openedAt = cb.now()
		cb.setState(StateOpen)
	}
}

// GetState returns the current state without promoting an expired open
// breaker; that happens on the next Allow.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats is what the health endpoint reports per channel.
type Stats struct {
	Channel             string `json:"channel"`
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	Delivered           int64  `json:"delivered"`
	Failed              int64  `json:"failed"`
	Rejected            int64  `json:"rejected"`
	Since               string `json:"since"`
}

// Stats returns a snapshot of the breaker.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Stats{
		Channel:             cb.cfg.Channel,
		State:               cb.state.String(),
		ConsecutiveFailures: cb.consecutive,
		Delivered:           cb.delivered,
		Failed:              cb.failed,
		Rejected:            cb.rejected,
		Since:               cb.changedAt.UTC().Format(time.RFC3339),
	}
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(s State) {
	if cb.state == s {
		return
	}
	cb.state = s
	cb.changedAt = cb.now()
	cb.trialActive = false
	metrics.SetBreakerState(cb.cfg.Channel, int(s))
}
