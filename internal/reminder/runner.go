package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lalithlochan/rentals/internal/calendar"
	"github.com/lalithlochan/rentals/internal/metrics"
)

// JobName identifies the reminder job in locks, logs and metrics.
const JobName = "payment-reminders"

// ErrRunInProgress is returned when another run holds the job lock.
var ErrRunInProgress = errors.New("payment reminder run already in progress")

// Summary reports the result of one successful run.
type Summary struct {
	Checked   int       `json:"checked"`
	Sent      int       `json:"sent"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Today     string    `json:"today"`
	Timestamp time.Time `json:"timestamp"`
	Duration  string    `json:"duration"`
}

// RunGuard serialises runs across processes and keeps the last summary.
type RunGuard interface {
	Acquire(ctx context.Context, job string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, job string) error
	Record(ctx context.Context, job string, summary Summary) error
}

// Config tunes a Runner.
type Config struct {
	Location    *time.Location
	Concurrency int
	LockTTL     time.Duration
	Now         func() time.Time
}

// Runner executes the reminder job.
type Runner struct {
	resolver *Resolver
	emitter  *Emitter
	guard    RunGuard
	config   Config
	logger   *zap.Logger
	running  atomic.Bool
}

// NewRunner wires a runner. guard may be nil.
func NewRunner(resolver *Resolver, emitter *Emitter, guard RunGuard, cfg Config, logger *zap.Logger) *Runner {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Runner{
		resolver: resolver,
		emitter:  emitter,
		guard:    guard,
		config:   cfg,
		logger:   logger,
	}
}

// Running reports whether a run is active in this process.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Run performs one scan. The clock is read once and every record is
// evaluated against that same day.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if !r.running.CompareAndSwap(false, true) {
		metrics.RecordLockContention()
		return Summary{}, ErrRunInProgress
	}
	defer r.running.Store(false)

	start := time.Now()
	now := r.config.Now()
	today := calendar.Of(now, r.config.Location)
	logger := r.logger.With(zap.String("job", JobName), zap.String("today", today.String()))

	if r.guard != nil {
		acquired, err := r.guard.Acquire(ctx, JobName, r.config.LockTTL)
		switch {
		case err != nil:
			logger.Warn("run lock unavailable, proceeding", zap.Error(err))
		case !acquired:
			metrics.RecordLockContention()
			return Summary{}, ErrRunInProgress
		default:
			defer func() {
				// The run context may already be cancelled.
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := r.guard.Release(releaseCtx, JobName); err != nil {
					logger.Warn("failed to release run lock", zap.Error(err))
				}
			}()
		}
	}

	logger.Info("payment reminder run started")

	candidates, err := r.resolver.Resolve(ctx, today)
	if err != nil {
		metrics.RecordRun(metrics.RunFailed, time.Since(start))
		logger.Error("payment reminder run aborted", zap.Error(err))
		return Summary{}, err
	}

	var checked, sent, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)

dispatch:
	for _, c := range candidates {
		select {
		case <-ctx.Done():
			break dispatch
		default:
		}

		c := c
		g.Go(func() error {
			out := r.emitter.Emit(gctx, c, today)
			checked.Add(1)
			sent.Add(int64(out.Sent))
			skipped.Add(int64(out.Skipped))
			failed.Add(int64(out.Failed))
			return nil
		})
	}
	_ = g.Wait()

	// A cancelled run fails only when records were left unevaluated.
	if err := ctx.Err(); err != nil && checked.Load() < int64(len(candidates)) {
		metrics.RecordRun(metrics.RunFailed, time.Since(start))
		logger.Error("payment reminder run interrupted",
			zap.Error(err),
			zap.Int64("checked", checked.Load()),
			zap.Int64("sent", sent.Load()),
		)
		return Summary{}, fmt.Errorf("run interrupted after %d of %d records: %w", checked.Load(), len(candidates), err)
	}

	summary := Summary{
		Checked:   int(checked.Load()),
		Sent:      int(sent.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
		Today:     today.String(),
		Timestamp: now,
		Duration:  time.Since(start).Round(time.Millisecond).String(),
	}

	metrics.RecordRun(metrics.RunSucceeded, time.Since(start))
	metrics.RecordChecked(summary.Checked)

	if r.guard != nil {
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.guard.Record(recordCtx, JobName, summary); err != nil {
			logger.Warn("failed to record run summary", zap.Error(err))
		}
	}

	logger.Info("payment reminder run completed",
		zap.Int("checked", summary.Checked),
		zap.Int("sent", summary.Sent),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.String("duration", summary.Duration),
	)

	return summary, nil
}
