// Package scheduler runs the reminder job on a cron schedule inside the
// service process.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/reminder"
)

// JobRunner runs the reminder job once.
type JobRunner interface {
	Run(ctx context.Context) (reminder.Summary, error)
}

// Scheduler triggers a JobRunner on a standard 5-field cron spec.
type Scheduler struct {
	cron    *cron.Cron
	runner  JobRunner
	spec    string
	timeout time.Duration
	logger  *zap.Logger
}

// Config tunes a Scheduler.
type Config struct {
	Spec     string
	Location *time.Location
	// Timeout bounds a single scheduled run.
	Timeout time.Duration
}

// New validates the cron expression and registers the job. The schedule does not fire
// until Start.
func New(cfg Config, runner JobRunner, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Minute
	}

	cl := cronLogger{logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:  runner,
		spec:    cfg.Spec,
		timeout: cfg.Timeout,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(cfg.Spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Start begins firing the schedule in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("reminder schedule started",
			zap.String("spec", s.spec),
			zap.Time("next_run", e.Next),
		)
	}
}

// Stop stops the schedule and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("reminder schedule stopped")
	case <-ctx.Done():
		s.logger.Warn("reminder schedule stop timed out", zap.Error(ctx.Err()))
	}
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	summary, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, reminder.ErrRunInProgress):
		s.logger.Info("scheduled run skipped, another run in progress")
	case err != nil:
		s.logger.Error("scheduled payment reminder run failed", zap.Error(err))
	default:
		s.logger.Info("scheduled payment reminder run finished",
			zap.Int("checked", summary.Checked),
			zap.Int("sent", summary.Sent),
		)
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
