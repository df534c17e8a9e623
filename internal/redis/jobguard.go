package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/reminder"
)

// SummaryTTL is how long the last run summary is retained.
const SummaryTTL = 7 * 24 * time.Hour

// releaseScript deletes the lock only if this guard still owns it, so a run
// that outlived its TTL cannot free a newer run's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// JobGuard provides a cross-process run lock and last-run record for batch
// jobs using Redis. It implements reminder.RunGuard.
type JobGuard struct {
	client *Client
	logger *zap.Logger
	owner  string
}

// NewJobGuard creates a job guard with a unique owner token.
func NewJobGuard(client *Client, logger *zap.Logger) *JobGuard {
	return &JobGuard{
		client: client,
		logger: logger,
		owner:  uuid.NewString(),
	}
}

func lockKey(job string) string {
	return fmt.Sprintf("job:%s:lock", job)
}

func summaryKey(job string) string {
	return fmt.Sprintf("job:%s:last", job)
}

// Acquire takes the job lock using SET NX with ttl.
// Returns true if the lock was acquired, false if another run holds it.
func (g *JobGuard) Acquire(ctx context.Context, job string, ttl time.Duration) (bool, error) {
	set, err := g.client.rdb.SetNX(ctx, lockKey(job), g.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}

	if !set {
		g.logger.Info("job lock held elsewhere", zap.String("job", job))
	}

	return set, nil
}

// Release frees the job lock if this guard owns it.
func (g *JobGuard) Release(ctx context.Context, job string) error {
	if err := releaseScript.Run(ctx, g.client.rdb, []string{lockKey(job)}, g.owner).Err(); err != nil {
		return fmt.Errorf("redis release failed: %w", err)
	}
	return nil
}

// Record stores the summary of a completed run.
func (g *JobGuard) Record(ctx context.Context, job string, summary reminder.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	if err := g.client.rdb.Set(ctx, summaryKey(job), data, SummaryTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// Last returns the most recently recorded summary, or (nil, nil) if none.
func (g *JobGuard) Last(ctx context.Context, job string) (*reminder.Summary, error) {
	val, err := g.client.rdb.Get(ctx, summaryKey(job)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var summary reminder.Summary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		g.logger.Error("failed to unmarshal run summary", zap.Error(err))
		return nil, fmt.Errorf("invalid stored summary: %w", err)
	}

	return &summary, nil
}
