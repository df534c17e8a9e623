package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/reminder"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := &Client{rdb: rdb, logger: zap.NewNop()}

	return client, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestJobGuard_AcquireOnce(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	first := NewJobGuard(client, zap.NewNop())
	second := NewJobGuard(client, zap.NewNop())
	ctx := context.Background()

	ok, err := first.Acquire(ctx, "payment-reminders", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire failed: ok=%v err=%v", ok, err)
	}

	ok, err = second.Acquire(ctx, "payment-reminders", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("second acquire should fail while lock is held")
	}
}

func TestJobGuard_ReleaseAllowsNextRun(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	guard := NewJobGuard(client, zap.NewNop())
	ctx := context.Background()

	if ok, _ := guard.Acquire(ctx, "job", time.Minute); !ok {
		t.Fatal("acquire failed")
	}
	if err := guard.Release(ctx, "job"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if ok, _ := guard.Acquire(ctx, "job", time.Minute); !ok {
		t.Fatal("acquire after release should succeed")
	}
}

func TestJobGuard_ReleaseKeepsForeignLock(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	owner := NewJobGuard(client, zap.NewNop())
	other := NewJobGuard(client, zap.NewNop())
	ctx := context.Background()

	if ok, _ := owner.Acquire(ctx, "job", time.Minute); !ok {
		t.Fatal("acquire failed")
	}
	if err := other.Release(ctx, "job"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if ok, _ := other.Acquire(ctx, "job", time.Minute); ok {
		t.Fatal("lock owned by another guard must survive a foreign release")
	}
}

func TestJobGuard_LockExpires(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	guard := NewJobGuard(client, zap.NewNop())
	ctx := context.Background()

	if ok, _ := guard.Acquire(ctx, "job", time.Minute); !ok {
		t.Fatal("acquire failed")
	}
	mr.FastForward(2 * time.Minute)

	if ok, _ := NewJobGuard(client, zap.NewNop()).Acquire(ctx, "job", time.Minute); !ok {
		t.Fatal("expired lock should be acquirable")
	}
}

func TestJobGuard_RecordAndLast(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	guard := NewJobGuard(client, zap.NewNop())
	ctx := context.Background()

	last, err := guard.Last(ctx, "job")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last != nil {
		t.Fatalf("expected no summary, got %+v", last)
	}

	stored := reminder.Summary{
		Checked:   10,
		Sent:      9,
		Failed:    1,
		Today:     "2025-06-01",
		Timestamp: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := guard.Record(ctx, "job", stored); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	last, err = guard.Last(ctx, "job")
	if err != nil {
		t.Fatalf("last failed: %v", err)
	}
	if last == nil {
		t.Fatal("expected stored summary")
	}
	if last.Checked != 10 || last.Sent != 9 || last.Failed != 1 {
		t.Errorf("unexpected summary: %+v", last)
	}
	if !last.Timestamp.Equal(stored.Timestamp) {
		t.Errorf("timestamp mismatch: got %s", last.Timestamp)
	}
}

func TestJobGuard_LastInvalidPayload(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	if err := mr.Set(summaryKey("job"), "{not json"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if _, err := NewJobGuard(client, zap.NewNop()).Last(context.Background(), "job"); err == nil {
		t.Fatal("expected error for corrupt summary")
	}
}
