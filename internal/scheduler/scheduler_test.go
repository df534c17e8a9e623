package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/reminder"
)

type fakeRunner struct {
	err      error
	calls    int
	deadline bool
}

func (f *fakeRunner) Run(ctx context.Context) (reminder.Summary, error) {
	f.calls++
	_, f.deadline = ctx.Deadline()
	return reminder.Summary{Checked: 1}, f.err
}

func TestNew_InvalidCronExpression(t *testing.T) {
	if _, err := New(Config{Spec: "every tuesday"}, &fakeRunner{}, zap.NewNop()); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestNew_RegistersOneEntry(t *testing.T) {
	s, err := New(Config{Spec: "0 9 * * *"}, &fakeRunner{}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(s.cron.Entries()); n != 1 {
		t.Fatalf("entries = %d", n)
	}
}

func TestScheduler_NextRunInLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/Mexico_City")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s, err := New(Config{Spec: "0 9 * * *", Location: loc}, &fakeRunner{}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Start()
	defer s.Stop(context.Background())

	next := s.cron.Entries()[0].Next.In(loc)
	if next.Hour() != 9 || next.Minute() != 0 {
		t.Errorf("next run = %s", next)
	}
}

func TestRunOnce(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"success", nil},
		{"run in progress", reminder.ErrRunInProgress},
		{"fatal error", errors.New("resolve due tenancies: boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{err: tt.err}
			s, err := New(Config{Spec: "@daily", Timeout: time.Minute}, runner, zap.NewNop())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			s.runOnce()

			if runner.calls != 1 {
				t.Errorf("calls = %d", runner.calls)
			}
			if !runner.deadline {
				t.Error("scheduled run should carry a deadline")
			}
		})
	}
}

func TestStop_ReturnsWhenIdle(t *testing.T) {
	s, err := New(Config{Spec: "@hourly"}, &fakeRunner{}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	if ctx.Err() != nil {
		t.Fatal("stop should not wait for the deadline when no job runs")
	}
}
