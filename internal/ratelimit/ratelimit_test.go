package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSleep replaces the real sleep so tests never block.
type recordingSleep struct {
	calls []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	return nil
}

func TestTick_PausesEveryThreshold(t *testing.T) {
	th := NewThrottle(3, 2*time.Minute, discardLogger())
	rec := &recordingSleep{}
	th.sleep = rec.sleep

	for i := 0; i < 7; i++ {
		if err := th.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	// Pauses after link 3 and link 6.
	if len(rec.calls) != 2 {
		t.Fatalf("expected 2 pauses, got %d", len(rec.calls))
	}
	for _, d := range rec.calls {
		if d != 2*time.Minute {
			t.Errorf("pause = %v, want 2m", d)
		}
	}
	if th.Processed() != 7 {
		t.Errorf("Processed() = %d, want 7", th.Processed())
	}
}

func TestTick_ZeroThresholdNeverPauses(t *testing.T) {
	th := NewThrottle(0, time.Minute, discardLogger())
	rec := &recordingSleep{}
	th.sleep = rec.sleep

	for i := 0; i < 10; i++ {
		th.Tick(context.Background())
	}
	if len(rec.calls) != 0 {
		t.Fatalf("expected no pauses, got %d", len(rec.calls))
	}
}

func TestPause_ContextCancellation(t *testing.T) {
	th := NewThrottle(1, 5*time.Second, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := th.Tick(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("expected cancelled pause to return promptly")
	}
}

func TestPause_ZeroDurationReturnsImmediately(t *testing.T) {
	th := NewThrottle(1, 0, discardLogger())
	start := time.Now()
	if err := th.Pause(context.Background()); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("expected zero pause to return immediately")
	}
}
