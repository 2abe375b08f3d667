package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestRange_DrawWithinBounds(t *testing.T) {
	rng := testRand()
	r := Range{Min: 5, Max: 8}
	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		v := r.Draw(rng)
		if v < 5 || v > 8 {
			t.Fatalf("Draw() = %d, want within [5, 8]", v)
		}
		seen[v] = true
	}
	if len(seen) != 4 {
		t.Errorf("expected every value in [5, 8] to be drawn, got %v", seen)
	}
}

func TestRange_DegenerateReturnsMin(t *testing.T) {
	rng := testRand()
	if got := (Range{Min: 3, Max: 3}).Draw(rng); got != 3 {
		t.Errorf("Draw() = %d, want 3", got)
	}
	if got := (Range{Min: 7, Max: 2}).Draw(rng); got != 7 {
		t.Errorf("Draw() on inverted range = %d, want 7", got)
	}
}

func TestDurationRange_DrawWithinBounds(t *testing.T) {
	rng := testRand()
	r := DurationRange{Min: time.Minute, Max: 3 * time.Minute}
	for i := 0; i < 500; i++ {
		d := r.Draw(rng)
		if d < time.Minute || d > 3*time.Minute {
			t.Fatalf("Draw() = %v, want within [1m, 3m]", d)
		}
	}
}

func TestDo_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func(int) error {
		calls++
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_SucceedsOnThirdAttempt(t *testing.T) {
	var failures []int
	err := Do(context.Background(), 5, 0, func(attempt int) error {
		if attempt < 3 {
			return errors.New("not yet")
		}
		return nil
	}, func(attempt int, _ error) {
		failures = append(failures, attempt)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failures) != 2 || failures[0] != 1 || failures[1] != 2 {
		t.Fatalf("failures = %v, want [1 2]", failures)
	}
}

func TestDo_GivesUpAfterBudget(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Do(context.Background(), 4, 0, func(int) error {
		calls++
		return boom
	}, nil)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected last error to be wrapped, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, 3, time.Second, func(int) error {
		calls++
		cancel()
		return errors.New("fail")
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, time.Second, testRand())
	first := b.Delay(1)
	if first < 70*time.Millisecond || first > 130*time.Millisecond {
		t.Errorf("Delay(1) = %v, want 100ms ±30%%", first)
	}
	third := b.Delay(3)
	if third < 280*time.Millisecond || third > 520*time.Millisecond {
		t.Errorf("Delay(3) = %v, want 400ms ±30%%", third)
	}
	if capped := b.Delay(20); capped > time.Second {
		t.Errorf("Delay(20) = %v, want <= 1s", capped)
	}
}
