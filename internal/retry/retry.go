package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Range is an inclusive integer range from which attempt budgets and link
// thresholds are drawn.
type Range struct {
	Min int
	Max int
}

// Draw returns a uniformly random value in [Min, Max]. A degenerate or
// inverted range yields Min.
func (r Range) Draw(rng *rand.Rand) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.IntN(r.Max-r.Min+1)
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// DurationRange is an inclusive range of pause durations.
type DurationRange struct {
	Min time.Duration
	Max time.Duration
}

// Draw returns a uniformly random duration in [Min, Max].
func (r DurationRange) Draw(rng *rand.Rand) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rng.Int64N(int64(r.Max-r.Min)+1))
}

func (r DurationRange) String() string {
	return fmt.Sprintf("%s-%s", r.Min, r.Max)
}

// ErrExhausted is returned by Do when every attempt failed.
var ErrExhausted = errors.New("retry budget exhausted")

// Do calls fn until it succeeds or attempts run out, sleeping delay between
// failed attempts. onErr, if set, observes every failure with its 1-based
// attempt number. The returned error wraps ErrExhausted and the last failure.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func(attempt int) error, onErr func(attempt int, err error)) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err
		if onErr != nil {
			onErr(attempt, err)
		}
		if attempt < attempts {
			if err := Sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
	if lastErr == nil {
		return ErrExhausted
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

// Sleep waits for d or until ctx is done. Non-positive durations return
// immediately unless ctx is already cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Backoff computes exponential delays with ±30% jitter.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
	rng  *rand.Rand
}

// NewBackoff returns a Backoff starting at base and capped at max.
func NewBackoff(base, max time.Duration, rng *rand.Rand) *Backoff {
	return &Backoff{Base: base, Max: max, rng: rng}
}

// Delay returns the delay before the given 1-based retry attempt.
func (b *Backoff) Delay(attempt int) time.Duration {
	// Exponential: Base * 2^(attempt-1)
	delay := b.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			delay = b.Max
			break
		}
	}

	jitter := float64(delay) * 0.3
	delay = time.Duration(float64(delay) + (b.rng.Float64()*2-1)*jitter)
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	return delay
}
