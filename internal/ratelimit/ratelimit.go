package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amishk599/jobscout/internal/retry"
)

// Throttle pauses a crawl after every threshold processed links. It is a
// single oversized token bucket: threshold tokens, refilled by sleeping
// for the pause duration once they are spent.
type Throttle struct {
	mu        sync.Mutex
	processed int
	threshold int           // links between pauses; 0 disables link pauses
	pause     time.Duration // how long each pause lasts
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *slog.Logger
}

// NewThrottle creates a throttle that pauses for pause after every
// threshold links. Both values are fixed for the lifetime of the throttle.
func NewThrottle(threshold int, pause time.Duration, logger *slog.Logger) *Throttle {
	return &Throttle{
		threshold: threshold,
		pause:     pause,
		sleep:     retry.Sleep,
		logger:    logger,
	}
}

// SetSleep replaces the function used to wait out a pause.
func (t *Throttle) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	t.sleep = fn
}

// Processed returns the number of links counted so far.
func (t *Throttle) Processed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processed
}

// PauseDuration returns the configured pause.
func (t *Throttle) PauseDuration() time.Duration {
	return t.pause
}

// Tick records one processed link and pauses when the count reaches a
// multiple of the threshold. Returns an error if ctx is cancelled while
// pausing.
func (t *Throttle) Tick(ctx context.Context) error {
	t.mu.Lock()
	t.processed++
	n := t.processed
	due := t.threshold > 0 && n%t.threshold == 0
	t.mu.Unlock()

	if !due {
		return nil
	}
	t.logger.Info("link threshold reached, pausing",
		"processed", n,
		"threshold", t.threshold,
		"pause", t.pause.String(),
	)
	return t.Pause(ctx)
}

// Pause sleeps for the configured duration.
func (t *Throttle) Pause(ctx context.Context) error {
	if err := t.sleep(ctx, t.pause); err != nil {
		return fmt.Errorf("throttle pause: %w", err)
	}
	return nil
}
