// Package notify delivers "new posting" notifications to the enrichment
// monitor. Payloads are job links; an empty payload is a heartbeat.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the channel the insert trigger and the crawler publish on.
const DefaultChannel = "jobs"

// Listener blocks until the next payload arrives or ctx is done.
type Listener interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// Open picks a listener for url: redis:// and rediss:// URLs use Redis
// pub/sub, postgres:// URLs use LISTEN on a dedicated connection.
func Open(ctx context.Context, url, channel string, logger *slog.Logger) (Listener, error) {
	switch {
	case strings.HasPrefix(url, "redis://"), strings.HasPrefix(url, "rediss://"):
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return NewRedisListener(ctx, redis.NewClient(opts), channel)
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return NewPostgresListener(ctx, url, channel, logger)
	default:
		return nil, fmt.Errorf("no notification backend for %q", url)
	}
}
