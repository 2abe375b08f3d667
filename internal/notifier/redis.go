package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amishk599/jobscout/internal/model"
)

// Ensure RedisPublisher implements model.Notifier.
var _ model.Notifier = (*RedisPublisher)(nil)

// RedisPublisher announces each new posting's link on a Redis channel, the
// feed an enrichment monitor subscribes to when the store cannot NOTIFY.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	timeout time.Duration
}

// NewRedisPublisher publishes on channel through client.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, timeout: 5 * time.Second}
}

// Notify publishes one message per posting, stopping at the first error.
func (r *RedisPublisher) Notify(postings []model.JobPosting) error {
	if len(postings) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	for _, p := range postings {
		if err := r.client.Publish(ctx, r.channel, string(p.Link)).Err(); err != nil {
			return fmt.Errorf("publish %s: %w", p.Link, err)
		}
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisPublisher) Close() error {
	return r.client.Close()
}
