package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrClosed is returned by Next after the subscription is closed.
var ErrClosed = errors.New("notification subscription closed")

// RedisListener receives payloads from a Redis pub/sub channel. go-redis
// reconnects the subscription on its own.
type RedisListener struct {
	client *redis.Client
	pubsub *redis.PubSub
	msgs   <-chan *redis.Message
}

// NewRedisListener subscribes to channel and waits for the confirmation.
// The listener owns client; it is closed on failure and by Close.
func NewRedisListener(ctx context.Context, client *redis.Client, channel string) (*RedisListener, error) {
	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		client.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return &RedisListener{client: client, pubsub: pubsub, msgs: pubsub.Channel()}, nil
}

// Next returns the payload of the next message.
func (l *RedisListener) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case msg, ok := <-l.msgs:
		if !ok {
			return "", ErrClosed
		}
		return msg.Payload, nil
	}
}

// Close ends the subscription and the client.
func (l *RedisListener) Close() error {
	err := l.pubsub.Close()
	if cerr := l.client.Close(); err == nil {
		err = cerr
	}
	return err
}
