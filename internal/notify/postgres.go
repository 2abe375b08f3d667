package notify

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/amishk599/jobscout/internal/retry"
)

// PostgresListener waits on LISTEN over its own connection, outside any
// pool, and reconnects with backoff when the connection drops.
type PostgresListener struct {
	dsn     string
	channel string
	conn    *pgx.Conn
	backoff *retry.Backoff
	logger  *slog.Logger

	connect func(ctx context.Context) (*pgx.Conn, error)
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewPostgresListener connects and subscribes to channel.
func NewPostgresListener(ctx context.Context, dsn, channel string, logger *slog.Logger) (*PostgresListener, error) {
	l := &PostgresListener{
		dsn:     dsn,
		channel: channel,
		backoff: retry.NewBackoff(time.Second, time.Minute, rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))),
		logger:  logger,
		sleep:   retry.Sleep,
	}
	l.connect = l.dial

	conn, err := l.connect(ctx)
	if err != nil {
		return nil, err
	}
	l.conn = conn
	return l, nil
}

func (l *PostgresListener) dial(ctx context.Context) (*pgx.Conn, error) {
	c, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return nil, fmt.Errorf("connect for notifications: %w", err)
	}
	if _, err := c.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("listen %s: %w", l.channel, err)
	}
	return c, nil
}

// Next returns the payload of the next notification on the channel.
func (l *PostgresListener) Next(ctx context.Context) (string, error) {
	attempt := 0
	for {
		if l.conn != nil {
			n, err := l.conn.WaitForNotification(ctx)
			if err == nil {
				return n.Payload, nil
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			l.logger.Warn("error waiting for notification, reconnecting", "error", err)
			l.conn.Close(context.Background())
			l.conn = nil
		}

		attempt++
		if err := l.sleep(ctx, l.backoff.Delay(attempt)); err != nil {
			return "", err
		}
		conn, err := l.connect(ctx)
		if err != nil {
			l.logger.Warn("failed to reconnect for notifications", "attempt", attempt, "error", err)
			continue
		}
		l.logger.Info("notification listener reconnected", "channel", l.channel)
		l.conn = conn
		attempt = 0
	}
}

// Close releases the listening connection.
func (l *PostgresListener) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close(context.Background())
}
