package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/amishk599/jobscout/internal/retry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisListener_DeliversPayloads(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l, err := NewRedisListener(ctx, client, DefaultChannel)
	if err != nil {
		t.Fatalf("NewRedisListener: %v", err)
	}
	defer l.Close()

	mr.Publish(DefaultChannel, "")
	mr.Publish(DefaultChannel, "https://www.linkedin.com/jobs/view/1")

	for _, want := range []string{"", "https://www.linkedin.com/jobs/view/1"} {
		got, err := l.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != want {
			t.Errorf("payload = %q, want %q", got, want)
		}
	}
}

func TestRedisListener_SubscribeFailureClosesClient(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := NewRedisListener(ctx, client, DefaultChannel); err == nil {
		t.Fatal("expected subscribe to fail against a stopped server")
	}
	if err := client.Ping(ctx).Err(); !errors.Is(err, redis.ErrClosed) {
		t.Errorf("client should be closed, Ping returned %v", err)
	}
}

func TestRedisListener_NextHonoursContext(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l, err := NewRedisListener(context.Background(), client, DefaultChannel)
	if err != nil {
		t.Fatalf("NewRedisListener: %v", err)
	}
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPostgresListener_ReconnectBacksOffUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dials int
	var delays []time.Duration
	l := &PostgresListener{
		channel: DefaultChannel,
		backoff: retry.NewBackoff(time.Second, 8*time.Second, rand.New(rand.NewPCG(1, 2))),
		logger:  discardLogger(),
		connect: func(context.Context) (*pgx.Conn, error) {
			dials++
			if dials == 4 {
				cancel()
			}
			return nil, errors.New("connection refused")
		},
		sleep: func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return ctx.Err()
		},
	}

	_, err := l.Next(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if dials != 4 {
		t.Errorf("dials = %d, want 4", dials)
	}
	if len(delays) != 5 {
		t.Fatalf("sleeps = %d, want 5", len(delays))
	}
	for _, d := range delays {
		if d <= 0 || d > 8*time.Second {
			t.Errorf("delay %v outside (0, 8s]", d)
		}
	}
}

func TestOpen_RejectsUnknownScheme(t *testing.T) {
	if _, err := Open(context.Background(), "amqp://localhost", DefaultChannel, discardLogger()); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}
