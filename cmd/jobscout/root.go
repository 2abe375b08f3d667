package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/amishk599/jobscout/internal/config"
	"github.com/amishk599/jobscout/internal/metrics"
	"github.com/amishk599/jobscout/internal/model"
	"github.com/amishk599/jobscout/internal/notifier"
	"github.com/amishk599/jobscout/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobscout",
	Short: "Crawl job postings and derive fields from their descriptions",
	Long: "jobscout crawls public job search results into a dedup store and " +
		"resolves derived fields (years of experience, ...) with an LLM.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: "+config.EnvPath+" env var or ./"+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openStore opens the store named by dsn and migrates one column per
// configured field.
func openStore(ctx context.Context, dsn string, cfg *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, dsn, cfg.Notify.Channel)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(ctx, cfg.Enrich.Fields); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return st, nil
}

// setupNotifier builds the configured notifier, adding a Redis publisher
// when notify.publish_url is set. The returned func releases its clients.
func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (model.Notifier, func(), error) {
	var n model.Notifier
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		n = notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		n = notifier.NewLogNotifier(logger)
	}

	if cfg.Notify.PublishURL == "" {
		return n, func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.Notify.PublishURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse notify.publish_url: %w", err)
	}
	pub := notifier.NewRedisPublisher(redis.NewClient(opts), cfg.Notify.Channel)
	logger.Info("publishing new postings to redis", "channel", cfg.Notify.Channel)
	return notifier.Multi{n, pub}, func() { pub.Close() }, nil
}

// setupMetrics serves /metrics on metrics.addr until ctx is done. It
// returns nil when no address is configured; Metrics methods accept nil.
func setupMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) *metrics.Metrics {
	if cfg.Metrics.Addr == "" {
		return nil
	}
	m := metrics.New(prometheus.NewRegistry())
	go func() {
		if err := m.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return m
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
