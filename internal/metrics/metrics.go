// Package metrics exposes crawl and enrichment counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jobscout"

// Metrics holds every jobscout counter. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	LinksHarvested      prometheus.Counter
	PostingsStored      prometheus.Counter
	PostingsSkipped     prometheus.Counter
	ExtractionsFailed   prometheus.Counter
	SearchesExhausted   prometheus.Counter
	FieldsResolved      *prometheus.CounterVec
	FieldsFailed        *prometheus.CounterVec
	NotificationsPassed prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the counters on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LinksHarvested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "crawl", Name: "links_harvested_total",
			Help: "Detail links harvested from search results.",
		}),
		PostingsStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "crawl", Name: "postings_stored_total",
			Help: "Postings inserted into the store.",
		}),
		PostingsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "crawl", Name: "postings_skipped_total",
			Help: "Harvested links already present in the store.",
		}),
		ExtractionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "crawl", Name: "extractions_exhausted_total",
			Help: "Detail pages whose extraction ran out of attempts.",
		}),
		SearchesExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "crawl", Name: "searches_exhausted_total",
			Help: "Keyword/location searches abandoned after every attempt failed.",
		}),
		FieldsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "enrich", Name: "fields_resolved_total",
			Help: "Derived field values written.",
		}, []string{"field"}),
		FieldsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "enrich", Name: "fields_failed_total",
			Help: "Derived fields tagged as failed.",
		}, []string{"field"}),
		NotificationsPassed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "enrich", Name: "notifications_total",
			Help: "Non-empty notifications received in monitor mode.",
		}),
		gatherer: reg,
	}
}

func (m *Metrics) IncHarvested(n int) {
	if m != nil {
		m.LinksHarvested.Add(float64(n))
	}
}

func (m *Metrics) IncStored() {
	if m != nil {
		m.PostingsStored.Inc()
	}
}

func (m *Metrics) IncSkipped() {
	if m != nil {
		m.PostingsSkipped.Inc()
	}
}

func (m *Metrics) IncExtractionFailed() {
	if m != nil {
		m.ExtractionsFailed.Inc()
	}
}

func (m *Metrics) IncSearchExhausted() {
	if m != nil {
		m.SearchesExhausted.Inc()
	}
}

func (m *Metrics) IncResolved(field string) {
	if m != nil {
		m.FieldsResolved.WithLabelValues(field).Inc()
	}
}

func (m *Metrics) IncFailed(field string) {
	if m != nil {
		m.FieldsFailed.WithLabelValues(field).Inc()
	}
}

func (m *Metrics) IncNotification() {
	if m != nil {
		m.NotificationsPassed.Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
