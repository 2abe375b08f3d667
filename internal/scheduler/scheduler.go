// Package scheduler repeats a crawl on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled run. Its error is logged; the schedule continues.
type Job func(ctx context.Context) error

// Scheduler runs a job immediately and then on every tick of a cron spec.
// A tick that arrives while the previous run is still going is skipped.
type Scheduler struct {
	spec   string
	job    Job
	logger *slog.Logger
	cron   *cron.Cron
}

// New validates spec (standard five-field cron or a descriptor such as
// "@every 24h") and creates a scheduler for job.
func New(spec string, job Job, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		spec:   spec,
		job:    job,
		logger: logger,
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
	}, nil
}

// Run starts the loop. It runs one immediate cycle, then fires on the
// schedule. It returns nil when ctx is cancelled (graceful shutdown), after
// any in-flight run has returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", "schedule", s.spec)

	s.runOnce(ctx)
	if ctx.Err() != nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()

	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.job(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduled run failed", "error", err)
	}
	if next := s.next(); !next.IsZero() {
		s.logger.Info("next scheduled run", "at", next.Format("2006-01-02 15:04:05"))
	}
}

// next is zero until the cron loop has started.
func (s *Scheduler) next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
