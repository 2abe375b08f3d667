// Package enrich resolves derived fields for stored postings by asking a
// text-generation model one question per field.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amishk599/jobscout/internal/canon"
	"github.com/amishk599/jobscout/internal/metrics"
	"github.com/amishk599/jobscout/internal/model"
)

// DefaultBatchSize is how many pending postings a sweep pulls at a time.
const DefaultBatchSize = 10

// Generator answers a prompt with free text. ai.LLMProvider satisfies it.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Listener delivers notification payloads. Next blocks until a payload
// arrives or ctx is done.
type Listener interface {
	Next(ctx context.Context) (string, error)
}

// Config tunes the queue.
type Config struct {
	BatchSize      int
	DescriptionCap int
}

// Queue treats every derived field as a work-item type over the store.
type Queue struct {
	store  model.FieldStore
	gen    Generator
	fields []model.FieldDescriptor
	cfg    Config
	logger *slog.Logger

	// Progress and Metrics are optional.
	Progress Progress
	Metrics  *metrics.Metrics
}

// NewQueue creates a queue over fields. Zero config values take defaults.
func NewQueue(store model.FieldStore, gen Generator, fields []model.FieldDescriptor, cfg Config, logger *slog.Logger) *Queue {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.DescriptionCap <= 0 {
		cfg.DescriptionCap = DefaultDescriptionCap
	}
	return &Queue{
		store:    store,
		gen:      gen,
		fields:   fields,
		cfg:      cfg,
		logger:   logger,
		Progress: nopProgress{},
	}
}

// Fields returns the descriptors the queue resolves.
func (q *Queue) Fields() []model.FieldDescriptor {
	return q.fields
}

// outcome is the resolution of one field for one posting.
type outcome struct {
	link  model.JobLink
	value any
	err   error // non-nil means the field failed
}

// resolve asks the model about one posting. Generation and parse failures
// come back in outcome.err; only context cancellation is returned as an
// error.
func (q *Queue) resolve(ctx context.Context, link model.JobLink, description string, f model.FieldDescriptor) (outcome, error) {
	prompt, err := BuildPrompt(description, f, q.cfg.DescriptionCap)
	if err != nil {
		return outcome{link: link, err: err}, nil
	}
	answer, err := q.gen.Complete(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcome{}, ctxErr
		}
		return outcome{link: link, err: &model.FieldError{Field: f.Name, Link: link, Err: err}}, nil
	}
	value, err := Coerce(f.Type, answer)
	if err != nil {
		return outcome{link: link, err: &model.FieldError{Field: f.Name, Link: link, Err: err}}, nil
	}
	return outcome{link: link, value: value}, nil
}

// apply writes an outcome back: the value when resolved, a failure tag
// otherwise.
func (q *Queue) apply(ctx context.Context, f model.FieldDescriptor, o outcome) error {
	if o.err != nil {
		q.logger.Warn("field failed", "field", f.Name, "link", string(o.link), "error", o.err)
		if err := q.store.MarkFailed(ctx, o.link, f); err != nil {
			return err
		}
		q.Metrics.IncFailed(f.Name)
		return nil
	}
	if err := q.store.WriteResolved(ctx, o.link, f, o.value); err != nil {
		return err
	}
	q.logger.Debug("field resolved", "field", f.Name, "link", string(o.link), "value", o.value)
	q.Metrics.IncResolved(f.Name)
	return nil
}

// ProcessOne resolves every pending field of a single posting. Fields that
// are already resolved or failed are left alone.
func (q *Queue) ProcessOne(ctx context.Context, link model.JobLink) error {
	for _, f := range q.fields {
		if err := q.ProcessField(ctx, link, f); err != nil {
			return err
		}
	}
	return nil
}

// ProcessField resolves f for link when it is pending and does nothing
// otherwise.
func (q *Queue) ProcessField(ctx context.Context, link model.JobLink, f model.FieldDescriptor) error {
	description, pending, err := q.store.PendingDescription(ctx, link, f)
	if err != nil {
		return fmt.Errorf("process %s: %w", link, err)
	}
	if !pending {
		return nil
	}
	q.Progress.Start(f.Name, 1)
	o, err := q.resolve(ctx, link, description, f)
	if err != nil {
		return err
	}
	if err := q.apply(ctx, f, o); err != nil {
		return fmt.Errorf("process %s: %w", link, err)
	}
	q.Progress.Advance(f.Name, 1)
	q.Progress.Finish(f.Name)
	q.logger.Info("updated field", "link", string(link), "field", f.Name, "failed", o.err != nil)
	return nil
}

// ProcessAll sweeps every field until no pending posting remains. Each
// batch is resolved item by item, then every result is written; a written
// item is no longer pending, so the sweep ends on the first empty batch.
func (q *Queue) ProcessAll(ctx context.Context) error {
	for _, f := range q.fields {
		if err := q.processField(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue) processField(ctx context.Context, f model.FieldDescriptor) error {
	total, err := q.store.CountPending(ctx, f)
	if err != nil {
		return fmt.Errorf("sweep %s: %w", f.Name, err)
	}
	q.logger.Info("sweeping field", "field", f.Name, "pending", total)
	q.Progress.Start(f.Name, total)
	defer q.Progress.Finish(f.Name)

	for {
		batch, err := q.store.ListPending(ctx, f, q.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("sweep %s: %w", f.Name, err)
		}
		if len(batch) == 0 {
			return nil
		}

		outcomes := make([]outcome, 0, len(batch))
		for _, item := range batch {
			o, err := q.resolve(ctx, item.Link, item.Description, f)
			if err != nil {
				return err
			}
			outcomes = append(outcomes, o)
		}
		for _, o := range outcomes {
			if err := q.apply(ctx, f, o); err != nil {
				return fmt.Errorf("sweep %s: %w", f.Name, err)
			}
		}
		q.Progress.Advance(f.Name, len(outcomes))
	}
}

// Monitor runs a catch-up sweep, then processes every link announced on
// l. Empty payloads are heartbeats. Monitor returns only when ctx is done
// or the listener fails for good.
func (q *Queue) Monitor(ctx context.Context, l Listener) error {
	if err := q.ProcessAll(ctx); err != nil {
		return err
	}
	q.logger.Info("listening for new postings")

	for {
		payload, err := l.Next(ctx)
		if err != nil {
			return err
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			q.logger.Debug("heartbeat")
			continue
		}
		q.Metrics.IncNotification()
		link := canon.Canonicalize(payload)
		if err := q.ProcessOne(ctx, link); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			q.logger.Error("processing notified posting", "link", string(link), "error", err)
		}
	}
}
