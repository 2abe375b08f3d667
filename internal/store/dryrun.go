package store

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/amishk599/jobscout/internal/model"
)

// DryRunStore wraps a FieldStore for dry-run enrichment: reads pass
// through, writes are printed instead of applied.
//
// Because nothing is written, the underlying store keeps returning the same
// pending postings. DryRunStore remembers every (link, field) it has
// reported a mutation for and hides it from later reads of that field so a
// full pass still terminates.
type DryRunStore struct {
	inner model.FieldStore
	out   io.Writer

	mu   sync.Mutex
	seen map[string]map[model.JobLink]struct{} // field name -> reported links
}

var _ model.FieldStore = (*DryRunStore)(nil)

// NewDryRunStore returns a dry-run decorator printing mutations to out.
func NewDryRunStore(inner model.FieldStore, out io.Writer) *DryRunStore {
	return &DryRunStore{inner: inner, out: out, seen: make(map[string]map[model.JobLink]struct{})}
}

func (d *DryRunStore) isSeen(link model.JobLink, f model.FieldDescriptor) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[f.Name][link]
	return ok
}

func (d *DryRunStore) markSeen(link model.JobLink, f model.FieldDescriptor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	links, ok := d.seen[f.Name]
	if !ok {
		links = make(map[model.JobLink]struct{})
		d.seen[f.Name] = links
	}
	links[link] = struct{}{}
}

func (d *DryRunStore) seenCount(f model.FieldDescriptor) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen[f.Name])
}

func (d *DryRunStore) PendingDescription(ctx context.Context, link model.JobLink, f model.FieldDescriptor) (string, bool, error) {
	if d.isSeen(link, f) {
		return "", false, nil
	}
	return d.inner.PendingDescription(ctx, link, f)
}

// ListPending over-fetches by the number of links already reported for f so that
// filtering them out still yields up to limit fresh items.
func (d *DryRunStore) ListPending(ctx context.Context, f model.FieldDescriptor, limit int) ([]model.PendingItem, error) {
	items, err := d.inner.ListPending(ctx, f, limit+d.seenCount(f))
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if d.isSeen(it.Link, f) {
			continue
		}
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (d *DryRunStore) CountPending(ctx context.Context, f model.FieldDescriptor) (int, error) {
	n, err := d.inner.CountPending(ctx, f)
	if err != nil {
		return 0, err
	}
	n -= d.seenCount(f)
	if n < 0 {
		n = 0
	}
	return n, nil
}

func (d *DryRunStore) WriteResolved(_ context.Context, link model.JobLink, f model.FieldDescriptor, value any) error {
	d.markSeen(link, f)
	fmt.Fprintf(d.out, "[dry-run] UPDATE jobs SET %s = %v WHERE job_link = %s\n", f.Column(), value, link)
	return nil
}

func (d *DryRunStore) MarkFailed(_ context.Context, link model.JobLink, f model.FieldDescriptor) error {
	d.markSeen(link, f)
	fmt.Fprintf(d.out, "[dry-run] mark %s failed for %s\n", f.Name, link)
	return nil
}
