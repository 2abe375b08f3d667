// Package store persists job postings and derived-field state. PostgreSQL is
// the production backend; SQLite serves local runs and tests.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/amishk599/jobscout/internal/model"
)

// Store is the full dedup store: crawl-side writes, enrichment queue state
// and failure-tag administration.
type Store interface {
	model.JobStore
	model.FieldStore
	model.FailureAdmin
	// Get loads a stored posting; the bool is false when link is unknown.
	// Resolved values of the given derived fields fill JobPosting.Derived.
	Get(ctx context.Context, link model.JobLink, fields ...model.FieldDescriptor) (model.JobPosting, bool, error)
	// SetApplied records whether the posting was applied to and reports
	// whether link exists.
	SetApplied(ctx context.Context, link model.JobLink, applied bool) (bool, error)
	// Migrate creates the schema and one column per derived field.
	Migrate(ctx context.Context, fields []model.FieldDescriptor) error
	Close() error
}

// Open picks a backend from the connection string: postgres:// and
// postgresql:// URLs use PostgreSQL; sqlite:// URLs and paths ending in
// .db or .sqlite use SQLite.
func Open(ctx context.Context, dsn string, channel string) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresStore(ctx, dsn, channel)
	case strings.HasPrefix(dsn, "sqlite://"):
		return NewSQLiteStore(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"):
		return NewSQLiteStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported store connection string %q", redact(dsn))
	}
}

// IsPostgres reports whether dsn selects the PostgreSQL backend.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

var identRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateField rejects descriptors whose column name cannot be used as a
// bare SQL identifier or whose type is unknown.
func ValidateField(f model.FieldDescriptor) error {
	if !identRegex.MatchString(f.Name) {
		return fmt.Errorf("field name %q must match %s", f.Name, identRegex)
	}
	switch f.Type {
	case model.FieldBoolean, model.FieldSmallint:
	default:
		return fmt.Errorf("field %s: unknown type %q", f.Name, f.Type)
	}
	return nil
}

// postingRow flattens a posting into the fixed columns of the jobs table.
// Criteria outside the column set are JSON-encoded into extra_criteria.
type postingRow struct {
	criteria map[string]*string
	extra    string
}

func flattenCriteria(p model.JobPosting) (postingRow, error) {
	row := postingRow{criteria: make(map[string]*string, len(model.CriteriaColumns))}
	extra := make(map[string]string)
	for k, v := range p.Criteria {
		known := false
		for _, col := range model.CriteriaColumns {
			if k == col {
				val := v
				row.criteria[col] = &val
				known = true
				break
			}
		}
		if !known {
			extra[k] = v
		}
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return row, fmt.Errorf("encoding extra criteria: %w", err)
	}
	row.extra = string(b)
	return row, nil
}

func unflattenCriteria(cols map[string]*string, extra string) (map[string]string, error) {
	out := make(map[string]string)
	if extra != "" {
		if err := json.Unmarshal([]byte(extra), &out); err != nil {
			return nil, fmt.Errorf("decoding extra criteria: %w", err)
		}
	}
	for k, v := range cols {
		if v != nil {
			out[k] = *v
		}
	}
	return out, nil
}

func redact(dsn string) string {
	if i := strings.Index(dsn, "@"); i >= 0 {
		if j := strings.Index(dsn, "://"); j >= 0 && j < i {
			return dsn[:j+3] + "***" + dsn[i:]
		}
	}
	return dsn
}
