package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amishk599/jobscout/internal/model"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore keeps postings in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool    *pgxpool.Pool
	channel string // NOTIFY channel fed by the insert trigger
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_link          TEXT PRIMARY KEY,
	atime             TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	applied           BOOLEAN NOT NULL DEFAULT FALSE,
	job_title         TEXT,
	job_description   TEXT,
	organization_name TEXT,
	location          TEXT,
	department        TEXT,
	key_skills        TEXT,
	seniority_level   TEXT,
	employment_type   TEXT,
	industries        TEXT,
	job_function      TEXT,
	extra_criteria    JSONB NOT NULL DEFAULT '{}'::jsonb,
	source            TEXT,
	searched_keyword  TEXT
);
CREATE TABLE IF NOT EXISTS job_field_failures (
	job_link  TEXT NOT NULL REFERENCES jobs (job_link) ON DELETE CASCADE,
	field     TEXT NOT NULL,
	failed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (job_link, field)
);`

// The trigger publishes every newly inserted link so a monitoring
// enrichment process can pick it up immediately.
const postgresNotifyTrigger = `
CREATE OR REPLACE FUNCTION jobs_notify_insert() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('%s', NEW.job_link);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;
DROP TRIGGER IF EXISTS jobs_notify_insert ON jobs;
CREATE TRIGGER jobs_notify_insert AFTER INSERT ON jobs
	FOR EACH ROW EXECUTE FUNCTION jobs_notify_insert();`

// NewPostgresStore creates and verifies a pgxpool connection pool.
func NewPostgresStore(ctx context.Context, databaseURL, channel string) (*PostgresStore, error) {
	if channel != "" && !identRegex.MatchString(channel) {
		return nil, fmt.Errorf("notification channel %q must match %s", channel, identRegex)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return &PostgresStore{pool: pool, channel: channel}, nil
}

// Migrate creates the tables, the insert trigger and one column per field.
func (s *PostgresStore) Migrate(ctx context.Context, fields []model.FieldDescriptor) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("creating jobs tables: %w", err)
	}
	if s.channel != "" {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf(postgresNotifyTrigger, s.channel)); err != nil {
			return fmt.Errorf("creating notify trigger: %w", err)
		}
	}
	for _, f := range fields {
		if err := ValidateField(f); err != nil {
			return err
		}
		stmt := fmt.Sprintf("ALTER TABLE jobs ADD COLUMN IF NOT EXISTS %s %s",
			pgx.Identifier{f.Column()}.Sanitize(), strings.ToUpper(string(f.Type)))
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("adding column %s: %w", f.Column(), err)
		}
	}
	return nil
}

// Touch bumps atime for link and reports whether the row exists.
func (s *PostgresStore) Touch(ctx context.Context, link model.JobLink) (bool, error) {
	tag, err := s.pool.Exec(ctx, "UPDATE jobs SET atime = CURRENT_TIMESTAMP WHERE job_link = $1", string(link))
	if err != nil {
		return false, fmt.Errorf("touching %s: %w", link, err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertIfAbsent stores posting unless its link already exists.
func (s *PostgresStore) InsertIfAbsent(ctx context.Context, p model.JobPosting) (bool, error) {
	row, err := flattenCriteria(p)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `INSERT INTO jobs (
		job_link, applied, job_title, job_description, organization_name, location,
		department, key_skills, seniority_level, employment_type, industries, job_function,
		extra_criteria, source, searched_keyword
	) VALUES ($1, FALSE, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13, $14)
	ON CONFLICT (job_link) DO NOTHING`,
		string(p.Link), p.Title, p.Description, p.Organization, p.Location,
		row.criteria[model.CriteriaDepartment], row.criteria[model.CriteriaKeySkills],
		row.criteria[model.CriteriaSeniorityLevel], row.criteria[model.CriteriaEmploymentType],
		row.criteria[model.CriteriaIndustries], row.criteria[model.CriteriaJobFunction],
		row.extra, p.Source, p.SearchedKeyword,
	)
	if err != nil {
		return false, fmt.Errorf("inserting %s: %w", p.Link, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Get loads a stored posting.
func (s *PostgresStore) Get(ctx context.Context, link model.JobLink, fields ...model.FieldDescriptor) (model.JobPosting, bool, error) {
	var (
		p                                      model.JobPosting
		title, desc, org, loc, source, keyword *string
		dept, skills, seniority, emp, ind, fn  *string
		extra                                  string
	)
	err := s.pool.QueryRow(ctx, `SELECT job_link, applied, job_title, job_description, organization_name,
		location, department, key_skills, seniority_level, employment_type, industries, job_function,
		extra_criteria::text, source, searched_keyword, atime
		FROM jobs WHERE job_link = $1`, string(link)).Scan(
		&p.Link, &p.Applied, &title, &desc, &org, &loc,
		&dept, &skills, &seniority, &emp, &ind, &fn,
		&extra, &source, &keyword, &p.LastSeen,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.JobPosting{}, false, nil
	}
	if err != nil {
		return model.JobPosting{}, false, fmt.Errorf("loading %s: %w", link, err)
	}
	p.Title, p.Description, p.Organization, p.Location = deref(title), deref(desc), deref(org), deref(loc)
	p.Source, p.SearchedKeyword = deref(source), deref(keyword)
	p.Criteria, err = unflattenCriteria(map[string]*string{
		model.CriteriaDepartment:     dept,
		model.CriteriaKeySkills:      skills,
		model.CriteriaSeniorityLevel: seniority,
		model.CriteriaEmploymentType: emp,
		model.CriteriaIndustries:     ind,
		model.CriteriaJobFunction:    fn,
	}, extra)
	if err != nil {
		return model.JobPosting{}, false, err
	}
	if p.Derived, err = s.derived(ctx, link, fields); err != nil {
		return model.JobPosting{}, false, err
	}
	return p, true, nil
}

// derived reads the resolved values of fields for link.
func (s *PostgresStore) derived(ctx context.Context, link model.JobLink, fields []model.FieldDescriptor) (map[string]any, error) {
	out := make(map[string]any)
	if len(fields) == 0 {
		return out, nil
	}
	cols := make([]string, len(fields))
	dests := make([]any, len(fields))
	for i, f := range fields {
		if err := ValidateField(f); err != nil {
			return nil, err
		}
		cols[i] = pgx.Identifier{f.Column()}.Sanitize()
		if f.Type == model.FieldBoolean {
			dests[i] = new(*bool)
		} else {
			dests[i] = new(*int16)
		}
	}
	q := "SELECT " + strings.Join(cols, ", ") + " FROM jobs WHERE job_link = $1"
	if err := s.pool.QueryRow(ctx, q, string(link)).Scan(dests...); err != nil {
		return nil, fmt.Errorf("loading derived fields for %s: %w", link, err)
	}
	for i, f := range fields {
		switch d := dests[i].(type) {
		case **bool:
			if *d != nil {
				out[f.Name] = **d
			}
		case **int16:
			if *d != nil {
				out[f.Name] = **d
			}
		}
	}
	return out, nil
}

// SetApplied updates the applied flag for link.
func (s *PostgresStore) SetApplied(ctx context.Context, link model.JobLink, applied bool) (bool, error) {
	tag, err := s.pool.Exec(ctx, "UPDATE jobs SET applied = $1 WHERE job_link = $2", applied, string(link))
	if err != nil {
		return false, fmt.Errorf("setting applied for %s: %w", link, err)
	}
	return tag.RowsAffected() > 0, nil
}

// pgPendingClause selects postings whose field column is null and which
// carry no failure tag for the field; argPos is the placeholder index of
// the field name.
func pgPendingClause(f model.FieldDescriptor, argPos int) string {
	return fmt.Sprintf(`j.%s IS NULL AND NOT EXISTS (
		SELECT 1 FROM job_field_failures f WHERE f.job_link = j.job_link AND f.field = $%d)`,
		pgx.Identifier{f.Column()}.Sanitize(), argPos)
}

// PendingDescription returns link's description if field is pending for it.
func (s *PostgresStore) PendingDescription(ctx context.Context, link model.JobLink, f model.FieldDescriptor) (string, bool, error) {
	var desc *string
	q := "SELECT j.job_description FROM jobs j WHERE j.job_link = $1 AND " + pgPendingClause(f, 2)
	err := s.pool.QueryRow(ctx, q, string(link), f.Name).Scan(&desc)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up pending %s for %s: %w", f.Name, link, err)
	}
	return deref(desc), true, nil
}

// ListPending returns up to limit postings with field pending.
func (s *PostgresStore) ListPending(ctx context.Context, f model.FieldDescriptor, limit int) ([]model.PendingItem, error) {
	q := "SELECT j.job_link, j.job_description FROM jobs j WHERE " + pgPendingClause(f, 1) + " ORDER BY j.job_link LIMIT $2"
	rows, err := s.pool.Query(ctx, q, f.Name, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending %s: %w", f.Name, err)
	}
	defer rows.Close()

	var items []model.PendingItem
	for rows.Next() {
		var (
			link string
			desc *string
		)
		if err := rows.Scan(&link, &desc); err != nil {
			return nil, fmt.Errorf("scanning pending %s: %w", f.Name, err)
		}
		items = append(items, model.PendingItem{Link: model.JobLink(link), Description: deref(desc)})
	}
	return items, rows.Err()
}

// CountPending returns how many postings have field pending.
func (s *PostgresStore) CountPending(ctx context.Context, f model.FieldDescriptor) (int, error) {
	var n int
	q := "SELECT COUNT(*) FROM jobs j WHERE " + pgPendingClause(f, 1)
	if err := s.pool.QueryRow(ctx, q, f.Name).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting pending %s: %w", f.Name, err)
	}
	return n, nil
}

// WriteResolved stores value in the field's column.
func (s *PostgresStore) WriteResolved(ctx context.Context, link model.JobLink, f model.FieldDescriptor, value any) error {
	q := fmt.Sprintf("UPDATE jobs SET %s = $1 WHERE job_link = $2", pgx.Identifier{f.Column()}.Sanitize())
	if _, err := s.pool.Exec(ctx, q, value, string(link)); err != nil {
		return fmt.Errorf("writing %s for %s: %w", f.Name, link, err)
	}
	return nil
}

// MarkFailed tags field as failed for link. Repeated calls are no-ops.
func (s *PostgresStore) MarkFailed(ctx context.Context, link model.JobLink, f model.FieldDescriptor) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO job_field_failures (job_link, field) VALUES ($1, $2) ON CONFLICT (job_link, field) DO NOTHING",
		string(link), f.Name)
	if err != nil {
		return fmt.Errorf("marking %s failed for %s: %w", f.Name, link, err)
	}
	return nil
}

// CountFailed returns how many postings carry a failure tag for field.
func (s *PostgresStore) CountFailed(ctx context.Context, f model.FieldDescriptor) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM job_field_failures WHERE field = $1", f.Name).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting failed %s: %w", f.Name, err)
	}
	return n, nil
}

// ListFailed returns up to limit postings tagged as failed for field,
// most recent failure first.
func (s *PostgresStore) ListFailed(ctx context.Context, f model.FieldDescriptor, limit int) ([]model.FailedItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT j.job_link, j.job_title, j.organization_name, j.job_description, f.failed_at
		FROM job_field_failures f JOIN jobs j ON j.job_link = f.job_link
		WHERE f.field = $1 ORDER BY f.failed_at DESC, j.job_link LIMIT $2`, f.Name, limit)
	if err != nil {
		return nil, fmt.Errorf("listing failed %s: %w", f.Name, err)
	}
	defer rows.Close()

	var items []model.FailedItem
	for rows.Next() {
		var (
			item             model.FailedItem
			link             string
			title, org, desc *string
		)
		if err := rows.Scan(&link, &title, &org, &desc, &item.FailedAt); err != nil {
			return nil, fmt.Errorf("scanning failed %s: %w", f.Name, err)
		}
		item.Link = model.JobLink(link)
		item.Title, item.Organization, item.Description = deref(title), deref(org), deref(desc)
		items = append(items, item)
	}
	return items, rows.Err()
}

// ClearFailed removes failure tags for field on link, or on every posting
// when link is empty.
func (s *PostgresStore) ClearFailed(ctx context.Context, f model.FieldDescriptor, link model.JobLink) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM job_field_failures WHERE field = $1 AND ($2 = '' OR job_link = $2)",
		f.Name, string(link))
	if err != nil {
		return 0, fmt.Errorf("clearing failed %s: %w", f.Name, err)
	}
	return tag.RowsAffected(), nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
