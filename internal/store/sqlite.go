package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/jobscout/internal/model"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps postings in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_link          TEXT PRIMARY KEY,
	atime             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
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
	extra_criteria    TEXT NOT NULL DEFAULT '{}',
	source            TEXT,
	searched_keyword  TEXT
);
CREATE TABLE IF NOT EXISTS job_field_failures (
	job_link  TEXT NOT NULL,
	field     TEXT NOT NULL,
	failed_at INTEGER NOT NULL DEFAULT (CAST(strftime('%s', 'now') AS INTEGER)),
	PRIMARY KEY (job_link, field)
);`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the base tables exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating jobs tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate adds a column for every derived field that does not have one yet.
func (s *SQLiteStore) Migrate(ctx context.Context, fields []model.FieldDescriptor) error {
	existing := make(map[string]bool)
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info(jobs)")
	if err != nil {
		return fmt.Errorf("reading jobs columns: %w", err)
	}
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("scanning jobs columns: %w", err)
		}
		existing[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading jobs columns: %w", err)
	}

	for _, f := range fields {
		if err := ValidateField(f); err != nil {
			return err
		}
		if existing[f.Column()] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE jobs ADD COLUMN %s %s", quoteIdent(f.Column()), strings.ToUpper(string(f.Type)))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("adding column %s: %w", f.Column(), err)
		}
	}
	return nil
}

// Touch bumps atime for link and reports whether the row exists.
func (s *SQLiteStore) Touch(ctx context.Context, link model.JobLink) (bool, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE jobs SET atime = CURRENT_TIMESTAMP WHERE job_link = ?", string(link))
	if err != nil {
		return false, fmt.Errorf("touching %s: %w", link, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("touching %s: %w", link, err)
	}
	return n > 0, nil
}

// InsertIfAbsent stores posting unless its link already exists.
func (s *SQLiteStore) InsertIfAbsent(ctx context.Context, p model.JobPosting) (bool, error) {
	row, err := flattenCriteria(p)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO jobs (
		job_link, applied, job_title, job_description, organization_name, location,
		department, key_skills, seniority_level, employment_type, industries, job_function,
		extra_criteria, source, searched_keyword
	) VALUES (?, FALSE, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting %s: %w", p.Link, err)
	}
	return n > 0, nil
}

// Get loads a stored posting.
func (s *SQLiteStore) Get(ctx context.Context, link model.JobLink, fields ...model.FieldDescriptor) (model.JobPosting, bool, error) {
	var (
		p                                      model.JobPosting
		title, desc, org, loc, source, keyword sql.NullString
		dept, skills, seniority, emp, ind, fn  sql.NullString
		extra                                  string
	)
	err := s.db.QueryRowContext(ctx, `SELECT job_link, applied, job_title, job_description, organization_name,
		location, department, key_skills, seniority_level, employment_type, industries, job_function,
		extra_criteria, source, searched_keyword
		FROM jobs WHERE job_link = ?`, string(link)).Scan(
		&p.Link, &p.Applied, &title, &desc, &org, &loc,
		&dept, &skills, &seniority, &emp, &ind, &fn,
		&extra, &source, &keyword,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.JobPosting{}, false, nil
	}
	if err != nil {
		return model.JobPosting{}, false, fmt.Errorf("loading %s: %w", link, err)
	}
	p.Title, p.Description, p.Organization, p.Location = title.String, desc.String, org.String, loc.String
	p.Source, p.SearchedKeyword = source.String, keyword.String
	p.Criteria, err = unflattenCriteria(map[string]*string{
		model.CriteriaDepartment:     nullPtr(dept),
		model.CriteriaKeySkills:      nullPtr(skills),
		model.CriteriaSeniorityLevel: nullPtr(seniority),
		model.CriteriaEmploymentType: nullPtr(emp),
		model.CriteriaIndustries:     nullPtr(ind),
		model.CriteriaJobFunction:    nullPtr(fn),
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
func (s *SQLiteStore) derived(ctx context.Context, link model.JobLink, fields []model.FieldDescriptor) (map[string]any, error) {
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
		cols[i] = quoteIdent(f.Column())
		if f.Type == model.FieldBoolean {
			dests[i] = new(sql.NullBool)
		} else {
			dests[i] = new(sql.NullInt64)
		}
	}
	q := "SELECT " + strings.Join(cols, ", ") + " FROM jobs WHERE job_link = ?"
	if err := s.db.QueryRowContext(ctx, q, string(link)).Scan(dests...); err != nil {
		return nil, fmt.Errorf("loading derived fields for %s: %w", link, err)
	}
	for i, f := range fields {
		switch d := dests[i].(type) {
		case *sql.NullBool:
			if d.Valid {
				out[f.Name] = d.Bool
			}
		case *sql.NullInt64:
			if d.Valid {
				out[f.Name] = int16(d.Int64)
			}
		}
	}
	return out, nil
}

// SetApplied updates the applied flag for link.
func (s *SQLiteStore) SetApplied(ctx context.Context, link model.JobLink, applied bool) (bool, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE jobs SET applied = ? WHERE job_link = ?", applied, string(link))
	if err != nil {
		return false, fmt.Errorf("setting applied for %s: %w", link, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("setting applied for %s: %w", link, err)
	}
	return n > 0, nil
}

// sqlitePendingClause selects postings whose field column is null and which carry
// no failure tag for the field. It expects the field name as its only arg.
func sqlitePendingClause(f model.FieldDescriptor) string {
	return fmt.Sprintf(`j.%s IS NULL AND NOT EXISTS (
		SELECT 1 FROM job_field_failures f WHERE f.job_link = j.job_link AND f.field = ?)`, quoteIdent(f.Column()))
}

// PendingDescription returns link's description if field is pending for it.
func (s *SQLiteStore) PendingDescription(ctx context.Context, link model.JobLink, f model.FieldDescriptor) (string, bool, error) {
	var desc sql.NullString
	q := "SELECT j.job_description FROM jobs j WHERE j.job_link = ? AND " + sqlitePendingClause(f)
	err := s.db.QueryRowContext(ctx, q, string(link), f.Name).Scan(&desc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up pending %s for %s: %w", f.Name, link, err)
	}
	return desc.String, true, nil
}

// ListPending returns up to limit postings with field pending.
func (s *SQLiteStore) ListPending(ctx context.Context, f model.FieldDescriptor, limit int) ([]model.PendingItem, error) {
	q := "SELECT j.job_link, j.job_description FROM jobs j WHERE " + sqlitePendingClause(f) + " ORDER BY j.job_link LIMIT ?"
	rows, err := s.db.QueryContext(ctx, q, f.Name, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending %s: %w", f.Name, err)
	}
	defer rows.Close()

	var items []model.PendingItem
	for rows.Next() {
		var (
			link string
			desc sql.NullString
		)
		if err := rows.Scan(&link, &desc); err != nil {
			return nil, fmt.Errorf("scanning pending %s: %w", f.Name, err)
		}
		items = append(items, model.PendingItem{Link: model.JobLink(link), Description: desc.String})
	}
	return items, rows.Err()
}

// CountPending returns how many postings have field pending.
func (s *SQLiteStore) CountPending(ctx context.Context, f model.FieldDescriptor) (int, error) {
	var n int
	q := "SELECT COUNT(*) FROM jobs j WHERE " + sqlitePendingClause(f)
	if err := s.db.QueryRowContext(ctx, q, f.Name).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting pending %s: %w", f.Name, err)
	}
	return n, nil
}

// WriteResolved stores value in the field's column.
func (s *SQLiteStore) WriteResolved(ctx context.Context, link model.JobLink, f model.FieldDescriptor, value any) error {
	q := fmt.Sprintf("UPDATE jobs SET %s = ? WHERE job_link = ?", quoteIdent(f.Column()))
	if _, err := s.db.ExecContext(ctx, q, value, string(link)); err != nil {
		return fmt.Errorf("writing %s for %s: %w", f.Name, link, err)
	}
	return nil
}

// MarkFailed tags field as failed for link. Repeated calls are no-ops.
func (s *SQLiteStore) MarkFailed(ctx context.Context, link model.JobLink, f model.FieldDescriptor) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO job_field_failures (job_link, field) VALUES (?, ?) ON CONFLICT (job_link, field) DO NOTHING",
		string(link), f.Name)
	if err != nil {
		return fmt.Errorf("marking %s failed for %s: %w", f.Name, link, err)
	}
	return nil
}

// CountFailed returns how many postings carry a failure tag for field.
func (s *SQLiteStore) CountFailed(ctx context.Context, f model.FieldDescriptor) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM job_field_failures WHERE field = ?", f.Name).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting failed %s: %w", f.Name, err)
	}
	return n, nil
}

// ListFailed returns up to limit postings tagged as failed for field,
// most recent failure first.
func (s *SQLiteStore) ListFailed(ctx context.Context, f model.FieldDescriptor, limit int) ([]model.FailedItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT j.job_link, j.job_title, j.organization_name, j.job_description, f.failed_at
		FROM job_field_failures f JOIN jobs j ON j.job_link = f.job_link
		WHERE f.field = ? ORDER BY f.failed_at DESC, j.job_link LIMIT ?`, f.Name, limit)
	if err != nil {
		return nil, fmt.Errorf("listing failed %s: %w", f.Name, err)
	}
	defer rows.Close()

	var items []model.FailedItem
	for rows.Next() {
		var (
			link             string
			title, org, desc sql.NullString
			failedAt         int64
		)
		if err := rows.Scan(&link, &title, &org, &desc, &failedAt); err != nil {
			return nil, fmt.Errorf("scanning failed %s: %w", f.Name, err)
		}
		items = append(items, model.FailedItem{
			Link:         model.JobLink(link),
			Title:        title.String,
			Organization: org.String,
			Description:  desc.String,
			FailedAt:     time.Unix(failedAt, 0),
		})
	}
	return items, rows.Err()
}

// ClearFailed removes failure tags for field on link, or on every posting
// when link is empty.
func (s *SQLiteStore) ClearFailed(ctx context.Context, f model.FieldDescriptor, link model.JobLink) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM job_field_failures WHERE field = ? AND (? = '' OR job_link = ?)",
		f.Name, string(link), string(link))
	if err != nil {
		return 0, fmt.Errorf("clearing failed %s: %w", f.Name, err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func nullPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
