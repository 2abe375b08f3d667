package model

import (
	"context"
	"time"
)

// JobLink is a canonical job URL (scheme + host + path). It is the unique key
// of a posting: two links are the same job iff their canonical forms match.
type JobLink string

// Canonical criteria keys. Source labels outside this set are stored
// lower-cased and verbatim in JobPosting.Criteria.
const (
	CriteriaDepartment     = "department"
	CriteriaKeySkills      = "key_skills"
	CriteriaSeniorityLevel = "seniority_level"
	CriteriaEmploymentType = "employment_type"
	CriteriaIndustries     = "industries"
	CriteriaJobFunction    = "job_function"
)

// CriteriaColumns are the criteria keys with a dedicated store column.
var CriteriaColumns = []string{
	CriteriaDepartment,
	CriteriaKeySkills,
	CriteriaSeniorityLevel,
	CriteriaEmploymentType,
	CriteriaIndustries,
	CriteriaJobFunction,
}

// JobPosting is one scraped job detail page.
type JobPosting struct {
	Link            JobLink
	Title           string
	Description     string // raw markup, never sanitized
	Organization    string
	Location        string
	Criteria        map[string]string // canonical or lower-cased source keys
	Source          string            // e.g. "linkedin"
	SearchedKeyword string
	Applied         bool
	LastSeen        time.Time
	// Derived holds resolved derived fields by name: bool for boolean
	// fields, int16 for smallint fields. Pending fields are absent.
	Derived map[string]any
}

// FieldType is the storage type of a derived field.
type FieldType string

const (
	FieldBoolean  FieldType = "boolean"
	FieldSmallint FieldType = "smallint"
)

// DerivedFieldPrefix is prepended to a field name to form its store column.
const DerivedFieldPrefix = "ai_"

// FieldDescriptor statically describes a derived field: what it is called,
// how its value is stored and which question extracts it.
type FieldDescriptor struct {
	Name   string
	Type   FieldType
	Prompt string
}

// Column returns the store column holding the field's value.
func (f FieldDescriptor) Column() string {
	return DerivedFieldPrefix + f.Name
}

// FieldState is the lifecycle state of one derived field on one posting.
type FieldState int

const (
	FieldPending FieldState = iota
	FieldResolved
	FieldFailed
)

func (s FieldState) String() string {
	switch s {
	case FieldPending:
		return "pending"
	case FieldResolved:
		return "resolved"
	case FieldFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PendingItem is a posting whose derived field still needs a value.
type PendingItem struct {
	Link        JobLink
	Description string
}

// FailedItem is a posting whose derived field is tagged as failed.
type FailedItem struct {
	Link         JobLink
	Title        string
	Organization string
	Description  string
	FailedAt     time.Time
}

// JobStore is the crawl side of the dedup store.
type JobStore interface {
	// Touch bumps the last-seen timestamp and reports whether the row existed.
	Touch(ctx context.Context, link JobLink) (bool, error)
	// InsertIfAbsent stores a posting with applied=false. An existing link is
	// left untouched and reported as not inserted.
	InsertIfAbsent(ctx context.Context, posting JobPosting) (bool, error)
}

// FieldStore is the enrichment side of the dedup store.
type FieldStore interface {
	PendingDescription(ctx context.Context, link JobLink, field FieldDescriptor) (string, bool, error)
	ListPending(ctx context.Context, field FieldDescriptor, limit int) ([]PendingItem, error)
	CountPending(ctx context.Context, field FieldDescriptor) (int, error)
	WriteResolved(ctx context.Context, link JobLink, field FieldDescriptor, value any) error
	MarkFailed(ctx context.Context, link JobLink, field FieldDescriptor) error
}

// FailureAdmin exposes the failure tags for review and explicit clearing.
type FailureAdmin interface {
	CountFailed(ctx context.Context, field FieldDescriptor) (int, error)
	ListFailed(ctx context.Context, field FieldDescriptor, limit int) ([]FailedItem, error)
	// ClearFailed removes the failure tag for link, or for every posting when
	// link is empty. It returns the number of tags removed.
	ClearFailed(ctx context.Context, field FieldDescriptor, link JobLink) (int64, error)
}

// Notifier reports newly stored postings.
type Notifier interface {
	Notify(postings []JobPosting) error
}
