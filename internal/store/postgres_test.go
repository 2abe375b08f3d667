package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/amishk599/jobscout/internal/model"
)

// newPostgresStore connects to the database named by
// JOBSCOUT_TEST_DATABASE_URL and skips the test when it is unset.
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("JOBSCOUT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("JOBSCOUT_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := NewPostgresStore(ctx, dsn, "jobscout_test_jobs")
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(ctx, []model.FieldDescriptor{yearsField, expField}); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if _, err := s.pool.Exec(ctx, "TRUNCATE jobs CASCADE"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return s
}

func TestPostgresRoundTrip(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	link := model.JobLink("https://www.linkedin.com/jobs/view/pg1")

	mustInsert(t, s, posting(string(link), "First"))
	if ok, err := s.InsertIfAbsent(ctx, posting(string(link), "Second")); err != nil || ok {
		t.Fatalf("duplicate insert: ok=%v err=%v", ok, err)
	}
	if found, err := s.Touch(ctx, link); err != nil || !found {
		t.Fatalf("Touch: found=%v err=%v", found, err)
	}

	got, found, err := s.Get(ctx, link)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if got.Title != "First" || got.Criteria["remote policy"] != "Hybrid" {
		t.Errorf("unexpected posting %+v", got)
	}

	if err := s.MarkFailed(ctx, link, expField); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if _, ok, err := s.PendingDescription(ctx, link, yearsField); err != nil || !ok {
		t.Fatalf("years_of_experience should be pending: ok=%v err=%v", ok, err)
	}
	if err := s.WriteResolved(ctx, link, yearsField, int16(5)); err != nil {
		t.Fatalf("WriteResolved: %v", err)
	}
	if n, _ := s.CountPending(ctx, yearsField); n != 0 {
		t.Errorf("CountPending = %d, want 0", n)
	}
	if n, err := s.ClearFailed(ctx, expField, ""); err != nil || n != 1 {
		t.Errorf("ClearFailed = %d, %v", n, err)
	}
}
