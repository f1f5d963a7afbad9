package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jkeller/dailybrief/internal/collect"
	"github.com/jkeller/dailybrief/internal/feed"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleResult() *collect.Result {
	published := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	return &collect.Result{
		Categories: map[string][]feed.Article{
			"technology": {
				{Title: "First", Link: "https://example.com/1", Source: "Wire A", Published: &published, Relevance: 0.9, Novelty: 3.0},
				{Title: "Second", Link: "https://example.com/2", Source: "Wire A", Relevance: 0.5, Novelty: 1.5},
			},
		},
		Failures: []collect.SourceFailure{
			{Source: "Wire B", Category: "technology", Kind: feed.KindTimeout},
		},
		Stats: collect.Stats{
			Attempted: 2,
			Succeeded: 1,
			Failed:    1,
			Records:   2,
			Elapsed:   1500 * time.Millisecond,
		},
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	// Reopening must not fail on the already-migrated schema.
	db, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()
}

func TestRecordRunAndReadBack(t *testing.T) {
	db := openTestDB(t)

	runID, err := db.RecordRun(sampleResult())
	if err != nil {
		t.Fatal(err)
	}
	if runID <= 0 {
		t.Errorf("expected positive run ID, got %d", runID)
	}

	n, err := db.RunCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 run, got %d", n)
	}

	last, err := db.LastRun()
	if err != nil {
		t.Fatal(err)
	}
	if last == nil {
		t.Fatal("expected a last run")
	}
	if last.ID != runID {
		t.Errorf("expected run %d, got %d", runID, last.ID)
	}
	if last.Attempted != 2 || last.Succeeded != 1 || last.Failed != 1 || last.Records != 2 {
		t.Errorf("unexpected summary: %+v", last)
	}
	if last.Elapsed != 1500*time.Millisecond {
		t.Errorf("unexpected elapsed: %v", last.Elapsed)
	}
}

func TestLastRunEmptyArchive(t *testing.T) {
	db := openTestDB(t)

	last, err := db.LastRun()
	if err != nil {
		t.Fatal(err)
	}
	if last != nil {
		t.Errorf("expected nil for empty archive, got %+v", last)
	}
}

func TestSourceHealthTracksFailures(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.RecordRun(sampleResult()); err != nil {
		t.Fatal(err)
	}
	if _, err := db.RecordRun(sampleResult()); err != nil {
		t.Fatal(err)
	}

	statuses, err := db.SourceStatuses()
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(statuses))
	}

	// Ordered by name: Wire A then Wire B.
	healthy, failing := statuses[0], statuses[1]
	if healthy.Name != "Wire A" || healthy.ConsecutiveFailures != 0 || healthy.LastSuccess == nil {
		t.Errorf("unexpected healthy status: %+v", healthy)
	}
	if failing.Name != "Wire B" || failing.ConsecutiveFailures != 2 {
		t.Errorf("expected 2 consecutive failures, got %+v", failing)
	}
	if failing.LastError == nil || *failing.LastError != "timeout" {
		t.Errorf("unexpected last error: %v", failing.LastError)
	}
}

func TestSourceHealthRecoveryResetsFailures(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.RecordRun(sampleResult()); err != nil {
		t.Fatal(err)
	}

	recovered := sampleResult()
	recovered.Categories["technology"] = append(recovered.Categories["technology"], feed.Article{
		Title: "Back online", Link: "https://example.com/3", Source: "Wire B", Relevance: 0.7,
	})
	recovered.Failures = nil
	if _, err := db.RecordRun(recovered); err != nil {
		t.Fatal(err)
	}

	statuses, err := db.SourceStatuses()
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range statuses {
		if s.Name == "Wire B" {
			if s.ConsecutiveFailures != 0 || s.LastSuccess == nil {
				t.Errorf("expected recovery to reset failures, got %+v", s)
			}
			return
		}
	}
	t.Fatal("Wire B status missing")
}
