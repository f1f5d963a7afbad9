package archive

import (
	"database/sql"
	"sort"
	"time"

	"github.com/jkeller/dailybrief/internal/collect"
)

// RunSummary is one stored run.
type RunSummary struct {
	ID        int64
	StartedAt time.Time
	Elapsed   time.Duration
	Attempted int
	Succeeded int
	Failed    int
	Records   int
}

// SourceStatus is the stored health of one source.
type SourceStatus struct {
	Name                string
	LastSuccess         *time.Time
	LastError           *string
	LastErrorAt         *time.Time
	ConsecutiveFailures int
}

// RecordRun stores a run result: summary row, ranked articles, and
// per-source health updates. Returns the new run ID.
func (db *DB) RecordRun(res *collect.Result) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now()
	s := res.Stats
	inserted, err := tx.Exec(
		`INSERT INTO runs (started_at, elapsed_ms, attempted, succeeded, failed, records)
		VALUES (?, ?, ?, ?, ?, ?)`,
		now.Add(-s.Elapsed), s.Elapsed.Milliseconds(), s.Attempted, s.Succeeded, s.Failed, s.Records,
	)
	if err != nil {
		return 0, err
	}
	runID, err := inserted.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO run_articles (run_id, category, rank, title, link, source, published, relevance, novelty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	// Deterministic category order in storage.
	names := make([]string, 0, len(res.Categories))
	for name := range res.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for rank, a := range res.Categories[name] {
			var published any
			if a.Published != nil {
				published = a.Published.UTC()
			}
			if _, err := stmt.Exec(runID, name, rank+1, a.Title, a.Link, a.Source, published, a.Relevance, a.Novelty); err != nil {
				return 0, err
			}
		}
	}

	if err := recordSourceHealth(tx, res, now); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

func recordSourceHealth(tx *sql.Tx, res *collect.Result, now time.Time) error {
	failedKinds := make(map[string]string)
	for _, f := range res.Failures {
		failedKinds[f.Source] = string(f.Kind)
	}

	succeeded := make(map[string]bool)
	for _, articles := range res.Categories {
		for _, a := range articles {
			succeeded[a.Source] = true
		}
	}

	for name := range succeeded {
		// A source can appear in both maps when one of its category
		// fetches failed; count it as healthy if anything arrived.
		delete(failedKinds, name)
		_, err := tx.Exec(
			`INSERT INTO source_status (name, last_success, consecutive_failures)
			VALUES (?, ?, 0)
			ON CONFLICT(name) DO UPDATE SET last_success = excluded.last_success, consecutive_failures = 0`,
			name, now,
		)
		if err != nil {
			return err
		}
	}

	for name, kind := range failedKinds {
		_, err := tx.Exec(
			`INSERT INTO source_status (name, last_error, last_error_at, consecutive_failures)
			VALUES (?, ?, ?, 1)
			ON CONFLICT(name) DO UPDATE SET
				last_error = excluded.last_error,
				last_error_at = excluded.last_error_at,
				consecutive_failures = source_status.consecutive_failures + 1`,
			name, kind, now,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// LastRun returns the most recent run summary, or nil when the archive
// is empty.
func (db *DB) LastRun() (*RunSummary, error) {
	row := db.conn.QueryRow(
		`SELECT id, started_at, elapsed_ms, attempted, succeeded, failed, records
		FROM runs ORDER BY id DESC LIMIT 1`,
	)
	var r RunSummary
	var elapsedMS int64
	err := row.Scan(&r.ID, &r.StartedAt, &elapsedMS, &r.Attempted, &r.Succeeded, &r.Failed, &r.Records)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return &r, nil
}

// RunCount returns how many runs the archive holds.
func (db *DB) RunCount() (int, error) {
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SourceStatuses returns per-source health ordered by name.
func (db *DB) SourceStatuses() ([]SourceStatus, error) {
	rows, err := db.conn.Query(
		`SELECT name, last_success, last_error, last_error_at, consecutive_failures
		FROM source_status ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []SourceStatus
	for rows.Next() {
		var s SourceStatus
		if err := rows.Scan(&s.Name, &s.LastSuccess, &s.LastError, &s.LastErrorAt, &s.ConsecutiveFailures); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}
