// Package archive persists run history and per-source health to
// SQLite for the status command. The pipeline works without it; a
// missing archive only costs observability.
package archive

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens the archive database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func migrate(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at DATETIME NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			attempted  INTEGER NOT NULL,
			succeeded  INTEGER NOT NULL,
			failed     INTEGER NOT NULL,
			records    INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS run_articles (
			run_id    INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			category  TEXT NOT NULL,
			rank      INTEGER NOT NULL,
			title     TEXT NOT NULL,
			link      TEXT NOT NULL,
			source    TEXT NOT NULL,
			published DATETIME,
			relevance REAL NOT NULL,
			novelty   REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_run_articles_run ON run_articles(run_id);

		CREATE TABLE IF NOT EXISTS source_status (
			name                 TEXT PRIMARY KEY,
			last_success         DATETIME,
			last_error           TEXT,
			last_error_at        DATETIME,
			consecutive_failures INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}
