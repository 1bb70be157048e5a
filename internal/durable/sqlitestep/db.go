// Package sqlitestep provides a SQLite-backed durable step host. Step
// results are persisted keyed by (run, name): replaying a completed
// step returns the stored payload instead of re-running its callback,
// and sleeps persist their wake deadline so a restarted process resumes
// the remaining wait.
package sqlitestep

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the checkpoint database.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DefaultDBPath returns the default checkpoint database location.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "cascade", "steps.db")
}

// Open opens the checkpoint database at the given path, creating parent
// directories if needed. WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db := &DB{
		conn: conn,
		path: path,
	}
	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Steps},
		{2, migrationV2Sleeps},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements
const migrationV1Steps = `
CREATE TABLE IF NOT EXISTS steps (
	run_id TEXT NOT NULL,
	name TEXT NOT NULL,
	result BLOB NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, name)
);

CREATE INDEX IF NOT EXISTS idx_steps_created_at ON steps(created_at);
`

const migrationV2Sleeps = `
CREATE TABLE IF NOT EXISTS sleeps (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	wake_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// StepRecord describes one persisted step checkpoint.
type StepRecord struct {
	// RunID identifies the cascade run the step belongs to.
	RunID string
	// Name is the deterministic step name.
	Name string
	// Result is the persisted payload.
	Result []byte
	// CreatedAt is when the step completed.
	CreatedAt time.Time
}

// ListSteps returns persisted steps, newest first. An empty runID lists
// steps across all runs.
func (db *DB) ListSteps(runID string) ([]StepRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	query := "SELECT run_id, name, result, created_at FROM steps ORDER BY created_at DESC"
	args := []any{}
	if runID != "" {
		query = "SELECT run_id, name, result, created_at FROM steps WHERE run_id = ? ORDER BY created_at DESC"
		args = append(args, runID)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var records []StepRecord
	for rows.Next() {
		var rec StepRecord
		var createdAt string
		if err := rows.Scan(&rec.RunID, &rec.Name, &rec.Result, &createdAt); err != nil {
			return nil, fmt.Errorf("scan step row: %w", err)
		}
		if t, err := parseTime(createdAt); err == nil {
			rec.CreatedAt = t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PurgeOldSteps deletes step checkpoints and sleep records older than
// the specified duration. Returns the number of steps deleted.
func (db *DB) PurgeOldSteps(olderThan time.Duration) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	cutoff := formatTime(time.Now().Add(-olderThan))

	if _, err := db.conn.Exec("DELETE FROM sleeps WHERE wake_at < ?", cutoff); err != nil {
		return 0, fmt.Errorf("purge old sleeps: %w", err)
	}

	result, err := db.conn.Exec("DELETE FROM steps WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old steps: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
