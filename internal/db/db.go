// Package db provides the local SQLite store for recorded test runs.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion is the schema version this build expects.
const SchemaVersion = 2

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens the database at path, creating the file and applying all
// migrations as needed.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	conn, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.ApplyMigrations(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// DefaultUserPath returns the per-user history database path.
func DefaultUserPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".idev", "history.db"), nil
}

// OpenUserDB opens the history database at path, falling back to
// ~/.idev/history.db when path is empty.
func OpenUserDB(path string) (*DB, error) {
	if path == "" {
		var err error
		path, err = DefaultUserPath()
		if err != nil {
			return nil, err
		}
	}
	return Open(path)
}

// Path returns the file path backing the database.
func (db *DB) Path() string { return db.path }

// Close closes the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

// Exec proxies to the underlying connection.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query proxies to the underlying connection.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow proxies to the underlying connection.
func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

type migration struct {
	version int
	apply   func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{
		version: 1,
		apply: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS test_runs (
					id TEXT PRIMARY KEY,
					check_name TEXT NOT NULL,
					envs TEXT NOT NULL,
					kind TEXT NOT NULL,
					exit_code INTEGER NOT NULL,
					duration_ms INTEGER NOT NULL,
					started_at TEXT NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_test_runs_check ON test_runs(check_name);
				CREATE INDEX IF NOT EXISTS idx_test_runs_started ON test_runs(started_at);
			`)
			return err
		},
	},
	{
		version: 2,
		apply: func(ctx context.Context, tx *sql.Tx) error {
			return addColumnIfMissing(ctx, tx, "test_runs", "runner", "TEXT NOT NULL DEFAULT ''")
		},
	},
}

// ApplyMigrations brings the schema up to SchemaVersion. Already-applied
// versions are skipped, so calling it repeatedly is safe.
func (db *DB) ApplyMigrations(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := db.conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("reading schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scanning schema_migrations: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterating schema_migrations: %w", err)
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", m.version, err)
		}
		if err := m.apply(ctx, tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)`,
			m.version, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
	}
	return nil
}

// addColumnIfMissing adds a column unless the table already has it.
func addColumnIfMissing(ctx context.Context, tx *sql.Tx, table, column, definition string) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return fmt.Errorf("inspecting table %s: %w", table, err)
	}
	exists := false
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("scanning table info for %s: %w", table, err)
		}
		if name == column {
			exists = true
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterating table info for %s: %w", table, err)
	}
	rows.Close()

	if exists {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition),
	); err != nil {
		return fmt.Errorf("adding column %s.%s: %w", table, column, err)
	}
	return nil
}

// GetSchemaVersion returns the highest applied migration version.
func (db *DB) GetSchemaVersion() (int, error) {
	var version sql.NullInt64
	err := db.conn.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return int(version.Int64), nil
}

// ValidateSchema verifies the applied schema matches this build.
func (db *DB) ValidateSchema() error {
	version, err := db.GetSchemaVersion()
	if err != nil {
		return err
	}
	if version != SchemaVersion {
		return fmt.Errorf("schema version mismatch: database has %d, expected %d", version, SchemaVersion)
	}
	return nil
}

// Stats summarizes the database contents.
type Stats struct {
	SchemaVersion int `json:"schema_version"`
	TestRuns      int `json:"test_runs"`
}

// GetStats returns summary statistics.
func (db *DB) GetStats() (*Stats, error) {
	version, err := db.GetSchemaVersion()
	if err != nil {
		return nil, err
	}
	count, err := db.CountTestRuns()
	if err != nil {
		return nil, err
	}
	return &Stats{SchemaVersion: version, TestRuns: count}, nil
}
