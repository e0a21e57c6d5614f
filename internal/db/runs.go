package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TestRun represents one recorded test invocation for a check.
type TestRun struct {
	ID         string    `json:"id"`
	Check      string    `json:"check"`
	Envs       []string  `json:"envs"`
	Kind       string    `json:"kind"`
	Runner     string    `json:"runner"`
	ExitCode   int       `json:"exit_code"`
	DurationMS int64     `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
}

// RunKind constants describe what a run exercised.
const (
	RunKindTests         = "tests"
	RunKindStyle         = "style"
	RunKindFormat        = "format"
	RunKindBench         = "bench"
	RunKindE2E           = "e2e"
	RunKindLatestMetrics = "latest-metrics"
)

// ErrRunNotFound is returned when a test run is not found.
var ErrRunNotFound = errors.New("test run not found")

// InsertTestRun records a test run, assigning an ID and start time when unset.
func (db *DB) InsertTestRun(run *TestRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := db.Exec(`
		INSERT INTO test_runs (id, check_name, envs, kind, runner, exit_code, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Check, strings.Join(run.Envs, ","), run.Kind, run.Runner,
		run.ExitCode, run.DurationMS, run.StartedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording test run: %w", err)
	}
	return nil
}

// GetTestRun retrieves a test run by ID.
func (db *DB) GetTestRun(id string) (*TestRun, error) {
	row := db.QueryRow(`
		SELECT id, check_name, envs, kind, runner, exit_code, duration_ms, started_at
		FROM test_runs WHERE id = ?
	`, id)

	return scanTestRun(row)
}

// ListTestRuns returns the most recent test runs, newest first. A limit of
// zero or less returns everything.
func (db *DB) ListTestRuns(limit int) ([]*TestRun, error) {
	return db.listTestRuns(`
		SELECT id, check_name, envs, kind, runner, exit_code, duration_ms, started_at
		FROM test_runs
		ORDER BY started_at DESC, id
	`, nil, limit)
}

// ListTestRunsByCheck returns the most recent test runs for one check.
func (db *DB) ListTestRunsByCheck(check string, limit int) ([]*TestRun, error) {
	return db.listTestRuns(`
		SELECT id, check_name, envs, kind, runner, exit_code, duration_ms, started_at
		FROM test_runs WHERE check_name = ?
		ORDER BY started_at DESC, id
	`, []any{check}, limit)
}

func (db *DB) listTestRuns(query string, args []any, limit int) ([]*TestRun, error) {
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying test runs: %w", err)
	}
	defer rows.Close()

	return scanTestRuns(rows)
}

// PruneTestRuns deletes runs started before the cutoff and reports how many
// rows were removed.
func (db *DB) PruneTestRuns(cutoff time.Time) (int64, error) {
	result, err := db.Exec(`DELETE FROM test_runs WHERE started_at < ?`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("pruning test runs: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return removed, nil
}

// CountTestRuns counts recorded test runs.
func (db *DB) CountTestRuns() (int, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM test_runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting test runs: %w", err)
	}
	return count, nil
}

// scanTestRun scans a single test run row.
func scanTestRun(row *sql.Row) (*TestRun, error) {
	run := &TestRun{}
	var envs, startedAt string

	err := row.Scan(&run.ID, &run.Check, &envs, &run.Kind, &run.Runner,
		&run.ExitCode, &run.DurationMS, &startedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("scanning test run: %w", err)
	}

	run.Envs = splitEnvs(envs)
	if startedAt != "" {
		run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	}
	return run, nil
}

// scanTestRuns scans multiple test run rows.
func scanTestRuns(rows *sql.Rows) ([]*TestRun, error) {
	var runs []*TestRun

	for rows.Next() {
		run := &TestRun{}
		var envs, startedAt string

		err := rows.Scan(&run.ID, &run.Check, &envs, &run.Kind, &run.Runner,
			&run.ExitCode, &run.DurationMS, &startedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning test run row: %w", err)
		}

		run.Envs = splitEnvs(envs)
		if startedAt != "" {
			run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating test runs: %w", err)
	}
	return runs, nil
}

func splitEnvs(csv string) []string {
	if csv == "" {
		return nil
	}
	return strings.Split(csv, ",")
}
