package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunRecord represents a persisted simulation run.
type RunRecord struct {
	ID          int64           `json:"id"`
	RunID       string          `json:"run_id"`
	Status      string          `json:"status"`
	Params      json.RawMessage `json:"params"`
	NumLines    int             `json:"num_lines"`
	OutputType  string          `json:"output_type"`
	Timings     json.RawMessage `json:"timings,omitempty"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// RunStore provides persistence for simulation run results.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore backed by the given database.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Open opens (creating if necessary) a run database at path and ensures
// the schema exists.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening run database %s: %w", path, err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %q: %w", pragma, err)
		}
	}
	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the run tables if they do not already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sim_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			params TEXT NOT NULL,
			num_lines INTEGER NOT NULL,
			output_type TEXT NOT NULL,
			timings TEXT,
			error TEXT,
			started_at TEXT NOT NULL,
			completed_at TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_sim_runs_started_at
			ON sim_runs(started_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating run schema: %w", err)
	}
	return nil
}

// InsertRun creates a new run record when a simulation starts.
func (s *RunStore) InsertRun(record RunRecord) error {
	query := `
		INSERT INTO sim_runs (
			run_id, status, params, num_lines, output_type, started_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(query,
			record.RunID,
			record.Status,
			string(record.Params),
			record.NumLines,
			record.OutputType,
			record.StartedAt.UTC().Format(time.RFC3339),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", record.RunID, err)
	}
	return nil
}

// CompleteRun marks a run as completed and stores its kernel timings.
func (s *RunStore) CompleteRun(runID string, timings json.RawMessage, completedAt time.Time) error {
	query := `
		UPDATE sim_runs
		SET status = ?, timings = ?, completed_at = ?
		WHERE run_id = ?
	`
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(query,
			RunStatusCompleted,
			nullJSON(timings),
			completedAt.UTC().Format(time.RFC3339),
			runID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("completing run %s: %w", runID, err)
	}
	return nil
}

// FailRun marks a run as failed with an error message.
func (s *RunStore) FailRun(runID, errMsg string, completedAt time.Time) error {
	query := `
		UPDATE sim_runs
		SET status = ?, error = ?, completed_at = ?
		WHERE run_id = ?
	`
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(query,
			RunStatusFailed,
			nullStr(errMsg),
			completedAt.UTC().Format(time.RFC3339),
			runID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failing run %s: %w", runID, err)
	}
	return nil
}

// GetRun returns a single run record by ID, or nil when no such run
// exists.
func (s *RunStore) GetRun(runID string) (*RunRecord, error) {
	query := `
		SELECT id, run_id, status, params, num_lines, output_type,
		       timings, error, started_at, completed_at
		FROM sim_runs
		WHERE run_id = ?
	`
	var rec RunRecord
	var params, timings, errMsg sql.NullString
	var startedAt, completedAt sql.NullString

	err := s.db.QueryRow(query, runID).Scan(
		&rec.ID, &rec.RunID, &rec.Status,
		&params, &rec.NumLines, &rec.OutputType,
		&timings, &errMsg,
		&startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", runID, err)
	}

	rec.Params = jsonOrNil(params)
	rec.Timings = jsonOrNil(timings)
	if errMsg.Valid {
		rec.Error = errMsg.String
	}
	if startedAt.Valid {
		t, err := time.Parse(time.RFC3339, startedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at for run %s: %w", runID, err)
		}
		rec.StartedAt = t
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing completed_at for run %s: %w", runID, err)
		}
		rec.CompletedAt = &t
	}

	return &rec, nil
}

// RunSummary is a lightweight version of RunRecord for list views
// (omits large JSON blobs).
type RunSummary struct {
	ID          int64      `json:"id"`
	RunID       string     `json:"run_id"`
	Status      string     `json:"status"`
	NumLines    int        `json:"num_lines"`
	OutputType  string     `json:"output_type"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListRuns returns recent runs ordered by most recent first. The
// results omit the params and timing blobs for performance.
func (s *RunStore) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := `
		SELECT id, run_id, status, num_lines, output_type, error, started_at, completed_at
		FROM sim_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var rec RunSummary
		var errMsg sql.NullString
		var startedAt, completedAt sql.NullString

		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Status, &rec.NumLines, &rec.OutputType, &errMsg, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}

		if errMsg.Valid {
			rec.Error = errMsg.String
		}
		if startedAt.Valid {
			t, err := time.Parse(time.RFC3339, startedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing started_at for run row: %w", err)
			}
			rec.StartedAt = t
		}
		if completedAt.Valid {
			t, err := time.Parse(time.RFC3339, completedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing completed_at for run row: %w", err)
			}
			rec.CompletedAt = &t
		}

		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}
	return runs, nil
}

// isSQLiteBusy reports whether err indicates SQLITE_BUSY contention.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy retries fn with exponential backoff while it returns a
// busy error, up to five attempts.
func retryOnBusy(fn func() error) error {
	const maxAttempts = 5
	delay := 10 * time.Millisecond
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
		}
		err = fn()
		if err == nil || !isSQLiteBusy(err) {
			return err
		}
	}
	return fmt.Errorf("database busy after %d attempts: %w", maxAttempts, err)
}

// nullJSON returns a pointer for a JSON value, treating nil or empty as NULL.
func nullJSON(data json.RawMessage) *string {
	if len(data) == 0 {
		return nil
	}
	s := string(data)
	return &s
}

// nullStr returns nil for empty strings, pointer to string otherwise.
func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// jsonOrNil converts a sql.NullString to json.RawMessage, returning nil for NULL values.
func jsonOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}
