package runs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/canopy.report/internal/raster"
	"github.com/banshee-data/canopy.report/internal/timeutil"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrNotFound is returned when a run ID has no row.
var ErrNotFound = errors.New("run not found")

// Run is one recorded analysis.
type Run struct {
	RunID           string          `json:"run_id"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	Kind            string          `json:"kind"`
	InputPath       string          `json:"input_path"`
	OutputPath      string          `json:"output_path"`
	ParamsJSON      json.RawMessage `json:"params,omitempty"`
	Status          string          `json:"status"`
	ErrorMessage    string          `json:"error,omitempty"`
	Rows            int             `json:"rows"`
	Cols            int             `json:"cols"`
	GroundPoints    int             `json:"ground_points"`
	NonGroundPoints int             `json:"non_ground_points"`
	Summary         *raster.Summary `json:"summary,omitempty"`
	ReportPath      string          `json:"report_path,omitempty"`
	DurationMs      int64           `json:"duration_ms"`
}

// Outcome is what a successful run adds to its row.
type Outcome struct {
	Rows            int
	Cols            int
	GroundPoints    int
	NonGroundPoints int
	Summary         raster.Summary
	ReportPath      string
}

// pragmas are applied to every connection opened by Open.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

// Store persists runs.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewStore wraps an already-migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, clock: timeutil.RealClock{}}
}

// SetClock replaces the clock used for created and completed stamps.
func (s *Store) SetClock(c timeutil.Clock) {
	s.clock = c
}

// Open opens (creating if needed) the SQLite database at path and brings
// its schema up to date.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// A single connection keeps the pragmas in force and serialises writers.
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewStore(db), nil
}

// DB exposes the underlying handle, for the SQL debug console.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// retryOnBusy retries fn while SQLite reports the database as locked.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 20 * time.Millisecond)
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// InsertRun persists a new run. An empty RunID gets a UUID and a zero
// CreatedAt the current time.
func (s *Store) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.clock.Now()
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}

	var params interface{}
	if len(run.ParamsJSON) > 0 {
		params = string(run.ParamsJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO canopy_runs (
				run_id, created_at, kind, input_path, output_path, params_json, status
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, timeutil.ToUnixNano(run.CreatedAt), run.Kind, run.InputPath, run.OutputPath, params, run.Status,
		)
		return err
	})
}

// CompleteRun marks a run completed and records its outcome.
func (s *Store) CompleteRun(runID string, out Outcome, duration time.Duration) error {
	summary, err := json.Marshal(out.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	var report interface{}
	if out.ReportPath != "" {
		report = out.ReportPath
	}
	return s.update(runID, `
		UPDATE canopy_runs SET
			status = ?, completed_at = ?, grid_rows = ?, grid_cols = ?,
			ground_points = ?, non_ground_points = ?, summary_json = ?,
			report_path = ?, duration_ms = ?
		WHERE run_id = ?`,
		StatusCompleted, timeutil.ToUnixNano(s.clock.Now()), out.Rows, out.Cols,
		out.GroundPoints, out.NonGroundPoints, string(summary),
		report, duration.Milliseconds(), runID,
	)
}

// FailRun marks a run failed with msg.
func (s *Store) FailRun(runID, msg string, duration time.Duration) error {
	return s.update(runID, `
		UPDATE canopy_runs SET status = ?, completed_at = ?, error_message = ?, duration_ms = ?
		WHERE run_id = ?`,
		StatusFailed, timeutil.ToUnixNano(s.clock.Now()), msg, duration.Milliseconds(), runID,
	)
}

func (s *Store) update(runID, query string, args ...interface{}) error {
	return retryOnBusy(func() error {
		res, err := s.db.Exec(query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil
	})
}

const runColumns = `
	run_id, created_at, completed_at, kind, input_path, output_path, params_json,
	status, error_message, grid_rows, grid_cols, ground_points, non_ground_points,
	summary_json, report_path, duration_ms`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r                             Run
		createdAt                     int64
		completedAt                   sql.NullInt64
		params, errMsg, summary, repo sql.NullString
	)
	err := row.Scan(
		&r.RunID, &createdAt, &completedAt, &r.Kind, &r.InputPath, &r.OutputPath, &params,
		&r.Status, &errMsg, &r.Rows, &r.Cols, &r.GroundPoints, &r.NonGroundPoints,
		&summary, &repo, &r.DurationMs,
	)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = timeutil.FromUnixNano(createdAt)
	if completedAt.Valid {
		t := timeutil.FromUnixNano(completedAt.Int64)
		r.CompletedAt = &t
	}
	if params.Valid {
		r.ParamsJSON = json.RawMessage(params.String)
	}
	r.ErrorMessage = errMsg.String
	r.ReportPath = repo.String
	if summary.Valid && summary.String != "" {
		var sum raster.Summary
		if err := json.Unmarshal([]byte(summary.String), &sum); err != nil {
			return nil, fmt.Errorf("decode summary of run %s: %w", r.RunID, err)
		}
		r.Summary = &sum
	}
	return &r, nil
}

// GetRun returns a single run by ID.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM canopy_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM canopy_runs ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
