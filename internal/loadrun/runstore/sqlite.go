// Package runstore keeps a history of load runs in a SQLite file so
// results can be compared across runs.
//
// The blank import registers the sqlite3 driver with database/sql.
package runstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aanand-mishra/users-api/internal/loadrun"

	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run is one row of the runs table.
type Run struct {
	ID               string
	BaseURL          string
	StartedAt        time.Time
	EndedAt          time.Time
	Iterations       int64
	VUsMax           int
	HTTPReqs         int
	FailedRate       float64
	P95              float64
	ThresholdsPassed bool
}

// Store is a SQLite-backed run history. A single *sql.DB is safe for
// concurrent use.
type Store struct {
	Db *sql.DB
}

// New opens (or creates) the database at path and makes sure both
// tables exist.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("runstore.New: open db: %w", err)
	}

	// run_metrics holds one row per tag, "" being the aggregate.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id                TEXT    PRIMARY KEY,
			base_url          TEXT    NOT NULL,
			started_at        TEXT    NOT NULL,
			ended_at          TEXT    NOT NULL,
			iterations        INTEGER NOT NULL,
			vus_max           INTEGER NOT NULL,
			http_reqs         INTEGER NOT NULL,
			failed_rate       REAL    NOT NULL,
			p95_ms            REAL    NOT NULL,
			thresholds_passed INTEGER NOT NULL,
			summary           TEXT    NOT NULL
		);
		CREATE TABLE IF NOT EXISTS run_metrics (
			run_id      TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			tag         TEXT    NOT NULL,
			requests    INTEGER NOT NULL,
			avg_ms      REAL    NOT NULL,
			min_ms      REAL    NOT NULL,
			med_ms      REAL    NOT NULL,
			max_ms      REAL    NOT NULL,
			p90_ms      REAL    NOT NULL,
			p95_ms      REAL    NOT NULL,
			failed_rate REAL    NOT NULL,
			PRIMARY KEY (run_id, tag)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("runstore.New: create tables: %w", err)
	}

	return &Store{Db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.Db.Close()
}

// SaveRun stores the summary and its per-tag metrics in one transaction.
func (s *Store) SaveRun(sum *loadrun.Summary) error {
	blob, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("SaveRun: encode summary: %w", err)
	}

	tx, err := s.Db.Begin()
	if err != nil {
		return fmt.Errorf("SaveRun: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, base_url, started_at, ended_at, iterations, vus_max,
			http_reqs, failed_rate, p95_ms, thresholds_passed, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, sum.BaseURL,
		sum.StartedAt.UTC().Format(time.RFC3339Nano), sum.EndedAt.UTC().Format(time.RFC3339Nano),
		sum.Iterations, sum.VUsMax,
		sum.Overall.Requests, sum.Overall.Failed.Rate, sum.Overall.Duration.P95,
		sum.ThresholdsPassed(), string(blob),
	)
	if err != nil {
		return fmt.Errorf("SaveRun: insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO run_metrics (run_id, tag, requests, avg_ms, min_ms, med_ms, max_ms,
			p90_ms, p95_ms, failed_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("SaveRun: prepare metrics: %w", err)
	}
	defer stmt.Close()

	endpoints := append([]loadrun.EndpointSummary{sum.Overall}, sum.Endpoints...)
	for _, e := range endpoints {
		d := e.Duration
		if _, err := stmt.Exec(sum.RunID, e.Tag, e.Requests, d.Avg, d.Min, d.Med, d.Max, d.P90, d.P95, e.Failed.Rate); err != nil {
			return fmt.Errorf("SaveRun: insert metrics for %q: %w", e.Tag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("SaveRun: commit: %w", err)
	}
	return nil
}

// GetRun returns the full summary stored for id.
func (s *Store) GetRun(id string) (*loadrun.Summary, error) {
	var blob string
	err := s.Db.QueryRow("SELECT summary FROM runs WHERE id = ? LIMIT 1", id).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("GetRun: scan: %w", err)
	}

	var sum loadrun.Summary
	if err := json.Unmarshal([]byte(blob), &sum); err != nil {
		return nil, fmt.Errorf("GetRun: decode summary: %w", err)
	}
	return &sum, nil
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.Db.Query(
		`SELECT id, base_url, started_at, ended_at, iterations, vus_max,
			http_reqs, failed_rate, p95_ms, thresholds_passed
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: query: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var r Run
		var started, ended string
		if err := rows.Scan(
			&r.ID, &r.BaseURL, &started, &ended,
			&r.Iterations, &r.VUsMax, &r.HTTPReqs, &r.FailedRate, &r.P95, &r.ThresholdsPassed,
		); err != nil {
			return nil, fmt.Errorf("ListRuns: scan row: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("ListRuns: started_at: %w", err)
		}
		if r.EndedAt, err = time.Parse(time.RFC3339Nano, ended); err != nil {
			return nil, fmt.Errorf("ListRuns: ended_at: %w", err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListRuns: rows iteration: %w", err)
	}
	return runs, nil
}

// Duration is the wall-clock length of the run.
func (r Run) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}
