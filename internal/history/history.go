// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	_ "modernc.org/sqlite" // registers the sqlite driver

	"github.com/mia-platform/odp/internal/pipeline"
)

const (
	driverName   = "sqlite"
	defaultLimit = 50

	createRuns = `CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		pipeline TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		output_rows INTEGER NOT NULL,
		failures INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		report TEXT NOT NULL
	)`
	createRunsIndex = `CREATE INDEX IF NOT EXISTS runs_pipeline_started ON runs (pipeline, started_at)`
)

// ErrRunNotFound reports a lookup of an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Store persists run reports.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open(driverName, path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, statement := range []string{createRuns, createRunsIndex} {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate history: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record saves report, replacing a previous report with the same run id.
func (s *Store) Record(ctx context.Context, report *pipeline.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (run_id, pipeline, started_at, finished_at, output_rows, failures, error, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		report.Pipeline,
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		report.FinishedAt.UTC().Format(time.RFC3339Nano),
		report.OutputRows,
		report.Failures(),
		report.Error,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", report.RunID, err)
	}
	return nil
}

// List returns the most recent reports first. An empty pipeline lists every pipeline and
// a non positive limit uses the default.
func (s *Store) List(ctx context.Context, pipelineName string, limit int) ([]*pipeline.Report, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT report FROM runs WHERE (? = '' OR pipeline = ?) ORDER BY started_at DESC, run_id LIMIT ?`,
		pipelineName, pipelineName, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]*pipeline.Report, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		report := new(pipeline.Report)
		if err := json.Unmarshal([]byte(data), report); err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// Get returns the report of the run with id runID.
func (s *Store) Get(ctx context.Context, runID string) (*pipeline.Report, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE run_id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	report := new(pipeline.Report)
	if err := json.Unmarshal([]byte(data), report); err != nil {
		return nil, err
	}
	return report, nil
}
