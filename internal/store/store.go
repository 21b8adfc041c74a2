// File: internal/store/store.go
// Description: Postgres-backed record of benchmark task runs. Optional: the
// harness works without it, but suites that feed dashboards persist one row
// per task here.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool abstracts the pgxpool.Pool so the store can be mocked in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// TaskRun is one row of the task_runs table: the final state of one task's
// session, as observed by the harness.
type TaskRun struct {
	ID            string          `json:"id"`
	SuiteID       string          `json:"suite_id"`
	TaskID        string          `json:"task_id"`
	TaskName      string          `json:"task_name"`
	Status        string          `json:"status"`
	StepCount     int             `json:"step_count"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
}

// Store provides a PostgreSQL implementation of the run recorder.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS task_runs (
		id             TEXT PRIMARY KEY,
		suite_id       TEXT NOT NULL,
		task_id        TEXT NOT NULL,
		task_name      TEXT NOT NULL,
		status         TEXT NOT NULL,
		step_count     INTEGER NOT NULL,
		failure_reason TEXT NOT NULL DEFAULT '',
		payload        JSONB NOT NULL DEFAULT '{}',
		started_at     TIMESTAMPTZ NOT NULL,
		finished_at    TIMESTAMPTZ NOT NULL
	);`

// EnsureSchema creates the task_runs table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create task_runs table: %w", err)
	}
	return nil
}

const insertRunSQL = `
	INSERT INTO task_runs
		(id, suite_id, task_id, task_name, status, step_count, failure_reason, payload, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

// RecordRun persists one finished task run.
func (s *Store) RecordRun(ctx context.Context, run TaskRun) error {
	payload := run.Payload
	if len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage("{}")
	}

	_, err := s.pool.Exec(ctx, insertRunSQL,
		run.ID, run.SuiteID, run.TaskID, run.TaskName,
		run.Status, run.StepCount, run.FailureReason, payload,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert task run %s: %w", run.ID, err)
	}
	s.log.Debug("Recorded task run.",
		zap.String("task", run.TaskName),
		zap.String("status", run.Status))
	return nil
}

const runsBySuiteSQL = `
	SELECT id, task_id, task_name, status, step_count, failure_reason, payload, started_at, finished_at
	FROM task_runs
	WHERE suite_id = $1
	ORDER BY started_at ASC;`

// RunsBySuite returns every recorded run of a suite, oldest first.
func (s *Store) RunsBySuite(ctx context.Context, suiteID string) ([]TaskRun, error) {
	rows, err := s.pool.Query(ctx, runsBySuiteSQL, suiteID)
	if err != nil {
		return nil, fmt.Errorf("query task runs: %w", err)
	}
	defer rows.Close()

	var runs []TaskRun
	for rows.Next() {
		r := TaskRun{SuiteID: suiteID}
		if err := rows.Scan(
			&r.ID, &r.TaskID, &r.TaskName, &r.Status, &r.StepCount,
			&r.FailureReason, &r.Payload, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
