package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// StepRecord is the outcome of one executed command.
type StepRecord struct {
	Line     int
	Raw      string
	Passed   bool
	Duration time.Duration
	Error    string
}

// RunRecord is one script execution as persisted in assure_runs.
type RunRecord struct {
	ID        string
	Script    string
	StartedAt time.Time
	Duration  time.Duration
	Passed    bool
	// FailedLine is 0 for a passing run.
	FailedLine int
	Error      string
	Steps      []StepRecord
}

const (
	sqlCreateRuns = `
        CREATE TABLE IF NOT EXISTS assure_runs (
            id          TEXT PRIMARY KEY,
            script      TEXT NOT NULL,
            started_at  TIMESTAMPTZ NOT NULL,
            duration_ms BIGINT NOT NULL,
            passed      BOOLEAN NOT NULL,
            failed_line INTEGER,
            error       TEXT
        );
    `
	sqlCreateSteps = `
        CREATE TABLE IF NOT EXISTS assure_steps (
            run_id      TEXT NOT NULL REFERENCES assure_runs (id) ON DELETE CASCADE,
            line        INTEGER NOT NULL,
            raw         TEXT NOT NULL,
            passed      BOOLEAN NOT NULL,
            duration_ms BIGINT NOT NULL,
            error       TEXT,
            PRIMARY KEY (run_id, line)
        );
    `
	sqlInsertRun = `
        INSERT INTO assure_runs (id, script, started_at, duration_ms, passed, failed_line, error)
        VALUES ($1, $2, $3, $4, $5, $6, $7);
    `
	sqlInsertStep = `
        INSERT INTO assure_steps (run_id, line, raw, passed, duration_ms, error)
        VALUES ($1, $2, $3, $4, $5, $6);
    `
)

// Store persists run history to PostgreSQL.
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

// EnsureSchema creates the history tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{sqlCreateRuns, sqlCreateSteps} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// RecordRun inserts the run and all of its steps in a single transaction.
func (s *Store) RecordRun(ctx context.Context, run RunRecord) error {
	if run.ID == "" {
		return errors.New("run record has no id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx, sqlInsertRun,
		run.ID, run.Script, run.StartedAt.UTC(), run.Duration.Milliseconds(),
		run.Passed, nullableLine(run.FailedLine), nullableText(run.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	for _, step := range run.Steps {
		_, err := tx.Exec(ctx, sqlInsertStep,
			run.ID, step.Line, step.Raw, step.Passed, step.Duration.Milliseconds(), nullableText(step.Error),
		)
		if err != nil {
			return fmt.Errorf("failed to insert step for line %d: %w", step.Line, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Recorded run", zap.String("run_id", run.ID), zap.Int("steps", len(run.Steps)))
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func nullableLine(line int) *int {
	if line <= 0 {
		return nil
	}
	return &line
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
