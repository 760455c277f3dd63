package runlog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig controls the connection pool for the run log.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresStore writes run history into Postgres.
//
// Expected schema:
//
//	CREATE TABLE runs (
//	    id UUID PRIMARY KEY,
//	    started_at TIMESTAMPTZ NOT NULL,
//	    finished_at TIMESTAMPTZ,
//	    status TEXT NOT NULL,
//	    error_message TEXT
//	);
//	CREATE TABLE item_failures (
//	    run_id UUID NOT NULL REFERENCES runs(id),
//	    stage TEXT NOT NULL,
//	    item_index INT NOT NULL,
//	    item TEXT NOT NULL,
//	    error TEXT NOT NULL,
//	    failed_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	pool execCloser
}

// NewPostgresStore creates a Postgres-backed Store using the provided config.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewPostgresStoreWithPool(pool execCloser) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PostgresStore{pool: pool}, nil
}

// StartRun inserts the run row in the running state.
func (s *PostgresStore) StartRun(ctx context.Context, runID string, startedAt time.Time) error {
	query := `
		INSERT INTO runs (id, started_at, status)
		VALUES ($1, $2, $3)
	`
	if _, err := s.pool.Exec(ctx, query, runID, startedAt, RunRunning); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun marks the run completed or failed.
func (s *PostgresStore) FinishRun(
	ctx context.Context,
	runID string,
	finishedAt time.Time,
	status string,
	errMsg *string,
) error {
	query := `
		UPDATE runs
		SET finished_at = $1, status = $2, error_message = $3
		WHERE id = $4
	`
	if _, err := s.pool.Exec(ctx, query, finishedAt, status, errMsg, runID); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordFailure inserts one terminal item failure.
func (s *PostgresStore) RecordFailure(ctx context.Context, failure ItemFailure) error {
	query := `
		INSERT INTO item_failures (run_id, stage, item_index, item, error, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, query,
		failure.RunID,
		failure.Stage,
		failure.ItemIndex,
		failure.Item,
		failure.Error,
		failure.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("insert item failure: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
