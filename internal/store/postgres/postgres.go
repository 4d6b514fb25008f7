// Package postgres implements the gateway store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/welinkai/llmgateway/internal/store"
)

// DBPool abstracts *pgxpool.Pool so tests can substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Store is the PostgreSQL implementation of store.Backend.
type Store struct {
	pool   DBPool
	logger zerolog.Logger
}

var _ store.Backend = (*Store)(nil)

// New wraps an existing pool and verifies the connection. It does not run
// migrations; see Connect.
func New(ctx context.Context, pool DBPool, logger zerolog.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{
		pool:   pool,
		logger: logger.With().Str("component", "postgres").Logger(),
	}, nil
}

// Connect opens a pgxpool for dsn, verifies it, and applies the schema.
// maxConns <= 0 keeps the pgxpool default.
func Connect(ctx context.Context, dsn string, maxConns int, logger zerolog.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}

	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates any missing tables and indexes. Every statement is
// idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for i, ddl := range schema {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres: migrate step %d: %w", i+1, err)
		}
	}
	s.logger.Debug().Int("statements", len(schema)).Msg("schema applied")
	return nil
}

// Ping verifies the pool is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
