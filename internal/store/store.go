package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store is the SQLite-backed provider and usage store. Writes go through
// a single connection; reads use a separate query_only pool.
type Store struct {
	writer    *sql.DB
	reader    *sql.DB
	path      string
	closeOnce sync.Once
}

// Connection pragmas shared by both pools.
const dsnPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"

const readerConns = 4

// openPool opens and pings one database/sql pool over the SQLite file.
func openPool(ctx context.Context, dsn string, conns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Open opens the database at path, creating its directory when missing,
// and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("store: creating data directory: %w", err)
	}

	dsn := path + dsnPragmas
	writer, err := openPool(ctx, dsn, 1)
	if err != nil {
		return nil, fmt.Errorf("store: opening writer: %w", err)
	}
	reader, err := openPool(ctx, dsn+"&_pragma=query_only(ON)", readerConns)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("store: opening reader: %w", err)
	}

	s := &Store{writer: writer, reader: reader, path: path}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close releases both pools. Calls after the first are no-ops.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = errors.Join(s.writer.Close(), s.reader.Close())
	})
	return err
}

// Path returns the filesystem path of the database.
func (s *Store) Path() string {
	return s.path
}

// Ping checks both pools.
func (s *Store) Ping(ctx context.Context) error {
	for name, db := range map[string]*sql.DB{"writer": s.writer, "reader": s.reader} {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("store: %s ping: %w", name, err)
		}
	}
	return nil
}

// Timestamps are stored as RFC 3339 UTC strings so they sort lexically.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
