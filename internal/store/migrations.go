package store

import (
	"context"
	"fmt"
	"time"
)

// schemaSteps holds the DDL for each schema version, oldest first. The
// version number of a step is its index plus one. Steps are append-only.
var schemaSteps = [][]string{
	{schemaProviders, schemaUsageRecords},
	{`ALTER TABLE usage_records ADD COLUMN estimated INTEGER NOT NULL DEFAULT 0`},
}

// LatestVersion is the schema version a fully migrated database reports.
func LatestVersion() int {
	return len(schemaSteps)
}

// Migrate applies every schema step newer than the recorded version. Each
// step commits in its own transaction together with its version row.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.writer.ExecContext(ctx, schemaMigrations); err != nil {
		return fmt.Errorf("store: create migrations table: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("store: read migration version: %w", err)
	}

	for v := current + 1; v <= LatestVersion(); v++ {
		if err := s.applyStep(ctx, v, schemaSteps[v-1]); err != nil {
			return fmt.Errorf("store: migration v%d: %w", v, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied version, 0 for a new database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.writer.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&version)
	return version, err
}

func (s *Store) applyStep(ctx context.Context, version int, stmts []string) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO migrations (version, applied_at) VALUES (?, ?)",
		version, formatTime(time.Now()),
	); err != nil {
		return err
	}
	return tx.Commit()
}
