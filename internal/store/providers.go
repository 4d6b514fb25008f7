package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/welinkai/llmgateway/internal/provider"
)

const providerColumns = `id, name, family, api_key, base_url, models, model, default_model,
       priority, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (*provider.Provider, error) {
	p := &provider.Provider{}
	var family, createdAt, updatedAt string
	var active int
	if err := row.Scan(
		&p.ID, &p.Name, &family, &p.APIKey, &p.BaseURL, &p.Models, &p.Model, &p.DefaultModel,
		&p.Priority, &active, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	p.Family, _ = provider.ParseFamily(family)
	p.Active = active != 0
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// ListProviders returns every provider, active or not, ordered by id.
func (s *Store) ListProviders(ctx context.Context) ([]*provider.Provider, error) {
	rows, err := s.reader.QueryContext(ctx, `SELECT `+providerColumns+` FROM providers ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list providers: %w", err)
	}
	defer rows.Close()

	var results []*provider.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan provider row: %w", err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list providers iteration: %w", err)
	}
	return results, nil
}

// GetProvider returns the provider with the given id, or an error wrapping
// provider.ErrNotFound.
func (s *Store) GetProvider(ctx context.Context, id int64) (*provider.Provider, error) {
	p, err := scanProvider(s.reader.QueryRowContext(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: get provider %d: %w", id, provider.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get provider %d: %w", id, err)
	}
	return p, nil
}

// GetProviderByName returns the provider whose name matches
// case-insensitively.
func (s *Store) GetProviderByName(ctx context.Context, name string) (*provider.Provider, error) {
	p, err := scanProvider(s.reader.QueryRowContext(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE name = ? COLLATE NOCASE`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: get provider %q: %w", name, provider.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get provider %q: %w", name, err)
	}
	return p, nil
}

// CreateProvider inserts p and sets its ID and timestamps.
func (s *Store) CreateProvider(ctx context.Context, p *provider.Provider) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.writer.ExecContext(ctx, `
		INSERT INTO providers (
			name, family, api_key, base_url, models, model, default_model,
			priority, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, string(p.Family), p.APIKey, p.BaseURL, p.Models, p.Model, p.DefaultModel,
		p.Priority, boolToInt(p.Active), formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("store: create provider %q: %w", p.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: create provider last id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpdateProvider overwrites every mutable column of the provider with p.ID.
func (s *Store) UpdateProvider(ctx context.Context, p *provider.Provider) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.writer.ExecContext(ctx, `
		UPDATE providers SET
			name = ?, family = ?, api_key = ?, base_url = ?, models = ?, model = ?,
			default_model = ?, priority = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, string(p.Family), p.APIKey, p.BaseURL, p.Models, p.Model,
		p.DefaultModel, p.Priority, boolToInt(p.Active), formatTime(now), p.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update provider %d: %w", p.ID, err)
	}
	if err := expectOneRow(res, p.ID); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

// SetProviderActive toggles the active flag. Providers are never deleted.
func (s *Store) SetProviderActive(ctx context.Context, id int64, active bool) error {
	res, err := s.writer.ExecContext(ctx,
		`UPDATE providers SET active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("store: set provider %d active: %w", id, err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: provider %d rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("store: provider %d: %w", id, provider.ErrNotFound)
	}
	return nil
}
