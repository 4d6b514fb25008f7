package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/welinkai/llmgateway/internal/provider"
)

const providerColumns = `id, name, family, api_key, base_url, models, model, default_model, priority, active, created_at, updated_at`

func scanProvider(row pgx.Row) (*provider.Provider, error) {
	p := &provider.Provider{}
	var family string
	if err := row.Scan(
		&p.ID, &p.Name, &family, &p.APIKey, &p.BaseURL, &p.Models, &p.Model, &p.DefaultModel,
		&p.Priority, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Family, _ = provider.ParseFamily(family)
	return p, nil
}

// ListProviders returns every provider ordered by id.
func (s *Store) ListProviders(ctx context.Context) ([]*provider.Provider, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+providerColumns+` FROM providers ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list providers: %w", err)
	}
	defer rows.Close()

	var results []*provider.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan provider row: %w", err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list providers iteration: %w", err)
	}
	return results, nil
}

// GetProvider returns the provider with the given id.
func (s *Store) GetProvider(ctx context.Context, id int64) (*provider.Provider, error) {
	p, err := scanProvider(s.pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: get provider %d: %w", id, provider.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get provider %d: %w", id, err)
	}
	return p, nil
}

// GetProviderByName matches name case-insensitively.
func (s *Store) GetProviderByName(ctx context.Context, name string) (*provider.Provider, error) {
	p, err := scanProvider(s.pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE lower(name) = lower($1)`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: get provider %q: %w", name, provider.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get provider %q: %w", name, err)
	}
	return p, nil
}

// CreateProvider inserts p and fills in the generated id and timestamps.
func (s *Store) CreateProvider(ctx context.Context, p *provider.Provider) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO providers (name, family, api_key, base_url, models, model, default_model, priority, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		p.Name, string(p.Family), p.APIKey, p.BaseURL, p.Models, p.Model, p.DefaultModel, p.Priority, p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create provider %q: %w", p.Name, err)
	}
	return nil
}

// UpdateProvider overwrites every mutable column of the provider with p.ID.
func (s *Store) UpdateProvider(ctx context.Context, p *provider.Provider) error {
	err := s.pool.QueryRow(ctx, `
		UPDATE providers SET
			name = $1, family = $2, api_key = $3, base_url = $4, models = $5, model = $6,
			default_model = $7, priority = $8, active = $9, updated_at = now()
		WHERE id = $10
		RETURNING updated_at`,
		p.Name, string(p.Family), p.APIKey, p.BaseURL, p.Models, p.Model,
		p.DefaultModel, p.Priority, p.Active, p.ID,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres: update provider %d: %w", p.ID, provider.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("postgres: update provider %d: %w", p.ID, err)
	}
	return nil
}

// SetProviderActive toggles the active flag.
func (s *Store) SetProviderActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE providers SET active = $1, updated_at = now() WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("postgres: set provider %d active: %w", id, err)
	}
	return expectOneRow(tag, id)
}

func expectOneRow(tag pgconn.CommandTag, id int64) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: provider %d: %w", id, provider.ErrNotFound)
	}
	return nil
}
