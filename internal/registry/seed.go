package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/welinkai/llmgateway/internal/config"
	"github.com/welinkai/llmgateway/internal/provider"
)

// ProviderStore is the provider persistence surface Seed needs.
type ProviderStore interface {
	GetProviderByName(ctx context.Context, name string) (*provider.Provider, error)
	CreateProvider(ctx context.Context, p *provider.Provider) error
	UpdateProvider(ctx context.Context, p *provider.Provider) error
}

// SeedResult counts the rows touched by Seed.
type SeedResult struct {
	Created int
	Updated int
}

// Seed upserts the providers declared in the [providers] config section,
// matching existing rows by name. Entries are applied in key order so
// repeated startups produce the same IDs. A config entry without an
// explicit family has it inferred from its name once, on creation.
//
// Updating an existing row keeps its active flag, and keeps its family
// unless the entry names one. Both are administrator state owned by the
// API once the row exists.
func Seed(ctx context.Context, st ProviderStore, providers map[string]config.ProviderConfig, logger zerolog.Logger) (SeedResult, error) {
	var res SeedResult

	keys := make([]string, 0, len(providers))
	for k := range providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		pc := providers[key]
		p := fromConfig(key, pc)

		existing, err := st.GetProviderByName(ctx, p.Name)
		switch {
		case errors.Is(err, provider.ErrNotFound):
			if err := st.CreateProvider(ctx, p); err != nil {
				return res, fmt.Errorf("registry: seeding provider %q: %w", p.Name, err)
			}
			res.Created++
			logger.Info().Int64("id", p.ID).Str("provider", p.Name).Str("family", string(p.Family)).Msg("provider created from config")
		case err != nil:
			return res, fmt.Errorf("registry: looking up provider %q: %w", p.Name, err)
		default:
			p.ID = existing.ID
			p.CreatedAt = existing.CreatedAt
			p.Active = existing.Active
			if strings.TrimSpace(pc.Family) == "" {
				p.Family = existing.Family
			}
			if err := st.UpdateProvider(ctx, p); err != nil {
				return res, fmt.Errorf("registry: updating provider %q: %w", p.Name, err)
			}
			res.Updated++
			logger.Debug().Int64("id", p.ID).Str("provider", p.Name).Msg("provider updated from config")
		}
	}
	return res, nil
}

func fromConfig(key string, pc config.ProviderConfig) *provider.Provider {
	name := strings.TrimSpace(pc.Name)
	if name == "" {
		name = key
	}
	family := provider.InferFamily(name)
	if pc.Family != "" {
		family, _ = provider.ParseFamily(pc.Family)
	}
	return &provider.Provider{
		Name:         name,
		Family:       family,
		APIKey:       pc.APIKey,
		BaseURL:      pc.BaseURL,
		Models:       provider.JoinModels(pc.Models),
		Model:        pc.Model,
		DefaultModel: pc.DefaultModel,
		Priority:     pc.Priority,
		Active:       pc.Active,
	}
}
