// Package registry selects the provider that serves a generation.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/welinkai/llmgateway/internal/provider"
	"github.com/welinkai/llmgateway/internal/tracing"
)

// ProviderLister is the read side of a provider store.
type ProviderLister interface {
	ListProviders(ctx context.Context) ([]*provider.Provider, error)
}

// KeyResolver turns a stored api_key value into the secret sent to the
// vendor. *vault.Vault satisfies it.
type KeyResolver interface {
	Resolve(value string) (string, error)
}

// Registry resolves the active provider for a request. It holds no
// per-request state and is safe for concurrent use.
type Registry struct {
	store  ProviderLister
	keys   KeyResolver
	logger zerolog.Logger
}

// New creates a Registry. A nil keys resolver passes stored keys through
// unchanged.
func New(store ProviderLister, keys KeyResolver, logger zerolog.Logger) *Registry {
	return &Registry{store: store, keys: keys, logger: logger}
}

// ResolveProvider returns the normalized configuration of the active
// provider that should serve a request.
//
// When preferred is non-empty only providers whose name matches it
// case-insensitively are considered, unless none match, in which case the
// whole active set is used. Among the candidates the highest Priority wins
// and ties go to the provider created first. A nil Config with a nil error
// means no provider is active.
func (r *Registry) ResolveProvider(ctx context.Context, preferred string) (*provider.Config, error) {
	ctx, span := tracing.StartResolveSpan(ctx, preferred)
	defer span.End()

	all, err := r.store.ListProviders(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("registry: listing providers: %w", err)
	}

	active := make([]*provider.Provider, 0, len(all))
	for _, p := range all {
		if p.Active {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		r.logger.Debug().Msg("no active provider configured")
		return nil, nil
	}

	candidates := active
	if name := strings.TrimSpace(preferred); name != "" {
		var matched []*provider.Provider
		for _, p := range active {
			if strings.EqualFold(p.Name, name) {
				matched = append(matched, p)
			}
		}
		if len(matched) > 0 {
			candidates = matched
		} else {
			r.logger.Debug().Str("preferred", name).Msg("preferred provider not active, using highest priority")
		}
	}

	best := selectBest(candidates)

	key := best.APIKey
	if r.keys != nil {
		key, err = r.keys.Resolve(best.APIKey)
		if err != nil {
			tracing.RecordError(ctx, err)
			return nil, fmt.Errorf("registry: resolving key for provider %q: %w", best.Name, err)
		}
	}

	r.logger.Debug().
		Int64("provider_id", best.ID).
		Str("provider", best.Name).
		Str("family", string(best.Family)).
		Int("priority", best.Priority).
		Msg("provider resolved")

	return provider.Normalize(best, key), nil
}

// selectBest returns the highest-priority provider, breaking ties by the
// lowest ID. candidates must be non-empty.
func selectBest(candidates []*provider.Provider) *provider.Provider {
	best := candidates[0]
	for _, p := range candidates[1:] {
		if p.Priority > best.Priority || (p.Priority == best.Priority && p.ID < best.ID) {
			best = p
		}
	}
	return best
}
