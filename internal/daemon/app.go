package daemon

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/welinkai/llmgateway/internal/api"
	"github.com/welinkai/llmgateway/internal/billing"
	"github.com/welinkai/llmgateway/internal/config"
	"github.com/welinkai/llmgateway/internal/generator"
	"github.com/welinkai/llmgateway/internal/metrics"
	"github.com/welinkai/llmgateway/internal/registry"
	"github.com/welinkai/llmgateway/internal/store"
	"github.com/welinkai/llmgateway/internal/store/postgres"
	"github.com/welinkai/llmgateway/internal/usage"
	"github.com/welinkai/llmgateway/internal/vault"
)

// OpenBackend opens the configured store driver and applies its schema.
func OpenBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.Backend, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		path := cfg.Store.SQLitePath(cfg.Server.DataDir)
		st, err := store.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("driver", "sqlite").Str("path", path).Msg("store opened")
		return st, nil
	case "postgres":
		st, err := postgres.Connect(ctx, cfg.Store.DSN, cfg.Store.MaxConns, logger)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("driver", "postgres").Msg("store opened")
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// App holds the wired gateway components.
type App struct {
	Store     store.Backend
	Registry  *registry.Registry
	Generator *generator.Generator
	Collector *metrics.Collector
	Server    *api.Server
}

// Build seeds providers from cfg into st and wires the registry, generator
// and HTTP server around it. st stays owned by the caller.
func Build(ctx context.Context, cfg *config.Config, st store.Backend, keys *vault.Vault, logger zerolog.Logger) (*App, error) {
	seeded, err := registry.Seed(ctx, st, cfg.Providers, logger)
	if err != nil {
		return nil, err
	}
	if seeded.Created+seeded.Updated > 0 {
		logger.Info().Int("created", seeded.Created).Int("updated", seeded.Updated).Msg("providers seeded")
	}

	collector := metrics.NewCollector()
	reg := registry.New(st, keys, logger.With().Str("component", "registry").Logger())

	gen := generator.New(
		usage.NewLogger(st, logger.With().Str("component", "usage").Logger()),
		logger.With().Str("component", "generator").Logger(),
		generator.Options{
			OpenAIFallbackModel: cfg.Generation.OpenAIFallbackModel,
			GeminiFallbackModel: cfg.Generation.GeminiFallbackModel,
			Timeout:             cfg.Generation.Timeout(),
			ClientCacheSize:     cfg.Generation.ClientCacheSize,
			Metrics:             collector,
		},
	)

	opts := api.Options{
		Addr:         net.JoinHostPort(cfg.Server.BindAddress, strconv.Itoa(cfg.Server.Port)),
		Tracing:      cfg.Tracing.Enabled,
		MaxBodySize:  cfg.Server.MaxBodySize,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}
	if cfg.Auth.Enabled {
		token, err := keys.Resolve(cfg.Auth.Token)
		if err != nil {
			return nil, fmt.Errorf("resolving auth token: %w", err)
		}
		opts.AuthToken = token
	}
	if cfg.RateLimit.Enabled {
		opts.RateLimit = api.NewOrgLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	srv := api.NewServer(st, reg, gen, collector, logger.With().Str("component", "api").Logger(), opts)

	return &App{
		Store:     st,
		Registry:  reg,
		Generator: gen,
		Collector: collector,
		Server:    srv,
	}, nil
}

// NewBillingSyncer builds a Stripe syncer from the [billing] section.
func NewBillingSyncer(cfg *config.Config, reader usage.Reader, keys *vault.Vault, logger zerolog.Logger) (*billing.Syncer, error) {
	key, err := keys.Resolve(cfg.Billing.StripeKey)
	if err != nil {
		return nil, fmt.Errorf("resolving stripe key: %w", err)
	}
	reporter, err := billing.NewStripeReporter(key, cfg.Billing.APIBase)
	if err != nil {
		return nil, err
	}
	return billing.NewSyncer(reader, reporter, cfg.Billing.SubscriptionItems, cfg.Billing.Concurrency, logger), nil
}
