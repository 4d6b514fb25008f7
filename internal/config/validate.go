package config

import (
	"fmt"
	"strings"

	"github.com/welinkai/llmgateway/internal/provider"
)

// validate checks the Config for invalid or out-of-range values.
// It returns a combined error if any checks fail.
func validate(cfg *Config) error {
	var errs []string

	// Server
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	if !isValidEnum(cfg.Server.LogLevel, ValidLogLevels) {
		errs = append(errs, fmt.Sprintf("server.log_level must be one of %v, got %q", ValidLogLevels, cfg.Server.LogLevel))
	}
	if cfg.Server.DataDir == "" {
		errs = append(errs, "server.data_dir must not be empty")
	}
	if cfg.Server.TLSEnabled {
		if cfg.Server.CertFile == "" {
			errs = append(errs, "server.cert_file must be set when tls_enabled is true")
		}
		if cfg.Server.KeyFile == "" {
			errs = append(errs, "server.key_file must be set when tls_enabled is true")
		}
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.read_timeout must be non-negative, got %d", cfg.Server.ReadTimeout))
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.write_timeout must be non-negative, got %d", cfg.Server.WriteTimeout))
	}
	if cfg.Server.IdleTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.idle_timeout must be non-negative, got %d", cfg.Server.IdleTimeout))
	}
	if cfg.Server.MaxBodySize < 0 {
		errs = append(errs, fmt.Sprintf("server.max_body_size must be non-negative, got %d", cfg.Server.MaxBodySize))
	}

	// Log
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		errs = append(errs, "log.max_size_mb, log.max_backups and log.max_age_days must be non-negative")
	}

	// Auth
	if cfg.Auth.Enabled && cfg.Auth.Token == "" {
		errs = append(errs, "auth.token must be set when auth.enabled is true")
	}

	// Store
	if !isValidEnum(cfg.Store.Driver, ValidStoreDrivers) {
		errs = append(errs, fmt.Sprintf("store.driver must be one of %v, got %q", ValidStoreDrivers, cfg.Store.Driver))
	}
	if strings.EqualFold(cfg.Store.Driver, "postgres") && cfg.Store.DSN == "" {
		errs = append(errs, "store.dsn must be set when store.driver is postgres")
	}
	if cfg.Store.MaxConns < 0 {
		errs = append(errs, fmt.Sprintf("store.max_conns must be non-negative, got %d", cfg.Store.MaxConns))
	}

	// Providers
	seen := make(map[string]string)
	for key, p := range cfg.Providers {
		name := p.Name
		if name == "" {
			name = key
		}
		if other, dup := seen[strings.ToLower(name)]; dup {
			errs = append(errs, fmt.Sprintf("providers.%s name %q duplicates providers.%s", key, name, other))
		}
		seen[strings.ToLower(name)] = key
		if p.Family != "" {
			if _, ok := provider.ParseFamily(p.Family); !ok {
				errs = append(errs, fmt.Sprintf("providers.%s.family must be one of %v, got %q", key, provider.ValidFamilies, p.Family))
			}
		}
		if p.Priority < 0 {
			errs = append(errs, fmt.Sprintf("providers.%s.priority must be non-negative, got %d", key, p.Priority))
		}
	}

	// Generation
	if cfg.Generation.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Sprintf("generation.timeout_seconds must be non-negative, got %d", cfg.Generation.TimeoutSeconds))
	}
	if cfg.Generation.ClientCacheSize < 1 {
		errs = append(errs, fmt.Sprintf("generation.client_cache_size must be at least 1, got %d", cfg.Generation.ClientCacheSize))
	}

	// RateLimit
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, fmt.Sprintf("rate_limit.requests_per_second must be positive, got %g", cfg.RateLimit.RequestsPerSecond))
		}
		if cfg.RateLimit.Burst < 1 {
			errs = append(errs, fmt.Sprintf("rate_limit.burst must be at least 1, got %d", cfg.RateLimit.Burst))
		}
	}

	// Billing
	if cfg.Billing.Enabled && cfg.Billing.StripeKey == "" {
		errs = append(errs, "billing.stripe_key must be set when billing.enabled is true")
	}
	if cfg.Billing.Concurrency < 0 {
		errs = append(errs, fmt.Sprintf("billing.concurrency must be non-negative, got %d", cfg.Billing.Concurrency))
	}

	// Tracing
	if cfg.Tracing.Enabled {
		if !isValidEnum(cfg.Tracing.Exporter, ValidTracingExporters) {
			errs = append(errs, fmt.Sprintf("tracing.exporter must be one of %v, got %q", ValidTracingExporters, cfg.Tracing.Exporter))
		}
		if cfg.Tracing.ServiceName == "" {
			errs = append(errs, "tracing.service_name must not be empty when tracing is enabled")
		}
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %f", cfg.Tracing.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isValidEnum returns true if val is in the allowed list (case-insensitive).
func isValidEnum(val string, allowed []string) bool {
	lower := strings.ToLower(val)
	for _, a := range allowed {
		if strings.ToLower(a) == lower {
			return true
		}
	}
	return false
}
