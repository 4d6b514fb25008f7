package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Server.DataDir = "/tmp/test"
	return cfg
}

func expectValidationError(t *testing.T, cfg *Config, field string) {
	t.Helper()
	err := validate(cfg)
	if err == nil {
		t.Fatalf("expected validation error mentioning %s", field)
	}
	if !strings.Contains(err.Error(), field) {
		t.Errorf("error should mention %s: %v", field, err)
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := validate(validConfig()); err != nil {
		t.Fatalf("validate valid config: %v", err)
	}
}

func TestValidate_BadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 70000
	expectValidationError(t, cfg, "server.port")
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Server.LogLevel = "verbose"
	expectValidationError(t, cfg, "log_level")
}

func TestValidate_EmptyDataDir(t *testing.T) {
	cfg := validConfig()
	cfg.Server.DataDir = ""
	expectValidationError(t, cfg, "data_dir")
}

func TestValidate_TLS_MissingCert(t *testing.T) {
	cfg := validConfig()
	cfg.Server.TLSEnabled = true
	cfg.Server.KeyFile = "/tmp/key.pem"
	expectValidationError(t, cfg, "cert_file")
}

func TestValidate_NegativeReadTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Server.ReadTimeout = -1
	expectValidationError(t, cfg, "read_timeout")
}

func TestValidate_AuthTokenRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Enabled = true
	expectValidationError(t, cfg, "auth.token")
}

func TestValidate_BadStoreDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "mysql"
	expectValidationError(t, cfg, "store.driver")
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "postgres"
	expectValidationError(t, cfg, "store.dsn")

	cfg.Store.DSN = "postgres://localhost/gw"
	if err := validate(cfg); err != nil {
		t.Fatalf("postgres with dsn should validate: %v", err)
	}
}

func TestValidate_ProviderBadFamily(t *testing.T) {
	cfg := validConfig()
	cfg.Providers["x"] = ProviderConfig{Name: "x", Family: "mistral"}
	expectValidationError(t, cfg, "providers.x.family")
}

func TestValidate_ProviderNegativePriority(t *testing.T) {
	cfg := validConfig()
	cfg.Providers["x"] = ProviderConfig{Name: "x", Family: "openai", Priority: -1}
	expectValidationError(t, cfg, "providers.x.priority")
}

func TestValidate_ProviderDuplicateName(t *testing.T) {
	cfg := validConfig()
	cfg.Providers["a"] = ProviderConfig{Name: "Gemini"}
	cfg.Providers["b"] = ProviderConfig{Name: "gemini"}
	expectValidationError(t, cfg, "duplicates")
}

func TestValidate_ClientCacheSize(t *testing.T) {
	cfg := validConfig()
	cfg.Generation.ClientCacheSize = 0
	expectValidationError(t, cfg, "client_cache_size")
}

func TestValidate_RateLimitWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerSecond = 0
	expectValidationError(t, cfg, "requests_per_second")
}

func TestValidate_BillingKeyRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Billing.Enabled = true
	cfg.Billing.StripeKey = ""
	expectValidationError(t, cfg, "billing.stripe_key")
}

func TestValidate_TracingExporter(t *testing.T) {
	cfg := validConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "zipkin"
	expectValidationError(t, cfg, "tracing.exporter")
}

func TestValidate_SampleRateOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Tracing.SampleRate = 1.5
	expectValidationError(t, cfg, "sample_rate")
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Server.LogLevel = "bad"

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "server.port") || !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention multiple fields: %v", err)
	}
}

func TestIsValidEnum(t *testing.T) {
	if !isValidEnum("INFO", ValidLogLevels) {
		t.Error("INFO should be valid (case-insensitive)")
	}
	if isValidEnum("verbose", ValidLogLevels) {
		t.Error("verbose should not be valid")
	}
}
