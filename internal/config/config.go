package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// configPtr holds the current config for thread-safe access.
var configPtr atomic.Pointer[Config]

// loadedConfigFile stores the path of the config file used by the last successful Load.
var loadedConfigFile atomic.Value

// Get returns the current Config. It is safe for concurrent use.
// If no config has been loaded yet, it returns the default config.
func Get() *Config {
	if c := configPtr.Load(); c != nil {
		return c
	}
	d := DefaultConfig()
	configPtr.Store(d)
	return d
}

func set(cfg *Config) {
	configPtr.Store(cfg)
}

// Config is the top-level configuration for the gateway.
type Config struct {
	Server     ServerConfig              `mapstructure:"server"     toml:"server"`
	Log        LogConfig                 `mapstructure:"log"        toml:"log"`
	Auth       AuthConfig                `mapstructure:"auth"       toml:"auth"`
	Store      StoreConfig               `mapstructure:"store"      toml:"store"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"  toml:"providers"`
	Generation GenerationConfig          `mapstructure:"generation" toml:"generation"`
	RateLimit  RateLimitConfig           `mapstructure:"rate_limit" toml:"rate_limit"`
	Billing    BillingConfig             `mapstructure:"billing"    toml:"billing"`
	Tracing    TracingConfig             `mapstructure:"tracing"    toml:"tracing"`
}

// ServerConfig holds the HTTP API server settings.
type ServerConfig struct {
	BindAddress  string `mapstructure:"bind_address"  toml:"bind_address"`
	Port         int    `mapstructure:"port"          toml:"port"`
	LogLevel     string `mapstructure:"log_level"     toml:"log_level"`
	DataDir      string `mapstructure:"data_dir"      toml:"data_dir"`
	TLSEnabled   bool   `mapstructure:"tls_enabled"   toml:"tls_enabled"`
	CertFile     string `mapstructure:"cert_file"     toml:"cert_file"`
	KeyFile      string `mapstructure:"key_file"      toml:"key_file"`
	ReadTimeout  int    `mapstructure:"read_timeout"  toml:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout" toml:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"  toml:"idle_timeout"`
	MaxBodySize  int64  `mapstructure:"max_body_size" toml:"max_body_size"`
}

// LogConfig controls the rotating daemon log file.
type LogConfig struct {
	File       string `mapstructure:"file"         toml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"  toml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"  toml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" toml:"max_age_days"`
	Compress   bool   `mapstructure:"compress"     toml:"compress"`
}

// AuthConfig holds the API bearer-token settings.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Token   string `mapstructure:"token"   toml:"token"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"    toml:"driver"` // "sqlite" or "postgres"
	DSN      string `mapstructure:"dsn"       toml:"dsn"`    // sqlite path or postgres URL
	MaxConns int    `mapstructure:"max_conns" toml:"max_conns"`
}

// SQLitePath returns the database file path for the sqlite driver, falling
// back to <data_dir>/llmgateway.db.
func (s StoreConfig) SQLitePath(dataDir string) string {
	if s.DSN != "" {
		return expandHome(s.DSN)
	}
	return filepath.Join(dataDir, DefaultDatabaseFilename)
}

// ProviderConfig seeds one provider row at startup. APIKey may be a raw key
// or a key reference (env:, file://, keyring://).
type ProviderConfig struct {
	Name         string   `mapstructure:"name"          toml:"name"`
	Family       string   `mapstructure:"family"        toml:"family"`
	APIKey       string   `mapstructure:"api_key"       toml:"api_key"`
	BaseURL      string   `mapstructure:"base_url"      toml:"base_url"`
	Models       []string `mapstructure:"models"        toml:"models"`
	Model        string   `mapstructure:"model"         toml:"model"`
	DefaultModel string   `mapstructure:"default_model" toml:"default_model"`
	Priority     int      `mapstructure:"priority"      toml:"priority"`
	Active       bool     `mapstructure:"active"        toml:"active"`
}

// GenerationConfig controls vendor calls.
type GenerationConfig struct {
	OpenAIFallbackModel string `mapstructure:"openai_fallback_model" toml:"openai_fallback_model"`
	GeminiFallbackModel string `mapstructure:"gemini_fallback_model" toml:"gemini_fallback_model"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"       toml:"timeout_seconds"`
	ClientCacheSize     int    `mapstructure:"client_cache_size"     toml:"client_cache_size"`
}

// Timeout returns the per-generation deadline as a time.Duration.
func (g GenerationConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return DefaultGenerationTimeout * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// RateLimitConfig controls per-organization request limiting on /v1/generate.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"             toml:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `mapstructure:"burst"               toml:"burst"`
}

// BillingConfig controls the Stripe metered-usage export.
type BillingConfig struct {
	Enabled           bool              `mapstructure:"enabled"            toml:"enabled"`
	StripeKey         string            `mapstructure:"stripe_key"         toml:"stripe_key"` // raw key or key reference
	APIBase           string            `mapstructure:"api_base"           toml:"api_base"`   // override for stripe-mock
	SubscriptionItems map[string]string `mapstructure:"subscription_items" toml:"subscription_items"`
	Concurrency       int               `mapstructure:"concurrency"        toml:"concurrency"`
}

// TracingConfig controls OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"      toml:"enabled"`
	Exporter    string  `mapstructure:"exporter"     toml:"exporter"`     // "stdout", "otlp-grpc", "otlp-http"
	Endpoint    string  `mapstructure:"endpoint"     toml:"endpoint"`     // e.g. "localhost:4317"
	ServiceName string  `mapstructure:"service_name" toml:"service_name"` // defaults to "llmgateway"
	SampleRate  float64 `mapstructure:"sample_rate"  toml:"sample_rate"`  // 0.0 to 1.0
	Insecure    bool    `mapstructure:"insecure"     toml:"insecure"`
}

// Load reads configuration from disk with the following precedence:
//  1. Environment variables (LLMGATEWAY_ prefix, _ as separator)
//  2. The file at explicitPath if non-empty
//  3. ~/.llmgateway/llmgateway.toml
//  4. ./llmgateway.toml
//  5. Built-in defaults
//
// The loaded config is validated and stored in the global atomic pointer.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	setViperDefaults(v)

	// LLMGATEWAY_SERVER_PORT etc.
	v.SetEnvPrefix("LLMGATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".llmgateway"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("llmgateway")
	}

	if err := v.ReadInConfig(); err != nil {
		// No config file: defaults + env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if cf := v.ConfigFileUsed(); cf != "" {
		loadedConfigFile.Store(cf)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.Server.DataDir = expandHome(cfg.Server.DataDir)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	set(cfg)
	return cfg, nil
}

// writeTOML marshals cfg and writes it to path with owner-only access.
func writeTOML(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// InitConfig writes the default configuration to
// ~/.llmgateway/llmgateway.toml unless that file already exists. It
// returns the path and whether a new file was written.
func InitConfig() (string, bool, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("determining home directory: %w", err)
	}
	dir := filepath.Join(homeDir, ".llmgateway")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", false, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dir, DefaultConfigFilename)
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	}
	return path, true, writeTOML(path, DefaultConfig())
}

// ExportConfig writes the current config to path.
func ExportConfig(path string) error {
	return writeTOML(path, Get())
}

// ImportConfig parses and validates the TOML file at path, makes it the
// current config, and overwrites the config file that was loaded, if any.
func ImportConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return err
	}
	set(cfg)

	if dest := ConfigFilePath(); dest != "" {
		return writeTOML(dest, cfg)
	}
	return nil
}

// ConfigFilePath returns the path of the config file that was loaded, or
// empty if no file was found.
func ConfigFilePath() string {
	if v, ok := loadedConfigFile.Load().(string); ok {
		return v
	}
	return ""
}

// setViperDefaults registers every scalar key of DefaultConfig with viper
// so LLMGATEWAY_* environment variables bind even without a config file.
// Map-valued sections (providers, billing.subscription_items) come from
// the file only.
func setViperDefaults(v *viper.Viper) {
	registerDefaults(v, "", reflect.ValueOf(DefaultConfig()).Elem())
}

func registerDefaults(v *viper.Viper, prefix string, rv reflect.Value) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		switch fv := rv.Field(i); fv.Kind() {
		case reflect.Struct:
			registerDefaults(v, key, fv)
		case reflect.Map:
		default:
			v.SetDefault(key, fv.Interface())
		}
	}
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
