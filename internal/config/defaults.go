package config

import "github.com/welinkai/llmgateway/internal/provider"

// DefaultBindAddress is the default bind address (localhost only).
const DefaultBindAddress = "127.0.0.1"

// DefaultPort is the default port for the HTTP API.
const DefaultPort = 7690

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// DefaultDataDir is the default data directory (before tilde expansion).
const DefaultDataDir = "~/.llmgateway"

// DefaultConfigFilename is the name of the config file.
const DefaultConfigFilename = "llmgateway.toml"

// DefaultDatabaseFilename is the SQLite file created under the data dir.
const DefaultDatabaseFilename = "llmgateway.db"

// DefaultLogFilename is the daemon log file created under the data dir.
const DefaultLogFilename = "llmgateway.log"

// DefaultReadTimeout is the default HTTP server read timeout in seconds.
const DefaultReadTimeout = 10

// DefaultWriteTimeout is the default HTTP server write timeout in seconds.
// It must exceed the generation timeout.
const DefaultWriteTimeout = 120

// DefaultIdleTimeout is the default HTTP server idle timeout in seconds.
const DefaultIdleTimeout = 120

// DefaultMaxBodySize is the default maximum request body size in bytes (1 MB).
const DefaultMaxBodySize = 1 << 20

// DefaultGenerationTimeout is the default vendor call deadline in seconds.
const DefaultGenerationTimeout = 60

// DefaultClientCacheSize is the default number of cached vendor clients.
const DefaultClientCacheSize = 64

// DefaultTracingExporter is the default tracing exporter type.
const DefaultTracingExporter = "otlp-grpc"

// DefaultTracingEndpoint is the default OTLP collector endpoint.
const DefaultTracingEndpoint = "localhost:4317"

// DefaultTracingServiceName is the default service name for traces.
const DefaultTracingServiceName = "llmgateway"

// DefaultTracingSampleRate is the default sampling rate (1.0 = 100%).
const DefaultTracingSampleRate = 1.0

// ValidLogLevels lists the allowed log level values.
var ValidLogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal"}

// ValidStoreDrivers lists the supported persistence backends.
var ValidStoreDrivers = []string{"sqlite", "postgres"}

// ValidTracingExporters lists the supported OpenTelemetry exporters.
var ValidTracingExporters = []string{"stdout", "otlp-grpc", "otlp-http"}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress:  DefaultBindAddress,
			Port:         DefaultPort,
			LogLevel:     DefaultLogLevel,
			DataDir:      DefaultDataDir,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
			MaxBodySize:  DefaultMaxBodySize,
		},
		Log: LogConfig{
			File:       DefaultLogFilename,
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Store: StoreConfig{
			Driver:   "sqlite",
			MaxConns: 10,
		},
		Providers: map[string]ProviderConfig{},
		Generation: GenerationConfig{
			OpenAIFallbackModel: provider.DefaultOpenAIModel,
			GeminiFallbackModel: provider.DefaultGeminiModel,
			TimeoutSeconds:      DefaultGenerationTimeout,
			ClientCacheSize:     DefaultClientCacheSize,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 5.0,
			Burst:             10,
		},
		Billing: BillingConfig{
			Enabled:           false,
			StripeKey:         "keyring://llmgateway/stripe",
			SubscriptionItems: map[string]string{},
			Concurrency:       4,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    DefaultTracingExporter,
			Endpoint:    DefaultTracingEndpoint,
			ServiceName: DefaultTracingServiceName,
			SampleRate:  DefaultTracingSampleRate,
		},
	}
}
