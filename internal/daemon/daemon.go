package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/welinkai/llmgateway/internal/config"
	"github.com/welinkai/llmgateway/internal/metrics"
	"github.com/welinkai/llmgateway/internal/registry"
	"github.com/welinkai/llmgateway/internal/tracing"
	"github.com/welinkai/llmgateway/internal/vault"
	"github.com/welinkai/llmgateway/internal/version"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 30 * time.Second

// Run is the daemon entry point. It opens the store, seeds providers,
// starts the HTTP API and blocks until SIGINT/SIGTERM or a server error.
func Run(cfg *config.Config, foreground bool) error {
	dataDir := expandHome(cfg.Server.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	zerolog.SetGlobalLevel(ParseLogLevel(cfg.Server.LogLevel))
	logger, logFile := NewLogger(cfg.Log, dataDir, foreground)
	defer logFile.Close()
	log.Logger = logger

	logger.Info().
		Str("version", version.Version).
		Str("data_dir", dataDir).
		Bool("foreground", foreground).
		Msg("llmgateway starting")

	pid := NewPIDFile(dataDir)
	if err := pid.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.Init(ctx, tracing.OptionsFromConfig(cfg.Tracing, version.Version))
		if err != nil {
			logger.Warn().Err(err).Msg("tracing disabled")
		} else {
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracing(flushCtx); err != nil {
					logger.Error().Err(err).Msg("tracing shutdown error")
				}
			}()
		}
	}

	st, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	app, err := Build(ctx, cfg, st, vault.New(), logger)
	if err != nil {
		return err
	}

	if w := watchConfig(dataDir, st, logger); w != nil {
		defer w.Close()
	}

	errCh := make(chan error, 1)
	go func() {
		var serveErr error
		if cfg.Server.TLSEnabled {
			serveErr = app.Server.StartTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			serveErr = app.Server.Start()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	logger.Info().
		Str("addr", net.JoinHostPort(cfg.Server.BindAddress, strconv.Itoa(cfg.Server.Port))).
		Bool("tls", cfg.Server.TLSEnabled).
		Str("store", cfg.Store.Driver).
		Msg("llmgateway is ready")
	if foreground {
		fmt.Printf("\n  llmgateway is running on %s\n\n", baseURL(cfg))
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("fatal server error")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api server shutdown error")
	}

	logger.Info().Msg("llmgateway stopped")
	return nil
}

// watchConfig applies live-reloadable changes: the log level and the
// provider seed map.
func watchConfig(dataDir string, st registry.ProviderStore, logger zerolog.Logger) *config.Watcher {
	path := config.ConfigFilePath()
	if path == "" {
		path = filepath.Join(dataDir, config.DefaultConfigFilename)
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	w, err := config.Watch(path, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to start config watcher; continuing without hot-reload")
		return nil
	}
	w.OnChange(func(_, cfg *config.Config, changes config.Changes) {
		if changes.LogLevel {
			level := ParseLogLevel(cfg.Server.LogLevel)
			zerolog.SetGlobalLevel(level)
			logger.Info().Str("log_level", level.String()).Msg("log level changed")
		}
		if changes.Providers {
			res, err := registry.Seed(context.Background(), st, cfg.Providers, logger)
			if err != nil {
				logger.Error().Err(err).Msg("reseeding providers failed")
				return
			}
			logger.Info().Int("created", res.Created).Int("updated", res.Updated).Msg("providers reseeded")
		}
	})
	logger.Info().Str("file", path).Msg("config watcher started")
	return w
}

// Stop sends SIGTERM to the running daemon and waits briefly for it to exit.
func Stop() error {
	pid := NewPIDFile(expandHome(config.Get().Server.DataDir))

	n, err := pid.Read()
	if err != nil {
		return fmt.Errorf("llmgateway does not appear to be running: %w", err)
	}

	if !processAlive(n) {
		if rmErr := pid.Remove(); rmErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove stale PID file: %v\n", rmErr)
		}
		return fmt.Errorf("llmgateway is not running (stale PID file removed)")
	}

	process, err := os.FindProcess(n)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", n, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending SIGTERM to process %d: %w", n, err)
	}
	fmt.Printf("Sent SIGTERM to llmgateway (PID %d)\n", n)

	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if !processAlive(n) {
			return nil
		}
	}
	return nil
}

// Status prints whether the daemon is running and, if reachable, its stats.
func Status() error {
	cfg := config.Get()
	pid := NewPIDFile(expandHome(cfg.Server.DataDir))

	if !pid.Running() {
		fmt.Println("llmgateway is not running")
		return nil
	}
	n, _ := pid.Read()
	fmt.Printf("llmgateway is running (PID %d)\n", n)

	stats, err := FetchStats(cfg)
	if err != nil {
		fmt.Printf("  (api unreachable: %v)\n", err)
		return nil
	}

	fmt.Printf("\n  Uptime:        %s\n", stats.Uptime)
	fmt.Printf("  Generations:   %d\n", stats.Generations)
	fmt.Printf("  Failures:      %d\n", stats.Failures)
	fmt.Printf("  Success Rate:  %.1f%%\n", stats.SuccessRate)
	fmt.Printf("  Tokens In:     %d\n", stats.TokensIn)
	fmt.Printf("  Tokens Out:    %d\n", stats.TokensOut)
	fmt.Printf("  Estimated:     %d\n", stats.EstimatedRecords)
	fmt.Printf("  Cost:          $%.6f\n", stats.CostUSD)
	fmt.Printf("  Active:        %d\n", stats.ActiveGenerations)
	return nil
}

// FetchStats reads /v1/stats from the running daemon.
func FetchStats(cfg *config.Config) (*metrics.Stats, error) {
	req, err := http.NewRequest(http.MethodGet, baseURL(cfg)+"/v1/stats", nil)
	if err != nil {
		return nil, err
	}
	if cfg.Auth.Enabled {
		token, err := vault.New().Resolve(cfg.Auth.Token)
		if err != nil {
			return nil, fmt.Errorf("resolving auth token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var stats metrics.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decoding stats: %w", err)
	}
	return &stats, nil
}

// baseURL is the local address clients use to reach the API.
func baseURL(cfg *config.Config) string {
	scheme := "http"
	if cfg.Server.TLSEnabled {
		scheme = "https"
	}
	host := cfg.Server.BindAddress
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port)))
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
