// Package api exposes the gateway over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/welinkai/llmgateway/internal/generator"
	"github.com/welinkai/llmgateway/internal/metrics"
	"github.com/welinkai/llmgateway/internal/provider"
	"github.com/welinkai/llmgateway/internal/store"
	"github.com/welinkai/llmgateway/internal/tracing"
)

// Resolver picks the provider for a generation. *registry.Registry
// satisfies it.
type Resolver interface {
	ResolveProvider(ctx context.Context, preferred string) (*provider.Config, error)
}

// Generator runs a generation. *generator.Generator satisfies it.
type Generator interface {
	GenerateResult(ctx context.Context, cfg *provider.Config, req generator.Request) (*generator.Result, error)
}

// Options configures the HTTP surface. Zero values disable the optional
// middleware.
type Options struct {
	Addr         string
	AuthToken    string
	Tracing      bool
	RateLimit    *OrgLimiter
	MaxBodySize  int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the gateway HTTP server. It binds the chi router to the
// configured address and provides graceful shutdown support.
type Server struct {
	router    chi.Router
	store     store.Backend
	registry  Resolver
	generator Generator
	collector *metrics.Collector
	logger    zerolog.Logger
	opts      Options
	httpSrv   *http.Server
}

// NewServer wires the routes. /health and /metrics stay unauthenticated so
// probes and scrapers work without the token.
func NewServer(st store.Backend, reg Resolver, gen Generator, collector *metrics.Collector, logger zerolog.Logger, opts Options) *Server {
	s := &Server{
		store:     st,
		registry:  reg,
		generator: gen,
		collector: collector,
		logger:    logger,
		opts:      opts,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	if opts.Tracing {
		r.Use(tracing.HTTPMiddleware)
	}
	if opts.MaxBodySize > 0 {
		r.Use(middleware.RequestSize(opts.MaxBodySize))
	}

	r.Get("/health", s.handleHealth)
	if collector != nil {
		r.Get("/metrics", metrics.PrometheusHandler(collector))
	}

	r.Route("/v1", func(r chi.Router) {
		if opts.AuthToken != "" {
			r.Use(AuthMiddleware(opts.AuthToken))
		}

		r.Get("/stats", s.handleStats)

		r.Get("/providers", s.handleListProviders)
		r.Post("/providers", s.handleCreateProvider)
		r.Get("/providers/resolve", s.handleResolveProvider)
		r.Get("/providers/{id}", s.handleGetProvider)
		r.Put("/providers/{id}", s.handleUpdateProvider)
		r.Post("/providers/{id}/activate", s.handleSetActive(true))
		r.Post("/providers/{id}/deactivate", s.handleSetActive(false))

		r.Post("/generate", s.handleGenerate)

		r.Get("/usage", s.handleListUsage)
		r.Get("/usage/summary", s.handleUsageSummary)
	})

	s.router = r
	s.httpSrv = &http.Server{
		Addr:         opts.Addr,
		Handler:      r,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s
}

// Router returns the underlying chi.Router.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start listens on the configured address and blocks until shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.opts.Addr).Msg("api server starting")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// StartTLS is Start over HTTPS.
func (s *Server) StartTLS(certFile, keyFile string) error {
	s.logger.Info().Str("addr", s.opts.Addr).Msg("api server starting (TLS)")
	if err := s.httpSrv.ListenAndServeTLS(certFile, keyFile); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server (TLS): %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests to
// complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
