// Package generator turns a resolved provider configuration and a prompt
// into a model response, recording one usage row per successful call.
package generator

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/welinkai/llmgateway/internal/metrics"
	"github.com/welinkai/llmgateway/internal/provider"
	"github.com/welinkai/llmgateway/internal/tokenizer"
	"github.com/welinkai/llmgateway/internal/tracing"
	"github.com/welinkai/llmgateway/internal/usage"
)

// Request is one generation request.
type Request struct {
	SystemPrompt   string `json:"system_prompt"`
	Message        string `json:"message"`
	Context        string `json:"context,omitempty"`
	OrganizationID string `json:"organization_id"`
	AgentID        string `json:"agent_id"`
}

// Result is a successful generation.
type Result struct {
	Text      string        `json:"text"`
	Model     string        `json:"model"`
	TokensIn  int           `json:"tokens_in"`
	TokensOut int           `json:"tokens_out"`
	Estimated bool          `json:"estimated"`
	Usage     *usage.Record `json:"usage,omitempty"` // nil unless the row was stored
}

// UsageLogger persists usage for successful generations and returns the
// stored record, or nil when the write failed. *usage.Logger satisfies it.
type UsageLogger interface {
	LogUsage(ctx context.Context, providerID int64, providerName, model string, tokensIn, tokensOut int, orgID, agentID string, estimated bool) *usage.Record
}

// Options configures a Generator. Zero values select the defaults.
type Options struct {
	OpenAIFallbackModel string
	GeminiFallbackModel string
	// Timeout bounds each vendor call; zero leaves the caller's context as is.
	Timeout         time.Duration
	ClientCacheSize int

	OpenAIFactory OpenAIFactory
	GeminiFactory GeminiFactory
	HTTPClient    *http.Client
	Metrics       *metrics.Collector
}

// Generator dispatches generations to the vendor SDK matching the
// provider family. It is safe for concurrent use.
type Generator struct {
	opts       Options
	usage      UsageLogger
	logger     zerolog.Logger
	tokenizer  *tokenizer.Tokenizer
	httpClient *http.Client
	openai     *clientCache[ChatCompleter]
	gemini     *clientCache[ContentGenerator]
}

// New creates a Generator that records usage through ul.
func New(ul UsageLogger, logger zerolog.Logger, opts Options) *Generator {
	if opts.OpenAIFactory == nil {
		opts.OpenAIFactory = NewOpenAIClient
	}
	if opts.GeminiFactory == nil {
		opts.GeminiFactory = NewGeminiClient
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient()
	}
	return &Generator{
		opts:       opts,
		usage:      ul,
		logger:     logger,
		tokenizer:  tokenizer.New(),
		httpClient: httpClient,
		openai:     newClientCache[ChatCompleter](opts.ClientCacheSize),
		gemini:     newClientCache[ContentGenerator](opts.ClientCacheSize),
	}
}

// Generate returns the model's answer to req using the provider cfg.
func (g *Generator) Generate(ctx context.Context, cfg *provider.Config, req Request) (string, error) {
	res, err := g.GenerateResult(ctx, cfg, req)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// GenerateResult is Generate with token counts and the written usage row.
//
// An unsupported family fails with ErrUnsupportedProvider before any
// vendor call. Vendor failures return a *GenerationError and write no
// usage. Exactly one usage record is written per success.
func (g *Generator) GenerateResult(ctx context.Context, cfg *provider.Config, req Request) (*Result, error) {
	if cfg == nil {
		return nil, ErrUnsupportedProvider
	}

	family := string(cfg.Family)
	m := g.opts.Metrics

	if cfg.Family != provider.FamilyGemini && cfg.Family != provider.FamilyOpenAI {
		g.logger.Warn().Str("provider", cfg.Name).Str("family", family).Msg("unsupported provider family")
		m.RecordFailure(cfg.Name, family, metrics.OutcomeUnsupported, 0)
		return nil, unsupported(cfg)
	}

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	model := g.resolveModel(cfg)
	ctx, span := tracing.StartGenerationSpan(ctx, cfg.Name, family, model)
	defer span.End()
	tracing.SetRequestAttributes(ctx, req.OrganizationID, req.AgentID)

	m.IncrementActive()
	defer m.DecrementActive()

	system := BuildSystemPrompt(req.SystemPrompt, req.Context)
	start := time.Now()

	var (
		res *Result
		err error
	)
	switch cfg.Family {
	case provider.FamilyGemini:
		res, err = g.generateGemini(ctx, cfg, model, system, req)
	default:
		res, err = g.generateOpenAI(ctx, cfg, model, system, req)
	}
	elapsed := time.Since(start)

	if err != nil {
		tracing.RecordError(ctx, err)
		m.RecordFailure(cfg.Name, family, metrics.OutcomeFailure, elapsed)
		return nil, err
	}

	if g.usage != nil {
		res.Usage = g.usage.LogUsage(ctx, cfg.ID, cfg.Name, res.Model, res.TokensIn, res.TokensOut,
			req.OrganizationID, req.AgentID, res.Estimated)
	}

	cost := usage.Cost(res.TokensIn, res.TokensOut)
	tracing.SetUsageAttributes(ctx, res.TokensIn, res.TokensOut, cost, res.Estimated)
	m.RecordGeneration(cfg.Name, family, res.TokensIn, res.TokensOut, cost, res.Estimated, elapsed)

	g.logger.Info().
		Str("provider", cfg.Name).
		Str("family", family).
		Str("model", res.Model).
		Int("tokens_in", res.TokensIn).
		Int("tokens_out", res.TokensOut).
		Bool("estimated", res.Estimated).
		Dur("elapsed", elapsed).
		Msg("generation complete")

	return res, nil
}

func (g *Generator) resolveModel(cfg *provider.Config) string {
	if cfg.Family == provider.FamilyGemini {
		return provider.ResolveGeminiModel(cfg, g.opts.GeminiFallbackModel)
	}
	return provider.ResolveOpenAIModel(cfg, g.opts.OpenAIFallbackModel)
}
