package generator

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/welinkai/llmgateway/internal/provider"
	"github.com/welinkai/llmgateway/internal/tokenizer"
)

// ContentGenerator is the slice of the Gemini SDK the generator uses.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiFactory builds a ContentGenerator for a provider.
type GeminiFactory func(ctx context.Context, cfg *provider.Config, httpClient *http.Client) (ContentGenerator, error)

// NewGeminiClient builds a Gemini API client for cfg.
func NewGeminiClient(ctx context.Context, cfg *provider.Config, httpClient *http.Client) (ContentGenerator, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

func (g *Generator) generateGemini(ctx context.Context, cfg *provider.Config, model, system string, req Request) (*Result, error) {
	prompt := singleTurnPrompt(system, req.Message)

	client, err := g.gemini.getOrCreate(keyFor(cfg), func() (ContentGenerator, error) {
		return g.opts.GeminiFactory(ctx, cfg, g.httpClient)
	})
	if err != nil {
		g.logger.Error().Err(err).Str("provider", cfg.Name).Msg("creating gemini client")
		return nil, &GenerationError{Provider: cfg.Name, Family: cfg.Family}
	}

	resp, err := client.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		ev := g.logger.Error().Err(err).Str("provider", cfg.Name).Str("model", model)
		status := 0
		if apiErr, ok := asGeminiAPIError(err); ok {
			status = apiErr.Code
			ev = ev.Int("status", apiErr.Code).Str("vendor_status", apiErr.Status)
		}
		ev.Msg("gemini generation failed")
		return nil, &GenerationError{Provider: cfg.Name, Family: cfg.Family, StatusCode: status}
	}

	text := strings.TrimSpace(resp.Text())

	tokensIn, tokensOut, estimated := geminiUsage(resp, prompt, text)
	return &Result{Text: text, Model: model, TokensIn: tokensIn, TokensOut: tokensOut, Estimated: estimated}, nil
}

// geminiUsage prefers the vendor's usage metadata and falls back to the
// character heuristic over prompt and answer.
func geminiUsage(resp *genai.GenerateContentResponse, prompt, text string) (in, out int, estimated bool) {
	if md := resp.UsageMetadata; md != nil && (md.PromptTokenCount > 0 || md.CandidatesTokenCount > 0) {
		return int(md.PromptTokenCount), int(md.CandidatesTokenCount), false
	}
	return tokenizer.Estimate(prompt), tokenizer.Estimate(text), true
}

func asGeminiAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}
	return genai.APIError{}, false
}
