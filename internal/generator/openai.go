package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/welinkai/llmgateway/internal/provider"
	"github.com/welinkai/llmgateway/internal/tokenizer"
)

// ChatCompleter is the slice of the OpenAI SDK the generator uses.
// *openai.Client satisfies it.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIFactory builds a ChatCompleter for a provider.
type OpenAIFactory func(cfg *provider.Config, httpClient *http.Client) (ChatCompleter, error)

// NewOpenAIClient builds a chat-completions client for cfg, honouring a
// base-URL override for OpenAI-compatible backends.
func NewOpenAIClient(cfg *provider.Config, httpClient *http.Client) (ChatCompleter, error) {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		cc.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(cc), nil
}

func (g *Generator) generateOpenAI(ctx context.Context, cfg *provider.Config, model, system string, req Request) (*Result, error) {
	client, err := g.openai.getOrCreate(keyFor(cfg), func() (ChatCompleter, error) {
		return g.opts.OpenAIFactory(cfg, g.httpClient)
	})
	if err != nil {
		g.logger.Error().Err(err).Str("provider", cfg.Name).Msg("creating openai client")
		return nil, &GenerationError{Provider: cfg.Name, Family: cfg.Family, Message: err.Error()}
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: req.Message},
	}
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return nil, g.openAIError(cfg, model, err)
	}

	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	if text == "" {
		text = NoResponse
	}

	res := &Result{
		Text:      text,
		Model:     model,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
	}
	if res.TokensIn == 0 && res.TokensOut == 0 {
		// Some compatible backends omit usage entirely.
		res.TokensIn = g.tokenizer.CountMessages(model, []tokenizer.Message{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: req.Message},
		})
		res.TokensOut = g.tokenizer.CountTokens(model, text)
		res.Estimated = true
	}
	return res, nil
}

// openAIError logs the SDK error with its HTTP status, type and code and
// converts it into a *GenerationError carrying the vendor message.
func (g *Generator) openAIError(cfg *provider.Config, model string, err error) error {
	ev := g.logger.Error().Err(err).Str("provider", cfg.Name).Str("model", model)
	gerr := &GenerationError{Provider: cfg.Name, Family: cfg.Family, Message: err.Error()}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		gerr.StatusCode = apiErr.HTTPStatusCode
		gerr.Message = apiErr.Message
		ev = ev.Int("status", apiErr.HTTPStatusCode).Str("type", apiErr.Type)
		if apiErr.Code != nil {
			ev = ev.Str("code", fmt.Sprint(apiErr.Code))
		}
	case errors.As(err, &reqErr):
		gerr.StatusCode = reqErr.HTTPStatusCode
		if reqErr.Err != nil {
			gerr.Message = reqErr.Err.Error()
		}
		ev = ev.Int("status", reqErr.HTTPStatusCode)
	}
	ev.Msg("openai generation failed")
	return gerr
}
