package provider

// Built-in fallbacks used when neither the provider row nor the gateway
// config names a model.
const (
	DefaultOpenAIModel = "gpt-3.5-turbo"
	DefaultGeminiModel = "gemini-1.5-flash"
)

// ResolveOpenAIModel applies the OpenAI-family precedence:
// explicit Model, then the first listed model, then DefaultModel, then
// fallback (or DefaultOpenAIModel when fallback is empty).
func ResolveOpenAIModel(c *Config, fallback string) string {
	switch {
	case c.Model != "":
		return c.Model
	case len(c.Models) > 0:
		return c.Models[0]
	case c.DefaultModel != "":
		return c.DefaultModel
	case fallback != "":
		return fallback
	default:
		return DefaultOpenAIModel
	}
}

// ResolveGeminiModel applies the Gemini-family precedence: DefaultModel
// (already the explicit default or first listed model after Normalize), then
// the first listed model, then fallback (or DefaultGeminiModel).
func ResolveGeminiModel(c *Config, fallback string) string {
	switch {
	case c.DefaultModel != "":
		return c.DefaultModel
	case len(c.Models) > 0:
		return c.Models[0]
	case fallback != "":
		return fallback
	default:
		return DefaultGeminiModel
	}
}
