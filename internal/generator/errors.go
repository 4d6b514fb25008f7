package generator

import (
	"errors"
	"fmt"

	"github.com/welinkai/llmgateway/internal/provider"
)

var (
	// ErrUnsupportedProvider is returned before any vendor call when the
	// provider's family has no generation path.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrGenerationFailed is the sentinel every *GenerationError unwraps to.
	ErrGenerationFailed = errors.New("generation failed")
)

// GenerationError reports a failed vendor call. Message carries the
// vendor's own message for the OpenAI family and a generic text for the
// Gemini family; the raw SDK error is logged, never returned.
type GenerationError struct {
	Provider   string
	Family     provider.Family
	StatusCode int
	Message    string
}

func (e *GenerationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("generation failed: %s provider %q", e.Family, e.Provider)
	}
	return fmt.Sprintf("generation failed: %s provider %q: %s", e.Family, e.Provider, e.Message)
}

// Unwrap lets callers match with errors.Is(err, ErrGenerationFailed).
func (e *GenerationError) Unwrap() error {
	return ErrGenerationFailed
}

func unsupported(cfg *provider.Config) error {
	return fmt.Errorf("%w: %q has family %q", ErrUnsupportedProvider, cfg.Name, cfg.Family)
}
