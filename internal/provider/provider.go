package provider

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by every store backend when a provider lookup
// matches no row.
var ErrNotFound = errors.New("provider not found")

// Family identifies which vendor SDK serves a provider. It is chosen by the
// administrator when the provider is created and never inferred per request.
type Family string

const (
	FamilyGemini      Family = "gemini"
	FamilyOpenAI      Family = "openai"
	FamilyUnsupported Family = "unsupported"
)

// ValidFamilies lists the accepted values for Family.
var ValidFamilies = []Family{FamilyGemini, FamilyOpenAI, FamilyUnsupported}

// ParseFamily normalises s into a Family. Unknown values map to
// FamilyUnsupported and ok=false.
func ParseFamily(s string) (f Family, ok bool) {
	switch Family(strings.ToLower(strings.TrimSpace(s))) {
	case FamilyGemini:
		return FamilyGemini, true
	case FamilyOpenAI:
		return FamilyOpenAI, true
	case FamilyUnsupported:
		return FamilyUnsupported, true
	default:
		return FamilyUnsupported, false
	}
}

// familyKeywords are matched case-insensitively against a provider name.
var familyKeywords = []struct {
	keyword string
	family  Family
}{
	{"gemini", FamilyGemini},
	{"google", FamilyGemini},
	{"openai", FamilyOpenAI},
	{"chatgpt", FamilyOpenAI},
	{"gpt", FamilyOpenAI},
}

// InferFamily guesses a family from a free-text provider name. It is only
// used when an administrator creates a provider without choosing a family;
// the result is persisted with the provider.
func InferFamily(name string) Family {
	lower := strings.ToLower(name)
	for _, k := range familyKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.family
		}
	}
	return FamilyUnsupported
}

// Provider is a configured LLM vendor account as persisted by the store.
type Provider struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Family       Family    `json:"family"`
	APIKey       string    `json:"api_key"`
	BaseURL      string    `json:"base_url"`
	Models       string    `json:"models"`
	Model        string    `json:"model"`
	DefaultModel string    `json:"default_model"`
	Priority     int       `json:"priority"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ModelList returns the parsed comma-separated model list.
func (p *Provider) ModelList() []string {
	return ParseModels(p.Models)
}

// Config is the normalized view of an active provider handed to the
// generator. APIKey holds the resolved secret, never a key reference.
type Config struct {
	ID           int64
	Name         string
	Family       Family
	APIKey       string
	BaseURL      string
	Model        string
	DefaultModel string
	Models       []string
}

// Normalize builds a Config from p using apiKey as the resolved secret.
// DefaultModel is the explicit default, else the first listed model.
func Normalize(p *Provider, apiKey string) *Config {
	models := p.ModelList()
	def := strings.TrimSpace(p.DefaultModel)
	if def == "" && len(models) > 0 {
		def = models[0]
	}
	return &Config{
		ID:           p.ID,
		Name:         p.Name,
		Family:       p.Family,
		APIKey:       apiKey,
		BaseURL:      strings.TrimSpace(p.BaseURL),
		Model:        strings.TrimSpace(p.Model),
		DefaultModel: def,
		Models:       models,
	}
}

// ParseModels splits a comma-separated model list, trimming whitespace and
// dropping empty entries.
func ParseModels(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	models := make([]string, 0, len(parts))
	for _, m := range parts {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	return models
}

// JoinModels is the inverse of ParseModels.
func JoinModels(models []string) string {
	return strings.Join(ParseModels(strings.Join(models, ",")), ",")
}
