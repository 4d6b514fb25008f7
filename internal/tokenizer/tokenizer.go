package tokenizer

import (
	"strings"
	"sync"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Message represents a chat message for token counting purposes.
type Message struct {
	Role    string
	Content string
	Name    string // optional
}

// Tokenizer provides token counting using tiktoken encodings.
// Encodings are cached via sync.Once to avoid repeated initialization.
type Tokenizer struct {
	cl100kOnce sync.Once
	cl100kEnc  *tiktoken.Tiktoken
	cl100kErr  error

	o200kOnce sync.Once
	o200kEnc  *tiktoken.Tiktoken
	o200kErr  error
}

// modelEncodings maps model names to their tiktoken encoding.
var modelEncodings = map[string]string{
	// cl100k_base
	"gpt-3.5-turbo": "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-4-turbo":   "cl100k_base",

	// o200k_base
	"gpt-4o":      "o200k_base",
	"gpt-4o-mini": "o200k_base",
	"gpt-4.1":     "o200k_base",
	"o1":          "o200k_base",
	"o3":          "o200k_base",
}

// New creates a new Tokenizer instance.
func New() *Tokenizer {
	return &Tokenizer{}
}

// GetEncoding returns the encoding name for the given model.
// Unknown models default to cl100k_base.
func (t *Tokenizer) GetEncoding(model string) string {
	if enc, ok := modelEncodings[model]; ok {
		return enc
	}

	// Longest prefix wins so "gpt-4o-2024-08-06" maps to gpt-4o, not gpt-4.
	lower := strings.ToLower(model)
	best, bestLen := "", 0
	for m, enc := range modelEncodings {
		if strings.HasPrefix(lower, m) && len(m) > bestLen {
			best, bestLen = enc, len(m)
		}
	}
	if best != "" {
		return best
	}

	return "cl100k_base"
}

// getEncoder returns the cached tiktoken encoder for the given model.
func (t *Tokenizer) getEncoder(model string) (*tiktoken.Tiktoken, error) {
	switch t.GetEncoding(model) {
	case "o200k_base":
		t.o200kOnce.Do(func() {
			t.o200kEnc, t.o200kErr = tiktoken.GetEncoding("o200k_base")
		})
		return t.o200kEnc, t.o200kErr
	default:
		t.cl100kOnce.Do(func() {
			t.cl100kEnc, t.cl100kErr = tiktoken.GetEncoding("cl100k_base")
		})
		return t.cl100kEnc, t.cl100kErr
	}
}

// CountTokens counts the number of tokens in the given text for the
// specified model. If the encoding cannot be loaded it falls back to
// Estimate.
func (t *Tokenizer) CountTokens(model, text string) int {
	enc, err := t.getEncoder(model)
	if err != nil {
		return Estimate(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// Chat framing overhead: each message is wrapped in start/end markers
// around its role, and the reply is primed with an assistant header.
const (
	perMessageTokens = 4
	replyPrimeTokens = 3
)

// CountMessages counts the tokens of a chat prompt for model, including
// the framing overhead. Without an encoder every piece is estimated.
func (t *Tokenizer) CountMessages(model string, messages []Message) int {
	count := Estimate
	if enc, err := t.getEncoder(model); err == nil {
		count = func(s string) int { return len(enc.Encode(s, nil, nil)) }
	}

	total := replyPrimeTokens
	for _, msg := range messages {
		total += perMessageTokens + count(msg.Role) + count(msg.Content)
		if msg.Name != "" {
			total += count(msg.Name)
		}
	}
	return total
}

// Estimate approximates a token count as one token per four characters,
// rounded up. It is used when a vendor reports no usage and no tokenizer
// exists for the model.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
