package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/welinkai/llmgateway/internal/provider"
)

// SampleProvider returns an unsaved provider row.
func SampleProvider(name string, family provider.Family, priority int, active bool) *provider.Provider {
	return &provider.Provider{
		Name:     name,
		Family:   family,
		APIKey:   "sk-test-" + name,
		Priority: priority,
		Active:   active,
	}
}

// SampleOpenAIProvider returns an active OpenAI-compatible provider with a
// model list.
func SampleOpenAIProvider() *provider.Provider {
	p := SampleProvider("OpenAI-Compat", provider.FamilyOpenAI, 10, true)
	p.Models = "gpt-4,gpt-4-mini"
	return p
}

// SampleGeminiProvider returns an active Gemini provider.
func SampleGeminiProvider() *provider.Provider {
	p := SampleProvider("Gemini", provider.FamilyGemini, 5, true)
	p.DefaultModel = "gemini-1.5-pro"
	return p
}

// SampleChatCompletion returns an OpenAI Chat Completions response body.
// A negative promptTokens omits the usage block, as some compatible
// backends do.
func SampleChatCompletion(model, content string, promptTokens, completionTokens int) []byte {
	resp := map[string]interface{}{
		"id":      "chatcmpl-test123",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   model,
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]interface{}{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
	if promptTokens >= 0 {
		resp["usage"] = map[string]interface{}{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		}
	}
	data, _ := json.Marshal(resp)
	return data
}

// SampleOpenAIError returns an OpenAI-style error body.
func SampleOpenAIError(message, errType, code string) []byte {
	return []byte(fmt.Sprintf(`{"error":{"message":%q,"type":%q,"code":%q}}`, message, errType, code))
}
