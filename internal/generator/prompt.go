package generator

import "strings"

// NoResponse is returned in place of an empty OpenAI-family completion.
const NoResponse = "No response generated"

// contextHeader separates the system prompt from retrieved context.
const contextHeader = "\n\nRelevant context:\n"

// BuildSystemPrompt appends a relevant-context section to system when
// context is non-empty. The prompt text always comes first.
func BuildSystemPrompt(system, context string) string {
	if strings.TrimSpace(context) == "" {
		return system
	}
	return system + contextHeader + context
}

// singleTurnPrompt embeds the system prompt and the user message in one
// text block for vendors called without separate roles.
func singleTurnPrompt(system, message string) string {
	return system + "\n\nUser: " + message
}
