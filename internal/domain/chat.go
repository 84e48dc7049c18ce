package domain

import "encoding/json"

// Chat roles shared by history blocks and completion requests.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the session
// history and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OutputSchema declares the JSON shape a structured completion must conform to.
type OutputSchema struct {
	Name       string
	Definition json.RawMessage
}

// CompletionRequest is a single structured completion call.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	Schema      *OutputSchema
	Temperature *float64
	TopP        *float64
	MaxTokens   int
}
