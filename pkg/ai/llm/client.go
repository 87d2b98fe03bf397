package llm

import "context"

// Roles accepted in ChatMessage.Role
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client is the text-completion model used by Luna and the horoscope generator
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Complete(ctx context.Context, prompt string, systemPrompt ...string) (string, error)
}

// Ensure implementations satisfy the interface
var _ Client = (*OpenAIClient)(nil)
