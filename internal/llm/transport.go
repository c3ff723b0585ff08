// Package llm provides the metered LLM client: a langchaingo-backed transport
// wrapped with retry, rate spacing, timeout enforcement and cost accounting.
package llm

import "context"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation sent to the model.
type Message struct {
	Role    Role
	Content string
}

// Request describes one completion call.
type Request struct {
	System      string
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

// TokenUsage is the token breakdown reported for one call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Completion is the result of an accepted call, including its computed cost.
type Completion struct {
	Content string     `json:"content"`
	Usage   TokenUsage `json:"usage"`
	Cost    float64    `json:"cost"`
	Model   string     `json:"model"`
}

// Transport performs a single raw completion call against the external
// service. Implementations are expected to fail intermittently.
type Transport interface {
	Generate(ctx context.Context, req Request) (string, TokenUsage, error)
}
