package llm

import (
	"context"
	"time"
)

// Generation limits stamped onto every request. They are engine-side
// constants, not something a node can configure.
const (
	MaxOutputTokens = 200
	Temperature     = 0.5
)

// Client performs a single completion against a model-inference service.
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete issues exactly one request. It never retries.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest configures a completion call.
type CompletionRequest struct {
	// Model configuration
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`

	// Prompt is the input text forwarded verbatim.
	Prompt string `json:"prompt"`

	// Credential is the caller-supplied API secret. Never serialized.
	Credential string `json:"-"`
}

// NewCompletionRequest builds a request with the fixed generation limits.
func NewCompletionRequest(model, credential, prompt string) CompletionRequest {
	return CompletionRequest{
		Model:       model,
		MaxTokens:   MaxOutputTokens,
		Temperature: Temperature,
		Prompt:      prompt,
		Credential:  credential,
	}
}

// CompletionResponse is the output of a completion call.
type CompletionResponse struct {
	Content      string        `json:"content"`
	Usage        TokenUsage    `json:"usage"`
	Model        string        `json:"model"`
	FinishReason string        `json:"finish_reason"`
	Duration     time.Duration `json:"duration"`
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}
