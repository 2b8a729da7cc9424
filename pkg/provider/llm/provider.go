// Package llm defines the Provider interface for Large Language Model
// backends.
//
// An LLM provider wraps a remote or local completion API (e.g., OpenAI, or
// any backend reachable through any-llm-go) and exposes a uniform interface
// for the dialogue engine to request tutor replies and evaluation reports
// without coupling to any specific SDK.
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"
	"errors"
)

// ErrBusy indicates the completion service rejected the request because of
// rate limiting. Callers should back off and retry later rather than treat
// this as a permanent failure.
var ErrBusy = errors.New("completion service is busy")

// Message represents a single message in a completion conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting information returned by the backend. Counts
// are in the model's native token unit and may differ between providers for
// the same textual content.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
type CompletionRequest struct {
	// SystemPrompt is the high-priority instruction injected before the
	// conversation history. Providers that lack a dedicated system slot
	// prepend it as a "system"-role message.
	SystemPrompt string

	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. Zero means use
	// the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	// Content is the complete text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any completion backend.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly. Rate-limit rejections are reported as errors
// wrapping [ErrBusy] so callers can distinguish them from permanent failures.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
