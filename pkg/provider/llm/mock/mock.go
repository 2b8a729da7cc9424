// Package mock provides an in-memory llm.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/speakwise/speakwise/pkg/provider/llm"
)

// Provider is a scripted llm.Provider. Each Complete call pops the next
// response from Responses; once exhausted, the last response repeats.
// If Err is set it is returned instead.
type Provider struct {
	mu        sync.Mutex
	Responses []string
	Err       error

	next     int
	requests []llm.CompletionRequest
}

var _ llm.Provider = (*Provider)(nil)

// New creates a mock provider that replies with the given responses in order.
func New(responses ...string) *Provider {
	return &Provider{Responses: responses}
}

// Complete implements llm.Provider.
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)

	if p.Err != nil {
		return nil, p.Err
	}

	content := ""
	if len(p.Responses) > 0 {
		i := p.next
		if i >= len(p.Responses) {
			i = len(p.Responses) - 1
		}
		content = p.Responses[i]
		p.next++
	}

	return &llm.CompletionResponse{
		Content: content,
		Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// Requests returns a copy of all recorded completion requests.
func (p *Provider) Requests() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.CompletionRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// LastRequest returns the most recent completion request, or nil if none.
func (p *Provider) LastRequest() *llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	req := p.requests[len(p.requests)-1]
	return &req
}
