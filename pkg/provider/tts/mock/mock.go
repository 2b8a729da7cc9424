// Package mock provides an in-memory tts.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/speakwise/speakwise/pkg/provider/tts"
)

// Provider is a configurable tts.Provider that records every call.
type Provider struct {
	mu    sync.Mutex
	calls []string

	// Audio is returned by Synthesize unless Err is set.
	Audio []byte
	// Err, when non-nil, is returned by Synthesize.
	Err error
}

var _ tts.Provider = (*Provider)(nil)

// New creates a mock provider that returns the given audio bytes.
func New(audio []byte) *Provider {
	return &Provider{Audio: audio}
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(_ context.Context, text string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, text)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Audio, nil
}

// Calls returns a copy of all synthesised texts in call order.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}
