// Package mock provides a configurable test double for the stt.Provider
// interface. The mock records every call for assertion in tests and exposes
// exported fields that control what it returns. It is safe for concurrent use.
package mock

import (
	"context"
	"sync"

	"github.com/speakwise/speakwise/pkg/provider/stt"
)

// Call records the arguments of a single Transcribe invocation.
type Call struct {
	Audio    []byte
	Language string
}

// Provider is a configurable test double for [stt.Provider].
type Provider struct {
	mu    sync.Mutex
	calls []Call

	// Result is returned by Transcribe when Err is nil. When both are zero,
	// Transcribe returns an empty completed result.
	Result *stt.Result

	// Err is returned by Transcribe when non-nil.
	Err error
}

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// Transcribe implements stt.Provider.
func (m *Provider) Transcribe(_ context.Context, audio []byte, language string) (*stt.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Audio: audio, Language: language})
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &stt.Result{Status: stt.StatusCompleted}, nil
}

// Calls returns a copy of all recorded invocations.
func (m *Provider) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}
