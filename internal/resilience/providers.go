package resilience

import (
	"context"

	"github.com/speakwise/speakwise/internal/observe"
	"github.com/speakwise/speakwise/pkg/provider/llm"
	"github.com/speakwise/speakwise/pkg/provider/stt"
	"github.com/speakwise/speakwise/pkg/provider/tts"
)

// LLMFallback exposes a [FallbackGroup] of completion providers as a single
// llm.Provider. A rate-limited primary fails over to the next entry like any
// other failure; callers that want to back off instead can still detect
// llm.ErrBusy in the wrapped error chain once every entry is exhausted.
type LLMFallback struct {
	name  string
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback wraps primary in a fallback group.
func NewLLMFallback(primaryName string, primary llm.Provider, cfg BreakerConfig) *LLMFallback {
	return &LLMFallback{name: primaryName, group: NewFallbackGroup(primaryName, primary, cfg)}
}

// Add appends a fallback completion provider.
func (f *LLMFallback) Add(name string, p llm.Provider) { f.group.Add(name, p) }

// Complete implements llm.Provider.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := Do(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
	recordOutcome(ctx, f.name, "llm", err)
	return resp, err
}

// STTFallback exposes a [FallbackGroup] of transcription providers as a
// single stt.Provider.
type STTFallback struct {
	name  string
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback wraps primary in a fallback group.
func NewSTTFallback(primaryName string, primary stt.Provider, cfg BreakerConfig) *STTFallback {
	return &STTFallback{name: primaryName, group: NewFallbackGroup(primaryName, primary, cfg)}
}

// Add appends a fallback transcription provider.
func (f *STTFallback) Add(name string, p stt.Provider) { f.group.Add(name, p) }

// Transcribe implements stt.Provider.
func (f *STTFallback) Transcribe(ctx context.Context, audio []byte, language string) (*stt.Result, error) {
	result, err := Do(f.group, func(p stt.Provider) (*stt.Result, error) {
		return p.Transcribe(ctx, audio, language)
	})
	recordOutcome(ctx, f.name, "stt", err)
	return result, err
}

// TTSFallback exposes a [FallbackGroup] of synthesis providers as a single
// tts.Provider. The voice adapter above it still absorbs the error when the
// whole group fails.
type TTSFallback struct {
	name  string
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback wraps primary in a fallback group.
func NewTTSFallback(primaryName string, primary tts.Provider, cfg BreakerConfig) *TTSFallback {
	return &TTSFallback{name: primaryName, group: NewFallbackGroup(primaryName, primary, cfg)}
}

// Add appends a fallback synthesis provider.
func (f *TTSFallback) Add(name string, p tts.Provider) { f.group.Add(name, p) }

// Synthesize implements tts.Provider.
func (f *TTSFallback) Synthesize(ctx context.Context, text string) ([]byte, error) {
	audio, err := Do(f.group, func(p tts.Provider) ([]byte, error) {
		return p.Synthesize(ctx, text)
	})
	recordOutcome(ctx, f.name, "tts", err)
	return audio, err
}

// recordOutcome counts one provider-chain call, labelled with the primary
// provider's name.
func recordOutcome(ctx context.Context, provider, kind string, err error) {
	m := observe.DefaultMetrics()
	if err != nil {
		m.RecordProviderRequest(ctx, provider, kind, "error")
		m.RecordProviderError(ctx, provider, kind)
		return
	}
	m.RecordProviderRequest(ctx, provider, kind, "ok")
}
