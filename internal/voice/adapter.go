// Package voice turns final tutor text into audio, treating speech as an
// enhancement rather than a required result: every synthesis failure is
// absorbed and surfaces to the caller as "no audio".
package voice

import (
	"context"
	"log/slog"

	"github.com/speakwise/speakwise/internal/dialogue"
	"github.com/speakwise/speakwise/pkg/provider/tts"
)

// Adapter wraps a tts.Provider with the tutoring pipeline's degradation
// policy.
type Adapter struct {
	provider tts.Provider
	log      *slog.Logger
}

// Option customises an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter's logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Adapter) { a.log = log }
}

// New creates an Adapter over the given provider. A nil provider yields an
// adapter that always returns no audio.
func New(provider tts.Provider, opts ...Option) *Adapter {
	a := &Adapter{provider: provider, log: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Synthesize converts text to speech. Correction decorations that would read
// aloud awkwardly are stripped first. Returns nil on empty input, on a
// missing provider, and on every provider failure — never an error.
func (a *Adapter) Synthesize(ctx context.Context, text string) []byte {
	spoken := dialogue.StripForSpeech(text)
	if spoken == "" || a.provider == nil {
		return nil
	}

	audio, err := a.provider.Synthesize(ctx, spoken)
	if err != nil {
		a.log.Warn("speech synthesis failed, continuing without audio", "error", err)
		return nil
	}
	return audio
}
