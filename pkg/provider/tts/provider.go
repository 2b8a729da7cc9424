// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., OpenAI's speech API)
// and presents a uniform batch interface: one text in, one encoded audio clip
// out. Tutoring replies are short, so a single round trip per reply keeps the
// surface simple; callers that need resilience wrap providers with a fallback
// chain rather than pushing retry logic into each backend.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis requests
// may run in parallel (e.g., several tutoring sessions at once).
type Provider interface {
	// Synthesize converts text into a single encoded audio clip (the encoding
	// is backend-specific, typically MP3). An empty text should return an
	// error rather than an empty clip.
	//
	// Returns the audio bytes or an error if the backend cannot synthesise.
	// Callers decide whether synthesis failures are fatal; in the tutoring
	// pipeline they never are.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
