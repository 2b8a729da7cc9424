// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (e.g., AssemblyAI's
// upload-and-poll API or OpenAI Whisper) and exposes a uniform one-shot
// interface: raw audio bytes in, transcribed text out. Providers own their
// full submission protocol — upload, job creation, polling — behind a single
// Transcribe call.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Status is the terminal state reported by a transcription job.
type Status string

const (
	// StatusCompleted means the provider produced a transcript. An empty
	// transcript with StatusCompleted is a valid result — silence is not an
	// error.
	StatusCompleted Status = "completed"

	// StatusError means the provider reported a terminal failure for the job.
	StatusError Status = "error"
)

// Result is the outcome of a completed transcription. It is transient: the
// orchestrator folds it into a session turn or a practice submission rather
// than persisting it as its own entity.
type Result struct {
	// Text is the transcribed speech. May be empty for silent audio.
	Text string

	// JobID is the provider-assigned job identifier, kept for diagnostics.
	JobID string

	// Status is the job's terminal state. Transcribe only returns results
	// with StatusCompleted; error states surface as a *Failure instead.
	Status Status
}

// Failure is returned when the provider reached a terminal error state or
// never reached a terminal state within the client's polling budget.
type Failure struct {
	// JobID is the provider-assigned job identifier, if a job was created.
	JobID string

	// Reason describes why transcription failed, in provider terms.
	Reason string
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.JobID == "" {
		return "stt: transcription failed: " + f.Reason
	}
	return "stt: transcription failed (job " + f.JobID + "): " + f.Reason
}

// Provider is the abstraction over any speech-to-text backend.
//
// Implementations must be safe for concurrent use; multiple transcriptions
// may run in parallel, one per in-flight request.
type Provider interface {
	// Transcribe converts audio into text. audio is a complete recorded
	// utterance in a container format the provider accepts (the upload
	// adapter guarantees this); language is a BCP-47 hint such as "en".
	//
	// Each call issues a fresh job — results are never cached. Returns a
	// *Failure if the provider reports an error terminal state or the
	// client's polling budget is exhausted before a terminal state is seen.
	// Transport-level errors are returned as-is, wrapped.
	Transcribe(ctx context.Context, audio []byte, language string) (*Result, error)
}
