// Package analysis provides lexical analysis of learner transcripts via an
// out-of-process worker.
//
// The worker exchange is a narrow request/response protocol over byte
// streams: one JSON request in, one JSON result out. Callers depend only on
// the Analyzer interface and the exchange format, never on how the worker is
// hosted (subprocess today, a sidecar service tomorrow).
package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/speakwise/speakwise/pkg/types"
)

// ErrInsufficientData indicates the transcript was too short for the worker
// to compute meaningful metrics.
var ErrInsufficientData = errors.New("analysis: insufficient data for metrics")

// Analyzer computes lexical metrics for a transcript.
type Analyzer interface {
	// Analyze scores the given text, optionally checking it against a list
	// of suggested vocabulary words. It returns the computed metrics, or one
	// of *TimeoutError, *ProcessError, *ProtocolError, or ErrInsufficientData.
	Analyze(ctx context.Context, text string, suggestedWords []string) (*types.LexicalMetrics, error)
}

// TimeoutError indicates the worker did not produce a result within the
// deadline and was forcibly terminated.
type TimeoutError struct {
	Deadline string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("analysis: worker timed out after %s and was killed", e.Deadline)
}

// ProcessError indicates the worker exited with a non-zero status.
type ProcessError struct {
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("analysis: worker exited with code %d: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("analysis: worker exited with code %d", e.ExitCode)
}

// ProtocolError indicates the worker's output could not be parsed as the
// expected result, or that the result itself carried an error field.
type ProtocolError struct {
	// Message is the worker-reported error, when the result carried one.
	Message string
	// Output is a bounded excerpt of the raw worker output, for diagnostics.
	Output string
}

func (e *ProtocolError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("analysis: worker error: %s", e.Message)
	}
	return fmt.Sprintf("analysis: unparseable worker output: %s", e.Output)
}
