package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/speakwise/speakwise/pkg/types"
)

const (
	// defaultTimeout is the hard deadline for one worker exchange. On expiry
	// the worker process is killed, not merely abandoned.
	defaultTimeout = 30 * time.Second

	// stderrTailLimit bounds how much worker stderr is carried in errors.
	stderrTailLimit = 1024
)

// Bridge implements Analyzer by spawning a worker process per call and
// exchanging a single JSON request/response pair over its standard streams.
//
// The worker contract: read one JSON object ({"text": ..., "suggested_words":
// [...]}) from stdin until EOF, write exactly one JSON object to stdout, exit
// zero. Anything else the worker writes — to stdout around the object or to
// stderr — is diagnostic only.
type Bridge struct {
	command string
	args    []string
	timeout time.Duration
	log     *slog.Logger
}

var _ Analyzer = (*Bridge)(nil)

// Option customises a Bridge.
type Option func(*Bridge)

// WithTimeout overrides the worker deadline (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.timeout = d }
}

// WithLogger sets the logger used for worker diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bridge) { b.log = log }
}

// NewBridge creates a Bridge that runs the given command for each analysis.
// Typically command is a Python interpreter and args name the analyzer script.
func NewBridge(command string, args []string, opts ...Option) (*Bridge, error) {
	if command == "" {
		return nil, errors.New("analysis: command must not be empty")
	}

	b := &Bridge{
		command: command,
		args:    args,
		timeout: defaultTimeout,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// request is the wire format written to the worker's stdin.
type request struct {
	Text           string   `json:"text"`
	SuggestedWords []string `json:"suggested_words"`
}

// response is the wire format read back from the worker's stdout. A worker
// reply is either an error object, an insufficient-data status, or a metrics
// object.
type response struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	types.LexicalMetrics
}

// Analyze implements Analyzer.
func (b *Bridge) Analyze(ctx context.Context, text string, suggestedWords []string) (*types.LexicalMetrics, error) {
	if suggestedWords == nil {
		suggestedWords = []string{}
	}
	payload, err := json.Marshal(request{Text: text, SuggestedWords: suggestedWords})
	if err != nil {
		return nil, fmt.Errorf("analysis: encode request: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, b.command, b.args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Don't let inherited pipes keep Wait blocked past the kill.
	cmd.WaitDelay = time.Second

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if stderr.Len() > 0 {
		b.log.Debug("analysis worker stderr", "output", stderrTail(stderr.String()))
	}

	if runErr != nil {
		// Deadline expiry means CommandContext already killed the worker.
		if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			b.log.Warn("analysis worker killed on timeout",
				"command", b.command, "elapsed", elapsed)
			return nil, &TimeoutError{Deadline: b.timeout.String()}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return nil, &ProcessError{
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderrTail(stderr.String()),
			}
		}
		return nil, fmt.Errorf("analysis: run worker: %w", runErr)
	}

	return parseResponse(stdout.Bytes())
}

// parseResponse extracts and interprets the worker's single JSON result.
func parseResponse(out []byte) (*types.LexicalMetrics, error) {
	obj, found := extractJSONObject(out)
	if !found {
		return nil, &ProtocolError{Output: outputExcerpt(out)}
	}

	var resp response
	if err := json.Unmarshal(obj, &resp); err != nil {
		return nil, &ProtocolError{Output: outputExcerpt(obj)}
	}
	if resp.Error != "" {
		return nil, &ProtocolError{Message: resp.Error}
	}
	if resp.Status == "insufficient_data" {
		return nil, ErrInsufficientData
	}

	m := resp.LexicalMetrics
	// Older workers omit uniqueWordCount; derive it from the per-word
	// classification so the wordCount ≥ uniqueWordCount invariant holds.
	if m.UniqueWordCount == 0 && len(m.Highlighted) > 0 {
		seen := make(map[string]struct{}, len(m.Highlighted))
		for _, hw := range m.Highlighted {
			seen[strings.ToLower(hw.Word)] = struct{}{}
		}
		m.UniqueWordCount = len(seen)
	}
	if m.UniqueWordCount > m.WordCount {
		m.WordCount = m.UniqueWordCount
	}
	return &m, nil
}

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTailLimit {
		s = s[len(s)-stderrTailLimit:]
	}
	return s
}

func outputExcerpt(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	return s
}
