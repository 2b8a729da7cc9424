package analysis

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

const metricsJSON = `{
	"status": "success",
	"mtldScore": 72.4,
	"lexicalDensity": 55.1,
	"lexicalSophistication": 8.3,
	"matches": ["meticulous"],
	"advancedWords": ["analyze"],
	"wordCount": 42,
	"uniqueWordCount": 30,
	"highlightedTranscript": [{"word": "I", "type": "normal"}, {"word": "analyze", "type": "academic"}],
	"advice": "Try to incorporate more academic connectors."
}`

// shWorker builds a Bridge whose worker is a shell one-liner. The script must
// consume stdin (cat >/dev/null) so the write side never blocks.
func shWorker(t *testing.T, script string, opts ...Option) *Bridge {
	t.Helper()
	b, err := NewBridge("sh", []string{"-c", script}, opts...)
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	return b
}

func TestNewBridge_RequiresCommand(t *testing.T) {
	if _, err := NewBridge("", nil); err == nil {
		t.Error("NewBridge with empty command should fail")
	}
}

func TestAnalyze_Success(t *testing.T) {
	b := shWorker(t, `cat >/dev/null; printf '%s' "$RESULT"`)
	t.Setenv("RESULT", metricsJSON)

	m, err := b.Analyze(t.Context(), "I analyze things meticulously every day.", []string{"meticulous"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if m.MTLDScore != 72.4 {
		t.Errorf("MTLDScore = %v, want 72.4", m.MTLDScore)
	}
	if m.WordCount != 42 || m.UniqueWordCount != 30 {
		t.Errorf("counts = %d/%d, want 42/30", m.WordCount, m.UniqueWordCount)
	}
	if len(m.Matches) != 1 || m.Matches[0] != "meticulous" {
		t.Errorf("Matches = %v", m.Matches)
	}
	if len(m.Highlighted) != 2 || m.Highlighted[1].Type != "academic" {
		t.Errorf("Highlighted = %v", m.Highlighted)
	}
	if m.Advice == "" {
		t.Error("Advice should be carried through")
	}
}

func TestAnalyze_RequestWireFormat(t *testing.T) {
	// Echo stdin back wrapped in a fake result so the test can inspect the
	// exact bytes the bridge wrote.
	b := shWorker(t, `req=$(cat); printf '{"error": %s}' "$(printf '%s' "$req" | tr -d '\n' | sed 's/"/\\"/g; s/^/"/; s/$/"/')"`)

	_, err := b.Analyze(t.Context(), "hello world", []string{"greet"})
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("Analyze error = %v, want *ProtocolError echoing the request", err)
	}

	var req struct {
		Text           string   `json:"text"`
		SuggestedWords []string `json:"suggested_words"`
	}
	if jerr := json.Unmarshal([]byte(perr.Message), &req); jerr != nil {
		t.Fatalf("echoed request is not JSON: %v (%q)", jerr, perr.Message)
	}
	if req.Text != "hello world" {
		t.Errorf("request text = %q", req.Text)
	}
	if len(req.SuggestedWords) != 1 || req.SuggestedWords[0] != "greet" {
		t.Errorf("request suggested_words = %v", req.SuggestedWords)
	}
}

func TestAnalyze_NilVocabularyEncodesEmptyArray(t *testing.T) {
	// The wire format requires suggested_words to be an array, never null.
	b := shWorker(t, `req=$(cat); case "$req" in *'"suggested_words":[]'*) printf '%s' "$RESULT";; *) printf '{"error":"bad request"}';; esac`)
	t.Setenv("RESULT", metricsJSON)

	if _, err := b.Analyze(t.Context(), "some text", nil); err != nil {
		t.Fatalf("Analyze with nil vocabulary: %v", err)
	}
}

func TestAnalyze_SurroundingNoiseIgnored(t *testing.T) {
	b := shWorker(t, `cat >/dev/null; echo "INFO loading model"; printf '%s' "$RESULT"; echo " trailing noise"`)
	t.Setenv("RESULT", metricsJSON)

	m, err := b.Analyze(t.Context(), "noise tolerant", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if m.WordCount != 42 {
		t.Errorf("WordCount = %d, want 42", m.WordCount)
	}
}

func TestAnalyze_WorkerError(t *testing.T) {
	b := shWorker(t, `cat >/dev/null; printf '{"error":"x"}'`)

	_, err := b.Analyze(t.Context(), "text", nil)
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("Analyze error = %v, want *ProtocolError", err)
	}
	if perr.Message != "x" {
		t.Errorf("Message = %q, want %q", perr.Message, "x")
	}
}

func TestAnalyze_InsufficientData(t *testing.T) {
	b := shWorker(t, `cat >/dev/null; printf '{"status":"insufficient_data"}'`)

	_, err := b.Analyze(t.Context(), "too short", nil)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("Analyze error = %v, want ErrInsufficientData", err)
	}
}

func TestAnalyze_NonZeroExit(t *testing.T) {
	b := shWorker(t, `cat >/dev/null; echo "traceback: boom" >&2; exit 3`)

	_, err := b.Analyze(t.Context(), "text", nil)
	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Fatalf("Analyze error = %v, want *ProcessError", err)
	}
	if procErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", procErr.ExitCode)
	}
	if procErr.Stderr == "" {
		t.Error("Stderr tail should be captured")
	}
}

func TestAnalyze_UnparseableOutput(t *testing.T) {
	b := shWorker(t, `cat >/dev/null; echo "not json at all"`)

	_, err := b.Analyze(t.Context(), "text", nil)
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("Analyze error = %v, want *ProtocolError", err)
	}
}

func TestAnalyze_TimeoutKillsWorker(t *testing.T) {
	b := shWorker(t, `cat >/dev/null; sleep 30; printf '{"error":"never reached"}'`,
		WithTimeout(200*time.Millisecond))

	start := time.Now()
	_, err := b.Analyze(t.Context(), "text", nil)
	elapsed := time.Since(start)

	var terr *TimeoutError
	if !errors.As(err, &terr) {
		t.Fatalf("Analyze error = %v, want *TimeoutError", err)
	}
	// The worker must be killed promptly, not waited out.
	if elapsed > 5*time.Second {
		t.Errorf("Analyze took %v; worker was not killed on deadline", elapsed)
	}
}

func TestAnalyze_DerivesUniqueWordCountWhenOmitted(t *testing.T) {
	b := shWorker(t, `cat >/dev/null; printf '%s' "$RESULT"`)
	t.Setenv("RESULT", `{
		"status": "success",
		"mtldScore": 50, "lexicalDensity": 40, "lexicalSophistication": 5,
		"matches": [], "advancedWords": [], "wordCount": 4,
		"highlightedTranscript": [
			{"word": "the", "type": "normal"}, {"word": "cat", "type": "normal"},
			{"word": "The", "type": "normal"}, {"word": "mat", "type": "normal"}
		]
	}`)

	m, err := b.Analyze(t.Context(), "the cat the mat", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if m.UniqueWordCount != 3 {
		t.Errorf("UniqueWordCount = %d, want 3 (case-folded)", m.UniqueWordCount)
	}
	if m.WordCount < m.UniqueWordCount {
		t.Errorf("wordCount %d < uniqueWordCount %d", m.WordCount, m.UniqueWordCount)
	}
}
