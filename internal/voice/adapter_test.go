package voice

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	ttsmock "github.com/speakwise/speakwise/pkg/provider/tts/mock"
)

func TestSynthesize(t *testing.T) {
	provider := ttsmock.New([]byte("mp3-bytes"))
	a := New(provider)

	audio := a.Synthesize(t.Context(), "Good job today!")
	if !bytes.Equal(audio, []byte("mp3-bytes")) {
		t.Errorf("audio = %q", audio)
	}
}

func TestSynthesize_StripsDecorations(t *testing.T) {
	provider := ttsmock.New([]byte("audio"))
	a := New(provider)

	a.Synthesize(t.Context(), "[CORRECTED] 📝 Correction: She doesn't like it.")

	calls := provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("len(calls) = %d, want 1", len(calls))
	}
	if strings.Contains(calls[0], "[CORRECTED]") || strings.Contains(calls[0], "📝") {
		t.Errorf("synthesised text still decorated: %q", calls[0])
	}
}

func TestSynthesize_AbsorbsProviderFailure(t *testing.T) {
	provider := &ttsmock.Provider{Err: errors.New("tts down")}
	a := New(provider)

	if audio := a.Synthesize(t.Context(), "hello"); audio != nil {
		t.Errorf("audio = %q, want nil on provider failure", audio)
	}
}

func TestSynthesize_EmptyTextSkipsProvider(t *testing.T) {
	provider := ttsmock.New([]byte("audio"))
	a := New(provider)

	if audio := a.Synthesize(t.Context(), "   "); audio != nil {
		t.Errorf("audio = %q, want nil for blank text", audio)
	}
	if len(provider.Calls()) != 0 {
		t.Error("provider should not be called for blank text")
	}
}

func TestSynthesize_NilProvider(t *testing.T) {
	a := New(nil)
	if audio := a.Synthesize(t.Context(), "hello"); audio != nil {
		t.Errorf("audio = %q, want nil with no provider", audio)
	}
}
