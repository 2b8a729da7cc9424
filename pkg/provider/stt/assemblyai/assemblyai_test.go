package assemblyai

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/speakwise/speakwise/pkg/provider/stt"
)

// fakeServer builds an httptest server that speaks the upload/submit/poll
// protocol. pollStatuses is consumed one status per poll; the final entry is
// repeated if polling continues.
func fakeServer(t *testing.T, pollStatuses []jobResponse) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if len(body) == 0 {
			t.Error("upload received an empty body")
		}
		if r.Header.Get("Authorization") != "test-key" {
			t.Errorf("upload Authorization = %q, want %q", r.Header.Get("Authorization"), "test-key")
		}
		json.NewEncoder(w).Encode(uploadResponse{UploadURL: "https://cdn.example/loc-1"})
	})
	mux.HandleFunc("POST /transcript", func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("submit body decode: %v", err)
		}
		if req.AudioURL != "https://cdn.example/loc-1" {
			t.Errorf("submit audio_url = %q, want the uploaded locator", req.AudioURL)
		}
		if req.LanguageCode != "en" {
			t.Errorf("submit language_code = %q, want %q", req.LanguageCode, "en")
		}
		json.NewEncoder(w).Encode(jobResponse{ID: "job-42", Status: "queued"})
	})
	mux.HandleFunc("GET /transcript/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/job-42") {
			t.Errorf("poll path = %q, want job-42 suffix", r.URL.Path)
		}
		i := int(polls.Add(1)) - 1
		if i >= len(pollStatuses) {
			i = len(pollStatuses) - 1
		}
		json.NewEncoder(w).Encode(pollStatuses[i])
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &polls
}

func newTestProvider(t *testing.T, baseURL string, opts ...Option) *Provider {
	t.Helper()
	opts = append([]Option{
		WithBaseURL(baseURL),
		WithPollInterval(time.Millisecond),
	}, opts...)
	p, err := New("test-key", opts...)
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	return p
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") should return an error")
	}
}

func TestTranscribe_Completed(t *testing.T) {
	srv, polls := fakeServer(t, []jobResponse{
		{ID: "job-42", Status: "processing"},
		{ID: "job-42", Status: "processing"},
		{ID: "job-42", Status: "completed", Text: "she does not like it"},
	})
	p := newTestProvider(t, srv.URL)

	res, err := p.Transcribe(t.Context(), []byte("fake-audio"), "en")
	if err != nil {
		t.Fatalf("Transcribe: unexpected error: %v", err)
	}
	if res.Text != "she does not like it" {
		t.Errorf("Text = %q, want %q", res.Text, "she does not like it")
	}
	if res.JobID != "job-42" {
		t.Errorf("JobID = %q, want %q", res.JobID, "job-42")
	}
	if res.Status != stt.StatusCompleted {
		t.Errorf("Status = %q, want %q", res.Status, stt.StatusCompleted)
	}
	if got := polls.Load(); got != 3 {
		t.Errorf("poll count = %d, want 3", got)
	}
}

// Empty transcribed text is a valid result, distinguishable from a failure.
func TestTranscribe_EmptyTextIsNotAnError(t *testing.T) {
	srv, _ := fakeServer(t, []jobResponse{
		{ID: "job-42", Status: "completed", Text: ""},
	})
	p := newTestProvider(t, srv.URL)

	res, err := p.Transcribe(t.Context(), []byte("silence"), "en")
	if err != nil {
		t.Fatalf("Transcribe: unexpected error: %v", err)
	}
	if res.Text != "" || res.Status != stt.StatusCompleted {
		t.Errorf("got (%q, %q), want empty completed result", res.Text, res.Status)
	}
}

func TestTranscribe_ErrorState(t *testing.T) {
	srv, _ := fakeServer(t, []jobResponse{
		{ID: "job-42", Status: "error", Error: "audio too short"},
	})
	p := newTestProvider(t, srv.URL)

	_, err := p.Transcribe(t.Context(), []byte("x"), "en")
	var failure *stt.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Transcribe error = %v, want *stt.Failure", err)
	}
	if failure.JobID != "job-42" {
		t.Errorf("Failure.JobID = %q, want %q", failure.JobID, "job-42")
	}
	if failure.Reason != "audio too short" {
		t.Errorf("Failure.Reason = %q, want %q", failure.Reason, "audio too short")
	}
}

func TestTranscribe_PollBudgetExhausted(t *testing.T) {
	srv, polls := fakeServer(t, []jobResponse{
		{ID: "job-42", Status: "processing"},
	})
	p := newTestProvider(t, srv.URL, WithMaxPolls(4))

	_, err := p.Transcribe(t.Context(), []byte("x"), "en")
	var failure *stt.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Transcribe error = %v, want *stt.Failure", err)
	}
	if got := polls.Load(); got != 4 {
		t.Errorf("poll count = %d, want exactly the budget of 4", got)
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	p := newTestProvider(t, "http://unused.invalid")
	if _, err := p.Transcribe(t.Context(), nil, "en"); err == nil {
		t.Fatal("Transcribe(nil audio) should return an error")
	}
}
