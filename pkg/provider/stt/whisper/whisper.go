// Package whisper provides an OpenAI Whisper-backed STT provider using the
// one-shot transcription endpoint. It implements the stt.Provider interface.
//
// Unlike the AssemblyAI backend there is no upload/submit/poll exchange: the
// audio is posted once and the transcript comes back in the same response.
// The provider maps this onto the shared Result shape with a synthetic job
// identifier so callers see a uniform contract.
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/speakwise/speakwise/pkg/provider/stt"
)

const (
	defaultModel    = "whisper-1"
	defaultFilename = "speech.webm"
)

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Whisper Provider.
type Option func(*config)

// config holds optional configuration applied during New.
type config struct {
	baseURL  string
	model    string
	filename string
	timeout  time.Duration
}

// WithBaseURL overrides the OpenAI API base URL. Used by tests to point the
// provider at a local fake server.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the transcription model (default "whisper-1").
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithFilename sets the filename reported for the uploaded audio part. The
// extension tells the API which container format to expect.
func WithFilename(name string) Option {
	return func(c *config) { c.filename = name }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// Provider implements stt.Provider backed by OpenAI Whisper.
type Provider struct {
	client   oai.Client
	model    string
	filename string
}

// New constructs a new Whisper Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("whisper: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel, filename: defaultFilename}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		filename: cfg.filename,
	}, nil
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, language string) (*stt.Result, error) {
	if len(audio) == 0 {
		return nil, errors.New("whisper: audio must not be empty")
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(audio), p.filename, "application/octet-stream"),
		Model: oai.AudioModel(p.model),
	}
	if language != "" {
		params.Language = oai.String(language)
	}

	transcription, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("whisper: transcription: %w", err)
	}

	return &stt.Result{
		Text:   transcription.Text,
		JobID:  "whisper-inline",
		Status: stt.StatusCompleted,
	}, nil
}
