// Package openaitts implements tts.Provider backed by OpenAI's speech API.
//
// It performs one HTTP round trip per synthesis call and returns the encoded
// audio (MP3 by default) as a byte slice.
package openaitts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/speakwise/speakwise/pkg/provider/tts"
)

const (
	defaultModel   = oai.SpeechModelTTS1
	defaultTimeout = 30 * time.Second
)

// defaultVoice is the service's "nova" voice. The pinned SDK does not declare
// a constant for it, but the API accepts it.
var defaultVoice = oai.AudioSpeechNewParamsVoice("nova")

// Provider implements tts.Provider using OpenAI's /audio/speech endpoint.
type Provider struct {
	client  oai.Client
	model   oai.SpeechModel
	voice   oai.AudioSpeechNewParamsVoice
	speed   float64
	timeout time.Duration
}

var _ tts.Provider = (*Provider)(nil)

// Option customises the Provider.
type Option func(*config)

// config collects optional settings applied during New.
type config struct {
	baseURL string
	model   string
	voice   string
	speed   float64
	timeout time.Duration
}

// WithBaseURL overrides the OpenAI API base URL (useful for proxies and tests).
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel overrides the speech model (default tts-1).
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithVoice overrides the voice (default nova).
func WithVoice(voice string) Option {
	return func(c *config) { c.voice = voice }
}

// WithSpeed sets the playback speed multiplier (0.25–4.0, default 1.0).
func WithSpeed(speed float64) Option {
	return func(c *config) { c.speed = speed }
}

// WithTimeout sets the per-request deadline (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New creates a Provider using the given OpenAI API key.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openaitts: apiKey must not be empty")
	}

	cfg := &config{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	p := &Provider{
		client:  oai.NewClient(reqOpts...),
		model:   defaultModel,
		voice:   defaultVoice,
		speed:   cfg.speed,
		timeout: cfg.timeout,
	}
	if cfg.model != "" {
		p.model = oai.SpeechModel(cfg.model)
	}
	if cfg.voice != "" {
		p.voice = oai.AudioSpeechNewParamsVoice(cfg.voice)
	}
	return p, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("openaitts: text must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := oai.AudioSpeechNewParams{
		Model:          p.model,
		Input:          text,
		Voice:          p.voice,
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if p.speed != 0 {
		params.Speed = oai.Float(p.speed)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openaitts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("openaitts: synthesize: status %d: %s", resp.StatusCode, body)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openaitts: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("openaitts: empty audio response")
	}
	return audio, nil
}
