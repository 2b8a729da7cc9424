// Package assemblyai provides an AssemblyAI-backed STT provider using the
// asynchronous transcript API. It implements the stt.Provider interface.
//
// A transcription is a three-step exchange: the raw audio bytes are uploaded
// (yielding an opaque content locator), a transcript job is submitted
// referencing that locator, and the job is polled on a fixed interval until
// it reports a terminal status. The polling loop is bounded by a maximum
// attempt count so a stuck job can never block a request forever.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/speakwise/speakwise/pkg/provider/stt"
)

const (
	defaultBaseURL      = "https://api.assemblyai.com/v2"
	defaultPollInterval = 1500 * time.Millisecond
	defaultMaxPolls     = 200
	defaultLanguage     = "en"

	uploadEndpoint     = "/upload"
	transcriptEndpoint = "/transcript"
)

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the AssemblyAI Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL. Used by tests to point the provider
// at a local fake server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithPollInterval sets the delay between job status polls. Default is 1.5s.
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) { p.pollInterval = d }
}

// WithMaxPolls bounds the number of status polls per job. When the budget is
// exhausted before the job reaches a terminal state, Transcribe returns a
// *stt.Failure. Default is 200.
func WithMaxPolls(n int) Option {
	return func(p *Provider) { p.maxPolls = n }
}

// WithHTTPClient replaces the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements stt.Provider backed by the AssemblyAI async API.
type Provider struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	maxPolls     int
	httpClient   *http.Client
}

// New creates a new AssemblyAI Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("assemblyai: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- wire types ----

// uploadResponse is the JSON body returned by POST /upload.
type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

// submitRequest is the JSON body sent to POST /transcript.
type submitRequest struct {
	AudioURL     string `json:"audio_url"`
	LanguageCode string `json:"language_code,omitempty"`
	Punctuate    bool   `json:"punctuate"`
	FormatText   bool   `json:"format_text"`
}

// jobResponse is the JSON body returned by POST /transcript and by
// GET /transcript/{id}.
type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// ---- stt.Provider ----

// Transcribe implements stt.Provider: upload, submit, then poll until the job
// reports "completed" or "error".
func (p *Provider) Transcribe(ctx context.Context, audio []byte, language string) (*stt.Result, error) {
	if len(audio) == 0 {
		return nil, errors.New("assemblyai: audio must not be empty")
	}
	if language == "" {
		language = defaultLanguage
	}

	locator, err := p.upload(ctx, audio)
	if err != nil {
		return nil, fmt.Errorf("assemblyai: upload: %w", err)
	}

	jobID, err := p.submit(ctx, locator, language)
	if err != nil {
		return nil, fmt.Errorf("assemblyai: submit: %w", err)
	}

	return p.poll(ctx, jobID)
}

// upload sends the raw audio bytes and returns the provider's content locator.
func (p *Provider) upload(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+uploadEndpoint, bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var ur uploadResponse
	if err := p.do(req, &ur); err != nil {
		return "", err
	}
	if ur.UploadURL == "" {
		return "", errors.New("empty upload_url in response")
	}
	return ur.UploadURL, nil
}

// submit creates a transcript job referencing the uploaded content locator
// and returns the provider-assigned job ID.
func (p *Provider) submit(ctx context.Context, locator, language string) (string, error) {
	body, err := json.Marshal(submitRequest{
		AudioURL:     locator,
		LanguageCode: language,
		Punctuate:    true,
		FormatText:   true,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+transcriptEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var jr jobResponse
	if err := p.do(req, &jr); err != nil {
		return "", err
	}
	if jr.ID == "" {
		return "", errors.New("empty job id in response")
	}
	return jr.ID, nil
}

// poll queries the job status on a fixed interval until it reaches a terminal
// state or the poll budget is exhausted.
func (p *Provider) poll(ctx context.Context, jobID string) (*stt.Result, error) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < p.maxPolls; attempt++ {
		jr, err := p.status(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("assemblyai: poll: %w", err)
		}

		switch jr.Status {
		case "completed":
			return &stt.Result{Text: jr.Text, JobID: jobID, Status: stt.StatusCompleted}, nil
		case "error":
			reason := jr.Error
			if reason == "" {
				reason = "provider reported an error without detail"
			}
			return nil, &stt.Failure{JobID: jobID, Reason: reason}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return nil, &stt.Failure{JobID: jobID, Reason: fmt.Sprintf("no terminal state after %d polls", p.maxPolls)}
}

// status fetches the current job state.
func (p *Provider) status(ctx context.Context, jobID string) (*jobResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+transcriptEndpoint+"/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", p.apiKey)

	var jr jobResponse
	if err := p.do(req, &jr); err != nil {
		return nil, err
	}
	return &jr, nil
}

// do executes req and decodes the JSON response body into out.
func (p *Provider) do(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
