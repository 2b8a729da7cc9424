// Package tutor sequences the tutoring pipeline: transcription, dialogue,
// lexical analysis, and speech synthesis, with session state persisted
// between turns.
//
// Each entry point handles one request end to end. The stages are awaited
// sequentially because each stage's output is the next stage's input; the
// only shared mutable state is the session, which is owned by the single
// request handling it.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/speakwise/speakwise/internal/analysis"
	"github.com/speakwise/speakwise/internal/dialogue"
	"github.com/speakwise/speakwise/internal/observe"
	"github.com/speakwise/speakwise/internal/store"
	"github.com/speakwise/speakwise/internal/vocab"
	"github.com/speakwise/speakwise/internal/voice"
	"github.com/speakwise/speakwise/pkg/provider/stt"
	"github.com/speakwise/speakwise/pkg/types"
)

// ErrNoTranscription is returned by audio entry points when no speech-to-text
// provider is configured.
var ErrNoTranscription = errors.New("tutor: no transcription provider configured")

// Orchestrator wires the pipeline stages together. All methods are safe for
// concurrent use across distinct sessions; concurrent requests against the
// same session are the caller's responsibility to serialise.
type Orchestrator struct {
	store    store.Store
	engine   *dialogue.Engine
	stt      stt.Provider // nil when voice input is unavailable
	voice    *voice.Adapter
	analyzer analysis.Analyzer // nil when practice scoring is unavailable
	nearMiss *vocab.Matcher
	metrics  *observe.Metrics
	log      *slog.Logger
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithTranscription sets the speech-to-text provider.
func WithTranscription(p stt.Provider) Option {
	return func(o *Orchestrator) { o.stt = p }
}

// WithAnalyzer sets the lexical analyzer used for practice scoring.
func WithAnalyzer(a analysis.Analyzer) Option {
	return func(o *Orchestrator) { o.analyzer = a }
}

// WithNearMissMatcher sets the matcher that detects garbled uses of suggested
// vocabulary in practice transcripts.
func WithNearMissMatcher(m *vocab.Matcher) Option {
	return func(o *Orchestrator) { o.nearMiss = m }
}

// WithMetrics sets the metrics instruments. Defaults to the package-level
// instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// New creates an Orchestrator. The store, dialogue engine, and voice adapter
// are required; transcription and analysis are optional capabilities.
func New(st store.Store, engine *dialogue.Engine, speech *voice.Adapter, opts ...Option) (*Orchestrator, error) {
	if st == nil {
		return nil, errors.New("tutor: store must not be nil")
	}
	if engine == nil {
		return nil, errors.New("tutor: dialogue engine must not be nil")
	}
	if speech == nil {
		return nil, errors.New("tutor: voice adapter must not be nil")
	}

	o := &Orchestrator{
		store:   st,
		engine:  engine,
		voice:   speech,
		metrics: observe.DefaultMetrics(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// TextTurnResult is the outcome of one text tutoring turn.
type TextTurnResult struct {
	SessionID string
	Reply     string
	Corrected bool
}

// TextTurn runs one text-mode turn. An empty sessionID starts a new session
// for userID; otherwise the existing session is loaded and continued.
func (o *Orchestrator) TextTurn(ctx context.Context, sessionID, userID, userText string) (*TextTurnResult, error) {
	ctx, span := observe.StartSpan(ctx, "tutor.TextTurn")
	defer span.End()
	o.metrics.ActiveRequests.Add(ctx, 1)
	defer o.metrics.ActiveRequests.Add(ctx, -1)

	sess, created, err := o.loadOrCreate(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	reply, err := o.submitTimed(ctx, sess, userText, dialogue.TextMode())
	if err != nil {
		return nil, err
	}

	if err := o.persist(ctx, sess, created); err != nil {
		return nil, err
	}

	o.metrics.RecordTurn(ctx, "text", reply.Corrected)
	return &TextTurnResult{SessionID: sess.ID, Reply: reply.Text, Corrected: reply.Corrected}, nil
}

// VoiceTurnResult is the outcome of one voice tutoring turn. Audio is nil
// when synthesis failed or no TTS provider is configured.
type VoiceTurnResult struct {
	SessionID string
	UserText  string
	Reply     string
	Audio     []byte
	Corrected bool
}

// VoiceTurn runs one voice-mode turn: transcribe the learner's audio, submit
// the text, and synthesise the tutor's reply. cleanup, when non-nil, releases
// the caller's transient audio resource and runs on every exit path.
func (o *Orchestrator) VoiceTurn(ctx context.Context, sessionID, userID string, audio []byte, cleanup func()) (*VoiceTurnResult, error) {
	if cleanup != nil {
		defer cleanup()
	}

	ctx, span := observe.StartSpan(ctx, "tutor.VoiceTurn")
	defer span.End()
	o.metrics.ActiveRequests.Add(ctx, 1)
	defer o.metrics.ActiveRequests.Add(ctx, -1)

	userText, err := o.transcribe(ctx, audio)
	if err != nil {
		return nil, err
	}

	sess, created, err := o.loadOrCreate(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	reply, err := o.submitTimed(ctx, sess, userText, dialogue.VoiceMode())
	if err != nil {
		return nil, err
	}

	ttsStart := time.Now()
	replyAudio := o.voice.Synthesize(ctx, reply.Text)
	o.metrics.TTSDuration.Record(ctx, time.Since(ttsStart).Seconds())

	// The reply audio belongs to the tutor turn the engine just appended.
	sess.Turns[len(sess.Turns)-1].Audio = replyAudio

	if err := o.persist(ctx, sess, created); err != nil {
		return nil, err
	}

	o.metrics.RecordTurn(ctx, "voice", reply.Corrected)
	return &VoiceTurnResult{
		SessionID: sess.ID,
		UserText:  userText,
		Reply:     reply.Text,
		Audio:     replyAudio,
		Corrected: reply.Corrected,
	}, nil
}

// PracticeRequest is one independent speech practice attempt. Exactly one of
// Audio and Transcript should be set; when both are present the audio wins.
type PracticeRequest struct {
	UserID         string
	Topic          string
	Audio          []byte
	Transcript     string
	SuggestedWords []string

	// Cleanup releases any transient resource backing Audio. It runs on
	// every exit path.
	Cleanup func()
}

// PracticeResult is the outcome of scoring one practice attempt. Metrics is
// nil when analysis failed and the call degraded to a transcript-only result.
type PracticeResult struct {
	SubmissionID string
	Transcript   string
	Metrics      *types.LexicalMetrics
	NearMisses   []vocab.NearMiss
	Advice       string
}

// ScorePractice transcribes the attempt if needed, then scores it with the
// lexical analyzer. Analysis failures degrade to a transcript-only result —
// a partial answer is still useful — while transcription failures are fatal
// because without text there is nothing to score.
func (o *Orchestrator) ScorePractice(ctx context.Context, req PracticeRequest) (*PracticeResult, error) {
	if req.Cleanup != nil {
		defer req.Cleanup()
	}

	ctx, span := observe.StartSpan(ctx, "tutor.ScorePractice")
	defer span.End()
	o.metrics.ActiveRequests.Add(ctx, 1)
	defer o.metrics.ActiveRequests.Add(ctx, -1)

	transcript := req.Transcript
	if len(req.Audio) > 0 {
		var err error
		if transcript, err = o.transcribe(ctx, req.Audio); err != nil {
			return nil, err
		}
	}

	result := &PracticeResult{Transcript: transcript}

	metrics, err := o.analyzeTimed(ctx, transcript, req.SuggestedWords)
	if err != nil {
		o.log.Warn("lexical analysis failed, returning transcript only",
			"user", req.UserID, "error", err)
	} else {
		result.Metrics = metrics
		result.Advice = metrics.Advice
	}
	o.metrics.RecordPractice(ctx, result.Metrics == nil)

	// The evaluator report is the richer advisory; the worker's one-liner
	// stays as the fallback when the completion fails.
	if feedback, err := o.engine.PracticeFeedback(ctx, req.Topic, transcript); err != nil {
		o.log.Warn("practice feedback generation failed, keeping analyzer advice",
			"user", req.UserID, "error", err)
	} else if feedback != "" {
		result.Advice = feedback
	}

	if o.nearMiss != nil {
		result.NearMisses = o.nearMiss.Find(transcript, req.SuggestedWords)
	}

	sub := &types.PracticeSubmission{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		Topic:      req.Topic,
		Transcript: transcript,
		Metrics:    result.Metrics,
		Advice:     result.Advice,
		CreatedAt:  time.Now(),
	}
	if err := o.store.SaveSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("tutor: save submission: %w", err)
	}
	result.SubmissionID = sub.ID
	return result, nil
}

// AnalyzeText scores text directly, without transcription or persistence.
// Unlike ScorePractice this surfaces analysis failures: here the metrics are
// the entire point of the call.
func (o *Orchestrator) AnalyzeText(ctx context.Context, text string, suggestedWords []string) (*types.LexicalMetrics, error) {
	ctx, span := observe.StartSpan(ctx, "tutor.AnalyzeText")
	defer span.End()

	return o.analyzeTimed(ctx, text, suggestedWords)
}

// Finalize generates and persists the session's structured evaluation report.
func (o *Orchestrator) Finalize(ctx context.Context, sessionID string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "tutor.Finalize")
	defer span.End()

	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("tutor: load session: %w", err)
	}

	report, err := o.engine.Finalize(ctx, sess)
	if err != nil {
		return "", err
	}

	if err := o.store.SaveSession(ctx, sess); err != nil {
		return "", fmt.Errorf("tutor: save session: %w", err)
	}
	return report, nil
}

// Sessions lists the user's sessions without turn histories.
func (o *Orchestrator) Sessions(ctx context.Context, userID string) ([]types.Session, error) {
	return o.store.ListSessions(ctx, userID)
}

// Session loads one session with its full history.
func (o *Orchestrator) Session(ctx context.Context, id string) (*types.Session, error) {
	return o.store.GetSession(ctx, id)
}

// DeleteSession removes a session and its turns.
func (o *Orchestrator) DeleteSession(ctx context.Context, id string) error {
	return o.store.DeleteSession(ctx, id)
}

// Submissions lists the user's practice submissions, newest first.
func (o *Orchestrator) Submissions(ctx context.Context, userID string) ([]types.PracticeSubmission, error) {
	return o.store.ListSubmissions(ctx, userID)
}

// ─────────────────────────────────────────────────────────────────────────────
// internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// loadOrCreate loads the session by ID or, when the ID is empty, creates a
// fresh one owned by userID.
func (o *Orchestrator) loadOrCreate(ctx context.Context, sessionID, userID string) (sess *types.Session, created bool, err error) {
	if sessionID == "" {
		return &types.Session{
			ID:        uuid.NewString(),
			UserID:    userID,
			CreatedAt: time.Now(),
		}, true, nil
	}

	sess, err = o.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("tutor: load session: %w", err)
	}
	return sess, false, nil
}

// persist writes the session back, creating or updating as appropriate.
func (o *Orchestrator) persist(ctx context.Context, sess *types.Session, created bool) error {
	var err error
	if created {
		err = o.store.CreateSession(ctx, sess)
	} else {
		err = o.store.SaveSession(ctx, sess)
	}
	if err != nil {
		return fmt.Errorf("tutor: save session: %w", err)
	}
	return nil
}

// transcribe converts audio to text via the configured provider. An empty
// transcript is a valid result; transport and provider failures are not.
func (o *Orchestrator) transcribe(ctx context.Context, audio []byte) (string, error) {
	if o.stt == nil {
		return "", ErrNoTranscription
	}

	start := time.Now()
	result, err := o.stt.Transcribe(ctx, audio, "en")
	o.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("tutor: transcribe: %w", err)
	}
	return result.Text, nil
}

// submitTimed runs one dialogue turn and records its latency.
func (o *Orchestrator) submitTimed(ctx context.Context, sess *types.Session, userText string, mode dialogue.Mode) (*dialogue.Reply, error) {
	start := time.Now()
	reply, err := o.engine.Submit(ctx, sess, userText, mode)
	o.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	return reply, err
}

// analyzeTimed runs one analysis exchange and records its latency.
func (o *Orchestrator) analyzeTimed(ctx context.Context, text string, suggestedWords []string) (*types.LexicalMetrics, error) {
	if o.analyzer == nil {
		return nil, errors.New("tutor: no analyzer configured")
	}

	start := time.Now()
	metrics, err := o.analyzer.Analyze(ctx, text, suggestedWords)
	o.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds())
	return metrics, err
}
