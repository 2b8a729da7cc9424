// Package dialogue holds per-session conversation state and drives the
// language-model completion service for tutoring turns.
//
// The engine applies the correction-count policy: each session has a bounded
// budget of MaxCorrections tutor corrections, tracked as an explicit counter
// on the Session aggregate and updated together with each appended turn. Once
// the budget is spent the tutor is instructed to stop correcting, and
// marker-bearing replies no longer count as correction events.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/speakwise/speakwise/pkg/provider/llm"
	"github.com/speakwise/speakwise/pkg/types"
)

const (
	// MaxCorrections is the fixed per-session correction budget.
	MaxCorrections = 5

	// submitWindow bounds how many prior turns accompany a new user message.
	submitWindow = 10

	// finalizeWindow bounds how many turns feed the final evaluation report.
	finalizeWindow = 20
)

// ErrEmptySession is returned by Finalize when the session has no turns yet.
var ErrEmptySession = errors.New("dialogue: session has no turns to evaluate")

// reportPrompt instructs the completion service to produce the structured
// end-of-session evaluation.
const reportPrompt = `You are a Senior Linguistic Evaluator at Speakwise.
Analyze the provided chat history between a student and an AI tutor.
Generate a structured feedback report in clear, encouraging, and professional language.

STRUCTURE:
1. Summary: A brief overview (2-3 sentences) of the student's performance and engagement.
2. Grammar & Accuracy: Highlight specific patterns of mistakes the student made and how they were corrected. (Note: Only 5 corrections were allowed per session).
3. Lexical Range: Evaluate their vocabulary. Did they use basic words, or did they successfully incorporate the 'Advanced' (Tier 2/3) words provided in their study bank? Provide examples.
4. Suggested Level: Suggest a CEFR level (A1, A2, B1, B2, C1, or C2) based on this interaction.

Format the output clearly with headers. Do NOT use markdown code blocks. Just plain structured text with headers.`

// practicePrompt instructs the completion service to evaluate one independent
// speech practice attempt.
const practicePrompt = `You are a Senior Linguistic Evaluator at Speakwise.
Analyze the following transcript from a student's INDEPENDENT speech practice.
Generate a structured feedback report.

STRUCTURE:
1. Summary: A brief overview (2-3 sentences) of the student's speaking performance.
2. Grammar & Accuracy: Highlight specific patterns of mistakes the student made.
3. Lexical Range: Evaluate their vocabulary. Mention the variety and complexity.
4. Suggested Level: Suggest a CEFR level (A1-C2).

Format the output clearly with headers.`

// Reply is the outcome of one tutoring turn.
type Reply struct {
	// Text is the tutor's reply as stored on the session (inline tag already
	// stripped in marker-stripping modes).
	Text string

	// Corrected reports whether this turn consumed one unit of the session's
	// correction budget.
	Corrected bool
}

// Engine drives tutoring conversations against a completion provider.
type Engine struct {
	llm llm.Provider
	log *slog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an Engine backed by the given completion provider.
func New(provider llm.Provider, opts ...Option) (*Engine, error) {
	if provider == nil {
		return nil, errors.New("dialogue: provider must not be nil")
	}
	e := &Engine{llm: provider, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Submit sends one user message through the tutor and appends both turns to
// the session. On any provider error the session is left unmodified. Empty
// userText is valid: a transcription can complete on silence, and the tutor
// still gets a turn to prompt the learner.
//
// A marker-bearing reply counts as a correction only while the session's
// budget allows it; at the cap the marker is still stripped for display and
// speech but the counter stays put. Both marker forms appearing in one reply
// count once.
func (e *Engine) Submit(ctx context.Context, sess *types.Session, userText string, mode Mode) (*Reply, error) {
	allowed := sess.CorrectionCount < MaxCorrections

	system := mode.Instruction + "\n"
	if allowed {
		system += mode.CorrectionRule
	} else {
		system += mode.CapRule
	}

	messages := historyMessages(sess.Turns, submitWindow)
	messages = append(messages, llm.Message{Role: "user", Content: userText})

	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     messages,
	})
	if err != nil {
		return nil, fmt.Errorf("dialogue: submit turn: %w", err)
	}

	reply := resp.Content
	corrected := false
	if HasMarker(reply) && allowed {
		sess.CorrectionCount++
		corrected = true
	}
	if mode.StripMarker {
		reply = StripInlineTag(reply)
	}

	sess.Append(types.Turn{Role: types.RoleUser, Text: userText})
	sess.Append(types.Turn{Role: types.RoleTutor, Text: reply})

	e.log.Debug("tutor turn completed",
		"session", sess.ID,
		"mode", mode.Name,
		"corrected", corrected,
		"correction_count", sess.CorrectionCount,
		"tokens", resp.Usage.TotalTokens)

	return &Reply{Text: reply, Corrected: corrected}, nil
}

// Finalize generates the structured end-of-session evaluation from the most
// recent turns and stores it on the session, overwriting any prior report.
func (e *Engine) Finalize(ctx context.Context, sess *types.Session) (string, error) {
	if len(sess.Turns) == 0 {
		return "", ErrEmptySession
	}

	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: reportPrompt,
		Messages:     historyMessages(sess.Turns, finalizeWindow),
	})
	if err != nil {
		return "", fmt.Errorf("dialogue: finalize session: %w", err)
	}

	sess.FinalReport = resp.Content
	return resp.Content, nil
}

// PracticeFeedback generates the evaluator's report for one independent
// speech practice attempt. Unlike Submit it touches no session state.
func (e *Engine) PracticeFeedback(ctx context.Context, topic, transcript string) (string, error) {
	content := "Transcript: " + transcript
	if topic != "" {
		content = "Topic: " + topic + "\n" + content
	}

	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: practicePrompt,
		Messages:     []llm.Message{{Role: "user", Content: content}},
	})
	if err != nil {
		return "", fmt.Errorf("dialogue: practice feedback: %w", err)
	}
	return resp.Content, nil
}

// historyMessages converts the most recent limit turns into completion
// messages, mapping the tutor role to the provider's "assistant".
func historyMessages(turns []types.Turn, limit int) []llm.Message {
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	msgs := make([]llm.Message, 0, len(turns)+1)
	for _, t := range turns {
		role := "user"
		if t.Role == types.RoleTutor {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Text})
	}
	return msgs
}
