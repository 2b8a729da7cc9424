// Package types defines the shared types used across all Speakwise packages.
//
// These types form the lingua franca between providers, the dialogue engine,
// the analysis bridge, and the orchestrator. They are intentionally minimal —
// each package defines its own domain types, but cross-cutting data structures
// live here to avoid circular imports.
package types

import "time"

// Role identifies the author of a Turn.
type Role string

const (
	// RoleUser is a turn spoken or typed by the learner.
	RoleUser Role = "user"

	// RoleTutor is a turn generated by the tutor.
	RoleTutor Role = "tutor"
)

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleTutor
}

// Turn is one message in a tutoring session. Turns are strictly ordered and
// immutable once appended — they are only ever appended, never edited or
// reordered.
type Turn struct {
	// Role identifies whether the learner or the tutor produced this turn.
	Role Role

	// Text is the turn's content. For tutor turns produced in voice mode the
	// inline correction tag has already been stripped.
	Text string

	// Audio is the synthesised speech for this turn. Only tutor turns in
	// voice mode carry audio; nil otherwise.
	Audio []byte

	// CreatedAt is when the turn was appended.
	CreatedAt time.Time
}

// Session is one tutoring conversation: an ordered sequence of turns plus the
// bounded correction counter that shapes the tutor's behaviour over the life
// of the session.
//
// A Session is mutated only by the single request handling it; concurrent
// edits to the same session are serialised by the caller and the store
// provides last-writer-wins semantics per session ID.
type Session struct {
	// ID uniquely identifies the session.
	ID string

	// UserID references the owning learner. Ownership is enforced by the
	// storage/authorization layer, not by this core.
	UserID string

	// Title is a short human-readable label, derived from the first learner
	// message.
	Title string

	// Turns is the ordered conversation history. Append-only.
	Turns []Turn

	// CorrectionCount is the number of tutor turns that carried a correction
	// marker while corrections were still allowed. Monotonically
	// non-decreasing and never exceeds the configured maximum.
	CorrectionCount int

	// FinalReport is the structured evaluation generated when the session is
	// finalised. Each finalise call overwrites the previous report.
	FinalReport string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Append adds a turn to the session and bumps UpdatedAt. On the first learner
// turn it also derives the session title.
func (s *Session) Append(t Turn) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if s.Title == "" && t.Role == RoleUser {
		s.Title = deriveTitle(t.Text)
	}
	s.Turns = append(s.Turns, t)
	s.UpdatedAt = t.CreatedAt
}

// titleMaxLen bounds the derived session title length.
const titleMaxLen = 30

// deriveTitle builds a session title from the first learner message: the
// first 30 characters, with an ellipsis when truncated.
func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleMaxLen {
		return text
	}
	return string(runes[:titleMaxLen]) + "..."
}

// HighlightedWord is one (word, category) pair of the per-word transcript
// classification produced by the lexical analyzer. Type is one of "normal",
// "academic", "tier3", or "filler".
type HighlightedWord struct {
	Word string `json:"word"`
	Type string `json:"type"`
}

// LexicalMetrics holds the vocabulary-usage measurements computed from a
// practice transcript. Produced once per analysis call and immutable
// afterwards.
//
// The JSON field names match the analyzer worker's wire format exactly and
// must not be changed.
type LexicalMetrics struct {
	// MTLDScore is the lexical diversity score (measure of textual lexical
	// diversity).
	MTLDScore float64 `json:"mtldScore"`

	// LexicalDensity is the percentage of content words in the transcript.
	LexicalDensity float64 `json:"lexicalDensity"`

	// LexicalSophistication is the percentage of academic-word-list words.
	LexicalSophistication float64 `json:"lexicalSophistication"`

	// Matches lists the suggested vocabulary items the learner actually used.
	Matches []string `json:"matches"`

	// AdvancedWords lists the academic words found in the transcript.
	AdvancedWords []string `json:"advancedWords"`

	// Highlighted is the ordered per-word classification of the transcript.
	Highlighted []HighlightedWord `json:"highlightedTranscript"`

	// WordCount is the number of words after transcript cleaning.
	WordCount int `json:"wordCount"`

	// UniqueWordCount is the number of distinct words after cleaning.
	UniqueWordCount int `json:"uniqueWordCount"`

	// Advice is the analyzer's short advisory text, when it emits one.
	Advice string `json:"advice,omitempty"`
}

// PracticeSubmission is one completed independent-speech attempt: its topic,
// transcript, computed metrics, and optional advisory text. Created once per
// attempt and never mutated afterwards — submissions form an append-only
// history.
type PracticeSubmission struct {
	// ID uniquely identifies the submission.
	ID string

	// UserID references the owning learner.
	UserID string

	// SessionID optionally links the submission back to a tutoring session.
	SessionID string

	// Topic is the practice prompt the learner spoke about.
	Topic string

	// Transcript is the transcribed practice speech.
	Transcript string

	// Metrics holds the lexical analysis result. Nil when analysis failed and
	// the submission degraded to a transcript-only record.
	Metrics *LexicalMetrics

	// AudioRef is an opaque reference to the recorded audio, if retained.
	AudioRef string

	// Advice is the generated advisory text for this attempt, if any.
	Advice string

	CreatedAt time.Time
}
