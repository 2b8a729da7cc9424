// Package store defines persistence for tutoring sessions and practice
// submissions.
//
// The core pipeline treats the store as externally owned with last-writer-wins
// semantics per session: sessions are loaded, mutated by the single request
// handling them, and saved back whole. Concurrent edits to one session are
// serialised by the caller.
package store

import (
	"context"
	"errors"

	"github.com/speakwise/speakwise/pkg/types"
)

// ErrNotFound is returned when the requested session or submission does not
// exist.
var ErrNotFound = errors.New("store: not found")

// SessionStore persists tutoring sessions.
type SessionStore interface {
	// CreateSession inserts a new session.
	CreateSession(ctx context.Context, sess *types.Session) error

	// GetSession loads a session with its full turn history. Returns
	// ErrNotFound when the ID is unknown.
	GetSession(ctx context.Context, id string) (*types.Session, error)

	// SaveSession writes the session back whole, last writer wins.
	SaveSession(ctx context.Context, sess *types.Session) error

	// ListSessions returns the user's sessions without turn histories,
	// most recently updated first.
	ListSessions(ctx context.Context, userID string) ([]types.Session, error)

	// DeleteSession removes a session and its turns. Returns ErrNotFound
	// when the ID is unknown.
	DeleteSession(ctx context.Context, id string) error
}

// PracticeStore persists independent speech practice submissions.
type PracticeStore interface {
	// SaveSubmission appends one practice attempt.
	SaveSubmission(ctx context.Context, sub *types.PracticeSubmission) error

	// ListSubmissions returns the user's submissions, newest first.
	ListSubmissions(ctx context.Context, userID string) ([]types.PracticeSubmission, error)
}

// Store combines both persistence concerns. The postgres and memory
// implementations satisfy it.
type Store interface {
	SessionStore
	PracticeStore
}
