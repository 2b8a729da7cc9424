// Package memory provides an in-process store.Store used in tests and for
// single-node deployments without PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/speakwise/speakwise/internal/store"
	"github.com/speakwise/speakwise/pkg/types"
)

// Store keeps sessions and submissions in maps guarded by a mutex. Values are
// copied on the way in and out so callers never share turn slices with the
// store.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]types.Session
	submissions []types.PracticeSubmission
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{sessions: make(map[string]types.Session)}
}

// CreateSession implements store.SessionStore.
func (s *Store) CreateSession(_ context.Context, sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = copySession(sess)
	return nil
}

// GetSession implements store.SessionStore.
func (s *Store) GetSession(_ context.Context, id string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := copySession(&sess)
	return &out, nil
}

// SaveSession implements store.SessionStore. Last writer wins.
func (s *Store) SaveSession(_ context.Context, sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = copySession(sess)
	return nil
}

// ListSessions implements store.SessionStore.
func (s *Store) ListSessions(_ context.Context, userID string) ([]types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []types.Session{}
	for _, sess := range s.sessions {
		if sess.UserID != userID {
			continue
		}
		summary := sess
		summary.Turns = nil
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// DeleteSession implements store.SessionStore.
func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// SaveSubmission implements store.PracticeStore.
func (s *Store) SaveSubmission(_ context.Context, sub *types.PracticeSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, copySubmission(sub))
	return nil
}

// ListSubmissions implements store.PracticeStore.
func (s *Store) ListSubmissions(_ context.Context, userID string) ([]types.PracticeSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []types.PracticeSubmission{}
	for _, sub := range s.submissions {
		if sub.UserID == userID {
			out = append(out, copySubmission(&sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func copySession(sess *types.Session) types.Session {
	out := *sess
	out.Turns = make([]types.Turn, len(sess.Turns))
	copy(out.Turns, sess.Turns)
	return out
}

func copySubmission(sub *types.PracticeSubmission) types.PracticeSubmission {
	out := *sub
	if sub.Metrics != nil {
		m := *sub.Metrics
		out.Metrics = &m
	}
	return out
}
