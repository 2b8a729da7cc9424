package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/speakwise/speakwise/internal/store"
	"github.com/speakwise/speakwise/pkg/types"
)

func TestSessionRoundTrip(t *testing.T) {
	s := New()
	ctx := t.Context()

	sess := &types.Session{ID: "s1", UserID: "u1", Title: "Hello"}
	sess.Append(types.Turn{Role: types.RoleUser, Text: "hello"})
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Title != "Hello" || len(got.Turns) != 1 {
		t.Errorf("got = %+v", got)
	}

	// The stored copy must not alias the caller's turn slice.
	got.Turns[0].Text = "mutated"
	again, _ := s.GetSession(ctx, "s1")
	if again.Turns[0].Text != "hello" {
		t.Error("GetSession returned an aliased turn slice")
	}
}

func TestGetSession_NotFound(t *testing.T) {
	s := New()
	if _, err := s.GetSession(t.Context(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveSession_LastWriterWins(t *testing.T) {
	s := New()
	ctx := t.Context()

	sess := &types.Session{ID: "s1", UserID: "u1", CorrectionCount: 2}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	sess.CorrectionCount = 3
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, _ := s.GetSession(ctx, "s1")
	if got.CorrectionCount != 3 {
		t.Errorf("CorrectionCount = %d, want 3", got.CorrectionCount)
	}
}

func TestListSessions_OrderedAndSummarised(t *testing.T) {
	s := New()
	ctx := t.Context()

	older := &types.Session{ID: "a", UserID: "u1", UpdatedAt: time.Now().Add(-time.Hour)}
	older.Turns = []types.Turn{{Role: types.RoleUser, Text: "hi"}}
	newer := &types.Session{ID: "b", UserID: "u1", UpdatedAt: time.Now()}
	other := &types.Session{ID: "c", UserID: "u2", UpdatedAt: time.Now()}
	for _, sess := range []*types.Session{older, newer, other} {
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession(%s): %v", sess.ID, err)
		}
	}

	list, err := s.ListSessions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Errorf("list = %+v, want [b a]", list)
	}
	if list[1].Turns != nil {
		t.Error("session summaries must not carry turn histories")
	}
}

func TestDeleteSession(t *testing.T) {
	s := New()
	ctx := t.Context()

	if err := s.CreateSession(ctx, &types.Session{ID: "s1", UserID: "u1"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := s.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if err := s.DeleteSession(ctx, "s1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestSubmissions(t *testing.T) {
	s := New()
	ctx := t.Context()

	first := &types.PracticeSubmission{
		ID: "p1", UserID: "u1", Transcript: "the cat sat",
		Metrics:   &types.LexicalMetrics{WordCount: 3, UniqueWordCount: 3},
		CreatedAt: time.Now().Add(-time.Minute),
	}
	second := &types.PracticeSubmission{
		ID: "p2", UserID: "u1", Transcript: "analysis failed here",
		CreatedAt: time.Now(),
	}
	for _, sub := range []*types.PracticeSubmission{first, second} {
		if err := s.SaveSubmission(ctx, sub); err != nil {
			t.Fatalf("SaveSubmission(%s): %v", sub.ID, err)
		}
	}

	subs, err := s.ListSubmissions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(subs) != 2 || subs[0].ID != "p2" {
		t.Errorf("subs = %+v, want newest first", subs)
	}
	if subs[1].Metrics == nil || subs[1].Metrics.WordCount != 3 {
		t.Errorf("metrics = %+v", subs[1].Metrics)
	}
	if subs[0].Metrics != nil {
		t.Error("degraded submission should keep nil metrics")
	}
}
