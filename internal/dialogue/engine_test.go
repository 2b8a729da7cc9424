package dialogue

import (
	"errors"
	"strings"
	"testing"

	"github.com/speakwise/speakwise/pkg/provider/llm"
	llmmock "github.com/speakwise/speakwise/pkg/provider/llm/mock"
	"github.com/speakwise/speakwise/pkg/types"
)

func newEngine(t *testing.T, provider llm.Provider) *Engine {
	t.Helper()
	e, err := New(provider)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

// countMarkersInHistory re-derives the correction count by scanning tutor
// turns, as a reference oracle for the explicit counter. Note that it can
// exceed the cap, which is exactly why the counter is authoritative.
func countMarkersInHistory(sess *types.Session) int {
	n := 0
	for _, turn := range sess.Turns {
		if turn.Role == types.RoleTutor && HasMarker(turn.Text) {
			n++
		}
	}
	return n
}

func TestSubmit_FreshSessionWithCorrection(t *testing.T) {
	provider := llmmock.New("[CORRECTED] She doesn't like it. Anyway, what does she enjoy?")
	e := newEngine(t, provider)

	sess := &types.Session{ID: "s1", UserID: "u1"}
	reply, err := e.Submit(t.Context(), sess, "She dont like it", VoiceMode())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(sess.Turns) != 2 {
		t.Fatalf("len(Turns) = %d, want 2", len(sess.Turns))
	}
	if sess.Turns[0].Role != types.RoleUser || sess.Turns[1].Role != types.RoleTutor {
		t.Errorf("turn roles = %v, %v", sess.Turns[0].Role, sess.Turns[1].Role)
	}
	if sess.CorrectionCount != 1 {
		t.Errorf("CorrectionCount = %d, want 1", sess.CorrectionCount)
	}
	if !reply.Corrected {
		t.Error("reply.Corrected = false, want true")
	}
	if strings.Contains(reply.Text, "[CORRECTED]") {
		t.Errorf("stored reply still carries the tag: %q", reply.Text)
	}
	if sess.Turns[1].Text != reply.Text {
		t.Errorf("stored turn text %q != reply text %q", sess.Turns[1].Text, reply.Text)
	}
	if sess.Title != "She dont like it" {
		t.Errorf("Title = %q", sess.Title)
	}
}

func TestSubmit_NoMarkerNoIncrement(t *testing.T) {
	provider := llmmock.New("That sounds lovely! What did you do next?")
	e := newEngine(t, provider)

	sess := &types.Session{ID: "s1"}
	reply, err := e.Submit(t.Context(), sess, "I go to the park yesterday... just kidding, I went!", VoiceMode())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sess.CorrectionCount != 0 || reply.Corrected {
		t.Errorf("CorrectionCount = %d, Corrected = %v; want 0, false", sess.CorrectionCount, reply.Corrected)
	}
}

func TestSubmit_EmptyUserTextStillRuns(t *testing.T) {
	provider := llmmock.New("I didn't catch that — could you say it again?")
	e := newEngine(t, provider)

	sess := &types.Session{ID: "s1"}
	reply, err := e.Submit(t.Context(), sess, "", VoiceMode())
	if err != nil {
		t.Fatalf("Submit with empty text: %v", err)
	}
	if reply.Text == "" {
		t.Error("reply.Text is empty")
	}
	if len(sess.Turns) != 2 {
		t.Fatalf("len(Turns) = %d, want 2", len(sess.Turns))
	}
	if sess.Turns[0].Text != "" {
		t.Errorf("user turn text = %q, want empty", sess.Turns[0].Text)
	}

	last := provider.LastRequest()
	if got := last.Messages[len(last.Messages)-1]; got.Role != "user" || got.Content != "" {
		t.Errorf("last message = %+v, want empty user message", got)
	}
}

func TestSubmit_BothMarkerFormsCountOnce(t *testing.T) {
	provider := llmmock.New("[CORRECTED] 📝 Correction: She doesn't like it.\nKeep going!")
	e := newEngine(t, provider)

	sess := &types.Session{ID: "s1"}
	if _, err := e.Submit(t.Context(), sess, "She dont like it", TextMode()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sess.CorrectionCount != 1 {
		t.Errorf("CorrectionCount = %d, want 1 (both forms in one reply count once)", sess.CorrectionCount)
	}
}

func TestSubmit_CounterCapsAtMax(t *testing.T) {
	// Text mode keeps the block marker in stored turns, so the history
	// oracle can see every marker-bearing reply.
	provider := llmmock.New("📝 Correction: I have a question.\nGood question though!")
	e := newEngine(t, provider)

	sess := &types.Session{ID: "s1"}
	for i := 0; i < 10; i++ {
		if _, err := e.Submit(t.Context(), sess, "I has a question", TextMode()); err != nil {
			t.Fatalf("Submit #%d: %v", i+1, err)
		}
	}

	if sess.CorrectionCount != MaxCorrections {
		t.Errorf("CorrectionCount = %d, want exactly %d", sess.CorrectionCount, MaxCorrections)
	}
	if got := countMarkersInHistory(sess); got != 10 {
		t.Errorf("history oracle = %d, want 10 marker-bearing replies", got)
	}
}

func TestSubmit_AtCapUsesCapRuleAndStillStrips(t *testing.T) {
	provider := llmmock.New("[CORRECTED] Habit dies hard. Anyway!")
	e := newEngine(t, provider)

	sess := &types.Session{ID: "s1", CorrectionCount: MaxCorrections}
	reply, err := e.Submit(t.Context(), sess, "He go home", VoiceMode())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if sess.CorrectionCount != MaxCorrections {
		t.Errorf("CorrectionCount = %d, must never pass the cap", sess.CorrectionCount)
	}
	if reply.Corrected {
		t.Error("reply at the cap must not be a correction event")
	}
	if strings.Contains(reply.Text, "[CORRECTED]") {
		t.Errorf("tag must still be stripped at the cap: %q", reply.Text)
	}

	req := provider.LastRequest()
	if !strings.Contains(req.SystemPrompt, "Do NOT correct the student's grammar anymore") {
		t.Errorf("system prompt at cap = %q, want the no-correction rule", req.SystemPrompt)
	}
}

func TestSubmit_TextModeKeepsBlockInDisplayText(t *testing.T) {
	block := "📝 Correction: She doesn't like it.\n💡 Explanation: third person singular.\n\nGreat effort though!"
	provider := llmmock.New(block)
	e := newEngine(t, provider)

	sess := &types.Session{ID: "s1"}
	reply, err := e.Submit(t.Context(), sess, "She dont like it", TextMode())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if reply.Text != block {
		t.Errorf("text-mode reply = %q, want block kept verbatim", reply.Text)
	}
	if sess.CorrectionCount != 1 {
		t.Errorf("CorrectionCount = %d, want 1", sess.CorrectionCount)
	}
}

func TestSubmit_WindowsHistoryToTenTurns(t *testing.T) {
	provider := llmmock.New("ok")
	e := newEngine(t, provider)

	sess := &types.Session{ID: "s1"}
	for i := 0; i < 15; i++ {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleTutor
		}
		sess.Append(types.Turn{Role: role, Text: "turn"})
	}

	if _, err := e.Submit(t.Context(), sess, "latest", VoiceMode()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	req := provider.LastRequest()
	// 10 windowed history turns + the new user message.
	if len(req.Messages) != 11 {
		t.Errorf("len(Messages) = %d, want 11", len(req.Messages))
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" || last.Content != "latest" {
		t.Errorf("last message = %+v, want the new user text", last)
	}
}

func TestSubmit_ProviderErrorLeavesSessionUntouched(t *testing.T) {
	provider := &llmmock.Provider{Err: llm.ErrBusy}
	e := newEngine(t, provider)

	sess := &types.Session{ID: "s1"}
	_, err := e.Submit(t.Context(), sess, "hello", TextMode())
	if !errors.Is(err, llm.ErrBusy) {
		t.Fatalf("Submit error = %v, want llm.ErrBusy", err)
	}
	if len(sess.Turns) != 0 || sess.CorrectionCount != 0 {
		t.Errorf("session mutated on error: %d turns, count %d", len(sess.Turns), sess.CorrectionCount)
	}
}

func TestPracticeFeedback(t *testing.T) {
	provider := llmmock.New("1. Summary: A confident speaker with minor slips.")
	e := newEngine(t, provider)

	report, err := e.PracticeFeedback(t.Context(), "travel", "I visited Rome last spring")
	if err != nil {
		t.Fatalf("PracticeFeedback: %v", err)
	}
	if !strings.Contains(report, "Summary") {
		t.Errorf("report = %q", report)
	}

	last := provider.LastRequest()
	if !strings.Contains(last.SystemPrompt, "Senior Linguistic Evaluator") {
		t.Errorf("system prompt = %q", last.SystemPrompt)
	}
	if len(last.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(last.Messages))
	}
	content := last.Messages[0].Content
	if !strings.Contains(content, "Topic: travel") || !strings.Contains(content, "Transcript: I visited Rome last spring") {
		t.Errorf("content = %q", content)
	}
}

func TestPracticeFeedback_NoTopic(t *testing.T) {
	provider := llmmock.New("report")
	e := newEngine(t, provider)

	if _, err := e.PracticeFeedback(t.Context(), "", "some transcript"); err != nil {
		t.Fatalf("PracticeFeedback: %v", err)
	}
	content := provider.LastRequest().Messages[0].Content
	if strings.Contains(content, "Topic:") {
		t.Errorf("content = %q, want no topic line", content)
	}
}

func TestFinalize_EmptySession(t *testing.T) {
	e := newEngine(t, llmmock.New("report"))

	sess := &types.Session{ID: "s1"}
	if _, err := e.Finalize(t.Context(), sess); !errors.Is(err, ErrEmptySession) {
		t.Fatalf("Finalize error = %v, want ErrEmptySession", err)
	}
}

func TestFinalize_StoresReportAndWindowsToTwenty(t *testing.T) {
	provider := llmmock.New("1. Summary: solid progress.\n4. Suggested Level: B1")
	e := newEngine(t, provider)

	sess := &types.Session{ID: "s1"}
	for i := 0; i < 30; i++ {
		sess.Append(types.Turn{Role: types.RoleUser, Text: "turn"})
	}

	report, err := e.Finalize(t.Context(), sess)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if sess.FinalReport != report || report == "" {
		t.Errorf("FinalReport = %q, returned = %q", sess.FinalReport, report)
	}

	req := provider.LastRequest()
	if len(req.Messages) != 20 {
		t.Errorf("len(Messages) = %d, want 20", len(req.Messages))
	}
	if !strings.Contains(req.SystemPrompt, "Senior Linguistic Evaluator") {
		t.Errorf("system prompt = %q, want the evaluator instruction", req.SystemPrompt)
	}
}

func TestFinalize_OverwritesPriorReport(t *testing.T) {
	provider := llmmock.New("first report", "second report")
	e := newEngine(t, provider)

	sess := &types.Session{ID: "s1"}
	sess.Append(types.Turn{Role: types.RoleUser, Text: "hello"})

	if _, err := e.Finalize(t.Context(), sess); err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	if _, err := e.Finalize(t.Context(), sess); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}
	if sess.FinalReport != "second report" {
		t.Errorf("FinalReport = %q, want the second report", sess.FinalReport)
	}
}
