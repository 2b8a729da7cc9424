// Package api exposes the tutoring pipeline as a JSON HTTP surface.
//
// Handlers are thin: decode the request, call the orchestrator, encode the
// result. All tutoring semantics live in [tutor.Orchestrator]; this package
// only translates between HTTP and Go values.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/speakwise/speakwise/internal/analysis"
	"github.com/speakwise/speakwise/internal/dialogue"
	"github.com/speakwise/speakwise/internal/store"
	"github.com/speakwise/speakwise/internal/tutor"
	"github.com/speakwise/speakwise/pkg/provider/llm"
	"github.com/speakwise/speakwise/pkg/provider/stt"
	"github.com/speakwise/speakwise/pkg/types"
)

// maxUploadBytes bounds one audio upload. Matches the upstream speech
// services' own payload limit.
const maxUploadBytes = 25 << 20

// Server holds the HTTP handlers for the tutoring API.
type Server struct {
	orch *tutor.Orchestrator
	log  *slog.Logger
}

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New creates a Server backed by the given orchestrator.
func New(orch *tutor.Orchestrator, opts ...Option) *Server {
	s := &Server{orch: orch, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds all API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/turns/text", s.textTurn)
	mux.HandleFunc("POST /v1/turns/voice", s.voiceTurn)
	mux.HandleFunc("POST /v1/practice", s.scorePractice)
	mux.HandleFunc("POST /v1/analyze", s.analyzeText)
	mux.HandleFunc("GET /v1/sessions", s.listSessions)
	mux.HandleFunc("GET /v1/sessions/{id}", s.getSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.deleteSession)
	mux.HandleFunc("POST /v1/sessions/{id}/report", s.finalize)
	mux.HandleFunc("GET /v1/submissions", s.listSubmissions)
}

// ─────────────────────────────────────────────────────────────────────────────
// turns
// ─────────────────────────────────────────────────────────────────────────────

type textTurnRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
}

type turnResponse struct {
	SessionID string `json:"session_id"`
	UserText  string `json:"user_text,omitempty"`
	Reply     string `json:"reply"`
	Audio     []byte `json:"audio,omitempty"`
	Corrected bool   `json:"corrected"`
}

func (s *Server) textTurn(w http.ResponseWriter, r *http.Request) {
	var req textTurnRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, r, badRequest("text must not be empty"))
		return
	}

	res, err := s.orch.TextTurn(r.Context(), req.SessionID, req.UserID, req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{
		SessionID: res.SessionID,
		Reply:     res.Reply,
		Corrected: res.Corrected,
	})
}

func (s *Server) voiceTurn(w http.ResponseWriter, r *http.Request) {
	audio, fields, cleanup, err := readUpload(r)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		s.writeError(w, r, err)
		return
	}

	// The orchestrator owns the cleanup from here: it runs on every exit
	// path, including transcription failures.
	res, err := s.orch.VoiceTurn(r.Context(), fields["session_id"], fields["user_id"], audio, cleanup)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{
		SessionID: res.SessionID,
		UserText:  res.UserText,
		Reply:     res.Reply,
		Audio:     res.Audio,
		Corrected: res.Corrected,
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// practice scoring
// ─────────────────────────────────────────────────────────────────────────────

type practiceJSONRequest struct {
	UserID         string   `json:"user_id"`
	Topic          string   `json:"topic"`
	Transcript     string   `json:"transcript"`
	SuggestedWords []string `json:"suggested_words"`
}

func (s *Server) scorePractice(w http.ResponseWriter, r *http.Request) {
	var req tutor.PracticeRequest

	if isMultipart(r) {
		audio, fields, cleanup, err := readUpload(r)
		if err != nil {
			if cleanup != nil {
				cleanup()
			}
			s.writeError(w, r, err)
			return
		}
		req = tutor.PracticeRequest{
			UserID:         fields["user_id"],
			Topic:          fields["topic"],
			Audio:          audio,
			SuggestedWords: splitWords(fields["suggested_words"]),
			Cleanup:        cleanup,
		}
	} else {
		var body practiceJSONRequest
		if err := decodeJSON(r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
		if strings.TrimSpace(body.Transcript) == "" {
			s.writeError(w, r, badRequest("transcript must not be empty"))
			return
		}
		req = tutor.PracticeRequest{
			UserID:         body.UserID,
			Topic:          body.Topic,
			Transcript:     body.Transcript,
			SuggestedWords: body.SuggestedWords,
		}
	}

	res, err := s.orch.ScorePractice(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, practiceResponseFrom(res))
}

type nearMissDTO struct {
	Spoken     string  `json:"spoken"`
	Suggested  string  `json:"suggested"`
	Confidence float64 `json:"confidence"`
}

type practiceResponse struct {
	SubmissionID string                `json:"submission_id"`
	Transcript   string                `json:"transcript"`
	Metrics      *types.LexicalMetrics `json:"metrics,omitempty"`
	NearMisses   []nearMissDTO         `json:"near_misses,omitempty"`
	Advice       string                `json:"advice,omitempty"`
}

func practiceResponseFrom(res *tutor.PracticeResult) practiceResponse {
	out := practiceResponse{
		SubmissionID: res.SubmissionID,
		Transcript:   res.Transcript,
		Metrics:      res.Metrics,
		Advice:       res.Advice,
	}
	for _, nm := range res.NearMisses {
		out.NearMisses = append(out.NearMisses, nearMissDTO{
			Spoken:     nm.Spoken,
			Suggested:  nm.Suggested,
			Confidence: nm.Confidence,
		})
	}
	return out
}

type analyzeRequest struct {
	Text           string   `json:"text"`
	SuggestedWords []string `json:"suggested_words"`
}

func (s *Server) analyzeText(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	metrics, err := s.orch.AnalyzeText(r.Context(), req.Text, req.SuggestedWords)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// ─────────────────────────────────────────────────────────────────────────────
// sessions
// ─────────────────────────────────────────────────────────────────────────────

type sessionSummary struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	CorrectionCount int    `json:"correction_count"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type turnDetail struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	HasAudio  bool   `json:"has_audio"`
	CreatedAt string `json:"created_at"`
}

type sessionDetail struct {
	sessionSummary
	Turns       []turnDetail `json:"turns"`
	FinalReport string       `json:"final_report,omitempty"`
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, r, badRequest("user_id query parameter is required"))
		return
	}

	sessions, err := s.orch.Sessions(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionSummary{
			ID:              sess.ID,
			Title:           sess.Title,
			CorrectionCount: sess.CorrectionCount,
			CreatedAt:       sess.CreatedAt.Format(timeFormat),
			UpdatedAt:       sess.UpdatedAt.Format(timeFormat),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	detail := sessionDetail{
		sessionSummary: sessionSummary{
			ID:              sess.ID,
			Title:           sess.Title,
			CorrectionCount: sess.CorrectionCount,
			CreatedAt:       sess.CreatedAt.Format(timeFormat),
			UpdatedAt:       sess.UpdatedAt.Format(timeFormat),
		},
		Turns:       make([]turnDetail, 0, len(sess.Turns)),
		FinalReport: sess.FinalReport,
	}
	for _, t := range sess.Turns {
		detail.Turns = append(detail.Turns, turnDetail{
			Role:      string(t.Role),
			Text:      t.Text,
			HasAudio:  len(t.Audio) > 0,
			CreatedAt: t.CreatedAt.Format(timeFormat),
		})
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) finalize(w http.ResponseWriter, r *http.Request) {
	report, err := s.orch.Finalize(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"report": report})
}

func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, r, badRequest("user_id query parameter is required"))
		return
	}

	subs, err := s.orch.Submissions(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]submissionSummary, 0, len(subs))
	for _, sub := range subs {
		out = append(out, submissionSummary{
			ID:         sub.ID,
			Topic:      sub.Topic,
			Transcript: sub.Transcript,
			Metrics:    sub.Metrics,
			Advice:     sub.Advice,
			CreatedAt:  sub.CreatedAt.Format(timeFormat),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type submissionSummary struct {
	ID         string                `json:"id"`
	Topic      string                `json:"topic,omitempty"`
	Transcript string                `json:"transcript"`
	Metrics    *types.LexicalMetrics `json:"metrics,omitempty"`
	Advice     string                `json:"advice,omitempty"`
	CreatedAt  string                `json:"created_at"`
}

// ─────────────────────────────────────────────────────────────────────────────
// request/response plumbing
// ─────────────────────────────────────────────────────────────────────────────

const timeFormat = "2006-01-02T15:04:05Z07:00"

// requestError carries a client-facing message and status code.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(msg string) error {
	return &requestError{status: http.StatusBadRequest, message: msg}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxUploadBytes))
	if err := dec.Decode(v); err != nil {
		return &requestError{status: http.StatusBadRequest, message: "invalid JSON body: " + err.Error()}
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// readUpload parses a multipart upload: the "audio" file part plus any string
// form fields. The returned cleanup releases the form's temp files and is
// never nil on success.
func readUpload(r *http.Request) (audio []byte, fields map[string]string, cleanup func(), err error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, nil, badRequest("invalid multipart body: " + err.Error())
	}

	form := r.MultipartForm
	cleanup = func() { _ = form.RemoveAll() }

	fields = make(map[string]string, len(form.Value))
	for key, values := range form.Value {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, fields, cleanup, nil
		}
		return nil, fields, cleanup, badRequest("audio part: " + err.Error())
	}
	defer file.Close()

	audio, err = io.ReadAll(file)
	if err != nil {
		return nil, fields, cleanup, badRequest("read audio: " + err.Error())
	}
	return audio, fields, cleanup, nil
}

// splitWords parses a comma-separated form field into a word list.
func splitWords(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if w := strings.TrimSpace(p); w != "" {
			out = append(out, w)
		}
	}
	return out
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP status codes and logs server-side
// failures.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr  *requestError
		sttFail *stt.Failure
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &reqErr):
		status = reqErr.status
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, dialogue.ErrEmptySession):
		status = http.StatusConflict
	case errors.Is(err, analysis.ErrInsufficientData):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, llm.ErrBusy):
		status = http.StatusServiceUnavailable
	case errors.Is(err, tutor.ErrNoTranscription):
		status = http.StatusNotImplemented
	case errors.As(err, &sttFail):
		status = http.StatusBadGateway
	case isAnalysisFailure(err):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func isAnalysisFailure(err error) bool {
	var (
		timeout  *analysis.TimeoutError
		process  *analysis.ProcessError
		protocol *analysis.ProtocolError
	)
	return errors.As(err, &timeout) || errors.As(err, &process) || errors.As(err, &protocol)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
