// Package server exposes the evaluator over a JSON HTTP API plus a
// WebSocket endpoint for streamed audio.
//
// Route overview:
//
//	POST   /api/audio           multipart audio upload, starts transcription
//	GET    /api/session         session snapshot
//	POST   /api/analysis        run a keyword analysis pass
//	GET    /api/highlights      rendered transcript segments
//	GET    /api/keywords        keyword list
//	POST   /api/keywords        add a keyword
//	PUT    /api/keywords/{id}   edit a keyword
//	DELETE /api/keywords/{id}   remove a keyword
//	DELETE /api/keywords        reset all match state
//	GET    /api/keywords/stats  aggregate statistics
//	DELETE /api/session         clear the session
//	GET    /ws                  WebSocket audio streaming
//	GET    /healthz, /readyz    probes
//	GET    /metrics             Prometheus scrape endpoint
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/health"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/keyword"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/observe"
	"github.com/ce-ky/AudioKeywordsEvaluator-demo/internal/session"
)

// maxAudioBytes caps one audio upload. Matches a few minutes of 16 kHz WAV
// with headroom for compressed formats.
const maxAudioBytes = 32 << 20

// Server routes HTTP traffic to the session controller and keyword store.
type Server struct {
	controller *session.Controller
	store      keyword.Store
	health     *health.Handler
	logger     *slog.Logger
	metrics    *observe.Metrics
}

// Option is a functional option for configuring a [Server].
type Option func(*Server)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHealth sets the health handler. Defaults to an empty one (always
// ready).
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// New creates a [Server] around the given controller and store.
func New(controller *session.Controller, store keyword.Store, opts ...Option) *Server {
	s := &Server{
		controller: controller,
		store:      store,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.health == nil {
		s.health = health.New()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the full route table wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/audio", s.handleAudioUpload)
	mux.HandleFunc("GET /api/session", s.handleSessionGet)
	mux.HandleFunc("DELETE /api/session", s.handleSessionClear)
	mux.HandleFunc("POST /api/analysis", s.handleAnalysis)
	mux.HandleFunc("GET /api/highlights", s.handleHighlights)

	mux.HandleFunc("GET /api/keywords", s.handleKeywordList)
	mux.HandleFunc("POST /api/keywords", s.handleKeywordAdd)
	mux.HandleFunc("PUT /api/keywords/{id}", s.handleKeywordEdit)
	mux.HandleFunc("DELETE /api/keywords/{id}", s.handleKeywordRemove)
	mux.HandleFunc("DELETE /api/keywords", s.handleKeywordReset)
	mux.HandleFunc("GET /api/keywords/stats", s.handleKeywordStats)

	mux.HandleFunc("GET /ws", s.handleWS)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// ─────────────────────────────────────────────────────────────────────────────
// Session endpoints
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) handleAudioUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "cannot read upload")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "empty audio upload")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	languageHint := r.FormValue("language")

	token, err := s.controller.AcceptAudio(r.Context(), data, mimeType, languageHint)
	if err != nil {
		s.logger.Error("audio acceptance failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to accept audio")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"token":   token,
		"session": s.controller.Snapshot(),
	})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"session": s.controller.Snapshot()})
}

func (s *Server) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Clear(r.Context()); err != nil {
		s.logger.Error("session clear failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to clear session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	state, err := s.controller.Analyze(r.Context())
	switch {
	case errors.Is(err, session.ErrBusy):
		writeError(w, http.StatusConflict, "busy", "an analysis is already running")
		return
	case errors.Is(err, session.ErrNoTranscript):
		writeError(w, http.StatusConflict, "no_transcript", "no transcript available; upload audio first")
		return
	case err != nil:
		s.logger.Error("analysis failed", "error", err)
		writeError(w, http.StatusBadGateway, "analysis_failed", "keyword analysis failed")
		return
	}

	keywords, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to list keywords")
		return
	}
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to compute statistics")
		return
	}

	// Degradation is not a failure: exact results are present and valid.
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  state,
		"keywords": keywords,
		"stats":    stats,
		"degraded": state.Degraded,
	})
}

func (s *Server) handleHighlights(w http.ResponseWriter, r *http.Request) {
	segments, err := s.controller.Highlights(r.Context())
	switch {
	case errors.Is(err, session.ErrNoTranscript):
		writeError(w, http.StatusNotFound, "no_transcript", "no transcript available")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", "failed to render highlights")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"segments": segments})
}

// ─────────────────────────────────────────────────────────────────────────────
// Keyword endpoints
// ─────────────────────────────────────────────────────────────────────────────

// keywordRequest is the JSON body for add and edit.
type keywordRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleKeywordList(w http.ResponseWriter, r *http.Request) {
	keywords, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to list keywords")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keywords": keywords})
}

func (s *Server) handleKeywordAdd(w http.ResponseWriter, r *http.Request) {
	var req keywordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	added, err := s.store.Add(r.Context(), req.Text)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	// Advisory only: similar keywords do not block the add.
	existing, listErr := s.store.List(r.Context())
	var similar []keyword.Keyword
	if listErr == nil {
		similar = keyword.SimilarTo(added.Text, existing)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"keyword": added,
		"similar": similar,
	})
}

func (s *Server) handleKeywordEdit(w http.ResponseWriter, r *http.Request) {
	var req keywordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	edited, err := s.store.Edit(r.Context(), r.PathValue("id"), req.Text)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keyword": edited})
}

func (s *Server) handleKeywordRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to remove keyword")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleKeywordReset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ResetMatches(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to reset matches")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleKeywordStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to compute statistics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// writeStoreError maps keyword store errors onto the HTTP error taxonomy:
// validation failures are 422 with a stable code, capacity is 409, unknown
// IDs are 404.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, keyword.ErrCapacity):
		writeError(w, http.StatusConflict, "capacity", "keyword list is full")
	case errors.Is(err, keyword.ErrEmptyText):
		writeError(w, http.StatusUnprocessableEntity, "empty_text", "keyword text must not be empty")
	case errors.Is(err, keyword.ErrDuplicate):
		writeError(w, http.StatusUnprocessableEntity, "duplicate", "keyword already exists")
	case errors.Is(err, keyword.ErrTooLong):
		writeError(w, http.StatusUnprocessableEntity, "too_long", err.Error())
	case errors.Is(err, keyword.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "keyword not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "keyword operation failed")
	}
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintln(w, `{"error":{"code":"internal","message":"encoding failed"}}`)
	}
}
