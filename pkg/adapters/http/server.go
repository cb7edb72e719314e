package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/troupe/internal/logging"
	"github.com/aretw0/troupe/internal/presentation/graph"
	"github.com/aretw0/troupe/pkg/domain"
	"github.com/aretw0/troupe/pkg/sanitize"
	"github.com/aretw0/troupe/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MaxBodySize caps the request body of a turn.
const MaxBodySize = 1 << 20

// Engine defines the part of the troupe engine served over HTTP.
type Engine interface {
	Execute(ctx context.Context, messages []domain.RawMessage) (domain.GraphState, error)
	RunSession(ctx context.Context, sessionID string, messages []domain.RawMessage) (string, error)
	Stream(ctx context.Context, messages []domain.RawMessage) (<-chan domain.StageEvent, error)
	StreamSession(ctx context.Context, sessionID string, messages []domain.RawMessage) (<-chan domain.StageEvent, error)
	Transitions() []domain.Transition
	Sessions() *session.Manager
}

// TurnRequest is the body of POST /v1/turns and /v1/turns/stream.
type TurnRequest struct {
	SessionID string              `json:"session_id,omitempty"`
	Messages  []domain.RawMessage `json:"messages"`
}

// TurnResponse is the body returned by POST /v1/turns.
type TurnResponse struct {
	SessionID        string   `json:"session_id,omitempty"`
	FinalOutput      string   `json:"final_output"`
	ActiveCharacters []string `json:"active_characters,omitempty"`
	RetryCount       int      `json:"retry_count"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server serves turns of an Engine.
type Server struct {
	Engine  Engine
	logger  *slog.Logger
	metrics prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics exposes the gatherer on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = g
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{Engine: engine, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/turns", s.PostTurn)
		r.Post("/turns/stream", s.StreamTurn)
		r.Get("/pipeline", s.GetPipeline)
		r.Get("/sessions", s.ListSessions)
		r.Get("/sessions/{id}", s.GetSession)
		r.Delete("/sessions/{id}", s.DeleteSession)
	})
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PostTurn handles POST /v1/turns.
func (s *Server) PostTurn(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTurn(w, r)
	if !ok {
		return
	}

	resp := TurnResponse{SessionID: req.SessionID}
	if req.SessionID != "" {
		out, err := s.Engine.RunSession(r.Context(), req.SessionID, req.Messages)
		if err != nil {
			s.fail(w, r, statusOf(err), err)
			return
		}
		resp.FinalOutput = out
	} else {
		final, err := s.Engine.Execute(r.Context(), req.Messages)
		if err != nil {
			s.fail(w, r, http.StatusInternalServerError, err)
			return
		}
		resp.FinalOutput = final.FinalOutput
		resp.ActiveCharacters = final.ActiveCharacters
		resp.RetryCount = final.RetryCount
	}
	writeJSON(w, http.StatusOK, resp)
}

// StreamTurn handles POST /v1/turns/stream (SSE). Every stage event is sent
// as a "stage" event; the stream ends with "done" or "error".
func (s *Server) StreamTurn(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.fail(w, r, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	req, ok := s.decodeTurn(w, r)
	if !ok {
		return
	}

	var events <-chan domain.StageEvent
	var err error
	if req.SessionID != "" {
		events, err = s.Engine.StreamSession(r.Context(), req.SessionID, req.Messages)
	} else {
		events, err = s.Engine.Stream(r.Context(), req.Messages)
	}
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var final string
	for ev := range events {
		if ev.Err != nil {
			s.logger.Error("Turn aborted", "request_id", middleware.GetReqID(r.Context()), "err", ev.Err)
			writeEvent(w, "error", ErrorResponse{Error: ev.Err.Error()})
			flusher.Flush()
			return
		}
		if out, ok := ev.Update[domain.FieldFinalOutput].(string); ok {
			final = out
		}
		writeEvent(w, "stage", ev)
		flusher.Flush()
	}
	writeEvent(w, "done", TurnResponse{SessionID: req.SessionID, FinalOutput: final})
	flusher.Flush()
}

// GetPipeline handles GET /v1/pipeline. It returns the state machine as a
// Mermaid diagram, or as JSON with ?format=json.
func (s *Server) GetPipeline(w http.ResponseWriter, r *http.Request) {
	transitions := s.Engine.Transitions()
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, transitions)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(transitions, nil, nil)))
}

// ListSessions handles GET /v1/sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Sessions().List(r.Context())
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetSession handles GET /v1/sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Engine.Sessions().Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// DeleteSession handles DELETE /v1/sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Sessions().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decodeTurn(w http.ResponseWriter, r *http.Request) (TurnRequest, bool) {
	var req TurnRequest
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.fail(w, r, status, fmt.Errorf("invalid request body: %w", err))
		return req, false
	}
	if len(req.Messages) == 0 {
		s.fail(w, r, http.StatusBadRequest, errors.New("messages must not be empty"))
		return req, false
	}
	msgs, err := sanitize.Messages(req.Messages)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return req, false
	}
	req.Messages = msgs
	return req, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "Request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"request_id", middleware.GetReqID(r.Context()),
		"err", err,
	)
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	if errors.Is(err, domain.ErrSessionNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, domain.ErrInvalidSessionID) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEvent(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(ErrorResponse{Error: err.Error()})
		event = "error"
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
