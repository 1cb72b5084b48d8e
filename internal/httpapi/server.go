package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lbianche/minerva/internal/config"
	"github.com/lbianche/minerva/internal/engine"
	"github.com/lbianche/minerva/internal/observability"
	"github.com/lbianche/minerva/internal/retrieval"
	"github.com/lbianche/minerva/internal/session"
)

// QueryEngine is the part of the orchestration engine the transport
// layer needs.
type QueryEngine interface {
	Handle(ctx context.Context, query, sessionID string) <-chan engine.Event
	History(sessionID string) []session.Turn
	ClearHistory(sessionID string)
	EvictSession(sessionID string)
}

type Server struct {
	cfg       config.Config
	engine    QueryEngine
	retriever retrieval.Retriever
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, eng QueryEngine, retriever retrieval.Retriever, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		engine:    eng,
		retriever: retriever,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the
				// same origin unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/chat", s.handleChatSSE)
	r.Get("/v1/chat/ws", s.handleChatWS)
	r.Post("/v1/sessions", s.handleCreateSession)
	r.Get("/v1/sessions/{id}/history", s.handleGetHistory)
	r.Delete("/v1/sessions/{id}/history", s.handleClearHistory)
	r.Delete("/v1/sessions/{id}", s.handleEvictSession)
	r.Get("/v1/perf/stages", s.handlePerfStages)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"retriever_mode": s.cfg.RetrieverMode,
		"genai_mode":     s.cfg.GenAIMode,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.retriever == nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "retriever not configured")
		return
	}
	if err := s.retriever.Ready(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusCreated, map[string]any{
		"session_id": uuid.NewString(),
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}
	turns := s.engine.History(id)
	if turns == nil {
		turns = []session.Turn{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"turns":      turns,
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}
	s.engine.ClearHistory(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvictSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}
	s.engine.EvictSession(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePerfStages(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"generated_at": "",
			"window_size":  0,
			"stages":       []any{},
		})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.SnapshotStages())
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
