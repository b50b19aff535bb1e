package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/clerk/internal/coordinator"
	"github.com/MikeSquared-Agency/clerk/internal/returns"
	"github.com/MikeSquared-Agency/clerk/internal/session"
	"github.com/MikeSquared-Agency/clerk/internal/store"
)

// Conversations is the coordinator surface the API drives.
type Conversations interface {
	Handle(ctx context.Context, sessionID, utterance string) (coordinator.Reply, error)
	End(ctx context.Context, sessionID string) error
	State(ctx context.Context, sessionID string) (*session.State, error)
}

// Returns looks up committed returns by dedup key.
type Returns interface {
	Lookup(ctx context.Context, dedupKey string) (returns.Record, error)
}

type Server struct {
	router        *chi.Mux
	port          int
	conversations Conversations
	returns       Returns
	// Mode is reported by the status endpoint.
	Mode string
}

type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

func NewServer(port int, apiToken string, conversations Conversations, rets Returns) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:        router,
		port:          port,
		conversations: conversations,
		returns:       rets,
		Mode:          "auto-commit",
	}

	router.Get("/health", s.health)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1/clerk", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Get("/status", s.status)
		r.Post("/chat", s.chat)
		r.Get("/sessions/{id}", s.getSession)
		r.Delete("/sessions/{id}", s.deleteSession)
		r.Get("/returns/{key}", s.getReturn)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// BearerAuthMiddleware rejects requests without the configured bearer token.
// An empty token disables the check.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"agent":  "clerk",
		"status": s.Mode,
	})
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := s.conversations.Handle(r.Context(), req.SessionID, req.Message)
	if err != nil {
		slog.Error("chat turn failed", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "conversation state unavailable, please try again")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := s.conversations.State(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		slog.Error("load session failed", "session_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "conversation state unavailable")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.conversations.End(r.Context(), id); err != nil {
		slog.Error("end session failed", "session_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "conversation state unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getReturn(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	rec, err := s.returns.Lookup(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "return not found")
		return
	}
	if err != nil {
		slog.Error("lookup return failed", "dedup_key", key, "error", err)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
