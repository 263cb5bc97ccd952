package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/otl-fi/assistant/internal/conversation"
)

// ConversationReader exposes persisted threads to the inspection endpoint.
type ConversationReader interface {
	LoadConversation(ctx context.Context, threadID string) (*conversation.State, error)
}

type Server struct {
	router *chi.Mux
	port   int
	db     ConversationReader
}

func NewServer(port int, apiToken string, db ConversationReader) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		db:     db,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/assistant/status", s.status)
	router.Route("/api/v1/assistant/conversations", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Get("/{threadID}", s.getConversation)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// BearerAuthMiddleware rejects requests whose Authorization header does not
// carry the configured token. An empty configured token rejects everything.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if token == "" || header != "Bearer "+token {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"agent":  "assistant",
		"status": "active",
	})
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	threadID := strings.TrimSpace(chi.URLParam(r, "threadID"))
	if threadID == "" {
		http.Error(w, `{"error":"missing thread id"}`, http.StatusBadRequest)
		return
	}

	st, err := s.db.LoadConversation(r.Context(), threadID)
	if err != nil {
		slog.Error("conversation lookup failed", "thread_id", threadID, "error", err)
		http.Error(w, `{"error":"lookup failed"}`, http.StatusInternalServerError)
		return
	}
	if st == nil {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(st)
}
