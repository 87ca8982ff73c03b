// Package httpserver exposes a diagnostics surface over the
// orchestrator: health, agent listing, cache stats, and adapter
// status. This is NOT the stable public surface spec.md §6.4 describes
// (that's internal/orchestrator, called in-process or via whatever RPC
// layer a deployment wraps it in) — it exists for operators to poke at
// a running core the way reasoning-graph's httpserver exposes its
// service for debugging.
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chrysalis-dev/morph-core/internal/config"
	"github.com/chrysalis-dev/morph-core/internal/orchestrator"
)

// Server wires the orchestrator into an HTTP router.
type Server struct {
	cfg  config.Config
	orch *orchestrator.Orchestrator
}

// New constructs a Server.
func New(cfg config.Config, orch *orchestrator.Orchestrator) *Server {
	return &Server{cfg: cfg, orch: orch}
}

// Router builds the chi router: request-id/real-ip/recoverer/timeout
// middleware, a public /health, and a debug-token-gated diagnostics
// group.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.debugAuthMiddleware)
		r.Get("/agents", s.handleListAgents)
		r.Get("/agents/history", s.handleAgentHistory)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Get("/compat", s.handleCompatMatrix)
		r.Get("/adapters", s.handleAdapters)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	agents, err := s.orch.ListAgents(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "CHRYSALIS_INTERNAL", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"agents": agents})
}

func (s *Server) handleAgentHistory(w http.ResponseWriter, r *http.Request) {
	agentURI := r.URL.Query().Get("agent_uri")
	if agentURI == "" {
		respondError(w, http.StatusBadRequest, "CHRYSALIS_BAD_REQUEST", "agent_uri query parameter required")
		return
	}
	history, err := s.orch.GetAgentHistory(r.Context(), agentURI)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "CHRYSALIS_INTERNAL", err.Error())
		return
	}
	if len(history) == 0 {
		respondError(w, http.StatusNotFound, "CHRYSALIS_NOT_FOUND", "agent not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.orch.GetCacheStats())
}

func (s *Server) handleCompatMatrix(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"matrix": s.orch.CompatibilityMatrix()})
}

func (s *Server) handleAdapters(w http.ResponseWriter, r *http.Request) {
	reg := s.orch.Registry()
	tags := reg.FrameworkTags()
	out := make(map[string]string, len(tags))
	for _, tag := range tags {
		status, _ := reg.Status(tag)
		out[tag] = string(status)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"adapters": out})
}

func (s *Server) debugAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if verifyBearerJWT(r, s.cfg.JWTSecret) {
			next.ServeHTTP(w, r)
			return
		}
		if !s.cfg.AllowDebugToken {
			respondError(w, http.StatusUnauthorized, "CHRYSALIS_AUTH", "debug token required")
			return
		}
		token := r.Header.Get("X-Debug-Token")
		if token == "" || token != s.cfg.DebugToken {
			respondError(w, http.StatusUnauthorized, "CHRYSALIS_AUTH", "debug token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
		"code":  code,
	})
}
