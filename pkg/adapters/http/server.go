package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aretw0/sessionstore/internal/logging"
	"github.com/aretw0/sessionstore/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the session endpoints of a Coordinator.
type Server struct {
	Coordinator *session.Coordinator
	Version     string

	gatherer    prometheus.Gatherer
	health      func(context.Context) error
	middlewares []MiddlewareOption
	logger      *slog.Logger
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithVersion sets the version reported by /info.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.Version = v
	}
}

// WithGatherer exposes g on /metrics.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithHealthcheck makes /health report the result of probe.
func WithHealthcheck(probe func(context.Context) error) ServerOption {
	return func(s *Server) {
		s.health = probe
	}
}

// WithMiddlewareOptions configures the session middleware.
func WithMiddlewareOptions(opts ...MiddlewareOption) ServerOption {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, opts...)
	}
}

// WithLogger sets the server logger. The middleware inherits it.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates a new HTTP handler for the coordinator.
func NewHandler(coord *session.Coordinator, opts ...ServerOption) http.Handler {
	server := &Server{
		Coordinator: coord,
		Version:     "dev",
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	if server.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(server.gatherer, promhttp.HandlerOpts{}))
	}

	mwOpts := append([]MiddlewareOption{WithMiddlewareLogger(server.logger)}, server.middlewares...)
	r.Group(func(r chi.Router) {
		r.Use(NewMiddleware(coord, mwOpts...))
		r.Get("/", server.Count)
		r.Get("/session", server.GetSession)
		r.Put("/session", server.PutSession)
		r.Delete("/session", server.DeleteSession)
		r.Post("/session/renew", server.RenewSession)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Count handles GET /, incrementing a per-session counter.
func (s *Server) Count(w http.ResponseWriter, r *http.Request) {
	sess := FromContext(r.Context())
	n, _ := sess.GetInt("counter")
	n++
	sess.Set("counter", n)

	s.writeJSON(w, http.StatusOK, map[string]int{"counter": n})
}

// GetSession handles GET /session.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"id":     IDFromContext(r.Context()),
		"values": FromContext(r.Context()).Values(),
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// PutSession handles PUT /session, setting every key of the JSON body.
// A null value deletes the key.
func (s *Server) PutSession(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("PutSession: Invalid request body", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sess := FromContext(r.Context())
	for k, v := range body {
		if v == nil {
			sess.Delete(k)
			continue
		}
		sess.Set(k, v)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"values": sess.Values()})
}

// DeleteSession handles DELETE /session.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	Drop(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// RenewSession handles POST /session/renew.
func (s *Server) RenewSession(w http.ResponseWriter, r *http.Request) {
	Renew(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]bool{"renewed": true})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn("Healthcheck failed", "error", err)
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"app":     "sessionstore-http",
		"version": s.Version,
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "error", err)
	}
}
