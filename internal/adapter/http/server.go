// Package http exposes the service API: station registration, current
// conditions, daily means, a live update stream, and the health, readiness,
// and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/riverwatch/hydrosync/internal/domain"
	"github.com/riverwatch/hydrosync/internal/identity"
	"github.com/riverwatch/hydrosync/internal/query"
	"github.com/riverwatch/hydrosync/internal/register"
)

// principalHeader carries the authenticated caller's name, set by the
// ingress proxy.
const principalHeader = "X-Principal"

// defaultWindowDays is the daily-means window when the request names none.
const defaultWindowDays = 30

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Queries is the read surface the API serves. query.Layer satisfies it.
type Queries interface {
	CurrentReading(ctx context.Context, rawID string) (query.Current, bool)
	DailyMeans(ctx context.Context, rawID string, windowDays int) ([]domain.DailyMean, error)
	WatchCurrent(ctx context.Context, rawID string) (<-chan domain.CurrentReading, error)
}

// Registrar is the write surface the API serves. register.Workflow
// satisfies it.
type Registrar interface {
	Register(ctx context.Context, principal register.Principal, draft register.Draft) (identity.Key, error)
	Deactivate(ctx context.Context, principal register.Principal, rawID string) error
}

// Server exposes the service HTTP API.
type Server struct {
	httpServer *http.Server
	queries    Queries
	registrar  Registrar
	admins     map[string]bool
	logger     *slog.Logger
}

// NewServer wires all routes. admins lists principal names allowed to
// register and deactivate stations.
func NewServer(addr string, queries Queries, registrar Registrar, ready ReadinessChecker, admins []string, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	adminSet := make(map[string]bool, len(admins))
	for _, name := range admins {
		adminSet[name] = true
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// No write timeout: the stream route holds its response open.
			IdleTimeout: 60 * time.Second,
		},
		queries:   queries,
		registrar: registrar,
		admins:    adminSet,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/stations", s.handleRegister)
	mux.HandleFunc("DELETE /api/stations/{id}", s.handleDeactivate)
	mux.HandleFunc("GET /api/stations/{id}/current", s.handleCurrent)
	mux.HandleFunc("GET /api/stations/{id}/daily-means", s.handleDailyMeans)
	mux.HandleFunc("GET /api/stations/{id}/stream", s.handleStream)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) principal(r *http.Request) register.Principal {
	name := r.Header.Get(principalHeader)
	return register.Principal{Name: name, Admin: s.admins[name]}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var draft register.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, fmt.Errorf("%w: decode request body: %v", domain.ErrMalformed, err))
		return
	}

	key, err := s.registrar.Register(r.Context(), s.principal(r), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"station": string(key)})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := s.registrar.Deactivate(r.Context(), s.principal(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	reading, ok := s.queries.CurrentReading(r.Context(), r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no current reading"})
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleDailyMeans(w http.ResponseWriter, r *http.Request) {
	days, err := parseWindowDays(r, defaultWindowDays)
	if err != nil {
		writeError(w, err)
		return
	}

	means, err := s.queries.DailyMeans(r.Context(), r.PathValue("id"), days)
	if err != nil {
		writeError(w, err)
		return
	}
	if means == nil {
		means = []domain.DailyMean{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window_days": days,
		"daily_means": means,
	})
}

// handleStream serves current-reading updates as server-sent events until
// the client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	updates, err := s.queries.WatchCurrent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case reading, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(reading)
			if err != nil {
				s.logger.Warn("encode stream update", "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrMalformed):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownStation):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func parseWindowDays(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return fallback, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 || days > 3650 {
		return 0, fmt.Errorf("%w: invalid days parameter %q", domain.ErrMalformed, raw)
	}
	return days, nil
}
