package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
	"github.com/JakeFAU/drhp-archiver/internal/middleware"
)

// RunStatus describes the most recent archive run.
type RunStatus struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Candidates int       `json:"candidates"`
	Skipped    int       `json:"skipped"`
	Archived   int       `json:"archived"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

// Runs reports on and starts archive runs.
type Runs interface {
	// Last returns the most recent finished run, if any.
	Last() (RunStatus, bool)
	// Trigger starts a run in the background. It returns false when one is already running.
	Trigger() bool
}

// StateReader loads the processed set.
type StateReader interface {
	Load(ctx context.Context) (archiver.ProcessedSet, error)
}

// Server wires HTTP handlers to the run tracker and state store.
type Server struct {
	router chi.Router
	runs   Runs
	state  StateReader
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runs Runs, state StateReader, gatherer prometheus.Gatherer, recorder middleware.Recorder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runs:   runs,
		state:  state,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	if recorder != nil {
		r.Use(middleware.Metrics(recorder))
	}
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", s.getState)
		r.Post("/runs", s.triggerRun)
		r.Get("/runs/last", s.getLastRun)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz reports ready only while the state backend is readable.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.state.Load(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "state unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	set, err := s.state.Load(r.Context())
	if err != nil {
		s.logger.Error("load state failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "load state failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count": set.Len(),
		"urls":  set.Sorted(),
	})
}

func (s *Server) triggerRun(w http.ResponseWriter, _ *http.Request) {
	if !s.runs.Trigger() {
		s.writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) getLastRun(w http.ResponseWriter, _ *http.Request) {
	last, ok := s.runs.Last()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no run has finished yet")
		return
	}
	s.writeJSON(w, http.StatusOK, last)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.WrapResponseWriter(w)
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Debug("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
