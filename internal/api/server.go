// Package api exposes the HTTP interface for the orchestrator.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pricebot/scraperd/internal/controller"
	"github.com/pricebot/scraperd/internal/metrics"
	"github.com/pricebot/scraperd/internal/scraper"
)

// Server wires HTTP handlers to the job controller.
type Server struct {
	router  chi.Router
	ctrl    *controller.Controller
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(ctrl *controller.Controller, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ctrl:    ctrl,
		metrics: m,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(10 * time.Minute))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", s.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/status", s.getJobStatus)
				r.Get("/results", s.getJobResults)
				r.Post("/pause", s.pauseJob)
				r.Post("/resume", s.resumeJob)
				r.Post("/cancel", s.cancelJob)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}

func (s *Server) metricsHandler() http.Handler {
	return s.metrics.Handler()
}

type submitJobRequest struct {
	Domains []string `json:"domains"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", s.logger)
		return
	}
	if len(req.Domains) == 0 {
		writeError(w, http.StatusBadRequest, "domains required", s.logger)
		return
	}
	jobID, err := s.ctrl.Submit(r.Context(), req.Domains)
	if err != nil {
		var discErr *scraper.DiscoveryError
		if errors.As(err, &discErr) {
			writeError(w, http.StatusBadGateway, fmt.Sprintf("discovery failed: %s", discErr.Reason), s.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), s.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID}, s.logger)
}

func (s *Server) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	view, err := s.ctrl.GetStatus(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, view, s.logger)
}

func (s *Server) getJobResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	outcomes, err := s.ctrl.GetResults(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, scraper.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found", s.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch job results", s.logger)
		return
	}
	if outcomes == nil {
		outcomes = []scraper.ScrapeOutcome{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "results": outcomes}, s.logger)
}

func (s *Server) pauseJob(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.ctrl.Pause)
}

func (s *Server) resumeJob(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.ctrl.Resume)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.ctrl.Cancel)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, op func(string) (scraper.JobStatus, error)) {
	jobID := chi.URLParam(r, "job_id")
	status, err := op(jobID)
	if err != nil {
		if errors.Is(err, scraper.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found", s.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": string(status)}, s.logger)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error", logger)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, logger *zap.Logger) {
	writeJSON(w, status, map[string]string{"error": msg}, logger)
}
