package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/s3conform/pkg/domain"
	"github.com/aretw0/s3conform/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunFunc executes a conformance run and returns one report per service.
type RunFunc func(ctx context.Context) ([]*domain.RunReport, error)

// Server exposes stored reports, metrics and live run events.
type Server struct {
	Store   ports.ReportStore
	Streams *StreamManager

	gatherer prometheus.Gatherer
	run      RunFunc
	version  string
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// Option configures the Server.
type Option func(*Server)

// WithGatherer serves /metrics from the given gatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithRunFunc enables POST /runs.
func WithRunFunc(fn RunFunc) Option {
	return func(s *Server) { s.run = fn }
}

// WithStreams shares a stream manager, usually the one whose Hooks feed the runner.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) { s.Streams = sm }
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewHandler creates the HTTP handler over a report store.
func NewHandler(store ports.ReportStore, opts ...Option) http.Handler {
	s := &Server{
		Store:    store,
		gatherer: prometheus.DefaultGatherer,
		version:  "dev",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Route("/reports", func(r chi.Router) {
		r.Get("/", s.ListReports)
		r.Get("/{id}", s.GetReport)
		r.Delete("/{id}", s.DeleteReport)
	})
	r.Post("/runs", s.StartRun)
	r.Get("/events", s.SubscribeEvents)
	return enableCORS(r)
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

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "s3conform-http",
		"version": s.version,
	})
}

// ListReports handles the GET /reports request.
func (s *Server) ListReports(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Store.List(r.Context())
	if err != nil {
		s.logger.Error("ListReports failed", "error", err)
		http.Error(w, "failed to list reports", http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetReport handles the GET /reports/{id} request.
func (s *Server) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, err := s.Store.Load(r.Context(), id)
	if errors.Is(err, domain.ErrReportNotFound) {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("GetReport failed", "id", id, "error", err)
		http.Error(w, "failed to load report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// DeleteReport handles the DELETE /reports/{id} request.
func (s *Server) DeleteReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Store.Delete(r.Context(), id); err != nil {
		s.logger.Error("DeleteReport failed", "id", id, "error", err)
		http.Error(w, "failed to delete report", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type runSummary struct {
	ID      string         `json:"id"`
	Service string         `json:"service"`
	Summary domain.Summary `json:"summary"`
}

// StartRun handles the POST /runs request. Only one run may be active.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	if s.run == nil {
		http.Error(w, "runs are disabled", http.StatusNotImplemented)
		return
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		http.Error(w, "a run is already in progress", http.StatusConflict)
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	reports, err := s.run(r.Context())
	if err != nil {
		s.logger.Error("run failed", "error", err)
		http.Error(w, "run failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]runSummary, 0, len(reports))
	for _, rep := range reports {
		out = append(out, runSummary{ID: rep.ID, Service: rep.Service, Summary: rep.Summary})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
