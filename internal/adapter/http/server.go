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

	"github.com/couchcryptid/parking-norm-etl/internal/domain"
	"github.com/couchcryptid/parking-norm-etl/internal/pipeline"
	"github.com/couchcryptid/parking-norm-etl/internal/scheduler"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunTrigger starts normalization runs on demand.
type RunTrigger interface {
	Trigger(ctx context.Context, mode pipeline.Mode) (pipeline.RunStats, error)
	TriggerRange(ctx context.Context, start, end domain.HourBucket) (pipeline.RunStats, error)
}

// Server exposes health, metrics, run triggers and record lookup.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	runs       RunTrigger
	records    pipeline.RecordGetter
	logger     *slog.Logger
}

// NewServer creates the admin HTTP server.
func NewServer(addr string, ready sharedobs.ReadinessChecker, runs RunTrigger, records pipeline.RecordGetter, logger *slog.Logger) *Server {
	s := &Server{runs: runs, records: records, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", sharedobs.LivenessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/readyz", sharedobs.ReadinessHandler(ready)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Routes live on the root router: a subrouter answers a method
	// mismatch with 404 instead of 405.
	r.HandleFunc("/v1/runs/range", s.handleRangeRun).Methods(http.MethodPost)
	r.HandleFunc("/v1/runs/{mode:full|recent}", s.handleRun).Methods(http.MethodPost)
	r.HandleFunc("/v1/garages/{garageID:[0-9]+}/hours/{hour}", s.handleGetRecord).Methods(http.MethodGet)

	s.handler = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{logger}))(r)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.handler,
		ReadTimeout: 10 * time.Second,
		// No write timeout: run triggers answer when the run finishes.
		IdleTimeout: 60 * time.Second,
	}
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
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	mode := pipeline.Mode(mux.Vars(r)["mode"])
	stats, err := s.runs.Trigger(r.Context(), mode)
	s.writeRunResult(w, stats, err)
}

func (s *Server) handleRangeRun(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := domain.ParseHourBucket(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("start: %w", err))
		return
	}
	end, err := domain.ParseHourBucket(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("end: %w", err))
		return
	}
	stats, err := s.runs.TriggerRange(r.Context(), start, end)
	s.writeRunResult(w, stats, err)
}

func (s *Server) writeRunResult(w http.ResponseWriter, stats pipeline.RunStats, err error) {
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, stats)
	}
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	garageID, err := strconv.Atoi(vars["garageID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("garage id: %w", err))
		return
	}
	hour, err := domain.ParseHourBucket(vars["hour"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, found, err := s.records.Get(r.Context(), garageID, hour)
	if err != nil {
		s.logger.Error("record lookup failed", "garage_id", garageID, "hour", hour.String(), "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("no record for garage %d at %s", garageID, hour))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

// recoveryLogger sends recovered panics to slog.
type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("http handler panic", "panic", fmt.Sprint(v...))
}
