// Package httpadapter serves health probes, Prometheus metrics, the
// documents of the latest completed run and the recorded run history over
// HTTP.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/hazard-sim/internal/adapter/sqlite"
	"github.com/couchcryptid/hazard-sim/internal/assembler"
	"github.com/couchcryptid/hazard-sim/internal/cache"
	"github.com/couchcryptid/hazard-sim/internal/domain"
	"github.com/couchcryptid/hazard-sim/internal/observability"
)

// RunSource provides the most recently completed run, or nil before the first.
type RunSource interface {
	Latest() *assembler.Assembler
}

// HistorySource reads recorded runs and scenario outcomes.
type HistorySource interface {
	RecentRuns(ctx context.Context, limit int) ([]sqlite.RunRow, error)
	ScenarioHistory(ctx context.Context, m domain.Module, key string, limit int) ([]sqlite.ScenarioRow, error)
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// Server exposes health, readiness, metrics and result HTTP endpoints.
type Server struct {
	httpServer *http.Server
	source     RunSource
	history    HistorySource
	rendered   *cache.LRU[string, []byte]
	stride     int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server. GeoJSON requests without a stride
// parameter use defaultStride; rendered collections are kept in an LRU of
// cacheSize entries.
func NewServer(addr string, ready sharedobs.ReadinessChecker, source RunSource, defaultStride, cacheSize int, metrics *observability.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		source:   source,
		rendered: cache.New[string, []byte](cacheSize),
		stride:   max(defaultStride, 1),
		metrics:  metrics,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/summary", s.handleSummary)
	mux.HandleFunc("GET /api/v1/scenarios/{module}/{key}", s.handleScenario)
	mux.HandleFunc("GET /api/v1/scenarios/{module}/{key}/geojson", s.handleGeoJSON)
	mux.HandleFunc("GET /api/v1/history/runs", s.handleRunHistory)
	mux.HandleFunc("GET /api/v1/history/{module}/{key}", s.handleScenarioHistory)

	return s
}

// SetHistory enables the history endpoints. Without it they answer 404.
func (s *Server) SetHistory(h HistorySource) { s.history = h }

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

func (s *Server) latest(w http.ResponseWriter) *assembler.Assembler {
	a := s.source.Latest()
	if a == nil {
		writeError(w, http.StatusServiceUnavailable, "no completed run yet")
	}
	return a
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	a := s.latest(w)
	if a == nil {
		return
	}
	writeJSON(w, http.StatusOK, a.Summary())
}

func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	a := s.latest(w)
	if a == nil {
		return
	}
	m, err := domain.ParseModule(r.PathValue("module"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	doc, err := a.ScenarioDocument(m, r.PathValue("key"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	a := s.latest(w)
	if a == nil {
		return
	}
	m, err := domain.ParseModule(r.PathValue("module"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	key := r.PathValue("key")

	stride := s.stride
	if v := r.URL.Query().Get("stride"); v != "" {
		stride, err = strconv.Atoi(v)
		if err != nil || stride < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid stride %q: must be a positive integer", v))
			return
		}
	}

	// Run ids are unique, so a newer run never hits an older entry.
	cacheKey := fmt.Sprintf("%s/%s/%s/%d", a.Report().RunID, m, key, stride)
	body, ok := s.rendered.Get(cacheKey)
	if ok {
		s.metrics.ResultCache.WithLabelValues("hit").Inc()
	} else {
		s.metrics.ResultCache.WithLabelValues("miss").Inc()
		fc, err := a.FeatureCollection(m, key, stride)
		if err != nil {
			s.writeLookupError(w, err)
			return
		}
		body, err = fc.MarshalJSON()
		if err != nil {
			s.logger.Error("encode geojson", "module", m, "scenario", key, "error", err)
			writeError(w, http.StatusInternalServerError, "encode geojson")
			return
		}
		s.rendered.Put(cacheKey, body)
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.historyLimit(w, r)
	if !ok {
		return
	}
	runs, err := s.history.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("read run history", "error", err)
		writeError(w, http.StatusInternalServerError, "read run history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": nonNil(runs)})
}

func (s *Server) handleScenarioHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.historyLimit(w, r)
	if !ok {
		return
	}
	m, err := domain.ParseModule(r.PathValue("module"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	key := r.PathValue("key")
	rows, err := s.history.ScenarioHistory(r.Context(), m, key, limit)
	if err != nil {
		s.logger.Error("read scenario history", "module", m, "scenario", key, "error", err)
		writeError(w, http.StatusInternalServerError, "read scenario history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"module": m, "key": key, "outcomes": nonNil(rows)})
}

// historyLimit checks that history is enabled and parses the limit parameter.
func (s *Server) historyLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "run history is not enabled")
		return 0, false
	}
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultHistoryLimit, true
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit < 1 || limit > maxHistoryLimit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q: must be between 1 and %d", v, maxHistoryLimit))
		return 0, false
	}
	return limit, true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assembler.ErrScenarioNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, assembler.ErrNoResult):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("render scenario", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
