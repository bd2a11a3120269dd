package httpadapter_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-sim/internal/adapter/httpadapter"
	"github.com/couchcryptid/hazard-sim/internal/adapter/sqlite"
	"github.com/couchcryptid/hazard-sim/internal/assembler"
	"github.com/couchcryptid/hazard-sim/internal/domain"
	"github.com/couchcryptid/hazard-sim/internal/observability"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type staticSource struct {
	run *assembler.Assembler
}

func (s staticSource) Latest() *assembler.Assembler { return s.run }

type fakeHistory struct {
	runs      []sqlite.RunRow
	outcomes  []sqlite.ScenarioRow
	err       error
	lastLimit int
	lastQuery string
}

func (f *fakeHistory) RecentRuns(_ context.Context, limit int) ([]sqlite.RunRow, error) {
	f.lastLimit = limit
	if limit < len(f.runs) {
		return f.runs[:limit], f.err
	}
	return f.runs, f.err
}

func (f *fakeHistory) ScenarioHistory(_ context.Context, m domain.Module, key string, limit int) ([]sqlite.ScenarioRow, error) {
	f.lastLimit = limit
	f.lastQuery = string(m) + "/" + key
	var out []sqlite.ScenarioRow
	for _, r := range f.outcomes {
		if r.Module == m && r.Key == key {
			out = append(out, r)
		}
	}
	return out, f.err
}

func testRun(t *testing.T) *assembler.Assembler {
	t.Helper()
	g, err := domain.NewGrid(domain.GridSpec{
		Width: 4, Height: 4, CellSize: 5,
		Center:    domain.GeoRef{Lat: 54.1, Lng: 22.93},
		Elevation: make([]float64, 16),
		Obstacle:  make([]float64, 16),
	})
	require.NoError(t, err)

	cat := domain.Catalog{Scenarios: []domain.Scenario{
		{Name: "Cloudburst", Forcing: domain.FloodForcing{RainfallMMH: 150, DurationH: 1}},
		{Name: "Westerly", Forcing: domain.WindForcing{SpeedMS: 10, DirectionDeg: 270}},
	}}
	a := assembler.New(g, domain.RunReport{RunID: "run-9"}, cat)

	depth := make([]float64, 16)
	risk := make([]domain.FloodRisk, 16)
	for i := range depth {
		depth[i] = 0.15
		risk[i] = domain.ClassifyDepth(0.15)
	}
	a.Collect(domain.ScenarioResult{
		Scenario: cat.Scenarios[0],
		Status:   domain.StatusSucceeded,
		Flood: &domain.FloodResult{
			Depth:      depth,
			DischargeX: make([]float64, 16),
			DischargeY: make([]float64, 16),
			Risk:       risk,
			Summary:    domain.FloodSummary{MaxDepthM: 0.15},
		},
	})
	a.Collect(domain.ScenarioResult{Scenario: cat.Scenarios[1], Status: domain.StatusFailed, Error: "diverged"})
	return a
}

func newTestServer(t *testing.T, readyErr error, run *assembler.Assembler) (*httpadapter.Server, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, staticSource{run: run}, 1, 8, metrics, logger), metrics
}

func get(srv http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	assert.Equal(t, http.StatusOK, get(srv, "/healthz").Code)
}

func TestReadyz(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	assert.Equal(t, http.StatusOK, get(srv, "/readyz").Code)

	srv, _ = newTestServer(t, fmt.Errorf("no run completed yet"), nil)
	assert.Equal(t, http.StatusServiceUnavailable, get(srv, "/readyz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	rec := get(srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSummary(t *testing.T) {
	srv, _ := newTestServer(t, nil, testRun(t))
	rec := get(srv, "/api/v1/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var sum assembler.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, "run-9", sum.RunID)
	assert.Len(t, sum.Scenarios, 2)
	assert.Equal(t, 1, sum.Counts[domain.StatusFailed])
}

func TestNoRunYet(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	for _, path := range []string{
		"/api/v1/summary",
		"/api/v1/scenarios/flood/cloudburst",
		"/api/v1/scenarios/flood/cloudburst/geojson",
	} {
		assert.Equal(t, http.StatusServiceUnavailable, get(srv, path).Code, path)
	}
}

func TestScenarioDocument(t *testing.T) {
	srv, _ := newTestServer(t, nil, testRun(t))

	tests := map[string]struct {
		path string
		code int
	}{
		"succeeded":      {"/api/v1/scenarios/flood/cloudburst", http.StatusOK},
		"failed":         {"/api/v1/scenarios/wind/westerly", http.StatusOK},
		"module casing":  {"/api/v1/scenarios/Flood/cloudburst", http.StatusOK},
		"unknown key":    {"/api/v1/scenarios/flood/drizzle", http.StatusNotFound},
		"unknown module": {"/api/v1/scenarios/seismic/cloudburst", http.StatusNotFound},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.code, get(srv, tt.path).Code)
		})
	}

	var doc assembler.ScenarioDocument
	require.NoError(t, json.Unmarshal(get(srv, "/api/v1/scenarios/wind/westerly").Body.Bytes(), &doc))
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.Equal(t, "diverged", doc.Error)
}

func TestGeoJSON(t *testing.T) {
	srv, metrics := newTestServer(t, nil, testRun(t))

	rec := get(srv, "/api/v1/scenarios/flood/cloudburst/geojson?stride=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 4)

	again := get(srv, "/api/v1/scenarios/flood/cloudburst/geojson?stride=2")
	assert.Equal(t, rec.Body.String(), again.Body.String())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ResultCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ResultCache.WithLabelValues("miss")), 0)

	// Default stride of 1 samples every cell.
	require.NoError(t, json.Unmarshal(get(srv, "/api/v1/scenarios/flood/cloudburst/geojson").Body.Bytes(), &fc))
	assert.Len(t, fc.Features, 16)
}

func TestGeoJSON_Errors(t *testing.T) {
	srv, _ := newTestServer(t, nil, testRun(t))

	tests := map[string]struct {
		path string
		code int
	}{
		"failed scenario": {"/api/v1/scenarios/wind/westerly/geojson", http.StatusConflict},
		"unknown key":     {"/api/v1/scenarios/thermal/heatwave/geojson", http.StatusNotFound},
		"zero stride":     {"/api/v1/scenarios/flood/cloudburst/geojson?stride=0", http.StatusBadRequest},
		"bad stride":      {"/api/v1/scenarios/flood/cloudburst/geojson?stride=x", http.StatusBadRequest},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec := get(srv, tt.path)
			assert.Equal(t, tt.code, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func testHistory() *fakeHistory {
	at := time.Date(2026, 6, 21, 12, 0, 0, 0, time.UTC)
	return &fakeHistory{
		runs: []sqlite.RunRow{
			{RunID: "run-9", FinishedAt: at.Add(time.Hour), Succeeded: 1, Failed: 1},
			{RunID: "run-8", FinishedAt: at, Succeeded: 2},
		},
		outcomes: []sqlite.ScenarioRow{
			{RunID: "run-9", Module: domain.ModuleFlood, Key: "cloudburst", Status: domain.StatusSucceeded, Summary: json.RawMessage(`{"max_depth_m":0.15}`)},
			{RunID: "run-8", Module: domain.ModuleFlood, Key: "cloudburst", Status: domain.StatusSucceeded, Summary: json.RawMessage(`{"max_depth_m":0.12}`)},
			{RunID: "run-9", Module: domain.ModuleWind, Key: "westerly", Status: domain.StatusFailed, Error: "diverged"},
		},
	}
}

func TestHistory_Disabled(t *testing.T) {
	srv, _ := newTestServer(t, nil, testRun(t))
	assert.Equal(t, http.StatusNotFound, get(srv, "/api/v1/history/runs").Code)
	assert.Equal(t, http.StatusNotFound, get(srv, "/api/v1/history/flood/cloudburst").Code)
}

func TestHistory_Runs(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	h := testHistory()
	srv.SetHistory(h)

	rec := get(srv, "/api/v1/history/runs?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs []sqlite.RunRow `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "run-9", body.Runs[0].RunID)
	assert.Equal(t, 1, h.lastLimit)

	// History does not depend on a run having completed in this process.
	require.Equal(t, http.StatusOK, get(srv, "/api/v1/history/runs").Code)
	assert.Equal(t, 20, h.lastLimit)
}

func TestHistory_Scenario(t *testing.T) {
	srv, _ := newTestServer(t, nil, testRun(t))
	h := testHistory()
	srv.SetHistory(h)

	rec := get(srv, "/api/v1/history/Flood/cloudburst")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "flood/cloudburst", h.lastQuery)

	var body struct {
		Module   domain.Module        `json:"module"`
		Key      string               `json:"key"`
		Outcomes []sqlite.ScenarioRow `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.ModuleFlood, body.Module)
	require.Len(t, body.Outcomes, 2)
	assert.JSONEq(t, `{"max_depth_m":0.15}`, string(body.Outcomes[0].Summary))

	// An unknown key has an empty history, not an error.
	rec = get(srv, "/api/v1/history/thermal/heatwave")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcomes":[]`)
}

func TestHistory_Errors(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	srv.SetHistory(testHistory())

	tests := map[string]struct {
		path string
		code int
	}{
		"unknown module": {"/api/v1/history/seismic/cloudburst", http.StatusNotFound},
		"zero limit":     {"/api/v1/history/runs?limit=0", http.StatusBadRequest},
		"huge limit":     {"/api/v1/history/runs?limit=501", http.StatusBadRequest},
		"bad limit":      {"/api/v1/history/flood/cloudburst?limit=ten", http.StatusBadRequest},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.code, get(srv, tt.path).Code)
		})
	}

	broken := testHistory()
	broken.err = fmt.Errorf("database is locked")
	srv.SetHistory(broken)
	assert.Equal(t, http.StatusInternalServerError, get(srv, "/api/v1/history/runs").Code)
}
