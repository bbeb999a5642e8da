package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costpulse/costpulse/internal/application"
)

// metrics registration is process-global, so the registry is shared across
// tests.
var testMetrics = NewMetricsRegistry()

func testRouter(reportsDir string) http.Handler {
	s := &Server{metrics: testMetrics, reportsDir: reportsDir, version: "test"}
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", testMetrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/summary", s.handleSummary).Methods(http.MethodGet)
	return r
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter(t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "test", body.Version)
}

func TestMetricsEndpointExposesRunCounters(t *testing.T) {
	testMetrics.RecordRun(&application.RunResult{
		RunID:     "run-1",
		StartedAt: time.Now().UTC(),
		Duration:  250 * time.Millisecond,
		Rows:      120,
		Anomalies: map[string]int{"total": 1, "service": 2, "resource_group": 1},
	})

	router := testRouter(t.TempDir())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "costpulse_runs_total")
	assert.Contains(t, body, "costpulse_rows_scanned_total")
	assert.Contains(t, body, `costpulse_anomalies_total{scope="service"}`)
}

func TestSummaryEndpoint(t *testing.T) {
	dir := t.TempDir()
	router := testRouter(dir)

	t.Run("no run yet", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/summary", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("after a run", func(t *testing.T) {
		summary := `{"run_id":"run-1","rows":120}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "scan_summary.json"), []byte(summary), 0644))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/summary", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, summary, rec.Body.String())
	})
}
