// Package http serves the monitor endpoints: health, Prometheus metrics and
// the latest run summary.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Server exposes the monitor over HTTP.
type Server struct {
	metrics    *MetricsRegistry
	reportsDir string
	version    string
	srv        *http.Server
}

// NewServer creates a monitor server. reportsDir is where the pipeline
// writes scan_summary.json.
func NewServer(addr string, metrics *MetricsRegistry, reportsDir, version string) *Server {
	s := &Server{
		metrics:    metrics,
		reportsDir: reportsDir,
		version:    version,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/summary", s.handleSummary).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.srv.Addr).Msg("Monitor server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitor server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Monitor server shutting down")
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   s.version,
	})
}

// handleSummary returns the scan_summary.json written by the last run, or
// 404 when no run has completed yet.
func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	path := filepath.Join(s.reportsDir, "scan_summary.json")
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no completed run"})
			return
		}
		log.Error().Err(err).Str("path", path).Msg("Failed to read run summary")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "summary unavailable"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
