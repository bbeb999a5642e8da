package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/costpulse/costpulse/internal/application"
	httpserver "github.com/costpulse/costpulse/internal/interfaces/http"
)

// runMonitor starts the monitor HTTP server and blocks until interrupted.
func runMonitor(cmd *cobra.Command, _ []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetString("port")
	if _, err := strconv.Atoi(port); err != nil {
		return fmt.Errorf("invalid port: %s", port)
	}

	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := application.LoadPipelineConfig(cfgPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		cfg = application.DefaultPipelineConfig()
	}

	addr := fmt.Sprintf("%s:%s", host, port)
	metrics := httpserver.NewMetricsRegistry()
	seedMetricsFromLastRun(metrics, cfg.Artifacts.ReportsDir)
	server := httpserver.NewServer(addr, metrics, cfg.Artifacts.ReportsDir, version)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("health", fmt.Sprintf("http://%s/health", addr)).
			Str("metrics", fmt.Sprintf("http://%s/metrics", addr)).
			Str("summary", fmt.Sprintf("http://%s/api/v1/summary", addr)).
			Msg("Monitor endpoints available")
		if err := server.Start(); err != nil {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedMetricsFromLastRun folds the most recent scan summary into the metrics
// so a restarted monitor does not report an empty history.
func seedMetricsFromLastRun(metrics *httpserver.MetricsRegistry, reportsDir string) {
	data, err := os.ReadFile(filepath.Join(reportsDir, "scan_summary.json"))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Msg("Could not read last run summary")
		}
		return
	}

	var result application.RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		log.Warn().Err(err).Msg("Last run summary is corrupt, skipping metrics seed")
		return
	}
	metrics.RecordRun(&result)
}
