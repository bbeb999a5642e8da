package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "CostPulse"
	version = "v0.3.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = log.Output(os.Stderr)
	}

	rootCmd := &cobra.Command{
		Use:     "costpulse",
		Short:   "Daily cloud cost anomaly detection",
		Version: version,
		Long: `CostPulse scans daily cloud cost exports for spend anomalies.

It aggregates raw rows into total, per-service and per-resource-group
series, flags days that break a robust median/MAD threshold, and ranks
the services and resource groups that drove each anomalous total.`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level, _ := cmd.Flags().GetString("log-level")
			setLogLevel(level)
		},
	}

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run the full detection pipeline",
		Long:  "Load the raw dataset, aggregate, detect anomalies, rank drivers and write the report tables",
		RunE:  runScan,
	}
	scanCmd.Flags().String("config", "config/pipeline.yaml", "Pipeline config file")
	scanCmd.Flags().String("input", "", "Raw cost CSV (overrides config)")
	scanCmd.Flags().Int("top-n", 0, "Drivers per axis in explanations (overrides config)")
	scanCmd.Flags().Int("workers", 0, "Parallel scan workers (overrides config)")
	scanCmd.Flags().Bool("no-cache", false, "Disable the Redis aggregate cache for this run")
	scanCmd.Flags().Bool("no-persist", false, "Disable the Postgres scan history for this run")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic cost dataset",
		Long:  "Writes a deterministic synthetic daily cost CSV with seasonality, a step change and injected incidents",
		RunE:  runGenerate,
	}
	generateCmd.Flags().String("config", "", "Generator config file (optional)")
	generateCmd.Flags().String("out", "data/raw/daily_cost.csv", "Output CSV path")
	generateCmd.Flags().Int("days", 0, "Days of history (overrides config)")
	generateCmd.Flags().Int64("seed", 0, "RNG seed (overrides config)")

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Start the monitor HTTP server",
		Long:  "Serves /health, /metrics and /api/v1/summary for the latest scan",
		RunE:  runMonitor,
	}
	monitorCmd.Flags().String("host", "0.0.0.0", "HTTP server host")
	monitorCmd.Flags().String("port", "8080", "HTTP server port")
	monitorCmd.Flags().String("config", "config/pipeline.yaml", "Pipeline config file")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(monitorCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
