package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/costpulse/costpulse/internal/application"
	"github.com/costpulse/costpulse/internal/cache"
	"github.com/costpulse/costpulse/internal/persistence"
	"github.com/costpulse/costpulse/internal/persistence/postgres"
)

// runScan executes one pipeline pass with optional cache and history
// integrations.
func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadScanConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var cacheClient *cache.Client
	if cfg.Cache.Enabled {
		cacheClient = cache.New(cache.Options{
			Addr: cfg.Cache.Addr,
			DB:   cfg.Cache.DB,
			TTL:  cfg.Cache.TTL(),
		})
		defer cacheClient.Close()
	}

	var repo *persistence.Repository
	if cfg.Database.Enabled {
		db, err := postgres.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()

		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		repo = postgres.NewRepository(db, cfg.Database.Timeout())
	}

	pipeline, err := application.NewPipeline(cfg, cacheClient, repo)
	if err != nil {
		return err
	}

	result, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Scan %s: %d rows over %d days, anomalies total=%d service=%d resource_group=%d, %d explanations (%.2fs)\n",
		result.RunID[:8],
		result.Rows,
		result.Days,
		result.Anomalies["total"],
		result.Anomalies["service"],
		result.Anomalies["resource_group"],
		result.Explanations,
		result.Duration.Seconds())
	return nil
}

// loadScanConfig loads the pipeline config and applies flag overrides.
func loadScanConfig(cmd *cobra.Command) (*application.PipelineConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := application.LoadPipelineConfig(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("path", path).Msg("Config file not found, using defaults")
			cfg = application.DefaultPipelineConfig()
		} else {
			return nil, err
		}
	}

	if input, _ := cmd.Flags().GetString("input"); input != "" {
		cfg.Input.Path = input
	}
	if topN, _ := cmd.Flags().GetInt("top-n"); topN > 0 {
		cfg.Explain.TopN = topN
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Anomaly.Workers = workers
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}
	if noPersist, _ := cmd.Flags().GetBool("no-persist"); noPersist {
		cfg.Database.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
