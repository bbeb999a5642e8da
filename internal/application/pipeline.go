// Package application orchestrates the scan pipeline: load or generate the
// raw dataset, aggregate it into the three series views, run the anomaly
// scanner, explain the anomalous total dates and write the artifact tables.
package application

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/costpulse/costpulse/internal/cache"
	"github.com/costpulse/costpulse/internal/domain"
	"github.com/costpulse/costpulse/internal/domain/anomaly"
	"github.com/costpulse/costpulse/internal/gen"
	pio "github.com/costpulse/costpulse/internal/io"
	costlog "github.com/costpulse/costpulse/internal/log"
	"github.com/costpulse/costpulse/internal/persistence"
)

// Pipeline runs the full detection flow. Cache and repo are optional; a nil
// value disables that integration.
type Pipeline struct {
	cfg   *PipelineConfig
	cache *cache.Client
	repo  *persistence.Repository
}

// NewPipeline validates the config and assembles a pipeline.
func NewPipeline(cfg *PipelineConfig, cacheClient *cache.Client, repo *persistence.Repository) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, cache: cacheClient, repo: repo}, nil
}

// RunResult summarizes a completed run for logging and the monitor summary
// endpoint.
type RunResult struct {
	RunID        string         `json:"run_id"`
	StartedAt    time.Time      `json:"started_at"`
	Duration     time.Duration  `json:"duration_ns"`
	Rows         int            `json:"rows"`
	Days         int            `json:"days"`
	Anomalies    map[string]int `json:"anomalies"` // by scope
	Explanations int            `json:"explanations"`
	Config       anomaly.Config `json:"config"`
	TopN         int            `json:"top_n"`
	CacheHit     bool           `json:"cache_hit"`
}

// Run executes one full pipeline pass. Everything is recomputed from the raw
// rows; there is no incremental state, so two runs over identical input
// write byte-identical artifacts.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Config:    p.cfg.Anomaly,
		TopN:      p.cfg.Explain.TopN,
	}
	steps := costlog.NewStepLogger("scan", []string{"load", "aggregate", "detect", "explain", "write"})

	steps.StartStep("load")
	rows, err := p.loadRows()
	if err != nil {
		steps.Fail(err.Error())
		return nil, err
	}
	result.Rows = len(rows)
	steps.CompleteStep()

	steps.StartStep("aggregate")
	agg, hit, err := p.aggregate(ctx, rows)
	if err != nil {
		steps.Fail(err.Error())
		return nil, err
	}
	result.Days = agg.Total.Len()
	result.CacheHit = hit
	steps.CompleteStep()

	steps.StartStep("detect")
	scanner, err := anomaly.NewScanner(p.cfg.Anomaly)
	if err != nil {
		steps.Fail(err.Error())
		return nil, err
	}
	records := scanner.Scan(agg)
	result.Anomalies = countByScope(records)
	steps.CompleteStep()

	steps.StartStep("explain")
	explainer, err := anomaly.NewExplainer(p.cfg.Anomaly, p.cfg.Explain.TopN)
	if err != nil {
		steps.Fail(err.Error())
		return nil, err
	}
	explanations := explainer.Explain(totalDates(records), agg)
	result.Explanations = len(explanations)
	steps.CompleteStep()

	steps.StartStep("write")
	if err := p.writeArtifacts(agg, records, explanations, result); err != nil {
		steps.Fail(err.Error())
		return nil, err
	}
	if err := p.persist(ctx, result.RunID, rows, records); err != nil {
		steps.Fail(err.Error())
		return nil, err
	}
	steps.CompleteStep()

	result.Duration = time.Since(result.StartedAt)
	steps.Finish()

	log.Info().
		Str("run_id", result.RunID).
		Int("rows", result.Rows).
		Int("days", result.Days).
		Interface("anomalies", result.Anomalies).
		Int("explanations", result.Explanations).
		Dur("duration", result.Duration).
		Msg("Pipeline run completed")

	return result, nil
}

// loadRows reads the raw dataset, generating it first when configured and
// missing.
func (p *Pipeline) loadRows() ([]domain.CostRow, error) {
	path := p.cfg.Input.Path
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if !p.cfg.Input.GenerateIfMissing {
			return nil, fmt.Errorf("input dataset %s does not exist", path)
		}
		log.Info().Str("path", path).Msg("Input dataset missing, generating synthetic data")
		rows := gen.New(gen.DefaultConfig()).Generate()
		if err := pio.WriteCostRows(path, rows); err != nil {
			return nil, fmt.Errorf("write generated dataset: %w", err)
		}
		return rows, nil
	}
	return pio.ReadCostRows(path)
}

// aggregate builds the three series views, consulting the cache when
// enabled. The cache key is a content hash of the rows, so a stale entry can
// never be served for changed input.
func (p *Pipeline) aggregate(ctx context.Context, rows []domain.CostRow) (*domain.Aggregates, bool, error) {
	if p.cache == nil {
		agg, err := domain.Aggregate(rows)
		return agg, false, err
	}

	key := cache.DatasetHash(rows)
	if agg, ok := p.cache.GetAggregates(ctx, key); ok {
		log.Debug().Str("key", key[:12]).Msg("Aggregate cache hit")
		return agg, true, nil
	}

	agg, err := domain.Aggregate(rows)
	if err != nil {
		return nil, false, err
	}
	p.cache.SetAggregates(ctx, key, agg)
	return agg, false, nil
}

// writeArtifacts writes the series tables, the anomaly table, the
// explanation table and the run summary.
func (p *Pipeline) writeArtifacts(agg *domain.Aggregates, records []anomaly.Record, explanations []anomaly.Explanation, result *RunResult) error {
	processed := p.cfg.Artifacts.ProcessedDir
	reports := p.cfg.Artifacts.ReportsDir

	if err := pio.WriteTotalSeries(filepath.Join(processed, "daily_total.csv"), agg.Total); err != nil {
		return fmt.Errorf("write daily total: %w", err)
	}
	if err := pio.WriteKeyedSeries(filepath.Join(processed, "daily_by_service.csv"), "service", agg.ByService); err != nil {
		return fmt.Errorf("write daily by service: %w", err)
	}
	if err := pio.WriteKeyedSeries(filepath.Join(processed, "daily_by_rg.csv"), "resource_group", agg.ByRG); err != nil {
		return fmt.Errorf("write daily by resource group: %w", err)
	}
	if err := pio.WriteAnomalies(filepath.Join(reports, "anomalies.csv"), records); err != nil {
		return fmt.Errorf("write anomalies: %w", err)
	}
	if err := pio.WriteExplanations(filepath.Join(reports, "anomaly_explanations.csv"), explanations, p.cfg.Explain.TopN); err != nil {
		return fmt.Errorf("write explanations: %w", err)
	}
	if err := pio.WriteJSONAtomic(filepath.Join(reports, "scan_summary.json"), result); err != nil {
		return fmt.Errorf("write scan summary: %w", err)
	}
	return nil
}

// persist stores the rows and records when a repository is wired.
func (p *Pipeline) persist(ctx context.Context, runID string, rows []domain.CostRow, records []anomaly.Record) error {
	if p.repo == nil {
		return nil
	}
	if err := p.repo.Costs.InsertBatch(ctx, runID, rows); err != nil {
		return fmt.Errorf("persist cost rows: %w", err)
	}
	if err := p.repo.Anomalies.UpsertBatch(ctx, runID, records); err != nil {
		return fmt.Errorf("persist anomaly records: %w", err)
	}
	log.Info().Str("run_id", runID).Int("rows", len(rows)).Int("records", len(records)).Msg("Scan history persisted")
	return nil
}

// totalDates extracts the dates of Total-scope records, the explainer's
// input.
func totalDates(records []anomaly.Record) []time.Time {
	var dates []time.Time
	for _, r := range records {
		if r.Scope == domain.ScopeTotal {
			dates = append(dates, r.Date)
		}
	}
	return dates
}

func countByScope(records []anomaly.Record) map[string]int {
	counts := map[string]int{
		string(domain.ScopeTotal):         0,
		string(domain.ScopeService):       0,
		string(domain.ScopeResourceGroup): 0,
	}
	for _, r := range records {
		counts[string(r.Scope)]++
	}
	return counts
}
