package application

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/costpulse/costpulse/internal/domain/anomaly"
	"github.com/costpulse/costpulse/internal/gen"
)

// PipelineConfig is the full configuration surface of a pipeline run,
// loaded from config/pipeline.yaml.
type PipelineConfig struct {
	Anomaly   anomaly.Config  `yaml:"anomaly"`
	Explain   ExplainConfig   `yaml:"explain"`
	Input     InputConfig     `yaml:"input"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Cache     CacheConfig     `yaml:"cache"`
	Database  DatabaseConfig  `yaml:"database"`
}

// ExplainConfig controls the contribution ranking.
type ExplainConfig struct {
	// TopN is how many drivers to keep per axis in each explanation.
	TopN int `yaml:"top_n"`
}

// InputConfig locates the raw dataset.
type InputConfig struct {
	// Path is the raw cost CSV to scan.
	Path string `yaml:"path"`

	// GenerateIfMissing creates a synthetic dataset at Path when the file
	// does not exist, so a fresh checkout produces a working demo run.
	GenerateIfMissing bool `yaml:"generate_if_missing"`
}

// ArtifactsConfig locates the output tables.
type ArtifactsConfig struct {
	// ProcessedDir receives the aggregated series tables.
	ProcessedDir string `yaml:"processed_dir"`

	// ReportsDir receives the anomaly and explanation tables plus the run
	// summary JSON.
	ReportsDir string `yaml:"reports_dir"`
}

// CacheConfig configures the optional Redis aggregate cache.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// TTL returns the cache TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// DatabaseConfig configures the optional Postgres scan history.
type DatabaseConfig struct {
	Enabled        bool   `yaml:"enabled"`
	DSN            string `yaml:"dsn"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-query timeout as a duration.
func (c DatabaseConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DefaultPipelineConfig returns the shipped defaults, used when no config
// file is given.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Anomaly: anomaly.DefaultConfig(),
		Explain: ExplainConfig{TopN: 1},
		Input: InputConfig{
			Path:              "data/raw/daily_cost.csv",
			GenerateIfMissing: true,
		},
		Artifacts: ArtifactsConfig{
			ProcessedDir: "data/processed",
			ReportsDir:   "reports",
		},
		Cache:    CacheConfig{Addr: "localhost:6379", TTLSeconds: 3600},
		Database: DatabaseConfig{TimeoutSeconds: 10},
	}
}

// LoadPipelineConfig loads and validates config/pipeline.yaml. Fields left
// out of the file keep their defaults.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline config: %w", err)
	}

	cfg := DefaultPipelineConfig()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal pipeline config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration at startup.
func (c *PipelineConfig) Validate() error {
	if err := c.Anomaly.Validate(); err != nil {
		return err
	}
	if c.Explain.TopN < 1 {
		return &anomaly.ConfigurationError{Reason: fmt.Sprintf("explain top_n must be >= 1, got %d", c.Explain.TopN)}
	}
	if c.Input.Path == "" {
		return &anomaly.ConfigurationError{Reason: "input path must not be empty"}
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return &anomaly.ConfigurationError{Reason: "database enabled but dsn is empty"}
	}
	return nil
}

// LoadGeneratorConfig loads config/generator.yaml.
func LoadGeneratorConfig(path string) (gen.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return gen.Config{}, fmt.Errorf("read generator config: %w", err)
	}

	cfg := gen.DefaultConfig()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return gen.Config{}, fmt.Errorf("unmarshal generator config: %w", err)
	}
	if cfg.Days < 1 {
		return gen.Config{}, &anomaly.ConfigurationError{Reason: fmt.Sprintf("generator days must be >= 1, got %d", cfg.Days)}
	}
	return cfg, nil
}
