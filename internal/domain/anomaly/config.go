package anomaly

import "fmt"

// Config holds the detection tunables. It is passed explicitly into every
// classification call; there is no process-wide mutable state in the core.
type Config struct {
	// WindowDays is the size of the trailing reference window, counted in
	// observed points, not calendar days.
	WindowDays int `yaml:"window_days" json:"window_days"`

	// MADMultiplier scales the dispersion into the threshold. Higher means
	// fewer false positives.
	MADMultiplier float64 `yaml:"mad_multiplier" json:"mad_multiplier"`

	// MinHistory is the minimum number of prior observations a series needs
	// before a date becomes eligible for classification.
	MinHistory int `yaml:"min_history" json:"min_history"`

	// Workers bounds the per-key fan-out during a scan. 1 runs the scan
	// synchronously; output ordering is identical at any worker count.
	Workers int `yaml:"workers" json:"workers"`
}

// DefaultConfig returns the shipped detection defaults.
func DefaultConfig() Config {
	return Config{
		WindowDays:    14,
		MADMultiplier: 8.0,
		MinHistory:    21,
		Workers:       1,
	}
}

// Validate checks the config for startup-time inconsistencies.
func (c Config) Validate() error {
	if c.WindowDays < 1 {
		return &ConfigurationError{Reason: fmt.Sprintf("window_days must be >= 1, got %d", c.WindowDays)}
	}
	if c.MADMultiplier <= 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("mad_multiplier must be > 0, got %g", c.MADMultiplier)}
	}
	if c.MinHistory < c.WindowDays {
		return &ConfigurationError{Reason: fmt.Sprintf("min_history %d must be >= window_days %d", c.MinHistory, c.WindowDays)}
	}
	if c.Workers < 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("workers must be >= 0, got %d", c.Workers)}
	}
	return nil
}

// ConfigurationError reports an inconsistent detection config at startup.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "anomaly config: " + e.Reason
}
