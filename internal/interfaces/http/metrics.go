package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/costpulse/costpulse/internal/application"
)

// MetricsRegistry holds the Prometheus metrics exposed by the monitor.
type MetricsRegistry struct {
	RunDuration  prometheus.Histogram
	RunsTotal    prometheus.Counter
	RowsScanned  prometheus.Counter
	Anomalies    *prometheus.CounterVec
	LastRunEpoch prometheus.Gauge
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
}

// NewMetricsRegistry creates and registers the monitor metrics.
func NewMetricsRegistry() *MetricsRegistry {
	registry := &MetricsRegistry{
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "costpulse_run_duration_seconds",
				Help:    "Duration of pipeline runs in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
		),
		RunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "costpulse_runs_total",
				Help: "Total number of completed pipeline runs",
			},
		),
		RowsScanned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "costpulse_rows_scanned_total",
				Help: "Total number of raw cost rows processed",
			},
		),
		Anomalies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "costpulse_anomalies_total",
				Help: "Total number of anomaly records emitted by scope",
			},
			[]string{"scope"},
		),
		LastRunEpoch: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "costpulse_last_run_timestamp_seconds",
				Help: "Unix timestamp of the most recent completed run",
			},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "costpulse_aggregate_cache_hits_total",
				Help: "Total number of aggregate cache hits",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "costpulse_aggregate_cache_misses_total",
				Help: "Total number of aggregate cache misses",
			},
		),
	}

	prometheus.MustRegister(
		registry.RunDuration,
		registry.RunsTotal,
		registry.RowsScanned,
		registry.Anomalies,
		registry.LastRunEpoch,
		registry.CacheHits,
		registry.CacheMisses,
	)

	return registry
}

// RecordRun folds a completed run result into the metrics.
func (m *MetricsRegistry) RecordRun(result *application.RunResult) {
	m.RunsTotal.Inc()
	m.RunDuration.Observe(result.Duration.Seconds())
	m.RowsScanned.Add(float64(result.Rows))
	m.LastRunEpoch.Set(float64(result.StartedAt.Unix()))

	for scope, n := range result.Anomalies {
		m.Anomalies.WithLabelValues(scope).Add(float64(n))
	}

	if result.CacheHit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}

	log.Debug().
		Str("run_id", result.RunID).
		Dur("duration", result.Duration).
		Msg("Run metrics recorded")
}

// Handler returns the Prometheus scrape handler.
func (m *MetricsRegistry) Handler() http.Handler {
	return promhttp.Handler()
}

// healthResponse is the /health payload.
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}
