// Package persistence defines the storage contracts for cost rows and
// anomaly records. A run is complete without a database; artifacts are the
// primary output. Teams that keep scan history wire in the Postgres
// implementation.
package persistence

import (
	"context"
	"time"

	"github.com/costpulse/costpulse/internal/domain"
	"github.com/costpulse/costpulse/internal/domain/anomaly"
)

// DateRange is an inclusive day window for queries.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CostRepo persists raw cost rows.
type CostRepo interface {
	// InsertBatch stores a batch of rows atomically.
	InsertBatch(ctx context.Context, runID string, rows []domain.CostRow) error

	// ListRange retrieves rows whose date falls in the range, ordered by
	// date, subscription, resource group, service.
	ListRange(ctx context.Context, dr DateRange) ([]domain.CostRow, error)

	// Count returns how many rows fall in the range.
	Count(ctx context.Context, dr DateRange) (int64, error)
}

// AnomalyRepo persists detected anomaly records.
type AnomalyRepo interface {
	// UpsertBatch stores records, replacing any prior record for the same
	// (date, scope, key).
	UpsertBatch(ctx context.Context, runID string, records []anomaly.Record) error

	// ListRange retrieves records in scan order for a date range.
	ListRange(ctx context.Context, dr DateRange) ([]anomaly.Record, error)

	// ListByScope retrieves records for one scope, newest first.
	ListByScope(ctx context.Context, scope domain.Scope, limit int) ([]anomaly.Record, error)

	// CountByScope returns record counts grouped by scope for a range.
	CountByScope(ctx context.Context, dr DateRange) (map[domain.Scope]int64, error)
}

// Repository aggregates the persistence interfaces.
type Repository struct {
	Costs     CostRepo
	Anomalies AnomalyRepo
}
