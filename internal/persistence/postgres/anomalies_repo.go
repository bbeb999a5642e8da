package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/costpulse/costpulse/internal/domain"
	"github.com/costpulse/costpulse/internal/domain/anomaly"
	"github.com/costpulse/costpulse/internal/persistence"
)

// anomalyRepo implements persistence.AnomalyRepo on PostgreSQL.
type anomalyRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewAnomalyRepo creates a PostgreSQL anomaly record repository.
func NewAnomalyRepo(db *sqlx.DB, timeout time.Duration) persistence.AnomalyRepo {
	return &anomalyRepo{db: db, timeout: timeout}
}

// UpsertBatch stores records, replacing any prior record for the same
// (date, scope, key). A rerun over the same dates is idempotent.
func (r *anomalyRepo) UpsertBatch(ctx context.Context, runID string, records []anomaly.Record) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO anomaly_records (date, scope, key, value, expected, delta, threshold, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (date, scope, key) DO UPDATE SET
			value = EXCLUDED.value,
			expected = EXCLUDED.expected,
			delta = EXCLUDED.delta,
			threshold = EXCLUDED.threshold,
			run_id = EXCLUDED.run_id`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if !rec.Scope.Valid() {
			return fmt.Errorf("record %d: unknown scope %q", i, rec.Scope)
		}
		if _, err := stmt.ExecContext(ctx, rec.Date, rec.Scope, rec.Key, rec.Value, rec.Expected, rec.Delta, rec.Threshold, runID); err != nil {
			return fmt.Errorf("upsert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert batch: %w", err)
	}
	return nil
}

// ListRange retrieves records in scan order for a date range.
func (r *anomalyRepo) ListRange(ctx context.Context, dr persistence.DateRange) ([]anomaly.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var records []anomaly.Record
	err := r.db.SelectContext(ctx, &records, `
		SELECT date, scope, key, value, expected, delta, threshold
		FROM anomaly_records
		WHERE date >= $1 AND date <= $2
		ORDER BY date,
			CASE scope WHEN 'total' THEN 0 WHEN 'service' THEN 1 ELSE 2 END,
			key`,
		domain.Day(dr.From), domain.Day(dr.To))
	if err != nil {
		return nil, fmt.Errorf("list anomaly records: %w", err)
	}
	return records, nil
}

// ListByScope retrieves records for one scope, newest first.
func (r *anomalyRepo) ListByScope(ctx context.Context, scope domain.Scope, limit int) ([]anomaly.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var records []anomaly.Record
	err := r.db.SelectContext(ctx, &records, `
		SELECT date, scope, key, value, expected, delta, threshold
		FROM anomaly_records
		WHERE scope = $1
		ORDER BY date DESC, key
		LIMIT $2`,
		scope, limit)
	if err != nil {
		return nil, fmt.Errorf("list anomalies by scope: %w", err)
	}
	return records, nil
}

// CountByScope returns record counts grouped by scope for a range.
func (r *anomalyRepo) CountByScope(ctx context.Context, dr persistence.DateRange) (map[domain.Scope]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT scope, COUNT(*) FROM anomaly_records
		WHERE date >= $1 AND date <= $2
		GROUP BY scope`,
		domain.Day(dr.From), domain.Day(dr.To))
	if err != nil {
		return nil, fmt.Errorf("count anomalies by scope: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Scope]int64)
	for rows.Next() {
		var scope domain.Scope
		var n int64
		if err := rows.Scan(&scope, &n); err != nil {
			return nil, fmt.Errorf("scan scope count: %w", err)
		}
		counts[scope] = n
	}
	return counts, rows.Err()
}
