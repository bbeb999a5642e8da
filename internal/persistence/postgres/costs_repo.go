package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/costpulse/costpulse/internal/domain"
	"github.com/costpulse/costpulse/internal/persistence"
)

// costRepo implements persistence.CostRepo on PostgreSQL.
type costRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewCostRepo creates a PostgreSQL cost row repository.
func NewCostRepo(db *sqlx.DB, timeout time.Duration) persistence.CostRepo {
	return &costRepo{db: db, timeout: timeout}
}

// InsertBatch stores a batch of rows atomically.
func (r *costRepo) InsertBatch(ctx context.Context, runID string, rows []domain.CostRow) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO cost_rows (run_id, date, subscription, resource_group, service, cost)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if err := row.Validate(); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, row.Day(), row.Subscription, row.ResourceGroup, row.Service, row.Cost); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert batch: %w", err)
	}
	return nil
}

// ListRange retrieves rows whose date falls in the range.
func (r *costRepo) ListRange(ctx context.Context, dr persistence.DateRange) ([]domain.CostRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []domain.CostRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT date, subscription, resource_group, service, cost
		FROM cost_rows
		WHERE date >= $1 AND date <= $2
		ORDER BY date, subscription, resource_group, service`,
		domain.Day(dr.From), domain.Day(dr.To))
	if err != nil {
		return nil, fmt.Errorf("list cost rows: %w", err)
	}
	return rows, nil
}

// Count returns how many rows fall in the range.
func (r *costRepo) Count(ctx context.Context, dr persistence.DateRange) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int64
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM cost_rows WHERE date >= $1 AND date <= $2`,
		domain.Day(dr.From), domain.Day(dr.To))
	if err != nil {
		return 0, fmt.Errorf("count cost rows: %w", err)
	}
	return count, nil
}
