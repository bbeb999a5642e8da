package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/costpulse/costpulse/internal/persistence"
)

// Connect opens a Postgres connection pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// NewRepository wires the Postgres repositories behind the persistence
// interfaces.
func NewRepository(db *sqlx.DB, timeout time.Duration) *persistence.Repository {
	return &persistence.Repository{
		Costs:     NewCostRepo(db, timeout),
		Anomalies: NewAnomalyRepo(db, timeout),
	}
}

// EnsureSchema creates the tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS cost_rows (
		id             BIGSERIAL PRIMARY KEY,
		run_id         UUID NOT NULL,
		date           DATE NOT NULL,
		subscription   TEXT NOT NULL,
		resource_group TEXT NOT NULL,
		service        TEXT NOT NULL,
		cost           DOUBLE PRECISION NOT NULL CHECK (cost >= 0),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS cost_rows_date_idx ON cost_rows (date);

	CREATE TABLE IF NOT EXISTS anomaly_records (
		date       DATE NOT NULL,
		scope      TEXT NOT NULL,
		key        TEXT NOT NULL DEFAULT '',
		value      DOUBLE PRECISION NOT NULL,
		expected   DOUBLE PRECISION NOT NULL,
		delta      DOUBLE PRECISION NOT NULL,
		threshold  DOUBLE PRECISION NOT NULL,
		run_id     UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (date, scope, key)
	);`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
