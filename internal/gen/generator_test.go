package gen

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costpulse/costpulse/internal/domain"
)

func fixedConfig(days int) Config {
	return Config{
		Days:         days,
		Seed:         42,
		End:          time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		IncidentDays: 3,
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	a := New(fixedConfig(60)).Generate()
	b := New(fixedConfig(60)).Generate()
	assert.Equal(t, a, b, "same seed and range must reproduce the dataset exactly")
}

func TestGenerateSeedChangesData(t *testing.T) {
	cfg := fixedConfig(60)
	a := New(cfg).Generate()

	cfg.Seed = 43
	b := New(cfg).Generate()
	assert.NotEqual(t, a, b)
}

func TestGenerateRowShape(t *testing.T) {
	days := 30
	rows := New(fixedConfig(days)).Generate()

	// One row per (day, subscription, resource group, service).
	perDay := len(subscriptions) * len(resourceGroups) * len(services)
	require.Len(t, rows, days*perDay)

	for _, r := range rows {
		require.NoError(t, r.Validate())
		assert.GreaterOrEqual(t, r.Cost, 0.0)
		assert.InDelta(t, r.Cost, math.Round(r.Cost*100)/100, 1e-9, "costs are cent-rounded")
	}
}

func TestGenerateDateRange(t *testing.T) {
	cfg := fixedConfig(30)
	rows := New(cfg).Generate()

	first := rows[0].Date
	last := rows[len(rows)-1].Date
	assert.Equal(t, cfg.End.AddDate(0, 0, -29), first)
	assert.Equal(t, cfg.End, last)

	// Rows are ordered by day.
	for i := 1; i < len(rows); i++ {
		assert.False(t, rows[i].Date.Before(rows[i-1].Date))
	}
}

func TestGenerateAggregatesCleanly(t *testing.T) {
	rows := New(fixedConfig(45)).Generate()

	agg, err := domain.Aggregate(rows)
	require.NoError(t, err)
	assert.Equal(t, 45, agg.Total.Len())
	assert.Len(t, agg.ByService, len(services))
	assert.Len(t, agg.ByRG, len(resourceGroups))
}

func TestNewClampsDegenerateConfig(t *testing.T) {
	g := New(Config{Days: 0, Seed: 1, IncidentDays: -2, End: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	rows := g.Generate()
	assert.NotEmpty(t, rows)
}
