package io

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costpulse/costpulse/internal/domain"
	"github.com/costpulse/costpulse/internal/domain/anomaly"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCostRowsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw", "daily_cost.csv")
	rows := []domain.CostRow{
		{Date: day(2026, 3, 1), Subscription: "sub-prod", ResourceGroup: "rg-core", Service: "Compute", Cost: 123.45},
		{Date: day(2026, 3, 2), Subscription: "sub-dev", ResourceGroup: "rg-web", Service: "SQL", Cost: 0},
	}

	require.NoError(t, WriteCostRows(path, rows))

	got, err := ReadCostRows(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestReadCostRowsRejectsBadData(t *testing.T) {
	dir := t.TempDir()

	t.Run("bad date", func(t *testing.T) {
		path := filepath.Join(dir, "bad_date.csv")
		content := "date,subscription,resource_group,service,cost\nnot-a-date,s,rg,svc,1.00\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		_, err := ReadCostRows(path)
		var inputErr *domain.InvalidInputError
		require.ErrorAs(t, err, &inputErr)
		assert.Equal(t, "date", inputErr.Field)
		assert.Equal(t, 0, inputErr.Row)
	})

	t.Run("bad cost", func(t *testing.T) {
		path := filepath.Join(dir, "bad_cost.csv")
		content := "date,subscription,resource_group,service,cost\n2026-03-01,s,rg,svc,lots\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		_, err := ReadCostRows(path)
		var inputErr *domain.InvalidInputError
		require.ErrorAs(t, err, &inputErr)
		assert.Equal(t, "cost", inputErr.Field)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadCostRows(filepath.Join(dir, "nope.csv"))
		require.Error(t, err)
	})
}

func TestWriteTotalSeries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily_total.csv")

	s := domain.NewSeries()
	s.Add(day(2026, 3, 2), 20.5)
	s.Add(day(2026, 3, 1), 10)

	require.NoError(t, WriteTotalSeries(path, s))

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"date", "total_cost"}, records[0])
	assert.Equal(t, []string{"2026-03-01", "10.00"}, records[1])
	assert.Equal(t, []string{"2026-03-02", "20.50"}, records[2])
}

func TestWriteKeyedSeriesOrdering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily_by_service.csv")

	sql := domain.NewSeries()
	sql.Add(day(2026, 3, 1), 5)
	compute := domain.NewSeries()
	compute.Add(day(2026, 3, 1), 7)
	compute.Add(day(2026, 3, 2), 8)

	byKey := map[string]*domain.Series{"SQL": sql, "Compute": compute}
	require.NoError(t, WriteKeyedSeries(path, "service", byKey))

	records := readCSV(t, path)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"date", "service", "cost"}, records[0])
	assert.Equal(t, []string{"2026-03-01", "Compute", "7.00"}, records[1])
	assert.Equal(t, []string{"2026-03-01", "SQL", "5.00"}, records[2])
	assert.Equal(t, []string{"2026-03-02", "Compute", "8.00"}, records[3])
}

func TestWriteAnomalies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anomalies.csv")

	records := []anomaly.Record{
		{Date: day(2026, 3, 11), Scope: domain.ScopeTotal, Key: "", Value: 1050, Expected: 150, Delta: 900, Threshold: 150.03},
		{Date: day(2026, 3, 11), Scope: domain.ScopeService, Key: "Compute", Value: 1000, Expected: 100, Delta: 900, Threshold: 100.03},
	}
	require.NoError(t, WriteAnomalies(path, records))

	got := readCSV(t, path)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"date", "scope", "key", "value", "expected", "delta", "threshold"}, got[0])
	assert.Equal(t, []string{"2026-03-11", "total", "", "1050.00", "150.00", "900.00", "150.03"}, got[1])
	assert.Equal(t, []string{"2026-03-11", "service", "Compute", "1000.00", "100.00", "900.00", "100.03"}, got[2])
}

func TestWriteExplanationsPadsShortAxes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anomaly_explanations.csv")

	explanations := []anomaly.Explanation{
		{
			Date:           day(2026, 3, 11),
			Services:       []anomaly.Driver{{Key: "Compute", Delta: 900}},
			ResourceGroups: nil,
		},
	}
	require.NoError(t, WriteExplanations(path, explanations, 2))

	got := readCSV(t, path)
	require.Len(t, got, 2)
	assert.Equal(t, []string{
		"date",
		"top_service_1", "service_delta_1", "top_service_2", "service_delta_2",
		"top_rg_1", "rg_delta_1", "top_rg_2", "rg_delta_2",
	}, got[0])
	assert.Equal(t, []string{
		"2026-03-11",
		"Compute", "900.00", "", "0.00",
		"", "0.00", "", "0.00",
	}, got[1])
}

func TestWriteCSVAtomicLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	require.NoError(t, WriteCSVAtomic(path, []string{"a"}, [][]string{{"1"}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.csv", entries[0].Name())
}

func TestWriteJSONAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, WriteJSONAtomic(path, map[string]int{"rows": 3}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows": 3}`, string(data))
	assert.Equal(t, byte('\n'), data[len(data)-1])
}
