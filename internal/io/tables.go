// Package io writes the pipeline's artifacts: the aggregated series tables,
// the anomaly table, the explanation table and the raw dataset, all as CSV
// for the downstream reporting collaborators, written atomically so a partial
// run never leaves a torn file behind.
package io

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/costpulse/costpulse/internal/domain"
	"github.com/costpulse/costpulse/internal/domain/anomaly"
)

const dayFormat = "2006-01-02"

// WriteTotalSeries writes the daily total table: date,total_cost.
func WriteTotalSeries(path string, s *domain.Series) error {
	rows := make([][]string, 0, s.Len())
	for _, d := range s.Dates() {
		v, _ := s.Value(d)
		rows = append(rows, []string{d.Format(dayFormat), money(v)})
	}
	return WriteCSVAtomic(path, []string{"date", "total_cost"}, rows)
}

// WriteKeyedSeries writes a per-key series table: date,<keyColumn>,cost.
// Rows are ordered by date then key so output is reproducible.
func WriteKeyedSeries(path, keyColumn string, byKey map[string]*domain.Series) error {
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	type point struct {
		date time.Time
		key  string
		v    float64
	}
	var points []point
	for _, k := range keys {
		s := byKey[k]
		for _, d := range s.Dates() {
			v, _ := s.Value(d)
			points = append(points, point{date: d, key: k, v: v})
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		if !points[i].date.Equal(points[j].date) {
			return points[i].date.Before(points[j].date)
		}
		return points[i].key < points[j].key
	})

	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{p.date.Format(dayFormat), p.key, money(p.v)})
	}
	return WriteCSVAtomic(path, []string{"date", keyColumn, "cost"}, rows)
}

// WriteAnomalies writes the anomaly table in scan order:
// date,scope,key,value,expected,delta,threshold.
func WriteAnomalies(path string, records []anomaly.Record) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Date.Format(dayFormat),
			string(r.Scope),
			r.Key,
			money(r.Value),
			money(r.Expected),
			money(r.Delta),
			money(r.Threshold),
		})
	}
	header := []string{"date", "scope", "key", "value", "expected", "delta", "threshold"}
	return WriteCSVAtomic(path, header, rows)
}

// WriteExplanations writes one row per anomalous total date with the top-N
// driver columns for both axes. Axes shorter than N are padded with an empty
// key and a zero delta, matching what the reporting side expects.
func WriteExplanations(path string, explanations []anomaly.Explanation, topN int) error {
	header := []string{"date"}
	for i := 1; i <= topN; i++ {
		header = append(header, fmt.Sprintf("top_service_%d", i), fmt.Sprintf("service_delta_%d", i))
	}
	for i := 1; i <= topN; i++ {
		header = append(header, fmt.Sprintf("top_rg_%d", i), fmt.Sprintf("rg_delta_%d", i))
	}

	rows := make([][]string, 0, len(explanations))
	for _, e := range explanations {
		row := []string{e.Date.Format(dayFormat)}
		row = appendDrivers(row, e.Services, topN)
		row = appendDrivers(row, e.ResourceGroups, topN)
		rows = append(rows, row)
	}
	return WriteCSVAtomic(path, header, rows)
}

func appendDrivers(row []string, drivers []anomaly.Driver, topN int) []string {
	for i := 0; i < topN; i++ {
		if i < len(drivers) {
			row = append(row, drivers[i].Key, money(drivers[i].Delta))
		} else {
			row = append(row, "", money(0))
		}
	}
	return row
}

// WriteCostRows writes the raw dataset:
// date,subscription,resource_group,service,cost.
func WriteCostRows(path string, rows []domain.CostRow) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.Day().Format(dayFormat),
			r.Subscription,
			r.ResourceGroup,
			r.Service,
			money(r.Cost),
		})
	}
	header := []string{"date", "subscription", "resource_group", "service", "cost"}
	return WriteCSVAtomic(path, header, out)
}

// ReadCostRows loads a raw dataset written by WriteCostRows (or any export
// with the same five columns).
func ReadCostRows(path string) ([]domain.CostRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read %s: empty file", path)
	}

	rows := make([]domain.CostRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != 5 {
			return nil, &domain.InvalidInputError{Row: i, Field: "row", Reason: fmt.Sprintf("expected 5 columns, got %d", len(rec))}
		}
		date, err := time.ParseInLocation(dayFormat, rec[0], time.UTC)
		if err != nil {
			return nil, &domain.InvalidInputError{Row: i, Field: "date", Reason: fmt.Sprintf("bad date %q", rec[0])}
		}
		cost, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, &domain.InvalidInputError{Row: i, Field: "cost", Reason: fmt.Sprintf("bad cost %q", rec[4])}
		}
		rows = append(rows, domain.CostRow{
			Date:          date,
			Subscription:  rec[1],
			ResourceGroup: rec[2],
			Service:       rec[3],
			Cost:          cost,
		})
	}
	return rows, nil
}

// money renders a value the way the artifact tables expect: two decimals.
func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
