package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// Series is a sparse daily time series: a mapping from calendar day to
// value with an ordered date index. Days with no observation are simply
// absent: missing history, not zero spend.
type Series struct {
	values map[time.Time]float64
	dates  []time.Time
	sorted bool
}

// NewSeries returns an empty series.
func NewSeries() *Series {
	return &Series{values: make(map[time.Time]float64)}
}

// Add accumulates v onto the given day. Repeated adds for the same day sum,
// which is how aggregation folds multiple rows into one point.
func (s *Series) Add(date time.Time, v float64) {
	d := Day(date)
	if _, ok := s.values[d]; !ok {
		s.dates = append(s.dates, d)
		s.sorted = false
	}
	s.values[d] += v
}

// Value returns the observed value for a day, if any.
func (s *Series) Value(date time.Time) (float64, bool) {
	v, ok := s.values[Day(date)]
	return v, ok
}

// Len returns the number of observed days.
func (s *Series) Len() int {
	return len(s.dates)
}

// Dates returns the observed days in ascending order. The returned slice is
// shared; callers must not mutate it.
func (s *Series) Dates() []time.Time {
	s.ensureSorted()
	return s.dates
}

// PriorCount returns how many observed days fall strictly before asOf. This
// is the history count used for classification eligibility.
func (s *Series) PriorCount(asOf time.Time) int {
	s.ensureSorted()
	d := Day(asOf)
	return sort.Search(len(s.dates), func(i int) bool {
		return !s.dates[i].Before(d)
	})
}

// Window returns the values at the n observed days immediately preceding
// asOf, in chronological order. Calendar gaps are skipped: the window widens
// backward until n observed points are collected or history is exhausted.
func (s *Series) Window(asOf time.Time, n int) []float64 {
	s.ensureSorted()
	end := s.PriorCount(asOf)
	start := end - n
	if start < 0 {
		start = 0
	}
	out := make([]float64, 0, end-start)
	for _, d := range s.dates[start:end] {
		out = append(out, s.values[d])
	}
	return out
}

func (s *Series) ensureSorted() {
	if s.sorted {
		return
	}
	sort.Slice(s.dates, func(i, j int) bool { return s.dates[i].Before(s.dates[j]) })
	s.sorted = true
}

// MarshalJSON encodes the series as a date-keyed object, for the aggregate
// cache. Dates use the ISO day format.
func (s *Series) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, len(s.values))
	for d, v := range s.values {
		m[d.Format("2006-01-02")] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a date-keyed object produced by MarshalJSON.
func (s *Series) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	s.values = make(map[time.Time]float64, len(m))
	s.dates = s.dates[:0]
	s.sorted = false
	for ds, v := range m {
		d, err := time.ParseInLocation("2006-01-02", ds, time.UTC)
		if err != nil {
			return err
		}
		s.values[d] = v
		s.dates = append(s.dates, d)
	}
	return nil
}
