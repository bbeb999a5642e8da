package anomaly

import (
	"math"
	"sort"
	"time"

	"github.com/costpulse/costpulse/internal/domain"
)

// DispersionFloor replaces a zero MAD when recent history is perfectly flat.
// One cent of daily spend: the smallest value representable in the
// cent-rounded output tables. Fixed for the whole run so edge-case anomaly
// counts are reproducible.
const DispersionFloor = 0.01

// Classification is the threshold model's verdict for one (series, date)
// pair. When Eligible is false the date had fewer than MinHistory prior
// observations and Expected/Dispersion/Threshold are undefined.
type Classification struct {
	Date       time.Time `json:"date"`
	Value      float64   `json:"value"`
	Expected   float64   `json:"expected"`
	Dispersion float64   `json:"dispersion"`
	Threshold  float64   `json:"threshold"`
	Eligible   bool      `json:"eligible"`
	Anomalous  bool      `json:"anomalous"`
}

// Classify applies the robust threshold model to one date of a series.
//
// The reference window is the WindowDays observed points immediately before
// asOf (widening over calendar gaps). Expected is the window median,
// dispersion the median absolute deviation from it, and the threshold is
// expected + MADMultiplier*dispersion. A date is anomalous only when its
// value is strictly greater than the threshold.
func Classify(s *domain.Series, cfg Config, asOf time.Time) Classification {
	c := Classification{Date: domain.Day(asOf)}

	value, ok := s.Value(asOf)
	if !ok {
		return c
	}
	c.Value = value

	if s.PriorCount(asOf) < cfg.MinHistory {
		return c
	}

	window := s.Window(asOf, cfg.WindowDays)
	c.Eligible = true
	c.Expected = median(window)
	c.Dispersion = medianAbsDeviation(window, c.Expected)
	if c.Dispersion < DispersionFloor {
		c.Dispersion = DispersionFloor
	}
	c.Threshold = c.Expected + cfg.MADMultiplier*c.Dispersion
	c.Anomalous = value > c.Threshold

	return c
}

// median returns the middle of the sorted values; for an even count it is
// the mean of the two middle values. The same rule is used for the baseline
// and for the MAD so the two stay consistent.
func median(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, vals)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// medianAbsDeviation returns the median of |v - center| over the window.
func medianAbsDeviation(vals []float64, center float64) float64 {
	devs := make([]float64, len(vals))
	for i, v := range vals {
		devs[i] = math.Abs(v - center)
	}
	return median(devs)
}
