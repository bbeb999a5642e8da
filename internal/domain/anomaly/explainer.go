package anomaly

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/costpulse/costpulse/internal/domain"
)

// Driver is a service or resource group ranked by its contribution to an
// anomalous day's excess spend.
type Driver struct {
	Key   string  `json:"key"`
	Delta float64 `json:"delta"`
}

// Explanation attributes one anomalous total-spend date to its largest
// per-service and per-resource-group drivers. The two lists come from
// disjoint aggregation axes and are never combined into a single number.
type Explanation struct {
	Date           time.Time `json:"date"`
	Services       []Driver  `json:"services"`
	ResourceGroups []Driver  `json:"resource_groups"`
}

// Explainer ranks per-key deltas for dates that produced a Total-scope
// anomaly record.
type Explainer struct {
	cfg  Config
	topN int
}

// NewExplainer validates the config and returns an explainer keeping the
// top n drivers per axis.
func NewExplainer(cfg Config, topN int) (*Explainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if topN < 1 {
		topN = 1
	}
	return &Explainer{cfg: cfg, topN: topN}, nil
}

// Explain produces one explanation per anomalous total date, in date order.
// A date whose service or resource-group series lack history simply yields
// an empty list for that axis.
func (e *Explainer) Explain(totalDates []time.Time, agg *domain.Aggregates) []Explanation {
	dates := make([]time.Time, len(totalDates))
	for i, d := range totalDates {
		dates[i] = domain.Day(d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]Explanation, 0, len(dates))
	for _, date := range dates {
		out = append(out, Explanation{
			Date:           date,
			Services:       e.rankDrivers(date, agg.ByService),
			ResourceGroups: e.rankDrivers(date, agg.ByRG),
		})
	}

	log.Info().
		Int("dates", len(out)).
		Int("top_n", e.topN).
		Msg("Anomaly explanations built")

	return out
}

// rankDrivers computes actual-minus-expected for every key with a value at
// the date and enough history for a baseline, using the same window/median
// logic as classification. Keys without enough history contribute no delta;
// they are excluded, not zero-filled.
func (e *Explainer) rankDrivers(date time.Time, byKey map[string]*domain.Series) []Driver {
	drivers := make([]Driver, 0, len(byKey))
	for key, series := range byKey {
		c := Classify(series, e.cfg, date)
		if !c.Eligible {
			continue
		}
		drivers = append(drivers, Driver{Key: key, Delta: c.Value - c.Expected})
	}

	sort.Slice(drivers, func(i, j int) bool {
		if drivers[i].Delta != drivers[j].Delta {
			return drivers[i].Delta > drivers[j].Delta
		}
		return drivers[i].Key < drivers[j].Key
	})

	if len(drivers) > e.topN {
		drivers = drivers[:e.topN]
	}
	return drivers
}
