// Package gen produces deterministic synthetic cost datasets for demos and
// pipeline tests. The shape mirrors a real multi-subscription cloud bill:
// correlated day-to-day drift, weekday/weekend split, month-end bump, a
// mid-series step change and a handful of incident spikes.
package gen

import (
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/costpulse/costpulse/internal/domain"
)

// Config controls the synthetic dataset. The same Days/Seed/EndDate always
// produce a byte-identical dataset.
type Config struct {
	Days int       `yaml:"days" json:"days"`
	Seed int64     `yaml:"seed" json:"seed"`
	End  time.Time `yaml:"-" json:"-"` // zero means today (UTC)

	// IncidentDays is how many spike-and-recover incidents to inject.
	IncidentDays int `yaml:"incident_days" json:"incident_days"`
}

// DefaultConfig returns the shipped generator settings.
func DefaultConfig() Config {
	return Config{Days: 180, Seed: 42, IncidentDays: 3}
}

var (
	services       = []string{"Compute", "Storage", "SQL", "Networking", "AI", "Monitoring"}
	resourceGroups = []string{"rg-core", "rg-analytics", "rg-ml", "rg-web", "rg-data"}
	subscriptions  = []string{"sub-prod", "sub-dev"}

	serviceBase = map[string]float64{
		"Compute": 120, "Storage": 55, "SQL": 80,
		"Networking": 25, "AI": 35, "Monitoring": 18,
	}
	serviceVol = map[string]float64{
		"Compute": 0.10, "Storage": 0.05, "SQL": 0.08,
		"Networking": 0.06, "AI": 0.14, "Monitoring": 0.06,
	}
	rgFactor = map[string]float64{
		"rg-core": 1.20, "rg-analytics": 1.00, "rg-ml": 0.95,
		"rg-web": 0.85, "rg-data": 1.05,
	}
)

// incident slices: the prod compute/database workloads in the core and data
// resource groups are the ones that blow up in practice.
var (
	incidentRGs      = map[string]bool{"rg-core": true, "rg-data": true}
	incidentServices = map[string]bool{"Compute": true, "SQL": true, "Networking": true}
	stepServices     = map[string]bool{"Compute": true, "SQL": true}
)

// Generator builds synthetic cost rows from a seeded RNG.
type Generator struct {
	cfg Config
	rng *rand.Rand
}

// New returns a generator for the given config.
func New(cfg Config) *Generator {
	if cfg.Days <= 0 {
		cfg.Days = DefaultConfig().Days
	}
	if cfg.IncidentDays < 0 {
		cfg.IncidentDays = 0
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// Generate produces one row per (day, subscription, resource group, service),
// ordered by day then subscription then resource group then service.
func (g *Generator) Generate() []domain.CostRow {
	end := g.cfg.End
	if end.IsZero() {
		end = time.Now()
	}
	end = domain.Day(end)

	dates := make([]time.Time, g.cfg.Days)
	for i := range dates {
		dates[i] = end.AddDate(0, 0, -(g.cfg.Days - 1 - i))
	}

	// AR(1) demand factor: yesterday's load influences today's.
	demand := make([]float64, len(dates))
	x := 0.0
	for i := range dates {
		x = 0.85*x + g.rng.NormFloat64()*0.25
		demand[i] = x
	}

	// End-of-month bump with a little jitter.
	monthCycle := make([]float64, len(dates))
	for i, d := range dates {
		bump := 0.0
		if d.Day() >= 25 {
			bump = 0.12
		}
		monthCycle[i] = 1.0 + bump + g.rng.NormFloat64()*0.02
	}

	// Permanent uplift after a mid-series rollout on specific slices.
	stepStart := int(float64(len(dates)) * 0.55)

	rows := make([]domain.CostRow, 0, len(dates)*len(subscriptions)*len(resourceGroups)*len(services))
	for i, d := range dates {
		weekdayFactor := 1.10
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			weekdayFactor = 0.85
		}
		dayFactor := weekdayFactor * monthCycle[i] * (1.0 + 0.05*demand[i])

		for _, sub := range subscriptions {
			subFactor := 0.60
			if sub == "sub-prod" {
				subFactor = 1.18
			}

			for _, rg := range resourceGroups {
				rgLoad := 1.0 + g.rng.NormFloat64()*0.03 + 0.03*demand[i]

				for _, svc := range services {
					base := serviceBase[svc]
					vol := serviceVol[svc]

					// Compute load pulls networking, monitoring and AI
					// spend along with it.
					serviceCorr := 1.0
					switch svc {
					case "Networking", "Monitoring":
						serviceCorr += 0.06 * demand[i]
					case "AI":
						serviceCorr += 0.08 * demand[i]
					}

					trend := 1.0 + 0.0010*float64(i)

					rolloutFactor := 1.0
					if i >= stepStart && sub == "sub-prod" && incidentRGs[rg] && stepServices[svc] {
						rolloutFactor = 1.12
					}

					noise := g.rng.NormFloat64() * base * vol

					cost := base*subFactor*rgFactor[rg]*dayFactor*rgLoad*serviceCorr*trend*rolloutFactor + noise
					cost = math.Max(0, cost)

					rows = append(rows, domain.CostRow{
						Date:          d,
						Subscription:  sub,
						ResourceGroup: rg,
						Service:       svc,
						Cost:          round2(cost),
					})
				}
			}
		}
	}

	g.injectIncidents(rows, dates)

	log.Info().
		Int("rows", len(rows)).
		Int("days", g.cfg.Days).
		Int64("seed", g.cfg.Seed).
		Msg("Synthetic cost dataset generated")

	return rows
}

// injectIncidents multiplies the incident slice on a few random days by a
// spike factor, with a partial recovery on the following day.
func (g *Generator) injectIncidents(rows []domain.CostRow, dates []time.Time) {
	n := g.cfg.IncidentDays
	if n == 0 || len(dates) == 0 {
		return
	}
	if n > len(dates) {
		n = len(dates)
	}

	picked := make(map[time.Time]bool, n)
	for len(picked) < n {
		picked[dates[g.rng.Intn(len(dates))]] = true
	}

	// One spike/recovery factor pair per incident day, keyed by day so
	// row order does not affect the draw sequence.
	spike := make(map[time.Time]float64, n)
	recover := make(map[time.Time]float64, n)
	for _, d := range dates {
		if !picked[d] {
			continue
		}
		spike[d] = g.uniform(1.8, 2.6)
		recover[d.AddDate(0, 0, 1)] = g.uniform(1.15, 1.35)
	}

	for i := range rows {
		r := &rows[i]
		if r.Subscription != "sub-prod" || !incidentRGs[r.ResourceGroup] || !incidentServices[r.Service] {
			continue
		}
		if f, ok := spike[r.Date]; ok {
			r.Cost = round2(r.Cost * f)
		} else if f, ok := recover[r.Date]; ok {
			r.Cost = round2(r.Cost * f)
		}
	}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
