package anomaly

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/costpulse/costpulse/internal/domain"
)

// Record is one detected anomaly: a (scope, key, date) whose value crossed
// its own series' threshold. Records are immutable once emitted.
type Record struct {
	Date      time.Time    `json:"date" db:"date"`
	Scope     domain.Scope `json:"scope" db:"scope"`
	Key       string       `json:"key" db:"key"` // empty for Total
	Value     float64      `json:"value" db:"value"`
	Expected  float64      `json:"expected" db:"expected"`
	Delta     float64      `json:"delta" db:"delta"`
	Threshold float64      `json:"threshold" db:"threshold"`
}

// Scanner applies the threshold model independently to the total series and
// to every per-key series. There is no cross-scope suppression: a Total
// anomaly neither requires nor prevents Service or ResourceGroup anomalies.
type Scanner struct {
	cfg Config
}

// NewScanner validates the config and returns a scanner.
func NewScanner(cfg Config) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{cfg: cfg}, nil
}

// scanJob is one series to classify, tagged with its scope and key.
type scanJob struct {
	scope  domain.Scope
	key    string
	series *domain.Series
}

// Scan classifies every eligible date of every series and returns the
// anomaly records ordered by date ascending, then Total before Service
// before ResourceGroup, then key ascending. The ordering is stable and
// reproducible for identical input regardless of worker count.
func (sc *Scanner) Scan(agg *domain.Aggregates) []Record {
	jobs := make([]scanJob, 0, 1+len(agg.ByService)+len(agg.ByRG))
	jobs = append(jobs, scanJob{scope: domain.ScopeTotal, series: agg.Total})
	for _, key := range sortedKeys(agg.ByService) {
		jobs = append(jobs, scanJob{scope: domain.ScopeService, key: key, series: agg.ByService[key]})
	}
	for _, key := range sortedKeys(agg.ByRG) {
		jobs = append(jobs, scanJob{scope: domain.ScopeResourceGroup, key: key, series: agg.ByRG[key]})
	}

	var records []Record
	if sc.cfg.Workers > 1 {
		records = sc.scanParallel(jobs)
	} else {
		for _, job := range jobs {
			records = append(records, sc.scanSeries(job)...)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		if records[i].Scope != records[j].Scope {
			return records[i].Scope.Rank() < records[j].Scope.Rank()
		}
		return records[i].Key < records[j].Key
	})

	log.Info().
		Int("series", len(jobs)).
		Int("anomalies", len(records)).
		Int("workers", sc.cfg.Workers).
		Msg("Anomaly scan completed")

	return records
}

// scanSeries classifies every observed date of one series. Each series is
// evaluated against its own baseline and history, never the total's.
func (sc *Scanner) scanSeries(job scanJob) []Record {
	var out []Record
	for _, date := range job.series.Dates() {
		c := Classify(job.series, sc.cfg, date)
		if !c.Eligible || !c.Anomalous {
			continue
		}
		out = append(out, Record{
			Date:      c.Date,
			Scope:     job.scope,
			Key:       job.key,
			Value:     c.Value,
			Expected:  c.Expected,
			Delta:     c.Value - c.Expected,
			Threshold: c.Threshold,
		})
	}
	return out
}

// scanParallel fans jobs out across a bounded worker pool. Each job reads
// only its own series, so no coordination is needed beyond collecting the
// results; the caller's final sort restores deterministic order.
func (sc *Scanner) scanParallel(jobs []scanJob) []Record {
	jobCh := make(chan scanJob)
	resultCh := make(chan []Record)

	var wg sync.WaitGroup
	for w := 0; w < sc.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				resultCh <- sc.scanSeries(job)
			}
		}()
	}

	go func() {
		for _, job := range jobs {
			jobCh <- job
		}
		close(jobCh)
		wg.Wait()
		close(resultCh)
	}()

	var records []Record
	for batch := range resultCh {
		records = append(records, batch...)
	}
	return records
}

// sortedKeys returns the map keys in ascending order for deterministic
// iteration.
func sortedKeys(m map[string]*domain.Series) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
