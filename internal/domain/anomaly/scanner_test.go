package anomaly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costpulse/costpulse/internal/domain"
)

// spikedAggregates builds ten stable days of two services across two resource
// groups, then one day where Compute in rg-core jumps.
func spikedAggregates(t *testing.T) (*domain.Aggregates, time.Time) {
	t.Helper()

	var rows []domain.CostRow
	for i := 0; i < 10; i++ {
		d := day(2026, 3, 1).AddDate(0, 0, i)
		rows = append(rows,
			domain.CostRow{Date: d, Subscription: "sub-prod", ResourceGroup: "rg-core", Service: "Compute", Cost: 100},
			domain.CostRow{Date: d, Subscription: "sub-prod", ResourceGroup: "rg-data", Service: "SQL", Cost: 50},
		)
	}
	spikeDay := day(2026, 3, 11)
	rows = append(rows,
		domain.CostRow{Date: spikeDay, Subscription: "sub-prod", ResourceGroup: "rg-core", Service: "Compute", Cost: 1000},
		domain.CostRow{Date: spikeDay, Subscription: "sub-prod", ResourceGroup: "rg-data", Service: "SQL", Cost: 50},
	)

	agg, err := domain.Aggregate(rows)
	require.NoError(t, err)
	return agg, spikeDay
}

func TestScannerFlagsEachScopeIndependently(t *testing.T) {
	agg, spikeDay := spikedAggregates(t)

	scanner, err := NewScanner(testConfig())
	require.NoError(t, err)

	records := scanner.Scan(agg)
	require.Len(t, records, 3, "total, the spiking service and its resource group")

	assert.Equal(t, domain.ScopeTotal, records[0].Scope)
	assert.Equal(t, "", records[0].Key)
	assert.Equal(t, spikeDay, records[0].Date)
	assert.InDelta(t, 1050, records[0].Value, 1e-9)
	assert.InDelta(t, 900, records[0].Delta, 1e-9)

	assert.Equal(t, domain.ScopeService, records[1].Scope)
	assert.Equal(t, "Compute", records[1].Key)

	assert.Equal(t, domain.ScopeResourceGroup, records[2].Scope)
	assert.Equal(t, "rg-core", records[2].Key)

	// The quiet series stay quiet.
	for _, r := range records {
		assert.NotEqual(t, "SQL", r.Key)
		assert.NotEqual(t, "rg-data", r.Key)
	}
}

func TestScannerOrderingStable(t *testing.T) {
	// Two spike days and several spiking keys exercise the full sort.
	var rows []domain.CostRow
	for i := 0; i < 10; i++ {
		d := day(2026, 3, 1).AddDate(0, 0, i)
		for _, svc := range []string{"AI", "Compute", "SQL"} {
			rows = append(rows, domain.CostRow{Date: d, Subscription: "s", ResourceGroup: "rg-" + svc, Service: svc, Cost: 100})
		}
	}
	for _, off := range []int{10, 11} {
		d := day(2026, 3, 1).AddDate(0, 0, off)
		for _, svc := range []string{"AI", "Compute", "SQL"} {
			rows = append(rows, domain.CostRow{Date: d, Subscription: "s", ResourceGroup: "rg-" + svc, Service: svc, Cost: 900})
		}
	}

	agg, err := domain.Aggregate(rows)
	require.NoError(t, err)

	scanner, err := NewScanner(testConfig())
	require.NoError(t, err)
	records := scanner.Scan(agg)
	require.NotEmpty(t, records)

	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1], records[i]
		if prev.Date.Equal(cur.Date) {
			if prev.Scope == cur.Scope {
				assert.Less(t, prev.Key, cur.Key)
			} else {
				assert.Less(t, prev.Scope.Rank(), cur.Scope.Rank())
			}
		} else {
			assert.True(t, prev.Date.Before(cur.Date))
		}
	}
}

func TestScannerWorkerCountDoesNotChangeOutput(t *testing.T) {
	agg, _ := spikedAggregates(t)

	sequential, err := NewScanner(testConfig())
	require.NoError(t, err)

	parallelCfg := testConfig()
	parallelCfg.Workers = 4
	parallel, err := NewScanner(parallelCfg)
	require.NoError(t, err)

	assert.Equal(t, sequential.Scan(agg), parallel.Scan(agg))
}

func TestScannerHigherMultiplierFlagsLess(t *testing.T) {
	agg, _ := spikedAggregates(t)

	loose := testConfig()
	strict := testConfig()
	strict.MADMultiplier = 1e6

	looseScanner, err := NewScanner(loose)
	require.NoError(t, err)
	strictScanner, err := NewScanner(strict)
	require.NoError(t, err)

	assert.NotEmpty(t, looseScanner.Scan(agg))
	assert.Empty(t, strictScanner.Scan(agg))
}

func TestScannerShortHistoryYieldsNothing(t *testing.T) {
	// A huge spike on day 4 of a 4-day series is still unclassifiable.
	var rows []domain.CostRow
	for i := 0; i < 3; i++ {
		d := day(2026, 3, 1).AddDate(0, 0, i)
		rows = append(rows, domain.CostRow{Date: d, Subscription: "s", ResourceGroup: "rg", Service: "svc", Cost: 100})
	}
	rows = append(rows, domain.CostRow{Date: day(2026, 3, 4), Subscription: "s", ResourceGroup: "rg", Service: "svc", Cost: 99999})

	agg, err := domain.Aggregate(rows)
	require.NoError(t, err)

	scanner, err := NewScanner(testConfig())
	require.NoError(t, err)
	assert.Empty(t, scanner.Scan(agg))
}

func TestScannerRejectsBadConfig(t *testing.T) {
	_, err := NewScanner(Config{WindowDays: 0, MADMultiplier: 8, MinHistory: 21})
	require.Error(t, err)
}
