package domain

import (
	"fmt"
	"time"
)

// CostRow is a single daily cost line item as delivered by the billing
// export. Rows are immutable input facts; the pipeline never mutates them.
type CostRow struct {
	Date          time.Time `json:"date" db:"date"`
	Subscription  string    `json:"subscription" db:"subscription"`
	ResourceGroup string    `json:"resource_group" db:"resource_group"`
	Service       string    `json:"service" db:"service"`
	Cost          float64   `json:"cost" db:"cost"`
}

// Validate checks the row against the input contract: date, service and
// resource group must be present and cost must be non-negative.
func (r CostRow) Validate() error {
	switch {
	case r.Date.IsZero():
		return &InvalidInputError{Row: -1, Field: "date", Reason: "missing date"}
	case r.Service == "":
		return &InvalidInputError{Row: -1, Field: "service", Reason: "missing service"}
	case r.ResourceGroup == "":
		return &InvalidInputError{Row: -1, Field: "resource_group", Reason: "missing resource group"}
	case r.Cost < 0:
		return &InvalidInputError{Row: -1, Field: "cost", Reason: fmt.Sprintf("negative cost %.2f", r.Cost)}
	}
	return nil
}

// Day returns the row's date normalized to UTC midnight. All aggregation is
// keyed on the calendar day regardless of the wall-clock component.
func (r CostRow) Day() time.Time {
	return Day(r.Date)
}

// Day truncates a timestamp to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// InvalidInputError reports a malformed cost row. It aborts the run for the
// offending batch; there is nothing transient to retry.
type InvalidInputError struct {
	Row    int    // zero-based index within the batch, -1 when unknown
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("invalid cost row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("invalid cost row: %s", e.Reason)
}

// Scope identifies the aggregation axis a series or anomaly record belongs
// to. The three scopes are evaluated fully independently and their deltas are
// never combined.
type Scope string

const (
	ScopeTotal         Scope = "total"
	ScopeService       Scope = "service"
	ScopeResourceGroup Scope = "resource_group"
)

// Rank orders scopes for stable output: Total before Service before
// ResourceGroup.
func (s Scope) Rank() int {
	switch s {
	case ScopeTotal:
		return 0
	case ScopeService:
		return 1
	case ScopeResourceGroup:
		return 2
	default:
		return 3
	}
}

// Valid reports whether s is one of the three known scopes.
func (s Scope) Valid() bool {
	return s.Rank() < 3
}
