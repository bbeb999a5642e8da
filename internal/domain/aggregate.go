package domain

// Aggregates holds the three series views derived from one batch of cost
// rows: the daily total plus one series per distinct service and resource
// group. The service and resource-group axes are independent views of the
// same spend and are never summed together.
type Aggregates struct {
	Total     *Series            `json:"total"`
	ByService map[string]*Series `json:"by_service"`
	ByRG      map[string]*Series `json:"by_rg"`
}

// Aggregate reduces raw cost rows into the three series views. It is a pure
// transformation: every row is validated first, and a single malformed row
// fails the whole batch with InvalidInputError. Days with no rows for a key
// are absent from that key's series, not zero-filled.
func Aggregate(rows []CostRow) (*Aggregates, error) {
	agg := &Aggregates{
		Total:     NewSeries(),
		ByService: make(map[string]*Series),
		ByRG:      make(map[string]*Series),
	}

	for i, row := range rows {
		if err := row.Validate(); err != nil {
			inputErr := err.(*InvalidInputError)
			inputErr.Row = i
			return nil, inputErr
		}

		day := row.Day()
		agg.Total.Add(day, row.Cost)

		svc := agg.ByService[row.Service]
		if svc == nil {
			svc = NewSeries()
			agg.ByService[row.Service] = svc
		}
		svc.Add(day, row.Cost)

		rg := agg.ByRG[row.ResourceGroup]
		if rg == nil {
			rg = NewSeries()
			agg.ByRG[row.ResourceGroup] = rg
		}
		rg.Add(day, row.Cost)
	}

	return agg, nil
}
