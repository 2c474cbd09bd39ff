package core

import (
	"time"

	dm "corr.service/data/models"
)

type AssetPerformance struct {
	Symbol         string    `json:"symbol"`
	TotalReturnPct float64   `json:"total_return_pct"`
	StartPrice     float64   `json:"start_price"`
	EndPrice       float64   `json:"end_price"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
}

// ComparePerformance reports the total return of each asset between the first
// and last row of the price table. Assets without a positive first price or
// without a last price are left out. Dates are the table's, not per asset.
func ComparePerformance(prices dm.Table) map[string]AssetPerformance {
	res := make(map[string]AssetPerformance, prices.Width())
	if prices.IsEmpty() {
		return res
	}

	first, last := 0, prices.Len()-1
	startDate, endDate := prices.Dates[first], prices.Dates[last]

	for _, s := range prices.Series {
		start, end := s.Values[first], s.Values[last]
		if !start.Valid || start.Float64 <= 0 || !end.Valid {
			continue
		}

		res[s.Symbol] = AssetPerformance{
			Symbol:         s.Symbol,
			TotalReturnPct: (end.Float64 - start.Float64) / start.Float64 * 100,
			StartPrice:     start.Float64,
			EndPrice:       end.Float64,
			StartDate:      startDate,
			EndDate:        endDate,
		}
	}

	return res
}
