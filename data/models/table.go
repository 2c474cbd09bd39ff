package models

import (
	"fmt"
	"time"

	"github.com/guregu/null/v6"
)

// Series is a single asset column of a Table, one value per table date.
type Series struct {
	Symbol string       `json:"symbol"`
	Values []null.Float `json:"values"`
}

// Table is a date indexed, column major grid of asset values. It backs both
// price tables and returns tables; a missing cell is an invalid null.Float.
type Table struct {
	Dates  []time.Time `json:"dates"`
	Series []Series    `json:"series"`
}

// NewTable allocates a table where every cell is missing.
func NewTable(dates []time.Time, symbols []string) Table {
	series := make([]Series, len(symbols))
	for i, s := range symbols {
		series[i] = Series{
			Symbol: s,
			Values: make([]null.Float, len(dates)),
		}
	}

	return Table{
		Dates:  dates,
		Series: series,
	}
}

// Len is the number of dates (rows).
func (t Table) Len() int {
	return len(t.Dates)
}

// Width is the number of asset columns.
func (t Table) Width() int {
	return len(t.Series)
}

// IsEmpty reports a table with no rows or no columns.
func (t Table) IsEmpty() bool {
	return t.Len() == 0 || t.Width() == 0
}

func (t Table) Symbols() []string {
	res := make([]string, len(t.Series))
	for i, s := range t.Series {
		res[i] = s.Symbol
	}
	return res
}

// Index returns the column position of symbol, or -1.
func (t Table) Index(symbol string) int {
	for i, s := range t.Series {
		if s.Symbol == symbol {
			return i
		}
	}
	return -1
}

func (t Table) Column(symbol string) (Series, bool) {
	idx := t.Index(symbol)
	if idx < 0 {
		return Series{}, false
	}
	return t.Series[idx], true
}

// Valid returns the non-missing values of a series in date order.
func (s Series) Valid() []float64 {
	res := make([]float64, 0, len(s.Values))
	for _, v := range s.Values {
		if v.Valid {
			res = append(res, v.Float64)
		}
	}
	return res
}

// Validate checks the table shape: unique symbols, strictly increasing dates
// and one value per date in every column.
func (t Table) Validate() error {
	seen := make(map[string]struct{}, len(t.Series))
	for _, s := range t.Series {
		if _, ok := seen[s.Symbol]; ok {
			return fmt.Errorf("duplicate symbol %s in table", s.Symbol)
		}
		seen[s.Symbol] = struct{}{}

		if len(s.Values) != len(t.Dates) {
			return fmt.Errorf("symbol %s has %d values for %d dates", s.Symbol, len(s.Values), len(t.Dates))
		}
	}

	for i := 1; i < len(t.Dates); i++ {
		if !t.Dates[i].After(t.Dates[i-1]) {
			return fmt.Errorf("dates are not strictly increasing at row %d (%s)", i, t.Dates[i].Format(time.DateOnly))
		}
	}

	return nil
}
