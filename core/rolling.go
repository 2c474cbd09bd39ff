package core

import (
	"fmt"
	"slices"
	"time"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/stat"

	ex "corr.service/data/extensions"
	dm "corr.service/data/models"
)

const (
	DefaultRollingWindow = 30
	MinRollingWindow     = 2
)

type RollingCorrelation struct {
	Asset1 string       `json:"asset1"`
	Asset2 string       `json:"asset2"`
	Label  string       `json:"label"`
	Dates  []time.Time  `json:"dates"`
	Values []null.Float `json:"values"`
}

// CalculateRollingCorrelation computes the trailing pearson correlation of
// each pair over window rows. When asset1 and asset2 are both columns only
// that pair is returned, otherwise every pair is. A window that is not full
// or yields no finite coefficient is null.
func CalculateRollingCorrelation(returns dm.Table, window int, asset1, asset2 string) []RollingCorrelation {
	if window <= 0 {
		window = DefaultRollingWindow
	}
	window = ex.Max(window, MinRollingWindow)

	res := make([]RollingCorrelation, 0)
	if returns.IsEmpty() {
		return res
	}

	i, j := returns.Index(asset1), returns.Index(asset2)
	if asset1 != "" && asset2 != "" && i >= 0 && j >= 0 && i != j {
		return append(res, rollingPair(returns, window, i, j))
	}

	for i := range returns.Width() {
		for j := i + 1; j < returns.Width(); j++ {
			res = append(res, rollingPair(returns, window, i, j))
		}
	}

	return res
}

func rollingPair(returns dm.Table, window, i, j int) RollingCorrelation {
	a, b := returns.Series[i], returns.Series[j]
	res := RollingCorrelation{
		Asset1: a.Symbol,
		Asset2: b.Symbol,
		Label:  fmt.Sprintf("%s_vs_%s", a.Symbol, b.Symbol),
		Dates:  slices.Clone(returns.Dates),
		Values: make([]null.Float, returns.Len()),
	}

	x := make([]float64, window)
	y := make([]float64, window)
	for t := window - 1; t < returns.Len(); t++ {
		full := true
		for k := range window {
			va, vb := a.Values[t-window+1+k], b.Values[t-window+1+k]
			if !va.Valid || !vb.Valid {
				full = false
				break
			}
			x[k], y[k] = va.Float64, vb.Float64
		}
		if !full {
			continue
		}

		if corr := stat.Correlation(x, y, nil); ex.IsFinite(corr) {
			res.Values[t] = null.FloatFrom(ex.Clamp(corr, -1, 1))
		}
	}

	return res
}
