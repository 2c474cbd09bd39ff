package core

import (
	"gonum.org/v1/gonum/stat"

	ex "corr.service/data/extensions"
	dm "corr.service/data/models"
)

// DefaultMarketAsset is the reference used for beta when none is requested.
const DefaultMarketAsset = "SPY"

// CalculateBetas estimates every column's beta against the market column.
// An absent market column yields an empty map.
func CalculateBetas(returns dm.Table, market string) map[string]float64 {
	if market == "" {
		market = DefaultMarketAsset
	}

	res := make(map[string]float64, returns.Width())
	marketSeries, ok := returns.Column(market)
	if !ok {
		return res
	}

	// covariance uses the shared dates, the market variance its whole history
	marketVariance := stat.Variance(marketSeries.Valid(), nil)

	for _, s := range returns.Series {
		if s.Symbol == market {
			res[s.Symbol] = 1.0
			continue
		}
		res[s.Symbol] = beta(s, marketSeries, marketVariance)
	}

	return res
}

func beta(asset, market dm.Series, marketVariance float64) float64 {
	x, m := pairwiseComplete(asset.Values, market.Values)
	if len(x) < 2 {
		return 0
	}

	if !(marketVariance > 0) {
		return 0
	}

	b := stat.Covariance(x, m, nil) / marketVariance
	if !ex.IsFinite(b) {
		return 0
	}
	return b
}
