package core

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	ex "corr.service/data/extensions"
	dm "corr.service/data/models"
)

// Daily is the number of trading days used to annualize daily figures.
const Daily = 252

type StatisticsStatus string

const (
	StatusOk                StatisticsStatus = "ok"
	StatusInsufficientData  StatisticsStatus = "insufficient_data"
	StatusComputationFailed StatisticsStatus = "computation_failed"
)

// AssetStatistics are the descriptive statistics of one asset's returns.
// Numeric fields are zero whenever Status is not ok, Reason says why.
type AssetStatistics struct {
	Symbol       string           `json:"symbol"`
	MeanReturn   float64          `json:"mean_return"`
	Volatility   float64          `json:"volatility"`
	SharpeRatio  float64          `json:"sharpe_ratio"`
	Skewness     float64          `json:"skewness"`
	Kurtosis     float64          `json:"kurtosis"`
	MaxReturn    float64          `json:"max_return"`
	MinReturn    float64          `json:"min_return"`
	PositiveDays int              `json:"positive_days"`
	NegativeDays int              `json:"negative_days"`
	TotalDays    int              `json:"total_days"`
	Status       StatisticsStatus `json:"status"`
	Reason       string           `json:"reason,omitempty"`
}

// SummarizeStatistics computes one record per column of the returns table.
// Columns are processed on the worker pool, a failing column never affects
// the others.
func SummarizeStatistics(returns dm.Table) map[string]AssetStatistics {
	res := make(map[string]AssetStatistics, returns.Width())
	if returns.Width() == 0 {
		return res
	}

	records := make([]AssetStatistics, returns.Width())
	err := runJobs(context.Background(), returns.Width(), func(i int) error {
		records[i] = summarizeSeries(returns.Series[i])
		return nil
	})
	if err != nil {
		// summarizeSeries recovers its own panics, this only trips on a bug in the pool
		log.Error().Err(err).Msg("statistics worker pool failed")
	}

	for i, r := range records {
		if r.Symbol == "" && r.Status == "" {
			r = failedStatistics(returns.Series[i].Symbol, 0, "statistics were not computed")
		}
		res[r.Symbol] = r
	}

	return res
}

// gonum entry points, replaceable in tests
var (
	meanStdDev = stat.MeanStdDev
	moment     = stat.Moment
)

func summarizeSeries(s dm.Series) (res AssetStatistics) {
	values := s.Valid()

	defer func() {
		if r := recover(); r != nil {
			res = failedStatistics(s.Symbol, len(values), fmt.Sprintf("%v", r))
		}
	}()

	if len(values) < 2 {
		return AssetStatistics{
			Symbol:    s.Symbol,
			TotalDays: len(values),
			Status:    StatusInsufficientData,
			Reason:    fmt.Sprintf("%d valid observations, at least 2 are needed", len(values)),
		}
	}

	mean, volatility := meanStdDev(values, nil)

	sharpe := 0.0
	if volatility > 0 {
		sharpe = mean / volatility * math.Sqrt(Daily)
	}

	skewness, kurtosis := shapeMoments(values)

	res = AssetStatistics{
		Symbol:      s.Symbol,
		MeanReturn:  mean,
		Volatility:  volatility,
		SharpeRatio: sharpe,
		Skewness:    skewness,
		Kurtosis:    kurtosis,
		MaxReturn:   floats.Max(values),
		MinReturn:   floats.Min(values),
		TotalDays:   len(values),
		Status:      StatusOk,
	}

	for _, v := range values {
		switch {
		case v > 0:
			res.PositiveDays++
		case v < 0:
			res.NegativeDays++
		}
	}

	return res
}

// shapeMoments returns the population skewness and excess kurtosis. Either is
// 0 when it cannot be computed (e.g. constant returns).
func shapeMoments(values []float64) (skewness, kurtosis float64) {
	defer func() {
		if r := recover(); r != nil {
			skewness, kurtosis = 0, 0
		}
	}()

	m2 := moment(2, values, nil)
	m3 := moment(3, values, nil)
	m4 := moment(4, values, nil)

	skewness = m3 / math.Pow(m2, 1.5)
	kurtosis = m4/(m2*m2) - 3

	if !ex.IsFinite(skewness) {
		skewness = 0
	}
	if !ex.IsFinite(kurtosis) {
		kurtosis = 0
	}
	return skewness, kurtosis
}

func failedStatistics(symbol string, totalDays int, reason string) AssetStatistics {
	return AssetStatistics{
		Symbol:    symbol,
		TotalDays: totalDays,
		Status:    StatusComputationFailed,
		Reason:    reason,
	}
}
