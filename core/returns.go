package core

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/guregu/null/v6"

	ex "corr.service/data/extensions"
	dm "corr.service/data/models"
)

type ReturnsMethod string

const (
	LogReturns    ReturnsMethod = "log"
	SimpleReturns ReturnsMethod = "simple"
)

// Warning is a recoverable condition surfaced to the caller alongside a result.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	WarnLogFallback        = "log_returns_fallback"
	WarnUnknownMethod      = "unknown_method"
	WarnUnreliable         = "unreliable_correlation"
	WarnCorrelationFailed  = "correlation_failed"
	WarnFewAlignedRows     = "few_aligned_rows"
	WarnMissingMarketAsset = "missing_market_asset"
	WarnSymbolFetchFailed  = "symbol_fetch_failed"
)

// ParseReturnsMethod maps a request string to a method. Empty means log.
// Anything else that is not "log" is treated as simple, matching the
// fractional-change fallback; ok is false in that case.
func ParseReturnsMethod(s string) (ReturnsMethod, bool) {
	switch ReturnsMethod(s) {
	case "", LogReturns:
		return LogReturns, true
	case SimpleReturns:
		return SimpleReturns, true
	default:
		return SimpleReturns, false
	}
}

type ReturnsResult struct {
	Returns  dm.Table
	Method   ReturnsMethod // the method actually applied
	Warnings []Warning
}

// CalculateReturns turns a price table into day over day returns. The first
// date is dropped, non-finite values are removed and rows left without any
// value are discarded. A single non-positive price switches the whole table
// to simple returns.
func CalculateReturns(prices dm.Table, method ReturnsMethod) ReturnsResult {
	res := ReturnsResult{Method: method}

	if method != LogReturns && method != SimpleReturns {
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnUnknownMethod,
			Message: fmt.Sprintf("unknown returns method %q, using simple returns", method),
		})
		res.Method = SimpleReturns
	}

	if prices.IsEmpty() || prices.Len() < 2 {
		res.Returns = dm.NewTable(nil, prices.Symbols())
		return res
	}

	if res.Method == LogReturns && hasNonPositivePrice(prices) {
		res.Warnings = append(res.Warnings, Warning{
			Code:    WarnLogFallback,
			Message: "non-positive price found, log returns are undefined so simple returns were used for the whole table",
		})
		res.Method = SimpleReturns
	}

	returns := dm.NewTable(slices.Clone(prices.Dates[1:]), prices.Symbols())
	for c, s := range prices.Series {
		for t := 1; t < len(s.Values); t++ {
			prev, cur := s.Values[t-1], s.Values[t]
			if !prev.Valid || !cur.Valid {
				continue
			}

			r := periodReturn(prev.Float64, cur.Float64, res.Method)
			if ex.IsFinite(r) {
				returns.Series[c].Values[t-1] = null.FloatFrom(r)
			}
		}
	}

	res.Returns = dropEmptyRows(returns)
	return res
}

func periodReturn(prev, cur float64, method ReturnsMethod) float64 {
	if method == LogReturns {
		return math.Log(cur / prev)
	}
	return (cur - prev) / prev
}

func hasNonPositivePrice(prices dm.Table) bool {
	for _, s := range prices.Series {
		for _, v := range s.Values {
			if v.Valid && v.Float64 <= 0 {
				return true
			}
		}
	}
	return false
}

// dropEmptyRows removes dates where no column has a value.
func dropEmptyRows(t dm.Table) dm.Table {
	keep := make([]int, 0, t.Len())
	for row := range t.Len() {
		for _, s := range t.Series {
			if s.Values[row].Valid {
				keep = append(keep, row)
				break
			}
		}
	}

	if len(keep) == t.Len() {
		return t
	}

	dates := make([]time.Time, len(keep))
	for i, row := range keep {
		dates[i] = t.Dates[row]
	}

	res := dm.NewTable(dates, t.Symbols())
	for c, s := range t.Series {
		for i, row := range keep {
			res.Series[c].Values[i] = s.Values[row]
		}
	}

	return res
}
