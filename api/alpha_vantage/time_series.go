package alpha_vantage

import "time"

type TimeSeries uint8

// TimeSeries specifies which daily series to query.
const (
	TimeSeriesDaily TimeSeries = iota
	TimeSeriesDailyAdjusted
)

func (t TimeSeries) Function() string {
	switch t {
	case TimeSeriesDaily:
		return "TIME_SERIES_DAILY"
	case TimeSeriesDailyAdjusted:
		return "TIME_SERIES_DAILY_ADJUSTED"
	default:
		return ""
	}
}

// TimeSeriesKey is the top level response key holding the dated values.
func (t TimeSeries) TimeSeriesKey() string {
	switch t {
	case TimeSeriesDaily, TimeSeriesDailyAdjusted:
		return "Time Series (Daily)"
	default:
		return ""
	}
}

// PriceSuffix is the suffix of the value key used as the price, e.g. "5. adjusted close".
func (t TimeSeries) PriceSuffix() string {
	if t == TimeSeriesDailyAdjusted {
		return ". adjusted close"
	}
	return ". close"
}

// OutputSize picks compact (latest 100 points) when start is recent enough.
func OutputSize(start, now time.Time) string {
	if now.Sub(start) <= compactWindow {
		return "compact"
	}
	return "full"
}
