package core

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"corr.service/data/cache"
	dm "corr.service/data/models"
	sm "corr.service/models"
)

var testNow = time.Date(2024, time.March, 20, 15, 0, 0, 0, time.UTC)

type fakeSource struct {
	name   string
	series map[string][]dm.PricePoint
	errs   map[string]error

	mu    sync.Mutex
	calls map[string]int
}

func newFakeSource(name string) *fakeSource {
	return &fakeSource{
		name:   name,
		series: make(map[string][]dm.PricePoint),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (fs *fakeSource) Name() string {
	return fs.name
}

func (fs *fakeSource) GetDailyPrices(ctx context.Context, symbol string, start time.Time) (dm.PriceSeries, error) {
	fs.mu.Lock()
	fs.calls[symbol]++
	fs.mu.Unlock()

	if err := fs.errs[symbol]; err != nil {
		return dm.PriceSeries{}, err
	}

	var points []dm.PricePoint
	for _, p := range fs.series[symbol] {
		if !p.Date.Before(start) {
			points = append(points, p)
		}
	}
	return dm.PriceSeries{Symbol: symbol, Source: fs.name, Points: points}, nil
}

func (fs *fakeSource) callCount(symbol string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.calls[symbol]
}

// Helper: n consecutive daily closes ending the day before testNow
func pricePoints(t *testing.T, n int, price func(i int) float64) []dm.PricePoint {
	t.Helper()
	first := time.Date(2024, time.March, 19, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(n - 1))
	res := make([]dm.PricePoint, n)
	for i := range n {
		res[i] = dm.PricePoint{Date: first.AddDate(0, 0, i), Price: price(i)}
	}
	return res
}

func getTestServiceContext(t *testing.T, crypto, market PriceSource) *ServiceContext {
	t.Helper()
	sc := NewServiceContext(context.Background(), nil, crypto, market, cache.NewMemoryCache(8))
	sc.now = func() time.Time { return testNow }
	return sc
}

func TestAlignSeriesOuterJoinsAndFills(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC) }
	table := AlignSeries([]dm.PriceSeries{
		{Symbol: "A", Points: []dm.PricePoint{{Date: day(1), Price: 10}, {Date: day(2), Price: 11}, {Date: day(4), Price: 13}}},
		{Symbol: "B", Points: []dm.PricePoint{{Date: day(4), Price: 23}, {Date: day(2), Price: 21}, {Date: day(3), Price: 22}}},
	})

	require.NoError(t, table.Validate())
	require.Equal(t, []time.Time{day(1), day(2), day(3), day(4)}, table.Dates)
	require.Equal(t, []string{"A", "B"}, table.Symbols())
	require.Equal(t, []float64{10, 11, 11, 13}, table.Series[0].Valid(), "forward fill")
	require.Equal(t, []float64{21, 21, 22, 23}, table.Series[1].Valid(), "backward fill of the leading gap")
}

func TestAlignSeriesEmpty(t *testing.T) {
	require.True(t, AlignSeries(nil).IsEmpty())
}

func TestLoadPriceTableRoutesByClassAndCaches(t *testing.T) {
	crypto := newFakeSource("crypto")
	crypto.series["bitcoin"] = pricePoints(t, 12, func(i int) float64 { return 40000 + 100*float64(i) })

	market := newFakeSource("market")
	market.series["SPY"] = pricePoints(t, 12, func(i int) float64 { return 500 + float64(i) })
	market.series["IAU"] = pricePoints(t, 12, func(i int) float64 { return 40 - 0.1*float64(i) })

	sc := getTestServiceContext(t, crypto, market)
	symbols := []sm.SymbolRequest{
		{Symbol: "BTC", Class: sm.Crypto},
		{Symbol: "SPY", Class: sm.Etfs},
		{Symbol: "GC=F", Class: sm.Commodities},
	}

	table, warnings, err := sc.LoadPriceTable(context.Background(), symbols, sm.Period30d)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, []string{"BTC", "SPY", "GC=F"}, table.Symbols())
	require.Equal(t, 12, table.Len())

	// same selection in another order is served from the cache
	reordered := []sm.SymbolRequest{symbols[2], symbols[0], symbols[1]}
	cached, _, err := sc.LoadPriceTable(context.Background(), reordered, sm.Period30d)
	require.NoError(t, err)
	require.Equal(t, table, cached)

	require.Equal(t, 1, crypto.callCount("bitcoin"))
	require.Equal(t, 1, market.callCount("SPY"))
	require.Equal(t, 1, market.callCount("IAU"))
	require.Equal(t, 1.0, testutil.ToFloat64(sc.Metrics.CacheRequests.WithLabelValues("hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(sc.Metrics.CacheRequests.WithLabelValues("miss")))
}

func TestLoadPriceTableDiscardsMalformedCacheEntries(t *testing.T) {
	market := newFakeSource("market")
	market.series["SPY"] = pricePoints(t, 12, func(i int) float64 { return 500 + float64(i) })

	sc := getTestServiceContext(t, newFakeSource("crypto"), market)
	key := cache.Key(mixedSource, sm.Period30d, []string{"SPY"})
	broken := dm.Table{
		Dates:  []time.Time{testNow.AddDate(0, 0, -1), testNow.AddDate(0, 0, -2)},
		Series: []dm.Series{{Symbol: "SPY"}},
	}
	require.NoError(t, sc.Cache.Set(context.Background(), key, broken, time.Minute))

	symbols := []sm.SymbolRequest{{Symbol: "SPY", Class: sm.Etfs}}
	table, _, err := sc.LoadPriceTable(context.Background(), symbols, sm.Period30d)
	require.NoError(t, err)
	require.NoError(t, table.Validate())
	require.Equal(t, 12, table.Len())
	require.Equal(t, 1, market.callCount("SPY"))
	require.Equal(t, 1.0, testutil.ToFloat64(sc.Metrics.CacheRequests.WithLabelValues("error")))

	// the refetched table replaced the broken entry
	_, _, err = sc.LoadPriceTable(context.Background(), symbols, sm.Period30d)
	require.NoError(t, err)
	require.Equal(t, 1, market.callCount("SPY"))
	require.Equal(t, 1.0, testutil.ToFloat64(sc.Metrics.CacheRequests.WithLabelValues("hit")))
}

func TestLoadPriceTableSkipsFailingSymbols(t *testing.T) {
	crypto := newFakeSource("crypto")
	crypto.errs["ethereum"] = errors.New("rate limited")

	market := newFakeSource("market")
	market.series["SPY"] = pricePoints(t, 12, func(i int) float64 { return 500 + float64(i) })

	sc := getTestServiceContext(t, crypto, market)
	table, warnings, err := sc.LoadPriceTable(context.Background(), []sm.SymbolRequest{
		{Symbol: "ETH", Class: sm.Crypto},
		{Symbol: "SPY", Class: sm.Etfs},
		{Symbol: "NOPE", Class: sm.Stocks},
	}, sm.Period90d)
	require.NoError(t, err)

	require.Equal(t, []string{"SPY"}, table.Symbols())
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		require.Equal(t, WarnSymbolFetchFailed, w.Code)
	}
	require.Equal(t, 1.0, testutil.ToFloat64(sc.Metrics.ProviderFailures.WithLabelValues("crypto")))
	require.Equal(t, 1.0, testutil.ToFloat64(sc.Metrics.ProviderFailures.WithLabelValues("market")))
}

func TestLoadPriceTableErrors(t *testing.T) {
	crypto := newFakeSource("crypto")
	crypto.errs["bitcoin"] = errors.New("down")
	sc := getTestServiceContext(t, crypto, newFakeSource("market"))
	btc := []sm.SymbolRequest{{Symbol: "BTC", Class: sm.Crypto}}

	_, _, err := sc.LoadPriceTable(context.Background(), btc, sm.Period30d)
	require.ErrorIs(t, err, ErrNoData)

	_, _, err = sc.LoadPriceTable(context.Background(), btc, "2w")
	require.ErrorIs(t, err, ErrUnknownPeriod)

	_, _, err = sc.LoadPriceTable(context.Background(), nil, sm.Period30d)
	require.ErrorIs(t, err, ErrNoAssets)
}

func TestLoadPriceTableWarnsOnFewRows(t *testing.T) {
	market := newFakeSource("market")
	market.series["SPY"] = pricePoints(t, 4, func(i int) float64 { return 500 + float64(i) })
	sc := getTestServiceContext(t, newFakeSource("crypto"), market)

	table, warnings, err := sc.LoadPriceTable(context.Background(), []sm.SymbolRequest{{Symbol: "SPY", Class: sm.Etfs}}, sm.Period30d)
	require.NoError(t, err)
	require.Equal(t, 4, table.Len())
	require.Len(t, warnings, 1)
	require.Equal(t, WarnFewAlignedRows, warnings[0].Code)
}

func TestLatestPrices(t *testing.T) {
	crypto := newFakeSource("crypto")
	crypto.series["bitcoin"] = pricePoints(t, 3, func(i int) float64 { return 40000 + float64(i) })
	market := newFakeSource("market")
	market.series["AAPL"] = pricePoints(t, 3, func(i int) float64 { return 170.5 + float64(i) })

	sc := getTestServiceContext(t, crypto, market)
	prices, warnings, err := sc.LatestPrices(context.Background(), []sm.SymbolRequest{
		{Symbol: "BTC", Class: sm.Crypto},
		{Symbol: "AAPL", Class: sm.Stocks},
	})
	require.NoError(t, err)
	require.Empty(t, warnings, "few rows are not a problem for latest prices")
	require.Equal(t, map[string]float64{"BTC": 40002, "AAPL": 172.5}, prices)
}

type fakeHistory struct {
	*fakeSource
	saved []dm.PriceSeries
	err   error
}

func (fh *fakeHistory) GetDailyPrices(ctx context.Context, symbol string, start time.Time) (dm.PriceSeries, error) {
	if fh.err != nil {
		return dm.PriceSeries{}, fh.err
	}
	return fh.fakeSource.GetDailyPrices(ctx, symbol, start)
}

func (fh *fakeHistory) SavePriceSeries(ctx context.Context, series dm.PriceSeries) (int64, error) {
	fh.saved = append(fh.saved, series)
	return int64(len(series.Points)), nil
}

func TestHistorySourceServesFreshStoredPrices(t *testing.T) {
	history := &fakeHistory{fakeSource: newFakeSource("postgres")}
	history.series["SPY"] = pricePoints(t, 30, func(i int) float64 { return 500 })
	provider := newFakeSource("market")

	hs := NewHistorySource(history, provider, true)
	hs.now = func() time.Time { return testNow }

	res, err := hs.GetDailyPrices(context.Background(), "SPY", testNow.AddDate(0, 0, -25))
	require.NoError(t, err)
	require.Equal(t, "postgres", res.Source)
	require.Equal(t, 0, provider.callCount("SPY"))
	require.Equal(t, "market", hs.Name())
}

func TestHistorySourceFallsBackAndPersists(t *testing.T) {
	provider := newFakeSource("market")
	provider.series["SPY"] = pricePoints(t, 30, func(i int) float64 { return 500 + float64(i) })

	for name, history := range map[string]*fakeHistory{
		"stale": func() *fakeHistory {
			h := &fakeHistory{fakeSource: newFakeSource("postgres")}
			h.series["SPY"] = pricePoints(t, 30, func(i int) float64 { return 500 })[:20]
			return h
		}(),
		"short": func() *fakeHistory {
			h := &fakeHistory{fakeSource: newFakeSource("postgres")}
			h.series["SPY"] = pricePoints(t, 5, func(i int) float64 { return 500 })
			return h
		}(),
		"empty":  {fakeSource: newFakeSource("postgres")},
		"broken": {fakeSource: newFakeSource("postgres"), err: errors.New("connection reset")},
	} {
		t.Run(name, func(t *testing.T) {
			hs := NewHistorySource(history, provider, true)
			hs.now = func() time.Time { return testNow }

			res, err := hs.GetDailyPrices(context.Background(), "SPY", testNow.AddDate(0, 0, -29))
			require.NoError(t, err)
			require.Equal(t, "market", res.Source)
			require.Len(t, history.saved, 1)
		})
	}
}

func TestHistorySourceWithoutPersistence(t *testing.T) {
	provider := newFakeSource("market")
	provider.series["SPY"] = pricePoints(t, 3, func(i int) float64 { return math.Pi })
	history := &fakeHistory{fakeSource: newFakeSource("postgres")}

	hs := NewHistorySource(history, provider, false)
	_, err := hs.GetDailyPrices(context.Background(), "SPY", time.Time{})
	require.NoError(t, err)
	require.Empty(t, history.saved)
}
