package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"corr.service/data/cache"
	ex "corr.service/data/extensions"
	dm "corr.service/data/models"
	sm "corr.service/models"
)

var (
	ErrNoData        = errors.New("no data available for selected assets")
	ErrNoAssets      = errors.New("no assets selected")
	ErrUnknownPeriod = errors.New("invalid time period")
)

const (
	DefaultMinAlignedRows = 10

	// stored history older than this is refreshed from the provider, it
	// covers a long weekend without trading
	staleAfter = 4 * 24 * time.Hour

	mixedSource = "mixed"
)

type PriceSource interface {
	Name() string
	GetDailyPrices(ctx context.Context, symbol string, start time.Time) (dm.PriceSeries, error)
}

// PriceHistory is a price source that can also persist series.
type PriceHistory interface {
	PriceSource
	SavePriceSeries(ctx context.Context, series dm.PriceSeries) (int64, error)
}

// HistorySource serves stored prices while they are fresh and cover the
// requested window, otherwise it asks the provider and, when persist is set,
// stores what came back.
type HistorySource struct {
	history  PriceHistory
	provider PriceSource
	persist  bool
	now      func() time.Time
}

func NewHistorySource(history PriceHistory, provider PriceSource, persist bool) *HistorySource {
	return &HistorySource{
		history:  history,
		provider: provider,
		persist:  persist,
		now:      time.Now,
	}
}

func (hs *HistorySource) Name() string {
	return hs.provider.Name()
}

func (hs *HistorySource) GetDailyPrices(ctx context.Context, symbol string, start time.Time) (dm.PriceSeries, error) {
	stored, err := hs.history.GetDailyPrices(ctx, symbol, start)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("reading stored prices failed, using provider")
	} else if hs.covers(stored, start) {
		return stored, nil
	}

	fetched, err := hs.provider.GetDailyPrices(ctx, symbol, start)
	if err != nil {
		return dm.PriceSeries{}, err
	}

	if hs.persist {
		count, err := hs.history.SavePriceSeries(ctx, fetched)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("storing fetched prices failed")
		} else {
			log.Debug().Str("symbol", symbol).Int64("rows", count).Msg("stored fetched prices")
		}
	}

	return fetched, nil
}

// covers is true when the series starts within a week of start and its last
// point is recent.
func (hs *HistorySource) covers(series dm.PriceSeries, start time.Time) bool {
	last, ok := series.Last()
	if !ok {
		return false
	}
	first := series.Points[0]
	return !first.Date.After(start.AddDate(0, 0, 7)) && hs.now().Sub(last.Date) <= staleAfter
}

func (sc *ServiceContext) sourceFor(class sm.AssetClass) PriceSource {
	if class == sm.Crypto {
		return sc.Crypto
	}
	return sc.Market
}

// providerSymbol resolves the symbol the provider knows the asset by.
func (sc *ServiceContext) providerSymbol(symbol string) string {
	if a, ok := sc.Catalog.Lookup(symbol); ok {
		return a.ProviderSymbol
	}
	return symbol
}

// LoadPriceTable returns the aligned daily prices of symbols over period,
// served from the cache when possible. Symbols that cannot be fetched are
// skipped with a warning; ErrNoData is returned when none could be.
func (sc *ServiceContext) LoadPriceTable(ctx context.Context, symbols []sm.SymbolRequest, periodKey string) (dm.Table, []Warning, error) {
	period, ok := sm.LookupPeriod(periodKey)
	if !ok {
		return dm.Table{}, nil, fmt.Errorf("%w: %s", ErrUnknownPeriod, periodKey)
	}
	if len(symbols) == 0 {
		return dm.Table{}, nil, ErrNoAssets
	}

	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = s.Symbol
	}
	key := cache.Key(mixedSource, period.Key, names)

	table, hit := sc.cachedTable(ctx, key)
	var warnings []Warning
	if !hit {
		var err error
		table, warnings, err = sc.fetchPriceTable(ctx, symbols, period.Start(sc.Now()))
		if err != nil {
			return dm.Table{}, warnings, err
		}
		sc.storeTable(ctx, key, table)
	}

	if minRows := sc.minAlignedRows(); table.Len() < minRows {
		warnings = append(warnings, Warning{
			Code:    WarnFewAlignedRows,
			Message: fmt.Sprintf("only %d aligned dates available, at least %d are recommended", table.Len(), minRows),
		})
	}

	return table, warnings, nil
}

func (sc *ServiceContext) fetchPriceTable(ctx context.Context, symbols []sm.SymbolRequest, start time.Time) (dm.Table, []Warning, error) {
	var (
		mu       sync.Mutex
		warnings []Warning
	)
	series := make([]dm.PriceSeries, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers)
	for i, s := range symbols {
		g.Go(func() error {
			source := sc.sourceFor(s.Class)
			res, err := source.GetDailyPrices(gctx, sc.providerSymbol(s.Symbol), start)
			if err == nil && len(res.Points) == 0 {
				err = errors.New("no prices returned")
			}
			if err != nil {
				sc.Metrics.providerFailure(source.Name())
				log.Warn().Err(err).Str("symbol", s.Symbol).Str("source", source.Name()).Msg("skipping symbol")

				mu.Lock()
				warnings = append(warnings, Warning{
					Code:    WarnSymbolFetchFailed,
					Message: fmt.Sprintf("%s: %v", s.Symbol, err),
				})
				mu.Unlock()
				return nil
			}

			res.Symbol = s.Symbol
			series[i] = res
			return nil
		})
	}
	// workers never return errors, failures are warnings
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return dm.Table{}, warnings, err
	}

	fetched := ex.FilterMultiple(series, func(s dm.PriceSeries) bool { return len(s.Points) > 0 })
	table := AlignSeries(fetched)
	if table.IsEmpty() {
		return dm.Table{}, warnings, ErrNoData
	}

	return table, warnings, nil
}

func (sc *ServiceContext) cachedTable(ctx context.Context, key string) (dm.Table, bool) {
	if sc.Cache == nil {
		return dm.Table{}, false
	}

	table, ok, err := sc.Cache.Get(ctx, key)
	switch {
	case err != nil:
		sc.Metrics.cacheResult("error")
		log.Warn().Err(err).Str("key", key).Msg("price cache read failed")
		return dm.Table{}, false
	case !ok:
		sc.Metrics.cacheResult("miss")
		return dm.Table{}, false
	}

	if err := table.Validate(); err != nil {
		sc.Metrics.cacheResult("error")
		log.Warn().Err(err).Str("key", key).Msg("discarding malformed cached price table")
		return dm.Table{}, false
	}
	sc.Metrics.cacheResult("hit")
	return table, true
}

func (sc *ServiceContext) storeTable(ctx context.Context, key string, table dm.Table) {
	if sc.Cache == nil {
		return
	}
	if err := table.Validate(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("refusing to cache malformed price table")
		return
	}
	if err := sc.Cache.Set(ctx, key, table, sc.cacheTTL()); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("price cache write failed")
	}
}

func (sc *ServiceContext) cacheTTL() time.Duration {
	if sc.Config == nil || sc.Config.Cache.TTL <= 0 {
		return 5 * time.Minute
	}
	return sc.Config.Cache.TTL
}

func (sc *ServiceContext) minAlignedRows() int {
	if sc.Config == nil || sc.Config.Analysis.MinAlignedRows <= 0 {
		return DefaultMinAlignedRows
	}
	return sc.Config.Analysis.MinAlignedRows
}

// AlignSeries outer joins series on their dates, forward then backward fills
// the gaps of each column and drops any row still incomplete. Columns keep
// the order of series; duplicate dates within a series keep the last price.
func AlignSeries(series []dm.PriceSeries) dm.Table {
	dateSet := make(map[time.Time]struct{})
	for _, s := range series {
		for _, p := range s.Points {
			dateSet[p.Date] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })

	index := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		index[d] = i
	}

	symbols := make([]string, len(series))
	for i, s := range series {
		symbols[i] = s.Symbol
	}
	table := dm.NewTable(dates, symbols)

	for i, s := range series {
		values := table.Series[i].Values
		for _, p := range s.Points {
			values[index[p.Date]] = null.FloatFrom(p.Price)
		}
		fillGaps(values)
	}

	return dropIncompleteRows(table)
}

// fillGaps forward fills, then backward fills what leads the column.
func fillGaps(values []null.Float) {
	var last null.Float
	for i, v := range values {
		if v.Valid {
			last = v
		} else if last.Valid {
			values[i] = last
		}
	}

	var next null.Float
	for i := len(values) - 1; i >= 0; i-- {
		if values[i].Valid {
			next = values[i]
		} else if next.Valid {
			values[i] = next
		}
	}
}

func dropIncompleteRows(t dm.Table) dm.Table {
	keep := make([]int, 0, t.Len())
	for row := range t.Dates {
		complete := true
		for _, s := range t.Series {
			if !s.Values[row].Valid {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, row)
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

// LatestPrices returns the last aligned price of each symbol over the 30 day
// window.
func (sc *ServiceContext) LatestPrices(ctx context.Context, symbols []sm.SymbolRequest) (map[string]float64, []Warning, error) {
	table, warnings, err := sc.LoadPriceTable(ctx, symbols, sm.Period30d)
	if err != nil {
		return nil, warnings, err
	}

	// few rows only matter for correlations
	warnings = ex.FilterMultiple(warnings, func(w Warning) bool { return w.Code != WarnFewAlignedRows })

	res := make(map[string]float64, table.Width())
	for _, s := range table.Series {
		for i := len(s.Values) - 1; i >= 0; i-- {
			if s.Values[i].Valid {
				res[s.Symbol] = s.Values[i].Float64
				break
			}
		}
	}
	return res, warnings, nil
}
