package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	ex "corr.service/data/extensions"
	dm "corr.service/data/models"
	q "corr.service/data/queries"
)

const (
	SourceName = "postgres"

	dailyPriceTable = "daily_price"
)

func (pg *Postgres) Name() string {
	return SourceName
}

// GetMetaDataBySymbol returns nil without an error when the symbol has never
// been stored.
func (pg *Postgres) GetMetaDataBySymbol(ctx context.Context, symbol string, tx pgx.Tx) (*dm.PriceSeriesMetadata, error) {
	args := pgx.NamedArgs{"symbol": symbol}

	res, err := QuerySingle[dm.PriceSeriesMetadata](ctx, pg, q.Get(q.QueryHelper.Select.MetaDataBySymbol), args, tx)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query meta data by symbol (%s): %w", symbol, err)
	}
	return res, nil
}

// InsertNewMetaData stores the header and sets its generated id.
func (pg *Postgres) InsertNewMetaData(ctx context.Context, metadata *dm.PriceSeriesMetadata, tx pgx.Tx) error {
	args := pgx.NamedArgs{
		"symbol":         metadata.Symbol,
		"source":         metadata.Source,
		"last_refreshed": metadata.LastRefreshed,
	}

	if err := pg.conn(tx).QueryRow(ctx, q.Get(q.QueryHelper.Insert.Metadata), args).Scan(&metadata.Id); err != nil {
		return fmt.Errorf("error inserting meta data for %s: %w", metadata.Symbol, err)
	}
	return nil
}

func (pg *Postgres) UpdateLastRefreshedDate(ctx context.Context, symbol string, lastRefreshed time.Time, tx pgx.Tx) error {
	args := pgx.NamedArgs{
		"last_refreshed": lastRefreshed,
		"symbol":         symbol,
	}

	_, err := pg.conn(tx).Exec(ctx, q.Get(q.QueryHelper.Update.LastRefreshedDate), args)
	return err
}

// MostRecentDate is the latest stored date for symbol, nil when nothing is stored.
func (pg *Postgres) MostRecentDate(ctx context.Context, symbol string, tx pgx.Tx) (*time.Time, error) {
	var latest *time.Time
	args := pgx.NamedArgs{"symbol": symbol}

	if err := pg.conn(tx).QueryRow(ctx, q.Get(q.QueryHelper.Select.MostRecentDateBySymbol), args).Scan(&latest); err != nil {
		return nil, fmt.Errorf("unable to query most recent date for %s: %w", symbol, err)
	}
	return latest, nil
}

// GetDailyPrices returns the stored closes of symbol on or after start, oldest
// first. An unknown symbol yields an empty series.
func (pg *Postgres) GetDailyPrices(ctx context.Context, symbol string, start time.Time) (dm.PriceSeries, error) {
	args := pgx.NamedArgs{
		"symbol": symbol,
		"start":  start,
	}

	rows, err := Query[dm.StoredPrice](ctx, pg, q.Get(q.QueryHelper.Select.DailyPricesBySymbol), args, nil)
	if err != nil {
		return dm.PriceSeries{}, fmt.Errorf("unable to query daily prices by symbol (%s): %w", symbol, err)
	}

	points := make([]dm.PricePoint, len(rows))
	for i, r := range rows {
		points[i] = dm.PricePoint{
			Date:  time.Date(r.Date.Year(), r.Date.Month(), r.Date.Day(), 0, 0, 0, 0, time.UTC),
			Price: r.Price,
		}
	}

	return dm.PriceSeries{
		Symbol: symbol,
		Source: SourceName,
		Points: points,
	}, nil
}

// SavePriceSeries persists the points of series newer than what is already
// stored and returns how many rows were written.
func (pg *Postgres) SavePriceSeries(ctx context.Context, series dm.PriceSeries) (int64, error) {
	if len(series.Points) == 0 {
		return 0, nil
	}

	tx, err := pg.GetTransaction(ctx)
	if err != nil {
		return 0, fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() {
		// no-op once committed
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Warn().Err(rbErr).Str("symbol", series.Symbol).Msg("rollback failed")
		}
	}()

	metadata, err := pg.GetMetaDataBySymbol(ctx, series.Symbol, tx)
	if err != nil {
		return 0, err
	}

	last, _ := series.Last()
	if metadata == nil {
		metadata = &dm.PriceSeriesMetadata{
			Symbol:        series.Symbol,
			Source:        series.Source,
			LastRefreshed: last.Date,
		}
		if err := pg.InsertNewMetaData(ctx, metadata, tx); err != nil {
			return 0, err
		}
	}

	latest, err := pg.MostRecentDate(ctx, series.Symbol, tx)
	if err != nil {
		return 0, err
	}

	fresh := series.Points
	if latest != nil {
		fresh = ex.FilterMultiple(series.Points, func(p dm.PricePoint) bool { return p.Date.After(*latest) })
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	entries := make([][]any, len(fresh))
	for i, p := range fresh {
		entries[i] = []any{metadata.Id, p.Date, p.Price}
	}

	count, err := pg.BulkInsert(ctx, dailyPriceTable, []string{"source_id", "date", "price"}, entries, tx)
	if err != nil {
		return 0, fmt.Errorf("error inserting daily prices for %s: %w", series.Symbol, err)
	}

	if err := pg.UpdateLastRefreshedDate(ctx, series.Symbol, last.Date, tx); err != nil {
		return 0, fmt.Errorf("error updating last refreshed for %s: %w", series.Symbol, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("error committing daily prices for %s: %w", series.Symbol, err)
	}

	return count, nil
}

// DeletePriceSeries removes a symbol and, through the foreign key, its prices.
func (pg *Postgres) DeletePriceSeries(ctx context.Context, symbol string) error {
	_, err := pg.db.Exec(ctx, q.Get(q.QueryHelper.Delete.PriceSeriesBySymbol), pgx.NamedArgs{"symbol": symbol})
	return err
}
