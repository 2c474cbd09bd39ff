package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	c "corr.service/api"
	dm "corr.service/data/models"
)

const (
	HostDefault = "api.coingecko.com"
	SourceName  = "coingecko"

	vsCurrency = "usd"
)

type CoinGeckoClient struct {
	*c.Client
	ids map[string]string // ticker -> coingecko coin id
	now func() time.Time
}

type marketChart struct {
	Prices [][2]float64 `json:"prices"` // [unix ms, price]
}

func GetClient(host, apiKey string, settings c.ClientSettings, ids map[string]string) *CoinGeckoClient {
	if host == "" {
		host = HostDefault
	}
	return NewClient(c.ClientFactory(host, apiKey, settings), ids)
}

func NewClient(client *c.Client, ids map[string]string) *CoinGeckoClient {
	return &CoinGeckoClient{
		Client: client,
		ids:    ids,
		now:    time.Now,
	}
}

func (cg *CoinGeckoClient) Name() string {
	return SourceName
}

// CoinID resolves a ticker such as BTC to its coin id, unknown tickers are
// lower cased.
func (cg *CoinGeckoClient) CoinID(ticker string) string {
	if id, ok := cg.ids[strings.ToUpper(ticker)]; ok {
		return id
	}
	return strings.ToLower(ticker)
}

// GetDailyPrices returns one usd price per calendar day (the last quote of
// the day) from start until now.
// https://docs.coingecko.com/reference/coins-id-market-chart
func (cg *CoinGeckoClient) GetDailyPrices(ctx context.Context, ticker string, start time.Time) (dm.PriceSeries, error) {
	days := int(math.Ceil(cg.now().Sub(start).Hours() / 24))
	if days < 1 {
		days = 1
	}

	endpoint := &url.URL{Path: fmt.Sprintf("/api/v3/coins/%s/market_chart", url.PathEscape(cg.CoinID(ticker)))}
	query := endpoint.Query()
	query.Set("vs_currency", vsCurrency)
	query.Set("days", strconv.Itoa(days))
	query.Set("interval", "daily")
	if cg.ApiKey != "" {
		query.Set("x_cg_pro_api_key", cg.ApiKey)
	}
	endpoint.RawQuery = query.Encode()

	response, err := cg.Connection.Request(ctx, endpoint)
	if err != nil {
		return dm.PriceSeries{}, fmt.Errorf("error requesting %s from coingecko: %w", ticker, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return dm.PriceSeries{}, fmt.Errorf("coingecko responded with status %d for %s", response.StatusCode, ticker)
	}

	var chart marketChart
	if err := json.NewDecoder(response.Body).Decode(&chart); err != nil {
		return dm.PriceSeries{}, fmt.Errorf("error decoding coingecko market chart for %s: %w", ticker, err)
	}

	return dm.PriceSeries{
		Symbol: ticker,
		Source: SourceName,
		Points: dailyCloses(chart.Prices, start),
	}, nil
}

// dailyCloses keeps the last quote of each UTC calendar day on or after start.
func dailyCloses(prices [][2]float64, start time.Time) []dm.PricePoint {
	byDay := make(map[time.Time]dm.PricePoint, len(prices))
	for _, p := range prices {
		ts := time.UnixMilli(int64(p[0])).UTC()
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		if day.Before(start) {
			continue
		}

		// quotes arrive in time order, later ones overwrite
		byDay[day] = dm.PricePoint{Date: day, Price: p[1]}
	}

	res := make([]dm.PricePoint, 0, len(byDay))
	for _, p := range byDay {
		res = append(res, p)
	}
	slices.SortFunc(res, func(a, b dm.PricePoint) int { return a.Date.Compare(b.Date) })

	return res
}
