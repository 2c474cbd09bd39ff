package alpha_vantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // exchange time zones without relying on the host

	"github.com/rs/zerolog/log"

	c "corr.service/api"
	ex "corr.service/data/extensions"
	dm "corr.service/data/models"
)

const (
	HostDefault = "www.alphavantage.co"
	SourceName  = "alpha_vantage"
)

const (
	defaultDataType = "json"
	compactWindow   = 140 * 24 * time.Hour // compact covers 100 trading days

	// api request elements
	query      = "query"
	symbol     = "symbol"
	function   = "function"
	outputSize = "outputsize"
)

var timeSeriesDateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
}

type AlphaVantageClient struct {
	*c.Client
	Series TimeSeries
	now    func() time.Time
}

func GetClient(apiKey string, settings c.ClientSettings) *AlphaVantageClient {
	return NewClient(c.ClientFactory(HostDefault, apiKey, settings))
}

// NewClient wraps an existing client, mostly so tests can swap the connection.
func NewClient(client *c.Client) *AlphaVantageClient {
	return &AlphaVantageClient{
		Client: client,
		Series: TimeSeriesDailyAdjusted,
		now:    time.Now,
	}
}

func (avc *AlphaVantageClient) Name() string {
	return SourceName
}

// GetDailyPrices returns the daily closes of ticker on or after start, oldest first.
// https://www.alphavantage.co/documentation/#dailyadj
func (avc *AlphaVantageClient) GetDailyPrices(ctx context.Context, ticker string, start time.Time) (dm.PriceSeries, error) {
	if avc == nil || avc.Client == nil {
		panic("alpha vantage client has not been set.")
	}

	endpoint := avc.buildRequestPath(map[string]string{
		function:   avc.Series.Function(),
		symbol:     ticker,
		outputSize: OutputSize(start, avc.now()),
	})

	response, err := avc.Client.Connection.Request(ctx, endpoint)
	if err != nil {
		return dm.PriceSeries{}, fmt.Errorf("error requesting %s from alpha vantage: %w", ticker, err)
	}
	defer response.Body.Close()

	raw, err := parseRawJson(response.Body)
	if err != nil {
		return dm.PriceSeries{}, err
	}

	if err := providerError(raw); err != nil {
		return dm.PriceSeries{}, fmt.Errorf("alpha vantage rejected %s: %w", ticker, err)
	}

	timeZone, err := parseMetaData(raw)
	if err != nil {
		return dm.PriceSeries{}, err
	}

	points, err := parseTimeSeries(raw, avc.Series, timeZone)
	if err != nil {
		return dm.PriceSeries{}, err
	}

	points = ex.FilterMultiple(points, func(p dm.PricePoint) bool { return !p.Date.Before(start) })
	slices.SortFunc(points, func(a, b dm.PricePoint) int { return a.Date.Compare(b.Date) })

	return dm.PriceSeries{
		Symbol: ticker,
		Source: SourceName,
		Points: points,
	}, nil
}

func (avc *AlphaVantageClient) buildRequestPath(params map[string]string) *url.URL {
	endpoint := &url.URL{}
	endpoint.Path = query

	query := endpoint.Query()
	query.Set("apikey", avc.Client.ApiKey)
	query.Set("datatype", defaultDataType)

	for key, value := range params {
		query.Set(key, value)
	}

	endpoint.RawQuery = query.Encode()
	return endpoint
}

func parseRawJson(reader io.Reader) (raw map[string]json.RawMessage, err error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %w", err)
	}

	return
}

// providerError surfaces the messages alpha vantage sends with a 200 status
// for bad symbols, exhausted quotas and premium endpoints.
func providerError(raw map[string]json.RawMessage) error {
	for _, key := range []string{"Error Message", "Note", "Information"} {
		msg, ok := raw[key]
		if !ok {
			continue
		}

		var text string
		if err := json.Unmarshal(msg, &text); err != nil {
			text = string(msg)
		}
		return errors.New(text)
	}
	return nil
}

func parseMetaData(raw map[string]json.RawMessage) (*time.Location, error) {
	var metadataElements map[string]string
	if err := json.Unmarshal(raw["Meta Data"], &metadataElements); err != nil {
		return nil, fmt.Errorf("error unmarshaling meta data: %w", err)
	}

	metaDataKeys := slices.Collect(maps.Keys(metadataElements))

	tzf := func(s string) bool { return strings.HasSuffix(s, ". Time Zone") }
	timeZoneKey, err := ex.FilterSingle(metaDataKeys, tzf)
	if err != nil {
		return nil, fmt.Errorf("error extracting time zone for meta data")
	}

	timeZone, err := getTimeZone(metadataElements[timeZoneKey])
	if err != nil {
		return nil, fmt.Errorf("error converting time zone key %s, to time.Location: %w", metadataElements[timeZoneKey], err)
	}

	return timeZone, nil
}

func parseTimeSeries(raw map[string]json.RawMessage, series TimeSeries, location *time.Location) ([]dm.PricePoint, error) {
	var timeSeriesElements map[string]map[string]string
	if err := json.Unmarshal(raw[series.TimeSeriesKey()], &timeSeriesElements); err != nil {
		return nil, fmt.Errorf("error unmarshaling time series: %w", err)
	}

	res := make([]dm.PricePoint, 0, len(timeSeriesElements))
	if len(timeSeriesElements) == 0 {
		return res, nil
	}

	var firstValue map[string]string
	for _, v := range timeSeriesElements {
		firstValue = v
		break
	}

	pf := func(s string) bool { return strings.HasSuffix(s, series.PriceSuffix()) }
	priceKey, err := ex.FilterSingle(slices.Collect(maps.Keys(firstValue)), pf)
	if err != nil {
		return nil, fmt.Errorf("error extracting %q key for time series", series.PriceSuffix())
	}

	for timeSeriesKey, timeSeriesValue := range timeSeriesElements {
		date, err := parseDate(timeSeriesKey, location)
		if err != nil {
			return nil, err
		}

		price, err := strconv.ParseFloat(timeSeriesValue[priceKey], 64)
		if err != nil {
			log.Warn().Str("date", timeSeriesKey).Str("value", timeSeriesValue[priceKey]).Msg("skipping unparseable alpha vantage price")
			continue
		}

		res = append(res, dm.PricePoint{
			Date:  date,
			Price: price,
		})
	}

	return res, nil
}

func getTimeZone(location string) (*time.Location, error) {
	var loc string
	switch strings.ToUpper(location) {
	case "US/EASTERN":
		loc = "America/New_York"
	default:
		log.Debug().Str("timezone", location).Msg("unrecognized time zone, using UTC")
		return time.UTC, nil
	}

	res, err := time.LoadLocation(loc)
	if err != nil {
		return nil, fmt.Errorf("error parsing time zone %s in time.LoadLocation", loc)
	}

	return res, nil
}

// parseDate reads the provider's date and keeps only the calendar day, in UTC,
// so dates line up across providers.
func parseDate(dateString string, location *time.Location) (time.Time, error) {
	for _, format := range timeSeriesDateFormats {
		t, err := time.ParseInLocation(format, dateString, location)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("error converting date %s to time.Time", dateString)
}
