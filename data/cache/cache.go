package cache

import (
	"context"
	"slices"
	"strings"
	"time"

	dm "corr.service/data/models"
)

const keyPrefix = "prices"

// PriceTableCache stores aligned price tables between analyses. Implementations
// report a miss with ok == false and a nil error.
type PriceTableCache interface {
	Get(ctx context.Context, key string) (table dm.Table, ok bool, err error)
	Set(ctx context.Context, key string, table dm.Table, ttl time.Duration) error
}

// Key builds the cache key for a symbol set, period and data source. The
// symbol order does not matter.
func Key(source, period string, symbols []string) string {
	sorted := slices.Clone(symbols)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	return strings.Join([]string{keyPrefix, source, period, strings.Join(sorted, ",")}, ":")
}
