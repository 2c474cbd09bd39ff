package queries

import (
	"embed"
	"fmt"
)

//go:embed create/*.sql delete/*.sql insert/*.sql select/*.sql update/*.sql
var Files embed.FS

type CreateQueries struct {
	PriceTables string
}

type DeleteQueries struct {
	PriceSeriesBySymbol string
}

type InsertQueries struct {
	Metadata string
}

type SelectQueries struct {
	DailyPricesBySymbol    string
	MetaDataBySymbol       string
	MostRecentDateBySymbol string
}

type UpdateQueries struct {
	LastRefreshedDate string
}

type QueryHelperStruct struct {
	Create CreateQueries
	Delete DeleteQueries
	Insert InsertQueries
	Select SelectQueries
	Update UpdateQueries
}

var QueryHelper = QueryHelperStruct{
	Create: CreateQueries{
		PriceTables: "create/price_tables.sql",
	},
	Delete: DeleteQueries{
		PriceSeriesBySymbol: "delete/price_series_by_symbol.sql",
	},
	Insert: InsertQueries{
		Metadata: "insert/metadata.sql",
	},
	Select: SelectQueries{
		DailyPricesBySymbol:    "select/daily_prices_by_symbol.sql",
		MetaDataBySymbol:       "select/meta_data_by_symbol.sql",
		MostRecentDateBySymbol: "select/most_recent_date_by_symbol.sql",
	},
	Update: UpdateQueries{
		LastRefreshedDate: "update/last_refreshed_date.sql",
	},
}

// Get returns the embedded query at path. The paths are fixed at compile time
// and covered by tests, so a miss is a programming error.
func Get(path string) string {
	content, err := Files.ReadFile(path)
	if err != nil {
		panic(fmt.Errorf("error reading query file: %w", err))
	}

	return string(content)
}
