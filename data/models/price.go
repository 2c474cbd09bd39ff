package models

import "time"

// PricePoint is a single dated close for an asset.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// PriceSeries is what a price provider returns for one symbol, ordered by date.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Source string       `json:"source"`
	Points []PricePoint `json:"points"`
}

// Last returns the most recent point, false when the series is empty.
func (ps PriceSeries) Last() (PricePoint, bool) {
	if len(ps.Points) == 0 {
		return PricePoint{}, false
	}
	return ps.Points[len(ps.Points)-1], true
}

// PriceSeriesMetadata is the stored header of a persisted price series.
type PriceSeriesMetadata struct {
	Id            int32     `db:"id"`
	Symbol        string    `db:"symbol"`
	Source        string    `db:"source"`
	LastRefreshed time.Time `db:"last_refreshed"`
}

// StoredPrice is one persisted daily close.
type StoredPrice struct {
	SourceId int32     `db:"source_id"`
	Date     time.Time `db:"date"`
	Price    float64   `db:"price"`
}
