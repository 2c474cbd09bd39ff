package models

import (
	"slices"
	"strings"
)

// AssetSelection maps an asset class to the technical symbols picked in it.
type AssetSelection map[AssetClass][]string

type CorrelationRequest struct {
	Assets            AssetSelection  `json:"assets" validate:"required,min=1,dive,keys,asset_class,endkeys,dive,required,ticker"`
	Period            string          `json:"period" validate:"required,period"`
	CorrelationMethod string          `json:"correlation_method"`
	ReturnsMethod     string          `json:"returns_method"`
	MarketAsset       string          `json:"market_asset" validate:"omitempty,ticker"`
	Rolling           *RollingOptions `json:"rolling,omitempty"`
}

// RollingOptions asks for rolling correlations on top of the full period
// matrix. Without assets every pair is returned.
type RollingOptions struct {
	Window int      `json:"window" validate:"omitempty,min=2,max=365"`
	Assets []string `json:"assets" validate:"omitempty,len=2,dive,required,ticker"`
}

type PricesRequest struct {
	Assets AssetSelection `json:"assets" validate:"required,min=1,dive,keys,asset_class,endkeys,dive,required,ticker"`
}

const (
	ExportCsv  = "csv"
	ExportXlsx = "xlsx"
)

type ExportRequest struct {
	CorrelationMatrix map[string]map[string]float64 `json:"correlation_matrix" validate:"required,min=1"`
	Assets            []string                      `json:"assets"`
	Format            string                        `json:"format" validate:"omitempty,oneof=csv xlsx"`
}

// SymbolRequest is one symbol to fetch together with its class.
type SymbolRequest struct {
	Symbol string
	Class  AssetClass
}

// Symbols flattens the selection in class display order, upper cased, keeping
// the first occurrence of a symbol picked twice.
func (as AssetSelection) Symbols() []SymbolRequest {
	classes := slices.Clone(AssetClasses)
	for ac := range as {
		if !slices.Contains(classes, ac) {
			classes = append(classes, ac)
		}
	}
	slices.Sort(classes[len(AssetClasses):])

	seen := make(map[string]struct{})
	var res []SymbolRequest
	for _, ac := range classes {
		for _, s := range as[ac] {
			s = strings.ToUpper(strings.TrimSpace(s))
			if _, ok := seen[s]; ok || s == "" {
				continue
			}
			seen[s] = struct{}{}
			res = append(res, SymbolRequest{Symbol: s, Class: ac})
		}
	}
	return res
}
