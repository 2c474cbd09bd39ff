package models

import (
	"slices"
	"strings"
)

type AssetClass string

const (
	Crypto      AssetClass = "crypto"
	Stocks      AssetClass = "stocks"
	Etfs        AssetClass = "etfs"
	Commodities AssetClass = "commodities"
)

// AssetClasses in display order.
var AssetClasses = []AssetClass{Crypto, Stocks, Etfs, Commodities}

func (ac AssetClass) IsValid() bool {
	return slices.Contains(AssetClasses, ac)
}

// Asset is a catalog entry. TechnicalSymbol is what requests and result
// tables use; ProviderSymbol is what the price provider is asked for (a coin
// id for crypto, a listed proxy ETF for commodity futures).
type Asset struct {
	Symbol          string     `json:"symbol"`
	Name            string     `json:"name"`
	TechnicalSymbol string     `json:"technical_symbol"`
	ProviderSymbol  string     `json:"-"`
	Class           AssetClass `json:"-"`
}

type Catalog struct {
	assets  map[AssetClass][]Asset
	symbols map[string]Asset
}

func NewCatalog(assets []Asset) *Catalog {
	c := &Catalog{
		assets:  make(map[AssetClass][]Asset),
		symbols: make(map[string]Asset, len(assets)),
	}
	for _, a := range assets {
		if a.ProviderSymbol == "" {
			a.ProviderSymbol = a.TechnicalSymbol
		}
		c.assets[a.Class] = append(c.assets[a.Class], a)
		c.symbols[strings.ToUpper(a.TechnicalSymbol)] = a
	}
	return c
}

// Lookup is case insensitive on the technical symbol.
func (c *Catalog) Lookup(symbol string) (Asset, bool) {
	a, ok := c.symbols[strings.ToUpper(symbol)]
	return a, ok
}

// Name falls back to the symbol itself for assets outside the catalog.
func (c *Catalog) Name(symbol string) string {
	if a, ok := c.Lookup(symbol); ok {
		return a.Name
	}
	return symbol
}

// ByClass returns every class, empty ones included, keyed for the /assets route.
func (c *Catalog) ByClass() map[AssetClass][]Asset {
	res := make(map[AssetClass][]Asset, len(AssetClasses))
	for _, ac := range AssetClasses {
		res[ac] = slices.Clone(c.assets[ac])
		if res[ac] == nil {
			res[ac] = []Asset{}
		}
	}
	return res
}

// CoinIDs maps crypto tickers to their coingecko ids.
func (c *Catalog) CoinIDs() map[string]string {
	res := make(map[string]string)
	for _, a := range c.assets[Crypto] {
		res[strings.ToUpper(a.TechnicalSymbol)] = a.ProviderSymbol
	}
	return res
}

func DefaultCatalog() *Catalog {
	return NewCatalog([]Asset{
		{Symbol: "BTC", Name: "Bitcoin", TechnicalSymbol: "BTC", ProviderSymbol: "bitcoin", Class: Crypto},
		{Symbol: "ETH", Name: "Ethereum", TechnicalSymbol: "ETH", ProviderSymbol: "ethereum", Class: Crypto},
		{Symbol: "SOL", Name: "Solana", TechnicalSymbol: "SOL", ProviderSymbol: "solana", Class: Crypto},
		{Symbol: "BNB", Name: "BNB", TechnicalSymbol: "BNB", ProviderSymbol: "binancecoin", Class: Crypto},
		{Symbol: "XRP", Name: "XRP", TechnicalSymbol: "XRP", ProviderSymbol: "ripple", Class: Crypto},
		{Symbol: "ADA", Name: "Cardano", TechnicalSymbol: "ADA", ProviderSymbol: "cardano", Class: Crypto},
		{Symbol: "AVAX", Name: "Avalanche", TechnicalSymbol: "AVAX", ProviderSymbol: "avalanche-2", Class: Crypto},
		{Symbol: "DOT", Name: "Polkadot", TechnicalSymbol: "DOT", ProviderSymbol: "polkadot", Class: Crypto},
		{Symbol: "MATIC", Name: "Polygon", TechnicalSymbol: "MATIC", ProviderSymbol: "matic-network", Class: Crypto},
		{Symbol: "LINK", Name: "Chainlink", TechnicalSymbol: "LINK", ProviderSymbol: "chainlink", Class: Crypto},

		{Symbol: "AAPL", Name: "Apple Inc.", TechnicalSymbol: "AAPL", Class: Stocks},
		{Symbol: "MSFT", Name: "Microsoft Corporation", TechnicalSymbol: "MSFT", Class: Stocks},
		{Symbol: "GOOGL", Name: "Alphabet Inc.", TechnicalSymbol: "GOOGL", Class: Stocks},
		{Symbol: "TSLA", Name: "Tesla, Inc.", TechnicalSymbol: "TSLA", Class: Stocks},
		{Symbol: "AMZN", Name: "Amazon.com, Inc.", TechnicalSymbol: "AMZN", Class: Stocks},
		{Symbol: "META", Name: "Meta Platforms, Inc.", TechnicalSymbol: "META", Class: Stocks},
		{Symbol: "NVDA", Name: "NVIDIA Corporation", TechnicalSymbol: "NVDA", Class: Stocks},
		{Symbol: "JPM", Name: "JPMorgan Chase & Co.", TechnicalSymbol: "JPM", Class: Stocks},
		{Symbol: "V", Name: "Visa Inc.", TechnicalSymbol: "V", Class: Stocks},
		{Symbol: "JNJ", Name: "Johnson & Johnson", TechnicalSymbol: "JNJ", Class: Stocks},

		{Symbol: "SPY", Name: "SPDR S&P 500 ETF", TechnicalSymbol: "SPY", Class: Etfs},
		{Symbol: "QQQ", Name: "Invesco QQQ Trust", TechnicalSymbol: "QQQ", Class: Etfs},
		{Symbol: "IWM", Name: "iShares Russell 2000 ETF", TechnicalSymbol: "IWM", Class: Etfs},
		{Symbol: "EFA", Name: "iShares MSCI EAFE ETF", TechnicalSymbol: "EFA", Class: Etfs},
		{Symbol: "GLD", Name: "SPDR Gold Shares", TechnicalSymbol: "GLD", Class: Etfs},
		{Symbol: "VTI", Name: "Vanguard Total Stock Market ETF", TechnicalSymbol: "VTI", Class: Etfs},
		{Symbol: "AGG", Name: "iShares Core U.S. Aggregate Bond ETF", TechnicalSymbol: "AGG", Class: Etfs},
		{Symbol: "EEM", Name: "iShares MSCI Emerging Markets ETF", TechnicalSymbol: "EEM", Class: Etfs},

		// alpha vantage has no futures, each contract is priced through a tracking fund
		{Symbol: "GOLD", Name: "Gold Futures", TechnicalSymbol: "GC=F", ProviderSymbol: "IAU", Class: Commodities},
		{Symbol: "SILVER", Name: "Silver Futures", TechnicalSymbol: "SI=F", ProviderSymbol: "SLV", Class: Commodities},
		{Symbol: "OIL", Name: "Crude Oil Futures", TechnicalSymbol: "CL=F", ProviderSymbol: "USO", Class: Commodities},
		{Symbol: "NATGAS", Name: "Natural Gas Futures", TechnicalSymbol: "NG=F", ProviderSymbol: "UNG", Class: Commodities},
		{Symbol: "CORN", Name: "Corn Futures", TechnicalSymbol: "ZC=F", ProviderSymbol: "CORN", Class: Commodities},
		{Symbol: "WHEAT", Name: "Wheat Futures", TechnicalSymbol: "ZW=F", ProviderSymbol: "WEAT", Class: Commodities},
	})
}
