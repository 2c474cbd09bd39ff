package core

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"corr.service/config"
	"corr.service/data/cache"
	sm "corr.service/models"
)

// ServiceContext carries the long lived dependencies of the service. Market
// serves stocks, ETFs and commodities, Crypto serves crypto assets.
type ServiceContext struct {
	Context   context.Context
	Config    *config.Config
	Catalog   *sm.Catalog
	Crypto    PriceSource
	Market    PriceSource
	Cache     cache.PriceTableCache
	Metrics   *Metrics
	Validator *validator.Validate

	now func() time.Time
}

// NewServiceContext fills the defaults that tests and main share.
func NewServiceContext(ctx context.Context, cfg *config.Config, crypto, market PriceSource, priceCache cache.PriceTableCache) *ServiceContext {
	return &ServiceContext{
		Context:   ctx,
		Config:    cfg,
		Catalog:   sm.DefaultCatalog(),
		Crypto:    crypto,
		Market:    market,
		Cache:     priceCache,
		Metrics:   NewMetrics(),
		Validator: sm.NewValidator(),
		now:       time.Now,
	}
}

func (sc *ServiceContext) Now() time.Time {
	if sc.now == nil {
		return time.Now()
	}
	return sc.now()
}
