package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

const (
	Prefix = "CORR"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is read from the environment with the CORR_ prefix. Fields tagged
// with a bare name (DATABASE_URL, ALPHAVANTAGE_API_KEY...) also accept the
// unprefixed variable.
type Config struct {
	Server        ServerConfig    `envconfig:"SERVER"`
	Providers     ProvidersConfig `envconfig:"PROVIDERS"`
	Cache         CacheConfig     `envconfig:"CACHE"`
	Analysis      AnalysisConfig  `envconfig:"ANALYSIS"`
	Logging       LoggingConfig   `envconfig:"LOG"`
	DatabaseUrl   string          `envconfig:"DATABASE_URL"`
	PersistPrices bool            `envconfig:"PERSIST_PRICES" default:"true"`
}

type ServerConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"90s"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"*"`
}

type ProvidersConfig struct {
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`

	AlphaVantageApiKey   string  `envconfig:"ALPHAVANTAGE_API_KEY"`
	AlphaVantageRps      float64 `envconfig:"ALPHAVANTAGE_RPS" default:"1"`
	AlphaVantageBurst    int     `envconfig:"ALPHAVANTAGE_BURST" default:"5"`
	AlphaVantageAdjusted bool    `envconfig:"ALPHAVANTAGE_ADJUSTED" default:"true"`

	CoinGeckoApiKey string  `envconfig:"COINGECKO_API_KEY"`
	CoinGeckoHost   string  `envconfig:"COINGECKO_HOST" default:"api.coingecko.com"`
	CoinGeckoRps    float64 `envconfig:"COINGECKO_RPS" default:"0.5"`
	CoinGeckoBurst  int     `envconfig:"COINGECKO_BURST" default:"5"`
}

type CacheConfig struct {
	Backend    string        `envconfig:"BACKEND" default:"memory"`
	TTL        time.Duration `envconfig:"TTL" default:"300s"`
	MaxEntries int           `envconfig:"MAX_ENTRIES" default:"128"`
	RedisUrl   string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
}

type AnalysisConfig struct {
	PairThreshold  float64 `envconfig:"PAIR_THRESHOLD" default:"0.7"`
	TopPairs       int     `envconfig:"TOP_PAIRS" default:"10"`
	MarketAsset    string  `envconfig:"MARKET_ASSET" default:"SPY"`
	RollingWindow  int     `envconfig:"ROLLING_WINDOW" default:"30"`
	MinAlignedRows int     `envconfig:"MIN_ALIGNED_ROWS" default:"10"`
}

type LoggingConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Pretty bool   `envconfig:"PRETTY" default:"false"`
}

// Load reads the given .env files (".env" when none are named) without
// overriding variables that are already set, then processes the environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Debug().Err(err).Msg(".env not loaded")
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.Cache.Backend != CacheMemory && c.Cache.Backend != CacheRedis {
		errs = append(errs, fmt.Errorf("cache backend must be %s or %s, got %q", CacheMemory, CacheRedis, c.Cache.Backend))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache ttl must be positive"))
	}
	if c.Analysis.PairThreshold < 0 || c.Analysis.PairThreshold > 1 {
		errs = append(errs, fmt.Errorf("pair threshold must be within [0, 1], got %v", c.Analysis.PairThreshold))
	}
	if c.Analysis.RollingWindow < 2 {
		errs = append(errs, fmt.Errorf("rolling window must be at least 2, got %d", c.Analysis.RollingWindow))
	}
	if c.Providers.AlphaVantageRps <= 0 || c.Providers.CoinGeckoRps <= 0 {
		errs = append(errs, errors.New("provider request rates must be positive"))
	}

	return errors.Join(errs...)
}
