package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	c "corr.service/api"
	av "corr.service/api/alpha_vantage"
	cg "corr.service/api/coingecko"
	"corr.service/config"
	"corr.service/core"
	"corr.service/data/cache"
	r "corr.service/data/repos"
	sm "corr.service/models"
)

func main() {
	// initialize context and signal handler, listen for interrupt and term signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	configureLogging(cfg.Logging)

	avClient := av.GetClient(cfg.Providers.AlphaVantageApiKey, c.ClientSettings{
		Timeout:           cfg.Providers.RequestTimeout,
		RequestsPerSecond: cfg.Providers.AlphaVantageRps,
		Burst:             cfg.Providers.AlphaVantageBurst,
	})
	if !cfg.Providers.AlphaVantageAdjusted {
		avClient.Series = av.TimeSeriesDaily
	}

	cgClient := cg.GetClient(cfg.Providers.CoinGeckoHost, cfg.Providers.CoinGeckoApiKey, c.ClientSettings{
		Timeout:           cfg.Providers.RequestTimeout,
		RequestsPerSecond: cfg.Providers.CoinGeckoRps,
		Burst:             cfg.Providers.CoinGeckoBurst,
	}, sm.DefaultCatalog().CoinIDs())

	var market, crypto core.PriceSource = avClient, cgClient

	// stored history is optional, without a database every fetch goes to the providers
	if cfg.DatabaseUrl != "" {
		postgresConnection, err := r.GetPostgresConnection(ctx, cfg.DatabaseUrl)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer postgresConnection.Close()

		if err := postgresConnection.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare database schema")
		}

		market = core.NewHistorySource(postgresConnection, avClient, cfg.PersistPrices)
		crypto = core.NewHistorySource(postgresConnection, cgClient, cfg.PersistPrices)
		log.Info().Bool("persist", cfg.PersistPrices).Msg("using postgres price history")
	}

	priceCache, closeCache := getPriceCache(cfg.Cache)
	defer closeCache()

	sc := core.NewServiceContext(ctx, cfg, crypto, market, priceCache)

	// get http server, makes all of the endpoints and routes
	s := core.GetHttpServer(sc)

	go func() {
		log.Info().Str("addr", s.Addr).Msg("starting correlation server")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// wait here until the context is closed (ie, ctrl+C)
	<-ctx.Done()
	log.Info().Msg("received shutdown signal, shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped successfully")
}

func configureLogging(lc config.LoggingConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(lc.Level))
	if err != nil {
		log.Warn().Str("level", lc.Level).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if lc.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func getPriceCache(cc config.CacheConfig) (cache.PriceTableCache, func()) {
	if cc.Backend != config.CacheRedis {
		return cache.NewMemoryCache(cc.MaxEntries), func() {}
	}

	client, err := cache.GetRedisClient(cc.RedisUrl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure redis cache")
	}
	log.Info().Str("backend", config.CacheRedis).Msg("using redis price cache")

	return cache.NewRedisCache(client), func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis client failed")
		}
	}
}
