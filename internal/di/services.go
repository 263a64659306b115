package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/finvoice/riskengine/internal/clientdata"
	"github.com/finvoice/riskengine/internal/clients/alphavantage"
	"github.com/finvoice/riskengine/internal/clients/exchangerate"
	"github.com/finvoice/riskengine/internal/clients/finnhub"
	"github.com/finvoice/riskengine/internal/clients/yahoo"
	"github.com/finvoice/riskengine/internal/config"
	"github.com/finvoice/riskengine/internal/modules/allocation"
	"github.com/finvoice/riskengine/internal/modules/crisis"
	"github.com/finvoice/riskengine/internal/modules/holdings"
	"github.com/finvoice/riskengine/internal/modules/portfolio"
	portfoliohandlers "github.com/finvoice/riskengine/internal/modules/portfolio/handlers"
	"github.com/finvoice/riskengine/internal/modules/quotes"
	"github.com/finvoice/riskengine/internal/modules/risk"
	"github.com/finvoice/riskengine/internal/modules/snapshots"
	"github.com/finvoice/riskengine/internal/modules/stress"
	"github.com/finvoice/riskengine/internal/modules/valuation"
)

// InitializeServices creates clients, repositories and services in
// dependency order
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.ClientDataRepo = clientdata.NewRepository(container.CacheDB.Conn())

	// Price source adapter
	cache, err := newQuoteCache(ctx, container, cfg, log)
	if err != nil {
		return err
	}
	providers := quoteProviders(cfg, log)
	container.QuoteService = quotes.NewService(
		cache,
		providers,
		quotes.NewSyntheticProvider(nil, cfg.BaseCurrency),
		quotes.Config{
			TTL:              cfg.Quotes.TTL,
			StaleRetention:   cfg.Quotes.StaleRetention,
			ProviderTimeout:  cfg.Quotes.ProviderTimeout,
			AggregateTimeout: cfg.Quotes.AggregateTimeout,
			Concurrency:      cfg.Quotes.Concurrency,
			BaseCurrency:     cfg.BaseCurrency,
		},
		log,
	)
	log.Info().Strs("providers", container.QuoteService.Providers()).Str("cache", cfg.Quotes.CacheBackend).Msg("Quote service initialized")

	// Valuation
	container.RateClient = exchangerate.NewClient(container.ClientDataRepo, log)
	loc, err := time.LoadLocation(cfg.Valuation.MarketTimezone)
	if err != nil {
		return fmt.Errorf("failed to load market timezone: %w", err)
	}
	container.Calculator = valuation.NewCalculator(container.QuoteService, container.RateClient, valuation.Config{
		BaseCurrency:      cfg.BaseCurrency,
		DayChangeFraction: cfg.Valuation.DayChangeFraction,
		Location:          loc,
	}, log)

	// Risk, stress and allocation
	container.StressEngine = stress.NewEngine(stress.DefaultScenarios(), log)
	riskCfg := risk.DefaultConfig(cfg.BaseCurrency)
	container.RiskEngine = risk.NewEngine(riskCfg, container.StressEngine, log)
	container.Optimizer = allocation.NewOptimizer(
		allocation.DefaultTables(),
		allocation.DefaultUniverse(),
		riskCfg.Volatility,
		riskCfg.Correlation,
		log,
	)

	// Holdings
	if err := initializeHoldings(ctx, container, cfg, log); err != nil {
		return err
	}

	// Crisis feed
	if cfg.Kafka.Enabled() {
		feed, err := crisis.NewKafkaFeed(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.CrisisTopic, cfg.Kafka.EventTTL, log)
		if err != nil {
			return fmt.Errorf("failed to create kafka crisis feed: %w", err)
		}
		container.KafkaFeed = feed
		container.CrisisFeed = feed.StaticFeed
	} else {
		container.CrisisFeed = crisis.NewStaticFeed(cfg.Kafka.EventTTL, log)
	}

	// Snapshots
	container.SnapshotStore = snapshots.NewStore(container.PortfolioDB.Conn(), log)
	if cfg.Archive.Enabled() {
		uploader, err := snapshots.NewS3Uploader(ctx, snapshots.S3Config{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
		})
		if err != nil {
			return fmt.Errorf("failed to create archive uploader: %w", err)
		}
		container.Archiver = snapshots.NewArchiver(container.SnapshotStore, uploader, cfg.Archive.Bucket, log)
	}

	// Engine facade and HTTP handlers
	container.Engine = portfolio.NewEngine(portfolio.Dependencies{
		Holdings:  container.Holdings,
		Crisis:    container.CrisisFeed,
		Valuator:  container.Calculator,
		Risk:      container.RiskEngine,
		Stress:    container.StressEngine,
		Optimizer: container.Optimizer,
		Snapshots: container.SnapshotStore,
	}, log)
	container.PortfolioHTTP = portfoliohandlers.NewHandler(container.Engine, cfg.StreamInterval, log)

	log.Info().Msg("Services initialized")
	return nil
}

func newQuoteCache(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) (quotes.Cache, error) {
	switch cfg.Quotes.CacheBackend {
	case "memory":
		return quotes.NewMemoryCache(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			// Cache failures degrade lookups to misses, so an unreachable
			// redis is not fatal at startup.
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis quote cache unreachable")
		}
		container.RedisClient = client
		return quotes.NewRedisCache(client, cfg.Quotes.StaleRetention), nil
	case "sqlite":
		return quotes.NewSQLiteCache(container.ClientDataRepo), nil
	default:
		return nil, fmt.Errorf("unknown quote cache backend %q", cfg.Quotes.CacheBackend)
	}
}

// quoteProviders builds the guarded provider chain in configured order.
// Providers that need an API key are left out when none is set.
func quoteProviders(cfg *config.Config, log zerolog.Logger) []quotes.Provider {
	var chain []quotes.Provider
	for _, name := range cfg.Quotes.Providers {
		var p quotes.Provider
		switch name {
		case "yahoo":
			p = yahoo.NewClient(log)
		case "finnhub":
			if cfg.Quotes.FinnhubAPIKey == "" {
				log.Info().Msg("FINNHUB_API_KEY not set, finnhub provider disabled")
				continue
			}
			p = finnhub.NewClient(cfg.Quotes.FinnhubAPIKey, log)
		case "alphavantage":
			if cfg.Quotes.AlphaVantageAPIKey == "" {
				log.Info().Msg("ALPHAVANTAGE_API_KEY not set, alphavantage provider disabled")
				continue
			}
			p = alphavantage.NewClient(cfg.Quotes.AlphaVantageAPIKey, log)
		default:
			continue
		}
		chain = append(chain, quotes.Guard(p, cfg.Quotes.RatePerSecond, log))
	}
	return chain
}

func initializeHoldings(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	switch cfg.Holdings.Backend {
	case "postgres":
		pool, err := holdings.NewPostgresPool(ctx, cfg.Holdings.PostgresDSN)
		if err != nil {
			return fmt.Errorf("failed to connect to holdings postgres: %w", err)
		}
		container.PostgresPool = pool
		container.Holdings = holdings.NewPostgresProvider(pool, log)
	default:
		container.HoldingsRepo = holdings.NewRepository(container.PortfolioDB.Conn(), log)
		container.Holdings = container.HoldingsRepo
	}
	return nil
}
