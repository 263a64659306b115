package di

import (
	"context"
	"testing"
	"time"

	"github.com/finvoice/riskengine/internal/config"
	"github.com/finvoice/riskengine/internal/modules/holdings"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir:      t.TempDir(),
		Port:         8001,
		BaseCurrency: "INR",
		Quotes: config.QuotesConfig{
			CacheBackend:     "sqlite",
			TTL:              5 * time.Minute,
			StaleRetention:   24 * time.Hour,
			ProviderTimeout:  5 * time.Second,
			AggregateTimeout: 15 * time.Second,
			Concurrency:      4,
			Providers:        []string{"yahoo", "finnhub", "alphavantage"},
			RatePerSecond:    5,
			FinnhubAPIKey:    "test-key",
		},
		Holdings: config.HoldingsConfig{Backend: "sqlite"},
		Kafka:    config.KafkaConfig{EventTTL: time.Hour},
		Archive:  config.ArchiveConfig{Schedule: "0 30 2 * * *"},
		Valuation: config.ValuationConfig{
			DayChangeFraction: 0.015,
			MarketTimezone:    "Asia/Kolkata",
		},
		SnapshotSchedule: "0 0 * * * *",
		StreamInterval:   time.Second,
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.PortfolioDB)
	assert.NotNil(t, container.CacheDB)
	assert.NotNil(t, container.Engine)
	assert.NotNil(t, container.PortfolioHTTP)
	assert.NotNil(t, container.CrisisFeed)
	assert.Nil(t, container.KafkaFeed)
	assert.Nil(t, container.Archiver)
	assert.Nil(t, container.RedisClient)
	assert.IsType(t, &holdings.Repository{}, container.Holdings)

	// alphavantage has no key
	assert.Equal(t, []string{"yahoo", "finnhub"}, container.QuoteService.Providers())

	assert.NotNil(t, jobs.PortfolioSnapshot)
	assert.NotNil(t, jobs.QuoteCacheCleanup)
	assert.NotNil(t, jobs.CheckWALCheckpoints)
	assert.Nil(t, jobs.SnapshotArchive)
}

func TestWire_EmptyPortfolioEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.Quotes.CacheBackend = "memory"

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	v, err := container.Engine.Valuation(context.Background(), "pf-empty", false)
	require.NoError(t, err)
	assert.Equal(t, 0, v.HoldingCount)
	assert.True(t, v.TotalValue.IsZero())

	assert.NoError(t, jobs.QuoteCacheCleanup.Run())
	assert.NoError(t, jobs.CheckWALCheckpoints.Run())
}

func TestWire_InvalidSnapshotSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.SnapshotSchedule = "every hour"

	_, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "failed to register jobs")
}

func TestInitializeDatabases(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir()}

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.Equal(t, "portfolio", container.PortfolioDB.Name())
	assert.Equal(t, "cache", container.CacheDB.Name())
	assert.Len(t, container.Databases(), 2)
}
