// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for sqlite databases (always absolute)
	LogLevel     string
	LogPretty    bool
	Port         int
	DevMode      bool
	BaseCurrency string

	Quotes    QuotesConfig
	Redis     RedisConfig
	Holdings  HoldingsConfig
	Kafka     KafkaConfig
	Archive   ArchiveConfig
	Valuation ValuationConfig

	SnapshotSchedule string // cron expression, empty disables the snapshot job
	StreamInterval   time.Duration
}

// QuotesConfig configures the price source adapter and its cache
type QuotesConfig struct {
	CacheBackend       string // memory, sqlite or redis
	TTL                time.Duration
	StaleRetention     time.Duration
	ProviderTimeout    time.Duration
	AggregateTimeout   time.Duration
	Concurrency        int
	Providers          []string // priority order
	RatePerSecond      float64
	AlphaVantageAPIKey string
	FinnhubAPIKey      string
}

// RedisConfig holds the connection settings for the redis quote cache
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// HoldingsConfig selects where holdings are read from
type HoldingsConfig struct {
	Backend     string // sqlite or postgres
	PostgresDSN string
}

// KafkaConfig configures the crisis event consumer. Empty brokers disables it.
type KafkaConfig struct {
	Brokers     []string
	GroupID     string
	CrisisTopic string
	EventTTL    time.Duration
}

// Enabled reports whether the kafka crisis feed should be started
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// ArchiveConfig configures snapshot export to S3-compatible storage
type ArchiveConfig struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Schedule  string
}

// Enabled reports whether snapshot archiving is configured
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// ValuationConfig holds valuation approximations
type ValuationConfig struct {
	DayChangeFraction float64
	MarketTimezone    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir, err := filepath.Abs(getEnv("RISKENGINE_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:      dataDir,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogPretty:    getEnvAsBool("LOG_PRETTY", true),
		Port:         getEnvAsInt("HTTP_PORT", 8001),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		BaseCurrency: strings.ToUpper(getEnv("BASE_CURRENCY", "INR")),
		Quotes: QuotesConfig{
			CacheBackend:       strings.ToLower(getEnv("QUOTE_CACHE_BACKEND", "sqlite")),
			TTL:                getEnvAsDuration("QUOTE_CACHE_TTL", 5*time.Minute),
			StaleRetention:     getEnvAsDuration("QUOTE_STALE_RETENTION", 24*time.Hour),
			ProviderTimeout:    getEnvAsDuration("QUOTE_PROVIDER_TIMEOUT", 5*time.Second),
			AggregateTimeout:   getEnvAsDuration("QUOTE_AGGREGATE_TIMEOUT", 15*time.Second),
			Concurrency:        getEnvAsInt("QUOTE_CONCURRENCY", 8),
			Providers:          getEnvAsList("QUOTE_PROVIDERS", []string{"yahoo", "finnhub", "alphavantage"}),
			RatePerSecond:      getEnvAsFloat("PROVIDER_RATE_PER_SECOND", 5),
			AlphaVantageAPIKey: getEnv("ALPHAVANTAGE_API_KEY", ""),
			FinnhubAPIKey:      getEnv("FINNHUB_API_KEY", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Holdings: HoldingsConfig{
			Backend:     strings.ToLower(getEnv("HOLDINGS_BACKEND", "sqlite")),
			PostgresDSN: getEnv("POSTGRES_DSN", ""),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvAsList("KAFKA_BROKERS", nil),
			GroupID:     getEnv("KAFKA_GROUP_ID", "riskengine"),
			CrisisTopic: getEnv("KAFKA_CRISIS_TOPIC", "crisis-events"),
			EventTTL:    getEnvAsDuration("CRISIS_EVENT_TTL", 24*time.Hour),
		},
		Archive: ArchiveConfig{
			Bucket:    getEnv("ARCHIVE_BUCKET", ""),
			Endpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
			Region:    getEnv("ARCHIVE_REGION", "auto"),
			AccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
			SecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),
			Schedule:  getEnv("ARCHIVE_SCHEDULE", "0 30 2 * * *"),
		},
		Valuation: ValuationConfig{
			DayChangeFraction: getEnvAsFloat("DAY_CHANGE_FRACTION", 0.015),
			MarketTimezone:    getEnv("MARKET_TIMEZONE", "Asia/Kolkata"),
		},
		SnapshotSchedule: getEnv("SNAPSHOT_SCHEDULE", ""),
		StreamInterval:   getEnvAsDuration("STREAM_INTERVAL", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are consistent
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid HTTP_PORT %d", c.Port)
	}
	if len(c.BaseCurrency) != 3 {
		return fmt.Errorf("invalid BASE_CURRENCY %q", c.BaseCurrency)
	}

	q := c.Quotes
	switch q.CacheBackend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown QUOTE_CACHE_BACKEND %q", q.CacheBackend)
	}
	if q.TTL <= 0 || q.ProviderTimeout <= 0 || q.AggregateTimeout <= 0 {
		return fmt.Errorf("quote TTL and timeouts must be positive")
	}
	if q.AggregateTimeout < q.ProviderTimeout {
		return fmt.Errorf("QUOTE_AGGREGATE_TIMEOUT (%s) must not be shorter than QUOTE_PROVIDER_TIMEOUT (%s)",
			q.AggregateTimeout, q.ProviderTimeout)
	}
	if q.StaleRetention < 0 {
		return fmt.Errorf("QUOTE_STALE_RETENTION must not be negative")
	}
	if q.Concurrency <= 0 {
		return fmt.Errorf("QUOTE_CONCURRENCY must be positive")
	}
	for _, p := range q.Providers {
		switch p {
		case "yahoo", "finnhub", "alphavantage":
		default:
			return fmt.Errorf("unknown quote provider %q", p)
		}
	}

	switch c.Holdings.Backend {
	case "sqlite":
	case "postgres":
		if c.Holdings.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when HOLDINGS_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown HOLDINGS_BACKEND %q", c.Holdings.Backend)
	}

	if c.Valuation.DayChangeFraction < 0 || c.Valuation.DayChangeFraction > 1 {
		return fmt.Errorf("DAY_CHANGE_FRACTION must be within [0, 1]")
	}
	if _, err := time.LoadLocation(c.Valuation.MarketTimezone); err != nil {
		return fmt.Errorf("invalid MARKET_TIMEZONE: %w", err)
	}
	if c.StreamInterval <= 0 {
		return fmt.Errorf("STREAM_INTERVAL must be positive")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			items = append(items, item)
		}
	}
	return items
}
