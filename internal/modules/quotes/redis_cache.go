package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/finvoice/riskengine/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

const redisKeyPrefix = "riskengine:quote:"

// redisClient is the subset of *redis.Client used by RedisCache.
type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// redisEntry is the msgpack wire form of a cache entry.
type redisEntry struct {
	Symbol    string `msgpack:"s"`
	Price     string `msgpack:"p"`
	Currency  string `msgpack:"c"`
	Source    string `msgpack:"src"`
	FetchedAt int64  `msgpack:"f"`
	ExpiresAt int64  `msgpack:"e"`
}

// RedisCache stores msgpack encoded quotes in Redis. Keys live for
// ttl + retention so expired entries stay available as a stale fallback.
type RedisCache struct {
	client    redisClient
	retention time.Duration
	now       func() time.Time
}

// NewRedisCache creates a quote cache on top of a go-redis client
func NewRedisCache(client redisClient, retention time.Duration) *RedisCache {
	return &RedisCache{client: client, retention: retention, now: time.Now}
}

func redisKey(symbol string) string {
	return redisKeyPrefix + symbol
}

// GetMany fetches all symbols with a single MGET.
func (c *RedisCache) GetMany(ctx context.Context, symbols []string) (map[string]Entry, error) {
	result := make(map[string]Entry, len(symbols))
	if len(symbols) == 0 {
		return result, nil
	}

	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = redisKey(s)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	for i, raw := range values {
		if i >= len(symbols) || raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}

		var wire redisEntry
		if err := msgpack.Unmarshal([]byte(s), &wire); err != nil {
			continue
		}
		price, err := decimal.NewFromString(wire.Price)
		if err != nil {
			continue
		}

		result[symbols[i]] = Entry{
			Quote: domain.Quote{
				Symbol:    wire.Symbol,
				Price:     price,
				Currency:  wire.Currency,
				Source:    wire.Source,
				FetchedAt: time.Unix(0, wire.FetchedAt).UTC(),
			},
			ExpiresAt: time.Unix(0, wire.ExpiresAt).UTC(),
		}
	}

	return result, nil
}

// Set stores quote with expiry now + ttl.
func (c *RedisCache) Set(ctx context.Context, quote domain.Quote, ttl time.Duration) error {
	wire := redisEntry{
		Symbol:    quote.Symbol,
		Price:     quote.Price.String(),
		Currency:  quote.Currency,
		Source:    quote.Source,
		FetchedAt: quote.FetchedAt.UnixNano(),
		ExpiresAt: c.now().Add(ttl).UnixNano(),
	}

	payload, err := msgpack.Marshal(&wire)
	if err != nil {
		return fmt.Errorf("failed to encode quote for %s: %w", quote.Symbol, err)
	}

	if err := c.client.Set(ctx, redisKey(quote.Symbol), payload, ttl+c.retention).Err(); err != nil {
		return fmt.Errorf("redis set failed for %s: %w", quote.Symbol, err)
	}
	return nil
}
