package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/rpgo/btc-annuity/internal/domain"
)

// DefaultRedisTTL is used when a RedisCache is created with a zero TTL.
const DefaultRedisTTL = 24 * time.Hour

// RedisCache implements Cache on a Redis server so results survive
// restarts and can be shared between server replicas.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// NewRedisCacheFromURL parses a redis:// URL and connects lazily.
func NewRedisCacheFromURL(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return NewRedisCache(redis.NewClient(opts), ttl), nil
}

func (c *RedisCache) Get(ctx context.Context, hash string) (domain.ScenarioResults, bool, error) {
	data, err := c.rdb.Get(ctx, resultKey(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached results: %w", err)
	}

	results, err := decodeResults(data)
	if err != nil {
		// Treat undecodable entries as a miss; the next Put overwrites them.
		return nil, false, nil
	}
	return results, true, nil
}

func (c *RedisCache) Put(ctx context.Context, hash string, results domain.ScenarioResults) error {
	data, err := encodeResults(results)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, resultKey(hash), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache results: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying client.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func resultKey(hash string) string { return fmt.Sprintf("scenario:%s", hash) }

func encodeResults(results domain.ScenarioResults) ([]byte, error) {
	data, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}
	return data, nil
}

func decodeResults(data []byte) (domain.ScenarioResults, error) {
	var results domain.ScenarioResults
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	return results, nil
}
