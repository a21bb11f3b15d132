// Package cache keeps slowly changing API records (master articles, the
// market supplier catalogue) in Redis between runs.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"restodash/internal/logger"
)

// keyPrefix namespaces every key written by restodash.
const keyPrefix = "restodash:"

// Cache stores JSON encoded values.
type Cache interface {
	// Get decodes the value stored under key into out and reports whether
	// it was found.
	Get(ctx context.Context, key string, out any) (bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key string, value any) error
}

// Redis is a Cache backed by a Redis server.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedis connects to the server at redisURL (redis://host:port/db).
func NewRedis(ctx context.Context, redisURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis ping failed: %w", err)
	}

	return &Redis{
		client: client,
		ttl:    ttl,
		log:    logger.WithComponent("cache"),
	}, nil
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string, out any) (bool, error) {
	raw, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// a stale or foreign value is treated as a miss
		r.log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return false, nil
	}
	return true, nil
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, keyPrefix+key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Nop is a Cache that never stores anything.
type Nop struct{}

// Get implements Cache.
func (Nop) Get(context.Context, string, any) (bool, error) { return false, nil }

// Set implements Cache.
func (Nop) Set(context.Context, string, any) error { return nil }

// MasterArticleKey is the cache key of a master article.
func MasterArticleKey(id string) string { return "master_article:" + id }

// MarketSuppliersKey is the cache key of the market supplier catalogue.
const MarketSuppliersKey = "market_suppliers"
