package planpricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache stores JSON encoded plan data. Get reports false on a miss.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// NoopCache disables caching.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string, any) (bool, error)        { return false, nil }
func (NoopCache) Set(context.Context, string, any, time.Duration) error { return nil }
func (NoopCache) Delete(context.Context, ...string) error               { return nil }

// RedisConfig holds connection settings for RedisCache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache implements Cache on Redis.
type RedisCache struct {
	client     *redis.Client
	ownsClient bool
	logger     *zap.Logger
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("planpricing: connect redis: %w", err)
	}

	cache := NewRedisCacheWithClient(client, logger)
	cache.ownsClient = true
	return cache, nil
}

// NewRedisCacheWithClient wraps an existing client; the caller keeps ownership.
func NewRedisCacheWithClient(client *redis.Client, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("planpricing cache miss", zap.String("key", key))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		_ = c.client.Del(ctx, key)
		return false, fmt.Errorf("redis decode %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping reports Redis reachability for readiness checks.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client when the cache created it.
func (c *RedisCache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}
