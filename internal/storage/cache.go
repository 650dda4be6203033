package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/IshaanNene/NewsGoat/internal/ai"
	"github.com/IshaanNene/NewsGoat/internal/config"
	"github.com/IshaanNene/NewsGoat/internal/types"
)

// RedisCache keeps enrichment results in Redis so re-crawled articles
// are not sent to the model again.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache connects to cfg.Addr and verifies the connection.
func NewRedisCache(ctx context.Context, cfg *config.CacheConfig, logger *slog.Logger) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, &types.StorageError{Backend: "redis", Err: fmt.Errorf("ping %s: %w", cfg.Addr, err)}
	}

	return newRedisCache(rdb, cfg, logger), nil
}

func newRedisCache(rdb *redis.Client, cfg *config.CacheConfig, logger *slog.Logger) *RedisCache {
	return &RedisCache{
		rdb:    rdb,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		logger: logger.With("component", "redis_cache"),
	}
}

func (c *RedisCache) key(k string) string { return c.prefix + k }

// Get returns the cached enrichment for key, if any.
func (c *RedisCache) Get(ctx context.Context, key string) (ai.Enrichment, bool, error) {
	data, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ai.Enrichment{}, false, nil
	}
	if err != nil {
		return ai.Enrichment{}, false, &types.StorageError{Backend: "redis", Err: err}
	}

	var e ai.Enrichment
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("discarding corrupt cache entry", "key", key, "error", err)
		return ai.Enrichment{}, false, nil
	}
	return e, e.Title != "" && e.Body != "", nil
}

// Set stores e under key with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, e ai.Enrichment) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		return &types.StorageError{Backend: "redis", Err: err}
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
