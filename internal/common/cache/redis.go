// internal/common/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"intelliquery/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when no fresh snapshot exists for a key.
var ErrMiss = errors.New("cache miss")

// SnapshotCache keeps board snapshots warm for the configured freshness
// window so repeated questions within that window do not re-fetch the
// boards. The pipeline itself stays stateless; this is the only place a
// snapshot outlives a single query.
type SnapshotCache struct {
	Client *redis.Client
	ttl    time.Duration
}

// New creates a snapshot cache over Redis.
func New(cfg config.RedisConfig, ttl time.Duration) (*SnapshotCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	return &SnapshotCache{Client: rdb, ttl: ttl}, nil
}

// Ping tests the Redis connection.
func (c *SnapshotCache) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *SnapshotCache) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// GetJSON loads the cached value for key into dest. Returns ErrMiss when a
// fresh value does not exist.
func (c *SnapshotCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	raw, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("decode cached %s: %w", key, err)
	}
	return nil
}

// SetJSON stores value under key for the freshness window.
func (c *SnapshotCache) SetJSON(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Client.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate removes a cached snapshot.
func (c *SnapshotCache) Invalidate(ctx context.Context, keys ...string) error {
	return c.Client.Del(ctx, keys...).Err()
}
