// Package catalogcache caches upstream catalog responses in Redis so feed
// composition across users shares the same candidate pools.
package catalogcache

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Backend is the key/value surface the decorator needs.
type Backend interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisCache{Client: redis.NewClient(opt), TTL: ttl, Prefix: "catalog:"}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.Client.Get(ctx, c.Prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, c.Prefix+key, b, c.TTL).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error { return c.Client.Ping(ctx).Err() }

func (c *RedisCache) Close() error { return c.Client.Close() }
