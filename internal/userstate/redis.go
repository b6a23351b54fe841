package userstate

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/media-platform/internal/platform/metrics"
)

const redisKeyPrefix = "userstate:"

type RedisStore struct {
	client *redis.Client
	// TTL expires idle users; zero keeps state forever.
	TTL time.Duration
}

func NewRedisStore(url string) *RedisStore {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	return &RedisStore{client: redis.NewClient(opts)}
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(c *redis.Client) *RedisStore {
	return &RedisStore{client: c}
}

func (r *RedisStore) Load(ctx context.Context, userID string) (State, error) {
	s, err := r.load(ctx, r.client, userID)
	if errors.Is(err, ErrNotFound) {
		metrics.RecordStoreOp("redis", "load", nil)
		return State{}, err
	}
	metrics.RecordStoreOp("redis", "load", err)
	return s, err
}

func (r *RedisStore) load(ctx context.Context, c redis.Cmdable, userID string) (State, error) {
	b, err := c.Get(ctx, redisKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, err
	}
	return decode(b)
}

// Update watches the user's key so a write from another process between
// our read and our write aborts the transaction, which is then retried.
func (r *RedisStore) Update(ctx context.Context, userID string, fn UpdateFunc) (State, error) {
	key := redisKeyPrefix + userID
	var out State
	txf := func(tx *redis.Tx) error {
		s, err := r.load(ctx, tx, userID)
		found := err == nil
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if !fn(&s, found) {
			out = s
			return nil
		}
		b, err := encode(s)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, r.TTL)
			return nil
		})
		if err == nil {
			out = s
		}
		return err
	}

	err := ErrContention
	for i := 0; i < maxUpdateRetries; i++ {
		err = r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, redis.TxFailedErr) {
		err = ErrContention
	}
	metrics.RecordStoreOp("redis", "update", err)
	if err != nil {
		return State{}, err
	}
	return out, nil
}

func (r *RedisStore) Delete(ctx context.Context, userID string) error {
	err := r.client.Del(ctx, redisKeyPrefix+userID).Err()
	metrics.RecordStoreOp("redis", "delete", err)
	return err
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error { return r.client.Close() }
