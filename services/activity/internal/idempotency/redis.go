package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/media-platform/internal/platform/metrics"
)

const redisKeyPrefix = "activity:processed:"

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisStore(url string, ttl time.Duration) *redisStore {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	return &redisStore{client: redis.NewClient(opts), ttl: ttl}
}

func (s *redisStore) Check(ctx context.Context, eventID string) (bool, error) {
	set, err := s.client.SetNX(ctx, redisKeyPrefix+eventID, 1, s.ttl).Result()
	metrics.RecordStoreOp("redis", "idempotency_check", err)
	if err != nil {
		return false, err
	}
	// SetNX reports true when the key was written, i.e. first sighting.
	return !set, nil
}

func (s *redisStore) Forget(ctx context.Context, eventID string) error {
	return s.client.Del(ctx, redisKeyPrefix+eventID).Err()
}

func (s *redisStore) Close() error { return s.client.Close() }
