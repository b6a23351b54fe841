package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/example/media-platform/internal/platform/metrics"
)

const redisKey = "settings:site"

// MemoryStore keeps settings in process. Development only.
type MemoryStore struct {
	mu sync.Mutex
	st Settings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: Defaults()}
}

func (m *MemoryStore) Get(ctx context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.st), nil
}

func (m *MemoryStore) Update(ctx context.Context, fn func(*Settings) error) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := clone(m.st)
	if err := fn(&next); err != nil {
		return Settings{}, err
	}
	m.st = next
	return clone(next), nil
}

// RedisStore keeps the settings document under one key and uses WATCH for
// optimistic concurrency between replicas.
type RedisStore struct {
	client     *redis.Client
	maxRetries int
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, maxRetries: 5}
}

func (r *RedisStore) Get(ctx context.Context) (Settings, error) {
	st, err := r.load(ctx, r.client)
	metrics.RecordStoreOp("redis", "settings_get", err)
	return st, err
}

func (r *RedisStore) load(ctx context.Context, c redis.Cmdable) (Settings, error) {
	raw, err := c.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("settings get: %w", err)
	}
	var st Settings
	if err := json.Unmarshal(raw, &st); err != nil {
		return Settings{}, fmt.Errorf("settings decode: %w", err)
	}
	return st, nil
}

func (r *RedisStore) Update(ctx context.Context, fn func(*Settings) error) (Settings, error) {
	var out Settings
	txf := func(tx *redis.Tx) error {
		st, err := r.load(ctx, tx)
		if err != nil {
			return err
		}
		if err := fn(&st); err != nil {
			return err
		}
		raw, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("settings encode: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, redisKey, raw, 0)
			return nil
		})
		if err == nil {
			out = st
		}
		return err
	}

	var err error
	for i := 0; i < r.maxRetries; i++ {
		err = r.client.Watch(ctx, txf, redisKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	metrics.RecordStoreOp("redis", "settings_update", err)
	if err != nil {
		return Settings{}, err
	}
	return out, nil
}

func (r *RedisStore) Close() error { return r.client.Close() }

// NewStore picks redis when a URL is configured. Production refuses the
// in-memory fallback since replicas would disagree.
func NewStore(redisURL string, isProd bool) (Store, error) {
	if redisURL != "" {
		return NewRedisStore(redisURL)
	}
	if isProd {
		return nil, errors.New("settings: REDIS_URL is required in production")
	}
	return NewMemoryStore(), nil
}

func clone(s Settings) Settings {
	out := s
	if s.FeaturedItemID != nil {
		id := *s.FeaturedItemID
		out.FeaturedItemID = &id
	}
	if s.Lockdown.Until != nil {
		u := *s.Lockdown.Until
		out.Lockdown.Until = &u
	}
	out.Announcements = append([]Announcement{}, s.Announcements...)
	out.ProxySources = append([]ProxySource{}, s.ProxySources...)
	out.Activity = append([]ActivityEntry{}, s.Activity...)
	return out
}
