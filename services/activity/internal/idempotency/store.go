// Package idempotency deduplicates interaction events redelivered by
// JetStream.
//
// Primary backend: Redis SETNX with TTL (REDIS_URL).
// Fallback: Postgres INSERT ... ON CONFLICT (DATABASE_URL).
// If neither is available, an in-memory store is used (development only).
package idempotency

import (
	"context"
	"errors"
	"time"
)

const DefaultTTL = 72 * time.Hour

// Store checks whether an event has already been processed and marks it.
type Store interface {
	// Check returns true if eventID was already processed.
	// If not seen, it atomically marks it as processed.
	Check(ctx context.Context, eventID string) (duplicate bool, err error)
	// Forget clears the mark so a failed event can be applied on redelivery.
	Forget(ctx context.Context, eventID string) error
	Close() error
}

// NewStore creates the best available store: Redis > Postgres > in-memory.
// In production the in-memory fallback is refused.
func NewStore(ctx context.Context, redisURL, databaseURL string, ttl time.Duration, isProd bool) (Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if redisURL != "" {
		return newRedisStore(redisURL, ttl), nil
	}
	if databaseURL != "" {
		return openPostgresStore(ctx, databaseURL, ttl)
	}
	if isProd {
		return nil, errors.New("production requires REDIS_URL or DATABASE_URL for idempotency; in-memory store is not allowed")
	}
	return newMemoryStore(ttl), nil
}
