package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/media-platform/internal/platform/db"
	"github.com/example/media-platform/internal/platform/metrics"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS processed_events (
	event_id   TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type postgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func openPostgresStore(ctx context.Context, dsn string, ttl time.Duration) (*postgresStore, error) {
	pool, err := db.OpenURL(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("idempotency: open postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("idempotency: migrate: %w", err)
	}
	return &postgresStore{pool: pool, ttl: ttl}, nil
}

// Check uses INSERT ... ON CONFLICT to deduplicate atomically. A row older
// than the TTL is treated as expired and claimed again.
func (s *postgresStore) Check(ctx context.Context, eventID string) (bool, error) {
	const q = `INSERT INTO processed_events (event_id, created_at)
	           VALUES ($1, now())
	           ON CONFLICT (event_id) DO UPDATE SET created_at = now()
	           WHERE processed_events.created_at < now() - make_interval(secs => $2)`

	tag, err := s.pool.Exec(ctx, q, eventID, s.ttl.Seconds())
	metrics.RecordStoreOp("postgres", "idempotency_check", err)
	if err != nil {
		return false, err
	}
	// RowsAffected == 0 means a live row already existed.
	return tag.RowsAffected() == 0, nil
}

func (s *postgresStore) Forget(ctx context.Context, eventID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM processed_events WHERE event_id = $1`, eventID)
	return err
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
