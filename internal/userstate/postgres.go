package userstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/media-platform/internal/platform/db"
	"github.com/example/media-platform/internal/platform/metrics"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS user_state (
	user_id    TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps one JSONB document per user.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := db.OpenURL(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("userstate: open postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("userstate: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Load(ctx context.Context, userID string) (State, error) {
	var b []byte
	err := p.pool.QueryRow(ctx, `SELECT state FROM user_state WHERE user_id = $1`, userID).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.RecordStoreOp("postgres", "load", nil)
		return State{}, ErrNotFound
	}
	metrics.RecordStoreOp("postgres", "load", err)
	if err != nil {
		return State{}, err
	}
	return decode(b)
}

// Update serializes writers of one user with a transaction-scoped advisory
// lock. A row lock would not cover the first write for a new user.
func (p *PostgresStore) Update(ctx context.Context, userID string, fn UpdateFunc) (State, error) {
	s, err := p.update(ctx, userID, fn)
	metrics.RecordStoreOp("postgres", "update", err)
	return s, err
}

func (p *PostgresStore) update(ctx context.Context, userID string, fn UpdateFunc) (State, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return State{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return State{}, fmt.Errorf("lock user state: %w", err)
	}

	var s State
	var b []byte
	found := true
	err = tx.QueryRow(ctx, `SELECT state FROM user_state WHERE user_id = $1`, userID).Scan(&b)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		found = false
	case err != nil:
		return State{}, err
	default:
		if s, err = decode(b); err != nil {
			return State{}, err
		}
	}

	if !fn(&s, found) {
		return s, nil
	}
	if b, err = encode(s); err != nil {
		return State{}, err
	}
	const q = `INSERT INTO user_state (user_id, state, updated_at)
	           VALUES ($1, $2, $3)
	           ON CONFLICT (user_id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`
	if _, err := tx.Exec(ctx, q, userID, b, s.UpdatedAt); err != nil {
		return State{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return State{}, err
	}
	return s, nil
}

func (p *PostgresStore) Delete(ctx context.Context, userID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM user_state WHERE user_id = $1`, userID)
	metrics.RecordStoreOp("postgres", "delete", err)
	return err
}

func (p *PostgresStore) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
