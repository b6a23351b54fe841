package userstate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ErrNotFound is returned by Load for a user with no stored state.
var ErrNotFound = errors.New("userstate: not found")

// Store is the key-value contract every backend implements. Values are
// whole-state documents keyed by user id; there are no partial updates.
type Store interface {
	Load(ctx context.Context, userID string) (State, error)
	// Update is an atomic read-modify-write of one user's state, safe
	// against writers in other processes sharing the backend. fn gets the
	// stored state (found is false for a new user) and reports whether it
	// changed anything; nothing is written when it did not. fn may run more
	// than once when a concurrent write forces a retry.
	Update(ctx context.Context, userID string, fn UpdateFunc) (State, error)
	Delete(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
	Close() error
}

type UpdateFunc func(s *State, found bool) bool

// maxUpdateRetries bounds optimistic retries under write contention.
const maxUpdateRetries = 10

// ErrContention is returned when an update kept losing to concurrent writers.
var ErrContention = errors.New("userstate: too much write contention")

type Config struct {
	// Backend forces one of redis, postgres, badger or memory. Empty picks
	// the first one configured in that order.
	Backend     string
	RedisURL    string
	DatabaseURL string
	BadgerPath  string
	IsProd      bool
}

// NewStore creates the configured store. In production an in-memory store
// is refused.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		switch {
		case cfg.RedisURL != "":
			backend = "redis"
		case cfg.DatabaseURL != "":
			backend = "postgres"
		case cfg.BadgerPath != "":
			backend = "badger"
		default:
			backend = "memory"
		}
	}

	switch backend {
	case "redis":
		if cfg.RedisURL == "" {
			return nil, errors.New("userstate: redis backend requires REDIS_URL")
		}
		return NewRedisStore(cfg.RedisURL), nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("userstate: postgres backend requires DATABASE_URL")
		}
		return OpenPostgresStore(ctx, cfg.DatabaseURL)
	case "badger":
		if cfg.BadgerPath == "" {
			return nil, errors.New("userstate: badger backend requires BADGER_PATH")
		}
		return OpenBadgerStore(cfg.BadgerPath)
	case "memory":
		if cfg.IsProd {
			return nil, errors.New("userstate: production requires REDIS_URL, DATABASE_URL or BADGER_PATH; in-memory store is not allowed")
		}
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("userstate: unknown backend %q", cfg.Backend)
}

func encode(s State) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode user state: %w", err)
	}
	return b, nil
}

func decode(b []byte) (State, error) {
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return State{}, fmt.Errorf("decode user state: %w", err)
	}
	return s, nil
}
