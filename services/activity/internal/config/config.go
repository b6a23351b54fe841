// Package config loads activity-worker settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	NATSURL          string
	RedisURL         string
	DatabaseURL      string
	BadgerPath       string
	UserStateBackend string

	BatchSize      int
	FetchWait      time.Duration
	MaxDeliver     int
	IdempotencyTTL time.Duration
}

func Load() Config {
	return Config{
		NATSURL:          strings.TrimSpace(os.Getenv("NATS_URL")),
		RedisURL:         strings.TrimSpace(os.Getenv("REDIS_URL")),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		BadgerPath:       strings.TrimSpace(os.Getenv("BADGER_PATH")),
		UserStateBackend: strings.ToLower(strings.TrimSpace(os.Getenv("USER_STATE_BACKEND"))),

		BatchSize:      envInt("WORKER_BATCH_SIZE", 50),
		FetchWait:      envDuration("WORKER_FETCH_WAIT", 2*time.Second),
		MaxDeliver:     envInt("WORKER_MAX_DELIVER", 5),
		IdempotencyTTL: envDuration("IDEMPOTENCY_TTL", 72*time.Hour),
	}
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
