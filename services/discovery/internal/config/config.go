// Package config loads discovery-service settings from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	JWTSecret []byte
	GRPCAddr  string
	NATSURL   string
	// NATSEmbedded starts an in-process JetStream server when NATS_URL is unset.
	NATSEmbedded bool
	// NATSStoreDir holds embedded JetStream data.
	NATSStoreDir string
	// AsyncWrites routes interactions through JetStream to the activity worker.
	AsyncWrites bool
	RedisURL    string
	DatabaseURL string
	BadgerPath  string
	// UserStateBackend forces one of redis, postgres, badger or memory.
	UserStateBackend string

	TMDBBaseURL        string
	TMDBAPIKey         string
	TMDBTimeout        time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	CBMaxRequests      uint32
	CBInterval         time.Duration
	CBTimeout          time.Duration
	CBFailureThreshold uint32

	CatalogCacheTTL     time.Duration
	BrowseCacheTTL      time.Duration
	CacheInvalidateSubj string
	FeedProviderTimeout time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
}

func Load() (Config, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	apiKey := strings.TrimSpace(os.Getenv("TMDB_API_KEY"))
	if apiKey == "" {
		return Config{}, errors.New("TMDB_API_KEY is required")
	}
	grpcAddr := strings.TrimSpace(os.Getenv("GRPC_ADDR"))
	if grpcAddr == "" {
		grpcAddr = ":9090"
	}
	invalidate := strings.TrimSpace(os.Getenv("CACHE_INVALIDATE_SUBJECT"))
	if invalidate == "" {
		invalidate = "cache.invalidate.catalog"
	}

	return Config{
		JWTSecret:        []byte(secret),
		GRPCAddr:         grpcAddr,
		NATSURL:          strings.TrimSpace(os.Getenv("NATS_URL")),
		NATSEmbedded:     envBool("NATS_EMBEDDED", false),
		NATSStoreDir:     envString("NATS_STORE_DIR", "./data/nats"),
		AsyncWrites:      envBool("ASYNC_WRITES", false),
		RedisURL:         strings.TrimSpace(os.Getenv("REDIS_URL")),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		BadgerPath:       strings.TrimSpace(os.Getenv("BADGER_PATH")),
		UserStateBackend: strings.ToLower(strings.TrimSpace(os.Getenv("USER_STATE_BACKEND"))),

		TMDBBaseURL:        strings.TrimSpace(os.Getenv("TMDB_BASE_URL")),
		TMDBAPIKey:         apiKey,
		TMDBTimeout:        envDuration("TMDB_TIMEOUT", 10*time.Second),
		MaxRetries:         envInt("TMDB_MAX_RETRIES", 2),
		RetryBaseDelay:     envDuration("TMDB_RETRY_BASE_DELAY", 250*time.Millisecond),
		CBMaxRequests:      uint32(envInt("CB_MAX_REQUESTS", 5)),
		CBInterval:         envDuration("CB_INTERVAL", 60*time.Second),
		CBTimeout:          envDuration("CB_TIMEOUT", 30*time.Second),
		CBFailureThreshold: uint32(envInt("CB_FAILURE_THRESHOLD", 5)),

		CatalogCacheTTL:     envDuration("CATALOG_CACHE_TTL", time.Hour),
		BrowseCacheTTL:      envDuration("BROWSE_CACHE_TTL", 60*time.Second),
		CacheInvalidateSubj: invalidate,
		FeedProviderTimeout: envDuration("FEED_PROVIDER_TIMEOUT", 4*time.Second),

		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 30),
	}, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
