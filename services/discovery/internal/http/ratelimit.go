package http

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/auth"
	"github.com/example/media-platform/internal/platform/httpserver"
)

// RateLimiter is a per-client token bucket. Authenticated callers are keyed
// by user id, everyone else by client IP.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int
	idle    time.Duration
	now     func() time.Time
	sweep   time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a rate limiter with the given rate (req/s) and burst size.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		idle:    10 * time.Minute,
		now:     time.Now,
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.evictIdle(now)

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), last: now}
		rl.buckets[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	b.tokens += elapsed * rl.rate
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// evictIdle drops buckets untouched for longer than idle. A bucket idle that
// long has refilled anyway. Caller holds mu.
func (rl *RateLimiter) evictIdle(now time.Time) {
	if now.Sub(rl.sweep) < rl.idle {
		return
	}
	rl.sweep = now
	for k, b := range rl.buckets {
		if now.Sub(b.last) > rl.idle {
			delete(rl.buckets, k)
		}
	}
}

// Middleware returns an HTTP middleware that rate-limits requests.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientKey(r)) {
			rid := httpserver.RequestIDFromContext(r.Context())
			w.Header().Set("Retry-After", "1")
			api.RateLimited(w, "RATE_LIMITED", "Too many requests", rid, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if uid, ok := auth.UserIDFromContext(r.Context()); ok {
		return "user:" + uid
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return "ip:" + strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
