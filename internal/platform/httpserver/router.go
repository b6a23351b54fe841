package httpserver

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/metrics"
)

type RouterConfig struct {
	// ReadyFunc backs /readyz. A non-nil error answers 503.
	ReadyFunc func() error
	// DisableMetrics skips the /metrics endpoint and the latency middleware.
	DisableMetrics bool
}

// SetupRouter attaches base middlewares and common endpoints.
// IMPORTANT: must be called before registering any routes.
func SetupRouter(r chi.Router, cfg ...RouterConfig) {
	var c RouterConfig
	if len(cfg) > 0 {
		c = cfg[0]
	}

	r.Use(RequestIDMiddleware(HeaderRequestID))
	r.Use(Recoverer)
	if !c.DisableMetrics {
		r.Use(metrics.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   parseCORSOrigins(os.Getenv("CORS_ALLOWED_ORIGINS")),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id", "X-User-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if c.ReadyFunc != nil {
			if err := c.ReadyFunc(); err != nil {
				api.Unavailable(w, "NOT_READY", err.Error(), RequestIDFromContext(r.Context()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if !c.DisableMetrics {
		r.Handle("/metrics", metrics.Handler())
	}
}

func parseCORSOrigins(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
