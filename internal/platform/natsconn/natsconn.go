// Package natsconn provides a shared NATS connection factory with
// configurable reconnect behaviour and fail-fast semantics, plus the
// JetStream stream bootstrap both services run at start-up.
package natsconn

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Options configures the NATS connection behaviour.
// Zero values fall back to env vars or built-in defaults.
type Options struct {
	URL           string
	Name          string
	MaxReconnects int           // default from NATS_MAX_RECONNECTS or 5
	ReconnectWait time.Duration // default from NATS_RECONNECT_WAIT or 2s
}

// Connect establishes a NATS connection with the configured retry policy.
// On failure it returns an error so the caller can fail fast.
func Connect(opts Options) (*nats.Conn, error) {
	if opts.URL == "" {
		opts.URL = strings.TrimSpace(os.Getenv("NATS_URL"))
		if opts.URL == "" {
			opts.URL = nats.DefaultURL
		}
	}
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = envInt("NATS_MAX_RECONNECTS", 5)
	}
	if opts.ReconnectWait == 0 {
		opts.ReconnectWait = envDuration("NATS_RECONNECT_WAIT", 2*time.Second)
	}

	natsOpts := []nats.Option{
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.RetryOnFailedConnect(false),
	}
	if opts.Name != "" {
		natsOpts = append(natsOpts, nats.Name(opts.Name))
	}

	nc, err := nats.Connect(opts.URL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s (max_reconnects=%d, wait=%s): %w",
			opts.URL, opts.MaxReconnects, opts.ReconnectWait, err)
	}
	return nc, nil
}

// StreamManager is the part of nats.JetStreamContext used by EnsureStream.
type StreamManager interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// EnsureStream creates the named file-backed stream, or widens an existing
// one so it covers subjects.
func EnsureStream(js StreamManager, name string, subjects []string, maxAge time.Duration) error {
	info, err := js.StreamInfo(name)
	if err == nil {
		have := make(map[string]bool, len(info.Config.Subjects))
		for _, s := range info.Config.Subjects {
			have[s] = true
		}
		cfg := info.Config
		changed := false
		for _, s := range subjects {
			if !have[s] {
				cfg.Subjects = append(cfg.Subjects, s)
				changed = true
			}
		}
		if !changed {
			return nil
		}
		_, err = js.UpdateStream(&cfg)
		return err
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", name, err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: subjects,
		Storage:  nats.FileStorage,
		MaxAge:   maxAge,
	})
	return err
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
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
