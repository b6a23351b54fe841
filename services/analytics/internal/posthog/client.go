// Package posthog wraps the PostHog Go SDK for server-side event capture.
package posthog

import (
	"time"

	ph "github.com/posthog/posthog-go"
	"go.uber.org/zap"
)

type Options struct {
	APIKey        string
	Host          string
	FlushInterval time.Duration
	BatchSize     int
}

// Client captures events into PostHog. A nil Client drops everything.
type Client struct {
	ph  ph.Client
	log *zap.Logger
}

func New(opts Options, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client, err := ph.NewWithConfig(opts.APIKey, ph.Config{
		Endpoint:  opts.Host,
		BatchSize: opts.BatchSize,
		Interval:  opts.FlushInterval,
		Logger:    &zapLogger{log: log.Sugar()},
	})
	if err != nil {
		return nil, err
	}
	return &Client{ph: client, log: log}, nil
}

// Capture enqueues one event. distinctID is the user id, or "anonymous".
func (c *Client) Capture(distinctID, event string, props map[string]any, at time.Time) {
	if c == nil || c.ph == nil {
		return
	}
	p := ph.NewProperties()
	for k, v := range props {
		p.Set(k, v)
	}
	if err := c.ph.Enqueue(ph.Capture{
		DistinctId: distinctID,
		Event:      event,
		Timestamp:  at,
		Properties: p,
	}); err != nil {
		c.log.Warn("posthog: enqueue failed", zap.String("event", event), zap.Error(err))
	}
}

// Close flushes buffered events.
func (c *Client) Close() error {
	if c == nil || c.ph == nil {
		return nil
	}
	return c.ph.Close()
}

type zapLogger struct {
	log *zap.SugaredLogger
}

func (z *zapLogger) Debugf(format string, args ...any) { z.log.Debugf(format, args...) }
func (z *zapLogger) Logf(format string, args ...any)   { z.log.Infof(format, args...) }
func (z *zapLogger) Warnf(format string, args ...any)  { z.log.Warnf(format, args...) }
func (z *zapLogger) Errorf(format string, args ...any) { z.log.Errorf(format, args...) }
