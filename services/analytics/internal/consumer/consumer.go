// Package consumer runs the JetStream pull consumer feeding the analytics sink.
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/analytics"
	"github.com/example/media-platform/internal/platform/metrics"
	"github.com/example/media-platform/internal/platform/natsconn"
	"github.com/example/media-platform/services/analytics/internal/handler"
)

const (
	analyticsConsumer = "analytics_processor"
	retention         = 30 * 24 * time.Hour
)

type Consumer struct {
	sub        *nats.Subscription
	dispatcher *handler.Dispatcher
	batchSize  int
	wait       time.Duration
	log        *zap.Logger
}

// New ensures the ANALYTICS stream and binds the durable consumer.
func New(js nats.JetStreamContext, d *handler.Dispatcher, batchSize int, wait time.Duration, log *zap.Logger) (*Consumer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := natsconn.EnsureStream(js, analytics.StreamAnalytics, []string{analytics.SubjectsAnalytics}, retention); err != nil {
		return nil, err
	}
	sub, err := js.PullSubscribe(analytics.SubjectsAnalytics, analyticsConsumer,
		nats.BindStream(analytics.StreamAnalytics),
		nats.ManualAck(),
	)
	if err != nil {
		return nil, err
	}
	return &Consumer{sub: sub, dispatcher: d, batchSize: batchSize, wait: wait, log: log}, nil
}

// Run processes messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		msgs, err := c.sub.Fetch(c.batchSize, nats.MaxWait(c.wait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, nats.ErrConnectionClosed) {
				return nil
			}
			c.log.Error("analytics consumer: fetch", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		for _, msg := range msgs {
			status := "ack"
			if !c.dispatcher.Dispatch(msg.Subject, msg.Data) {
				status = "dropped"
			}
			metrics.NATSConsumed.WithLabelValues(msg.Subject, status).Inc()
			if err := msg.Ack(); err != nil {
				c.log.Warn("analytics consumer: ack", zap.Error(err))
			}
		}
	}
}
