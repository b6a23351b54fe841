// Package worker applies interaction events published by the discovery API
// to stored user state.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/events"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/internal/platform/metrics"
	"github.com/example/media-platform/internal/recommend/interaction"
	"github.com/example/media-platform/internal/userstate"
	"github.com/example/media-platform/services/activity/internal/idempotency"
)

// Tracker applies one event to a user's state.
type Tracker interface {
	Track(ctx context.Context, userID string, ev interaction.Event) (userstate.State, error)
}

// JetStream is the slice of nats.JetStreamContext the consumer uses.
type JetStream interface {
	PullSubscribe(subj, durable string, opts ...nats.SubOpt) (*nats.Subscription, error)
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

type outcome int

const (
	outcomeApplied outcome = iota
	outcomeDuplicate
	outcomeRetry
	outcomeDeadLetter
)

func (o outcome) String() string {
	switch o {
	case outcomeApplied:
		return "ack"
	case outcomeDuplicate:
		return "duplicate"
	case outcomeRetry:
		return "nak"
	default:
		return "dlq"
	}
}

type Consumer struct {
	Log     *zap.Logger
	JS      JetStream
	Tracker Tracker
	Seen    idempotency.Store

	BatchSize  int
	FetchWait  time.Duration
	MaxDeliver int

	now func() time.Time
}

func NewConsumer(log *zap.Logger, js JetStream, tracker Tracker, seen idempotency.Store) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{
		Log:        log,
		JS:         js,
		Tracker:    tracker,
		Seen:       seen,
		BatchSize:  50,
		FetchWait:  2 * time.Second,
		MaxDeliver: 5,
		now:        time.Now,
	}
}

// Run pulls from the durable interaction consumer until ctx ends.
func (c *Consumer) Run(ctx context.Context) error {
	sub, err := c.JS.PullSubscribe(events.SubjectInteraction, events.ConsumerInteraction,
		nats.BindStream(events.StreamActivity),
		nats.ManualAck(),
		nats.AckExplicit(),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", events.SubjectInteraction, err)
	}
	c.Log.Info("consumer started", zap.String("subject", events.SubjectInteraction))

	for {
		if ctx.Err() != nil {
			return nil
		}
		msgs, err := sub.Fetch(c.BatchSize, nats.MaxWait(c.FetchWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrSubscriptionClosed) {
				return nil
			}
			c.Log.Warn("fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		for _, m := range msgs {
			c.handleMsg(ctx, m)
		}
	}
}

func (c *Consumer) handleMsg(ctx context.Context, m *nats.Msg) {
	delivered := uint64(1)
	if md, err := m.Metadata(); err == nil && md != nil {
		delivered = md.NumDelivered
	}

	rid := m.Header.Get(events.HeaderRequestID)
	if rid != "" {
		ctx = httpserver.WithRequestID(ctx, rid)
	}

	out, reason := c.process(ctx, m.Data, delivered)
	metrics.NATSConsumed.WithLabelValues(events.SubjectInteraction, out.String()).Inc()

	switch out {
	case outcomeRetry:
		if err := m.NakWithDelay(backoffDelay(delivered)); err != nil {
			c.Log.Warn("nak failed", zap.Error(err))
		}
		return
	case outcomeDeadLetter:
		c.Log.Warn("dead-lettering interaction", zap.String("reason", reason), zap.String("request_id", rid), zap.Uint64("deliveries", delivered))
		if err := c.publishDLQ(m.Data, reason, delivered, rid); err != nil {
			// Leave it unacked so redelivery gets another chance at the DLQ.
			c.Log.Error("dlq publish failed", zap.String("reason", reason), zap.Error(err))
			_ = m.NakWithDelay(backoffDelay(delivered))
			return
		}
	}
	if err := m.Ack(); err != nil {
		c.Log.Warn("ack failed", zap.Error(err))
	}
}

// process decides what happens to one delivery. The returned reason is set
// for dead letters.
func (c *Consumer) process(ctx context.Context, data []byte, delivered uint64) (outcome, string) {
	if c.MaxDeliver > 0 && delivered > uint64(c.MaxDeliver) {
		return outcomeDeadLetter, fmt.Sprintf("max deliveries exceeded: %d", delivered)
	}

	var env events.InteractionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.Log.Warn("bad payload", zap.Error(err))
		return outcomeDeadLetter, "invalid json"
	}
	if env.EventID == "" || env.UserID == "" {
		return outcomeDeadLetter, "missing event_id or user_id"
	}
	if err := interaction.Validate(env.Event); err != nil {
		c.Log.Warn("invalid interaction", zap.String("event_id", env.EventID), zap.Error(err))
		return outcomeDeadLetter, err.Error()
	}

	dup, err := c.Seen.Check(ctx, env.EventID)
	if err != nil {
		c.Log.Warn("idempotency check failed", zap.String("event_id", env.EventID), zap.Error(err))
		return outcomeRetry, ""
	}
	if dup {
		return outcomeDuplicate, ""
	}

	if env.Event.Timestamp.IsZero() {
		env.Event.Timestamp = env.PublishedAt
	}
	if _, err := c.Tracker.Track(ctx, env.UserID, env.Event); err != nil {
		c.Log.Warn("track failed",
			zap.String("event_id", env.EventID),
			zap.String("user_id", env.UserID),
			zap.String("request_id", httpserver.RequestIDFromContext(ctx)),
			zap.Uint64("attempt", delivered),
			zap.Error(err))
		if ferr := c.Seen.Forget(ctx, env.EventID); ferr != nil {
			c.Log.Error("idempotency forget failed", zap.String("event_id", env.EventID), zap.Error(ferr))
		}
		return outcomeRetry, ""
	}
	return outcomeApplied, ""
}

func (c *Consumer) publishDLQ(data []byte, reason string, delivered uint64, requestID string) error {
	b, err := json.Marshal(events.DeadLetter{
		Subject:    events.SubjectInteraction,
		Reason:     reason,
		Deliveries: delivered,
		Payload:    data,
		FailedAt:   c.now().UTC(),
		RequestID:  requestID,
	})
	if err != nil {
		return err
	}
	_, err = c.JS.Publish(events.SubjectInteractionDLQ, b)
	if err == nil {
		metrics.NATSPublished.WithLabelValues(events.SubjectInteractionDLQ).Inc()
	}
	return err
}
