package handlers

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/example/media-platform/internal/platform/events"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/internal/platform/metrics"
	"github.com/example/media-platform/internal/recommend/interaction"
)

var ErrAsyncPublishDisabled = errors.New("async publish is disabled")

// JetStreamPublisher is the slice of nats.JetStreamContext the publisher uses.
type JetStreamPublisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// EventPublisher hands interactions to the activity worker over JetStream.
// With async writes off, or no JetStream, handlers apply them inline.
type EventPublisher struct {
	js          JetStreamPublisher
	asyncWrites bool
	now         func() time.Time
}

func NewEventPublisher(js JetStreamPublisher, asyncWrites bool) *EventPublisher {
	return &EventPublisher{js: js, asyncWrites: asyncWrites, now: time.Now}
}

func (p *EventPublisher) Enabled() bool {
	return p != nil && p.js != nil && p.asyncWrites
}

// PublishInteraction publishes ev for userID and returns the event id. The
// request id in ctx, if any, travels as a header.
func (p *EventPublisher) PublishInteraction(ctx context.Context, userID string, ev interaction.Event) (string, error) {
	if !p.Enabled() {
		return "", ErrAsyncPublishDisabled
	}
	env := events.InteractionEnvelope{
		EventID:     uuid.NewString(),
		UserID:      userID,
		Event:       ev,
		PublishedAt: p.now().UTC(),
	}
	body, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	msg := nats.NewMsg(events.SubjectInteraction)
	msg.Data = body
	msg.Header.Set(events.HeaderMsgID, env.EventID)
	if rid := httpserver.RequestIDFromContext(ctx); rid != "" {
		msg.Header.Set(events.HeaderRequestID, rid)
	}
	if _, err := p.js.PublishMsg(msg); err != nil {
		return "", err
	}
	metrics.NATSPublished.WithLabelValues(events.SubjectInteraction).Inc()
	return env.EventID, nil
}
