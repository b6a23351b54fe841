// Package analytics provides a fire-and-forget NATS publisher for product
// analytics events emitted by the discovery service.
package analytics

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/metrics"
)

// StreamAnalytics captures every analytics.* subject.
const (
	StreamAnalytics   = "ANALYTICS"
	SubjectsAnalytics = "analytics.>"
)

// Subject constants for every analytics event type.
const (
	SubjectFeedServed        = "analytics.feed.served"
	SubjectHeroPicked        = "analytics.feed.hero_picked"
	SubjectInteraction       = "analytics.interaction.recorded"
	SubjectSearchPerformed   = "analytics.search.performed"
	SubjectCatalogItemViewed = "analytics.catalog.item_viewed"
)

// Event is the canonical envelope sent to all analytics.* subjects.
type Event struct {
	EventID    string         `json:"event_id"`
	EventName  string         `json:"event_name"`
	UserID     string         `json:"user_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

// AsyncPublisher is the slice of nats.JetStreamContext the publisher needs.
type AsyncPublisher interface {
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
}

// Publisher publishes analytics events to NATS JetStream.
// The zero value and a nil pointer are both safe no-op stubs.
type Publisher struct {
	js  AsyncPublisher
	log *zap.Logger
	now func() time.Time
}

// New creates a Publisher. Pass js=nil to get a no-op stub.
func New(js AsyncPublisher, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{js: js, log: log, now: time.Now}
}

// Publish sends an analytics event asynchronously. Failures are logged as
// warnings and never surface to the caller.
func (p *Publisher) Publish(subject, eventName, userID string, props map[string]any) {
	if p == nil || p.js == nil {
		return
	}
	ev := Event{
		EventID:    uuid.NewString(),
		EventName:  eventName,
		UserID:     userID,
		OccurredAt: p.now().UTC(),
		Properties: props,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("analytics: marshal failed", zap.String("event", eventName), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.log.Warn("analytics: publish failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	metrics.NATSPublished.WithLabelValues(subject).Inc()
}
