// Package events holds the JetStream subjects and payloads shared by the
// discovery API, which publishes user activity, and the activity worker,
// which applies it.
package events

import (
	"time"

	"github.com/example/media-platform/internal/recommend/interaction"
)

const (
	StreamActivity        = "ACTIVITY"
	SubjectInteraction    = "activity.interaction"
	SubjectInteractionDLQ = "activity.interaction.dlq"
	ConsumerInteraction   = "activity_interaction"

	// HeaderMsgID lets JetStream drop duplicate publishes of one event.
	HeaderMsgID = "Nats-Msg-Id"
	// HeaderRequestID carries the originating HTTP request id.
	HeaderRequestID = "X-Request-Id"
)

// InteractionEnvelope is one user interaction in flight between services.
type InteractionEnvelope struct {
	EventID     string            `json:"event_id"`
	UserID      string            `json:"user_id"`
	Event       interaction.Event `json:"event"`
	PublishedAt time.Time         `json:"published_at"`
}

// DeadLetter wraps a payload the worker gave up on.
type DeadLetter struct {
	Subject    string    `json:"subject"`
	Reason     string    `json:"reason"`
	Deliveries uint64    `json:"deliveries"`
	Payload    []byte    `json:"payload"`
	FailedAt   time.Time `json:"failed_at"`
	RequestID  string    `json:"request_id,omitempty"`
}
