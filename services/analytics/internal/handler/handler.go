// Package handler turns analytics.* envelopes into PostHog captures.
package handler

import (
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/analytics"
)

const anonymousID = "anonymous"

// Capturer is the sink events are forwarded to.
type Capturer interface {
	Capture(distinctID, event string, props map[string]any, at time.Time)
}

type Dispatcher struct {
	sink Capturer
	log  *zap.Logger
}

func New(sink Capturer, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{sink: sink, log: log}
}

// Dispatch forwards one message. It reports false when the payload could
// not be decoded; the message should still be acked to avoid replay.
func (d *Dispatcher) Dispatch(subject string, data []byte) bool {
	var ev analytics.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		d.log.Error("analytics: unmarshal message", zap.String("subject", subject), zap.Error(err))
		return false
	}
	distinctID := ev.UserID
	if distinctID == "" {
		distinctID = anonymousID
	}
	props := ev.Properties
	if props == nil {
		props = map[string]any{}
	}

	switch subject {
	case analytics.SubjectInteraction:
		// Progress ticks arrive every few seconds of playback.
		if action, _ := props["action"].(string); action == "watch_progress" {
			return true
		}
	case analytics.SubjectSearchPerformed:
		n, _ := props["results"].(float64)
		props["has_results"] = n > 0
	case analytics.SubjectFeedServed, analytics.SubjectHeroPicked, analytics.SubjectCatalogItemViewed:
	default:
		d.log.Debug("analytics: unhandled subject", zap.String("subject", subject))
		return true
	}
	if ev.EventID != "" {
		props["$insert_id"] = ev.EventID
	}
	d.sink.Capture(distinctID, ev.EventName, props, ev.OccurredAt)
	return true
}
