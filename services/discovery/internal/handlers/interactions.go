package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/analytics"
	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/internal/recommend/interaction"
)

// PostInteraction handles POST /v1/interactions. With JetStream enabled the
// event is handed to the activity worker and 202 is returned; otherwise it
// is applied inline and the recomputed preferences are returned.
func PostInteraction(states StateService, publisher *EventPublisher, pub *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUID(w, r)
		if !ok {
			return
		}

		var ev interaction.Event
		if err := decodeJSON(w, r, &ev); err != nil {
			api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
			return
		}
		if err := interaction.Validate(ev); err != nil {
			writeStateError(w, rid, err)
			return
		}

		props := map[string]any{"action": ev.Action, "item_id": ev.ItemID, "kind": ev.Kind}

		if publisher.Enabled() {
			eventID, err := publisher.PublishInteraction(r.Context(), uid, ev)
			if err != nil {
				log.Warn("interaction publish failed", zap.String("user_id", uid), zap.Error(err))
				api.WriteError(w, http.StatusServiceUnavailable, "EVENT_PUBLISH_FAILED", "failed to publish event", rid, nil)
				return
			}
			pub.Publish(analytics.SubjectInteraction, "interaction_recorded", uid, props)
			w.Header().Set("X-Event-ID", eventID)
			w.WriteHeader(http.StatusAccepted)
			return
		}

		st, err := states.Track(r.Context(), uid, ev)
		if err != nil {
			log.Error("interaction track failed", zap.String("user_id", uid), zap.Error(err))
			writeStateError(w, rid, err)
			return
		}
		pub.Publish(analytics.SubjectInteraction, "interaction_recorded", uid, props)
		api.WriteJSON(w, http.StatusOK, map[string]any{"preferences": st.Preferences})
	}
}
