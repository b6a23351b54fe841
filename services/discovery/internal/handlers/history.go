package handlers

import (
	"net/http"

	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/internal/platform/validation"
	"github.com/example/media-platform/internal/recommend/history"
)

// GetHistory handles GET /v1/history.
func GetHistory(states StateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUID(w, r)
		if !ok {
			return
		}
		st, err := states.Snapshot(r.Context(), uid)
		if err != nil {
			writeStateError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"items": st.History})
	}
}

// PostHistory handles POST /v1/history: one progress report from the player.
func PostHistory(states StateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUID(w, r)
		if !ok {
			return
		}
		var e history.Entry
		if err := decodeJSON(w, r, &e); err != nil {
			api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
			return
		}
		if err := validation.Struct(e); err != nil {
			writeStateError(w, rid, err)
			return
		}
		st, err := states.AddHistory(r.Context(), uid, e)
		if err != nil {
			writeStateError(w, rid, err)
			return
		}
		progress, _ := st.History.Progress(e.Kind, e.ItemID, e.EpisodeID)
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"progress":    progress,
			"preferences": st.Preferences,
		})
	}
}

type syncHistoryRequest struct {
	Items history.History `json:"items" validate:"max=100,dive"`
}

// SyncHistory handles POST /v1/history/sync: merges history from another
// device, newest write per entry wins.
func SyncHistory(states StateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUID(w, r)
		if !ok {
			return
		}
		var req syncHistoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
			return
		}
		if err := validation.Struct(req); err != nil {
			writeStateError(w, rid, err)
			return
		}
		st, err := states.MergeHistory(r.Context(), uid, req.Items)
		if err != nil {
			writeStateError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"items": st.History})
	}
}

// DeleteHistory handles DELETE /v1/history.
func DeleteHistory(states StateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUID(w, r)
		if !ok {
			return
		}
		if _, err := states.ClearHistory(r.Context(), uid); err != nil {
			writeStateError(w, rid, err)
			return
		}
		api.NoContent(w)
	}
}

// ContinueWatching handles GET /v1/history/continue.
func ContinueWatching(states StateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUID(w, r)
		if !ok {
			return
		}
		st, err := states.Snapshot(r.Context(), uid)
		if err != nil {
			writeStateError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"items": st.History.ContinueWatching()})
	}
}
