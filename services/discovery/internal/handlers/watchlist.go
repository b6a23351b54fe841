package handlers

import (
	"net/http"

	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/internal/platform/validation"
	"github.com/example/media-platform/internal/userstate"
)

// GetWatchlist handles GET /v1/watchlist.
func GetWatchlist(states StateService) http.HandlerFunc {
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
		api.WriteJSON(w, http.StatusOK, map[string]any{"items": st.Watchlist})
	}
}

// PostWatchlist handles POST /v1/watchlist. Adding an item already listed
// is a no-op.
func PostWatchlist(states StateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUID(w, r)
		if !ok {
			return
		}
		var item userstate.WatchlistItem
		if err := decodeJSON(w, r, &item); err != nil {
			api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
			return
		}
		if err := validation.Struct(item); err != nil {
			writeStateError(w, rid, err)
			return
		}
		st, err := states.AddToWatchlist(r.Context(), uid, item)
		if err != nil {
			writeStateError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"items": st.Watchlist})
	}
}

// DeleteWatchlist handles DELETE /v1/watchlist/{kind}/{id}.
func DeleteWatchlist(states StateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUID(w, r)
		if !ok {
			return
		}
		key, err := pathItem(r)
		if err != nil {
			api.BadRequest(w, "INVALID_ITEM", err.Error(), rid, nil)
			return
		}
		st, err := states.RemoveFromWatchlist(r.Context(), uid, userstate.WatchlistItem{ItemID: key.ID, Kind: key.Kind})
		if err != nil {
			writeStateError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"items": st.Watchlist})
	}
}

// GetSearches handles GET /v1/searches.
func GetSearches(states StateService) http.HandlerFunc {
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
		api.WriteJSON(w, http.StatusOK, map[string]any{"items": st.RecentSearches})
	}
}

// DeleteSearches handles DELETE /v1/searches.
func DeleteSearches(states StateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUID(w, r)
		if !ok {
			return
		}
		if _, err := states.ClearSearches(r.Context(), uid); err != nil {
			writeStateError(w, rid, err)
			return
		}
		api.NoContent(w)
	}
}
