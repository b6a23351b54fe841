package handlers

import (
	"net/http"

	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/services/discovery/internal/sources"
)

// GetSources handles GET /v1/sources/{kind}/{id}?season=&episode=.
func GetSources(resolver *sources.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		key, err := pathItem(r)
		if err != nil {
			api.BadRequest(w, "INVALID_ITEM", err.Error(), rid, nil)
			return
		}
		q := r.URL.Query()
		list, err := resolver.Resolve(r.Context(), sources.Request{
			Kind:    key.Kind,
			ID:      key.ID,
			Season:  parseInt(q.Get("season"), 1, 1, 1000),
			Episode: parseInt(q.Get("episode"), 1, 1, 10000),
		})
		if err != nil {
			api.BadRequest(w, "INVALID_ITEM", err.Error(), rid, nil)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"sources": list})
	}
}
