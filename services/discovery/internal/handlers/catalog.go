package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/media"
	"github.com/example/media-platform/internal/platform/analytics"
	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/auth"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/internal/recommend/candidate"
	"github.com/example/media-platform/internal/recommend/preference"
	"github.com/example/media-platform/internal/recommend/scoring"
	"github.com/example/media-platform/services/discovery/internal/catalogcache"
	"github.com/example/media-platform/services/discovery/internal/tmdb"
)

const maxQueryLen = 200

func writeCatalogError(w http.ResponseWriter, rid string, err error) {
	switch {
	case errors.Is(err, tmdb.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", "title not found", rid)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		api.Unavailable(w, "CATALOG_UNAVAILABLE", "catalog temporarily unavailable", rid)
	default:
		api.BadGateway(w, "CATALOG_ERROR", "catalog request failed", rid)
	}
}

// CardScorer rates an item against a user's preferences for browse rows.
type CardScorer interface {
	Card(item media.Item, prefs preference.Preferences) scoring.Card
}

// GetTrending handles GET /v1/catalog/trending/{kind}?window=day|week.
// Signed-in callers also get a match card per item.
func GetTrending(catalog catalogcache.Catalog, cache Cache, states StateService, cards CardScorer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		kind, err := media.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			api.BadRequest(w, "INVALID_KIND", err.Error(), rid, nil)
			return
		}
		window := candidate.Window(strings.ToLower(r.URL.Query().Get("window")))
		if window != candidate.WindowDay {
			window = candidate.WindowWeek
		}

		key := fmt.Sprintf("trending:%s:%s", kind, window)
		var items []media.Item
		if cached, ok := cache.Get(key); ok {
			items = cached.([]media.Item)
		} else {
			items, err = catalog.Trending(r.Context(), kind, window)
			if err != nil {
				writeCatalogError(w, rid, err)
				return
			}
			cache.Set(key, items)
		}

		resp := map[string]any{"items": items, "kind": kind, "window": window}
		if uid, ok := auth.UserIDFromContext(r.Context()); ok && cards != nil {
			if st, err := states.Snapshot(r.Context(), uid); err == nil {
				byID := make(map[int64]scoring.Card, len(items))
				for _, it := range items {
					byID[it.ID] = cards.Card(it, st.Preferences)
				}
				resp["cards"] = byID
			}
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

// Search handles GET /v1/catalog/search?q=&page=. Signed-in callers get the
// query recorded in their recent searches.
func Search(catalog catalogcache.Catalog, cache Cache, states StateService, pub *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			api.BadRequest(w, "MISSING_QUERY", "q is required", rid, nil)
			return
		}
		if len(q) > maxQueryLen {
			api.BadRequest(w, "QUERY_TOO_LONG", "q is too long", rid, map[string]any{"max": maxQueryLen})
			return
		}
		page := parseInt(r.URL.Query().Get("page"), 1, 1, 500)

		uid, authed := auth.UserIDFromContext(r.Context())
		if authed {
			if _, err := states.AddSearch(r.Context(), uid, q); err != nil {
				log.Warn("search: record recent search", zap.String("user_id", uid), zap.Error(err))
			}
		}

		key := fmt.Sprintf("search:%d:%s", page, strings.ToLower(q))
		var out media.Page
		if cached, ok := cache.Get(key); ok {
			out = cached.(media.Page)
		} else {
			res, err := catalog.Search(r.Context(), q, page)
			if err != nil {
				writeCatalogError(w, rid, err)
				return
			}
			out = res
			cache.Set(key, out)
		}
		pub.Publish(analytics.SubjectSearchPerformed, "search_performed", uid, map[string]any{
			"query":   q,
			"results": out.TotalResults,
		})
		api.WriteJSON(w, http.StatusOK, out)
	}
}

// GetDetails handles GET /v1/catalog/{kind}/{id}.
func GetDetails(catalog catalogcache.Catalog, cache Cache, pub *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		key, err := pathItem(r)
		if err != nil {
			api.BadRequest(w, "INVALID_ITEM", err.Error(), rid, nil)
			return
		}
		uid, _ := auth.UserIDFromContext(r.Context())

		ck := "details:" + key.String()
		var item media.Item
		if cached, ok := cache.Get(ck); ok {
			item = cached.(media.Item)
		} else {
			item, err = catalog.Details(r.Context(), key.Kind, key.ID)
			if err != nil {
				writeCatalogError(w, rid, err)
				return
			}
			cache.Set(ck, item)
		}
		pub.Publish(analytics.SubjectCatalogItemViewed, "catalog_item_viewed", uid, map[string]any{
			"item_id": key.ID,
			"kind":    key.Kind,
		})
		api.WriteJSON(w, http.StatusOK, item)
	}
}
