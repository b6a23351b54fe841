package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/analytics"
	"github.com/example/media-platform/internal/platform/auth"
	"github.com/example/media-platform/internal/settings"
	"github.com/example/media-platform/services/discovery/internal/catalogcache"
	"github.com/example/media-platform/services/discovery/internal/sources"
)

// Deps is everything the discovery routes need.
type Deps struct {
	Verifier  auth.JWTVerifier
	States    StateService
	Composer  FeedComposer
	Cards     CardScorer
	Catalog   catalogcache.Catalog
	Browse    Cache
	Settings  *settings.Service
	Sources   *sources.Resolver
	Events    *EventPublisher
	Analytics *analytics.Publisher
	// RateLimit is applied after authentication so signed-in users get
	// their own bucket. Nil disables limiting.
	RateLimit func(http.Handler) http.Handler
	Log       *zap.Logger
}

// Mount registers the /v1 API on r.
func Mount(r chi.Router, d Deps) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Browse == nil {
		d.Browse = NewTTLCache(0, nil, "")
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalUser(d.Verifier))
		if d.RateLimit != nil {
			r.Use(d.RateLimit)
		}

		r.Get("/v1/announcements", ListAnnouncements(d.Settings))

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/settings", GetAdminSettings(d.Settings))
			r.Put("/featured", PutFeatured(d.Settings))
			r.Delete("/featured", DeleteFeatured(d.Settings))
			r.Put("/lockdown", PutLockdown(d.Settings))
			r.Post("/announcements", PostAnnouncement(d.Settings))
			r.Delete("/announcements/{id}", DeleteAnnouncement(d.Settings))
			r.Post("/sources/{id}/toggle", ToggleProxySource(d.Settings))
		})

		r.Group(func(r chi.Router) {
			r.Use(Lockdown(d.Settings, d.Log))

			r.Get("/v1/feed", GetFeed(d.States, d.Composer, d.Analytics, d.Log))
			r.Get("/v1/feed/hero", GetHero(d.States, d.Composer, d.Analytics, d.Log))
			r.Get("/v1/preferences", GetPreferences(d.States))
			r.Post("/v1/interactions", PostInteraction(d.States, d.Events, d.Analytics, d.Log))

			r.Get("/v1/history", GetHistory(d.States))
			r.Post("/v1/history", PostHistory(d.States))
			r.Delete("/v1/history", DeleteHistory(d.States))
			r.Post("/v1/history/sync", SyncHistory(d.States))
			r.Get("/v1/history/continue", ContinueWatching(d.States))

			r.Get("/v1/watchlist", GetWatchlist(d.States))
			r.Post("/v1/watchlist", PostWatchlist(d.States))
			r.Delete("/v1/watchlist/{kind}/{id}", DeleteWatchlist(d.States))

			r.Get("/v1/searches", GetSearches(d.States))
			r.Delete("/v1/searches", DeleteSearches(d.States))

			r.Get("/v1/catalog/trending/{kind}", GetTrending(d.Catalog, d.Browse, d.States, d.Cards))
			r.Get("/v1/catalog/search", Search(d.Catalog, d.Browse, d.States, d.Analytics, d.Log))
			r.Get("/v1/catalog/{kind}/{id}", GetDetails(d.Catalog, d.Browse, d.Analytics))

			r.Get("/v1/sources/{kind}/{id}", GetSources(d.Sources))
		})
	})
}
