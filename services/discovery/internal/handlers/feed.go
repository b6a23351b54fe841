package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/analytics"
	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/auth"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/internal/recommend/feed"
	"github.com/example/media-platform/internal/userstate"
)

// FeedComposer builds feeds. *feed.Composer implements it.
type FeedComposer interface {
	Compose(ctx context.Context, in feed.Input) (feed.Feed, error)
	Hero(ctx context.Context, in feed.Input) (*feed.Hero, error)
}

var _ FeedComposer = (*feed.Composer)(nil)

func inputFrom(uid string, s userstate.State) feed.Input {
	return feed.Input{
		UserID:       uid,
		Preferences:  s.Preferences,
		Interactions: s.Interactions,
		History:      s.History,
	}
}

// GetFeed handles GET /v1/feed. The snapshot is read after any pending
// recompute for the user, so preferences always reflect the latest event.
func GetFeed(states StateService, composer FeedComposer, pub *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUID(w, r)
		if !ok {
			return
		}
		st, err := states.Snapshot(r.Context(), uid)
		if err != nil {
			log.Error("feed: load state", zap.String("user_id", uid), zap.Error(err))
			writeStateError(w, rid, err)
			return
		}
		f, err := composer.Compose(r.Context(), inputFrom(uid, st))
		if err != nil {
			// The client went away; nothing useful to send.
			log.Debug("feed: compose aborted", zap.Error(err))
			api.Unavailable(w, "FEED_ABORTED", "feed composition was cancelled", rid)
			return
		}

		kinds := make([]string, 0, len(f.Sections))
		for _, s := range f.Sections {
			kinds = append(kinds, string(s.Kind))
		}
		pub.Publish(analytics.SubjectFeedServed, "feed_served", uid, map[string]any{
			"sections": kinds,
			"has_hero": f.Hero != nil,
		})
		api.WriteJSON(w, http.StatusOK, f)
	}
}

// GetHero handles GET /v1/feed/hero. Anonymous callers get the heuristic pick.
func GetHero(states StateService, composer FeedComposer, pub *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		in := feed.Input{}
		uid, authed := auth.UserIDFromContext(r.Context())
		if authed {
			st, err := states.Snapshot(r.Context(), uid)
			if err != nil {
				log.Error("hero: load state", zap.String("user_id", uid), zap.Error(err))
				writeStateError(w, rid, err)
				return
			}
			in = inputFrom(uid, st)
		}

		h, err := composer.Hero(r.Context(), in)
		if errors.Is(err, feed.ErrNoHero) {
			api.NotFound(w, "NO_HERO", "no hero candidate available", rid)
			return
		}
		if err != nil {
			api.Unavailable(w, "HERO_UNAVAILABLE", "hero selection failed", rid)
			return
		}
		pub.Publish(analytics.SubjectHeroPicked, "hero_picked", uid, map[string]any{
			"item_id": h.Item.ID,
			"kind":    h.Kind,
			"source":  h.Source,
		})
		api.WriteJSON(w, http.StatusOK, h)
	}
}

// GetPreferences handles GET /v1/preferences.
func GetPreferences(states StateService) http.HandlerFunc {
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
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"preferences": st.Preferences,
			"top_genres":  st.Preferences.TopGenres(5),
		})
	}
}
