// Package userstate persists each user's interaction log, watch history,
// watchlist, recent searches and cached preferences, and sequences updates
// so preferences are always recomputed before the next read.
//
// Backends: Redis (REDIS_URL), Postgres (DATABASE_URL), Badger (BADGER_PATH),
// or in-memory for development.
package userstate

import (
	"strings"
	"time"

	"github.com/example/media-platform/internal/media"
	"github.com/example/media-platform/internal/recommend/history"
	"github.com/example/media-platform/internal/recommend/interaction"
	"github.com/example/media-platform/internal/recommend/preference"
)

const MaxRecentSearches = 10

type WatchlistItem struct {
	ItemID   int64      `json:"item_id" validate:"required,gt=0"`
	Kind     media.Kind `json:"kind" validate:"required,oneof=movie tv"`
	Title    string     `json:"title,omitempty"`
	GenreIDs []int      `json:"genre_ids,omitempty"`
	AddedAt  time.Time  `json:"added_at"`
}

func (w WatchlistItem) Key() media.Key { return media.Key{Kind: w.Kind, ID: w.ItemID} }

// State is everything stored for one user. Preferences is a cache derived
// from Interactions and History.
type State struct {
	Interactions   interaction.Log        `json:"interactions"`
	History        history.History        `json:"history"`
	Watchlist      []WatchlistItem        `json:"watchlist"`
	RecentSearches []string               `json:"recent_searches"`
	Preferences    preference.Preferences `json:"preferences"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// Empty returns the state of a user never seen before.
func Empty(now time.Time) State {
	return State{
		Interactions:   interaction.Log{},
		History:        history.History{},
		Watchlist:      []WatchlistItem{},
		RecentSearches: []string{},
		Preferences:    preference.Empty(now),
		UpdatedAt:      now,
	}
}

func (s State) InWatchlist(k media.Key) bool {
	for _, w := range s.Watchlist {
		if w.Key() == k {
			return true
		}
	}
	return false
}

func (s *State) recompute(now time.Time) {
	s.Preferences = preference.Recompute(s.Interactions, s.History, now)
	s.UpdatedAt = now
}

// addSearch puts query at the head, dropping an earlier identical query.
func addSearch(searches []string, query string) []string {
	if strings.TrimSpace(query) == "" {
		return searches
	}
	out := make([]string, 0, MaxRecentSearches)
	out = append(out, query)
	for _, s := range searches {
		if len(out) == MaxRecentSearches {
			break
		}
		if s != query {
			out = append(out, s)
		}
	}
	return out
}
