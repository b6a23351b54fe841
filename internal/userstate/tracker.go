package userstate

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/metrics"
	"github.com/example/media-platform/internal/recommend/history"
	"github.com/example/media-platform/internal/recommend/interaction"
)

const lockShards = 64

// Tracker applies mutations to a user's state as one atomic store update:
// load, mutate, recompute preferences, save. The store serializes writers
// across processes; the per-user lock only keeps writers in this process
// from retrying against each other. Readers that compose a feed from
// Snapshot therefore always see preferences consistent with the log.
type Tracker struct {
	store Store
	now   func() time.Time
	log   *zap.Logger
	locks [lockShards]sync.Mutex
}

func NewTracker(store Store, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{store: store, now: time.Now, log: log}
}

// SetClock overrides the time source. Tests only.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

func (t *Tracker) Store() Store { return t.store }

func (t *Tracker) lock(userID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	m := &t.locks[h.Sum32()%lockShards]
	m.Lock()
	return m.Unlock
}

// Snapshot returns the user's current state, or an empty one.
func (t *Tracker) Snapshot(ctx context.Context, userID string) (State, error) {
	s, err := t.store.Load(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Empty(t.now()), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("load state for %s: %w", userID, err)
	}
	return s, nil
}

// update runs fn inside an atomic store update. When fn reports no change
// the state is not saved. fn must derive everything from the state it is
// given, since the store may call it again after a conflict.
func (t *Tracker) update(ctx context.Context, userID string, fn func(s *State, now time.Time) bool) (State, error) {
	unlock := t.lock(userID)
	defer unlock()

	s, err := t.store.Update(ctx, userID, func(s *State, found bool) bool {
		now := t.now()
		if !found {
			*s = Empty(now)
		}
		if !fn(s, now) {
			return false
		}
		s.recompute(now)
		return true
	})
	if err != nil {
		return State{}, fmt.Errorf("update state for %s: %w", userID, err)
	}
	return s, nil
}

// Track appends one interaction and recomputes preferences. A zero
// timestamp is stamped with the current time.
func (t *Tracker) Track(ctx context.Context, userID string, ev interaction.Event) (State, error) {
	s, err := t.update(ctx, userID, func(s *State, now time.Time) bool {
		if ev.Timestamp.IsZero() {
			ev.Timestamp = now
		}
		s.Interactions = s.Interactions.Append(ev)
		return true
	})
	if err == nil {
		metrics.InteractionsRecorded.WithLabelValues(string(ev.Action)).Inc()
	}
	return s, err
}

// AddHistory records a progress report and the interaction it implies.
func (t *Tracker) AddHistory(ctx context.Context, userID string, e history.Entry) (State, error) {
	var derived interaction.Action
	st, err := t.update(ctx, userID, func(s *State, now time.Time) bool {
		if e.WatchedAt.IsZero() {
			e.WatchedAt = now
		}
		s.History = s.History.Add(e)
		derived = ""
		if ev, ok := history.DerivedInteraction(e); ok {
			s.Interactions = s.Interactions.Append(ev)
			derived = ev.Action
		}
		return true
	})
	if err == nil && derived != "" {
		metrics.InteractionsRecorded.WithLabelValues(string(derived)).Inc()
	}
	return st, err
}

// ClearHistory drops every history entry. The interaction log is kept.
func (t *Tracker) ClearHistory(ctx context.Context, userID string) (State, error) {
	return t.update(ctx, userID, func(s *State, _ time.Time) bool {
		if len(s.History) == 0 {
			return false
		}
		s.History = history.History{}
		return true
	})
}

// MergeHistory reconciles the stored history with one synced from another
// device, last write wins per entry.
func (t *Tracker) MergeHistory(ctx context.Context, userID string, remote history.History) (State, error) {
	return t.update(ctx, userID, func(s *State, _ time.Time) bool {
		s.History = history.Merge(s.History, remote)
		return true
	})
}

// AddToWatchlist appends w unless it is already listed; a new entry also
// tracks add_watchlist.
func (t *Tracker) AddToWatchlist(ctx context.Context, userID string, w WatchlistItem) (State, error) {
	var added bool
	st, err := t.update(ctx, userID, func(s *State, now time.Time) bool {
		added = false
		if s.InWatchlist(w.Key()) {
			return false
		}
		if w.AddedAt.IsZero() {
			w.AddedAt = now
		}
		s.Watchlist = append(s.Watchlist, w)
		s.Interactions = s.Interactions.Append(interaction.Event{
			ItemID: w.ItemID, Kind: w.Kind, Action: interaction.ActionAddWatchlist,
			Timestamp: now, Title: w.Title, GenreIDs: w.GenreIDs,
		})
		added = true
		return true
	})
	if err == nil && added {
		metrics.InteractionsRecorded.WithLabelValues(string(interaction.ActionAddWatchlist)).Inc()
	}
	return st, err
}

// RemoveFromWatchlist removes the item and tracks remove_watchlist. The
// removal event carries no genres, so it does not move affinities.
func (t *Tracker) RemoveFromWatchlist(ctx context.Context, userID string, w WatchlistItem) (State, error) {
	var removed bool
	st, err := t.update(ctx, userID, func(s *State, now time.Time) bool {
		removed = false
		idx := -1
		for i, cur := range s.Watchlist {
			if cur.Key() == w.Key() {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false
		}
		s.Watchlist = append(s.Watchlist[:idx:idx], s.Watchlist[idx+1:]...)
		s.Interactions = s.Interactions.Append(interaction.Event{
			ItemID: w.ItemID, Kind: w.Kind, Action: interaction.ActionRemoveWatchlist, Timestamp: now,
		})
		removed = true
		return true
	})
	if err == nil && removed {
		metrics.InteractionsRecorded.WithLabelValues(string(interaction.ActionRemoveWatchlist)).Inc()
	}
	return st, err
}

func (t *Tracker) AddSearch(ctx context.Context, userID, query string) (State, error) {
	return t.update(ctx, userID, func(s *State, _ time.Time) bool {
		next := addSearch(s.RecentSearches, query)
		if slices.Equal(next, s.RecentSearches) {
			return false
		}
		s.RecentSearches = next
		return true
	})
}

func (t *Tracker) ClearSearches(ctx context.Context, userID string) (State, error) {
	return t.update(ctx, userID, func(s *State, _ time.Time) bool {
		if len(s.RecentSearches) == 0 {
			return false
		}
		s.RecentSearches = []string{}
		return true
	})
}
