// Package history keeps the per-user watch history: newest first, one entry
// per (item, kind, episode), bounded.
package history

import (
	"sort"
	"time"

	"github.com/example/media-platform/internal/media"
	"github.com/example/media-platform/internal/recommend/interaction"
)

const (
	MaxEntries = 100
	// MaxContinueWatching bounds ContinueWatching.
	MaxContinueWatching = 20

	completeThreshold = 90
	startThreshold    = 20
)

type Entry struct {
	ItemID        int64      `json:"item_id" validate:"required,gt=0"`
	Kind          media.Kind `json:"kind" validate:"required,oneof=movie tv"`
	EpisodeID     string     `json:"episode_id,omitempty"`
	SeasonNumber  int        `json:"season_number,omitempty" validate:"gte=0"`
	EpisodeNumber int        `json:"episode_number,omitempty" validate:"gte=0"`
	Title         string     `json:"title,omitempty"`
	Progress      float64    `json:"progress" validate:"gte=0,lte=100"`
	WatchedAt     time.Time  `json:"watched_at"`
	GenreIDs      []int      `json:"genre_ids,omitempty"`
	// Duration in minutes, when the player reported one.
	Duration int `json:"duration,omitempty" validate:"gte=0"`
}

type key struct {
	kind    media.Kind
	id      int64
	episode string
}

func (e Entry) dedupeKey() key { return key{kind: e.Kind, id: e.ItemID, episode: e.EpisodeID} }

func (e Entry) Key() media.Key { return media.Key{Kind: e.Kind, ID: e.ItemID} }

// History holds entries newest first.
type History []Entry

// Add returns a new history with e at the head. An existing entry with the
// same (item, kind, episode) is replaced, and the result is capped.
func (h History) Add(e Entry) History {
	out := make(History, 0, min(len(h)+1, MaxEntries))
	out = append(out, e)
	k := e.dedupeKey()
	for _, old := range h {
		if len(out) == MaxEntries {
			break
		}
		if old.dedupeKey() == k {
			continue
		}
		out = append(out, old)
	}
	return out
}

// Progress returns the recorded progress for an item (and episode, when
// given), or false when it was never watched.
func (h History) Progress(kind media.Kind, id int64, episodeID string) (float64, bool) {
	k := key{kind: kind, id: id, episode: episodeID}
	for _, e := range h {
		if e.dedupeKey() == k {
			return e.Progress, true
		}
	}
	return 0, false
}

// ContinueWatching returns partially watched entries, newest first.
func (h History) ContinueWatching() History {
	out := History{}
	for _, e := range h {
		if e.Progress > 5 && e.Progress < 95 {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].WatchedAt.After(out[j].WatchedAt) })
	if len(out) > MaxContinueWatching {
		out = out[:MaxContinueWatching]
	}
	return out
}

// RecentKeys returns the identities of the n most recent entries, collapsing
// episodes of the same show.
func (h History) RecentKeys(n int) map[media.Key]struct{} {
	out := make(map[media.Key]struct{}, n)
	for i, e := range h {
		if i >= n {
			break
		}
		out[e.Key()] = struct{}{}
	}
	return out
}

// DerivedInteraction maps a progress report to the interaction it implies.
// ok is false when the entry carries no progress. The event has no title:
// only an explicit completion can seed "Because You Watched".
func DerivedInteraction(e Entry) (interaction.Event, bool) {
	if e.Progress <= 0 {
		return interaction.Event{}, false
	}
	ev := interaction.Event{
		ItemID:    e.ItemID,
		Kind:      e.Kind,
		Timestamp: e.WatchedAt,
		Progress:  interaction.Progress(e.Progress),
		GenreIDs:  e.GenreIDs,
	}
	switch {
	case e.Progress >= completeThreshold:
		ev.Action = interaction.ActionComplete
	case e.Progress < startThreshold:
		ev.Action = interaction.ActionWatchStart
	default:
		ev.Action = interaction.ActionWatchProgress
	}
	return ev, true
}

// Merge reconciles a local and a remote history: per key the entry with the
// later WatchedAt wins (local on ties), then the result is ordered newest
// first and capped.
func Merge(local, remote History) History {
	best := make(map[key]Entry, len(local)+len(remote))
	order := make([]key, 0, len(local)+len(remote))
	consider := func(e Entry) {
		k := e.dedupeKey()
		cur, seen := best[k]
		if !seen {
			order = append(order, k)
			best[k] = e
			return
		}
		if e.WatchedAt.After(cur.WatchedAt) {
			best[k] = e
		}
	}
	for _, e := range local {
		consider(e)
	}
	for _, e := range remote {
		consider(e)
	}

	out := make(History, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].WatchedAt.After(out[j].WatchedAt) })
	if len(out) > MaxEntries {
		out = out[:MaxEntries]
	}
	return out
}
