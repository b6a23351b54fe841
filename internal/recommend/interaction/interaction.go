// Package interaction defines user interaction events and the bounded,
// newest-first log they are kept in.
package interaction

import (
	"time"

	"github.com/example/media-platform/internal/media"
)

// MaxEvents bounds the log. Appending beyond it evicts from the tail.
const MaxEvents = 500

type Action string

const (
	ActionView            Action = "view"
	ActionWatchStart      Action = "watch_start"
	ActionWatchProgress   Action = "watch_progress"
	ActionComplete        Action = "complete"
	ActionAbandon         Action = "abandon"
	ActionAddWatchlist    Action = "add_watchlist"
	ActionRemoveWatchlist Action = "remove_watchlist"
	ActionDownload        Action = "download"
	ActionSearch          Action = "search"
)

// Actions lists every known action in a stable order.
var Actions = []Action{
	ActionView, ActionWatchStart, ActionWatchProgress, ActionComplete, ActionAbandon,
	ActionAddWatchlist, ActionRemoveWatchlist, ActionDownload, ActionSearch,
}

func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// Event records one user action against a catalog item. Events are treated
// as immutable once appended.
type Event struct {
	ItemID    int64      `json:"item_id" validate:"required,gt=0"`
	Kind      media.Kind `json:"kind" validate:"required,oneof=movie tv"`
	Action    Action     `json:"action" validate:"required,oneof=view watch_start watch_progress complete abandon add_watchlist remove_watchlist download search"`
	Timestamp time.Time  `json:"timestamp"`
	// Progress is a percentage; nil means the event carried none.
	Progress *float64 `json:"progress,omitempty" validate:"omitempty,gte=0,lte=100"`
	Title    string   `json:"title,omitempty" validate:"max=512"`
	GenreIDs []int    `json:"genre_ids,omitempty" validate:"dive,gt=0"`
}

func (e Event) Key() media.Key { return media.Key{Kind: e.Kind, ID: e.ItemID} }

// Progress returns a pointer to p for building events.
func Progress(p float64) *float64 { return &p }

// Log holds events newest first.
type Log []Event

// Append returns a new log with e at the head, truncated to MaxEvents.
// The receiver is not modified.
func (l Log) Append(e Event) Log {
	n := len(l) + 1
	if n > MaxEvents {
		n = MaxEvents
	}
	out := make(Log, n)
	out[0] = e
	copy(out[1:], l)
	return out
}

// LatestCompletedWithTitle returns the most recent complete event that
// carries a title.
func (l Log) LatestCompletedWithTitle() (Event, bool) {
	for _, e := range l {
		if e.Action == ActionComplete && e.Title != "" {
			return e, true
		}
	}
	return Event{}, false
}
