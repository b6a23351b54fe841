// Package preference folds a user's interaction log and watch history into
// genre affinities and viewing habits. Recompute is pure; callers store the
// result and pass it to the scoring engine explicitly.
package preference

import (
	"math"
	"sort"
	"time"

	"github.com/example/media-platform/internal/media"
	"github.com/example/media-platform/internal/recommend/history"
	"github.com/example/media-platform/internal/recommend/interaction"
)

const (
	NeutralAffinity      = 50
	MaxRecentlyCompleted = 20
	completedProgress    = 90
)

var actionWeights = map[interaction.Action]float64{
	interaction.ActionComplete:        10,
	interaction.ActionWatchProgress:   5,
	interaction.ActionWatchStart:      3,
	interaction.ActionAddWatchlist:    4,
	interaction.ActionDownload:        6,
	interaction.ActionView:            1,
	interaction.ActionSearch:          2,
	interaction.ActionAbandon:         -3,
	interaction.ActionRemoveWatchlist: -2,
}

// Weight is the affinity delta one event of action a applies to each of its genres.
func Weight(a interaction.Action) float64 { return actionWeights[a] }

type CompletedItem struct {
	ID       int64      `json:"id"`
	Kind     media.Kind `json:"kind"`
	GenreIDs []int      `json:"genre_ids"`
}

type Preferences struct {
	// GenreAffinities only holds genres seen in the log; use Affinity for lookups.
	GenreAffinities map[int]float64 `json:"genre_affinities"`
	// ContentTypeBalance is 0 for movie-only habits and 100 for show-only.
	ContentTypeBalance int             `json:"content_type_balance"`
	AvgCompletionRate  int             `json:"avg_completion_rate"`
	RecentlyCompleted  []CompletedItem `json:"recently_completed"`
	LastUpdated        time.Time       `json:"last_updated"`
}

// Empty is the state of a user with no history at all.
func Empty(now time.Time) Preferences {
	return Recompute(nil, nil, now)
}

// Recompute derives preferences from the full retained log and history.
func Recompute(events interaction.Log, hist history.History, now time.Time) Preferences {
	affinities := make(map[int]float64)
	var shows, movies int
	var completionTotal float64
	var completionCount int

	for _, ev := range events {
		w := Weight(ev.Action)
		for _, g := range ev.GenreIDs {
			cur, ok := affinities[g]
			if !ok {
				cur = NeutralAffinity
			}
			affinities[g] = cur + w
		}

		if ev.Action == interaction.ActionComplete || ev.Action == interaction.ActionWatchProgress {
			if ev.Kind == media.KindTV {
				shows++
			} else {
				movies++
			}
		}

		if ev.Action == interaction.ActionComplete {
			completionTotal += 100
			completionCount++
		} else if ev.Progress != nil {
			completionTotal += *ev.Progress
			completionCount++
		}
	}

	for g, v := range affinities {
		affinities[g] = clamp(v, 0, 100)
	}

	p := Preferences{
		GenreAffinities:    affinities,
		ContentTypeBalance: 50,
		RecentlyCompleted:  []CompletedItem{},
		LastUpdated:        now,
	}
	if shows+movies > 0 {
		p.ContentTypeBalance = int(math.Round(float64(shows) / float64(shows+movies) * 100))
	}
	if completionCount > 0 {
		p.AvgCompletionRate = int(math.Round(completionTotal / float64(completionCount)))
	}
	for _, e := range hist {
		if len(p.RecentlyCompleted) == MaxRecentlyCompleted {
			break
		}
		if e.Progress >= completedProgress {
			p.RecentlyCompleted = append(p.RecentlyCompleted, CompletedItem{ID: e.ItemID, Kind: e.Kind, GenreIDs: e.GenreIDs})
		}
	}
	return p
}

// Affinity returns the score for genre, or the neutral 50 when unseen.
func (p Preferences) Affinity(genre int) float64 {
	if v, ok := p.GenreAffinities[genre]; ok {
		return v
	}
	return NeutralAffinity
}

// HasAffinities reports whether any genre signal exists yet.
func (p Preferences) HasAffinities() bool { return len(p.GenreAffinities) > 0 }

// TopGenres returns up to n genre ids by descending affinity. Equal scores
// order by lower genre id so the result is deterministic.
func (p Preferences) TopGenres(n int) []int {
	ids := make([]int, 0, len(p.GenreAffinities))
	for g := range p.GenreAffinities {
		ids = append(ids, g)
	}
	sort.Slice(ids, func(i, j int) bool {
		ai, aj := p.GenreAffinities[ids[i]], p.GenreAffinities[ids[j]]
		if ai != aj {
			return ai > aj
		}
		return ids[i] < ids[j]
	})
	if n >= 0 && len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// CompletedGenres is the union of genres across RecentlyCompleted.
func (p Preferences) CompletedGenres() map[int]struct{} {
	out := make(map[int]struct{})
	for _, c := range p.RecentlyCompleted {
		for _, g := range c.GenreIDs {
			out[g] = struct{}{}
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
