// Package scoring ranks catalog items against a preference snapshot.
package scoring

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/media-platform/internal/media"
	"github.com/example/media-platform/internal/recommend/preference"
)

type Weights struct {
	GenreMatch  float64
	Popularity  float64
	Recency     float64
	Similarity  float64
	Serendipity float64
}

var DefaultWeights = Weights{
	GenreMatch:  0.35,
	Popularity:  0.20,
	Recency:     0.15,
	Similarity:  0.20,
	Serendipity: 0.10,
}

const (
	neutralScore       = 50
	reasonGenreMin     = 70
	reasonGenreAffMin  = 60
	reasonRecencyMin   = 80
	reasonPopularMin   = 70
	reasonSimilarMin   = 60
	serendipitySpread  = 20
	serendipityExplore = 0.3
)

// Components are the individual sub-scores, each 0–100.
type Components struct {
	GenreMatch  int `json:"genre_match"`
	Popularity  int `json:"popularity"`
	Recency     int `json:"recency"`
	Similarity  int `json:"similarity"`
	Serendipity int `json:"serendipity"`
}

// Score is computed per ranking call and never persisted.
type Score struct {
	ItemID     int64      `json:"item_id"`
	Kind       media.Kind `json:"kind"`
	Composite  int        `json:"score"`
	Reasons    []string   `json:"reasons"`
	Components Components `json:"components"`
}

type Scored struct {
	Item  media.Item `json:"item"`
	Score Score      `json:"recommendation"`
}

// Engine is safe for concurrent use. Serendipity draws from the injected
// random source, so two Score calls for the same item may differ.
type Engine struct {
	weights Weights
	now     func() time.Time

	rng   *rand.Rand
	rngMu sync.Mutex
}

type Option func(*Engine)

// WithRand injects the random source used for serendipity.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rng = r
		}
	}
}

// WithClock sets the reference time for recency.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		weights: DefaultWeights,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // ranking jitter, not security
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Score computes the composite score and reasons for one item.
func (e *Engine) Score(item media.Item, prefs preference.Preferences) Score {
	c := Components{
		GenreMatch: GenreMatch(item.GenreIDs, prefs),
		Popularity: Popularity(item.Popularity),
		Recency:    e.recency(item),
		Similarity: Similarity(item.GenreIDs, prefs),
	}
	c.Serendipity = e.serendipity(c.GenreMatch)

	w := e.weights
	total := float64(c.GenreMatch)*w.GenreMatch +
		float64(c.Popularity)*w.Popularity +
		float64(c.Recency)*w.Recency +
		float64(c.Similarity)*w.Similarity +
		float64(c.Serendipity)*w.Serendipity

	return Score{
		ItemID:     item.ID,
		Kind:       item.Kind,
		Composite:  clampInt(int(math.Round(total)), 0, 100),
		Reasons:    reasons(item.GenreIDs, c, prefs),
		Components: c,
	}
}

// ScoreAndSort scores every item and orders them by composite score,
// descending. Equal scores keep their input order.
func (e *Engine) ScoreAndSort(items []media.Item, prefs preference.Preferences) []Scored {
	out := make([]Scored, len(items))
	for i, it := range items {
		out[i] = Scored{Item: it, Score: e.Score(it, prefs)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score.Composite > out[j].Score.Composite
	})
	return out
}

// GenreMatch averages the affinities of the item's genres that the user has
// a signal for. Items with no genres, or only unseen ones, are neutral.
// Unseen genres are left out of the average, not counted at the neutral 50.
func GenreMatch(genres []int, prefs preference.Preferences) int {
	var total float64
	var n int
	for _, g := range genres {
		if a, ok := prefs.GenreAffinities[g]; ok {
			total += a
			n++
		}
	}
	if n == 0 {
		return neutralScore
	}
	return int(math.Round(total / float64(n)))
}

// Popularity log-compresses raw catalog popularity into 0–100.
func Popularity(p float64) int {
	if p < 0 {
		p = 0
	}
	return min(100, int(math.Round(math.Log10(p+1)*25)))
}

// Recency is a step function of months since release, using 30-day months.
func Recency(released time.Time, known bool, now time.Time) int {
	if !known {
		return neutralScore
	}
	months := now.Sub(released).Hours() / 24 / 30
	switch {
	case months < 1:
		return 100
	case months < 3:
		return 90
	case months < 6:
		return 80
	case months < 12:
		return 70
	case months < 24:
		return 60
	case months < 60:
		return 50
	}
	return 40
}

// Similarity is the share of the item's genres found among recently
// completed titles. Neutral when either side is empty.
func Similarity(genres []int, prefs preference.Preferences) int {
	if len(prefs.RecentlyCompleted) == 0 || len(genres) == 0 {
		return neutralScore
	}
	seen := prefs.CompletedGenres()
	overlap := 0
	for _, g := range genres {
		if _, ok := seen[g]; ok {
			overlap++
		}
	}
	return int(math.Round(float64(overlap) / float64(len(genres)) * 100))
}

func (e *Engine) recency(item media.Item) int {
	released, ok := item.Released()
	return Recency(released, ok, e.now())
}

func (e *Engine) serendipity(genreMatch int) int {
	e.rngMu.Lock()
	jitter := e.rng.Float64() * serendipitySpread
	e.rngMu.Unlock()
	return int(math.Round(float64(100-genreMatch)*serendipityExplore + jitter))
}

func reasons(genres []int, c Components, prefs preference.Preferences) []string {
	out := []string{}
	if c.GenreMatch >= reasonGenreMin {
		var names []string
		for _, g := range genres {
			if prefs.GenreAffinities[g] < reasonGenreAffMin {
				continue
			}
			if n := media.GenreName(g); n != "" {
				names = append(names, n)
			}
			if len(names) == 2 {
				break
			}
		}
		if len(names) > 0 {
			out = append(out, fmt.Sprintf("Matches your taste in %s", strings.Join(names, " & ")))
		}
	}
	if c.Recency >= reasonRecencyMin {
		out = append(out, "Recently released")
	}
	if c.Popularity >= reasonPopularMin {
		out = append(out, "Trending now")
	}
	if c.Similarity >= reasonSimilarMin {
		out = append(out, "Similar to shows you loved")
	}
	return out
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
