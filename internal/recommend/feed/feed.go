// Package feed composes the personalised home feed: named, ranked sections
// plus a single hero pick.
package feed

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/media-platform/internal/media"
	"github.com/example/media-platform/internal/platform/metrics"
	"github.com/example/media-platform/internal/recommend/candidate"
	"github.com/example/media-platform/internal/recommend/history"
	"github.com/example/media-platform/internal/recommend/interaction"
	"github.com/example/media-platform/internal/recommend/preference"
	"github.com/example/media-platform/internal/recommend/scoring"
)

type SectionKind string

const (
	SectionTopPicks          SectionKind = "top_picks"
	SectionBecauseYouWatched SectionKind = "because_you_watched"
	SectionTrendingInGenre   SectionKind = "trending_in_genre"
	SectionHiddenGems        SectionKind = "hidden_gems"
)

const (
	TopPicksLimit          = 20
	BecauseYouWatchedLimit = 10
	TrendingInGenreLimit   = 10
	HiddenGemsLimit        = 10

	// recentlyWatchedWindow is how many history entries are excluded from sections.
	recentlyWatchedWindow = 20
	hiddenGemGenres       = 3
)

type Entry struct {
	Item  media.Item    `json:"item"`
	Score scoring.Score `json:"recommendation"`
	Rank  int           `json:"rank,omitempty"`
}

// Section is one feed row. Single-kind rows fill Items; Top Picks and
// Hidden Gems rank movies and shows independently, each up to the row
// limit, so one kind never crowds out the other.
type Section struct {
	Kind   SectionKind `json:"kind"`
	Title  string      `json:"title"`
	Items  []Entry     `json:"items,omitempty"`
	Movies []Entry     `json:"movies,omitempty"`
	Shows  []Entry     `json:"shows,omitempty"`
}

// Len counts entries across all lists.
func (s Section) Len() int { return len(s.Items) + len(s.Movies) + len(s.Shows) }

// All returns every entry: Items, then movies, then shows.
func (s Section) All() []Entry {
	out := make([]Entry, 0, s.Len())
	out = append(out, s.Items...)
	out = append(out, s.Movies...)
	return append(out, s.Shows...)
}

type Feed struct {
	Sections    []Section `json:"sections"`
	Hero        *Hero     `json:"hero,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Input is one read-only snapshot of a user's state. Preferences must be
// recomputed from Interactions and History before Compose is called.
type Input struct {
	UserID       string
	Preferences  preference.Preferences
	Interactions interaction.Log
	History      history.History
}

// FeaturedSource exposes the administrator's pinned hero item.
type FeaturedSource interface {
	FeaturedItemID(ctx context.Context) (int64, bool, error)
}

type Composer struct {
	agg      *candidate.Aggregator
	engine   *scoring.Engine
	featured FeaturedSource
	now      func() time.Time
	log      *zap.Logger

	rng   *rand.Rand
	rngMu sync.Mutex
}

type Option func(*Composer)

func WithFeatured(f FeaturedSource) Option { return func(c *Composer) { c.featured = f } }

func WithClock(now func() time.Time) Option {
	return func(c *Composer) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRand injects the random source for the hero's top-5 pick.
func WithRand(r *rand.Rand) Option {
	return func(c *Composer) {
		if r != nil {
			c.rng = r
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Composer) {
		if log != nil {
			c.log = log
		}
	}
}

func NewComposer(agg *candidate.Aggregator, engine *scoring.Engine, opts ...Option) *Composer {
	c := &Composer{
		agg:    agg,
		engine: engine,
		now:    time.Now,
		log:    zap.NewNop(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // variety, not security
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type sectionBuilder func(ctx context.Context, in Input, watched map[media.Key]struct{}) (Section, bool)

// Compose builds every section and the hero concurrently. Sections with no
// items are left out. If ctx ends before all sections finish, partial
// results are discarded and ctx.Err() is returned.
func (c *Composer) Compose(ctx context.Context, in Input) (Feed, error) {
	start := time.Now()
	defer func() { metrics.FeedComposeDuration.Observe(time.Since(start).Seconds()) }()

	watched := in.History.RecentKeys(recentlyWatchedWindow)
	builders := []struct {
		kind  SectionKind
		build sectionBuilder
	}{
		{SectionTopPicks, c.topPicks},
		{SectionBecauseYouWatched, c.becauseYouWatched},
		{SectionTrendingInGenre, c.trendingInGenre},
		{SectionHiddenGems, c.hiddenGems},
	}

	results := make([]*Section, len(builders))
	var hero *Hero

	// Section goroutines never return errors, so one slow or empty section
	// never cancels its siblings.
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range builders {
		i, b := i, b
		g.Go(func() error {
			s, ok := b.build(gctx, in, watched)
			if !ok || s.Len() == 0 {
				metrics.FeedSections.WithLabelValues(string(b.kind), "empty").Inc()
				return nil
			}
			metrics.FeedSections.WithLabelValues(string(b.kind), "emitted").Inc()
			results[i] = &s
			return nil
		})
	}
	g.Go(func() error {
		h, err := c.Hero(gctx, in)
		if err == nil {
			hero = h
		}
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Feed{}, err
	}

	out := Feed{Sections: []Section{}, Hero: hero, GeneratedAt: c.now()}
	for _, s := range results {
		if s != nil {
			out.Sections = append(out.Sections, *s)
		}
	}
	return out, nil
}

func (c *Composer) rank(items []media.Item, prefs preference.Preferences, limit int) []Entry {
	scored := c.engine.ScoreAndSort(items, prefs)
	if len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]Entry, len(scored))
	for i, s := range scored {
		out[i] = Entry{Item: s.Item, Score: s.Score}
	}
	return out
}

func (c *Composer) topPicks(ctx context.Context, in Input, watched map[media.Key]struct{}) (Section, bool) {
	top := in.Preferences.TopGenres(1)
	var genre int
	if len(top) > 0 {
		genre = top[0]
	}
	pools := c.agg.TopPicks(ctx, genre, len(top) > 0, watched)
	return Section{
		Kind:   SectionTopPicks,
		Title:  "Top Picks For You",
		Movies: c.rank(pools.Movies, in.Preferences, TopPicksLimit),
		Shows:  c.rank(pools.Shows, in.Preferences, TopPicksLimit),
	}, true
}

func (c *Composer) becauseYouWatched(ctx context.Context, in Input, watched map[media.Key]struct{}) (Section, bool) {
	seed, ok := in.Interactions.LatestCompletedWithTitle()
	if !ok {
		return Section{}, false
	}
	pool := c.agg.BecauseYouWatched(ctx, seed.Key(), watched)
	return Section{
		Kind:  SectionBecauseYouWatched,
		Title: "Because You Watched " + seed.Title,
		Items: c.rank(pool, in.Preferences, BecauseYouWatchedLimit),
	}, true
}

// GenreLabel names the trending row for genre.
func GenreLabel(genre int) string {
	name := media.GenreName(genre)
	if name == "" {
		name = "Your Favorites"
	}
	return fmt.Sprintf("Trending in %s", name)
}

func (c *Composer) trendingInGenre(ctx context.Context, in Input, watched map[media.Key]struct{}) (Section, bool) {
	top := in.Preferences.TopGenres(1)
	if len(top) == 0 {
		return Section{Kind: SectionTrendingInGenre, Title: "Trending in Your Favorites"}, false
	}
	pool := c.agg.TrendingInGenre(ctx, top[0], watched)
	entries := c.rank(pool, in.Preferences, TrendingInGenreLimit)
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return Section{Kind: SectionTrendingInGenre, Title: GenreLabel(top[0]), Items: entries}, true
}

func (c *Composer) hiddenGems(ctx context.Context, in Input, watched map[media.Key]struct{}) (Section, bool) {
	pools := c.agg.HiddenGems(ctx, in.Preferences.TopGenres(hiddenGemGenres), watched)
	return Section{
		Kind:   SectionHiddenGems,
		Title:  "Hidden Gems",
		Movies: c.rank(pools.Movies, in.Preferences, HiddenGemsLimit),
		Shows:  c.rank(pools.Shows, in.Preferences, HiddenGemsLimit),
	}, true
}
