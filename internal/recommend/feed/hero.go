package feed

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/example/media-platform/internal/media"
	"github.com/example/media-platform/internal/platform/metrics"
	"github.com/example/media-platform/internal/recommend/preference"
)

const (
	heroWatchedWindow = 10
	heroShortlist     = 5
	heroPreferenceMix = 0.6
)

var ErrNoHero = errors.New("feed: no hero candidate")

type HeroSource string

const (
	HeroFeatured HeroSource = "featured"
	HeroScored   HeroSource = "scored"
)

type Hero struct {
	Item   media.Item `json:"item"`
	Kind   media.Kind `json:"kind"`
	Score  float64    `json:"score"`
	Source HeroSource `json:"source"`
}

// TimeOfDayGenres returns the genres that get a hero bonus at t. Weekends
// override the hour of day.
func TimeOfDayGenres(t time.Time) []int {
	switch wd := t.Weekday(); {
	case wd == time.Saturday || wd == time.Sunday:
		return []int{media.GenreComedy, media.GenreFamily, media.GenreAnimation}
	case t.Hour() >= 6 && t.Hour() < 12:
		return []int{media.GenreDrama, media.GenreRomance, media.GenreComedy}
	case t.Hour() >= 12 && t.Hour() < 18:
		return []int{media.GenreAdventure, media.GenreAction, media.GenreSciFi}
	}
	return []int{media.GenreThriller, media.GenreHorror, media.GenreCrime, media.GenreAction}
}

// Hero picks the banner item. A pinned item always wins when the catalog
// can resolve it; otherwise trending candidates are scored and one of the
// top five is chosen at random.
func (c *Composer) Hero(ctx context.Context, in Input) (*Hero, error) {
	if h, ok := c.featuredHero(ctx); ok {
		metrics.HeroPicks.WithLabelValues(string(HeroFeatured)).Inc()
		return h, nil
	}

	watched := in.History.RecentKeys(heroWatchedWindow)
	pool := c.agg.Hero(ctx, watched)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeGenres := TimeOfDayGenres(c.now())
	type scored struct {
		item  media.Item
		score float64
	}
	candidates := make([]scored, 0, len(pool))
	for _, it := range pool {
		if !it.HasBackdrop() {
			continue
		}
		candidates = append(candidates, scored{item: it, score: c.heroScore(it, in.Preferences, timeGenres)})
	}
	if len(candidates) == 0 {
		metrics.HeroPicks.WithLabelValues("none").Inc()
		return nil, ErrNoHero
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > heroShortlist {
		candidates = candidates[:heroShortlist]
	}

	c.rngMu.Lock()
	pick := candidates[c.rng.Intn(len(candidates))]
	c.rngMu.Unlock()

	metrics.HeroPicks.WithLabelValues(string(HeroScored)).Inc()
	return &Hero{Item: pick.item, Kind: pick.item.Kind, Score: pick.score, Source: HeroScored}, nil
}

func (c *Composer) featuredHero(ctx context.Context) (*Hero, bool) {
	if c.featured == nil {
		return nil, false
	}
	id, ok, err := c.featured.FeaturedItemID(ctx)
	if err != nil {
		c.log.Warn("featured lookup failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	it, found := c.agg.Details(ctx, id, media.KindMovie, media.KindTV)
	if !found {
		c.log.Warn("featured item not found", zap.Int64("item_id", id))
		return nil, false
	}
	return &Hero{Item: it, Kind: it.Kind, Score: 100, Source: HeroFeatured}, true
}

func (c *Composer) heroScore(it media.Item, prefs preference.Preferences, timeGenres []int) float64 {
	var score float64
	if prefs.HasAffinities() {
		score = float64(c.engine.Score(it, prefs).Composite) * heroPreferenceMix
	} else {
		score = it.VoteAverage/10*40 + math.Min(it.Popularity/100, 40)
	}

	for _, g := range it.GenreIDs {
		for _, tg := range timeGenres {
			if g == tg {
				score += 10
				break
			}
		}
	}
	if it.VoteAverage >= 7.5 {
		score += 10
	}
	if it.HasBackdrop() {
		score += 5
	}
	if n := len([]rune(it.Overview)); n >= 100 && n < 400 {
		score += 5
	}
	return math.Max(0, math.Min(100, score))
}
