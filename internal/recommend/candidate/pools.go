package candidate

import (
	"context"

	"github.com/example/media-platform/internal/media"
)

func (a *Aggregator) trending(kind media.Kind) call {
	return call{op: "trending_" + string(kind), fn: func(ctx context.Context) ([]media.Item, error) {
		items, err := a.provider.Trending(ctx, kind, WindowWeek)
		return withKind(kind, items), err
	}}
}

func (a *Aggregator) discover(kind media.Kind, genre int) call {
	return call{op: "discover_" + string(kind), fn: func(ctx context.Context) ([]media.Item, error) {
		items, err := a.provider.DiscoverByGenre(ctx, kind, genre)
		return withKind(kind, items), err
	}}
}

// TopPicks pools top-genre discovery and trending, split by kind. Without
// a top genre only trending is queried.
func (a *Aggregator) TopPicks(ctx context.Context, topGenre int, hasGenre bool, watched map[media.Key]struct{}) ByKind {
	calls := make([]call, 0, 4)
	if hasGenre {
		calls = append(calls, a.discover(media.KindMovie, topGenre), a.discover(media.KindTV, topGenre))
	}
	calls = append(calls, a.trending(media.KindMovie), a.trending(media.KindTV))
	return splitByKind(Exclude(Merge(a.gather(ctx, calls...)...), watched))
}

// BecauseYouWatched asks for recommendations for the seed and falls back to
// similar titles when there are none.
func (a *Aggregator) BecauseYouWatched(ctx context.Context, seed media.Key, watched map[media.Key]struct{}) []media.Item {
	recs := a.do(ctx, call{op: "recommendations", fn: func(ctx context.Context) ([]media.Item, error) {
		items, err := a.provider.Recommendations(ctx, seed.Kind, seed.ID)
		return withKind(seed.Kind, items), err
	}})
	if len(recs) == 0 {
		recs = a.do(ctx, call{op: "similar", fn: func(ctx context.Context) ([]media.Item, error) {
			items, err := a.provider.Similar(ctx, seed.Kind, seed.ID)
			return withKind(seed.Kind, items), err
		}})
	}
	return Exclude(Merge(recs), watched)
}

// TrendingInGenre discovers movies in genre.
func (a *Aggregator) TrendingInGenre(ctx context.Context, genre int, watched map[media.Key]struct{}) []media.Item {
	return Exclude(Merge(a.gather(ctx, a.discover(media.KindMovie, genre))...), watched)
}

// HiddenGems queries both kinds with their vote bands for up to three
// genres, split by kind.
func (a *Aggregator) HiddenGems(ctx context.Context, genres []int, watched map[media.Key]struct{}) ByKind {
	if len(genres) > 3 {
		genres = genres[:3]
	}
	gem := func(kind media.Kind) call {
		return call{op: "hidden_gems_" + string(kind), fn: func(ctx context.Context) ([]media.Item, error) {
			items, err := a.provider.HiddenGems(ctx, kind, GemBand(kind, genres))
			return withKind(kind, items), err
		}}
	}
	return splitByKind(Exclude(Merge(a.gather(ctx, gem(media.KindMovie), gem(media.KindTV))...), watched))
}

// Hero pools trending movies and shows.
func (a *Aggregator) Hero(ctx context.Context, watched map[media.Key]struct{}) []media.Item {
	return Exclude(Merge(a.gather(ctx, a.trending(media.KindMovie), a.trending(media.KindTV))...), watched)
}

// Details resolves one item, trying kinds in order. ok is false when no
// kind resolves.
func (a *Aggregator) Details(ctx context.Context, id int64, kinds ...media.Kind) (media.Item, bool) {
	for _, kind := range kinds {
		kind := kind
		items := a.do(ctx, call{op: "details_" + string(kind), fn: func(ctx context.Context) ([]media.Item, error) {
			it, err := a.provider.Details(ctx, kind, id)
			if err != nil {
				return nil, err
			}
			return withKind(kind, []media.Item{it}), nil
		}})
		if len(items) == 1 {
			return items[0], true
		}
	}
	return media.Item{}, false
}
