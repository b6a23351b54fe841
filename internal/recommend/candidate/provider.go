package candidate

import (
	"context"

	"github.com/example/media-platform/internal/media"
)

// Window is the trending time window.
type Window string

const (
	WindowDay  Window = "day"
	WindowWeek Window = "week"
)

// GemQuery constrains a hidden-gem discovery call at the provider.
type GemQuery struct {
	GenreIDs  []int
	MinRating float64
	MinVotes  int
	MaxVotes  int
}

// Provider is the read-only catalog the aggregator fans out to. Every call
// may fail; the aggregator degrades failures to empty results.
type Provider interface {
	Trending(ctx context.Context, kind media.Kind, window Window) ([]media.Item, error)
	DiscoverByGenre(ctx context.Context, kind media.Kind, genreID int) ([]media.Item, error)
	Recommendations(ctx context.Context, kind media.Kind, id int64) ([]media.Item, error)
	Similar(ctx context.Context, kind media.Kind, id int64) ([]media.Item, error)
	HiddenGems(ctx context.Context, kind media.Kind, q GemQuery) ([]media.Item, error)
	Details(ctx context.Context, kind media.Kind, id int64) (media.Item, error)
}

// GemBand returns the hidden-gem query for kind: rated at least 7.5 with a
// vote count that is neither obscure nor mainstream.
func GemBand(kind media.Kind, genres []int) GemQuery {
	q := GemQuery{GenreIDs: genres, MinRating: 7.5, MinVotes: 100, MaxVotes: 1000}
	if kind == media.KindTV {
		q.MinVotes, q.MaxVotes = 50, 500
	}
	return q
}
