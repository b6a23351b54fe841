package catalogcache

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/example/media-platform/internal/media"
	"github.com/example/media-platform/internal/platform/metrics"
	"github.com/example/media-platform/internal/recommend/candidate"
)

// Catalog is the full upstream surface: the candidate provider plus search.
type Catalog interface {
	candidate.Provider
	Search(ctx context.Context, query string, page int) (media.Page, error)
}

// Provider decorates a Catalog with a read-through cache. Cache errors are
// logged and treated as misses; upstream errors are never cached.
type Provider struct {
	next  Catalog
	cache Backend
	log   *zap.Logger
}

func New(next Catalog, cache Backend, log *zap.Logger) *Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{next: next, cache: cache, log: log}
}

func cached[T any](ctx context.Context, p *Provider, key string, load func() (T, error)) (T, error) {
	var v T
	hit, err := p.cache.Get(ctx, key, &v)
	if err != nil {
		p.log.Warn("catalog cache get failed", zap.String("key", key), zap.Error(err))
	}
	metrics.RecordCache("catalog", hit)
	if hit {
		return v, nil
	}
	v, err = load()
	if err != nil {
		return v, err
	}
	if err := p.cache.Set(ctx, key, v); err != nil {
		p.log.Warn("catalog cache set failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}

func (p *Provider) Trending(ctx context.Context, kind media.Kind, window candidate.Window) ([]media.Item, error) {
	return cached(ctx, p, fmt.Sprintf("trending:%s:%s", kind, window), func() ([]media.Item, error) {
		return p.next.Trending(ctx, kind, window)
	})
}

func (p *Provider) DiscoverByGenre(ctx context.Context, kind media.Kind, genreID int) ([]media.Item, error) {
	return cached(ctx, p, fmt.Sprintf("discover:%s:%d", kind, genreID), func() ([]media.Item, error) {
		return p.next.DiscoverByGenre(ctx, kind, genreID)
	})
}

func (p *Provider) Recommendations(ctx context.Context, kind media.Kind, id int64) ([]media.Item, error) {
	return cached(ctx, p, fmt.Sprintf("recs:%s:%d", kind, id), func() ([]media.Item, error) {
		return p.next.Recommendations(ctx, kind, id)
	})
}

func (p *Provider) Similar(ctx context.Context, kind media.Kind, id int64) ([]media.Item, error) {
	return cached(ctx, p, fmt.Sprintf("similar:%s:%d", kind, id), func() ([]media.Item, error) {
		return p.next.Similar(ctx, kind, id)
	})
}

func (p *Provider) HiddenGems(ctx context.Context, kind media.Kind, q candidate.GemQuery) ([]media.Item, error) {
	genres := slices.Clone(q.GenreIDs)
	slices.Sort(genres)
	ids := make([]string, len(genres))
	for i, g := range genres {
		ids[i] = strconv.Itoa(g)
	}
	key := fmt.Sprintf("gems:%s:%s:%g:%d:%d", kind, strings.Join(ids, ","), q.MinRating, q.MinVotes, q.MaxVotes)
	return cached(ctx, p, key, func() ([]media.Item, error) {
		return p.next.HiddenGems(ctx, kind, q)
	})
}

func (p *Provider) Details(ctx context.Context, kind media.Kind, id int64) (media.Item, error) {
	return cached(ctx, p, fmt.Sprintf("details:%s:%d", kind, id), func() (media.Item, error) {
		return p.next.Details(ctx, kind, id)
	})
}

func (p *Provider) Search(ctx context.Context, query string, page int) (media.Page, error) {
	key := fmt.Sprintf("search:%d:%s", page, strings.ToLower(strings.TrimSpace(query)))
	return cached(ctx, p, key, func() (media.Page, error) {
		return p.next.Search(ctx, query, page)
	})
}
