// Package candidate gathers unscored candidate pools for feed sections. It
// fans out to the catalog in parallel, isolates failures per call, merges
// and dedupes pools, and drops recently watched items. Ordering and scoring
// happen elsewhere.
package candidate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/media-platform/internal/media"
	"github.com/example/media-platform/internal/platform/metrics"
)

const DefaultCallTimeout = 4 * time.Second

type Aggregator struct {
	provider Provider
	timeout  time.Duration
	log      *zap.Logger
}

type Option func(*Aggregator)

// WithCallTimeout bounds each individual provider call.
func WithCallTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(a *Aggregator) {
		if log != nil {
			a.log = log
		}
	}
}

func NewAggregator(p Provider, opts ...Option) *Aggregator {
	a := &Aggregator{provider: p, timeout: DefaultCallTimeout, log: zap.NewNop()}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Aggregator) Provider() Provider { return a.provider }

type call struct {
	op string
	fn func(ctx context.Context) ([]media.Item, error)
}

// gather runs every call concurrently and returns results in call order. A
// call that fails, times out or panics contributes an empty list.
func (a *Aggregator) gather(ctx context.Context, calls ...call) [][]media.Item {
	out := make([][]media.Item, len(calls))
	var wg sync.WaitGroup
	for i, c := range calls {
		wg.Add(1)
		go func(i int, c call) {
			defer wg.Done()
			out[i] = a.do(ctx, c)
		}(i, c)
	}
	wg.Wait()
	return out
}

func (a *Aggregator) do(ctx context.Context, c call) (items []media.Item) {
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			items = nil
		}
		metrics.RecordProviderCall(c.op, time.Since(start), err)
		if err != nil {
			a.log.Warn("candidate call failed",
				zap.String("op", c.op),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			items = nil
		}
	}()

	items, err = c.fn(cctx)
	return items
}

// Merge concatenates pools and keeps the first occurrence of each
// (kind, id), preserving input order.
func Merge(pools ...[]media.Item) []media.Item {
	n := 0
	for _, p := range pools {
		n += len(p)
	}
	seen := make(map[media.Key]struct{}, n)
	out := make([]media.Item, 0, n)
	for _, p := range pools {
		for _, it := range p {
			k := it.Key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, it)
		}
	}
	return out
}

// Exclude drops items whose (kind, id) is in watched.
func Exclude(items []media.Item, watched map[media.Key]struct{}) []media.Item {
	if len(watched) == 0 {
		return items
	}
	out := make([]media.Item, 0, len(items))
	for _, it := range items {
		if _, ok := watched[it.Key()]; ok {
			continue
		}
		out = append(out, it)
	}
	return out
}

// ByKind keeps movie and show pools apart so each kind is ranked and capped
// on its own.
type ByKind struct {
	Movies []media.Item
	Shows  []media.Item
}

func splitByKind(items []media.Item) ByKind {
	var out ByKind
	for _, it := range items {
		if it.Kind == media.KindTV {
			out.Shows = append(out.Shows, it)
		} else {
			out.Movies = append(out.Movies, it)
		}
	}
	return out
}

// withKind stamps kind on items the provider returned for a kind-specific
// query, so identity is always well formed. The provider's slice may be
// shared with a cache, so stamping happens on a copy.
func withKind(kind media.Kind, items []media.Item) []media.Item {
	if len(items) == 0 {
		return items
	}
	out := make([]media.Item, len(items))
	copy(out, items)
	for i := range out {
		if out[i].Kind == "" {
			out[i].Kind = kind
		}
	}
	return out
}
