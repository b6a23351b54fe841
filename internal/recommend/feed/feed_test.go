package feed

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/media-platform/internal/media"
	"github.com/example/media-platform/internal/recommend/candidate"
	"github.com/example/media-platform/internal/recommend/history"
	"github.com/example/media-platform/internal/recommend/interaction"
	"github.com/example/media-platform/internal/recommend/preference"
	"github.com/example/media-platform/internal/recommend/scoring"
)

// Tuesday evening.
var now = time.Date(2025, 6, 3, 21, 0, 0, 0, time.UTC)

type stubCatalog struct {
	candidate.Provider

	mu       sync.Mutex
	trending map[media.Kind][]media.Item
	discover map[media.Kind][]media.Item
	recs     []media.Item
	gems     map[media.Kind][]media.Item
	details  map[media.Key]media.Item
	block    bool
}

func (s *stubCatalog) Trending(ctx context.Context, kind media.Kind, _ candidate.Window) ([]media.Item, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return clone(s.trending[kind]), nil
}

func (s *stubCatalog) DiscoverByGenre(_ context.Context, kind media.Kind, _ int) ([]media.Item, error) {
	return clone(s.discover[kind]), nil
}

func (s *stubCatalog) Recommendations(context.Context, media.Kind, int64) ([]media.Item, error) {
	return clone(s.recs), nil
}

func (s *stubCatalog) Similar(context.Context, media.Kind, int64) ([]media.Item, error) {
	return nil, nil
}

func (s *stubCatalog) HiddenGems(_ context.Context, kind media.Kind, _ candidate.GemQuery) ([]media.Item, error) {
	return clone(s.gems[kind]), nil
}

func (s *stubCatalog) Details(_ context.Context, kind media.Kind, id int64) (media.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.details[media.Key{Kind: kind, ID: id}]
	if !ok {
		return media.Item{}, errors.New("404")
	}
	return it, nil
}

func clone(items []media.Item) []media.Item {
	return append([]media.Item(nil), items...)
}

type pin struct {
	mu sync.Mutex
	id int64
}

func (p *pin) FeaturedItemID(context.Context) (int64, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id, p.id != 0, nil
}

func item(kind media.Kind, id int64, genres ...int) media.Item {
	return media.Item{
		ID: id, Kind: kind, Title: "t", GenreIDs: genres,
		Popularity: 100, VoteAverage: 7, BackdropPath: "/b.jpg", ReleaseDate: "2024-01-01",
	}
}

func newComposer(cat *stubCatalog, opts ...Option) *Composer {
	agg := candidate.NewAggregator(cat, candidate.WithCallTimeout(200*time.Millisecond))
	engine := scoring.NewEngine(scoring.WithRand(rand.New(rand.NewSource(1))), scoring.WithClock(func() time.Time { return now }))
	opts = append([]Option{WithClock(func() time.Time { return now }), WithRand(rand.New(rand.NewSource(2)))}, opts...)
	return NewComposer(agg, engine, opts...)
}

func sectionByKind(f Feed, k SectionKind) (Section, bool) {
	for _, s := range f.Sections {
		if s.Kind == k {
			return s, true
		}
	}
	return Section{}, false
}

func TestCompose_NewUser(t *testing.T) {
	cat := &stubCatalog{
		trending: map[media.Kind][]media.Item{
			media.KindMovie: {item(media.KindMovie, 1, 28), item(media.KindMovie, 2, 35)},
			media.KindTV:    {item(media.KindTV, 3, 18)},
		},
	}
	c := newComposer(cat)
	in := Input{Preferences: preference.Empty(now)}

	if in.Preferences.ContentTypeBalance != 50 || in.Preferences.AvgCompletionRate != 0 || len(in.Preferences.GenreAffinities) != 0 {
		t.Fatalf("unexpected empty preferences %+v", in.Preferences)
	}

	f, err := c.Compose(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := sectionByKind(f, SectionBecauseYouWatched); ok {
		t.Fatal("expected because-you-watched to be omitted without a seed")
	}
	if _, ok := sectionByKind(f, SectionTrendingInGenre); ok {
		t.Fatal("expected trending-in-genre to be omitted without affinities")
	}
	if _, ok := sectionByKind(f, SectionHiddenGems); ok {
		t.Fatal("expected empty hidden gems to be omitted")
	}
	top, ok := sectionByKind(f, SectionTopPicks)
	if !ok || len(top.Movies) != 2 || len(top.Shows) != 1 {
		t.Fatalf("expected 2 movie and 1 show top picks, got %+v", f.Sections)
	}
	if f.Hero == nil || f.Hero.Source != HeroScored {
		t.Fatalf("expected a scored hero, got %+v", f.Hero)
	}
}

func TestHero_HeuristicWithoutAffinities(t *testing.T) {
	it := media.Item{
		ID: 10, Kind: media.KindMovie, GenreIDs: []int{media.GenreThriller},
		Popularity: 500, VoteAverage: 8, BackdropPath: "/x.jpg",
		Overview: strings.Repeat("a", 150),
	}
	c := newComposer(&stubCatalog{trending: map[media.Kind][]media.Item{media.KindMovie: {it}}})

	h, err := c.Hero(context.Background(), Input{Preferences: preference.Empty(now)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 8/10*40 + min(5, 40) + thriller at night 10 + rating 10 + backdrop 5 + overview 5
	if h.Score != 67 {
		t.Fatalf("expected heuristic score 67, got %v", h.Score)
	}
}

func TestHero_PreferenceBranchWithAffinities(t *testing.T) {
	it := media.Item{ID: 10, Kind: media.KindMovie, GenreIDs: []int{99}, Popularity: 0, BackdropPath: "/x.jpg"}
	c := newComposer(&stubCatalog{trending: map[media.Kind][]media.Item{media.KindMovie: {it}}})
	prefs := preference.Preferences{GenreAffinities: map[int]float64{18: 80}}

	h, err := c.Hero(context.Background(), Input{Preferences: prefs})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	composite := c.engine.Score(it, prefs).Composite
	// Serendipity makes composite vary by at most 2 points after weighting.
	want := float64(composite)*0.6 + 5
	if diff := h.Score - want; diff > 1.5 || diff < -1.5 {
		t.Fatalf("expected score near %v, got %v", want, h.Score)
	}
}

func TestHero_ExcludesNoBackdropAndRecentlyWatched(t *testing.T) {
	noBackdrop := item(media.KindMovie, 1)
	noBackdrop.BackdropPath = ""
	cat := &stubCatalog{trending: map[media.Kind][]media.Item{
		media.KindMovie: {noBackdrop, item(media.KindMovie, 2)},
		media.KindTV:    {item(media.KindTV, 3)},
	}}
	c := newComposer(cat)
	hist := history.History{}.Add(history.Entry{ItemID: 2, Kind: media.KindMovie, Progress: 50, WatchedAt: now})

	for i := 0; i < 20; i++ {
		h, err := c.Hero(context.Background(), Input{History: hist})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.Item.Key() != (media.Key{Kind: media.KindTV, ID: 3}) {
			t.Fatalf("expected tv 3, got %v", h.Item.Key())
		}
	}
}

func TestHero_PicksFromTopFive(t *testing.T) {
	var movies []media.Item
	for i := int64(1); i <= 10; i++ {
		it := item(media.KindMovie, i)
		// higher id, higher rating, higher hero score
		it.VoteAverage = float64(i) / 2
		movies = append(movies, it)
	}
	c := newComposer(&stubCatalog{trending: map[media.Kind][]media.Item{media.KindMovie: movies}})

	for i := 0; i < 50; i++ {
		h, err := c.Hero(context.Background(), Input{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.Item.ID < 6 {
			t.Fatalf("picked %d outside the top five", h.Item.ID)
		}
	}
}

func TestHero_NoCandidates(t *testing.T) {
	c := newComposer(&stubCatalog{})
	if _, err := c.Hero(context.Background(), Input{}); !errors.Is(err, ErrNoHero) {
		t.Fatalf("expected ErrNoHero, got %v", err)
	}
}

func TestHero_PinnedOverride(t *testing.T) {
	featured := media.Item{ID: 550, Title: "Fight Club"}
	cat := &stubCatalog{
		trending: map[media.Kind][]media.Item{media.KindMovie: {item(media.KindMovie, 1, media.GenreThriller)}},
		details:  map[media.Key]media.Item{{Kind: media.KindMovie, ID: 550}: featured},
	}
	p := &pin{id: 550}
	c := newComposer(cat, WithFeatured(p))

	for i := 0; i < 5; i++ {
		h, err := c.Hero(context.Background(), Input{Preferences: preference.Preferences{GenreAffinities: map[int]float64{53: 100}}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.Item.ID != 550 || h.Kind != media.KindMovie || h.Source != HeroFeatured {
			t.Fatalf("expected pinned movie 550, got %+v", h)
		}
	}

	p.mu.Lock()
	p.id = 0
	p.mu.Unlock()
	h, err := c.Hero(context.Background(), Input{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Item.ID != 1 || h.Source != HeroScored {
		t.Fatalf("expected scored hero after clearing the pin, got %+v", h)
	}
}

func TestHero_PinnedShowResolvedAfterMovieMiss(t *testing.T) {
	cat := &stubCatalog{details: map[media.Key]media.Item{{Kind: media.KindTV, ID: 1399}: {ID: 1399}}}
	c := newComposer(cat, WithFeatured(&pin{id: 1399}))
	h, err := c.Hero(context.Background(), Input{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Kind != media.KindTV {
		t.Fatalf("expected tv, got %s", h.Kind)
	}
}

func TestCompose_ExcludesRecentlyWatchedEverywhere(t *testing.T) {
	watched := item(media.KindMovie, 42, 18)
	cat := &stubCatalog{
		trending: map[media.Kind][]media.Item{media.KindMovie: {watched, item(media.KindMovie, 1, 18)}},
		discover: map[media.Kind][]media.Item{media.KindMovie: {watched, item(media.KindMovie, 2, 18)}},
		recs:     []media.Item{watched, item(media.KindMovie, 3, 18)},
		gems:     map[media.Kind][]media.Item{media.KindMovie: {watched, item(media.KindMovie, 4, 18)}},
	}
	c := newComposer(cat)

	log := interaction.Log{}.Append(interaction.Event{ItemID: 42, Kind: media.KindMovie, Action: interaction.ActionComplete, Title: "Seven", GenreIDs: []int{18}})
	hist := history.History{}.Add(history.Entry{ItemID: 42, Kind: media.KindMovie, Progress: 100, WatchedAt: now, GenreIDs: []int{18}})
	in := Input{Interactions: log, History: hist, Preferences: preference.Recompute(log, hist, now)}

	f, err := c.Compose(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Sections) != 4 {
		t.Fatalf("expected all four sections, got %d", len(f.Sections))
	}
	for _, s := range f.Sections {
		for _, e := range s.All() {
			if e.Item.Key() == watched.Key() {
				t.Fatalf("watched item leaked into %s", s.Kind)
			}
		}
	}
	if f.Hero != nil && f.Hero.Item.Key() == watched.Key() {
		t.Fatal("watched item chosen as hero")
	}
}

func TestCompose_SectionTitlesAndRanks(t *testing.T) {
	var drama []media.Item
	for i := int64(1); i <= 15; i++ {
		drama = append(drama, item(media.KindMovie, i, media.GenreDrama))
	}
	cat := &stubCatalog{
		discover: map[media.Kind][]media.Item{media.KindMovie: drama},
		recs:     []media.Item{item(media.KindTV, 100, media.GenreDrama)},
	}
	c := newComposer(cat)
	log := interaction.Log{}.Append(interaction.Event{ItemID: 1399, Kind: media.KindTV, Action: interaction.ActionComplete, Title: "Game of Thrones", GenreIDs: []int{media.GenreDrama}})
	in := Input{Interactions: log, Preferences: preference.Recompute(log, nil, now)}

	f, err := c.Compose(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byw, ok := sectionByKind(f, SectionBecauseYouWatched)
	if !ok || byw.Title != "Because You Watched Game of Thrones" {
		t.Fatalf("unexpected because-you-watched section %+v", byw)
	}
	tig, ok := sectionByKind(f, SectionTrendingInGenre)
	if !ok || tig.Title != "Trending in Drama" {
		t.Fatalf("unexpected trending section title %q", tig.Title)
	}
	if len(tig.Items) != TrendingInGenreLimit {
		t.Fatalf("expected %d items, got %d", TrendingInGenreLimit, len(tig.Items))
	}
	for i, e := range tig.Items {
		if e.Rank != i+1 {
			t.Fatalf("expected rank %d, got %d", i+1, e.Rank)
		}
	}
	top, _ := sectionByKind(f, SectionTopPicks)
	if len(top.Movies) != 15 || len(top.Shows) != 0 {
		t.Fatalf("expected 15 movie top picks, got %d movies %d shows", len(top.Movies), len(top.Shows))
	}
	for i := 1; i < len(top.Movies); i++ {
		if top.Movies[i].Score.Composite > top.Movies[i-1].Score.Composite {
			t.Fatal("top picks not sorted by composite")
		}
	}
	if f.Sections[0].Kind != SectionTopPicks {
		t.Fatalf("expected top picks first, got %s", f.Sections[0].Kind)
	}
}

func TestCompose_PopularMoviesDoNotCrowdOutShows(t *testing.T) {
	var movies, shows []media.Item
	for i := int64(1); i <= 25; i++ {
		m := item(media.KindMovie, i, 28)
		m.Popularity = 5000
		movies = append(movies, m)
	}
	for i := int64(101); i <= 105; i++ {
		sh := item(media.KindTV, i, 18)
		sh.Popularity = 1
		shows = append(shows, sh)
	}
	cat := &stubCatalog{
		trending: map[media.Kind][]media.Item{media.KindMovie: movies, media.KindTV: shows},
		gems:     map[media.Kind][]media.Item{media.KindMovie: movies, media.KindTV: shows},
	}
	f, err := newComposer(cat).Compose(context.Background(), Input{Preferences: preference.Empty(now)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		kind   SectionKind
		movies int
	}{
		{SectionTopPicks, TopPicksLimit},
		{SectionHiddenGems, HiddenGemsLimit},
	}
	for _, c := range cases {
		s, ok := sectionByKind(f, c.kind)
		if !ok {
			t.Fatalf("expected %s section", c.kind)
		}
		if len(s.Movies) != c.movies || len(s.Shows) != 5 {
			t.Fatalf("%s: expected %d movies and 5 shows, got %d and %d", c.kind, c.movies, len(s.Movies), len(s.Shows))
		}
		for _, e := range s.Shows {
			if e.Item.Kind != media.KindTV {
				t.Fatalf("%s: movie in show list: %+v", c.kind, e.Item)
			}
		}
	}
}

func TestCompose_CancelledContextDiscardsResults(t *testing.T) {
	c := newComposer(&stubCatalog{block: true})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	f, err := c.Compose(ctx, Input{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(f.Sections) != 0 || f.Hero != nil {
		t.Fatal("expected no partial feed")
	}
}

func TestTimeOfDayGenres(t *testing.T) {
	cases := []struct {
		at   time.Time
		want []int
	}{
		{time.Date(2025, 6, 7, 9, 0, 0, 0, time.UTC), []int{35, 10751, 16}},   // Saturday
		{time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC), []int{18, 10749, 35}},   // Monday morning
		{time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC), []int{12, 28, 878}},    // afternoon
		{time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC), []int{53, 27, 80, 28}}, // evening
		{time.Date(2025, 6, 3, 3, 0, 0, 0, time.UTC), []int{53, 27, 80, 28}},  // night
	}
	for _, c := range cases {
		got := TimeOfDayGenres(c.at)
		if len(got) != len(c.want) {
			t.Fatalf("%v: expected %v, got %v", c.at, c.want, got)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%v: expected %v, got %v", c.at, c.want, got)
			}
		}
	}
}

func TestGenreLabel(t *testing.T) {
	if GenreLabel(media.GenreSciFi) != "Trending in Sci-Fi" {
		t.Fatalf("unexpected label %q", GenreLabel(media.GenreSciFi))
	}
	if GenreLabel(4242) != "Trending in Your Favorites" {
		t.Fatalf("unexpected fallback label %q", GenreLabel(4242))
	}
}
