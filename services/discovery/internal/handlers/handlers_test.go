package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"

	"github.com/example/media-platform/internal/media"
	"github.com/example/media-platform/internal/platform/auth"
	"github.com/example/media-platform/internal/platform/events"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/internal/recommend/candidate"
	"github.com/example/media-platform/internal/recommend/feed"
	"github.com/example/media-platform/internal/recommend/scoring"
	"github.com/example/media-platform/internal/settings"
	"github.com/example/media-platform/internal/userstate"
	"github.com/example/media-platform/services/discovery/internal/catalogcache"
	"github.com/example/media-platform/services/discovery/internal/sources"
	"github.com/example/media-platform/services/discovery/internal/tmdb"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!!")

func token(subject, role string) string {
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
	signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	return signed
}

type stubComposer struct {
	mu      sync.Mutex
	lastIn  feed.Input
	hero    *feed.Hero
	heroErr error
	err     error
}

func (s *stubComposer) Compose(_ context.Context, in feed.Input) (feed.Feed, error) {
	s.mu.Lock()
	s.lastIn = in
	s.mu.Unlock()
	if s.err != nil {
		return feed.Feed{}, s.err
	}
	return feed.Feed{Sections: []feed.Section{{Kind: feed.SectionTopPicks, Title: "Top Picks For You"}}}, nil
}

func (s *stubComposer) Hero(_ context.Context, in feed.Input) (*feed.Hero, error) {
	s.mu.Lock()
	s.lastIn = in
	s.mu.Unlock()
	return s.hero, s.heroErr
}

type stubCatalog struct {
	catalogcache.Catalog
	detailsErr error
	searches   int
}

func (s *stubCatalog) Trending(_ context.Context, kind media.Kind, _ candidate.Window) ([]media.Item, error) {
	return []media.Item{{ID: 1, Kind: kind, Title: "Trending"}}, nil
}

func (s *stubCatalog) Details(_ context.Context, kind media.Kind, id int64) (media.Item, error) {
	if s.detailsErr != nil {
		return media.Item{}, s.detailsErr
	}
	return media.Item{ID: id, Kind: kind, Title: "Details"}, nil
}

func (s *stubCatalog) Search(_ context.Context, q string, page int) (media.Page, error) {
	s.searches++
	return media.Page{Page: page, TotalResults: 1, Results: []media.Item{{ID: 5, Kind: media.KindMovie, Title: q}}}, nil
}

type fakeJetStream struct {
	mu   sync.Mutex
	msgs []*nats.Msg
	err  error
}

func (f *fakeJetStream) PublishMsg(m *nats.Msg, _ ...nats.PubOpt) (*nats.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, m)
	return &nats.PubAck{Stream: events.StreamActivity}, nil
}

type testEnv struct {
	router   chi.Router
	tracker  *userstate.Tracker
	settings *settings.Service
	composer *stubComposer
	catalog  *stubCatalog
}

func newEnv(t *testing.T, publisher *EventPublisher) *testEnv {
	t.Helper()
	env := &testEnv{
		tracker:  userstate.NewTracker(userstate.NewMemoryStore(), nil),
		settings: settings.NewService(settings.NewMemoryStore()),
		composer: &stubComposer{},
		catalog:  &stubCatalog{},
	}
	r := chi.NewRouter()
	r.Use(httpserver.RequestIDMiddleware(""))
	Mount(r, Deps{
		Verifier: auth.JWTVerifier{Secret: testSecret},
		States:   env.tracker,
		Composer: env.composer,
		Cards:    scoring.NewEngine(scoring.WithRand(rand.New(rand.NewSource(1)))),
		Catalog:  env.catalog,
		Settings: env.settings,
		Sources:  sources.NewResolver(env.settings, nil),
		Events:   publisher,
	})
	env.router = r
	return env
}

func (e *testEnv) do(method, path, tok string, body any) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env.Error.Code
}

func TestFeed_RequiresAuth(t *testing.T) {
	env := newEnv(t, nil)
	rr := env.do(http.MethodGet, "/v1/feed", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestFeed_InvalidTokenRejected(t *testing.T) {
	env := newEnv(t, nil)
	rr := env.do(http.MethodGet, "/v1/feed", "garbage", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestInteraction_InlineRecomputesBeforeFeed(t *testing.T) {
	env := newEnv(t, nil)
	tok := token("user-1", "")

	rr := env.do(http.MethodPost, "/v1/interactions", tok, map[string]any{
		"item_id": 27205, "kind": "movie", "action": "complete", "genre_ids": []int{878, 28},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.do(http.MethodGet, "/v1/feed", tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	in := env.composer.lastIn
	if in.UserID != "user-1" {
		t.Fatalf("expected user-1, got %q", in.UserID)
	}
	if got := in.Preferences.Affinity(878); got != 60 {
		t.Fatalf("expected sci-fi affinity 60, got %v", got)
	}
	if len(in.Interactions) != 1 {
		t.Fatalf("expected 1 interaction, got %d", len(in.Interactions))
	}
}

func TestInteraction_ValidationFailure(t *testing.T) {
	env := newEnv(t, nil)
	rr := env.do(http.MethodPost, "/v1/interactions", token("u", ""), map[string]any{
		"item_id": 1, "kind": "podcast", "action": "view",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %s", code)
	}
}

func TestInteraction_AsyncPublish(t *testing.T) {
	js := &fakeJetStream{}
	env := newEnv(t, NewEventPublisher(js, true))
	tok := token("user-2", "")

	rr := env.do(http.MethodPost, "/v1/interactions", tok, map[string]any{
		"item_id": 9, "kind": "tv", "action": "view", "genre_ids": []int{18},
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	eventID := rr.Header().Get("X-Event-ID")
	if eventID == "" {
		t.Fatal("expected X-Event-ID header")
	}
	if len(js.msgs) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(js.msgs))
	}
	m := js.msgs[0]
	if m.Subject != events.SubjectInteraction || m.Header.Get(events.HeaderMsgID) != eventID {
		t.Fatalf("unexpected message subject=%s msgid=%s", m.Subject, m.Header.Get(events.HeaderMsgID))
	}
	if rid := rr.Header().Get(httpserver.HeaderRequestID); rid == "" || m.Header.Get(events.HeaderRequestID) != rid {
		t.Fatalf("expected request id %q on the message, got %q", rid, m.Header.Get(events.HeaderRequestID))
	}
	var envlp events.InteractionEnvelope
	if err := json.Unmarshal(m.Data, &envlp); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envlp.UserID != "user-2" || envlp.Event.ItemID != 9 {
		t.Fatalf("unexpected envelope: %+v", envlp)
	}

	st, _ := env.tracker.Snapshot(context.Background(), "user-2")
	if len(st.Interactions) != 0 {
		t.Fatal("expected async path to leave state for the worker")
	}
}

func TestInteraction_PublishFailure(t *testing.T) {
	env := newEnv(t, NewEventPublisher(&fakeJetStream{err: errors.New("no responders")}, true))
	rr := env.do(http.MethodPost, "/v1/interactions", token("u", ""), map[string]any{
		"item_id": 9, "kind": "tv", "action": "view",
	})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestWatchlist_AddDedupeRemove(t *testing.T) {
	env := newEnv(t, nil)
	tok := token("u", "")
	item := map[string]any{"item_id": 42, "kind": "movie", "title": "x", "genre_ids": []int{35}}

	for i := 0; i < 2; i++ {
		if rr := env.do(http.MethodPost, "/v1/watchlist", tok, item); rr.Code != http.StatusOK {
			t.Fatalf("add %d: expected 200, got %d", i, rr.Code)
		}
	}
	st, _ := env.tracker.Snapshot(context.Background(), "u")
	if len(st.Watchlist) != 1 || len(st.Interactions) != 1 {
		t.Fatalf("expected dedupe, got %d items %d interactions", len(st.Watchlist), len(st.Interactions))
	}

	if rr := env.do(http.MethodDelete, "/v1/watchlist/movie/42", tok, nil); rr.Code != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d", rr.Code)
	}
	st, _ = env.tracker.Snapshot(context.Background(), "u")
	if len(st.Watchlist) != 0 || st.Interactions[0].Action != "remove_watchlist" {
		t.Fatalf("unexpected state after remove: %+v", st.Watchlist)
	}

	if rr := env.do(http.MethodDelete, "/v1/watchlist/book/42", tok, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad kind, got %d", rr.Code)
	}
}

func TestHistory_PostAndContinue(t *testing.T) {
	env := newEnv(t, nil)
	tok := token("u", "")

	rr := env.do(http.MethodPost, "/v1/history", tok, map[string]any{"item_id": 1, "kind": "movie", "progress": 40})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = env.do(http.MethodPost, "/v1/history", tok, map[string]any{"item_id": 2, "kind": "movie", "progress": 120})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for progress over 100, got %d", rr.Code)
	}

	rr = env.do(http.MethodGet, "/v1/history/continue", tok, nil)
	var body struct {
		Items []struct {
			ItemID int64 `json:"item_id"`
		} `json:"items"`
	}
	_ = json.NewDecoder(rr.Body).Decode(&body)
	if len(body.Items) != 1 || body.Items[0].ItemID != 1 {
		t.Fatalf("expected item 1 in continue watching, got %+v", body.Items)
	}

	if rr := env.do(http.MethodDelete, "/v1/history", tok, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestSearch_RecordsRecentSearchForUsersOnly(t *testing.T) {
	env := newEnv(t, nil)
	tok := token("u", "")

	if rr := env.do(http.MethodGet, "/v1/catalog/search?q=dune", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("anonymous search: expected 200, got %d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/v1/catalog/search?q=alien", tok, nil); rr.Code != http.StatusOK {
		t.Fatalf("user search: expected 200, got %d", rr.Code)
	}
	_ = env.do(http.MethodGet, "/v1/catalog/search?q=alien", tok, nil)
	if env.catalog.searches != 2 {
		t.Fatalf("expected repeated query served from cache, got %d upstream calls", env.catalog.searches)
	}

	rr := env.do(http.MethodGet, "/v1/searches", tok, nil)
	var body struct {
		Items []string `json:"items"`
	}
	_ = json.NewDecoder(rr.Body).Decode(&body)
	if len(body.Items) != 1 || body.Items[0] != "alien" {
		t.Fatalf("expected [alien], got %v", body.Items)
	}

	if rr := env.do(http.MethodGet, "/v1/catalog/search?q=", tok, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty query, got %d", rr.Code)
	}
}

func TestDetails_ErrorMapping(t *testing.T) {
	env := newEnv(t, nil)

	env.catalog.detailsErr = &tmdb.StatusError{Code: http.StatusNotFound}
	if rr := env.do(http.MethodGet, "/v1/catalog/movie/1", "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	env.catalog.detailsErr = gobreaker.ErrOpenState
	if rr := env.do(http.MethodGet, "/v1/catalog/movie/2", "", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	env.catalog.detailsErr = errors.New("boom")
	if rr := env.do(http.MethodGet, "/v1/catalog/movie/3", "", nil); rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	env.catalog.detailsErr = nil
	if rr := env.do(http.MethodGet, "/v1/catalog/show/4", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for show alias, got %d", rr.Code)
	}
}

func TestTrending_Route(t *testing.T) {
	env := newEnv(t, nil)
	rr := env.do(http.MethodGet, "/v1/catalog/trending/tv?window=day", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"window":"day"`) {
		t.Fatalf("expected day window, got %s", rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), `"cards"`) {
		t.Fatal("expected no match cards for anonymous callers")
	}

	rr = env.do(http.MethodGet, "/v1/catalog/trending/tv?window=day", token("u", ""), nil)
	var body struct {
		Cards map[string]scoring.Card `json:"cards"`
	}
	_ = json.NewDecoder(rr.Body).Decode(&body)
	if _, ok := body.Cards["1"]; !ok {
		t.Fatalf("expected a match card for item 1, got %v", body.Cards)
	}
}

func TestHero_AnonymousAndMissing(t *testing.T) {
	env := newEnv(t, nil)
	env.composer.hero = &feed.Hero{Item: media.Item{ID: 7, Kind: media.KindMovie}, Kind: media.KindMovie, Source: feed.HeroScored}

	rr := env.do(http.MethodGet, "/v1/feed/hero", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if env.composer.lastIn.UserID != "" {
		t.Fatal("expected anonymous input")
	}

	env.composer.hero, env.composer.heroErr = nil, feed.ErrNoHero
	if rr := env.do(http.MethodGet, "/v1/feed/hero", "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	env := newEnv(t, nil)
	rr := env.do(http.MethodPut, "/v1/admin/featured", token("u", "user"), map[string]any{"item_id": 1})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	rr = env.do(http.MethodPut, "/v1/admin/featured", token("a", "admin"), map[string]any{"item_id": 550})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	id, ok, _ := env.settings.FeaturedItemID(context.Background())
	if !ok || id != 550 {
		t.Fatalf("expected featured 550, got %d %v", id, ok)
	}
}

func TestLockdown(t *testing.T) {
	env := newEnv(t, nil)
	admin := token("a", "admin")
	user := token("u", "")

	if rr := env.do(http.MethodPost, "/v1/admin/announcements", admin, map[string]any{"message": "maintenance", "type": "warning"}); rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if rr := env.do(http.MethodPut, "/v1/admin/lockdown", admin, map[string]any{"locked": true, "message": "down"}); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr := env.do(http.MethodGet, "/v1/feed", user, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 during lockdown, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "LOCKDOWN" {
		t.Fatalf("expected LOCKDOWN, got %s", code)
	}
	if rr := env.do(http.MethodGet, "/v1/feed", admin, nil); rr.Code != http.StatusOK {
		t.Fatalf("expected admin to bypass lockdown, got %d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/v1/announcements", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected announcements during lockdown, got %d", rr.Code)
	}

	_ = env.do(http.MethodPut, "/v1/admin/lockdown", admin, map[string]any{"locked": false, "guest_only": true})
	if rr := env.do(http.MethodGet, "/v1/feed", user, nil); rr.Code != http.StatusOK {
		t.Fatalf("expected signed-in user allowed during guest lockdown, got %d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/v1/catalog/trending/movie", "", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected guest locked out, got %d", rr.Code)
	}
}

func TestSources_RespectsToggle(t *testing.T) {
	env := newEnv(t, nil)
	admin := token("a", "admin")

	if rr := env.do(http.MethodPost, "/v1/admin/sources/vidsrc/toggle", admin, nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr := env.do(http.MethodGet, "/v1/sources/tv/1399?season=1&episode=2", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Sources []sources.Source `json:"sources"`
	}
	_ = json.NewDecoder(rr.Body).Decode(&body)
	if len(body.Sources) == 0 {
		t.Fatal("expected sources")
	}
	for _, s := range body.Sources {
		if strings.HasPrefix(s.ID, "vidsrc-") {
			t.Fatalf("expected vidsrc disabled, got %+v", s)
		}
	}
	if body.Sources[0].ID != "vidsrcpro-1399-1-2" {
		t.Fatalf("expected vidsrcpro first, got %s", body.Sources[0].ID)
	}
}

func TestTTLCache_ExpiryAndInvalidate(t *testing.T) {
	c := NewTTLCache(time.Minute, nil, "")
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("search:1:a", 1)
	c.Set("search:1:b", 2)
	c.Set("trending:movie:week", 3)

	if v, ok := c.Get("search:1:a"); !ok || v.(int) != 1 {
		t.Fatalf("expected hit, got %v %v", v, ok)
	}
	c.Invalidate("search:*")
	if _, ok := c.Get("search:1:b"); ok {
		t.Fatal("expected prefix invalidation")
	}
	if _, ok := c.Get("trending:movie:week"); !ok {
		t.Fatal("expected unrelated key kept")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("trending:movie:week"); ok {
		t.Fatal("expected expiry")
	}
	c.Set("x", 1)
	c.Invalidate("ALL")
	if _, ok := c.Get("x"); ok {
		t.Fatal("expected flush")
	}
}
