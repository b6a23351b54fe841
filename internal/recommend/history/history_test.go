package history

import (
	"testing"
	"time"

	"github.com/example/media-platform/internal/media"
	"github.com/example/media-platform/internal/recommend/interaction"
)

var t0 = time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

func TestAdd_DedupesByItemKindEpisode(t *testing.T) {
	var h History
	h = h.Add(Entry{ItemID: 1, Kind: media.KindTV, EpisodeID: "s1e1", Progress: 30, WatchedAt: t0})
	h = h.Add(Entry{ItemID: 1, Kind: media.KindTV, EpisodeID: "s1e2", Progress: 10, WatchedAt: t0.Add(time.Hour)})
	h = h.Add(Entry{ItemID: 1, Kind: media.KindMovie, Progress: 50, WatchedAt: t0.Add(2 * time.Hour)})
	h = h.Add(Entry{ItemID: 1, Kind: media.KindTV, EpisodeID: "s1e1", Progress: 80, WatchedAt: t0.Add(3 * time.Hour)})

	if len(h) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(h))
	}
	if h[0].EpisodeID != "s1e1" || h[0].Progress != 80 {
		t.Fatalf("expected replaced entry at head, got %+v", h[0])
	}
}

func TestAdd_Capped(t *testing.T) {
	var h History
	for i := 1; i <= 130; i++ {
		h = h.Add(Entry{ItemID: int64(i), Kind: media.KindMovie})
	}
	if len(h) != MaxEntries {
		t.Fatalf("expected %d, got %d", MaxEntries, len(h))
	}
	if h[0].ItemID != 130 || h[MaxEntries-1].ItemID != 31 {
		t.Fatalf("unexpected bounds: head %d tail %d", h[0].ItemID, h[MaxEntries-1].ItemID)
	}
}

func TestProgress(t *testing.T) {
	h := History{}.Add(Entry{ItemID: 7, Kind: media.KindMovie, Progress: 42})
	if p, ok := h.Progress(media.KindMovie, 7, ""); !ok || p != 42 {
		t.Fatalf("expected 42, got %v %v", p, ok)
	}
	if _, ok := h.Progress(media.KindTV, 7, ""); ok {
		t.Fatal("expected tv 7 to be unknown")
	}
}

func TestContinueWatching(t *testing.T) {
	h := History{
		{ItemID: 1, Kind: media.KindMovie, Progress: 3, WatchedAt: t0},
		{ItemID: 2, Kind: media.KindMovie, Progress: 50, WatchedAt: t0.Add(-time.Hour)},
		{ItemID: 3, Kind: media.KindMovie, Progress: 97, WatchedAt: t0},
		{ItemID: 4, Kind: media.KindTV, Progress: 60, WatchedAt: t0.Add(time.Hour)},
	}
	got := h.ContinueWatching()
	if len(got) != 2 || got[0].ItemID != 4 || got[1].ItemID != 2 {
		t.Fatalf("unexpected continue watching: %+v", got)
	}
}

func TestDerivedInteraction(t *testing.T) {
	cases := []struct {
		progress float64
		want     interaction.Action
		ok       bool
	}{
		{0, "", false},
		{10, interaction.ActionWatchStart, true},
		{20, interaction.ActionWatchProgress, true},
		{89.9, interaction.ActionWatchProgress, true},
		{90, interaction.ActionComplete, true},
	}
	for _, c := range cases {
		ev, ok := DerivedInteraction(Entry{ItemID: 1, Kind: media.KindMovie, Progress: c.progress})
		if ok != c.ok || ev.Action != c.want {
			t.Fatalf("progress %v: got %q %v, want %q %v", c.progress, ev.Action, ok, c.want, c.ok)
		}
	}

	ev, _ := DerivedInteraction(Entry{ItemID: 1, Kind: media.KindMovie, Progress: 55})
	if ev.Progress == nil || *ev.Progress != 55 {
		t.Fatalf("expected watch_progress to carry progress, got %+v", ev.Progress)
	}

	ev, _ = DerivedInteraction(Entry{ItemID: 27205, Kind: media.KindMovie, Progress: 95, Title: "Inception"})
	if ev.Action != interaction.ActionComplete || ev.Title != "" {
		t.Fatalf("expected an untitled complete event, got %+v", ev)
	}
}

func TestMerge_LastWriteWins(t *testing.T) {
	local := History{
		{ItemID: 1, Kind: media.KindMovie, Progress: 20, WatchedAt: t0},
		{ItemID: 2, Kind: media.KindMovie, Progress: 70, WatchedAt: t0.Add(-2 * time.Hour)},
	}
	remote := History{
		{ItemID: 1, Kind: media.KindMovie, Progress: 60, WatchedAt: t0.Add(time.Hour)},
		{ItemID: 2, Kind: media.KindMovie, Progress: 10, WatchedAt: t0.Add(-3 * time.Hour)},
		{ItemID: 3, Kind: media.KindTV, Progress: 5, WatchedAt: t0.Add(-time.Hour)},
	}
	got := Merge(local, remote)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].ItemID != 1 || got[0].Progress != 60 {
		t.Fatalf("expected remote newer entry to win, got %+v", got[0])
	}
	if got[2].ItemID != 2 || got[2].Progress != 70 {
		t.Fatalf("expected local newer entry to win, got %+v", got[2])
	}
}

func TestRecentKeys(t *testing.T) {
	h := History{
		{ItemID: 1, Kind: media.KindTV, EpisodeID: "a"},
		{ItemID: 1, Kind: media.KindTV, EpisodeID: "b"},
		{ItemID: 2, Kind: media.KindMovie},
		{ItemID: 3, Kind: media.KindMovie},
	}
	keys := h.RecentKeys(3)
	if len(keys) != 2 {
		t.Fatalf("expected 2 distinct keys, got %d", len(keys))
	}
	if _, ok := keys[media.Key{Kind: media.KindMovie, ID: 3}]; ok {
		t.Fatal("expected entry beyond n to be excluded")
	}
}
