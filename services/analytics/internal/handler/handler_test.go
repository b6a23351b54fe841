package handler

import (
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/example/media-platform/internal/platform/analytics"
)

type capture struct {
	distinctID string
	event      string
	props      map[string]any
}

type fakeSink struct {
	got []capture
}

func (f *fakeSink) Capture(distinctID, event string, props map[string]any, _ time.Time) {
	f.got = append(f.got, capture{distinctID, event, props})
}

func payload(t *testing.T, ev analytics.Event) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestDispatch_ForwardsWithInsertID(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink, nil)
	ok := d.Dispatch(analytics.SubjectHeroPicked, payload(t, analytics.Event{
		EventID: "e1", EventName: "hero_picked", UserID: "u1",
		Properties: map[string]any{"item_id": 550, "source": "featured"},
	}))
	if !ok || len(sink.got) != 1 {
		t.Fatalf("expected one capture, got %d", len(sink.got))
	}
	c := sink.got[0]
	if c.distinctID != "u1" || c.event != "hero_picked" || c.props["$insert_id"] != "e1" {
		t.Fatalf("unexpected capture %+v", c)
	}
}

func TestDispatch_AnonymousSearch(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink, nil)
	d.Dispatch(analytics.SubjectSearchPerformed, payload(t, analytics.Event{
		EventName: "search_performed", Properties: map[string]any{"query": "dune", "results": 0},
	}))
	if len(sink.got) != 1 {
		t.Fatalf("expected one capture, got %d", len(sink.got))
	}
	c := sink.got[0]
	if c.distinctID != anonymousID {
		t.Fatalf("expected anonymous, got %q", c.distinctID)
	}
	if c.props["has_results"] != false {
		t.Fatalf("expected has_results=false, got %v", c.props["has_results"])
	}
}

func TestDispatch_SkipsProgressTicksAndUnknownSubjects(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink, nil)
	d.Dispatch(analytics.SubjectInteraction, payload(t, analytics.Event{
		EventName: "interaction_recorded", UserID: "u", Properties: map[string]any{"action": "watch_progress"},
	}))
	d.Dispatch("analytics.unknown", payload(t, analytics.Event{EventName: "x"}))
	d.Dispatch(analytics.SubjectInteraction, payload(t, analytics.Event{
		EventName: "interaction_recorded", UserID: "u", Properties: map[string]any{"action": "complete"},
	}))
	if len(sink.got) != 1 || sink.got[0].props["action"] != "complete" {
		t.Fatalf("expected only the complete event, got %+v", sink.got)
	}
}

func TestDispatch_BadPayload(t *testing.T) {
	sink := &fakeSink{}
	if New(sink, nil).Dispatch(analytics.SubjectFeedServed, []byte("{")) {
		t.Fatal("expected false for undecodable payload")
	}
	if len(sink.got) != 0 {
		t.Fatal("expected nothing captured")
	}
}
