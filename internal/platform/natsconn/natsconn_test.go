package natsconn

import (
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestEnvInt_Default(t *testing.T) {
	v := envInt("NATSCONN_TEST_NONEXISTENT", 42)
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestEnvInt_Set(t *testing.T) {
	t.Setenv("NATSCONN_TEST_INT", "7")
	v := envInt("NATSCONN_TEST_INT", 42)
	if v != 7 {
		t.Fatalf("expected 7, got %d", v)
	}
}

func TestEnvDuration_Default(t *testing.T) {
	v := envDuration("NATSCONN_TEST_NONEXISTENT", 5*time.Second)
	if v != 5*time.Second {
		t.Fatalf("expected 5s, got %s", v)
	}
}

func TestEnvDuration_Set(t *testing.T) {
	t.Setenv("NATSCONN_TEST_DUR", "3s")
	v := envDuration("NATSCONN_TEST_DUR", 5*time.Second)
	if v != 3*time.Second {
		t.Fatalf("expected 3s, got %s", v)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(Options{
		URL:           "nats://127.0.0.1:19999",
		MaxReconnects: 0,
		ReconnectWait: 10 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected error connecting to invalid NATS URL")
	}
}

type fakeStreams struct {
	info    *nats.StreamInfo
	infoErr error
	added   *nats.StreamConfig
	updated *nats.StreamConfig
}

func (f *fakeStreams) StreamInfo(string, ...nats.JSOpt) (*nats.StreamInfo, error) {
	return f.info, f.infoErr
}

func (f *fakeStreams) AddStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.added = cfg
	return &nats.StreamInfo{Config: *cfg}, nil
}

func (f *fakeStreams) UpdateStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.updated = cfg
	return &nats.StreamInfo{Config: *cfg}, nil
}

func TestEnsureStream_CreatesWhenMissing(t *testing.T) {
	f := &fakeStreams{infoErr: nats.ErrStreamNotFound}
	if err := EnsureStream(f, "ACTIVITY", []string{"activity.>"}, time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.added == nil || f.added.Name != "ACTIVITY" || f.added.MaxAge != time.Hour {
		t.Fatalf("unexpected stream config: %+v", f.added)
	}
}

func TestEnsureStream_WidensSubjects(t *testing.T) {
	f := &fakeStreams{info: &nats.StreamInfo{Config: nats.StreamConfig{Name: "ACTIVITY", Subjects: []string{"activity.interaction"}}}}
	if err := EnsureStream(f, "ACTIVITY", []string{"activity.interaction", "activity.dlq"}, time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.updated == nil || len(f.updated.Subjects) != 2 {
		t.Fatalf("expected subjects to be widened, got %+v", f.updated)
	}
}

func TestEnsureStream_NoopWhenCovered(t *testing.T) {
	f := &fakeStreams{info: &nats.StreamInfo{Config: nats.StreamConfig{Subjects: []string{"activity.interaction"}}}}
	if err := EnsureStream(f, "ACTIVITY", []string{"activity.interaction"}, time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.updated != nil || f.added != nil {
		t.Fatal("expected no changes")
	}
}

func TestEnsureStream_PropagatesInfoError(t *testing.T) {
	f := &fakeStreams{infoErr: errors.New("jetstream not enabled")}
	if err := EnsureStream(f, "ACTIVITY", []string{"activity.>"}, time.Hour); err == nil {
		t.Fatal("expected error")
	}
}
