package logging

import "testing"

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	log, err := New("chatty")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.Core().Enabled(-1) {
		t.Fatal("expected debug to be disabled at info level")
	}
	if !log.Core().Enabled(0) {
		t.Fatal("expected info to be enabled")
	}
}

func TestNewForEnv_Development(t *testing.T) {
	log, err := NewForEnv("debug", "dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !log.Core().Enabled(-1) {
		t.Fatal("expected debug to be enabled")
	}
}
