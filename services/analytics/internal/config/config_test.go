package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresAPIKey(t *testing.T) {
	t.Setenv("POSTHOG_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without POSTHOG_API_KEY")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POSTHOG_API_KEY", "phc_test")
	t.Setenv("POSTHOG_HOST", "")
	t.Setenv("POSTHOG_FLUSH_INTERVAL", "bogus")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PostHogHost != "https://app.posthog.com" {
		t.Fatalf("unexpected host %q", cfg.PostHogHost)
	}
	if cfg.FlushInterval != 5*time.Second {
		t.Fatalf("expected 5s flush interval, got %s", cfg.FlushInterval)
	}
	if cfg.NATSBatchSize != 200 {
		t.Fatalf("expected batch size 200, got %d", cfg.NATSBatchSize)
	}
}
