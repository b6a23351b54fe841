package db

import (
	"context"
	"testing"
)

func TestOpenURL_RequiresDSN(t *testing.T) {
	if _, err := OpenURL(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestOpenURL_InvalidDSN(t *testing.T) {
	if _, err := OpenURL(context.Background(), "postgres://%zz"); err == nil {
		t.Fatal("expected parse error")
	}
}
