package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	BadRequest(rr, "INVALID_EVENT", "progress out of range", "rid-1", map[string]any{"field": "progress"})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error.Code != "INVALID_EVENT" || resp.Error.RequestID != "rid-1" {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	if resp.Error.Details["field"] != "progress" {
		t.Fatalf("expected details to round-trip, got %+v", resp.Error.Details)
	}
}

func TestUnavailable(t *testing.T) {
	rr := httptest.NewRecorder()
	Unavailable(rr, "LOCKDOWN", "come back later", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestNoContent(t *testing.T) {
	rr := httptest.NewRecorder()
	NoContent(rr)
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Fatalf("expected empty 204, got %d %q", rr.Code, rr.Body.String())
	}
}
