// Package handlers implements the discovery HTTP API: the personalised feed,
// user state (interactions, history, watchlist, searches), catalog browse,
// stream sources and the admin surface.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/example/media-platform/internal/media"
	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/auth"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/internal/platform/validation"
	"github.com/example/media-platform/internal/recommend/history"
	"github.com/example/media-platform/internal/recommend/interaction"
	"github.com/example/media-platform/internal/userstate"
)

const maxBodyBytes = 1 << 20

// StateService is the per-user state API. *userstate.Tracker implements it.
type StateService interface {
	Snapshot(ctx context.Context, userID string) (userstate.State, error)
	Track(ctx context.Context, userID string, ev interaction.Event) (userstate.State, error)
	AddHistory(ctx context.Context, userID string, e history.Entry) (userstate.State, error)
	ClearHistory(ctx context.Context, userID string) (userstate.State, error)
	MergeHistory(ctx context.Context, userID string, remote history.History) (userstate.State, error)
	AddToWatchlist(ctx context.Context, userID string, w userstate.WatchlistItem) (userstate.State, error)
	RemoveFromWatchlist(ctx context.Context, userID string, w userstate.WatchlistItem) (userstate.State, error)
	AddSearch(ctx context.Context, userID, query string) (userstate.State, error)
	ClearSearches(ctx context.Context, userID string) (userstate.State, error)
}

var _ StateService = (*userstate.Tracker)(nil)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

// requireUID returns the caller's user id or writes a 401.
func requireUID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, "AUTH_MISSING", "Missing auth", httpserver.RequestIDFromContext(r.Context()))
		return "", false
	}
	return uid, true
}

// pathItem parses the {kind} and {id} URL params.
func pathItem(r *http.Request) (media.Key, error) {
	kind, err := media.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return media.Key{}, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil || id <= 0 {
		return media.Key{}, errors.New("id must be a positive integer")
	}
	return media.Key{Kind: kind, ID: id}, nil
}

func parseInt(v string, def, lo, hi int) int {
	if strings.TrimSpace(v) == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return max(lo, min(i, hi))
}

// writeStateError maps user-state and validation failures to the envelope.
func writeStateError(w http.ResponseWriter, rid string, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		api.BadRequest(w, "VALIDATION_FAILED", verr.Error(), rid, verr.Details())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		api.Unavailable(w, "TIMEOUT", "request timed out", rid)
	default:
		api.Internal(w, rid)
	}
}
