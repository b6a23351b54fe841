package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// HeaderRequestID carries the request id on HTTP requests and responses.
const HeaderRequestID = "X-Request-Id"

const maxRequestIDLen = 128

type ctxKeyRequestID struct{}

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return v
}

// WithRequestID returns ctx carrying id, for work started outside an HTTP
// request (queue consumers) that should still log a correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID{}, id)
}

// RequestIDMiddleware trusts a caller-supplied id only if it is short and
// printable; anything else is replaced with a fresh uuid.
func RequestIDMiddleware(headerName string) func(next http.Handler) http.Handler {
	if strings.TrimSpace(headerName) == "" {
		headerName = HeaderRequestID
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := strings.TrimSpace(r.Header.Get(headerName))
			if !validRequestID(rid) {
				rid = uuid.NewString()
			}
			w.Header().Set(headerName, rid)
			next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), rid)))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.' || c == ':':
		default:
			return false
		}
	}
	return true
}
