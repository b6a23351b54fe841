package httpserver

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/api"
)

// panicLogger is replaced by SetPanicLogger at start-up; until then panics are
// swallowed into a 500 without a log line.
var panicLogger = zap.NewNop()

func SetPanicLogger(log *zap.Logger) {
	if log != nil {
		panicLogger = log
	}
}

// Recoverer turns a handler panic into a 500 envelope.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			rid := RequestIDFromContext(r.Context())
			panicLogger.Error("handler panic",
				zap.Any("panic", rec),
				zap.String("request_id", rid),
				zap.String("path", r.URL.Path),
				zap.ByteString("stack", debug.Stack()),
			)
			api.Internal(w, rid)
		}()
		next.ServeHTTP(w, r)
	})
}
