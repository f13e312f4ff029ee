package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/snse/idgen"
	"github.com/hazyhaar/snse/kit"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

var newRequestID = idgen.Prefixed("req_", idgen.UUIDv7())

// RequestID assigns each request an ID (or keeps an incoming X-Request-ID),
// records it as the kit.Call, echoes it in the response and attaches
// a per-request logger.
func RequestID(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" || len(id) > 64 {
				id = newRequestID()
			}
			w.Header().Set("X-Request-ID", id)

			ctx := kit.WithCall(r.Context(), kit.Call{Transport: "http", RequestID: id})
			l := logger.With("request_id", id, "method", r.Method, "path", r.URL.Path)
			ctx = context.WithValue(ctx, LoggerKey, l)
			l.Debug("shield: request", "remote_addr", r.RemoteAddr)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetLogger retrieves the per-request logger, or slog.Default().
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
