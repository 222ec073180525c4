package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront-sync/pkg/logger"
)

// SessionKeyFunc reports the session key of the current request, or "".
type SessionKeyFunc func(ctx context.Context) string

// RequestLogger builds a request-scoped logger enriched with correlation_id,
// session_id, trace_id and span_id and stores it via logger.NewContext.
//
// Mount it after RequestLogging, Tracing and whichever middleware resolves
// the session.
func RequestLogger(base *slog.Logger, sessionKey SessionKeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if sessionKey != nil {
				if id := sessionKey(ctx); id != "" {
					ctx = logger.WithSessionID(ctx, id)
				}
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
