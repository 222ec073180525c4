package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/utafrali/storefront-sync/internal/remote"
	"github.com/utafrali/storefront-sync/internal/session"
	"github.com/utafrali/storefront-sync/internal/workspace"
	apperrors "github.com/utafrali/storefront-sync/pkg/errors"
	"github.com/utafrali/storefront-sync/pkg/httputil"
	"github.com/utafrali/storefront-sync/pkg/logger"
)

type workspaceKey struct{}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ForwardBearer hands the session token to outbound storefront API calls.
func ForwardBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := session.TokenFromContext(r.Context()); tok != "" {
			r = r.WithContext(remote.WithBearer(r.Context(), tok))
		}
		next.ServeHTTP(w, r)
	})
}

// WithWorkspace attaches the session's workspace to the request. Mount it
// behind RequireSession or a sign-in guard.
func WithWorkspace(reg *workspace.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := session.Key(r.Context())
			if key == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("a session is required"), nil)
				return
			}
			ws := reg.Get(r.Context(), key)
			ctx := context.WithValue(r.Context(), workspaceKey{}, ws)
			ctx = logger.WithSessionID(ctx, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func workspaceFrom(ctx context.Context) *workspace.Workspace {
	ws, _ := ctx.Value(workspaceKey{}).(*workspace.Workspace)
	return ws
}
