package session

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront-sync/internal/domain"
	apperrors "github.com/utafrali/storefront-sync/pkg/errors"
	"github.com/utafrali/storefront-sync/pkg/httputil"
	"github.com/utafrali/storefront-sync/pkg/logger"
)

// DefaultResumeTarget is where a completed sign-in lands without a valid origin.
const DefaultResumeTarget = "/account"

// ResumeParam carries the origin location through the sign-in round trip.
const ResumeParam = "from"

type ctxKey struct{}

type resolved struct {
	state domain.SessionState
	token string
}

// NewContext stores state and its token in ctx.
func NewContext(ctx context.Context, state domain.SessionState, token string) context.Context {
	return context.WithValue(ctx, ctxKey{}, resolved{state: state, token: token})
}

// FromContext returns the state stored by NewContext. Without one the
// actor is anonymous.
func FromContext(ctx context.Context) domain.SessionState {
	if r, ok := ctx.Value(ctxKey{}).(resolved); ok {
		return r.state
	}
	return domain.SessionState{}
}

// TokenFromContext returns the raw token stored by NewContext.
func TokenFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(ctxKey{}).(resolved); ok {
		return r.token
	}
	return ""
}

// Key returns the workspace key for ctx, or "" when anonymous.
func Key(ctx context.Context) string {
	s := FromContext(ctx)
	if !s.Authenticated {
		return ""
	}
	return s.UserID
}

// Middleware resolves the session on every request.
func Middleware(res *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state, token := res.Resolve(r)
			ctx := NewContext(r.Context(), state, token)
			if state.Authenticated {
				ctx = logger.WithSessionID(ctx, state.UserID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects anonymous requests with 401. Guests pass.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !FromContext(r.Context()).Authenticated {
			httputil.WriteError(w, r, apperrors.Unauthorized("a session is required"), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IntentFromRequest describes r as a navigation, with chi URL params.
func IntentFromRequest(r *http.Request) domain.NavigationIntent {
	loc := domain.LocationFromURL(r.URL)
	intent := domain.NavigationIntent{Path: r.URL.Path, From: &loc}
	if rctx := chi.RouteContext(r.Context()); rctx != nil && len(rctx.URLParams.Keys) > 0 {
		intent.Params = make(map[string]string, len(rctx.URLParams.Keys))
		for i, k := range rctx.URLParams.Keys {
			if k == "*" {
				continue
			}
			intent.Params[k] = rctx.URLParams.Values[i]
		}
	}
	return intent
}

// SignInURL builds the redirect target for d.
func SignInURL[V any](d Decision[V]) string {
	if d.Resume == nil {
		return d.Location
	}
	return d.Location + "?" + url.Values{ResumeParam: {d.Resume.String()}}.Encode()
}

// RequireSignIn guards views: signed-in actors reach next, everyone else
// gets a 302 to the sign-in path with the origin as resume state.
func RequireSignIn(g Guard[http.Handler]) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Admit(FromContext(r.Context()), IntentFromRequest(r), next)
			if d.Verdict == Render {
				d.View.ServeHTTP(w, r)
				return
			}
			http.Redirect(w, r, SignInURL(d), http.StatusFound)
		})
	}
}

// RequireSignInAPI is RequireSignIn for JSON endpoints: denied requests get
// 401 with the sign-in location in the Location header.
func RequireSignInAPI(g Guard[http.Handler]) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Admit(FromContext(r.Context()), IntentFromRequest(r), next)
			if d.Verdict == Render {
				d.View.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Location", SignInURL(d))
			httputil.WriteError(w, r, apperrors.Unauthorized("sign in required"), nil)
		})
	}
}

// ResumeTarget returns the local destination to land on after sign-in.
// Absolute and scheme-relative targets are rejected.
func ResumeTarget(r *http.Request) string {
	from := r.URL.Query().Get(ResumeParam)
	if !isLocal(from) {
		return DefaultResumeTarget
	}
	return from
}

func isLocal(target string) bool {
	if target == "" || !strings.HasPrefix(target, "/") {
		return false
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
