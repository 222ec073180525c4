package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/storefront-sync/internal/session"
	"github.com/utafrali/storefront-sync/internal/workspace"
	apperrors "github.com/utafrali/storefront-sync/pkg/errors"
	"github.com/utafrali/storefront-sync/pkg/httputil"
)

// SessionHandler serves sign-in, guest bootstrap and sign-out.
type SessionHandler struct {
	registry     *workspace.Registry
	issuer       *session.Issuer
	cookieSecure bool
	logger       *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(reg *workspace.Registry, issuer *session.Issuer, cookieSecure bool, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{registry: reg, issuer: issuer, cookieSecure: cookieSecure, logger: logger}
}

// SignInResponse tells the client where to continue after signing in.
type SignInResponse struct {
	SignedIn bool   `json:"signed_in"`
	Resume   string `json:"resume"`
}

// GuestResponse is returned by POST /session/guest.
type GuestResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Guest     bool      `json:"guest"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SignIn handles GET /login
func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, SignInResponse{
		SignedIn: session.FromContext(r.Context()).SignedIn(),
		Resume:   session.ResumeTarget(r),
	}, nil)
}

// Guest handles POST /session/guest
func (h *SessionHandler) Guest(w http.ResponseWriter, r *http.Request) {
	if state := session.FromContext(r.Context()); state.Authenticated {
		httputil.WriteError(w, r, apperrors.Conflict("a session already exists"), h.logger)
		return
	}

	token, id, exp, err := h.issuer.IssueGuest()
	if err != nil {
		httputil.WriteError(w, r, apperrors.Internal(err), h.logger)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.InfoContext(r.Context(), "guest session issued", slog.String("session", id))
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{
		Data: GuestResponse{Token: token, UserID: id, Guest: true, ExpiresAt: exp},
	})
}

// SignOut handles POST /logout: the workspace is torn down and the cookie cleared.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	var removed bool
	if key := session.Key(r.Context()); key != "" {
		removed = h.registry.Teardown(r.Context(), key)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteData(w, map[string]bool{"workspace_removed": removed}, nil)
}
