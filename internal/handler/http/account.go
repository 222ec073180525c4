package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront-sync/internal/session"
	"github.com/utafrali/storefront-sync/pkg/httputil"
)

// View is the payload of a guarded account view.
type View struct {
	Name   string            `json:"view"`
	UserID string            `json:"user_id"`
	Params map[string]string `json:"params,omitempty"`
	Data   any               `json:"data,omitempty"`
}

// AccountHandler serves the views behind the sign-in guard.
type AccountHandler struct {
	logger *slog.Logger
}

// NewAccountHandler creates a new account HTTP handler.
func NewAccountHandler(logger *slog.Logger) *AccountHandler {
	return &AccountHandler{logger: logger}
}

// Account handles GET /account
func (h *AccountHandler) Account(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, View{
		Name:   "account",
		UserID: session.FromContext(r.Context()).UserID,
		Params: session.IntentFromRequest(r).Params,
	}, nil)
}

// Wishlist handles GET /account/wishlist: the cached wishlist is fetched
// when stale and rendered with the fetch meta.
func (h *AccountHandler) Wishlist(w http.ResponseWriter, r *http.Request) {
	res := workspaceFrom(r.Context()).Wishlist.Fetch(r.Context(), false)
	if res.Failed() {
		httputil.WriteError(w, r, res.Cause(), h.logger)
		return
	}
	httputil.WriteData(w, View{
		Name:   "wishlist",
		UserID: session.FromContext(r.Context()).UserID,
		Params: session.IntentFromRequest(r).Params,
		Data:   res.Value,
	}, res.Meta())
}
