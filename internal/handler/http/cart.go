package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront-sync/pkg/httputil"
)

// CartHandler exposes the cached cart and the mini-cart flash.
type CartHandler struct {
	logger *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(logger *slog.Logger) *CartHandler {
	return &CartHandler{logger: logger}
}

// GetCart handles GET /api/v1/cart?refresh=
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	refresh, err := queryBool(r, "refresh")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeResult(w, r, workspaceFrom(r.Context()).Cart.Fetch(r.Context(), refresh), h.logger)
}

// GetFlash handles GET /api/v1/cart/flash
func (h *CartHandler) GetFlash(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, workspaceFrom(r.Context()).Flash.State(), nil)
}
