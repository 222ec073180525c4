package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront-sync/internal/domain"
	apperrors "github.com/utafrali/storefront-sync/pkg/errors"
	"github.com/utafrali/storefront-sync/pkg/httputil"
	"github.com/utafrali/storefront-sync/pkg/validator"
)

// WishlistHandler exposes the wishlist intents of the current workspace.
type WishlistHandler struct {
	logger *slog.Logger
}

// NewWishlistHandler creates a new wishlist HTTP handler.
func NewWishlistHandler(logger *slog.Logger) *WishlistHandler {
	return &WishlistHandler{logger: logger}
}

// UpdateQuantityRequest is the JSON request body for changing a line quantity.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0,lte=9999"`
}

// GetWishlist handles GET /api/v1/wishlist?refresh=
func (h *WishlistHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	refresh, err := queryBool(r, "refresh")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeResult(w, r, workspaceFrom(r.Context()).Wishlist.Fetch(r.Context(), refresh), h.logger)
}

// AddItem handles POST /api/v1/wishlist/items?update=&configurable=
func (h *WishlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	update, err := queryBool(r, "update")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	configurable, err := queryBool(r, "configurable")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var intent domain.LineItemIntent
	if err := validator.DecodeAndValidate(r, &intent); err != nil {
		httputil.WriteError(w, r, asInput(err), h.logger)
		return
	}

	res := workspaceFrom(r.Context()).Wishlist.AddItem(r.Context(), intent, update, configurable)
	writeResult(w, r, res, h.logger)
}

// UpdateQuantity handles PUT /api/v1/wishlist/items/{itemId}
func (h *WishlistHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, asInput(err), h.logger)
		return
	}

	res := workspaceFrom(r.Context()).Wishlist.UpdateQuantity(r.Context(), chi.URLParam(r, "itemId"), *req.Quantity)
	writeResult(w, r, res, h.logger)
}

// RemoveItem handles DELETE /api/v1/wishlist/items/{itemId}
func (h *WishlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	res := workspaceFrom(r.Context()).Wishlist.RemoveItem(r.Context(), chi.URLParam(r, "itemId"))
	writeResult(w, r, res, h.logger)
}

// MoveItemToCart handles POST /api/v1/wishlist/items/{itemId}/move
func (h *WishlistHandler) MoveItemToCart(w http.ResponseWriter, r *http.Request) {
	res := workspaceFrom(r.Context()).Wishlist.MoveItemToCart(r.Context(), chi.URLParam(r, "itemId"))
	writeResult(w, r, res, h.logger)
}

// MoveListToCart handles POST /api/v1/wishlist/move
func (h *WishlistHandler) MoveListToCart(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, workspaceFrom(r.Context()).Wishlist.MoveListToCart(r.Context()), h.logger)
}

// asInput maps body decoding failures to 400. Validation errors pass through.
func asInput(err error) error {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return err
	}
	return apperrors.InvalidInput("invalid request body: " + err.Error())
}
