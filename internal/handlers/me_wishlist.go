package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vastrakart/api/internal/platform/httpx"
	"github.com/vastrakart/api/internal/services"
)

func (h *MeHandlers) wishlistRoutes(r chi.Router) {
	r.Get("/", h.getWishlist)
	r.Put("/{productID}", h.addWishlistItem)
	r.Delete("/{productID}", h.removeWishlistItem)
}

type wishlistItemRequest struct {
	VariantID *string `json:"variant_id"`
}

type wishlistPayload struct {
	Items     []wishlistItemPayload `json:"items"`
	UpdatedAt string                `json:"updated_at,omitempty"`
}

type wishlistItemPayload struct {
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	AddedAt   string  `json:"added_at"`
}

func (h *MeHandlers) getWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlist == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_service_unavailable", "wishlist service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	wishlist, err := h.wishlist.GetWishlist(ctx, identity.UID)
	if err != nil {
		writeWishlistError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildWishlistPayload(wishlist))
}

func (h *MeHandlers) addWishlistItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlist == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_service_unavailable", "wishlist service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	// Body is optional; a bare PUT pins the product without a variant.
	var req wishlistItemRequest
	if body, err := readLimitedBody(r, defaultBodyLimit); err == nil {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	} else if !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	wishlist, err := h.wishlist.AddItem(ctx, services.WishlistItemCommand{
		UserID:    identity.UID,
		ProductID: productID,
		VariantID: req.VariantID,
	})
	if err != nil {
		writeWishlistError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildWishlistPayload(wishlist))
}

func (h *MeHandlers) removeWishlistItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlist == nil {
		httpx.WriteError(ctx, w, httpx.NewError("wishlist_service_unavailable", "wishlist service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	wishlist, err := h.wishlist.RemoveItem(ctx, services.WishlistItemCommand{
		UserID:    identity.UID,
		ProductID: productID,
	})
	if err != nil {
		writeWishlistError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildWishlistPayload(wishlist))
}

func buildWishlistPayload(wishlist services.Wishlist) wishlistPayload {
	payload := wishlistPayload{
		Items:     make([]wishlistItemPayload, 0, len(wishlist.Items)),
		UpdatedAt: formatTime(wishlist.UpdatedAt),
	}
	for _, item := range wishlist.Items {
		payload.Items = append(payload.Items, wishlistItemPayload{
			ProductID: item.ProductID,
			VariantID: cloneStringPointer(item.VariantID),
			AddedAt:   formatTime(item.AddedAt),
		})
	}
	return payload
}
