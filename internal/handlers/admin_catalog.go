package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/platform/httpx"
	"github.com/vastrakart/api/internal/services"
)

func (h *AdminHandlers) catalogRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.upsertProduct)
		r.Put("/{productID}", h.upsertProduct)
		r.Delete("/{productID}", h.deleteProduct)
		r.Put("/{productID}/variants/{variantID}", h.upsertVariant)
	})
	r.Route("/coupons", func(r chi.Router) {
		r.Get("/", h.listCoupons)
		r.Put("/{code}", h.upsertCoupon)
		r.Delete("/{code}", h.deleteCoupon)
	})
	r.Route("/inventory", func(r chi.Router) {
		r.Get("/{variantID}", h.getStock)
		r.Post("/{variantID}:restock", h.restock)
	})
}

type productRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	CategoryID  string            `json:"category_id"`
	BrandID     string            `json:"brand_id"`
	Details     map[string]string `json:"details"`
	IsActive    *bool             `json:"is_active"`
}

type variantRequest struct {
	SKU      string   `json:"sku"`
	ColorID  string   `json:"color_id"`
	SizeID   string   `json:"size_id"`
	Price    float64  `json:"price"`
	Images   []string `json:"images"`
	IsActive *bool    `json:"is_active"`
}

type couponRequest struct {
	Type          string   `json:"type"`
	Value         float64  `json:"value"`
	MinOrderValue *float64 `json:"min_order_value"`
	ExpiresAt     *string  `json:"expires_at"`
	IsActive      *bool    `json:"is_active"`
}

type restockRequest struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

type stockPayload struct {
	VariantID string `json:"variant_id"`
	Stock     int    `json:"stock"`
}

func (h *AdminHandlers) upsertProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req productRequest
	if err := decodeJSONBody(r, defaultBodyLimit, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	product := domain.Product{
		ID:          strings.TrimSpace(chi.URLParam(r, "productID")),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		CategoryID:  strings.TrimSpace(req.CategoryID),
		BrandID:     strings.TrimSpace(req.BrandID),
		Details:     req.Details,
		IsActive:    true,
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	saved, err := h.catalog.UpsertProduct(ctx, services.UpsertProductCommand{
		Product: product,
		ActorID: strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, productResponse{Product: buildProductPayload(saved, nil)})
}

func (h *AdminHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	if err := h.catalog.DeleteProduct(ctx, productID); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// upsertVariant writes descriptive variant fields. Stock is intentionally
// absent from the request shape; it moves only through inventory operations.
func (h *AdminHandlers) upsertVariant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	variantID := strings.TrimSpace(chi.URLParam(r, "variantID"))
	if productID == "" || variantID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id and variant id are required", http.StatusBadRequest))
		return
	}

	var req variantRequest
	if err := decodeJSONBody(r, defaultBodyLimit, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	variant := domain.Variant{
		ID:        variantID,
		ProductID: productID,
		SKU:       strings.TrimSpace(req.SKU),
		ColorID:   strings.TrimSpace(req.ColorID),
		SizeID:    strings.TrimSpace(req.SizeID),
		Price:     req.Price,
		Images:    req.Images,
		IsActive:  true,
	}
	if req.IsActive != nil {
		variant.IsActive = *req.IsActive
	}

	saved, err := h.catalog.UpsertVariant(ctx, services.UpsertVariantCommand{
		Variant: variant,
		ActorID: strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildVariantPayload(saved))
}

func (h *AdminHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}
	pager, err := parsePagination(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.coupons.ListCoupons(ctx, pager)
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}

	items := make([]couponPayload, 0, len(page.Items))
	for _, coupon := range page.Items {
		items = append(items, buildCouponPayload(coupon))
	}
	writeJSONResponse(w, http.StatusOK, couponListResponse{
		Items:      items,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalItems: page.TotalItems,
		TotalPages: page.TotalPages,
	})
}

func (h *AdminHandlers) upsertCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon code is required", http.StatusBadRequest))
		return
	}

	var req couponRequest
	if err := decodeJSONBody(r, defaultBodyLimit, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	couponType, ok := parseCouponType(req.Type)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "type must be Percentage or Fixed", http.StatusBadRequest))
		return
	}

	coupon := domain.Coupon{
		Code:          code,
		Type:          couponType,
		Value:         req.Value,
		MinOrderValue: req.MinOrderValue,
		IsActive:      true,
	}
	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}
	if req.ExpiresAt != nil {
		expires, err := parseTimeParam(strings.TrimSpace(*req.ExpiresAt))
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expires_at must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		coupon.ExpiresAt = &expires
	}

	saved, err := h.coupons.UpsertCoupon(ctx, services.UpsertCouponCommand{
		Coupon:  coupon,
		ActorID: strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCouponPayload(saved))
}

func (h *AdminHandlers) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon code is required", http.StatusBadRequest))
		return
	}

	if err := h.coupons.DeleteCoupon(ctx, code); err != nil {
		writeCouponError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) getStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}
	variantID := strings.TrimSpace(chi.URLParam(r, "variantID"))
	if variantID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "variant id is required", http.StatusBadRequest))
		return
	}

	stock, err := h.inventory.GetStock(ctx, variantID)
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, stockPayload{VariantID: variantID, Stock: stock})
}

func (h *AdminHandlers) restock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}
	variantID := strings.TrimSpace(chi.URLParam(r, "variantID"))
	if variantID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "variant id is required", http.StatusBadRequest))
		return
	}

	var req restockRequest
	if err := decodeJSONBody(r, defaultBodyLimit, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if req.Quantity <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity must be positive", http.StatusBadRequest))
		return
	}

	mutation, err := h.inventory.RestoreStock(ctx, services.StockRestoreCommand{
		Lines:  []domain.StockLine{{VariantID: variantID, Quantity: req.Quantity}},
		Reason: strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, stockPayload{VariantID: variantID, Stock: mutation.Remaining[variantID]})
}

type couponListResponse struct {
	Items      []couponPayload `json:"items"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalItems int64           `json:"total_items"`
	TotalPages int             `json:"total_pages"`
}

func parseCouponType(raw string) (domain.CouponType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "percentage":
		return domain.CouponTypePercentage, true
	case "fixed":
		return domain.CouponTypeFixed, true
	default:
		return "", false
	}
}

func writeInventoryError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInventoryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInventoryVariantNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("variant_not_found", "variant not found", http.StatusNotFound))
	case errors.Is(err, services.ErrInventoryInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("inventory_error", "failed to process inventory request", http.StatusInternalServerError))
	}
}
