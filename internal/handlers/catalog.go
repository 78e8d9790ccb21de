package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vastrakart/api/internal/platform/httpx"
	"github.com/vastrakart/api/internal/services"
)

// CatalogHandlers serves the public storefront surface: product browsing,
// taxonomies, and coupon lookup. No authentication is required.
type CatalogHandlers struct {
	catalog services.CatalogService
	coupons services.CouponService
}

// NewCatalogHandlers constructs a new CatalogHandlers instance.
func NewCatalogHandlers(catalog services.CatalogService, coupons services.CouponService) *CatalogHandlers {
	return &CatalogHandlers{
		catalog: catalog,
		coupons: coupons,
	}
}

// Routes registers the /public endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/brands", h.listBrands)
	r.Get("/categories", h.listCategories)
	r.Get("/colors", h.listColors)
	r.Get("/sizes", h.listSizes)
	r.Get("/coupons/{code}", h.getCoupon)
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	pager, err := parsePagination(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.ProductFilter{
		OnlyActive: true,
		Pagination: pager,
	}
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("category")); raw != "" {
		filter.CategoryID = &raw
	}
	if raw := strings.TrimSpace(query.Get("brand")); raw != "" {
		filter.BrandID = &raw
	}
	if raw := strings.TrimSpace(query.Get("min_price")); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || price < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "min_price must be a non-negative number", http.StatusBadRequest))
			return
		}
		filter.PriceRange.From = &price
	}
	if raw := strings.TrimSpace(query.Get("max_price")); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || price < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "max_price must be a non-negative number", http.StatusBadRequest))
			return
		}
		filter.PriceRange.To = &price
	}

	page, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(page.Items))
	for _, product := range page.Items {
		items = append(items, buildProductPayload(product, nil))
	}
	writeJSONResponse(w, http.StatusOK, productListResponse{
		Items:      items,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalItems: page.TotalItems,
		TotalPages: page.TotalPages,
	})
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
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

	product, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	var variants []services.Variant
	if len(product.VariantIDs) > 0 {
		variants, err = h.catalog.GetVariants(ctx, product.VariantIDs)
		if err != nil {
			writeCatalogError(ctx, w, err)
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product, variants)})
}

func (h *CatalogHandlers) listBrands(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	brands, err := h.catalog.ListBrands(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	payload := make([]brandPayload, 0, len(brands))
	for _, brand := range brands {
		payload = append(payload, brandPayload{ID: brand.ID, Name: brand.Name, LogoURL: brand.LogoURL})
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	payload := make([]categoryPayload, 0, len(categories))
	for _, category := range categories {
		payload = append(payload, buildCategoryPayload(category))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CatalogHandlers) listColors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	colors, err := h.catalog.ListColors(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	payload := make([]colorPayload, 0, len(colors))
	for _, color := range colors {
		payload = append(payload, colorPayload{ID: color.ID, Name: color.Name, Hex: color.Hex})
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CatalogHandlers) listSizes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	sizes, err := h.catalog.ListSizes(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	payload := make([]sizePayload, 0, len(sizes))
	for _, size := range sizes {
		payload = append(payload, sizePayload{ID: size.ID, Name: size.Name})
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CatalogHandlers) getCoupon(w http.ResponseWriter, r *http.Request) {
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

	coupon, err := h.coupons.GetCoupon(ctx, code)
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCouponPayload(coupon))
}

// Response payloads -----------------------------------------------------------

type productListResponse struct {
	Items      []productPayload `json:"items"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalItems int64            `json:"total_items"`
	TotalPages int              `json:"total_pages"`
}

type productResponse struct {
	Product productPayload `json:"product"`
}

type productPayload struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	CategoryID  string            `json:"category_id,omitempty"`
	BrandID     string            `json:"brand_id,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
	IsActive    bool              `json:"is_active"`
	Variants    []variantPayload  `json:"variants,omitempty"`
	CreatedAt   string            `json:"created_at,omitempty"`
	UpdatedAt   string            `json:"updated_at,omitempty"`
}

type variantPayload struct {
	ID        string   `json:"id"`
	ProductID string   `json:"product_id"`
	SKU       string   `json:"sku"`
	ColorID   string   `json:"color_id,omitempty"`
	SizeID    string   `json:"size_id,omitempty"`
	Price     float64  `json:"price"`
	Stock     int      `json:"stock"`
	Images    []string `json:"images,omitempty"`
	IsActive  bool     `json:"is_active"`
}

type brandPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logo_url,omitempty"`
}

type categoryPayload struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
}

type colorPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Hex  string `json:"hex,omitempty"`
}

type sizePayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type couponPayload struct {
	Code          string   `json:"code"`
	Type          string   `json:"type"`
	Value         float64  `json:"value"`
	MinOrderValue *float64 `json:"min_order_value,omitempty"`
	ExpiresAt     string   `json:"expires_at,omitempty"`
	IsActive      bool     `json:"is_active"`
}

func buildProductPayload(product services.Product, variants []services.Variant) productPayload {
	payload := productPayload{
		ID:          product.ID,
		Title:       product.Title,
		Description: product.Description,
		CategoryID:  product.CategoryID,
		BrandID:     product.BrandID,
		Details:     product.Details,
		IsActive:    product.IsActive,
		CreatedAt:   formatTime(product.CreatedAt),
		UpdatedAt:   formatTime(product.UpdatedAt),
	}
	for _, variant := range variants {
		payload.Variants = append(payload.Variants, buildVariantPayload(variant))
	}
	return payload
}

func buildVariantPayload(variant services.Variant) variantPayload {
	return variantPayload{
		ID:        variant.ID,
		ProductID: variant.ProductID,
		SKU:       variant.SKU,
		ColorID:   variant.ColorID,
		SizeID:    variant.SizeID,
		Price:     variant.Price,
		Stock:     variant.Stock,
		Images:    variant.Images,
		IsActive:  variant.IsActive,
	}
}

func buildCategoryPayload(category services.Category) categoryPayload {
	return categoryPayload{
		ID:       category.ID,
		Name:     category.Name,
		ParentID: cloneStringPointer(category.ParentID),
	}
}

func buildCouponPayload(coupon services.Coupon) couponPayload {
	payload := couponPayload{
		Code:          coupon.Code,
		Type:          string(coupon.Type),
		Value:         coupon.Value,
		MinOrderValue: coupon.MinOrderValue,
		IsActive:      coupon.IsActive,
	}
	if coupon.ExpiresAt != nil {
		payload.ExpiresAt = formatTime(*coupon.ExpiresAt)
	}
	return payload
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to process catalog request", http.StatusInternalServerError))
	}
}

func writeCouponError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCouponInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCouponNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_found", "coupon not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCouponNotEligible):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_eligible", err.Error(), http.StatusUnprocessableEntity))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("coupon_error", "failed to process coupon request", http.StatusInternalServerError))
	}
}
