package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/services"
)

func catalogRouter(catalog services.CatalogService, coupons services.CouponService) chi.Router {
	handler := NewCatalogHandlers(catalog, coupons)
	router := chi.NewRouter()
	router.Route("/public", handler.Routes)
	return router
}

func sampleProduct(now time.Time) services.Product {
	return services.Product{
		ID:          "prd_1",
		Title:       "Cotton Kurta",
		Description: "Handloom cotton kurta",
		CategoryID:  "cat-1",
		BrandID:     "brand-1",
		VariantIDs:  []string{"var-1", "var-2"},
		Details:     map[string]string{"fabric": "cotton"},
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestCatalogHandlersListProducts(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	var captured services.ProductFilter
	catalog := &stubCatalogService{
		listProductsFn: func(_ context.Context, filter services.ProductFilter) (domain.Page[services.Product], error) {
			captured = filter
			return domain.Page[services.Product]{
				Items:      []services.Product{sampleProduct(now)},
				Page:       2,
				Limit:      10,
				TotalItems: 31,
				TotalPages: 4,
			}, nil
		},
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/public/products?category=cat-1&brand=brand-1&min_price=100&max_price=2000&page=2&limit=10", nil)
	catalogRouter(catalog, nil).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !captured.OnlyActive {
		t.Fatal("expected listing restricted to active products")
	}
	if captured.CategoryID == nil || *captured.CategoryID != "cat-1" {
		t.Fatalf("unexpected category filter %#v", captured.CategoryID)
	}
	if captured.BrandID == nil || *captured.BrandID != "brand-1" {
		t.Fatalf("unexpected brand filter %#v", captured.BrandID)
	}
	if captured.PriceRange.From == nil || *captured.PriceRange.From != 100 {
		t.Fatalf("unexpected min price %#v", captured.PriceRange.From)
	}
	if captured.PriceRange.To == nil || *captured.PriceRange.To != 2000 {
		t.Fatalf("unexpected max price %#v", captured.PriceRange.To)
	}
	if captured.Pagination.Page != 2 || captured.Pagination.Limit != 10 {
		t.Fatalf("unexpected pagination %#v", captured.Pagination)
	}

	var resp productListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "prd_1" {
		t.Fatalf("unexpected items %#v", resp.Items)
	}
	if len(resp.Items[0].Variants) != 0 {
		t.Fatal("expected list payload without expanded variants")
	}
	if resp.Page != 2 || resp.Limit != 10 || resp.TotalItems != 31 || resp.TotalPages != 4 {
		t.Fatalf("unexpected page metadata %#v", resp)
	}
}

func TestCatalogHandlersListProductsRejectsBadQuery(t *testing.T) {
	var called bool
	catalog := &stubCatalogService{
		listProductsFn: func(context.Context, services.ProductFilter) (domain.Page[services.Product], error) {
			called = true
			return domain.Page[services.Product]{}, nil
		},
	}
	router := catalogRouter(catalog, nil)

	tests := []struct {
		name   string
		target string
	}{
		{name: "bad page", target: "/public/products?page=abc"},
		{name: "negative price", target: "/public/products?min_price=-5"},
		{name: "non numeric price", target: "/public/products?max_price=cheap"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.target, nil))

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
			}
			if called {
				t.Fatal("expected catalog service not to be called")
			}
		})
	}
}

func TestCatalogHandlersGetProductExpandsVariants(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	catalog := &stubCatalogService{
		getProductFn: func(_ context.Context, productID string) (services.Product, error) {
			if productID != "prd_1" {
				t.Fatalf("unexpected product id %s", productID)
			}
			return sampleProduct(now), nil
		},
		getVariantsFn: func(_ context.Context, variantIDs []string) ([]services.Variant, error) {
			if len(variantIDs) != 2 || variantIDs[0] != "var-1" {
				t.Fatalf("unexpected variant ids %v", variantIDs)
			}
			return []services.Variant{
				{ID: "var-1", ProductID: "prd_1", SKU: "KURTA-S", SizeID: "size-s", Price: 999, Stock: 4, IsActive: true},
				{ID: "var-2", ProductID: "prd_1", SKU: "KURTA-M", SizeID: "size-m", Price: 999, Stock: 0, IsActive: true},
			}, nil
		},
	}

	rr := httptest.NewRecorder()
	catalogRouter(catalog, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/public/products/prd_1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp productResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Product.ID != "prd_1" || resp.Product.Title != "Cotton Kurta" {
		t.Fatalf("unexpected product payload %#v", resp.Product)
	}
	if len(resp.Product.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(resp.Product.Variants))
	}
	if resp.Product.Variants[1].SKU != "KURTA-M" || resp.Product.Variants[1].Stock != 0 {
		t.Fatalf("unexpected variant payload %#v", resp.Product.Variants[1])
	}
}

func TestCatalogHandlersGetProductNotFound(t *testing.T) {
	catalog := &stubCatalogService{
		getProductFn: func(context.Context, string) (services.Product, error) {
			return services.Product{}, services.ErrCatalogNotFound
		},
	}

	rr := httptest.NewRecorder()
	catalogRouter(catalog, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/public/products/prd_404", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestCatalogHandlersListBrands(t *testing.T) {
	catalog := &stubCatalogService{
		listBrandsFn: func(context.Context) ([]services.Brand, error) {
			return []services.Brand{
				{ID: "brand-1", Name: "FabIndia", LogoURL: "https://cdn.example.com/fabindia.png"},
				{ID: "brand-2", Name: "Soch"},
			}, nil
		},
	}

	rr := httptest.NewRecorder()
	catalogRouter(catalog, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/public/brands", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp []brandPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 || resp[0].Name != "FabIndia" || resp[1].LogoURL != "" {
		t.Fatalf("unexpected brands payload %#v", resp)
	}
}

func TestCatalogHandlersListCategories(t *testing.T) {
	parent := "cat-root"
	catalog := &stubCatalogService{
		listCategsFn: func(context.Context) ([]services.Category, error) {
			return []services.Category{
				{ID: "cat-root", Name: "Apparel"},
				{ID: "cat-1", Name: "Kurtas", ParentID: &parent},
			}, nil
		},
	}

	rr := httptest.NewRecorder()
	catalogRouter(catalog, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/public/categories", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp []categoryPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(resp))
	}
	if resp[1].ParentID == nil || *resp[1].ParentID != "cat-root" {
		t.Fatalf("unexpected parent id %#v", resp[1].ParentID)
	}
}

func TestCatalogHandlersListColorsEmpty(t *testing.T) {
	rr := httptest.NewRecorder()
	catalogRouter(&stubCatalogService{}, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/public/colors", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp []colorPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp == nil || len(resp) != 0 {
		t.Fatalf("expected empty array, got %#v", resp)
	}
}

func TestCatalogHandlersGetCoupon(t *testing.T) {
	expires := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	minOrder := 500.0
	coupons := &stubCouponService{
		getFn: func(_ context.Context, code string) (services.Coupon, error) {
			if code != "FESTIVE10" {
				t.Fatalf("unexpected coupon code %s", code)
			}
			return services.Coupon{
				Code:          "FESTIVE10",
				Type:          domain.CouponTypePercentage,
				Value:         10,
				MinOrderValue: &minOrder,
				ExpiresAt:     &expires,
				IsActive:      true,
			}, nil
		},
	}

	rr := httptest.NewRecorder()
	catalogRouter(nil, coupons).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/public/coupons/FESTIVE10", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp couponPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != "FESTIVE10" || resp.Type != string(domain.CouponTypePercentage) || resp.Value != 10 {
		t.Fatalf("unexpected coupon payload %#v", resp)
	}
	if resp.MinOrderValue == nil || *resp.MinOrderValue != 500 {
		t.Fatalf("unexpected min order value %#v", resp.MinOrderValue)
	}
	if resp.ExpiresAt != expires.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected expiry %s", resp.ExpiresAt)
	}
}

func TestCatalogHandlersGetCouponNotFound(t *testing.T) {
	coupons := &stubCouponService{
		getFn: func(context.Context, string) (services.Coupon, error) {
			return services.Coupon{}, services.ErrCouponNotFound
		},
	}

	rr := httptest.NewRecorder()
	catalogRouter(nil, coupons).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/public/coupons/NOPE", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestCatalogHandlersServiceUnavailable(t *testing.T) {
	rr := httptest.NewRecorder()
	catalogRouter(nil, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/public/products", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
