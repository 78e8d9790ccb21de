package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/services"
)

type stubCatalogService struct {
	listProductsFn  func(context.Context, services.ProductFilter) (domain.Page[services.Product], error)
	getProductFn    func(context.Context, string) (services.Product, error)
	upsertProductFn func(context.Context, services.UpsertProductCommand) (services.Product, error)
	deleteProductFn func(context.Context, string) error
	getVariantFn    func(context.Context, string) (services.Variant, error)
	getVariantsFn   func(context.Context, []string) ([]services.Variant, error)
	upsertVariantFn func(context.Context, services.UpsertVariantCommand) (services.Variant, error)
	listBrandsFn    func(context.Context) ([]services.Brand, error)
	listCategsFn    func(context.Context) ([]services.Category, error)
}

func (s *stubCatalogService) ListProducts(ctx context.Context, filter services.ProductFilter) (domain.Page[services.Product], error) {
	if s.listProductsFn != nil {
		return s.listProductsFn(ctx, filter)
	}
	return domain.Page[services.Product]{}, nil
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (services.Product, error) {
	if s.getProductFn != nil {
		return s.getProductFn(ctx, productID)
	}
	return services.Product{}, errors.New("not implemented")
}

func (s *stubCatalogService) UpsertProduct(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	if s.upsertProductFn != nil {
		return s.upsertProductFn(ctx, cmd)
	}
	return services.Product{}, errors.New("not implemented")
}

func (s *stubCatalogService) DeleteProduct(ctx context.Context, productID string) error {
	if s.deleteProductFn != nil {
		return s.deleteProductFn(ctx, productID)
	}
	return errors.New("not implemented")
}

func (s *stubCatalogService) GetVariant(ctx context.Context, variantID string) (services.Variant, error) {
	if s.getVariantFn != nil {
		return s.getVariantFn(ctx, variantID)
	}
	return services.Variant{}, errors.New("not implemented")
}

func (s *stubCatalogService) GetVariants(ctx context.Context, variantIDs []string) ([]services.Variant, error) {
	if s.getVariantsFn != nil {
		return s.getVariantsFn(ctx, variantIDs)
	}
	return nil, errors.New("not implemented")
}

func (s *stubCatalogService) UpsertVariant(ctx context.Context, cmd services.UpsertVariantCommand) (services.Variant, error) {
	if s.upsertVariantFn != nil {
		return s.upsertVariantFn(ctx, cmd)
	}
	return services.Variant{}, errors.New("not implemented")
}

func (s *stubCatalogService) ListBrands(ctx context.Context) ([]services.Brand, error) {
	if s.listBrandsFn != nil {
		return s.listBrandsFn(ctx)
	}
	return nil, nil
}

func (s *stubCatalogService) ListCategories(ctx context.Context) ([]services.Category, error) {
	if s.listCategsFn != nil {
		return s.listCategsFn(ctx)
	}
	return nil, nil
}

func (s *stubCatalogService) ListColors(context.Context) ([]services.Color, error) { return nil, nil }

func (s *stubCatalogService) ListSizes(context.Context) ([]services.Size, error) { return nil, nil }

type stubCouponService struct {
	getFn      func(context.Context, string) (services.Coupon, error)
	validateFn func(context.Context, services.ValidateCouponsCommand) ([]services.Coupon, error)
	listFn     func(context.Context, services.Pagination) (domain.Page[services.Coupon], error)
	upsertFn   func(context.Context, services.UpsertCouponCommand) (services.Coupon, error)
	deleteFn   func(context.Context, string) error
}

func (s *stubCouponService) GetCoupon(ctx context.Context, code string) (services.Coupon, error) {
	if s.getFn != nil {
		return s.getFn(ctx, code)
	}
	return services.Coupon{}, errors.New("not implemented")
}

func (s *stubCouponService) ValidateCoupons(ctx context.Context, cmd services.ValidateCouponsCommand) ([]services.Coupon, error) {
	if s.validateFn != nil {
		return s.validateFn(ctx, cmd)
	}
	return nil, errors.New("not implemented")
}

func (s *stubCouponService) ListCoupons(ctx context.Context, pager services.Pagination) (domain.Page[services.Coupon], error) {
	if s.listFn != nil {
		return s.listFn(ctx, pager)
	}
	return domain.Page[services.Coupon]{}, nil
}

func (s *stubCouponService) UpsertCoupon(ctx context.Context, cmd services.UpsertCouponCommand) (services.Coupon, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, cmd)
	}
	return services.Coupon{}, errors.New("not implemented")
}

func (s *stubCouponService) DeleteCoupon(ctx context.Context, code string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, code)
	}
	return errors.New("not implemented")
}

type stubInventoryService struct {
	decrementFn func(context.Context, services.StockDecrementCommand) (services.StockMutation, error)
	restoreFn   func(context.Context, services.StockRestoreCommand) (services.StockMutation, error)
	getStockFn  func(context.Context, string) (int, error)
}

func (s *stubInventoryService) DecrementStock(ctx context.Context, cmd services.StockDecrementCommand) (services.StockMutation, error) {
	if s.decrementFn != nil {
		return s.decrementFn(ctx, cmd)
	}
	return services.StockMutation{}, errors.New("not implemented")
}

func (s *stubInventoryService) RestoreStock(ctx context.Context, cmd services.StockRestoreCommand) (services.StockMutation, error) {
	if s.restoreFn != nil {
		return s.restoreFn(ctx, cmd)
	}
	return services.StockMutation{}, errors.New("not implemented")
}

func (s *stubInventoryService) GetStock(ctx context.Context, variantID string) (int, error) {
	if s.getStockFn != nil {
		return s.getStockFn(ctx, variantID)
	}
	return 0, errors.New("not implemented")
}

func TestAdminHandlersCreateProduct(t *testing.T) {
	var captured services.UpsertProductCommand
	catalog := &stubCatalogService{
		upsertProductFn: func(_ context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
			captured = cmd
			product := cmd.Product
			product.ID = "prd_01TESTULID"
			return product, nil
		},
	}

	rr := httptest.NewRecorder()
	body := `{"title":"Cotton Kurta","category_id":"cat-1","brand_id":"brd-1","details":{"fabric":"cotton"}}`
	adminRouter(nil, catalog, nil, nil).ServeHTTP(rr, authedRequest(http.MethodPost, "/admin/products/", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Product.Title != "Cotton Kurta" || captured.ActorID != "user-1" {
		t.Fatalf("unexpected upsert command %#v", captured)
	}
	if !captured.Product.IsActive {
		t.Fatal("expected products to default to active")
	}

	var resp productResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Product.ID != "prd_01TESTULID" || resp.Product.Details["fabric"] != "cotton" {
		t.Fatalf("unexpected product payload %#v", resp.Product)
	}
}

func TestAdminHandlersUpdateProductKeepsPathID(t *testing.T) {
	catalog := &stubCatalogService{
		upsertProductFn: func(_ context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
			if cmd.Product.ID != "prd_1" {
				t.Fatalf("expected product id from path, got %q", cmd.Product.ID)
			}
			return cmd.Product, nil
		},
	}

	rr := httptest.NewRecorder()
	body := `{"title":"Cotton Kurta","category_id":"cat-1","brand_id":"brd-1","is_active":false}`
	adminRouter(nil, catalog, nil, nil).ServeHTTP(rr, authedRequest(http.MethodPut, "/admin/products/prd_1", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp productResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Product.IsActive {
		t.Fatal("expected is_active false to be honoured")
	}
}

func TestAdminHandlersUpsertProductValidation(t *testing.T) {
	catalog := &stubCatalogService{
		upsertProductFn: func(_ context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
			return services.Product{}, services.ErrCatalogInvalidInput
		},
	}

	rr := httptest.NewRecorder()
	adminRouter(nil, catalog, nil, nil).ServeHTTP(rr, authedRequest(http.MethodPost, "/admin/products/", `{"title":""}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersDeleteProduct(t *testing.T) {
	var deleted string
	catalog := &stubCatalogService{
		deleteProductFn: func(_ context.Context, productID string) error {
			deleted = productID
			return nil
		},
	}

	rr := httptest.NewRecorder()
	adminRouter(nil, catalog, nil, nil).ServeHTTP(rr, authedRequest(http.MethodDelete, "/admin/products/prd_1", ""))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if deleted != "prd_1" {
		t.Fatalf("expected prd_1 deleted, got %q", deleted)
	}
}

func TestAdminHandlersDeleteProductNotFound(t *testing.T) {
	catalog := &stubCatalogService{
		deleteProductFn: func(context.Context, string) error {
			return services.ErrCatalogNotFound
		},
	}

	rr := httptest.NewRecorder()
	adminRouter(nil, catalog, nil, nil).ServeHTTP(rr, authedRequest(http.MethodDelete, "/admin/products/prd_404", ""))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestAdminHandlersUpsertVariant(t *testing.T) {
	var captured services.UpsertVariantCommand
	catalog := &stubCatalogService{
		upsertVariantFn: func(_ context.Context, cmd services.UpsertVariantCommand) (services.Variant, error) {
			captured = cmd
			return cmd.Variant, nil
		},
	}

	rr := httptest.NewRecorder()
	body := `{"sku":"SKU-1","color_id":"col-1","size_id":"siz-m","price":499}`
	adminRouter(nil, catalog, nil, nil).ServeHTTP(rr, authedRequest(http.MethodPut, "/admin/products/prd_1/variants/var_1", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Variant.ProductID != "prd_1" || captured.Variant.ID != "var_1" {
		t.Fatalf("expected ids from path, got %#v", captured.Variant)
	}
	if captured.Variant.SKU != "SKU-1" || captured.Variant.Price != 499 {
		t.Fatalf("unexpected variant %#v", captured.Variant)
	}

	var resp variantPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.SKU != "SKU-1" || !resp.IsActive {
		t.Fatalf("unexpected variant payload %#v", resp)
	}
}

func TestAdminHandlersUpsertVariantUnknownProduct(t *testing.T) {
	catalog := &stubCatalogService{
		upsertVariantFn: func(context.Context, services.UpsertVariantCommand) (services.Variant, error) {
			return services.Variant{}, services.ErrCatalogNotFound
		},
	}

	rr := httptest.NewRecorder()
	body := `{"sku":"SKU-1","price":499}`
	adminRouter(nil, catalog, nil, nil).ServeHTTP(rr, authedRequest(http.MethodPut, "/admin/products/prd_404/variants/var_1", body))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestAdminHandlersListCoupons(t *testing.T) {
	expires := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	coupons := &stubCouponService{
		listFn: func(_ context.Context, pager services.Pagination) (domain.Page[services.Coupon], error) {
			if pager.Page != 1 || pager.Limit != 50 {
				t.Fatalf("unexpected pagination %#v", pager)
			}
			return domain.Page[services.Coupon]{
				Items: []services.Coupon{
					{Code: "TEN", Type: domain.CouponTypePercentage, Value: 10, IsActive: true, ExpiresAt: &expires},
					{Code: "FLAT50", Type: domain.CouponTypeFixed, Value: 50, IsActive: true},
				},
				Page:       1,
				Limit:      50,
				TotalItems: 2,
				TotalPages: 1,
			}, nil
		},
	}

	rr := httptest.NewRecorder()
	adminRouter(nil, nil, coupons, nil).ServeHTTP(rr, authedRequest(http.MethodGet, "/admin/coupons/?page=1&limit=50", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp couponListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[0].Code != "TEN" || resp.Items[1].Type != "Fixed" {
		t.Fatalf("unexpected coupon list %#v", resp.Items)
	}
	if resp.Items[0].ExpiresAt != expires.Format(time.RFC3339Nano) {
		t.Fatalf("expected expiry formatted, got %s", resp.Items[0].ExpiresAt)
	}
}

func TestAdminHandlersUpsertCoupon(t *testing.T) {
	var captured services.UpsertCouponCommand
	coupons := &stubCouponService{
		upsertFn: func(_ context.Context, cmd services.UpsertCouponCommand) (services.Coupon, error) {
			captured = cmd
			coupon := cmd.Coupon
			coupon.Code = "FESTIVE10"
			return coupon, nil
		},
	}

	rr := httptest.NewRecorder()
	body := `{"type":"percentage","value":10,"min_order_value":500,"expires_at":"2026-06-01T00:00:00Z"}`
	adminRouter(nil, nil, coupons, nil).ServeHTTP(rr, authedRequest(http.MethodPut, "/admin/coupons/festive10", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Coupon.Code != "festive10" || captured.Coupon.Type != domain.CouponTypePercentage {
		t.Fatalf("unexpected coupon command %#v", captured.Coupon)
	}
	if captured.Coupon.MinOrderValue == nil || *captured.Coupon.MinOrderValue != 500 {
		t.Fatalf("expected min order value 500, got %#v", captured.Coupon.MinOrderValue)
	}
	if captured.Coupon.ExpiresAt == nil {
		t.Fatal("expected expiry parsed")
	}
}

func TestAdminHandlersUpsertCouponRejectsUnknownType(t *testing.T) {
	var upsertCalled bool
	coupons := &stubCouponService{
		upsertFn: func(context.Context, services.UpsertCouponCommand) (services.Coupon, error) {
			upsertCalled = true
			return services.Coupon{}, nil
		},
	}

	rr := httptest.NewRecorder()
	adminRouter(nil, nil, coupons, nil).ServeHTTP(rr, authedRequest(http.MethodPut, "/admin/coupons/BOGO", `{"type":"bogo","value":1}`))

	if upsertCalled {
		t.Fatal("expected request to be rejected before the service")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersDeleteCouponNotFound(t *testing.T) {
	coupons := &stubCouponService{
		deleteFn: func(context.Context, string) error {
			return services.ErrCouponNotFound
		},
	}

	rr := httptest.NewRecorder()
	adminRouter(nil, nil, coupons, nil).ServeHTTP(rr, authedRequest(http.MethodDelete, "/admin/coupons/NOPE", ""))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestAdminHandlersGetStock(t *testing.T) {
	inventory := &stubInventoryService{
		getStockFn: func(_ context.Context, variantID string) (int, error) {
			if variantID != "var-1" {
				t.Fatalf("unexpected variant id %s", variantID)
			}
			return 7, nil
		},
	}

	rr := httptest.NewRecorder()
	adminRouter(nil, nil, nil, inventory).ServeHTTP(rr, authedRequest(http.MethodGet, "/admin/inventory/var-1", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp stockPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.VariantID != "var-1" || resp.Stock != 7 {
		t.Fatalf("unexpected stock payload %#v", resp)
	}
}

func TestAdminHandlersGetStockUnknownVariant(t *testing.T) {
	inventory := &stubInventoryService{
		getStockFn: func(context.Context, string) (int, error) {
			return 0, services.ErrInventoryVariantNotFound
		},
	}

	rr := httptest.NewRecorder()
	adminRouter(nil, nil, nil, inventory).ServeHTTP(rr, authedRequest(http.MethodGet, "/admin/inventory/var-404", ""))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestAdminHandlersRestock(t *testing.T) {
	var captured services.StockRestoreCommand
	inventory := &stubInventoryService{
		restoreFn: func(_ context.Context, cmd services.StockRestoreCommand) (services.StockMutation, error) {
			captured = cmd
			return services.StockMutation{Remaining: map[string]int{"var-1": 15}}, nil
		},
	}

	rr := httptest.NewRecorder()
	body := `{"quantity":5,"reason":"supplier delivery"}`
	adminRouter(nil, nil, nil, inventory).ServeHTTP(rr, authedRequest(http.MethodPost, "/admin/inventory/var-1:restock", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if len(captured.Lines) != 1 || captured.Lines[0].VariantID != "var-1" || captured.Lines[0].Quantity != 5 {
		t.Fatalf("unexpected restore command %#v", captured)
	}
	if captured.Reason != "supplier delivery" {
		t.Fatalf("expected reason propagated, got %q", captured.Reason)
	}

	var resp stockPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Stock != 15 {
		t.Fatalf("expected stock 15, got %d", resp.Stock)
	}
}

func TestAdminHandlersRestockRejectsNonPositiveQuantity(t *testing.T) {
	var restoreCalled bool
	inventory := &stubInventoryService{
		restoreFn: func(context.Context, services.StockRestoreCommand) (services.StockMutation, error) {
			restoreCalled = true
			return services.StockMutation{}, nil
		},
	}

	rr := httptest.NewRecorder()
	adminRouter(nil, nil, nil, inventory).ServeHTTP(rr, authedRequest(http.MethodPost, "/admin/inventory/var-1:restock", `{"quantity":0}`))

	if restoreCalled {
		t.Fatal("expected request to be rejected before the service")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
