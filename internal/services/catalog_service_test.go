package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/repositories"
)

func newTestCatalogService(t *testing.T, repo *stubCatalogRepo) CatalogService {
	t.Helper()
	svc, err := NewCatalogService(CatalogServiceDeps{
		Catalog:     repo,
		Clock:       func() time.Time { return time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC) },
		IDGenerator: func() string { return "01TESTULID" },
	})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	return svc
}

func TestCatalogServiceUpsertProduct(t *testing.T) {
	ctx := context.Background()
	repo := &stubCatalogRepo{products: map[string]domain.Product{}}
	svc := newTestCatalogService(t, repo)

	product, err := svc.UpsertProduct(ctx, UpsertProductCommand{
		Product: domain.Product{
			Title:       " Cotton Kurta ",
			Description: "<p>Handloom <script>alert(1)</script>cotton</p>",
			Details:     map[string]string{" fabric ": " cotton ", "  ": "dropped"},
			CategoryID:  "cat-1",
			BrandID:     "brd-1",
		},
		ActorID: "admin-1",
	})
	if err != nil {
		t.Fatalf("upsert product: %v", err)
	}
	if product.Title != "Cotton Kurta" {
		t.Fatalf("expected trimmed title got %q", product.Title)
	}
	if product.Description != "Handloom cotton" {
		t.Fatalf("expected markup stripped from description got %q", product.Description)
	}
	if len(product.Details) != 1 || product.Details["fabric"] != "cotton" {
		t.Fatalf("expected normalized details got %#v", product.Details)
	}
	if !strings.HasPrefix(product.ID, "prd_") {
		t.Fatalf("expected generated id prefix prd_ got %s", product.ID)
	}
	if len(repo.upsertedProducts) != 1 {
		t.Fatalf("expected repository upsert got %d", len(repo.upsertedProducts))
	}

	cases := []struct {
		name    string
		product domain.Product
	}{
		{name: "missing title", product: domain.Product{CategoryID: "cat-1", BrandID: "brd-1"}},
		{name: "missing category", product: domain.Product{Title: "X", BrandID: "brd-1"}},
		{name: "missing brand", product: domain.Product{Title: "X", CategoryID: "cat-1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.UpsertProduct(ctx, UpsertProductCommand{Product: tc.product}); !errors.Is(err, ErrCatalogInvalidInput) {
				t.Fatalf("expected ErrCatalogInvalidInput got %v", err)
			}
		})
	}
}

func TestCatalogServiceUpsertVariant(t *testing.T) {
	ctx := context.Background()
	repo := &stubCatalogRepo{
		products: map[string]domain.Product{
			"prod-1": {ID: "prod-1", Title: "Cotton Kurta"},
		},
	}
	svc := newTestCatalogService(t, repo)

	variant, err := svc.UpsertVariant(ctx, UpsertVariantCommand{
		Variant: domain.Variant{
			ProductID: "prod-1",
			SKU:       " SKU-1 ",
			Price:     499,
			IsActive:  true,
		},
	})
	if err != nil {
		t.Fatalf("upsert variant: %v", err)
	}
	if variant.SKU != "SKU-1" {
		t.Fatalf("expected trimmed sku got %q", variant.SKU)
	}
	if !strings.HasPrefix(variant.ID, "var_") {
		t.Fatalf("expected generated id prefix var_ got %s", variant.ID)
	}

	if _, err := svc.UpsertVariant(ctx, UpsertVariantCommand{
		Variant: domain.Variant{ProductID: "prod-404", SKU: "SKU-2", Price: 100},
	}); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected ErrCatalogNotFound for unknown product got %v", err)
	}

	if _, err := svc.UpsertVariant(ctx, UpsertVariantCommand{
		Variant: domain.Variant{ProductID: "prod-1", SKU: "SKU-3", Price: -1},
	}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput for negative price got %v", err)
	}
}

func TestCatalogServiceGetVariants(t *testing.T) {
	ctx := context.Background()
	repo := &stubCatalogRepo{
		variants: map[string]domain.Variant{
			"var-1": {ID: "var-1", ProductID: "prod-1", Price: 500},
			"var-2": {ID: "var-2", ProductID: "prod-1", Price: 250},
		},
	}
	svc := newTestCatalogService(t, repo)

	variants, err := svc.GetVariants(ctx, []string{" var-2 ", "var-1"})
	if err != nil {
		t.Fatalf("get variants: %v", err)
	}
	if len(variants) != 2 || variants[0].ID != "var-2" || variants[1].ID != "var-1" {
		t.Fatalf("expected variants in request order got %#v", variants)
	}

	if _, err := svc.GetVariants(ctx, []string{"var-1", "var-404"}); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected ErrCatalogNotFound got %v", err)
	}
	if _, err := svc.GetVariants(ctx, []string{"  "}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput got %v", err)
	}
}

func TestCatalogServiceListProductsValidatesRange(t *testing.T) {
	ctx := context.Background()
	var captured repositories.ProductFilter
	repo := &stubCatalogRepo{
		listProductsFn: func(_ context.Context, filter repositories.ProductFilter) (domain.Page[domain.Product], error) {
			captured = filter
			return domain.Page[domain.Product]{TotalItems: 0}, nil
		},
	}
	svc := newTestCatalogService(t, repo)

	from, to := 100.0, 50.0
	if _, err := svc.ListProducts(ctx, ProductFilter{
		PriceRange: domain.RangeQuery[float64]{From: &from, To: &to},
	}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput for inverted range got %v", err)
	}

	category := "cat-1"
	if _, err := svc.ListProducts(ctx, ProductFilter{
		CategoryID: &category,
		OnlyActive: true,
		Pagination: domain.Pagination{Page: 2, Limit: 20},
	}); err != nil {
		t.Fatalf("list products: %v", err)
	}
	if captured.CategoryID == nil || *captured.CategoryID != "cat-1" || !captured.OnlyActive {
		t.Fatalf("expected filter passed through got %#v", captured)
	}
}

func TestCatalogServiceGetProduct(t *testing.T) {
	ctx := context.Background()
	repo := &stubCatalogRepo{
		products: map[string]domain.Product{
			"prod-1": {ID: "prod-1", Title: "Cotton Kurta"},
		},
	}
	svc := newTestCatalogService(t, repo)

	product, err := svc.GetProduct(ctx, "prod-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Title != "Cotton Kurta" {
		t.Fatalf("unexpected product %#v", product)
	}

	if _, err := svc.GetProduct(ctx, "prod-404"); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected ErrCatalogNotFound got %v", err)
	}
	if err := svc.DeleteProduct(ctx, "prod-404"); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected ErrCatalogNotFound on delete got %v", err)
	}
}
