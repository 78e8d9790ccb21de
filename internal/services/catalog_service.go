package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/platform/textutil"
	"github.com/vastrakart/api/internal/repositories"
)

// descriptionPolicy strips markup from admin-entered product copy, which is
// often pasted from merchandising tools and served verbatim to storefronts.
var descriptionPolicy = bluemonday.StrictPolicy()

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid data to a catalog operation.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogNotFound indicates the product or variant does not exist.
	ErrCatalogNotFound = errors.New("catalog service: not found")
)

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Catalog     repositories.CatalogRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type catalogService struct {
	repo   repositories.CatalogRepository
	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog service: catalog repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{
		repo:   deps.Catalog,
		clock:  func() time.Time { return clock().UTC() },
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductFilter) (domain.Page[Product], error) {
	if filter.PriceRange.From != nil && filter.PriceRange.To != nil && *filter.PriceRange.From > *filter.PriceRange.To {
		return domain.Page[Product]{}, fmt.Errorf("%w: price range is inverted", ErrCatalogInvalidInput)
	}
	page, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return domain.Page[Product]{}, s.translateRepoError(err)
	}
	return page, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}
	return product, nil
}

func (s *catalogService) UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	product := cmd.Product
	product.Title = strings.TrimSpace(product.Title)
	if product.Title == "" {
		return Product{}, fmt.Errorf("%w: product title is required", ErrCatalogInvalidInput)
	}
	if strings.TrimSpace(product.CategoryID) == "" {
		return Product{}, fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	if strings.TrimSpace(product.BrandID) == "" {
		return Product{}, fmt.Errorf("%w: brand id is required", ErrCatalogInvalidInput)
	}
	product.Description = strings.TrimSpace(descriptionPolicy.Sanitize(product.Description))
	product.Details = textutil.NormalizeStringMap(product.Details)
	if strings.TrimSpace(product.ID) == "" {
		product.ID = "prd_" + s.newID()
	}

	saved, err := s.repo.UpsertProduct(ctx, product)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}
	s.logger(ctx, "catalog_product_upserted", map[string]any{
		"productId": saved.ID,
		"actorId":   strings.TrimSpace(cmd.ActorID),
	})
	return saved, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	if err := s.repo.DeleteProduct(ctx, productID); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *catalogService) GetVariant(ctx context.Context, variantID string) (Variant, error) {
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return Variant{}, fmt.Errorf("%w: variant id is required", ErrCatalogInvalidInput)
	}
	variant, err := s.repo.GetVariant(ctx, variantID)
	if err != nil {
		return Variant{}, s.translateRepoError(err)
	}
	return variant, nil
}

func (s *catalogService) GetVariants(ctx context.Context, variantIDs []string) ([]Variant, error) {
	ids := make([]string, 0, len(variantIDs))
	for _, id := range variantIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one variant id is required", ErrCatalogInvalidInput)
	}

	found, err := s.repo.GetVariants(ctx, ids)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	variants := make([]Variant, 0, len(ids))
	for _, id := range ids {
		variant, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("%w: variant %s", ErrCatalogNotFound, id)
		}
		variants = append(variants, variant)
	}
	return variants, nil
}

func (s *catalogService) UpsertVariant(ctx context.Context, cmd UpsertVariantCommand) (Variant, error) {
	variant := cmd.Variant
	if strings.TrimSpace(variant.ProductID) == "" {
		return Variant{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	variant.SKU = strings.TrimSpace(variant.SKU)
	if variant.SKU == "" {
		return Variant{}, fmt.Errorf("%w: sku is required", ErrCatalogInvalidInput)
	}
	if variant.Price < 0 {
		return Variant{}, fmt.Errorf("%w: price cannot be negative", ErrCatalogInvalidInput)
	}
	if strings.TrimSpace(variant.ID) == "" {
		variant.ID = "var_" + s.newID()
	}

	if _, err := s.repo.GetProduct(ctx, variant.ProductID); err != nil {
		return Variant{}, s.translateRepoError(err)
	}

	saved, err := s.repo.UpsertVariant(ctx, variant)
	if err != nil {
		return Variant{}, s.translateRepoError(err)
	}
	s.logger(ctx, "catalog_variant_upserted", map[string]any{
		"variantId": saved.ID,
		"actorId":   strings.TrimSpace(cmd.ActorID),
	})
	return saved, nil
}

func (s *catalogService) ListBrands(ctx context.Context) ([]Brand, error) {
	brands, err := s.repo.ListBrands(ctx)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return brands, nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return categories, nil
}

func (s *catalogService) ListColors(ctx context.Context) ([]Color, error) {
	colors, err := s.repo.ListColors(ctx)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return colors, nil
}

func (s *catalogService) ListSizes(ctx context.Context) ([]Size, error) {
	sizes, err := s.repo.ListSizes(ctx)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return sizes, nil
}

func (s *catalogService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isRepoNotFound(err) {
		return fmt.Errorf("%w: %v", ErrCatalogNotFound, err)
	}
	return err
}
