package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	firestorepb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"

	domain "github.com/vastrakart/api/internal/domain"
	pfirestore "github.com/vastrakart/api/internal/platform/firestore"
	"github.com/vastrakart/api/internal/repositories"
)

const (
	productsCollection   = "products"
	variantsCollection   = "variants"
	brandsCollection     = "brands"
	categoriesCollection = "categories"
	colorsCollection     = "colors"
	sizesCollection      = "sizes"
)

// CatalogRepository persists products, variants, and taxonomy lookups.
type CatalogRepository struct {
	provider   *pfirestore.Provider
	products   *pfirestore.BaseRepository[productDocument]
	variants   *pfirestore.BaseRepository[variantDocument]
	brands     *pfirestore.BaseRepository[brandDocument]
	categories *pfirestore.BaseRepository[categoryDocument]
	colors     *pfirestore.BaseRepository[colorDocument]
	sizes      *pfirestore.BaseRepository[sizeDocument]
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		provider:   provider,
		products:   pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
		variants:   pfirestore.NewBaseRepository[variantDocument](provider, variantsCollection, nil, nil),
		brands:     pfirestore.NewBaseRepository[brandDocument](provider, brandsCollection, nil, nil),
		categories: pfirestore.NewBaseRepository[categoryDocument](provider, categoriesCollection, nil, nil),
		colors:     pfirestore.NewBaseRepository[colorDocument](provider, colorsCollection, nil, nil),
		sizes:      pfirestore.NewBaseRepository[sizeDocument](provider, sizesCollection, nil, nil),
	}, nil
}

func (r *CatalogRepository) ListProducts(ctx context.Context, filter repositories.ProductFilter) (domain.Page[domain.Product], error) {
	if r == nil || r.provider == nil {
		return domain.Page[domain.Product]{}, errors.New("catalog repository not initialised")
	}

	page := filter.Pagination.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Pagination.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Page[domain.Product]{}, pfirestore.WrapError("products.list", err)
	}

	query := client.Collection(productsCollection).Query
	if filter.OnlyActive {
		query = query.Where("isActive", "==", true)
	}
	if filter.CategoryID != nil {
		query = query.Where("categoryId", "==", strings.TrimSpace(*filter.CategoryID))
	}
	if filter.BrandID != nil {
		query = query.Where("brandId", "==", strings.TrimSpace(*filter.BrandID))
	}
	// Price range filters apply to the denormalised minimum variant price so
	// products stay queryable without joining the variants collection.
	if filter.PriceRange.From != nil {
		query = query.Where("minPrice", ">=", *filter.PriceRange.From)
	}
	if filter.PriceRange.To != nil {
		query = query.Where("minPrice", "<=", *filter.PriceRange.To)
	}

	total, err := countDocuments(ctx, query, "products.count")
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}

	query = query.OrderBy("createdAt", firestore.Desc).
		Offset((page - 1) * limit).
		Limit(limit)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var products []domain.Product
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.Page[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Page[domain.Product]{}, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
		}
		products = append(products, doc.toDomain(snap.Ref.ID))
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return domain.Page[domain.Product]{
		Items:      products,
		Page:       page,
		Limit:      limit,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}

func (r *CatalogRepository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	doc, err := r.products.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *CatalogRepository) UpsertProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	id := strings.TrimSpace(product.ID)
	if id == "" {
		return domain.Product{}, errors.New("catalog repository: product id is required")
	}
	doc := newProductDocument(product)
	// minPrice is denormalised from the product's variants so price-range
	// listing queries stay single-collection.
	if len(product.VariantIDs) > 0 {
		variants, err := r.GetVariants(ctx, product.VariantIDs)
		if err == nil {
			first := true
			for _, v := range variants {
				if first || v.Price < doc.MinPrice {
					doc.MinPrice = v.Price
					first = false
				}
			}
		}
	}
	result, err := r.products.Set(ctx, id, doc)
	if err != nil {
		return domain.Product{}, err
	}
	saved := doc.toDomain(id)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

func (r *CatalogRepository) DeleteProduct(ctx context.Context, productID string) error {
	if r == nil || r.products == nil {
		return errors.New("catalog repository not initialised")
	}
	ref, err := r.products.DocumentRef(ctx, strings.TrimSpace(productID))
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("products.delete", err)
	}
	return nil
}

func (r *CatalogRepository) GetVariant(ctx context.Context, variantID string) (domain.Variant, error) {
	if r == nil || r.variants == nil {
		return domain.Variant{}, errors.New("catalog repository not initialised")
	}
	doc, err := r.variants.Get(ctx, strings.TrimSpace(variantID))
	if err != nil {
		return domain.Variant{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *CatalogRepository) GetVariants(ctx context.Context, variantIDs []string) (map[string]domain.Variant, error) {
	if r == nil || r.variants == nil {
		return nil, errors.New("catalog repository not initialised")
	}
	out := make(map[string]domain.Variant, len(variantIDs))
	for _, id := range variantIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, seen := out[id]; seen {
			continue
		}
		doc, err := r.variants.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = doc.Data.toDomain(doc.ID)
	}
	return out, nil
}

// UpsertVariant writes descriptive fields only. The stock count is read from
// the current document and preserved, keeping InventoryRepository the sole
// stock writer.
func (r *CatalogRepository) UpsertVariant(ctx context.Context, variant domain.Variant) (domain.Variant, error) {
	if r == nil || r.provider == nil {
		return domain.Variant{}, errors.New("catalog repository not initialised")
	}
	id := strings.TrimSpace(variant.ID)
	if id == "" {
		return domain.Variant{}, errors.New("catalog repository: variant id is required")
	}

	var saved domain.Variant
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.variants.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		doc := newVariantDocument(variant)
		if snap, err := tx.Get(ref); err == nil {
			var current variantDocument
			if err := snap.DataTo(&current); err != nil {
				return fmt.Errorf("decode variant %s: %w", id, err)
			}
			doc.Stock = current.Stock
			doc.CreatedAt = current.CreatedAt
		}
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		saved = doc.toDomain(id)
		return nil
	})
	if err != nil {
		return domain.Variant{}, pfirestore.WrapError("variants.upsert", err)
	}
	return saved, nil
}

func (r *CatalogRepository) DeleteVariant(ctx context.Context, variantID string) error {
	if r == nil || r.variants == nil {
		return errors.New("catalog repository not initialised")
	}
	ref, err := r.variants.DocumentRef(ctx, strings.TrimSpace(variantID))
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("variants.delete", err)
	}
	return nil
}

func (r *CatalogRepository) ListBrands(ctx context.Context) ([]domain.Brand, error) {
	docs, err := r.brands.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Brand, len(docs))
	for i, doc := range docs {
		out[i] = domain.Brand{ID: doc.ID, Name: doc.Data.Name, LogoURL: doc.Data.LogoURL}
	}
	return out, nil
}

func (r *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	docs, err := r.categories.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Category, len(docs))
	for i, doc := range docs {
		out[i] = domain.Category{ID: doc.ID, Name: doc.Data.Name, ParentID: doc.Data.ParentID}
	}
	return out, nil
}

func (r *CatalogRepository) ListColors(ctx context.Context) ([]domain.Color, error) {
	docs, err := r.colors.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Color, len(docs))
	for i, doc := range docs {
		out[i] = domain.Color{ID: doc.ID, Name: doc.Data.Name, Hex: doc.Data.Hex}
	}
	return out, nil
}

func (r *CatalogRepository) ListSizes(ctx context.Context) ([]domain.Size, error) {
	docs, err := r.sizes.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("sortKey", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Size, len(docs))
	for i, doc := range docs {
		out[i] = domain.Size{ID: doc.ID, Name: doc.Data.Name}
	}
	return out, nil
}

func countDocuments(ctx context.Context, query firestore.Query, op string) (int64, error) {
	results, err := query.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, pfirestore.WrapError(op, err)
	}
	value, ok := results["total"]
	if !ok {
		return 0, fmt.Errorf("%s: count aggregation missing", op)
	}
	count, ok := value.(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("%s: unexpected count aggregation type", op)
	}
	return count.GetIntegerValue(), nil
}

// Document structures --------------------------------------------------------

type productDocument struct {
	Title       string            `firestore:"title"`
	Description string            `firestore:"description,omitempty"`
	CategoryID  string            `firestore:"categoryId"`
	BrandID     string            `firestore:"brandId"`
	VariantIDs  []string          `firestore:"variantIds,omitempty"`
	Details     map[string]string `firestore:"details,omitempty"`
	MinPrice    float64           `firestore:"minPrice"`
	IsActive    bool              `firestore:"isActive"`
	CreatedAt   time.Time         `firestore:"createdAt"`
	UpdatedAt   time.Time         `firestore:"updatedAt"`
}

func newProductDocument(product domain.Product) productDocument {
	return productDocument{
		Title:       strings.TrimSpace(product.Title),
		Description: strings.TrimSpace(product.Description),
		CategoryID:  strings.TrimSpace(product.CategoryID),
		BrandID:     strings.TrimSpace(product.BrandID),
		VariantIDs:  append([]string(nil), product.VariantIDs...),
		Details:     cloneStringMap(product.Details),
		IsActive:    product.IsActive,
		CreatedAt:   product.CreatedAt.UTC(),
		UpdatedAt:   product.UpdatedAt.UTC(),
	}
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:          id,
		Title:       d.Title,
		Description: d.Description,
		CategoryID:  d.CategoryID,
		BrandID:     d.BrandID,
		VariantIDs:  append([]string(nil), d.VariantIDs...),
		Details:     cloneStringMap(d.Details),
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type variantDocument struct {
	ProductID string    `firestore:"productId"`
	SKU       string    `firestore:"sku"`
	ColorID   string    `firestore:"colorId,omitempty"`
	SizeID    string    `firestore:"sizeId,omitempty"`
	Price     float64   `firestore:"price"`
	Stock     int       `firestore:"stock"`
	Images    []string  `firestore:"images,omitempty"`
	IsActive  bool      `firestore:"isActive"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func newVariantDocument(variant domain.Variant) variantDocument {
	return variantDocument{
		ProductID: strings.TrimSpace(variant.ProductID),
		SKU:       strings.TrimSpace(variant.SKU),
		ColorID:   strings.TrimSpace(variant.ColorID),
		SizeID:    strings.TrimSpace(variant.SizeID),
		Price:     variant.Price,
		Stock:     variant.Stock,
		Images:    append([]string(nil), variant.Images...),
		IsActive:  variant.IsActive,
		CreatedAt: variant.CreatedAt.UTC(),
		UpdatedAt: variant.UpdatedAt.UTC(),
	}
}

func (d variantDocument) toDomain(id string) domain.Variant {
	return domain.Variant{
		ID:        id,
		ProductID: d.ProductID,
		SKU:       d.SKU,
		ColorID:   d.ColorID,
		SizeID:    d.SizeID,
		Price:     d.Price,
		Stock:     d.Stock,
		Images:    append([]string(nil), d.Images...),
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type brandDocument struct {
	Name    string `firestore:"name"`
	LogoURL string `firestore:"logoUrl,omitempty"`
}

type categoryDocument struct {
	Name     string  `firestore:"name"`
	ParentID *string `firestore:"parentId,omitempty"`
}

type colorDocument struct {
	Name string `firestore:"name"`
	Hex  string `firestore:"hex,omitempty"`
}

type sizeDocument struct {
	Name    string `firestore:"name"`
	SortKey int    `firestore:"sortKey"`
}

func cloneStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)
