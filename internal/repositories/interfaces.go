package repositories

import (
	"context"
	"time"

	domain "github.com/vastrakart/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Inventory() InventoryRepository
	Catalog() CatalogRepository
	Carts() CartRepository
	Wishlists() WishlistRepository
	Coupons() CouponRepository
	Addresses() AddressRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order documents and provides query helpers for users and admins.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, id string) (domain.Order, error)
	FindByOrderID(ctx context.Context, orderID string) (domain.Order, error)
	// Mutate applies fn to the current persisted order inside a transaction.
	// fn sees the freshly read document so guards are re-validated against
	// the latest state; concurrent mutations serialise or fail with a
	// conflict. The returned order is the state after the write.
	Mutate(ctx context.Context, id string, fn func(order *domain.Order) error) (domain.Order, error)
	ListByUser(ctx context.Context, filter OrderListFilter) (domain.Page[domain.Order], error)
	List(ctx context.Context, filter OrderListFilter) (domain.Page[domain.Order], error)
	Stats(ctx context.Context, query OrderStatsQuery) (domain.OrderStats, error)
}

// InventoryRepository mutates variant stock levels with transactional guarantees.
type InventoryRepository interface {
	// Decrement atomically subtracts quantities for every line, or none:
	// any line with stock below its requested quantity aborts the whole
	// transaction and reports the shortfalls.
	Decrement(ctx context.Context, req StockDecrementRequest) (StockMutationResult, error)
	// Restore atomically adds quantities back for every line.
	Restore(ctx context.Context, req StockRestoreRequest) (StockMutationResult, error)
	GetStock(ctx context.Context, variantIDs []string) (map[string]int, error)
}

// StockDecrementRequest carries the lines to decrement on behalf of an order.
type StockDecrementRequest struct {
	OrderRef string
	Lines    []domain.StockLine
	Now      time.Time
}

// StockRestoreRequest carries the lines to restore on behalf of an order.
type StockRestoreRequest struct {
	OrderRef string
	Reason   string
	Lines    []domain.StockLine
	Now      time.Time
}

// StockMutationResult reports post-mutation levels and emitted events.
type StockMutationResult struct {
	Remaining map[string]int
	Events    []domain.StockEvent
}

// CatalogRepository bundles product/variant/taxonomy storage.
type CatalogRepository interface {
	ListProducts(ctx context.Context, filter ProductFilter) (domain.Page[domain.Product], error)
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	UpsertProduct(ctx context.Context, product domain.Product) (domain.Product, error)
	DeleteProduct(ctx context.Context, productID string) error

	GetVariant(ctx context.Context, variantID string) (domain.Variant, error)
	GetVariants(ctx context.Context, variantIDs []string) (map[string]domain.Variant, error)
	// UpsertVariant persists descriptive variant fields. Stock is owned by
	// InventoryRepository and is never written through this method.
	UpsertVariant(ctx context.Context, variant domain.Variant) (domain.Variant, error)
	DeleteVariant(ctx context.Context, variantID string) error

	ListBrands(ctx context.Context) ([]domain.Brand, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListColors(ctx context.Context) ([]domain.Color, error)
	ListSizes(ctx context.Context) ([]domain.Size, error)
}

// CartRepository owns cart header + items persistence per user.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	ReplaceItems(ctx context.Context, userID string, items []domain.CartItem) (domain.Cart, error)
}

// WishlistRepository stores saved products per user.
type WishlistRepository interface {
	Get(ctx context.Context, userID string) (domain.Wishlist, error)
	PutItem(ctx context.Context, userID string, item domain.WishlistItem) (domain.Wishlist, error)
	DeleteItem(ctx context.Context, userID string, productID string) (domain.Wishlist, error)
}

// CouponRepository maintains coupon definitions.
type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
	Upsert(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error)
	Delete(ctx context.Context, couponID string) error
	List(ctx context.Context, pager domain.Pagination) (domain.Page[domain.Coupon], error)
}

// AddressRepository stores shipping addresses per user.
type AddressRepository interface {
	List(ctx context.Context, userID string) ([]domain.UserAddress, error)
	Get(ctx context.Context, userID string, addressID string) (domain.UserAddress, error)
	Insert(ctx context.Context, addr domain.UserAddress) (domain.UserAddress, error)
	Delete(ctx context.Context, userID string, addressID string) error
	SetDefault(ctx context.Context, userID string, addressID string) (domain.UserAddress, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type OrderListFilter struct {
	UserID     string
	Status     []domain.OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

type OrderStatsQuery struct {
	DateRange domain.RangeQuery[time.Time]
}

type ProductFilter struct {
	CategoryID *string
	BrandID    *string
	PriceRange domain.RangeQuery[float64]
	OnlyActive bool
	Pagination domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
