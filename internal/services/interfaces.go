package services

import (
	"context"
	"time"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination     = domain.Pagination
	Order          = domain.Order
	OrderItem      = domain.OrderItem
	OrderStatus    = domain.OrderStatus
	OrderPricing   = domain.OrderPricing
	OrderHistory   = domain.OrderHistoryEntry
	AppliedCoupon  = domain.AppliedCoupon
	PaymentDetails = domain.PaymentDetails
	Refund         = domain.Refund
	Return         = domain.ReturnRequest
	ReturnItem     = domain.ReturnItem
	Invoice        = domain.Invoice
	TrackingInfo   = domain.TrackingInfo
	Address        = domain.Address
	UserAddress    = domain.UserAddress
	ShippingMethod = domain.ShippingMethod
	Coupon         = domain.Coupon
	Cart           = domain.Cart
	CartItem       = domain.CartItem
	Wishlist       = domain.Wishlist
	WishlistItem   = domain.WishlistItem
	Product        = domain.Product
	Variant        = domain.Variant
	Brand          = domain.Brand
	Category       = domain.Category
	Color          = domain.Color
	Size           = domain.Size
	StockLine      = domain.StockLine
	StockEvent     = domain.StockEvent
	PricingQuote   = domain.PricingQuote
	OrderStats     = domain.OrderStats
	SystemHealth   = domain.SystemHealthReport
	ReturnStatus   = domain.ReturnStatus
	RefundStatus   = domain.RefundStatus
	PaymentStatus  = domain.PaymentStatus
)

// PricingEngine computes order totals from line items, shipping method, and coupons.
// Quotes are pure computations; callers persist the resulting breakdown on orders.
type PricingEngine interface {
	Quote(ctx context.Context, cmd PricingCommand) (PricingQuote, error)
}

// OrderService encapsulates the order lifecycle: creation, status transitions,
// cancellation, refunds, returns, and the query/reporting surface.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	GetOrderByCode(ctx context.Context, orderCode string) (Order, error)
	ListUserOrders(ctx context.Context, filter UserOrderFilter) (domain.Page[Order], error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.Page[Order], error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	ProcessRefund(ctx context.Context, cmd RefundCommand) (Order, error)
	RequestReturn(ctx context.Context, cmd ReturnRequestCommand) (Order, error)
	ResolveReturn(ctx context.Context, cmd ReturnResolutionCommand) (Order, error)
	OrderHistory(ctx context.Context, orderID string) ([]OrderHistory, error)
	GenerateInvoice(ctx context.Context, cmd GenerateInvoiceCommand) (Order, error)
	Stats(ctx context.Context, query OrderStatsQuery) (OrderStats, error)
	ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (Order, error)
}

// InventoryService centralizes atomic stock decrements and restores.
type InventoryService interface {
	DecrementStock(ctx context.Context, cmd StockDecrementCommand) (StockMutation, error)
	RestoreStock(ctx context.Context, cmd StockRestoreCommand) (StockMutation, error)
	GetStock(ctx context.Context, variantID string) (int, error)
}

// CartService manages mutable cart state.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd UpsertCartItemCommand) (Cart, error)
	UpdateItem(ctx context.Context, cmd UpsertCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// WishlistService manages per-user wishlists.
type WishlistService interface {
	GetWishlist(ctx context.Context, userID string) (Wishlist, error)
	AddItem(ctx context.Context, cmd WishlistItemCommand) (Wishlist, error)
	RemoveItem(ctx context.Context, cmd WishlistItemCommand) (Wishlist, error)
}

// CatalogService manages products, variants, and taxonomies.
type CatalogService interface {
	ListProducts(ctx context.Context, filter ProductFilter) (domain.Page[Product], error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	GetVariant(ctx context.Context, variantID string) (Variant, error)
	GetVariants(ctx context.Context, variantIDs []string) ([]Variant, error)
	UpsertVariant(ctx context.Context, cmd UpsertVariantCommand) (Variant, error)
	ListBrands(ctx context.Context) ([]Brand, error)
	ListCategories(ctx context.Context) ([]Category, error)
	ListColors(ctx context.Context) ([]Color, error)
	ListSizes(ctx context.Context) ([]Size, error)
}

// CouponService exposes coupon lookup, validation, and admin lifecycle.
type CouponService interface {
	GetCoupon(ctx context.Context, code string) (Coupon, error)
	ValidateCoupons(ctx context.Context, cmd ValidateCouponsCommand) ([]Coupon, error)
	ListCoupons(ctx context.Context, pager Pagination) (domain.Page[Coupon], error)
	UpsertCoupon(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error)
	DeleteCoupon(ctx context.Context, code string) error
}

// AddressService manages the per-user address book.
type AddressService interface {
	ListAddresses(ctx context.Context, userID string) ([]UserAddress, error)
	GetAddress(ctx context.Context, userID, addressID string) (UserAddress, error)
	AddAddress(ctx context.Context, cmd AddAddressCommand) (UserAddress, error)
	DeleteAddress(ctx context.Context, userID, addressID string) error
	SetDefaultAddress(ctx context.Context, userID, addressID string) error
}

// InvoiceGenerator renders invoice documents and stores them, returning
// a reference the order can carry.
type InvoiceGenerator interface {
	Generate(ctx context.Context, order Order) (Invoice, error)
}

// OrderMailer delivers customer-facing transactional mail. Failures are
// logged by callers and never fail the triggering operation.
type OrderMailer interface {
	SendOrderConfirmation(ctx context.Context, order Order) error
	SendStatusUpdate(ctx context.Context, order Order, previous OrderStatus) error
	SendRefundNotice(ctx context.Context, order Order, refund Refund) error
}

// StockEventPublisher accepts inventory stock change notifications.
type StockEventPublisher interface {
	PublishStockEvent(ctx context.Context, event StockEvent) error
}

// PaymentProvider abstracts the payment gateway used for charges and refunds.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, cmd PaymentIntentCommand) (PaymentDetails, error)
	RefundPayment(ctx context.Context, cmd PaymentRefundCommand) (string, error)
}

// SystemService aggregates utility endpoints (health checks, counters).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealth, error)
	NextCounterValue(ctx context.Context, cmd CounterCommand) (int64, error)
}

// Command and DTO definitions ------------------------------------------------

// PricingCommand carries everything a quote needs. Items reference variants
// whose unit prices have already been resolved against the catalog.
type PricingCommand struct {
	Items          []PricingItem
	ShippingMethod ShippingMethod
	Coupons        []Coupon
}

type PricingItem struct {
	VariantID string
	ProductID string
	UnitPrice float64
	Quantity  int
}

type CreateOrderCommand struct {
	UserID         string
	Items          []OrderItemInput
	ShippingMethod ShippingMethod
	AddressID      string
	Address        *Address
	CouponCodes    []string
	PaymentMethod  string
	Notes          string
	Metadata       map[string]any
}

type OrderItemInput struct {
	VariantID string
	Quantity  int
}

type UserOrderFilter struct {
	UserID     string
	Status     []OrderStatus
	Pagination Pagination
}

type OrderListFilter = repositories.OrderListFilter

type OrderStatsQuery = repositories.OrderStatsQuery

type UpdateOrderStatusCommand struct {
	OrderID        string
	TargetStatus   OrderStatus
	ActorID        string
	Reason         string
	TrackingNumber *string
	Carrier        *string
	Metadata       map[string]any
}

type CancelOrderCommand struct {
	OrderID string
	ActorID string
	Reason  string
}

type RefundCommand struct {
	OrderID string
	ActorID string
	Amount  *float64
	Reason  string
}

type ReturnRequestCommand struct {
	OrderID string
	UserID  string
	Items   []OrderItemInput
	Reason  string
}

type ReturnResolutionCommand struct {
	OrderID  string
	ReturnID string
	ActorID  string
	Approve  bool
	Reason   string
}

type GenerateInvoiceCommand struct {
	OrderID string
	ActorID string
}

type StockDecrementCommand struct {
	OrderRef string
	Lines    []StockLine
}

type StockRestoreCommand struct {
	OrderRef string
	Lines    []StockLine
	Reason   string
}

// StockMutation reports remaining stock per variant after a decrement or restore.
type StockMutation struct {
	Remaining map[string]int
	Events    []StockEvent
}

type UpsertCartItemCommand struct {
	UserID    string
	VariantID string
	Quantity  int
}

type RemoveCartItemCommand struct {
	UserID    string
	VariantID string
}

type WishlistItemCommand struct {
	UserID    string
	ProductID string
	VariantID *string
}

type ProductFilter = repositories.ProductFilter

type UpsertProductCommand struct {
	Product Product
	ActorID string
}

type UpsertVariantCommand struct {
	Variant Variant
	ActorID string
}

type ValidateCouponsCommand struct {
	Codes    []string
	Subtotal float64
	UserID   string
}

type UpsertCouponCommand struct {
	Coupon  Coupon
	ActorID string
}

type AddAddressCommand struct {
	UserID    string
	Address   Address
	IsDefault bool
}

type PaymentIntentCommand struct {
	OrderCode string
	UserID    string
	Amount    float64
	Currency  string
	Method    string
	Metadata  map[string]string
}

// ConfirmPaymentCommand records a gateway-side payment outcome on an order.
type ConfirmPaymentCommand struct {
	OrderCode     string
	TransactionID string
	Status        domain.PaymentStatus
	OccurredAt    time.Time
}

type PaymentRefundCommand struct {
	TransactionID string
	Amount        float64
	Reason        string
}

type CounterCommand struct {
	CounterID string
	Step      int64
}
