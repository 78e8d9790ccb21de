package domain

import (
	"time"
)

// Pagination defines standard page/limit paging inputs for list operations.
type Pagination struct {
	Page  int
	Limit int
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// Page packages offset-paginated list results together with totals.
type Page[T any] struct {
	Items      []T
	Page       int
	Limit      int
	TotalItems int64
	TotalPages int
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusProcessing indicates the order is placed and awaiting fulfilment.
	OrderStatusProcessing OrderStatus = "Processing"
	// OrderStatusShipped indicates the order has been handed to a carrier.
	OrderStatusShipped OrderStatus = "Shipped"
	// OrderStatusDelivered indicates the order has reached the customer.
	OrderStatusDelivered OrderStatus = "Delivered"
	// OrderStatusCancelled indicates the order was cancelled before shipping.
	OrderStatusCancelled OrderStatus = "Cancelled"
	// OrderStatusReturned indicates a completed return after delivery.
	OrderStatusReturned OrderStatus = "Returned"
)

// PaymentMethod enumerates accepted payment instruments.
type PaymentMethod string

const (
	// PaymentMethodCOD is cash on delivery.
	PaymentMethodCOD PaymentMethod = "COD"
	// PaymentMethodCard is a gateway-processed card payment whose network
	// type is unknown; the gateway reports card captures under this method.
	PaymentMethodCard PaymentMethod = "Card"
	// PaymentMethodCreditCard is a gateway-processed credit card payment.
	PaymentMethodCreditCard PaymentMethod = "CreditCard"
	// PaymentMethodDebitCard is a gateway-processed debit card payment.
	PaymentMethodDebitCard PaymentMethod = "DebitCard"
	// PaymentMethodUPI is a gateway-processed UPI payment.
	PaymentMethodUPI PaymentMethod = "UPI"
	// PaymentMethodNetBanking is a gateway-processed net banking payment.
	PaymentMethodNetBanking PaymentMethod = "NetBanking"
)

// PaymentStatus enumerates payment lifecycle states for an order.
type PaymentStatus string

const (
	// PaymentStatusPending indicates payment has not completed yet.
	PaymentStatusPending PaymentStatus = "Pending"
	// PaymentStatusPaid indicates the gateway confirmed the payment.
	PaymentStatusPaid PaymentStatus = "Paid"
	// PaymentStatusFailed indicates the gateway rejected the payment.
	PaymentStatusFailed PaymentStatus = "Failed"
	// PaymentStatusRefunded indicates the captured amount was refunded.
	PaymentStatusRefunded PaymentStatus = "Refunded"
)

// ShippingMethod enumerates the supported delivery service levels.
type ShippingMethod string

const (
	// ShippingMethodStandard is the default ground service.
	ShippingMethodStandard ShippingMethod = "Standard"
	// ShippingMethodExpress is the premium expedited service.
	ShippingMethodExpress ShippingMethod = "Express"
)

// CouponType distinguishes percentage discounts from fixed amounts.
type CouponType string

const (
	// CouponTypePercentage discounts a percentage of the items subtotal.
	CouponTypePercentage CouponType = "Percentage"
	// CouponTypeFixed discounts a flat amount.
	CouponTypeFixed CouponType = "Fixed"
)

const (
	// RefundWindow is how long after delivery a refund may be processed.
	RefundWindow = 7 * 24 * time.Hour
	// ReturnWindow is how long after delivery a return may be requested.
	ReturnWindow = 10 * 24 * time.Hour
)

// Order is the aggregate root for a customer purchase. Amounts are rupees
// with paise precision; TotalAmount must reconcile with the component
// fields within AmountTolerance.
type Order struct {
	ID              string
	OrderID         string
	UserID          string
	Items           []OrderItem
	Pricing         OrderPricing
	AppliedCoupons  []AppliedCoupon
	ShippingAddress Address
	ShippingMethod  ShippingMethod
	Payment         PaymentDetails
	Status          OrderStatus
	History         []OrderHistoryEntry
	Refunds         []Refund
	Returns         []ReturnRequest
	Invoice         *Invoice
	Tracking        *TrackingInfo
	Notes           string
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CancelledAt     *time.Time
}

// OrderItem snapshots a purchased variant at order time. Status tracks the
// line through the order lifecycle; lines diverge from the order status when
// only part of the order is returned.
type OrderItem struct {
	ProductID string
	VariantID string
	Title     string
	Color     string
	Size      string
	ImageURL  string
	Quantity  int
	UnitPrice float64
	LineTotal float64
	Status    OrderStatus
}

// OrderPricing holds the rolled-up monetary breakdown for an order.
type OrderPricing struct {
	Subtotal    float64
	Tax         TaxAmount
	ShippingFee float64
	Discount    float64
	TotalAmount float64
}

// AmountTolerance is the maximum drift allowed between TotalAmount and the
// sum of its components before an order is rejected.
const AmountTolerance = 0.01

// Reconciles reports whether TotalAmount matches subtotal + tax + shipping
// - discount within AmountTolerance.
func (p OrderPricing) Reconciles() bool {
	expected := p.Subtotal + p.Tax.Amount + p.ShippingFee - p.Discount
	diff := p.TotalAmount - expected
	if diff < 0 {
		diff = -diff
	}
	return diff <= AmountTolerance
}

// TaxAmount stores the total tax along with its component lines.
type TaxAmount struct {
	Amount  float64
	Details []TaxLine
}

// TaxLine is a single tax component such as GST.
type TaxLine struct {
	Type   string
	Rate   float64
	Amount float64
}

// AppliedCoupon records a coupon snapshot and the amount it contributed.
type AppliedCoupon struct {
	Code   string
	Type   CouponType
	Value  float64
	Amount float64
}

// PaymentDetails stores the payment instrument state for an order.
type PaymentDetails struct {
	Method        PaymentMethod
	Status        PaymentStatus
	TransactionID *string
	PaidAt        *time.Time
}

// OrderHistoryEntry is one append-only audit record of a status transition.
type OrderHistoryEntry struct {
	Status OrderStatus
	Note   string
	Actor  string
	At     time.Time
}

// RefundStatus enumerates lifecycle states for a refund record.
type RefundStatus string

const (
	// RefundStatusProcessed indicates the refund was issued.
	RefundStatusProcessed RefundStatus = "Processed"
	// RefundStatusFailed indicates the gateway rejected the refund.
	RefundStatusFailed RefundStatus = "Failed"
)

// Refund records a refund issued against an order.
type Refund struct {
	ID          string
	Amount      float64
	Reason      string
	Status      RefundStatus
	ProcessedBy string
	CreatedAt   time.Time
}

// ReturnStatus enumerates lifecycle states for a return request.
type ReturnStatus string

const (
	// ReturnStatusRequested indicates the customer asked for a return.
	ReturnStatusRequested ReturnStatus = "Requested"
	// ReturnStatusApproved indicates an admin accepted the request.
	ReturnStatusApproved ReturnStatus = "Approved"
	// ReturnStatusRejected indicates an admin declined the request.
	ReturnStatusRejected ReturnStatus = "Rejected"
	// ReturnStatusCompleted indicates goods came back and stock was restored.
	ReturnStatusCompleted ReturnStatus = "Completed"
)

// ReturnRequest records a post-delivery return and its resolution. Items is
// the subset of order lines being sent back; stock is restored for exactly
// these lines when the return completes.
type ReturnRequest struct {
	ID          string
	Reason      string
	Status      ReturnStatus
	Items       []ReturnItem
	RequestedAt time.Time
	ResolvedAt  *time.Time
	ResolvedBy  *string
}

// ReturnItem identifies one order line included in a return.
type ReturnItem struct {
	VariantID string
	Quantity  int
}

// Invoice stores lazily generated invoice metadata for an order.
type Invoice struct {
	Number      string
	URL         string
	GeneratedAt time.Time
}

// TrackingInfo stores carrier tracking details once an order ships.
type TrackingInfo struct {
	Carrier           string
	TrackingNumber    string
	EstimatedDelivery *time.Time
}

// DeliveredAtTime returns the timestamp of the Delivered history entry,
// or false when the order was never delivered.
func (o Order) DeliveredAtTime() (time.Time, bool) {
	for i := len(o.History) - 1; i >= 0; i-- {
		if o.History[i].Status == OrderStatusDelivered {
			return o.History[i].At, true
		}
	}
	return time.Time{}, false
}

// IsRefundable reports whether a refund may still be processed at now.
func (o Order) IsRefundable(now time.Time) bool {
	deliveredAt, ok := o.DeliveredAtTime()
	if !ok {
		return false
	}
	return !now.After(deliveredAt.Add(RefundWindow))
}

// IsReturnable reports whether a return may still be requested at now.
func (o Order) IsReturnable(now time.Time) bool {
	deliveredAt, ok := o.DeliveredAtTime()
	if !ok {
		return false
	}
	return !now.After(deliveredAt.Add(ReturnWindow))
}

// OrderStats aggregates order metrics for admin reporting over a date range.
type OrderStats struct {
	TotalOrders       int64
	TotalRevenue      float64
	AverageOrderValue float64
	TotalRefunds      int64
	RefundedAmount    float64
	StatusCounts      map[OrderStatus]int64
	From              time.Time
	To                time.Time
}

// Address represents postal address structures shared by user and order layers.
type Address struct {
	Name       string
	Line1      string
	Line2      *string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      *string
}

// UserAddress is a saved address book entry owned by a user.
type UserAddress struct {
	ID        string
	UserID    string
	Address   Address
	IsDefault bool
	CreatedAt time.Time
}

// Product groups variants under shared descriptive copy and taxonomy refs.
type Product struct {
	ID          string
	Title       string
	Description string
	CategoryID  string
	BrandID     string
	VariantIDs  []string
	Details     map[string]string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Variant is a sellable SKU of a product. Stock on a variant is mutated
// only through inventory operations, never through catalog writes.
type Variant struct {
	ID        string
	ProductID string
	SKU       string
	ColorID   string
	SizeID    string
	Price     float64
	Stock     int
	Images    []string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Brand is a flat lookup entity referenced by products.
type Brand struct {
	ID      string
	Name    string
	LogoURL string
}

// Category is a flat lookup entity referenced by products.
type Category struct {
	ID       string
	Name     string
	ParentID *string
}

// Color is a flat lookup entity referenced by variants.
type Color struct {
	ID   string
	Name string
	Hex  string
}

// Size is a flat lookup entity referenced by variants.
type Size struct {
	ID   string
	Name string
}

// Coupon describes a discount code configured by admins.
type Coupon struct {
	ID            string
	Code          string
	Type          CouponType
	Value         float64
	MinOrderValue *float64
	ExpiresAt     *time.Time
	IsActive      bool
	CreatedAt     time.Time
}

// Cart aggregates the mutable shopping cart state for a user.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

// CartItem stores a single variant entry within a cart.
type CartItem struct {
	ID        string
	ProductID string
	VariantID string
	Quantity  int
	AddedAt   time.Time
}

// CartEstimate summarizes totals projected for the cart contents.
type CartEstimate struct {
	Subtotal    float64
	Tax         TaxAmount
	ShippingFee float64
	Discount    float64
	Total       float64
}

// Wishlist stores the set of products a user saved for later.
type Wishlist struct {
	UserID    string
	Items     []WishlistItem
	UpdatedAt time.Time
}

// WishlistItem ties a user to a product, optionally pinned to a variant.
type WishlistItem struct {
	ProductID string
	VariantID *string
	AddedAt   time.Time
}

// StockLine is a per-variant quantity used by inventory operations.
type StockLine struct {
	VariantID string
	Quantity  int
}

// StockEvent captures stock adjustments for downstream analytics/audit.
type StockEvent struct {
	Type       string
	OrderRef   string
	VariantID  string
	Delta      int
	Remaining  int
	OccurredAt time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
