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
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/vastrakart/api/internal/domain"
	pfirestore "github.com/vastrakart/api/internal/platform/firestore"
	"github.com/vastrakart/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists order aggregates as single Firestore documents.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{base: base, provider: provider}, nil
}

// Insert creates the order document, failing with a conflict when the ID exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, newOrderDocument(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByOrderID looks up an order by its human-facing order code.
func (r *OrderRepository) FindByOrderID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	code := strings.TrimSpace(orderID)
	if code == "" {
		return domain.Order{}, errors.New("order repository: order code is required")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", code).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.findByOrderId", status.Error(codes.NotFound, fmt.Sprintf("order %s not found", code)))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// Mutate re-reads the order inside a transaction, applies fn to the fresh
// state, and writes the result. Guards inside fn therefore validate against
// the latest persisted document; concurrent mutations serialise or abort.
func (r *OrderRepository) Mutate(ctx context.Context, id string, fn func(order *domain.Order) error) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if fn == nil {
		return domain.Order{}, errors.New("order repository: mutate fn is required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	var updated domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return pfirestore.WrapError("orders.mutate", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", id, err)
		}
		order := doc.toDomain(id)
		if err := fn(&order); err != nil {
			return err
		}
		if err := tx.Set(ref, newOrderDocument(order)); err != nil {
			return pfirestore.WrapError("orders.mutate", err)
		}
		updated = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

// ListByUser returns orders scoped to the filter's user, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	if strings.TrimSpace(filter.UserID) == "" {
		return domain.Page[domain.Order]{}, errors.New("order repository: user id is required")
	}
	return r.list(ctx, filter)
}

// List returns orders across all users for admin surfaces.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	return r.list(ctx, filter)
}

func (r *OrderRepository) list(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	if r == nil || r.provider == nil {
		return domain.Page[domain.Order]{}, errors.New("order repository not initialised")
	}

	page := filter.Pagination.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Pagination.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Page[domain.Order]{}, pfirestore.WrapError("orders.list", err)
	}

	query := client.Collection(ordersCollection).Query
	if uid := strings.TrimSpace(filter.UserID); uid != "" {
		query = query.Where("userId", "==", uid)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, s := range filter.Status {
			statuses = append(statuses, string(s))
		}
		query = query.Where("status", "in", statuses)
	}
	if filter.DateRange.From != nil {
		query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
	}
	if filter.DateRange.To != nil {
		query = query.Where("createdAt", "<=", filter.DateRange.To.UTC())
	}

	total, err := r.countOrders(ctx, query)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	query = query.OrderBy("createdAt", firestore.Desc).
		Offset((page - 1) * limit).
		Limit(limit)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var orders []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.Page[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Page[domain.Order]{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		orders = append(orders, doc.toDomain(snap.Ref.ID))
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return domain.Page[domain.Order]{
		Items:      orders,
		Page:       page,
		Limit:      limit,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}

func (r *OrderRepository) countOrders(ctx context.Context, query firestore.Query) (int64, error) {
	results, err := query.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, pfirestore.WrapError("orders.count", err)
	}
	value, ok := results["total"]
	if !ok {
		return 0, errors.New("order repository: count aggregation missing")
	}
	count, ok := value.(*firestorepb.Value)
	if !ok {
		return 0, errors.New("order repository: unexpected count aggregation type")
	}
	return count.GetIntegerValue(), nil
}

// Stats aggregates order metrics over the query's date range.
func (r *OrderRepository) Stats(ctx context.Context, query repositories.OrderStatsQuery) (domain.OrderStats, error) {
	if r == nil || r.provider == nil {
		return domain.OrderStats{}, errors.New("order repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.OrderStats{}, pfirestore.WrapError("orders.stats", err)
	}

	fq := client.Collection(ordersCollection).Query
	stats := domain.OrderStats{StatusCounts: make(map[domain.OrderStatus]int64)}
	if query.DateRange.From != nil {
		stats.From = query.DateRange.From.UTC()
		fq = fq.Where("createdAt", ">=", stats.From)
	}
	if query.DateRange.To != nil {
		stats.To = query.DateRange.To.UTC()
		fq = fq.Where("createdAt", "<=", stats.To)
	}

	iter := fq.Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.OrderStats{}, pfirestore.WrapError("orders.stats", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.OrderStats{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}

		stats.TotalOrders++
		stats.StatusCounts[domain.OrderStatus(doc.Status)]++
		if doc.Status != string(domain.OrderStatusCancelled) {
			stats.TotalRevenue += doc.Pricing.TotalAmount
		}
		for _, refund := range doc.Refunds {
			if refund.Status == string(domain.RefundStatusProcessed) {
				stats.TotalRefunds++
				stats.RefundedAmount += refund.Amount
			}
		}
	}
	if stats.TotalOrders > 0 {
		stats.AverageOrderValue = stats.TotalRevenue / float64(stats.TotalOrders)
	}
	return stats, nil
}

// Document structures --------------------------------------------------------

type orderDocument struct {
	OrderID         string                 `firestore:"orderId"`
	UserID          string                 `firestore:"userId"`
	Items           []orderItemDocument    `firestore:"items"`
	Pricing         orderPricingDocument   `firestore:"pricing"`
	AppliedCoupons  []appliedCouponDoc     `firestore:"appliedCoupons,omitempty"`
	ShippingAddress addressDocument        `firestore:"shippingAddress"`
	ShippingMethod  string                 `firestore:"shippingMethod"`
	Payment         paymentDetailsDocument `firestore:"payment"`
	Status          string                 `firestore:"status"`
	History         []historyEntryDocument `firestore:"orderHistory"`
	Refunds         []refundDocument       `firestore:"refunds,omitempty"`
	Returns         []returnDocument       `firestore:"returns,omitempty"`
	Invoice         *invoiceDocument       `firestore:"invoice,omitempty"`
	Tracking        *trackingDocument      `firestore:"tracking,omitempty"`
	Notes           string                 `firestore:"notes,omitempty"`
	Metadata        map[string]any         `firestore:"metadata,omitempty"`
	CreatedAt       time.Time              `firestore:"createdAt"`
	UpdatedAt       time.Time              `firestore:"updatedAt"`
	CancelledAt     *time.Time             `firestore:"cancelledAt,omitempty"`
}

type orderItemDocument struct {
	ProductID string  `firestore:"productId"`
	VariantID string  `firestore:"variantId"`
	Title     string  `firestore:"title"`
	Color     string  `firestore:"color,omitempty"`
	Size      string  `firestore:"size,omitempty"`
	ImageURL  string  `firestore:"imageUrl,omitempty"`
	Quantity  int     `firestore:"quantity"`
	UnitPrice float64 `firestore:"unitPrice"`
	LineTotal float64 `firestore:"lineTotal"`
	Status    string  `firestore:"status,omitempty"`
}

type orderPricingDocument struct {
	Subtotal    float64           `firestore:"subtotal"`
	Tax         taxAmountDocument `firestore:"tax"`
	ShippingFee float64           `firestore:"shippingFee"`
	Discount    float64           `firestore:"discount"`
	TotalAmount float64           `firestore:"totalAmount"`
}

type taxAmountDocument struct {
	Amount  float64           `firestore:"amount"`
	Details []taxLineDocument `firestore:"details,omitempty"`
}

type taxLineDocument struct {
	Type   string  `firestore:"type"`
	Rate   float64 `firestore:"rate"`
	Amount float64 `firestore:"amount"`
}

type appliedCouponDoc struct {
	Code   string  `firestore:"code"`
	Type   string  `firestore:"type"`
	Value  float64 `firestore:"value"`
	Amount float64 `firestore:"amount"`
}

type addressDocument struct {
	Name       string  `firestore:"name"`
	Line1      string  `firestore:"line1"`
	Line2      *string `firestore:"line2,omitempty"`
	City       string  `firestore:"city"`
	State      string  `firestore:"state"`
	PostalCode string  `firestore:"postalCode"`
	Country    string  `firestore:"country"`
	Phone      *string `firestore:"phone,omitempty"`
}

type paymentDetailsDocument struct {
	Method        string     `firestore:"method"`
	Status        string     `firestore:"status"`
	TransactionID *string    `firestore:"transactionId,omitempty"`
	PaidAt        *time.Time `firestore:"paidAt,omitempty"`
}

type historyEntryDocument struct {
	Status string    `firestore:"status"`
	Note   string    `firestore:"note,omitempty"`
	Actor  string    `firestore:"actor,omitempty"`
	At     time.Time `firestore:"at"`
}

type refundDocument struct {
	ID          string    `firestore:"id"`
	Amount      float64   `firestore:"amount"`
	Reason      string    `firestore:"reason,omitempty"`
	Status      string    `firestore:"status"`
	ProcessedBy string    `firestore:"processedBy,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

type returnDocument struct {
	ID          string               `firestore:"id"`
	Reason      string               `firestore:"reason,omitempty"`
	Status      string               `firestore:"status"`
	Items       []returnItemDocument `firestore:"items,omitempty"`
	RequestedAt time.Time            `firestore:"requestedAt"`
	ResolvedAt  *time.Time           `firestore:"resolvedAt,omitempty"`
	ResolvedBy  *string              `firestore:"resolvedBy,omitempty"`
}

type returnItemDocument struct {
	VariantID string `firestore:"variantId"`
	Quantity  int    `firestore:"quantity"`
}

type invoiceDocument struct {
	Number      string    `firestore:"number"`
	URL         string    `firestore:"url"`
	GeneratedAt time.Time `firestore:"generatedAt"`
}

type trackingDocument struct {
	Carrier           string     `firestore:"carrier"`
	TrackingNumber    string     `firestore:"trackingNumber"`
	EstimatedDelivery *time.Time `firestore:"estimatedDelivery,omitempty"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemDocument{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Title:     item.Title,
			Color:     item.Color,
			Size:      item.Size,
			ImageURL:  item.ImageURL,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
			Status:    string(item.Status),
		}
	}
	taxLines := make([]taxLineDocument, len(order.Pricing.Tax.Details))
	for i, line := range order.Pricing.Tax.Details {
		taxLines[i] = taxLineDocument{Type: line.Type, Rate: line.Rate, Amount: line.Amount}
	}
	coupons := make([]appliedCouponDoc, len(order.AppliedCoupons))
	for i, c := range order.AppliedCoupons {
		coupons[i] = appliedCouponDoc{Code: c.Code, Type: string(c.Type), Value: c.Value, Amount: c.Amount}
	}
	history := make([]historyEntryDocument, len(order.History))
	for i, h := range order.History {
		history[i] = historyEntryDocument{Status: string(h.Status), Note: h.Note, Actor: h.Actor, At: h.At.UTC()}
	}
	refunds := make([]refundDocument, len(order.Refunds))
	for i, ref := range order.Refunds {
		refunds[i] = refundDocument{
			ID:          ref.ID,
			Amount:      ref.Amount,
			Reason:      ref.Reason,
			Status:      string(ref.Status),
			ProcessedBy: ref.ProcessedBy,
			CreatedAt:   ref.CreatedAt.UTC(),
		}
	}
	returns := make([]returnDocument, len(order.Returns))
	for i, ret := range order.Returns {
		retItems := make([]returnItemDocument, len(ret.Items))
		for j, item := range ret.Items {
			retItems[j] = returnItemDocument{VariantID: item.VariantID, Quantity: item.Quantity}
		}
		returns[i] = returnDocument{
			ID:          ret.ID,
			Reason:      ret.Reason,
			Status:      string(ret.Status),
			Items:       retItems,
			RequestedAt: ret.RequestedAt.UTC(),
			ResolvedAt:  ret.ResolvedAt,
			ResolvedBy:  ret.ResolvedBy,
		}
	}

	doc := orderDocument{
		OrderID:         strings.TrimSpace(order.OrderID),
		UserID:          strings.TrimSpace(order.UserID),
		Items:           items,
		Pricing: orderPricingDocument{
			Subtotal:    order.Pricing.Subtotal,
			Tax:         taxAmountDocument{Amount: order.Pricing.Tax.Amount, Details: taxLines},
			ShippingFee: order.Pricing.ShippingFee,
			Discount:    order.Pricing.Discount,
			TotalAmount: order.Pricing.TotalAmount,
		},
		AppliedCoupons:  coupons,
		ShippingAddress: newAddressDocument(order.ShippingAddress),
		ShippingMethod:  string(order.ShippingMethod),
		Payment: paymentDetailsDocument{
			Method:        string(order.Payment.Method),
			Status:        string(order.Payment.Status),
			TransactionID: order.Payment.TransactionID,
			PaidAt:        order.Payment.PaidAt,
		},
		Status:      string(order.Status),
		History:     history,
		Refunds:     refunds,
		Returns:     returns,
		Notes:       strings.TrimSpace(order.Notes),
		Metadata:    cloneAnyMap(order.Metadata),
		CreatedAt:   order.CreatedAt.UTC(),
		UpdatedAt:   order.UpdatedAt.UTC(),
		CancelledAt: order.CancelledAt,
	}
	if order.Invoice != nil {
		doc.Invoice = &invoiceDocument{
			Number:      order.Invoice.Number,
			URL:         order.Invoice.URL,
			GeneratedAt: order.Invoice.GeneratedAt.UTC(),
		}
	}
	if order.Tracking != nil {
		doc.Tracking = &trackingDocument{
			Carrier:           order.Tracking.Carrier,
			TrackingNumber:    order.Tracking.TrackingNumber,
			EstimatedDelivery: order.Tracking.EstimatedDelivery,
		}
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.OrderItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Title:     item.Title,
			Color:     item.Color,
			Size:      item.Size,
			ImageURL:  item.ImageURL,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
			Status:    domain.OrderStatus(item.Status),
		}
	}
	taxLines := make([]domain.TaxLine, len(d.Pricing.Tax.Details))
	for i, line := range d.Pricing.Tax.Details {
		taxLines[i] = domain.TaxLine{Type: line.Type, Rate: line.Rate, Amount: line.Amount}
	}
	coupons := make([]domain.AppliedCoupon, len(d.AppliedCoupons))
	for i, c := range d.AppliedCoupons {
		coupons[i] = domain.AppliedCoupon{Code: c.Code, Type: domain.CouponType(c.Type), Value: c.Value, Amount: c.Amount}
	}
	history := make([]domain.OrderHistoryEntry, len(d.History))
	for i, h := range d.History {
		history[i] = domain.OrderHistoryEntry{Status: domain.OrderStatus(h.Status), Note: h.Note, Actor: h.Actor, At: h.At}
	}
	refunds := make([]domain.Refund, len(d.Refunds))
	for i, ref := range d.Refunds {
		refunds[i] = domain.Refund{
			ID:          ref.ID,
			Amount:      ref.Amount,
			Reason:      ref.Reason,
			Status:      domain.RefundStatus(ref.Status),
			ProcessedBy: ref.ProcessedBy,
			CreatedAt:   ref.CreatedAt,
		}
	}
	returns := make([]domain.ReturnRequest, len(d.Returns))
	for i, ret := range d.Returns {
		retItems := make([]domain.ReturnItem, len(ret.Items))
		for j, item := range ret.Items {
			retItems[j] = domain.ReturnItem{VariantID: item.VariantID, Quantity: item.Quantity}
		}
		returns[i] = domain.ReturnRequest{
			ID:          ret.ID,
			Reason:      ret.Reason,
			Status:      domain.ReturnStatus(ret.Status),
			Items:       retItems,
			RequestedAt: ret.RequestedAt,
			ResolvedAt:  ret.ResolvedAt,
			ResolvedBy:  ret.ResolvedBy,
		}
	}

	order := domain.Order{
		ID:              id,
		OrderID:         d.OrderID,
		UserID:          d.UserID,
		Items:           items,
		Pricing: domain.OrderPricing{
			Subtotal:    d.Pricing.Subtotal,
			Tax:         domain.TaxAmount{Amount: d.Pricing.Tax.Amount, Details: taxLines},
			ShippingFee: d.Pricing.ShippingFee,
			Discount:    d.Pricing.Discount,
			TotalAmount: d.Pricing.TotalAmount,
		},
		AppliedCoupons:  coupons,
		ShippingAddress: d.ShippingAddress.toDomain(),
		ShippingMethod:  domain.ShippingMethod(d.ShippingMethod),
		Payment: domain.PaymentDetails{
			Method:        domain.PaymentMethod(d.Payment.Method),
			Status:        domain.PaymentStatus(d.Payment.Status),
			TransactionID: d.Payment.TransactionID,
			PaidAt:        d.Payment.PaidAt,
		},
		Status:      domain.OrderStatus(d.Status),
		History:     history,
		Refunds:     refunds,
		Returns:     returns,
		Notes:       d.Notes,
		Metadata:    cloneAnyMap(d.Metadata),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		CancelledAt: d.CancelledAt,
	}
	if d.Invoice != nil {
		order.Invoice = &domain.Invoice{Number: d.Invoice.Number, URL: d.Invoice.URL, GeneratedAt: d.Invoice.GeneratedAt}
	}
	if d.Tracking != nil {
		order.Tracking = &domain.TrackingInfo{
			Carrier:           d.Tracking.Carrier,
			TrackingNumber:    d.Tracking.TrackingNumber,
			EstimatedDelivery: d.Tracking.EstimatedDelivery,
		}
	}
	return order
}

func newAddressDocument(addr domain.Address) addressDocument {
	return addressDocument{
		Name:       strings.TrimSpace(addr.Name),
		Line1:      strings.TrimSpace(addr.Line1),
		Line2:      addr.Line2,
		City:       strings.TrimSpace(addr.City),
		State:      strings.TrimSpace(addr.State),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.TrimSpace(addr.Country),
		Phone:      addr.Phone,
	}
}

func cloneAnyMap(values map[string]any) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

func (d addressDocument) toDomain() domain.Address {
	return domain.Address{
		Name:       d.Name,
		Line1:      d.Line1,
		Line2:      d.Line2,
		City:       d.City,
		State:      d.State,
		PostalCode: d.PostalCode,
		Country:    d.Country,
		Phone:      d.Phone,
	}
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
