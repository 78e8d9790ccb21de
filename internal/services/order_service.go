package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/repositories"
)

const (
	orderEventCreated          = "order.created"
	orderEventStatusChanged    = "order.status.changed"
	orderEventCancelled        = "order.cancelled"
	orderEventRefundProcessed  = "order.refund.processed"
	orderEventReturnRequested  = "order.return.requested"
	orderEventReturnResolved   = "order.return.resolved"
	orderEventInvoiceGenerated = "order.invoice.generated"
	orderEventPaymentUpdated   = "order.payment.updated"

	orderIDPrefix  = "ord_"
	refundIDPrefix = "rf_"
	returnIDPrefix = "rt_"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates concurrent mutations or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderNotRefundable indicates the refund window has closed or never opened.
	ErrOrderNotRefundable = errors.New("order: not refundable")
	// ErrOrderNotReturnable indicates the return window has closed or never opened.
	ErrOrderNotReturnable = errors.New("order: not returnable")
	// ErrOrderReturnNotFound indicates the referenced return request does not exist.
	ErrOrderReturnNotFound = errors.New("order: return request not found")
	// ErrOrderCouponNotFound indicates a supplied coupon code does not exist.
	ErrOrderCouponNotFound = errors.New("order: coupon not found")

	errOrderAddressRepositoryUnavailable = errors.New("order: address repository not configured")
	errOrderInvoiceGeneratorUnavailable  = errors.New("order: invoice generator not configured")
)

var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered},
	domain.OrderStatusDelivered:  {domain.OrderStatusReturned},
}

var cancellableStatuses = []domain.OrderStatus{
	domain.OrderStatusProcessing,
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderCode      string
	UserID         string
	PreviousStatus domain.OrderStatus
	CurrentStatus  domain.OrderStatus
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Catalog     repositories.CatalogRepository
	Coupons     repositories.CouponRepository
	Addresses   repositories.AddressRepository
	Carts       repositories.CartRepository
	Inventory   InventoryService
	Pricing     PricingEngine
	Payments    PaymentProvider
	Invoices    InvoiceGenerator
	Mailer      OrderMailer
	Events      OrderEventPublisher
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	catalog    repositories.CatalogRepository
	coupons    repositories.CouponRepository
	addresses  repositories.AddressRepository
	carts      repositories.CartRepository
	inventory  InventoryService
	pricing    PricingEngine
	payments   PaymentProvider
	invoices   InvoiceGenerator
	mailer     OrderMailer
	events     OrderEventPublisher
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory service is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("order service: pricing engine is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		catalog:    deps.Catalog,
		coupons:    deps.Coupons,
		addresses:  deps.Addresses,
		carts:      deps.Carts,
		inventory:  deps.Inventory,
		pricing:    deps.Pricing,
		payments:   deps.Payments,
		invoices:   deps.Invoices,
		mailer:     deps.Mailer,
		events:     deps.Events,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}

	method := cmd.ShippingMethod
	if method == "" {
		method = domain.ShippingMethodStandard
	}
	if method != domain.ShippingMethodStandard && method != domain.ShippingMethodExpress {
		return Order{}, fmt.Errorf("%w: unknown shipping method %q", ErrOrderInvalidInput, cmd.ShippingMethod)
	}

	payMethod, err := parsePaymentMethod(cmd.PaymentMethod)
	if err != nil {
		return Order{}, err
	}

	address, err := s.resolveAddress(ctx, userID, cmd)
	if err != nil {
		return Order{}, err
	}

	items, pricingItems, lines, err := s.buildOrderItems(ctx, cmd.Items)
	if err != nil {
		return Order{}, err
	}

	coupons, err := s.resolveCoupons(ctx, cmd.CouponCodes)
	if err != nil {
		return Order{}, err
	}

	quote, err := s.pricing.Quote(ctx, PricingCommand{
		Items:          pricingItems,
		ShippingMethod: method,
		Coupons:        coupons,
	})
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	order := Order{
		ID:      orderIDPrefix + s.newID(),
		OrderID: s.generateOrderCode(now),
		UserID:  userID,
		Items:   items,
		Pricing: domain.OrderPricing{
			Subtotal:    quote.Subtotal,
			Tax:         quote.Tax,
			ShippingFee: quote.ShippingFee,
			Discount:    quote.Discount,
			TotalAmount: quote.Total,
		},
		AppliedCoupons:  appliedCouponsFromQuote(quote),
		ShippingAddress: address,
		ShippingMethod:  method,
		Payment: domain.PaymentDetails{
			Method: payMethod,
			Status: domain.PaymentStatusPending,
		},
		Status: domain.OrderStatusProcessing,
		History: []domain.OrderHistoryEntry{
			{Status: domain.OrderStatusProcessing, Note: "order placed", Actor: userID, At: now},
		},
		Notes:     strings.TrimSpace(cmd.Notes),
		Metadata:  cloneMap(cmd.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if !order.Pricing.Reconciles() {
		return Order{}, fmt.Errorf("%w: total does not reconcile with components", ErrOrderInvalidInput)
	}

	if _, err := s.inventory.DecrementStock(ctx, StockDecrementCommand{
		OrderRef: order.OrderID,
		Lines:    lines,
	}); err != nil {
		return Order{}, err
	}

	if s.payments != nil && payMethod != domain.PaymentMethodCOD {
		payment, payErr := s.payments.CreateIntent(ctx, PaymentIntentCommand{
			OrderCode: order.OrderID,
			UserID:    userID,
			Amount:    order.Pricing.TotalAmount,
			Currency:  "INR",
			Method:    string(payMethod),
			Metadata:  map[string]string{"orderId": order.OrderID},
		})
		if payErr != nil {
			s.compensateStock(ctx, order.OrderID, lines, "payment intent failed")
			return Order{}, payErr
		}
		payment.Method = payMethod
		order.Payment = payment
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		s.compensateStock(ctx, order.OrderID, lines, "order insert failed")
		return Order{}, s.mapRepositoryError(err)
	}

	if s.carts != nil {
		if _, clearErr := s.carts.ReplaceItems(ctx, userID, nil); clearErr != nil {
			s.logger(ctx, "order_cart_clear_failed", map[string]any{
				"orderId": order.OrderID,
				"userId":  userID,
				"error":   clearErr.Error(),
			})
		}
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderCode:     order.OrderID,
		UserID:        order.UserID,
		CurrentStatus: order.Status,
		ActorID:       userID,
		OccurredAt:    now,
		Metadata:      cloneMap(order.Metadata),
	})
	s.sendMail(ctx, order.OrderID, "confirmation", func() error {
		return s.mailer.SendOrderConfirmation(ctx, order)
	})

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) GetOrderByCode(ctx context.Context, orderCode string) (Order, error) {
	orderCode = strings.TrimSpace(orderCode)
	if orderCode == "" {
		return Order{}, fmt.Errorf("%w: order code is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByOrderID(ctx, orderCode)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListUserOrders(ctx context.Context, filter UserOrderFilter) (domain.Page[Order], error) {
	userID := strings.TrimSpace(filter.UserID)
	if userID == "" {
		return domain.Page[Order]{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	page, err := s.orders.ListByUser(ctx, repositories.OrderListFilter{
		UserID:     userID,
		Status:     filter.Status,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.Page[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.Page[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.Page[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := cmd.TargetStatus
	if target == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}
	if target == domain.OrderStatusCancelled {
		return s.Cancel(ctx, CancelOrderCommand{OrderID: orderID, ActorID: cmd.ActorID, Reason: cmd.Reason})
	}

	actor := strings.TrimSpace(cmd.ActorID)
	now := s.now()
	var prevStatus domain.OrderStatus
	var restoreLines []StockLine

	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.Order) error {
		prevStatus = order.Status
		if !canTransition(order.Status, target) {
			return fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, order.Status, target)
		}

		if target == domain.OrderStatusReturned {
			approved := findReturnByStatus(order.Returns, domain.ReturnStatusApproved)
			if approved == nil {
				return fmt.Errorf("%w: no approved return to complete", ErrOrderInvalidState)
			}
			approved.Status = domain.ReturnStatusCompleted
			approved.ResolvedAt = &now
			if actor != "" {
				approved.ResolvedBy = valuePtr(actor)
			}
			restoreLines = stockLinesFromReturn(*approved, order.Items)
			markReturnedItems(order.Items, *approved)
		}

		if target == domain.OrderStatusShipped {
			tracking := order.Tracking
			if tracking == nil {
				tracking = &domain.TrackingInfo{}
			}
			if cmd.TrackingNumber != nil {
				tracking.TrackingNumber = strings.TrimSpace(*cmd.TrackingNumber)
			}
			if cmd.Carrier != nil {
				tracking.Carrier = strings.TrimSpace(*cmd.Carrier)
			}
			order.Tracking = tracking
		}

		if target == domain.OrderStatusShipped || target == domain.OrderStatusDelivered {
			markItemStatuses(order.Items, target)
		}

		order.Status = target
		order.UpdatedAt = now
		order.History = append(order.History, domain.OrderHistoryEntry{
			Status: target,
			Note:   strings.TrimSpace(cmd.Reason),
			Actor:  actor,
			At:     now,
		})
		return nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if len(restoreLines) > 0 {
		if _, restoreErr := s.inventory.RestoreStock(ctx, StockRestoreCommand{
			OrderRef: order.OrderID,
			Lines:    restoreLines,
			Reason:   "return completed",
		}); restoreErr != nil {
			s.logger(ctx, "order_return_restock_failed", map[string]any{
				"orderId": order.OrderID,
				"error":   restoreErr.Error(),
			})
		}
	}

	metadata := ensureMap(cmd.Metadata)
	if reason := strings.TrimSpace(cmd.Reason); reason != "" {
		metadata["reason"] = reason
	}
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderCode:      order.OrderID,
		UserID:         order.UserID,
		PreviousStatus: prevStatus,
		CurrentStatus:  order.Status,
		ActorID:        actor,
		OccurredAt:     now,
		Metadata:       metadata,
	})
	s.sendMail(ctx, order.OrderID, "status_update", func() error {
		return s.mailer.SendStatusUpdate(ctx, order, prevStatus)
	})

	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	actor := strings.TrimSpace(cmd.ActorID)
	reason := strings.TrimSpace(cmd.Reason)
	now := s.now()
	var prevStatus domain.OrderStatus
	var wasPaid bool

	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.Order) error {
		prevStatus = order.Status
		if !slices.Contains(cancellableStatuses, order.Status) {
			return fmt.Errorf("%w: order status %q cannot be cancelled", ErrOrderInvalidState, order.Status)
		}

		wasPaid = order.Payment.Status == domain.PaymentStatusPaid
		if wasPaid {
			order.Refunds = append(order.Refunds, domain.Refund{
				ID:          refundIDPrefix + s.newID(),
				Amount:      order.Pricing.TotalAmount,
				Reason:      "order cancelled",
				Status:      domain.RefundStatusProcessed,
				ProcessedBy: actor,
				CreatedAt:   now,
			})
			order.Payment.Status = domain.PaymentStatusRefunded
		}

		order.Status = domain.OrderStatusCancelled
		markItemStatuses(order.Items, domain.OrderStatusCancelled)
		order.CancelledAt = &now
		order.UpdatedAt = now
		note := "order cancelled"
		if reason != "" {
			note = reason
		}
		order.History = append(order.History, domain.OrderHistoryEntry{
			Status: domain.OrderStatusCancelled,
			Note:   note,
			Actor:  actor,
			At:     now,
		})
		return nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if _, restoreErr := s.inventory.RestoreStock(ctx, StockRestoreCommand{
		OrderRef: order.OrderID,
		Lines:    stockLinesFromItems(order.Items),
		Reason:   "order cancelled",
	}); restoreErr != nil {
		s.logger(ctx, "order_cancel_restock_failed", map[string]any{
			"orderId": order.OrderID,
			"error":   restoreErr.Error(),
		})
	}

	metadata := map[string]any{}
	if reason != "" {
		metadata["reason"] = reason
	}
	if wasPaid {
		metadata["refunded"] = true
	}
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventCancelled,
		OrderID:        order.ID,
		OrderCode:      order.OrderID,
		UserID:         order.UserID,
		PreviousStatus: prevStatus,
		CurrentStatus:  order.Status,
		ActorID:        actor,
		OccurredAt:     now,
		Metadata:       metadata,
	})
	s.sendMail(ctx, order.OrderID, "status_update", func() error {
		return s.mailer.SendStatusUpdate(ctx, order, prevStatus)
	})

	return order, nil
}

func (s *orderService) ProcessRefund(ctx context.Context, cmd RefundCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	current, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	now := s.now()
	if !current.IsRefundable(now) {
		return Order{}, fmt.Errorf("%w: refunds are allowed within %s of delivery", ErrOrderNotRefundable, formatDays(domain.RefundWindow))
	}

	remaining := current.Pricing.TotalAmount - refundedTotal(current.Refunds)
	amount := remaining
	if cmd.Amount != nil {
		amount = *cmd.Amount
	}
	if amount <= 0 || amount > remaining+domain.AmountTolerance {
		return Order{}, fmt.Errorf("%w: refund amount %.2f exceeds refundable balance %.2f", ErrOrderInvalidInput, amount, remaining)
	}

	// The gateway call happens before the order mutation so a stored refund
	// record always corresponds to money actually moved.
	if s.payments != nil && current.Payment.TransactionID != nil {
		if _, err := s.payments.RefundPayment(ctx, PaymentRefundCommand{
			TransactionID: *current.Payment.TransactionID,
			Amount:        amount,
			Reason:        strings.TrimSpace(cmd.Reason),
		}); err != nil {
			return Order{}, err
		}
	}

	actor := strings.TrimSpace(cmd.ActorID)
	refund := domain.Refund{
		ID:          refundIDPrefix + s.newID(),
		Amount:      amount,
		Reason:      strings.TrimSpace(cmd.Reason),
		Status:      domain.RefundStatusProcessed,
		ProcessedBy: actor,
		CreatedAt:   now,
	}

	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.Order) error {
		if !order.IsRefundable(now) {
			return fmt.Errorf("%w: refund window closed", ErrOrderNotRefundable)
		}
		order.Refunds = append(order.Refunds, refund)
		if refundedTotal(order.Refunds) >= order.Pricing.TotalAmount-domain.AmountTolerance {
			order.Payment.Status = domain.PaymentStatusRefunded
		}
		order.UpdatedAt = now
		order.History = append(order.History, domain.OrderHistoryEntry{
			Status: order.Status,
			Note:   fmt.Sprintf("refund of %.2f processed", amount),
			Actor:  actor,
			At:     now,
		})
		return nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventRefundProcessed,
		OrderID:       order.ID,
		OrderCode:     order.OrderID,
		UserID:        order.UserID,
		CurrentStatus: order.Status,
		ActorID:       actor,
		OccurredAt:    now,
		Metadata:      map[string]any{"amount": amount, "refundId": refund.ID},
	})
	s.sendMail(ctx, order.OrderID, "refund_notice", func() error {
		return s.mailer.SendRefundNotice(ctx, order, refund)
	})

	return order, nil
}

func (s *orderService) RequestReturn(ctx context.Context, cmd ReturnRequestCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return Order{}, fmt.Errorf("%w: return reason is required", ErrOrderInvalidInput)
	}

	userID := strings.TrimSpace(cmd.UserID)
	now := s.now()

	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.Order) error {
		if userID != "" && order.UserID != userID {
			return fmt.Errorf("%w: order does not belong to user", ErrOrderNotFound)
		}
		if order.Status != domain.OrderStatusDelivered {
			return fmt.Errorf("%w: only delivered orders can be returned", ErrOrderNotReturnable)
		}
		if !order.IsReturnable(now) {
			return fmt.Errorf("%w: returns are allowed within %s of delivery", ErrOrderNotReturnable, formatDays(domain.ReturnWindow))
		}
		if pending := findReturnByStatus(order.Returns, domain.ReturnStatusRequested); pending != nil {
			return fmt.Errorf("%w: a return request is already pending", ErrOrderConflict)
		}

		returnItems, itemsErr := normalizeReturnItems(order, cmd.Items)
		if itemsErr != nil {
			return itemsErr
		}

		order.Returns = append(order.Returns, domain.ReturnRequest{
			ID:          returnIDPrefix + s.newID(),
			Reason:      reason,
			Status:      domain.ReturnStatusRequested,
			Items:       returnItems,
			RequestedAt: now,
		})
		order.UpdatedAt = now
		order.History = append(order.History, domain.OrderHistoryEntry{
			Status: order.Status,
			Note:   "return requested: " + reason,
			Actor:  userID,
			At:     now,
		})
		return nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventReturnRequested,
		OrderID:       order.ID,
		OrderCode:     order.OrderID,
		UserID:        order.UserID,
		CurrentStatus: order.Status,
		ActorID:       userID,
		OccurredAt:    now,
		Metadata:      map[string]any{"reason": reason},
	})

	return order, nil
}

func (s *orderService) ResolveReturn(ctx context.Context, cmd ReturnResolutionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	returnID := strings.TrimSpace(cmd.ReturnID)
	if returnID == "" {
		return Order{}, fmt.Errorf("%w: return id is required", ErrOrderInvalidInput)
	}

	actor := strings.TrimSpace(cmd.ActorID)
	now := s.now()
	resolution := domain.ReturnStatusRejected
	if cmd.Approve {
		resolution = domain.ReturnStatusApproved
	}

	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.Order) error {
		var request *domain.ReturnRequest
		for i := range order.Returns {
			if order.Returns[i].ID == returnID {
				request = &order.Returns[i]
				break
			}
		}
		if request == nil {
			return fmt.Errorf("%w: %s", ErrOrderReturnNotFound, returnID)
		}
		if request.Status != domain.ReturnStatusRequested {
			return fmt.Errorf("%w: return %s already resolved", ErrOrderConflict, returnID)
		}

		request.Status = resolution
		request.ResolvedAt = &now
		if actor != "" {
			request.ResolvedBy = valuePtr(actor)
		}

		note := fmt.Sprintf("return %s", strings.ToLower(string(resolution)))
		if reason := strings.TrimSpace(cmd.Reason); reason != "" {
			note += ": " + reason
		}
		order.UpdatedAt = now
		order.History = append(order.History, domain.OrderHistoryEntry{
			Status: order.Status,
			Note:   note,
			Actor:  actor,
			At:     now,
		})
		return nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventReturnResolved,
		OrderID:       order.ID,
		OrderCode:     order.OrderID,
		UserID:        order.UserID,
		CurrentStatus: order.Status,
		ActorID:       actor,
		OccurredAt:    now,
		Metadata:      map[string]any{"returnId": returnID, "resolution": string(resolution)},
	})

	return order, nil
}

func (s *orderService) OrderHistory(ctx context.Context, orderID string) ([]OrderHistory, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(order.History), nil
}

func (s *orderService) GenerateInvoice(ctx context.Context, cmd GenerateInvoiceCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if s.invoices == nil {
		return Order{}, errOrderInvoiceGeneratorUnavailable
	}

	current, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if current.Invoice != nil {
		return current, nil
	}
	if current.Status == domain.OrderStatusCancelled {
		return Order{}, fmt.Errorf("%w: cancelled orders have no invoice", ErrOrderInvalidState)
	}

	invoice, err := s.invoices.Generate(ctx, current)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	actor := strings.TrimSpace(cmd.ActorID)
	order, err := s.orders.Mutate(ctx, orderID, func(order *domain.Order) error {
		if order.Invoice != nil {
			return nil
		}
		order.Invoice = &invoice
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventInvoiceGenerated,
		OrderID:       order.ID,
		OrderCode:     order.OrderID,
		UserID:        order.UserID,
		CurrentStatus: order.Status,
		ActorID:       actor,
		OccurredAt:    now,
		Metadata:      map[string]any{"invoiceNumber": invoice.Number},
	})

	return order, nil
}

func (s *orderService) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (Order, error) {
	orderCode := strings.TrimSpace(cmd.OrderCode)
	if orderCode == "" {
		return Order{}, fmt.Errorf("%w: order code is required", ErrOrderInvalidInput)
	}
	switch cmd.Status {
	case domain.PaymentStatusPaid, domain.PaymentStatusFailed:
	default:
		return Order{}, fmt.Errorf("%w: unsupported payment status %q", ErrOrderInvalidInput, cmd.Status)
	}

	current, err := s.orders.FindByOrderID(ctx, orderCode)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	occurred := cmd.OccurredAt.UTC()
	if cmd.OccurredAt.IsZero() {
		occurred = s.now()
	}
	transactionID := strings.TrimSpace(cmd.TransactionID)

	order, err := s.orders.Mutate(ctx, current.ID, func(order *domain.Order) error {
		// Gateway retries deliver the same outcome more than once; the first
		// write wins and later copies are a no-op.
		if order.Payment.Status == cmd.Status {
			return nil
		}
		if order.Payment.Status == domain.PaymentStatusRefunded {
			return fmt.Errorf("%w: payment already refunded", ErrOrderInvalidState)
		}
		order.Payment.Status = cmd.Status
		if transactionID != "" {
			order.Payment.TransactionID = valuePtr(transactionID)
		}
		if cmd.Status == domain.PaymentStatusPaid {
			order.Payment.PaidAt = valuePtr(occurred)
		}
		order.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventPaymentUpdated,
		OrderID:       order.ID,
		OrderCode:     order.OrderID,
		UserID:        order.UserID,
		CurrentStatus: order.Status,
		OccurredAt:    occurred,
		Metadata: map[string]any{
			"paymentStatus": string(cmd.Status),
		},
	})

	return order, nil
}

func (s *orderService) Stats(ctx context.Context, query OrderStatsQuery) (OrderStats, error) {
	stats, err := s.orders.Stats(ctx, query)
	if err != nil {
		return OrderStats{}, s.mapRepositoryError(err)
	}
	return stats, nil
}

// buildOrderItems resolves variants and product copy into immutable order
// line snapshots, plus the pricing inputs and stock lines derived from them.
func (s *orderService) buildOrderItems(ctx context.Context, inputs []OrderItemInput) ([]OrderItem, []PricingItem, []StockLine, error) {
	variantIDs := make([]string, 0, len(inputs))
	for _, input := range inputs {
		variantID := strings.TrimSpace(input.VariantID)
		if variantID == "" {
			return nil, nil, nil, fmt.Errorf("%w: item variant id is required", ErrOrderInvalidInput)
		}
		if input.Quantity <= 0 {
			return nil, nil, nil, fmt.Errorf("%w: quantity for %s must be positive", ErrOrderInvalidInput, variantID)
		}
		variantIDs = append(variantIDs, variantID)
	}

	variants, err := s.catalog.GetVariants(ctx, variantIDs)
	if err != nil {
		return nil, nil, nil, s.mapRepositoryError(err)
	}

	products := make(map[string]domain.Product)
	items := make([]OrderItem, 0, len(inputs))
	pricingItems := make([]PricingItem, 0, len(inputs))
	lines := make([]StockLine, 0, len(inputs))

	for _, input := range inputs {
		variantID := strings.TrimSpace(input.VariantID)
		variant, ok := variants[variantID]
		if !ok {
			return nil, nil, nil, fmt.Errorf("%w: variant %s not found", ErrOrderInvalidInput, variantID)
		}
		if !variant.IsActive {
			return nil, nil, nil, fmt.Errorf("%w: variant %s is not available", ErrOrderInvalidInput, variantID)
		}

		product, ok := products[variant.ProductID]
		if !ok {
			product, err = s.catalog.GetProduct(ctx, variant.ProductID)
			if err != nil {
				return nil, nil, nil, s.mapRepositoryError(err)
			}
			products[variant.ProductID] = product
		}

		imageURL := ""
		if len(variant.Images) > 0 {
			imageURL = variant.Images[0]
		}
		lineTotal := variant.Price * float64(input.Quantity)

		items = append(items, domain.OrderItem{
			ProductID: variant.ProductID,
			VariantID: variant.ID,
			Title:     product.Title,
			Color:     variant.ColorID,
			Size:      variant.SizeID,
			ImageURL:  imageURL,
			Quantity:  input.Quantity,
			UnitPrice: variant.Price,
			LineTotal: roundPaise(lineTotal),
			Status:    domain.OrderStatusProcessing,
		})
		pricingItems = append(pricingItems, PricingItem{
			VariantID: variant.ID,
			ProductID: variant.ProductID,
			UnitPrice: variant.Price,
			Quantity:  input.Quantity,
		})
		lines = append(lines, domain.StockLine{VariantID: variant.ID, Quantity: input.Quantity})
	}

	return items, pricingItems, lines, nil
}

func (s *orderService) resolveAddress(ctx context.Context, userID string, cmd CreateOrderCommand) (domain.Address, error) {
	if cmd.Address != nil {
		addr := *cmd.Address
		if strings.TrimSpace(addr.Line1) == "" || strings.TrimSpace(addr.City) == "" || strings.TrimSpace(addr.PostalCode) == "" {
			return domain.Address{}, fmt.Errorf("%w: shipping address is incomplete", ErrOrderInvalidInput)
		}
		return addr, nil
	}

	addressID := strings.TrimSpace(cmd.AddressID)
	if addressID == "" {
		return domain.Address{}, fmt.Errorf("%w: shipping address is required", ErrOrderInvalidInput)
	}
	if s.addresses == nil {
		return domain.Address{}, errOrderAddressRepositoryUnavailable
	}
	saved, err := s.addresses.Get(ctx, userID, addressID)
	if err != nil {
		return domain.Address{}, s.mapRepositoryError(err)
	}
	return saved.Address, nil
}

func (s *orderService) resolveCoupons(ctx context.Context, codes []string) ([]Coupon, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	if s.coupons == nil {
		return nil, fmt.Errorf("%w: coupons are not supported", ErrOrderInvalidInput)
	}

	coupons := make([]Coupon, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			return nil, fmt.Errorf("%w: coupon code is required", ErrOrderInvalidInput)
		}
		coupon, err := s.coupons.FindByCode(ctx, code)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return nil, fmt.Errorf("%w: %s", ErrOrderCouponNotFound, code)
			}
			return nil, s.mapRepositoryError(err)
		}
		coupons = append(coupons, coupon)
	}
	return coupons, nil
}

// compensateStock undoes a decrement after a downstream step failed. Failures
// here are logged loudly since they leave stock under-counted until repaired.
func (s *orderService) compensateStock(ctx context.Context, orderRef string, lines []StockLine, reason string) {
	if _, err := s.inventory.RestoreStock(ctx, StockRestoreCommand{
		OrderRef: orderRef,
		Lines:    lines,
		Reason:   reason,
	}); err != nil {
		s.logger(ctx, "order_stock_compensation_failed", map[string]any{
			"orderRef": orderRef,
			"reason":   reason,
			"error":    err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrOrderInvalidState) || errors.Is(err, ErrOrderNotRefundable) ||
		errors.Is(err, ErrOrderNotReturnable) || errors.Is(err, ErrOrderConflict) ||
		errors.Is(err, ErrOrderReturnNotFound) || errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrOrderInvalidInput) {
		return err
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

// generateOrderCode builds the customer-facing order number. The random
// suffix comes from the tail of the injected ID generator so tests can pin it.
func (s *orderService) generateOrderCode(now time.Time) string {
	id := s.newID()
	suffix := id
	if len(id) > 6 {
		suffix = id[len(id)-6:]
	}
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), strings.ToUpper(suffix))
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order_event_publish_failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderCode,
			"error":  err.Error(),
			"status": string(event.CurrentStatus),
		})
	}
}

func (s *orderService) sendMail(ctx context.Context, orderCode, kind string, send func() error) {
	if s.mailer == nil {
		return
	}
	if err := send(); err != nil {
		s.logger(ctx, "order_mail_failed", map[string]any{
			"order": orderCode,
			"kind":  kind,
			"error": err.Error(),
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func parsePaymentMethod(raw string) (domain.PaymentMethod, error) {
	switch strings.TrimSpace(raw) {
	case "", string(domain.PaymentMethodCOD):
		return domain.PaymentMethodCOD, nil
	case string(domain.PaymentMethodCard):
		return domain.PaymentMethodCard, nil
	case string(domain.PaymentMethodCreditCard):
		return domain.PaymentMethodCreditCard, nil
	case string(domain.PaymentMethodDebitCard):
		return domain.PaymentMethodDebitCard, nil
	case string(domain.PaymentMethodUPI):
		return domain.PaymentMethodUPI, nil
	case string(domain.PaymentMethodNetBanking):
		return domain.PaymentMethodNetBanking, nil
	default:
		return "", fmt.Errorf("%w: unknown payment method %q", ErrOrderInvalidInput, raw)
	}
}

func appliedCouponsFromQuote(quote PricingQuote) []domain.AppliedCoupon {
	if len(quote.Discounts) == 0 {
		return nil
	}
	applied := make([]domain.AppliedCoupon, 0, len(quote.Discounts))
	for _, line := range quote.Discounts {
		applied = append(applied, domain.AppliedCoupon{
			Code:   line.Code,
			Type:   line.Type,
			Value:  line.Value,
			Amount: line.Amount,
		})
	}
	return applied
}

func stockLinesFromItems(items []domain.OrderItem) []domain.StockLine {
	lines := make([]domain.StockLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.StockLine{VariantID: item.VariantID, Quantity: item.Quantity})
	}
	return lines
}

// normalizeReturnItems validates the requested lines against the order and
// returns the subset to record on the return. An empty request means the
// whole order comes back.
func normalizeReturnItems(order *domain.Order, inputs []OrderItemInput) ([]domain.ReturnItem, error) {
	if len(inputs) == 0 {
		items := make([]domain.ReturnItem, 0, len(order.Items))
		for _, item := range order.Items {
			items = append(items, domain.ReturnItem{VariantID: item.VariantID, Quantity: item.Quantity})
		}
		return items, nil
	}

	ordered := make(map[string]int, len(order.Items))
	for _, item := range order.Items {
		ordered[item.VariantID] = item.Quantity
	}
	seen := make(map[string]bool, len(inputs))
	items := make([]domain.ReturnItem, 0, len(inputs))
	for _, input := range inputs {
		variantID := strings.TrimSpace(input.VariantID)
		if variantID == "" {
			return nil, fmt.Errorf("%w: return item variant id is required", ErrOrderInvalidInput)
		}
		if seen[variantID] {
			return nil, fmt.Errorf("%w: duplicate return item %s", ErrOrderInvalidInput, variantID)
		}
		seen[variantID] = true
		qty, ok := ordered[variantID]
		if !ok {
			return nil, fmt.Errorf("%w: variant %s is not part of the order", ErrOrderInvalidInput, variantID)
		}
		if input.Quantity <= 0 || input.Quantity > qty {
			return nil, fmt.Errorf("%w: return quantity for %s must be between 1 and %d", ErrOrderInvalidInput, variantID, qty)
		}
		items = append(items, domain.ReturnItem{VariantID: variantID, Quantity: input.Quantity})
	}
	return items, nil
}

// stockLinesFromReturn restores only the lines recorded on the return.
// Returns persisted before per-line tracking carry no items and fall back to
// the whole order.
func stockLinesFromReturn(ret domain.ReturnRequest, items []domain.OrderItem) []domain.StockLine {
	if len(ret.Items) == 0 {
		return stockLinesFromItems(items)
	}
	lines := make([]domain.StockLine, 0, len(ret.Items))
	for _, item := range ret.Items {
		lines = append(lines, domain.StockLine{VariantID: item.VariantID, Quantity: item.Quantity})
	}
	return lines
}

func markItemStatuses(items []domain.OrderItem, status domain.OrderStatus) {
	for i := range items {
		items[i].Status = status
	}
}

func markReturnedItems(items []domain.OrderItem, ret domain.ReturnRequest) {
	if len(ret.Items) == 0 {
		markItemStatuses(items, domain.OrderStatusReturned)
		return
	}
	returned := make(map[string]bool, len(ret.Items))
	for _, item := range ret.Items {
		returned[item.VariantID] = true
	}
	for i := range items {
		if returned[items[i].VariantID] {
			items[i].Status = domain.OrderStatusReturned
		}
	}
}

func formatDays(window time.Duration) string {
	days := int(window / (24 * time.Hour))
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

func findReturnByStatus(returns []domain.ReturnRequest, status domain.ReturnStatus) *domain.ReturnRequest {
	for i := range returns {
		if returns[i].Status == status {
			return &returns[i]
		}
	}
	return nil
}

func refundedTotal(refunds []domain.Refund) float64 {
	var total float64
	for _, refund := range refunds {
		if refund.Status == domain.RefundStatusProcessed {
			total += refund.Amount
		}
	}
	return total
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	return maps.Clone(src)
}

func ensureMap(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	return src
}

func valuePtr[T any](v T) *T {
	return &v
}

func canTransition(current, target domain.OrderStatus) bool {
	if current == target {
		return false
	}
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}
