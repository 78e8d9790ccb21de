package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/platform/auth"
	"github.com/vastrakart/api/internal/platform/httpx"
	"github.com/vastrakart/api/internal/services"
)

const maxOrderBodySize = 64 * 1024

// OrderHandlers exposes customer-facing order endpoints.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Get("/{orderID}/history", h.getOrderHistory)
	r.Post("/{orderID}:cancel", h.cancelOrder)
	r.Post("/{orderID}:return", h.requestReturn)
}

type createOrderRequest struct {
	Items          []orderItemRequest `json:"items"`
	ShippingMethod string             `json:"shipping_method"`
	AddressID      string             `json:"address_id"`
	Address        *addressRequest    `json:"address"`
	CouponCodes    []string           `json:"coupon_codes"`
	PaymentMethod  string             `json:"payment_method"`
	Notes          string             `json:"notes"`
	Metadata       map[string]any     `json:"metadata"`
}

type orderItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type returnOrderRequest struct {
	Items  []orderItemRequest `json:"items"`
	Reason string             `json:"reason"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if len(req.Items) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "at least one item is required", http.StatusBadRequest))
		return
	}

	cmd := services.CreateOrderCommand{
		UserID:        strings.TrimSpace(identity.UID),
		AddressID:     strings.TrimSpace(req.AddressID),
		CouponCodes:   parseFilterValues(req.CouponCodes),
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		Notes:         strings.TrimSpace(req.Notes),
		Metadata:      cloneMap(req.Metadata),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.OrderItemInput{
			VariantID: strings.TrimSpace(item.VariantID),
			Quantity:  item.Quantity,
		})
	}
	if method, ok := parseShippingMethod(req.ShippingMethod); ok {
		cmd.ShippingMethod = method
	} else {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "shipping_method must be Standard or Express", http.StatusBadRequest))
		return
	}
	if req.Address != nil {
		addr, err := req.Address.toDomainAddress()
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		cmd.Address = &addr
	}

	order, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	statuses, err := parseOrderStatuses(r.URL.Query()["status"])
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	pager, err := parsePagination(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListUserOrders(ctx, services.UserOrderFilter{
		UserID:     strings.TrimSpace(identity.UID),
		Status:     statuses,
		Pagination: pager,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, ok := h.lookupOwnedOrder(ctx, w, r, identity)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) getOrderHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, ok := h.lookupOwnedOrder(ctx, w, r, identity)
	if !ok {
		return
	}

	entries := make([]orderHistoryPayload, 0, len(order.History))
	for _, entry := range order.History {
		entries = append(entries, buildOrderHistoryPayload(entry))
	}
	writeJSONResponse(w, http.StatusOK, orderHistoryResponse{History: entries})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, ok := h.lookupOwnedOrder(ctx, w, r, identity)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	cancelled, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: order.ID,
		ActorID: strings.TrimSpace(identity.UID),
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(cancelled)})
}

func (h *OrderHandlers) requestReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, ok := h.lookupOwnedOrder(ctx, w, r, identity)
	if !ok {
		return
	}

	var req returnOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "reason is required", http.StatusBadRequest))
		return
	}

	cmd := services.ReturnRequestCommand{
		OrderID: order.ID,
		UserID:  strings.TrimSpace(identity.UID),
		Reason:  strings.TrimSpace(req.Reason),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.OrderItemInput{
			VariantID: strings.TrimSpace(item.VariantID),
			Quantity:  item.Quantity,
		})
	}

	updated, err := h.orders.RequestReturn(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(updated)})
}

// lookupOwnedOrder resolves the path parameter against either the internal
// document ID or the public ORD- code, then enforces ownership. A foreign
// order reads as not found so order IDs cannot be probed.
func (h *OrderHandlers) lookupOwnedOrder(ctx context.Context, w http.ResponseWriter, r *http.Request, identity *auth.Identity) (services.Order, bool) {
	ref := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if ref == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return services.Order{}, false
	}

	var order services.Order
	var err error
	if strings.HasPrefix(ref, "ORD-") {
		order, err = h.orders.GetOrderByCode(ctx, ref)
	} else {
		order, err = h.orders.GetOrder(ctx, ref)
	}
	if err != nil {
		writeOrderError(ctx, w, err)
		return services.Order{}, false
	}

	if !strings.EqualFold(strings.TrimSpace(order.UserID), strings.TrimSpace(identity.UID)) {
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		return services.Order{}, false
	}
	return order, true
}

func parseShippingMethod(raw string) (domain.ShippingMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "standard":
		return domain.ShippingMethodStandard, true
	case "express":
		return domain.ShippingMethodExpress, true
	default:
		return "", false
	}
}

// Response payloads -----------------------------------------------------------

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Items      []orderSummaryPayload `json:"items"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	TotalItems int64                 `json:"total_items"`
	TotalPages int                   `json:"total_pages"`
}

type orderSummaryPayload struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"order_id"`
	Status    string  `json:"status"`
	Total     float64 `json:"total"`
	ItemCount int     `json:"item_count"`
	CreatedAt string  `json:"created_at"`
}

type orderPayload struct {
	ID             string                `json:"id"`
	OrderID        string                `json:"order_id"`
	UserID         string                `json:"user_id"`
	Status         string                `json:"status"`
	Items          []orderItemPayload    `json:"items"`
	Pricing        orderPricingPayload   `json:"pricing"`
	AppliedCoupons []appliedCouponData   `json:"applied_coupons,omitempty"`
	Address        addressPayload        `json:"shipping_address"`
	ShippingMethod string                `json:"shipping_method"`
	Payment        orderPaymentPayload   `json:"payment"`
	Refunds        []refundPayload       `json:"refunds,omitempty"`
	Returns        []returnPayload       `json:"returns,omitempty"`
	Invoice        *invoicePayload       `json:"invoice,omitempty"`
	Tracking       *trackingPayload      `json:"tracking,omitempty"`
	History        []orderHistoryPayload `json:"history,omitempty"`
	Notes          string                `json:"notes,omitempty"`
	CreatedAt      string                `json:"created_at"`
	UpdatedAt      string                `json:"updated_at,omitempty"`
}

type orderItemPayload struct {
	ProductID string  `json:"product_id"`
	VariantID string  `json:"variant_id"`
	Title     string  `json:"title"`
	Color     string  `json:"color,omitempty"`
	Size      string  `json:"size,omitempty"`
	ImageURL  string  `json:"image_url,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
	Status    string  `json:"status,omitempty"`
}

type orderPricingPayload struct {
	Subtotal    float64       `json:"subtotal"`
	Tax         float64       `json:"tax"`
	TaxDetails  []taxLineData `json:"tax_details,omitempty"`
	ShippingFee float64       `json:"shipping_fee"`
	Discount    float64       `json:"discount"`
	TotalAmount float64       `json:"total_amount"`
}

type taxLineData struct {
	Type   string  `json:"type"`
	Rate   float64 `json:"rate"`
	Amount float64 `json:"amount"`
}

type appliedCouponData struct {
	Code   string  `json:"code"`
	Type   string  `json:"type"`
	Value  float64 `json:"value"`
	Amount float64 `json:"amount"`
}

type orderPaymentPayload struct {
	Method        string  `json:"method"`
	Status        string  `json:"status"`
	TransactionID *string `json:"transaction_id,omitempty"`
	PaidAt        string  `json:"paid_at,omitempty"`
}

type refundPayload struct {
	ID          string  `json:"id"`
	Amount      float64 `json:"amount"`
	Reason      string  `json:"reason,omitempty"`
	Status      string  `json:"status"`
	ProcessedBy string  `json:"processed_by,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type returnPayload struct {
	ID          string              `json:"id"`
	Reason      string              `json:"reason,omitempty"`
	Status      string              `json:"status"`
	Items       []returnItemPayload `json:"items,omitempty"`
	ResolvedBy  string              `json:"resolved_by,omitempty"`
	RequestedAt string              `json:"requested_at"`
	ResolvedAt  string              `json:"resolved_at,omitempty"`
}

type returnItemPayload struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type invoicePayload struct {
	Number      string `json:"number"`
	URL         string `json:"url"`
	GeneratedAt string `json:"generated_at"`
}

type trackingPayload struct {
	Carrier           string `json:"carrier"`
	TrackingNumber    string `json:"tracking_number"`
	EstimatedDelivery string `json:"estimated_delivery,omitempty"`
}

type orderHistoryResponse struct {
	History []orderHistoryPayload `json:"history"`
}

type orderHistoryPayload struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
	Actor  string `json:"actor,omitempty"`
	At     string `json:"at"`
}

func buildOrderListResponse(page domain.Page[domain.Order]) orderListResponse {
	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}
	return orderListResponse{
		Items:      items,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalItems: page.TotalItems,
		TotalPages: page.TotalPages,
	}
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	return orderSummaryPayload{
		ID:        order.ID,
		OrderID:   order.OrderID,
		Status:    string(order.Status),
		Total:     order.Pricing.TotalAmount,
		ItemCount: count,
		CreatedAt: formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:             order.ID,
		OrderID:        order.OrderID,
		UserID:         order.UserID,
		Status:         string(order.Status),
		Items:          buildOrderItemPayloads(order.Items),
		Pricing:        buildOrderPricingPayload(order.Pricing),
		Address:        buildAddressPayload(order.ShippingAddress),
		ShippingMethod: string(order.ShippingMethod),
		Payment: orderPaymentPayload{
			Method:        string(order.Payment.Method),
			Status:        string(order.Payment.Status),
			TransactionID: cloneStringPointer(order.Payment.TransactionID),
			PaidAt:        formatTime(pointerTime(order.Payment.PaidAt)),
		},
		Notes:     order.Notes,
		CreatedAt: formatTime(order.CreatedAt),
		UpdatedAt: formatTime(order.UpdatedAt),
	}

	for _, coupon := range order.AppliedCoupons {
		payload.AppliedCoupons = append(payload.AppliedCoupons, appliedCouponData{
			Code:   coupon.Code,
			Type:   string(coupon.Type),
			Value:  coupon.Value,
			Amount: coupon.Amount,
		})
	}
	for _, refund := range order.Refunds {
		payload.Refunds = append(payload.Refunds, refundPayload{
			ID:          refund.ID,
			Amount:      refund.Amount,
			Reason:      refund.Reason,
			Status:      string(refund.Status),
			ProcessedBy: refund.ProcessedBy,
			CreatedAt:   formatTime(refund.CreatedAt),
		})
	}
	for _, ret := range order.Returns {
		payload.Returns = append(payload.Returns, buildReturnPayload(ret))
	}
	for _, entry := range order.History {
		payload.History = append(payload.History, buildOrderHistoryPayload(entry))
	}
	if order.Invoice != nil {
		payload.Invoice = &invoicePayload{
			Number:      order.Invoice.Number,
			URL:         order.Invoice.URL,
			GeneratedAt: formatTime(order.Invoice.GeneratedAt),
		}
	}
	if order.Tracking != nil {
		payload.Tracking = &trackingPayload{
			Carrier:           order.Tracking.Carrier,
			TrackingNumber:    order.Tracking.TrackingNumber,
			EstimatedDelivery: formatTime(pointerTime(order.Tracking.EstimatedDelivery)),
		}
	}
	return payload
}

func buildOrderItemPayloads(items []services.OrderItem) []orderItemPayload {
	result := make([]orderItemPayload, 0, len(items))
	for _, item := range items {
		result = append(result, orderItemPayload{
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
		})
	}
	return result
}

func buildOrderPricingPayload(pricing services.OrderPricing) orderPricingPayload {
	payload := orderPricingPayload{
		Subtotal:    pricing.Subtotal,
		Tax:         pricing.Tax.Amount,
		ShippingFee: pricing.ShippingFee,
		Discount:    pricing.Discount,
		TotalAmount: pricing.TotalAmount,
	}
	for _, line := range pricing.Tax.Details {
		payload.TaxDetails = append(payload.TaxDetails, taxLineData{
			Type:   line.Type,
			Rate:   line.Rate,
			Amount: line.Amount,
		})
	}
	return payload
}

func buildReturnPayload(ret services.Return) returnPayload {
	payload := returnPayload{
		ID:          ret.ID,
		Reason:      ret.Reason,
		Status:      string(ret.Status),
		RequestedAt: formatTime(ret.RequestedAt),
		ResolvedAt:  formatTime(pointerTime(ret.ResolvedAt)),
	}
	for _, item := range ret.Items {
		payload.Items = append(payload.Items, returnItemPayload{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}
	if ret.ResolvedBy != nil {
		payload.ResolvedBy = strings.TrimSpace(*ret.ResolvedBy)
	}
	return payload
}

func buildOrderHistoryPayload(entry services.OrderHistory) orderHistoryPayload {
	return orderHistoryPayload{
		Status: string(entry.Status),
		Note:   entry.Note,
		Actor:  entry.Actor,
		At:     formatTime(entry.At),
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderCouponNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_found", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound), errors.Is(err, services.ErrOrderReturnNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotRefundable):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_refundable", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotReturnable):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_returnable", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInventoryInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
