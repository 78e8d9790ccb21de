package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vastrakart/api/internal/platform/auth"
	"github.com/vastrakart/api/internal/platform/httpx"
	"github.com/vastrakart/api/internal/services"
)

// adminRole is the Firebase custom claim role required for the /admin group.
const adminRole = "admin"

// AdminHandlers exposes back-office endpoints: order management, catalog
// writes, coupon lifecycle, and stock adjustments.
type AdminHandlers struct {
	authn     *auth.Authenticator
	orders    services.OrderService
	catalog   services.CatalogService
	coupons   services.CouponService
	inventory services.InventoryService
}

// NewAdminHandlers constructs a new AdminHandlers instance.
func NewAdminHandlers(
	authn *auth.Authenticator,
	orders services.OrderService,
	catalog services.CatalogService,
	coupons services.CouponService,
	inventory services.InventoryService,
) *AdminHandlers {
	return &AdminHandlers{
		authn:     authn,
		orders:    orders,
		catalog:   catalog,
		coupons:   coupons,
		inventory: inventory,
	}
}

// Routes registers the /admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(adminRole))
	}

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listAllOrders)
		r.Get("/stats", h.orderStats)
		r.Get("/{orderID}", h.getOrderAdmin)
		r.Post("/{orderID}:status", h.updateOrderStatus)
		r.Post("/{orderID}:refund", h.refundOrder)
		r.Post("/{orderID}:invoice", h.generateInvoice)
		r.Post("/{orderID}/returns/{returnID}:resolve", h.resolveReturn)
	})

	h.catalogRoutes(r)
}

type updateOrderStatusRequest struct {
	Status         string         `json:"status"`
	Reason         string         `json:"reason"`
	TrackingNumber *string        `json:"tracking_number"`
	Carrier        *string        `json:"carrier"`
	Metadata       map[string]any `json:"metadata"`
}

type refundOrderRequest struct {
	Amount *float64 `json:"amount"`
	Reason string   `json:"reason"`
}

type resolveReturnRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

func (h *AdminHandlers) listAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	statuses, err := parseOrderStatuses(query["status"])
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	pager, err := parsePagination(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.OrderListFilter{
		UserID:     strings.TrimSpace(query.Get("user_id")),
		Status:     statuses,
		Pagination: pager,
	}
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.DateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		filter.DateRange.To = &ts
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *AdminHandlers) orderStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var query services.OrderStatsQuery
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		query.DateRange.From = &ts
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		query.DateRange.To = &ts
	}

	stats, err := h.orders.Stats(ctx, query)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderStatsPayload(stats))
}

func (h *AdminHandlers) getOrderAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	order, ok := h.lookupOrder(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	order, ok := h.lookupOrder(w, r)
	if !ok {
		return
	}

	var req updateOrderStatusRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	target, valid := parseOrderStatus(req.Status)
	if !valid {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be a valid order status", http.StatusBadRequest))
		return
	}

	updated, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID:        order.ID,
		TargetStatus:   target,
		ActorID:        strings.TrimSpace(identity.UID),
		Reason:         strings.TrimSpace(req.Reason),
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
		Metadata:       cloneMap(req.Metadata),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(updated)})
}

func (h *AdminHandlers) refundOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	order, ok := h.lookupOrder(w, r)
	if !ok {
		return
	}

	var req refundOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if req.Amount != nil && *req.Amount <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "amount must be positive", http.StatusBadRequest))
		return
	}

	updated, err := h.orders.ProcessRefund(ctx, services.RefundCommand{
		OrderID: order.ID,
		ActorID: strings.TrimSpace(identity.UID),
		Amount:  req.Amount,
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(updated)})
}

func (h *AdminHandlers) generateInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	order, ok := h.lookupOrder(w, r)
	if !ok {
		return
	}

	updated, err := h.orders.GenerateInvoice(ctx, services.GenerateInvoiceCommand{
		OrderID: order.ID,
		ActorID: strings.TrimSpace(identity.UID),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(updated)})
}

func (h *AdminHandlers) resolveReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	order, ok := h.lookupOrder(w, r)
	if !ok {
		return
	}
	returnID := strings.TrimSpace(chi.URLParam(r, "returnID"))
	if returnID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "return id is required", http.StatusBadRequest))
		return
	}

	var req resolveReturnRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	updated, err := h.orders.ResolveReturn(ctx, services.ReturnResolutionCommand{
		OrderID:  order.ID,
		ReturnID: returnID,
		ActorID:  strings.TrimSpace(identity.UID),
		Approve:  req.Approve,
		Reason:   strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(updated)})
}

// lookupOrder resolves the orderID path parameter without an ownership check.
func (h *AdminHandlers) lookupOrder(w http.ResponseWriter, r *http.Request) (services.Order, bool) {
	ctx := r.Context()
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
	return order, true
}

type orderStatsPayload struct {
	TotalOrders       int64            `json:"total_orders"`
	TotalRevenue      float64          `json:"total_revenue"`
	AverageOrderValue float64          `json:"average_order_value"`
	TotalRefunds      int64            `json:"total_refunds"`
	RefundedAmount    float64          `json:"refunded_amount"`
	StatusCounts      map[string]int64 `json:"status_counts"`
	From              string           `json:"from,omitempty"`
	To                string           `json:"to,omitempty"`
}

func buildOrderStatsPayload(stats services.OrderStats) orderStatsPayload {
	counts := make(map[string]int64, len(stats.StatusCounts))
	for status, count := range stats.StatusCounts {
		counts[string(status)] = count
	}
	return orderStatsPayload{
		TotalOrders:       stats.TotalOrders,
		TotalRevenue:      stats.TotalRevenue,
		AverageOrderValue: stats.AverageOrderValue,
		TotalRefunds:      stats.TotalRefunds,
		RefundedAmount:    stats.RefundedAmount,
		StatusCounts:      counts,
		From:              formatTime(stats.From),
		To:                formatTime(stats.To),
	}
}
