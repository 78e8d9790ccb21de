package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/platform/httpx"
	"github.com/vastrakart/api/internal/services"
)

const maxWebhookBodySize = 256 * 1024

// stripeEventVerifier checks the payload signature and decodes the event.
// Split out so tests can feed events without producing real signatures.
type stripeEventVerifier func(payload []byte, signature string) (stripe.Event, error)

// WebhookHandlers receives payment gateway callbacks.
type WebhookHandlers struct {
	orders services.OrderService
	verify stripeEventVerifier
	logger func(ctx context.Context, event string, fields map[string]any)
}

// WebhookHandlersDeps bundles collaborators for NewWebhookHandlers.
type WebhookHandlersDeps struct {
	Orders              services.OrderService
	StripeWebhookSecret string
	Verifier            stripeEventVerifier
	Logger              func(ctx context.Context, event string, fields map[string]any)
}

// NewWebhookHandlers constructs the webhook handler group.
func NewWebhookHandlers(deps WebhookHandlersDeps) (*WebhookHandlers, error) {
	if deps.Orders == nil {
		return nil, errors.New("webhook handlers: order service is required")
	}
	verify := deps.Verifier
	if verify == nil {
		secret := strings.TrimSpace(deps.StripeWebhookSecret)
		if secret == "" {
			return nil, errors.New("webhook handlers: stripe webhook secret is required")
		}
		verify = func(payload []byte, signature string) (stripe.Event, error) {
			return webhook.ConstructEvent(payload, signature, secret)
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &WebhookHandlers{
		orders: deps.Orders,
		verify: verify,
		logger: logger,
	}, nil
}

// Routes registers webhook endpoints on the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	r.Post("/stripe", h.handleStripe)
}

func (h *WebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize+1))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", "failed to read webhook payload", http.StatusBadRequest))
		return
	}
	if len(payload) > maxWebhookBodySize {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "webhook payload exceeds size limit", http.StatusRequestEntityTooLarge))
		return
	}

	event, err := h.verify(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger(ctx, "webhook.stripe.signature_rejected", map[string]any{"error": err.Error()})
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	}

	var status domain.PaymentStatus
	switch event.Type {
	case "payment_intent.succeeded":
		status = domain.PaymentStatusPaid
	case "payment_intent.payment_failed":
		status = domain.PaymentStatusFailed
	default:
		h.logger(ctx, "webhook.stripe.ignored", map[string]any{"type": string(event.Type)})
		writeJSONResponse(w, http.StatusOK, webhookAckPayload{Received: true})
		return
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", "failed to decode payment intent", http.StatusBadRequest))
		return
	}

	orderCode := strings.TrimSpace(intent.Metadata["orderCode"])
	if orderCode == "" {
		// Intents opened outside checkout carry no order reference. Ack so the
		// gateway does not retry forever.
		h.logger(ctx, "webhook.stripe.no_order_reference", map[string]any{
			"type":          string(event.Type),
			"paymentIntent": intent.ID,
		})
		writeJSONResponse(w, http.StatusOK, webhookAckPayload{Received: true})
		return
	}

	order, err := h.orders.ConfirmPayment(ctx, services.ConfirmPaymentCommand{
		OrderCode:     orderCode,
		TransactionID: intent.ID,
		Status:        status,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			h.logger(ctx, "webhook.stripe.order_not_found", map[string]any{"orderId": orderCode})
			writeJSONResponse(w, http.StatusOK, webhookAckPayload{Received: true})
		case errors.Is(err, services.ErrOrderInvalidInput), errors.Is(err, services.ErrOrderInvalidState):
			writeOrderError(ctx, w, err)
		default:
			// Non-2xx prompts the gateway to redeliver once the outage clears.
			httpx.WriteError(ctx, w, httpx.NewError("webhook_error", "failed to process webhook", http.StatusInternalServerError))
		}
		return
	}

	h.logger(ctx, "webhook.stripe.payment_recorded", map[string]any{
		"orderId":       order.OrderID,
		"paymentStatus": string(status),
	})
	writeJSONResponse(w, http.StatusOK, webhookAckPayload{Received: true})
}

type webhookAckPayload struct {
	Received bool `json:"received"`
}
