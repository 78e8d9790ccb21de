package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v78"

	"github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/services"
)

func webhookRouter(t *testing.T, orders services.OrderService, verify stripeEventVerifier) chi.Router {
	t.Helper()
	handler, err := NewWebhookHandlers(WebhookHandlersDeps{
		Orders:   orders,
		Verifier: verify,
	})
	if err != nil {
		t.Fatalf("failed to build webhook handlers: %v", err)
	}
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)
	return router
}

func stripePaymentIntentEvent(t *testing.T, eventType, intentID, orderCode string) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":       intentID,
		"metadata": map[string]string{"orderCode": orderCode},
	})
	if err != nil {
		t.Fatalf("failed to marshal payment intent: %v", err)
	}
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestWebhookHandlersPaymentSucceeded(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	var captured services.ConfirmPaymentCommand
	orders := &stubOrderService{
		confirmFn: func(_ context.Context, cmd services.ConfirmPaymentCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(now), nil
		},
	}
	verify := func(payload []byte, signature string) (stripe.Event, error) {
		if signature != "t=1,v1=sig" {
			t.Fatalf("unexpected signature header %q", signature)
		}
		return stripePaymentIntentEvent(t, "payment_intent.succeeded", "pi_123", "ORD-1767024000000-ABCDEF"), nil
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	webhookRouter(t, orders, verify).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderCode != "ORD-1767024000000-ABCDEF" {
		t.Fatalf("unexpected order code %q", captured.OrderCode)
	}
	if captured.TransactionID != "pi_123" {
		t.Fatalf("unexpected transaction id %q", captured.TransactionID)
	}
	if captured.Status != domain.PaymentStatusPaid {
		t.Fatalf("unexpected payment status %s", captured.Status)
	}

	var resp webhookAckPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Received {
		t.Fatal("expected ack payload")
	}
}

func TestWebhookHandlersPaymentFailed(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	var captured services.ConfirmPaymentCommand
	orders := &stubOrderService{
		confirmFn: func(_ context.Context, cmd services.ConfirmPaymentCommand) (services.Order, error) {
			captured = cmd
			return sampleOrder(now), nil
		},
	}
	verify := func([]byte, string) (stripe.Event, error) {
		return stripePaymentIntentEvent(t, "payment_intent.payment_failed", "pi_456", "ORD-1767024000000-ABCDEF"), nil
	}

	rr := httptest.NewRecorder()
	webhookRouter(t, orders, verify).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Status != domain.PaymentStatusFailed {
		t.Fatalf("unexpected payment status %s", captured.Status)
	}
}

func TestWebhookHandlersRejectsBadSignature(t *testing.T) {
	var called bool
	orders := &stubOrderService{
		confirmFn: func(context.Context, services.ConfirmPaymentCommand) (services.Order, error) {
			called = true
			return services.Order{}, nil
		},
	}
	verify := func([]byte, string) (stripe.Event, error) {
		return stripe.Event{}, errors.New("signature mismatch")
	}

	rr := httptest.NewRecorder()
	webhookRouter(t, orders, verify).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if called {
		t.Fatal("expected payment confirmation not to be called")
	}
}

func TestWebhookHandlersIgnoresUnrelatedEvents(t *testing.T) {
	var called bool
	orders := &stubOrderService{
		confirmFn: func(context.Context, services.ConfirmPaymentCommand) (services.Order, error) {
			called = true
			return services.Order{}, nil
		},
	}
	verify := func([]byte, string) (stripe.Event, error) {
		return stripe.Event{Type: stripe.EventType("customer.created"), Data: &stripe.EventData{Raw: []byte(`{}`)}}, nil
	}

	rr := httptest.NewRecorder()
	webhookRouter(t, orders, verify).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if called {
		t.Fatal("expected payment confirmation not to be called")
	}
}

func TestWebhookHandlersAcksIntentWithoutOrderReference(t *testing.T) {
	var called bool
	orders := &stubOrderService{
		confirmFn: func(context.Context, services.ConfirmPaymentCommand) (services.Order, error) {
			called = true
			return services.Order{}, nil
		},
	}
	verify := func([]byte, string) (stripe.Event, error) {
		return stripePaymentIntentEvent(t, "payment_intent.succeeded", "pi_789", ""), nil
	}

	rr := httptest.NewRecorder()
	webhookRouter(t, orders, verify).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if called {
		t.Fatal("expected payment confirmation not to be called")
	}
}

func TestWebhookHandlersAcksUnknownOrder(t *testing.T) {
	orders := &stubOrderService{
		confirmFn: func(context.Context, services.ConfirmPaymentCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotFound
		},
	}
	verify := func([]byte, string) (stripe.Event, error) {
		return stripePaymentIntentEvent(t, "payment_intent.succeeded", "pi_123", "ORD-0-XXXXXX"), nil
	}

	rr := httptest.NewRecorder()
	webhookRouter(t, orders, verify).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`)))

	// Unknown orders are acked so the gateway stops redelivering.
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestWebhookHandlersRetriesOnInternalError(t *testing.T) {
	orders := &stubOrderService{
		confirmFn: func(context.Context, services.ConfirmPaymentCommand) (services.Order, error) {
			return services.Order{}, errors.New("firestore unavailable")
		},
	}
	verify := func([]byte, string) (stripe.Event, error) {
		return stripePaymentIntentEvent(t, "payment_intent.succeeded", "pi_123", "ORD-1767024000000-ABCDEF"), nil
	}

	rr := httptest.NewRecorder()
	webhookRouter(t, orders, verify).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`)))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}
