package payments

import (
	"context"
	"errors"
	"testing"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/services"
)

type fakeProvider struct {
	lastOp     string
	lastIntent CreateIntentRequest
	lastRefund RefundRequest
	payment    PaymentDetails
	refund     RefundResult
	err        error
}

func (f *fakeProvider) CreateIntent(ctx context.Context, req CreateIntentRequest) (PaymentDetails, error) {
	f.lastOp = "intent"
	f.lastIntent = req
	return f.payment, f.err
}

func (f *fakeProvider) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	f.lastOp = "refund"
	f.lastRefund = req
	return f.refund, f.err
}

func (f *fakeProvider) LookupPayment(ctx context.Context, req LookupRequest) (PaymentDetails, error) {
	f.lastOp = "lookup"
	return f.payment, f.err
}

func TestManagerCreateIntentUsesPreferredProvider(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{payment: PaymentDetails{IntentID: "pi_stripe"}}
	razorpay := &fakeProvider{payment: PaymentDetails{IntentID: "pi_razorpay"}}

	mgr, err := NewManager(map[string]Provider{
		"stripe":   stripe,
		"razorpay": razorpay,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	details, err := mgr.CreateIntent(ctx, PaymentContext{PreferredProvider: "razorpay"}, CreateIntentRequest{Amount: 1000, Currency: "INR"})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	if details.Provider != "razorpay" {
		t.Fatalf("expected provider 'razorpay', got %q", details.Provider)
	}
	if razorpay.lastOp != "intent" {
		t.Fatalf("expected razorpay provider to handle call")
	}
	if stripe.lastOp != "" {
		t.Fatalf("expected stripe provider to remain unused")
	}
}

func TestManagerRoutesByCurrency(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{payment: PaymentDetails{IntentID: "pi_stripe"}}
	razorpay := &fakeProvider{payment: PaymentDetails{IntentID: "pi_razorpay"}}

	mgr, err := NewManager(
		map[string]Provider{
			"stripe":   stripe,
			"razorpay": razorpay,
		},
		WithCurrencyRoutes(map[string]string{"INR": "razorpay"}),
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	details, err := mgr.CreateIntent(ctx, PaymentContext{Currency: "INR"}, CreateIntentRequest{Amount: 123000, Currency: "INR"})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if details.Provider != "razorpay" {
		t.Fatalf("expected provider 'razorpay', got %q", details.Provider)
	}
	if razorpay.lastOp != "intent" {
		t.Fatalf("expected razorpay provider to handle call")
	}
}

func TestManagerFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{payment: PaymentDetails{Provider: "stripe", IntentID: "pi_123"}}

	mgr, err := NewManager(map[string]Provider{"stripe": stripe})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	details, err := mgr.LookupPayment(ctx, PaymentContext{}, LookupRequest{IntentID: "pi_123"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stripe.lastOp != "lookup" {
		t.Fatalf("expected lookup to invoke default provider")
	}
	if details.Provider != "stripe" {
		t.Fatalf("unexpected provider in details: %q", details.Provider)
	}
}

func TestManagerUnsupportedProvider(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(map[string]Provider{"stripe": &fakeProvider{}, "razorpay": &fakeProvider{}}, WithDefaultProvider(""))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	_, err = mgr.CreateIntent(ctx, PaymentContext{PreferredProvider: "unknown"}, CreateIntentRequest{Amount: 100, Currency: "USD"})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestNewManagerValidatesProviders(t *testing.T) {
	if _, err := NewManager(map[string]Provider{"bad": nil}); err == nil {
		t.Fatalf("expected error for nil provider")
	}
	if _, err := NewManager(nil); err == nil {
		t.Fatalf("expected error when providers empty")
	}
}

func TestGatewayCreateIntentConvertsToPaise(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{payment: PaymentDetails{IntentID: "pi_1", Status: StatusPending}}
	mgr, err := NewManager(map[string]Provider{"stripe": provider})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	gateway, err := NewGateway(GatewayDeps{Manager: mgr})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	details, err := gateway.CreateIntent(ctx, services.PaymentIntentCommand{
		OrderCode: "ORD-1-ABC",
		UserID:    "user-1",
		Amount:    1230.50,
		Method:    "card",
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	if provider.lastIntent.Amount != 123050 {
		t.Fatalf("expected 123050 paise, got %d", provider.lastIntent.Amount)
	}
	if provider.lastIntent.Currency != "INR" {
		t.Fatalf("expected INR currency, got %s", provider.lastIntent.Currency)
	}
	if details.Method != domain.PaymentMethodCard {
		t.Fatalf("unexpected method %s", details.Method)
	}
	if details.Status != domain.PaymentStatusPending {
		t.Fatalf("unexpected status %s", details.Status)
	}
	if details.TransactionID == nil || *details.TransactionID != "pi_1" {
		t.Fatalf("expected transaction id pi_1")
	}
}

func TestGatewayAcceptsAllGatewayMethods(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		method string
		want   domain.PaymentMethod
	}{
		{"card", domain.PaymentMethodCard},
		{"CreditCard", domain.PaymentMethodCreditCard},
		{"DebitCard", domain.PaymentMethodDebitCard},
		{"UPI", domain.PaymentMethodUPI},
		{"NetBanking", domain.PaymentMethodNetBanking},
	}
	for _, tc := range cases {
		provider := &fakeProvider{payment: PaymentDetails{IntentID: "pi_1", Status: StatusPending}}
		mgr, err := NewManager(map[string]Provider{"stripe": provider})
		if err != nil {
			t.Fatalf("new manager: %v", err)
		}
		gateway, err := NewGateway(GatewayDeps{Manager: mgr})
		if err != nil {
			t.Fatalf("new gateway: %v", err)
		}

		details, err := gateway.CreateIntent(ctx, services.PaymentIntentCommand{
			OrderCode: "ORD-1-ABC",
			Amount:    500,
			Method:    tc.method,
		})
		if err != nil {
			t.Fatalf("%s: create intent: %v", tc.method, err)
		}
		if details.Method != tc.want {
			t.Fatalf("%s: expected %s got %s", tc.method, tc.want, details.Method)
		}
	}
}

func TestGatewayRejectsCOD(t *testing.T) {
	mgr, err := NewManager(map[string]Provider{"stripe": &fakeProvider{}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	gateway, err := NewGateway(GatewayDeps{Manager: mgr})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	_, err = gateway.CreateIntent(context.Background(), services.PaymentIntentCommand{Amount: 100, Method: "cod"})
	if err == nil {
		t.Fatal("expected error for cod intent")
	}
}

func TestGatewayRefundReturnsReference(t *testing.T) {
	provider := &fakeProvider{refund: RefundResult{RefundID: "re_1", Status: StatusRefunded}}
	mgr, err := NewManager(map[string]Provider{"stripe": provider})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	gateway, err := NewGateway(GatewayDeps{Manager: mgr})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}

	id, err := gateway.RefundPayment(context.Background(), services.PaymentRefundCommand{
		TransactionID: "pi_1",
		Amount:        250,
		Reason:        "requested_by_customer",
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if id != "re_1" {
		t.Fatalf("expected refund id re_1, got %s", id)
	}
	if provider.lastRefund.Amount == nil || *provider.lastRefund.Amount != 25000 {
		t.Fatalf("expected amount 25000 paise")
	}
}
