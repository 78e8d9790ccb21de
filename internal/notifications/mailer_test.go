package notifications

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	gomail "gopkg.in/gomail.v2"

	domain "github.com/vastrakart/api/internal/domain"
)

type captureSender struct {
	messages []*gomail.Message
	err      error
}

func (s *captureSender) Send(messages ...*gomail.Message) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, messages...)
	return nil
}

func messageBody(t *testing.T, msg *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	return buf.String()
}

func newTestMailer(t *testing.T, sender MessageSender) *Mailer {
	t.Helper()
	mailer, err := NewMailer(MailerDeps{
		From:   "orders@vastrakart.in",
		Sender: sender,
		Recipient: func(ctx context.Context, userID string) (string, error) {
			if userID != "user-1" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return "asha@example.com", nil
		},
		Clock: func() time.Time {
			return time.Date(2025, time.August, 20, 10, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("NewMailer: %v", err)
	}
	return mailer
}

func sampleOrder() domain.Order {
	return domain.Order{
		ID:      "ord-internal-1",
		OrderID: "ORD-1755684000000-4821",
		UserID:  "user-1",
		Items: []domain.OrderItem{
			{
				Title:     "Banarasi Silk Saree",
				Color:     "Maroon",
				Size:      "Free",
				Quantity:  2,
				UnitPrice: 500,
				LineTotal: 1000,
			},
		},
		Pricing: domain.OrderPricing{
			Subtotal:    1000,
			Tax:         domain.TaxAmount{Amount: 180},
			ShippingFee: 50,
			TotalAmount: 1230,
		},
		Payment: domain.PaymentDetails{Method: domain.PaymentMethodCard},
		Status:  domain.OrderStatusProcessing,
	}
}

func TestSendOrderConfirmation(t *testing.T) {
	sender := &captureSender{}
	mailer := newTestMailer(t, sender)

	if err := mailer.SendOrderConfirmation(context.Background(), sampleOrder()); err != nil {
		t.Fatalf("SendOrderConfirmation: %v", err)
	}
	if len(sender.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.messages))
	}

	raw := messageBody(t, sender.messages[0])
	if !strings.Contains(raw, "To: asha@example.com") {
		t.Errorf("recipient missing from message:\n%s", raw)
	}
	if !strings.Contains(raw, "Order ORD-1755684000000-4821 confirmed") {
		t.Errorf("subject missing from message:\n%s", raw)
	}
	for _, want := range []string{
		"2 x Banarasi Silk Saree (Maroon / Free)",
		"Subtotal:",
		"Total:",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("body missing %q:\n%s", want, raw)
		}
	}
}

func TestSendStatusUpdateIncludesTracking(t *testing.T) {
	sender := &captureSender{}
	mailer := newTestMailer(t, sender)

	order := sampleOrder()
	order.Status = domain.OrderStatusShipped
	order.Tracking = &domain.TrackingInfo{Carrier: "Delhivery", TrackingNumber: "DL123456789"}

	if err := mailer.SendStatusUpdate(context.Background(), order, domain.OrderStatusProcessing); err != nil {
		t.Fatalf("SendStatusUpdate: %v", err)
	}

	raw := messageBody(t, sender.messages[0])
	for _, want := range []string{"from Processing to Shipped", "Delhivery", "DL123456789"} {
		if !strings.Contains(raw, want) {
			t.Errorf("body missing %q:\n%s", want, raw)
		}
	}
}

func TestSendRefundNotice(t *testing.T) {
	sender := &captureSender{}
	mailer := newTestMailer(t, sender)

	refund := domain.Refund{ID: "ref-1", Amount: 1230, Reason: "damaged on arrival"}
	if err := mailer.SendRefundNotice(context.Background(), sampleOrder(), refund); err != nil {
		t.Fatalf("SendRefundNotice: %v", err)
	}

	raw := messageBody(t, sender.messages[0])
	for _, want := range []string{"Refund processed for order ORD-1755684000000-4821", "damaged on arrival"} {
		if !strings.Contains(raw, want) {
			t.Errorf("body missing %q:\n%s", want, raw)
		}
	}
}

func TestSendSkipsBlankRecipient(t *testing.T) {
	sender := &captureSender{}
	mailer, err := NewMailer(MailerDeps{
		From:   "orders@vastrakart.in",
		Sender: sender,
		Recipient: func(ctx context.Context, userID string) (string, error) {
			return "  ", nil
		},
	})
	if err != nil {
		t.Fatalf("NewMailer: %v", err)
	}

	if err := mailer.SendOrderConfirmation(context.Background(), sampleOrder()); err == nil {
		t.Fatal("expected error for blank recipient")
	} else if !strings.Contains(err.Error(), "no recipient") {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(sender.messages))
	}
}
