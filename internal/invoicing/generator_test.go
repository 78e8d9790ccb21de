package invoicing

import (
	"html/template"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	domain "github.com/vastrakart/api/internal/domain"
	"github.com/vastrakart/api/internal/services"
)

func newRenderOnlyGenerator(t *testing.T) *Generator {
	t.Helper()
	tmpl, err := template.New("invoice").Parse(invoiceTemplate)
	if err != nil {
		t.Fatalf("parse template: %v", err)
	}
	return &Generator{
		printer: message.NewPrinter(language.MustParse("en-IN")),
		tmpl:    tmpl,
	}
}

func TestRenderIncludesTotalsAndAddress(t *testing.T) {
	g := newRenderOnlyGenerator(t)

	order := services.Order{
		ID:      "ord_1",
		OrderID: "ORD-1756000000000-ABC123",
		Items: []services.OrderItem{
			{Title: "Banarasi Silk Saree", Color: "Maroon", Size: "Free", Quantity: 2, UnitPrice: 500, LineTotal: 1000},
		},
		Pricing: services.OrderPricing{
			Subtotal:    1000,
			Tax:         domain.TaxAmount{Amount: 180, Details: []domain.TaxLine{{Type: "GST", Rate: 18, Amount: 180}}},
			ShippingFee: 50,
			TotalAmount: 1230,
		},
		ShippingAddress: services.Address{
			Name:       "Asha Verma",
			Line1:      "14 MG Road",
			City:       "Bengaluru",
			State:      "Karnataka",
			PostalCode: "560001",
			Country:    "India",
		},
		Payment:   services.PaymentDetails{Method: domain.PaymentMethodCOD},
		CreatedAt: time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC),
	}

	body, err := g.render(order, "INV-202508-000001", time.Date(2025, 8, 21, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	html := string(body)
	for _, want := range []string{
		"INV-202508-000001",
		"ORD-1756000000000-ABC123",
		"Banarasi Silk Saree",
		"GST (18%)",
		"₹1,230.00",
		"₹1,000.00",
		"Asha Verma",
		"Bengaluru, Karnataka, 560001",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected rendered invoice to contain %q", want)
		}
	}
	if strings.Contains(html, "Discount") {
		t.Errorf("expected no discount row when discount is zero")
	}
}

func TestRenderShowsDiscountRow(t *testing.T) {
	g := newRenderOnlyGenerator(t)

	order := services.Order{
		ID:      "ord_2",
		OrderID: "ORD-1756000000001-XYZ789",
		Items: []services.OrderItem{
			{Title: "Kurta Set", Quantity: 1, UnitPrice: 1000, LineTotal: 1000},
		},
		Pricing: services.OrderPricing{
			Subtotal:    1000,
			Tax:         domain.TaxAmount{Amount: 180},
			ShippingFee: 50,
			Discount:    150,
			TotalAmount: 1080,
		},
		ShippingAddress: services.Address{Name: "R Iyer", Line1: "2 Beach Rd", City: "Chennai", PostalCode: "600004"},
		Payment:         services.PaymentDetails{Method: domain.PaymentMethodUPI},
		CreatedAt:       time.Date(2025, 8, 20, 10, 0, 0, 0, time.UTC),
	}

	body, err := g.render(order, "INV-202508-000002", time.Date(2025, 8, 21, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	html := string(body)
	if !strings.Contains(html, "Discount") {
		t.Fatalf("expected discount row")
	}
	if !strings.Contains(html, "₹150.00") {
		t.Fatalf("expected formatted discount amount")
	}
}
