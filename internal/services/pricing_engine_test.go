package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/vastrakart/api/internal/domain"
)

func newTestPricingEngine(t *testing.T, now time.Time) *StandardPricingEngine {
	t.Helper()
	engine, err := NewStandardPricingEngine(StandardPricingEngineDeps{
		Clock: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new pricing engine: %v", err)
	}
	return engine
}

func TestPricingEngineStandardShipping(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	engine := newTestPricingEngine(t, now)

	quote, err := engine.Quote(ctx, PricingCommand{
		Items: []PricingItem{
			{VariantID: "var-1", ProductID: "prod-1", UnitPrice: 500, Quantity: 2},
		},
		ShippingMethod: domain.ShippingMethodStandard,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	if quote.Subtotal != 1000 {
		t.Fatalf("expected subtotal 1000 got %.2f", quote.Subtotal)
	}
	if quote.Tax.Amount != 180 {
		t.Fatalf("expected tax 180 got %.2f", quote.Tax.Amount)
	}
	if len(quote.Tax.Details) != 1 || quote.Tax.Details[0].Type != "GST" || quote.Tax.Details[0].Rate != 18 {
		t.Fatalf("expected single GST line at 18%%, got %#v", quote.Tax.Details)
	}
	if quote.ShippingFee != 50 {
		t.Fatalf("expected shipping fee 50 got %.2f", quote.ShippingFee)
	}
	if quote.Discount != 0 {
		t.Fatalf("expected no discount got %.2f", quote.Discount)
	}
	if quote.Total != 1230 {
		t.Fatalf("expected total 1230 got %.2f", quote.Total)
	}
	if len(quote.Items) != 1 || quote.Items[0].LineTotal != 1000 {
		t.Fatalf("expected one line with total 1000, got %#v", quote.Items)
	}
}

func TestPricingEngineExpressShipping(t *testing.T) {
	ctx := context.Background()
	engine := newTestPricingEngine(t, time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))

	quote, err := engine.Quote(ctx, PricingCommand{
		Items: []PricingItem{
			{VariantID: "var-1", UnitPrice: 250, Quantity: 1},
		},
		ShippingMethod: domain.ShippingMethodExpress,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.ShippingFee != 100 {
		t.Fatalf("expected express shipping fee 100 got %.2f", quote.ShippingFee)
	}
	if quote.Total != 395 {
		t.Fatalf("expected total 395 got %.2f", quote.Total)
	}
}

func TestPricingEngineStackedCoupons(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	engine := newTestPricingEngine(t, now)

	quote, err := engine.Quote(ctx, PricingCommand{
		Items: []PricingItem{
			{VariantID: "var-1", UnitPrice: 500, Quantity: 2},
		},
		ShippingMethod: domain.ShippingMethodStandard,
		Coupons: []Coupon{
			{Code: "TEN", Type: domain.CouponTypePercentage, Value: 10, IsActive: true},
			{Code: "FLAT50", Type: domain.CouponTypeFixed, Value: 50, IsActive: true},
		},
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	if quote.Discount != 150 {
		t.Fatalf("expected stacked discount 150 got %.2f", quote.Discount)
	}
	if quote.Total != 1080 {
		t.Fatalf("expected total 1080 got %.2f", quote.Total)
	}
	if len(quote.Discounts) != 2 {
		t.Fatalf("expected two discount lines got %d", len(quote.Discounts))
	}
	if quote.Discounts[0].Code != "TEN" || quote.Discounts[0].Amount != 100 {
		t.Fatalf("unexpected percentage line %#v", quote.Discounts[0])
	}
	if quote.Discounts[1].Code != "FLAT50" || quote.Discounts[1].Amount != 50 {
		t.Fatalf("unexpected fixed line %#v", quote.Discounts[1])
	}
}

func TestPricingEngineDiscountClampedAtGross(t *testing.T) {
	ctx := context.Background()
	engine := newTestPricingEngine(t, time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))

	quote, err := engine.Quote(ctx, PricingCommand{
		Items: []PricingItem{
			{VariantID: "var-1", UnitPrice: 100, Quantity: 1},
		},
		ShippingMethod: domain.ShippingMethodStandard,
		Coupons: []Coupon{
			{Code: "BIG", Type: domain.CouponTypeFixed, Value: 500, IsActive: true},
		},
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	// gross = 100 + 18 + 50; the discount cannot push the total below zero.
	if quote.Discount != 168 {
		t.Fatalf("expected discount clamped to 168 got %.2f", quote.Discount)
	}
	if quote.Total != 0 {
		t.Fatalf("expected total 0 got %.2f", quote.Total)
	}
}

func TestPricingEngineCouponCodeNormalised(t *testing.T) {
	ctx := context.Background()
	engine := newTestPricingEngine(t, time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))

	quote, err := engine.Quote(ctx, PricingCommand{
		Items: []PricingItem{
			{VariantID: "var-1", UnitPrice: 200, Quantity: 1},
		},
		ShippingMethod: domain.ShippingMethodStandard,
		Coupons: []Coupon{
			{Code: " ten ", Type: domain.CouponTypePercentage, Value: 10, IsActive: true},
		},
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.Discounts[0].Code != "TEN" {
		t.Fatalf("expected normalised code TEN got %s", quote.Discounts[0].Code)
	}
}

func TestPricingEngineCouponRejections(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)
	minOrder := 5000.0

	cases := []struct {
		name    string
		coupons []Coupon
		wantErr error
	}{
		{
			name: "inactive",
			coupons: []Coupon{
				{Code: "OFF", Type: domain.CouponTypePercentage, Value: 10},
			},
			wantErr: ErrPricingCouponNotApplicable,
		},
		{
			name: "expired",
			coupons: []Coupon{
				{Code: "OLD", Type: domain.CouponTypeFixed, Value: 50, IsActive: true, ExpiresAt: &expired},
			},
			wantErr: ErrPricingCouponNotApplicable,
		},
		{
			name: "below minimum order",
			coupons: []Coupon{
				{Code: "BULK", Type: domain.CouponTypeFixed, Value: 50, IsActive: true, MinOrderValue: &minOrder},
			},
			wantErr: ErrPricingCouponNotApplicable,
		},
		{
			name: "duplicate code",
			coupons: []Coupon{
				{Code: "TEN", Type: domain.CouponTypePercentage, Value: 10, IsActive: true},
				{Code: "ten", Type: domain.CouponTypePercentage, Value: 10, IsActive: true},
			},
			wantErr: ErrPricingCouponNotApplicable,
		},
		{
			name: "percentage out of range",
			coupons: []Coupon{
				{Code: "ALL", Type: domain.CouponTypePercentage, Value: 150, IsActive: true},
			},
			wantErr: ErrPricingInvalidInput,
		},
		{
			name: "unknown type",
			coupons: []Coupon{
				{Code: "ODD", Type: domain.CouponType("BOGO"), Value: 1, IsActive: true},
			},
			wantErr: ErrPricingInvalidInput,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newTestPricingEngine(t, now)
			_, err := engine.Quote(context.Background(), PricingCommand{
				Items: []PricingItem{
					{VariantID: "var-1", UnitPrice: 500, Quantity: 2},
				},
				ShippingMethod: domain.ShippingMethodStandard,
				Coupons:        tc.coupons,
			})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v got %v", tc.wantErr, err)
			}
		})
	}
}

func TestPricingEngineInvalidInput(t *testing.T) {
	ctx := context.Background()
	engine := newTestPricingEngine(t, time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))

	cases := []struct {
		name string
		cmd  PricingCommand
	}{
		{
			name: "no items",
			cmd:  PricingCommand{ShippingMethod: domain.ShippingMethodStandard},
		},
		{
			name: "unknown shipping method",
			cmd: PricingCommand{
				Items:          []PricingItem{{VariantID: "var-1", UnitPrice: 10, Quantity: 1}},
				ShippingMethod: domain.ShippingMethod("Drone"),
			},
		},
		{
			name: "zero quantity",
			cmd: PricingCommand{
				Items:          []PricingItem{{VariantID: "var-1", UnitPrice: 10, Quantity: 0}},
				ShippingMethod: domain.ShippingMethodStandard,
			},
		},
		{
			name: "negative price",
			cmd: PricingCommand{
				Items:          []PricingItem{{VariantID: "var-1", UnitPrice: -5, Quantity: 1}},
				ShippingMethod: domain.ShippingMethodStandard,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.Quote(ctx, tc.cmd); !errors.Is(err, ErrPricingInvalidInput) {
				t.Fatalf("expected ErrPricingInvalidInput got %v", err)
			}
		})
	}
}

func TestPricingEnginePaiseRounding(t *testing.T) {
	ctx := context.Background()
	engine := newTestPricingEngine(t, time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))

	quote, err := engine.Quote(ctx, PricingCommand{
		Items: []PricingItem{
			{VariantID: "var-1", UnitPrice: 33.33, Quantity: 3},
		},
		ShippingMethod: domain.ShippingMethodStandard,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.Items[0].LineTotal != 99.99 {
		t.Fatalf("expected line total rounded to 99.99 got %.4f", quote.Items[0].LineTotal)
	}
	if quote.Tax.Amount != 18.00 {
		t.Fatalf("expected tax 18.00 got %.4f", quote.Tax.Amount)
	}
}
