package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	domain "github.com/vastrakart/api/internal/domain"
)

var (
	// ErrPricingInvalidInput signals bad request data such as missing items or negative prices.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrPricingCouponNotApplicable is returned when a coupon fails eligibility checks.
	ErrPricingCouponNotApplicable = errors.New("pricing: coupon not applicable")
)

const (
	// gstRate is the flat Goods and Services Tax rate applied to the items subtotal.
	gstRate = 0.18

	shippingFeeExpress  = 100.0
	shippingFeeStandard = 50.0
)

// StandardPricingEngine prices order lines with flat-rate GST, tiered
// shipping fees, and additively stacked coupons.
type StandardPricingEngine struct {
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// StandardPricingEngineDeps bundles collaborators for the pricing engine.
type StandardPricingEngineDeps struct {
	Clock  func() time.Time
	Logger func(context.Context, string, map[string]any)
}

// NewStandardPricingEngine constructs the engine, defaulting the clock to UTC now.
func NewStandardPricingEngine(deps StandardPricingEngineDeps) (*StandardPricingEngine, error) {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &StandardPricingEngine{
		clock:  func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

// Quote computes the full monetary breakdown for a set of lines. Coupons are
// validated against the items subtotal and stack additively; the resulting
// discount is clamped so the grand total never goes negative.
func (e *StandardPricingEngine) Quote(ctx context.Context, cmd PricingCommand) (PricingQuote, error) {
	if len(cmd.Items) == 0 {
		return PricingQuote{}, fmt.Errorf("%w: at least one item is required", ErrPricingInvalidInput)
	}
	if cmd.ShippingMethod != domain.ShippingMethodStandard && cmd.ShippingMethod != domain.ShippingMethodExpress {
		return PricingQuote{}, fmt.Errorf("%w: unknown shipping method %q", ErrPricingInvalidInput, cmd.ShippingMethod)
	}

	items := make([]domain.ItemPricing, 0, len(cmd.Items))
	var subtotal float64
	for _, item := range cmd.Items {
		if item.Quantity <= 0 {
			return PricingQuote{}, fmt.Errorf("%w: item %s quantity must be positive", ErrPricingInvalidInput, item.VariantID)
		}
		if item.UnitPrice < 0 {
			return PricingQuote{}, fmt.Errorf("%w: item %s unit price cannot be negative", ErrPricingInvalidInput, item.VariantID)
		}
		lineTotal := roundPaise(item.UnitPrice * float64(item.Quantity))
		subtotal += lineTotal
		items = append(items, domain.ItemPricing{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: lineTotal,
		})
	}
	subtotal = roundPaise(subtotal)

	taxAmount := roundPaise(subtotal * gstRate)
	tax := domain.TaxAmount{
		Amount: taxAmount,
		Details: []domain.TaxLine{
			{Type: "GST", Rate: gstRate * 100, Amount: taxAmount},
		},
	}

	shippingFee := shippingFeeStandard
	if cmd.ShippingMethod == domain.ShippingMethodExpress {
		shippingFee = shippingFeeExpress
	}

	discount, discountLines, err := e.applyCoupons(ctx, subtotal, cmd.Coupons)
	if err != nil {
		return PricingQuote{}, err
	}

	gross := subtotal + taxAmount + shippingFee
	if discount > gross {
		e.logger(ctx, "pricing_discount_clamped", map[string]any{
			"subtotal": subtotal,
			"discount": discount,
		})
		discount = gross
	}
	total := roundPaise(gross - discount)

	return PricingQuote{
		Subtotal:    subtotal,
		Tax:         tax,
		ShippingFee: shippingFee,
		Discount:    roundPaise(discount),
		Total:       total,
		Items:       items,
		Discounts:   discountLines,
	}, nil
}

// applyCoupons validates every coupon against the subtotal and returns the
// additive discount. A single ineligible coupon fails the whole quote so the
// caller never silently drops a code the customer typed.
func (e *StandardPricingEngine) applyCoupons(ctx context.Context, subtotal float64, coupons []Coupon) (float64, []domain.DiscountLine, error) {
	if len(coupons) == 0 {
		return 0, nil, nil
	}

	now := e.clock()
	seen := make(map[string]bool, len(coupons))
	lines := make([]domain.DiscountLine, 0, len(coupons))
	var discount float64

	for _, coupon := range coupons {
		code := strings.ToUpper(strings.TrimSpace(coupon.Code))
		if code == "" {
			return 0, nil, fmt.Errorf("%w: coupon code is required", ErrPricingInvalidInput)
		}
		if seen[code] {
			return 0, nil, fmt.Errorf("%w: coupon %s applied more than once", ErrPricingCouponNotApplicable, code)
		}
		seen[code] = true

		if !coupon.IsActive {
			return 0, nil, fmt.Errorf("%w: coupon %s is inactive", ErrPricingCouponNotApplicable, code)
		}
		if coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt) {
			return 0, nil, fmt.Errorf("%w: coupon %s expired", ErrPricingCouponNotApplicable, code)
		}
		if coupon.MinOrderValue != nil && subtotal < *coupon.MinOrderValue {
			return 0, nil, fmt.Errorf("%w: coupon %s requires a minimum order of %.2f", ErrPricingCouponNotApplicable, code, *coupon.MinOrderValue)
		}

		var amount float64
		switch coupon.Type {
		case domain.CouponTypePercentage:
			if coupon.Value < 0 || coupon.Value > 100 {
				return 0, nil, fmt.Errorf("%w: coupon %s percentage out of range", ErrPricingInvalidInput, code)
			}
			amount = roundPaise(subtotal * coupon.Value / 100)
		case domain.CouponTypeFixed:
			if coupon.Value < 0 {
				return 0, nil, fmt.Errorf("%w: coupon %s amount cannot be negative", ErrPricingInvalidInput, code)
			}
			amount = roundPaise(coupon.Value)
		default:
			return 0, nil, fmt.Errorf("%w: coupon %s has unknown type %q", ErrPricingInvalidInput, code, coupon.Type)
		}

		discount += amount
		lines = append(lines, domain.DiscountLine{
			Code:   code,
			Type:   coupon.Type,
			Value:  coupon.Value,
			Amount: amount,
		})
	}

	return discount, lines, nil
}

// roundPaise rounds a rupee amount to two decimal places.
func roundPaise(amount float64) float64 {
	return math.Round(amount*100) / 100
}
