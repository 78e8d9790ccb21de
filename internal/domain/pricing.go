package domain

// PricingQuote captures the aggregated monetary results of pricing a set of
// order lines. All amounts are rupees rounded to paise.
type PricingQuote struct {
	Subtotal    float64
	Tax         TaxAmount
	ShippingFee float64
	Discount    float64
	Total       float64
	Items       []ItemPricing
	Discounts   []DiscountLine
}

// ItemPricing stores the per-line pricing outputs after running the engine.
type ItemPricing struct {
	VariantID string
	Quantity  int
	UnitPrice float64
	LineTotal float64
}

// DiscountLine lists an individual coupon adjustment applied to the quote.
type DiscountLine struct {
	Code   string
	Type   CouponType
	Value  float64
	Amount float64
}
