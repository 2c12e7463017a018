package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/sangkips/repairpos-api/internal/domain/enum"
)

// Input groups everything ComputeTotals reads
type Input struct {
	Lines       []Line
	Tax         TaxConfig
	Catalog     CatalogLookup
	Coupon      *AppliedCoupon
	PointsToUse int64
	Points      PointsConfig
}

// ComputeTotals derives the totals breakdown for a cart. It never fails and
// never returns a negative total. Amounts are not rounded; use
// Breakdown.Rounded for display or persistence.
func ComputeTotals(in Input) Breakdown {
	var b Breakdown

	b.Subtotal = decimal.Zero
	b.TaxableSubtotal = decimal.Zero
	for _, line := range in.Lines {
		sub := line.Subtotal()
		b.Subtotal = b.Subtotal.Add(sub)
		if !in.Tax.IsExempt(categoryOf(in.Catalog, line.ItemID)) {
			b.TaxableSubtotal = b.TaxableSubtotal.Add(sub)
		}
	}

	b.Tax = decimal.Zero
	if in.Tax.Enabled {
		b.Tax = b.TaxableSubtotal.Mul(in.Tax.Rate)
	}

	b.CouponDiscount = decimal.Zero
	if in.Coupon != nil {
		if b.Subtotal.LessThan(in.Coupon.Coupon.MinPurchase) {
			b.CouponDropped = true
		} else {
			b.CouponDiscount = CouponDiscount(in.Coupon.Coupon, b.Subtotal)
		}
	}

	remaining := nonNegative(b.Subtotal.Add(b.Tax).Sub(b.CouponDiscount))

	b.PointsDiscount = decimal.Zero
	if in.PointsToUse > 0 {
		b.PointsDiscount = nonNegative(decimal.NewFromInt(in.PointsToUse).Mul(in.Points.PointsValue))
		if b.PointsDiscount.GreaterThan(remaining) {
			b.PointsDiscount = remaining
		}
	}

	b.Total = nonNegative(remaining.Sub(b.PointsDiscount))

	if in.Points.Enabled {
		b.PointsEarned = b.Total.Mul(in.Points.PointsPerDollar).Floor().IntPart()
	}

	return b
}

// CouponDiscount applies the discount rule of c to subtotal. Minimum purchase
// is not checked here.
func CouponDiscount(c Coupon, subtotal decimal.Decimal) decimal.Decimal {
	switch c.DiscountType {
	case enum.DiscountTypeFixed:
		return decimal.Min(nonNegative(c.DiscountValue), nonNegative(subtotal))
	default:
		discount := subtotal.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscount != nil && discount.GreaterThan(*c.MaxDiscount) {
			discount = *c.MaxDiscount
		}
		return nonNegative(discount)
	}
}

// MaxRedeemablePoints is the most points a customer may put towards the sale
// described by b: bounded by the balance and by what is left to pay after tax
// and coupon.
func MaxRedeemablePoints(loyalty LoyaltyState, b Breakdown, cfg PointsConfig) int64 {
	if !cfg.Enabled || !loyalty.CanRedeem || loyalty.PointsBalance <= 0 || !cfg.PointsValue.IsPositive() {
		return 0
	}
	remaining := b.Subtotal.Add(b.Tax).Sub(b.CouponDiscount)
	if !remaining.IsPositive() {
		return 0
	}
	limit := remaining.Div(cfg.PointsValue).Floor().IntPart()
	if loyalty.PointsBalance < limit {
		limit = loyalty.PointsBalance
	}
	return limit
}

// ClampPoints bounds requested to [0, MaxRedeemablePoints]
func ClampPoints(requested int64, loyalty LoyaltyState, b Breakdown, cfg PointsConfig) int64 {
	if requested <= 0 {
		return 0
	}
	if limit := MaxRedeemablePoints(loyalty, b, cfg); requested > limit {
		return limit
	}
	return requested
}

func categoryOf(lookup CatalogLookup, itemID string) string {
	if lookup == nil {
		return ""
	}
	item, ok := lookup(itemID)
	if !ok {
		return ""
	}
	return item.Category
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
