// Package pricing computes sale totals from a cart, tax configuration, an
// optional coupon and a loyalty points request. Everything here is pure:
// no I/O, no clocks read implicitly, no global state.
package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sangkips/repairpos-api/internal/domain/enum"
)

var hundred = decimal.NewFromInt(100)

// CatalogItem is what the pricing engine needs to know about a product
type CatalogItem struct {
	Category  string
	UnitPrice decimal.Decimal
}

// CatalogLookup resolves an item id. ok is false for unknown items.
type CatalogLookup func(itemID string) (item CatalogItem, ok bool)

// Line is a single cart line
type Line struct {
	ItemID    string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns quantity × unit price
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// TaxConfig holds the sales tax settings for a checkout session
type TaxConfig struct {
	Enabled          bool
	Rate             decimal.Decimal
	ExemptCategories []string
}

// IsExempt reports whether category is excluded from tax
func (c TaxConfig) IsExempt(category string) bool {
	category = normalizeCategory(category)
	if category == "" {
		return false
	}
	for _, exempt := range c.ExemptCategories {
		if normalizeCategory(exempt) == category {
			return true
		}
	}
	return false
}

// PointsConfig holds the loyalty programme settings
type PointsConfig struct {
	Enabled             bool
	PointsPerDollar     decimal.Decimal
	RedemptionThreshold decimal.Decimal
	PointsValue         decimal.Decimal
}

// DefaultPointsConfig returns one point per $500 spent, redeemable at $1 per
// point once the customer has spent $3,500.
func DefaultPointsConfig() PointsConfig {
	return PointsConfig{
		Enabled:             true,
		PointsPerDollar:     decimal.RequireFromString("0.002"),
		RedemptionThreshold: decimal.NewFromInt(3500),
		PointsValue:         decimal.NewFromInt(1),
	}
}

// CanRedeem reports whether lifetimeSpend has crossed the redemption threshold
func (c PointsConfig) CanRedeem(lifetimeSpend decimal.Decimal) bool {
	return lifetimeSpend.GreaterThanOrEqual(c.RedemptionThreshold)
}

// Coupon is a discount code as known to the coupon directory
type Coupon struct {
	ID            string
	Code          string
	Description   string
	DiscountType  enum.DiscountType
	DiscountValue decimal.Decimal
	MinPurchase   decimal.Decimal
	MaxDiscount   *decimal.Decimal
	UsageLimit    *int
	UsageCount    int
	IsActive      bool
	ValidFrom     *time.Time
	ValidUntil    *time.Time
}

// AppliedCoupon is a validated coupon attached to an in-progress sale
type AppliedCoupon struct {
	Coupon   Coupon
	Discount decimal.Decimal
}

// LoyaltyState is a customer's standing in the loyalty ledger
type LoyaltyState struct {
	PointsBalance int64
	LifetimeSpend decimal.Decimal
	CanRedeem     bool
}

// Breakdown is the full decomposition of a cart total
type Breakdown struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxableSubtotal decimal.Decimal `json:"taxable_subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	CouponDiscount  decimal.Decimal `json:"coupon_discount"`
	PointsDiscount  decimal.Decimal `json:"points_discount"`
	PointsEarned    int64           `json:"points_earned"`
	Total           decimal.Decimal `json:"total"`

	// CouponDropped is set when a coupon was supplied but the subtotal is
	// below its minimum purchase. The caller must evict the coupon.
	CouponDropped bool `json:"coupon_dropped,omitempty"`
}

// Rounded returns a copy with every money field rounded to cents
func (b Breakdown) Rounded() Breakdown {
	b.Subtotal = b.Subtotal.Round(2)
	b.TaxableSubtotal = b.TaxableSubtotal.Round(2)
	b.Tax = b.Tax.Round(2)
	b.CouponDiscount = b.CouponDiscount.Round(2)
	b.PointsDiscount = b.PointsDiscount.Round(2)
	b.Total = b.Total.Round(2)
	return b
}

// NormalizeCode canonicalizes a coupon code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
