package request

import (
	"time"

	"github.com/shopspring/decimal"
)

// CouponRequest represents a coupon create or update request
type CouponRequest struct {
	Code          string           `json:"code" binding:"required,max=64"`
	Description   string           `json:"description"`
	DiscountType  string           `json:"discount_type" binding:"required,oneof=percentage fixed"`
	DiscountValue decimal.Decimal  `json:"discount_value"`
	MinPurchase   decimal.Decimal  `json:"min_purchase"`
	MaxDiscount   *decimal.Decimal `json:"max_discount"`
	UsageLimit    *int             `json:"usage_limit" binding:"omitempty,min=0"`
	IsActive      *bool            `json:"is_active"`
	ValidFrom     *time.Time       `json:"valid_from"`
	ValidUntil    *time.Time       `json:"valid_until"`
}

// ValidateCouponRequest asks whether a code applies to a subtotal
type ValidateCouponRequest struct {
	Code     string          `json:"code" binding:"required,max=64"`
	Subtotal decimal.Decimal `json:"subtotal"`
}
