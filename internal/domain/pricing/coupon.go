package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RejectionCode classifies why a coupon cannot be applied
type RejectionCode string

const (
	RejectNotFound      RejectionCode = "not_found"
	RejectInactive      RejectionCode = "inactive"
	RejectNotYetValid   RejectionCode = "not_yet_valid"
	RejectExpired       RejectionCode = "expired"
	RejectUsageExceeded RejectionCode = "usage_limit_reached"
	RejectMinPurchase   RejectionCode = "min_purchase"
)

// CouponRejection is returned when a coupon is known but not applicable, or
// unknown. Reason is meant to be shown to the cashier unchanged.
type CouponRejection struct {
	Code   RejectionCode
	Reason string
}

func (e *CouponRejection) Error() string {
	return e.Reason
}

// NotFound builds the rejection for an unknown code
func NotFound() *CouponRejection {
	return &CouponRejection{Code: RejectNotFound, Reason: "Invalid coupon code"}
}

// CheckCoupon returns nil when c can be applied to subtotal at now
func CheckCoupon(c Coupon, subtotal decimal.Decimal, now time.Time) *CouponRejection {
	if !c.IsActive {
		return &CouponRejection{Code: RejectInactive, Reason: "Coupon is not active"}
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return &CouponRejection{Code: RejectNotYetValid, Reason: "Coupon is not yet valid"}
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return &CouponRejection{Code: RejectExpired, Reason: "Coupon has expired"}
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return &CouponRejection{Code: RejectUsageExceeded, Reason: "Coupon usage limit reached"}
	}
	if subtotal.LessThan(c.MinPurchase) {
		return BelowMinimum(c)
	}
	return nil
}

// BelowMinimum builds the rejection for a subtotal under c.MinPurchase
func BelowMinimum(c Coupon) *CouponRejection {
	return &CouponRejection{
		Code:   RejectMinPurchase,
		Reason: fmt.Sprintf("Minimum purchase of $%s required", c.MinPurchase.StringFixed(2)),
	}
}

// Apply validates c against subtotal and returns the applied snapshot
func Apply(c Coupon, subtotal decimal.Decimal, now time.Time) (AppliedCoupon, error) {
	if rej := CheckCoupon(c, subtotal, now); rej != nil {
		return AppliedCoupon{}, rej
	}
	return AppliedCoupon{Coupon: c, Discount: CouponDiscount(c, subtotal)}, nil
}
