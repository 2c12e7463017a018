package response

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
	"github.com/sangkips/repairpos-api/internal/domain/enum"
	"github.com/sangkips/repairpos-api/internal/domain/pricing"
)

// QuoteLine is a priced cart line
type QuoteLine struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// AppliedCoupon is the coupon held by a checkout
type AppliedCoupon struct {
	ID            string            `json:"id"`
	Code          string            `json:"code"`
	Description   string            `json:"description,omitempty"`
	DiscountType  enum.DiscountType `json:"discount_type"`
	DiscountValue decimal.Decimal   `json:"discount_value"`
	Discount      decimal.Decimal   `json:"discount"`
}

// Loyalty is a customer's points standing
type Loyalty struct {
	CustomerID    string          `json:"customer_id"`
	Name          string          `json:"name,omitempty"`
	AccountNumber string          `json:"account_number,omitempty"`
	PointsBalance int64           `json:"points_balance"`
	LifetimeSpend decimal.Decimal `json:"lifetime_spend"`
	CanRedeem     bool            `json:"can_redeem"`
}

// NewLoyalty builds the loyalty view of a customer
func NewLoyalty(customer *entity.Customer, state pricing.LoyaltyState) Loyalty {
	out := Loyalty{
		CustomerID:    customer.ID.String(),
		Name:          customer.Name,
		PointsBalance: state.PointsBalance,
		LifetimeSpend: state.LifetimeSpend,
		CanRedeem:     state.CanRedeem,
	}
	if customer.AccountNumber != nil {
		out.AccountNumber = *customer.AccountNumber
	}
	return out
}

// Quote is the server-computed state of a checkout
type Quote struct {
	Lines          []QuoteLine       `json:"lines"`
	Totals         pricing.Breakdown `json:"totals"`
	Coupon         *AppliedCoupon    `json:"coupon,omitempty"`
	CouponMessage  string            `json:"coupon_message,omitempty"`
	Customer       *Loyalty          `json:"customer,omitempty"`
	PointsToUse    int64             `json:"points_to_use"`
	MaxPointsToUse int64             `json:"max_points_to_use"`
	Warnings       []string          `json:"warnings,omitempty"`
}

// Checkout is the result of submitting a sale
type Checkout struct {
	Sale        *entity.Sale `json:"sale"`
	RedirectURL string       `json:"redirect_url,omitempty"`
	Quote       *Quote       `json:"quote"`
}

// CatalogItem is what checkout needs to know about an item
type CatalogItem struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Code      string          `json:"code"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	InStock   int             `json:"in_stock"`
}

// NewAppliedCoupon converts a pricing snapshot for the API
func NewAppliedCoupon(a pricing.AppliedCoupon) *AppliedCoupon {
	return &AppliedCoupon{
		ID:            a.Coupon.ID,
		Code:          a.Coupon.Code,
		Description:   a.Coupon.Description,
		DiscountType:  a.Coupon.DiscountType,
		DiscountValue: a.Coupon.DiscountValue,
		Discount:      a.Discount.Round(2),
	}
}

// NewCatalogItem converts a product for the API
func NewCatalogItem(p *entity.Product) CatalogItem {
	return CatalogItem{
		ID:        p.ID,
		Name:      p.Name,
		Code:      p.Code,
		Category:  p.CategoryName(),
		UnitPrice: p.SellingPrice,
		InStock:   p.Quantity,
	}
}
