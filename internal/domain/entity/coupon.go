package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sangkips/repairpos-api/internal/domain/enum"
	"github.com/sangkips/repairpos-api/internal/domain/pricing"
)

// Coupon represents a discount code maintained by the shop
type Coupon struct {
	ID            uuid.UUID         `gorm:"type:uuid;primary_key" json:"id"`
	Code          string            `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Description   string            `gorm:"type:text" json:"description"`
	DiscountType  enum.DiscountType `gorm:"not null;default:0" json:"discount_type"`
	DiscountValue decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"discount_value"`
	MinPurchase   decimal.Decimal   `gorm:"type:decimal(12,2);not null;default:0" json:"min_purchase"`
	MaxDiscount   *decimal.Decimal  `gorm:"type:decimal(12,2)" json:"max_discount,omitempty"`
	UsageLimit    *int              `json:"usage_limit,omitempty"`
	UsageCount    int               `gorm:"not null;default:0" json:"usage_count"`
	IsActive      bool              `gorm:"not null;default:true" json:"is_active"`
	ValidFrom     *time.Time        `json:"valid_from,omitempty"`
	ValidUntil    *time.Time        `json:"valid_until,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	DeletedAt     gorm.DeletedAt    `gorm:"index" json:"-"`
}

// BeforeCreate generates a UUID and canonicalises the code
func (c *Coupon) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Code = pricing.NormalizeCode(c.Code)
	return nil
}

// TableName returns the table name for the Coupon model
func (Coupon) TableName() string {
	return "coupons"
}

// ToPricing converts the row into the pricing engine's coupon
func (c *Coupon) ToPricing() pricing.Coupon {
	return pricing.Coupon{
		ID:            c.ID.String(),
		Code:          c.Code,
		Description:   c.Description,
		DiscountType:  c.DiscountType,
		DiscountValue: c.DiscountValue,
		MinPurchase:   c.MinPurchase,
		MaxDiscount:   c.MaxDiscount,
		UsageLimit:    c.UsageLimit,
		UsageCount:    c.UsageCount,
		IsActive:      c.IsActive,
		ValidFrom:     c.ValidFrom,
		ValidUntil:    c.ValidUntil,
	}
}
