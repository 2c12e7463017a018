package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sangkips/repairpos-api/internal/domain/enum"
)

// Sale represents a finalized checkout
type Sale struct {
	ID               uuid.UUID          `gorm:"type:uuid;primary_key" json:"id"`
	ReceiptNo        string             `gorm:"size:100;unique;not null" json:"receipt_no"`
	CreatedBy        uuid.UUID          `gorm:"type:uuid;index" json:"created_by"`
	CustomerID       *uuid.UUID         `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	CustomerName     string             `gorm:"size:255" json:"customer_name,omitempty"`
	PaymentMethod    enum.PaymentMethod `gorm:"not null;default:0" json:"payment_method"`
	Status           enum.SaleStatus    `gorm:"not null;default:0;index" json:"status"`
	Subtotal         decimal.Decimal    `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	TaxableSubtotal  decimal.Decimal    `gorm:"type:decimal(12,2);not null" json:"taxable_subtotal"`
	Tax              decimal.Decimal    `gorm:"type:decimal(12,2);not null" json:"tax"`
	CouponID         *uuid.UUID         `gorm:"type:uuid" json:"coupon_id,omitempty"`
	CouponCode       string             `gorm:"size:64" json:"coupon_code,omitempty"`
	CouponDiscount   decimal.Decimal    `gorm:"type:decimal(12,2);not null;default:0" json:"coupon_discount"`
	PointsUsed       int64              `gorm:"not null;default:0" json:"points_used"`
	PointsDiscount   decimal.Decimal    `gorm:"type:decimal(12,2);not null;default:0" json:"points_discount"`
	PointsEarned     int64              `gorm:"not null;default:0" json:"points_earned"`
	Total            decimal.Decimal    `gorm:"type:decimal(12,2);not null" json:"total"`
	GatewaySessionID *string            `gorm:"size:255;index" json:"gateway_session_id,omitempty"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	DeletedAt        gorm.DeletedAt     `gorm:"index" json:"-"`

	Items []SaleItem `gorm:"foreignKey:SaleID" json:"items,omitempty"`
}

// BeforeCreate generates a UUID before creating a new sale
func (s *Sale) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Sale model
func (Sale) TableName() string {
	return "sales"
}

// IsPending reports whether the sale awaits payment confirmation
func (s *Sale) IsPending() bool {
	return s.Status == enum.SaleStatusPending
}

// SaleItem is a line of a sale. Prices are copied at checkout time.
type SaleItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	SaleID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"sale_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	ItemName  string          `gorm:"size:255;not null" json:"item_name"`
	Category  string          `gorm:"size:255" json:"category,omitempty"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	CreatedAt time.Time       `json:"created_at"`
}

// BeforeCreate generates a UUID before creating a new sale item
func (si *SaleItem) BeforeCreate(tx *gorm.DB) error {
	if si.ID == uuid.Nil {
		si.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the SaleItem model
func (SaleItem) TableName() string {
	return "sale_items"
}
