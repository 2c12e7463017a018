package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sangkips/repairpos-api/internal/domain/pricing"
)

// BusinessSettings holds the shop-wide tax and loyalty configuration.
// There is a single row.
type BusinessSettings struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// General
	StoreName string `gorm:"size:255" json:"store_name"`
	Currency  string `gorm:"size:10;default:'USD'" json:"currency"`

	// Tax
	TaxEnabled          bool            `gorm:"default:true" json:"tax_enabled"`
	TaxRate             decimal.Decimal `gorm:"type:decimal(6,4);not null;default:0" json:"tax_rate"`
	TaxExemptCategories []string        `gorm:"type:jsonb;serializer:json" json:"tax_exempt_categories"`

	// Loyalty
	PointsEnabled             bool            `gorm:"default:true" json:"points_enabled"`
	PointsPerDollar           decimal.Decimal `gorm:"type:decimal(10,6);not null;default:0.002" json:"points_per_dollar"`
	PointsRedemptionThreshold decimal.Decimal `gorm:"type:decimal(12,2);not null;default:3500" json:"points_redemption_threshold"`
	PointsValue               decimal.Decimal `gorm:"type:decimal(12,2);not null;default:1" json:"points_value"`
}

// BeforeCreate generates a UUID before creating settings
func (s *BusinessSettings) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the BusinessSettings model
func (BusinessSettings) TableName() string {
	return "business_settings"
}

// TaxConfig returns the pricing tax configuration
func (s *BusinessSettings) TaxConfig() pricing.TaxConfig {
	return pricing.TaxConfig{
		Enabled:          s.TaxEnabled,
		Rate:             s.TaxRate,
		ExemptCategories: append([]string(nil), s.TaxExemptCategories...),
	}
}

// PointsConfig returns the pricing loyalty configuration
func (s *BusinessSettings) PointsConfig() pricing.PointsConfig {
	return pricing.PointsConfig{
		Enabled:             s.PointsEnabled,
		PointsPerDollar:     s.PointsPerDollar,
		RedemptionThreshold: s.PointsRedemptionThreshold,
		PointsValue:         s.PointsValue,
	}
}
