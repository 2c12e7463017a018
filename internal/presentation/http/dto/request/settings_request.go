package request

import "github.com/shopspring/decimal"

// UpdateSettingsRequest represents a settings update. Omitted fields are kept.
type UpdateSettingsRequest struct {
	StoreName                 *string          `json:"store_name" binding:"omitempty,max=255"`
	Currency                  *string          `json:"currency"`
	TaxEnabled                *bool            `json:"tax_enabled"`
	TaxRate                   *decimal.Decimal `json:"tax_rate"`
	TaxExemptCategories       []string         `json:"tax_exempt_categories"`
	PointsEnabled             *bool            `json:"points_enabled"`
	PointsPerDollar           *decimal.Decimal `json:"points_per_dollar"`
	PointsRedemptionThreshold *decimal.Decimal `json:"points_redemption_threshold"`
	PointsValue               *decimal.Decimal `json:"points_value"`
}
