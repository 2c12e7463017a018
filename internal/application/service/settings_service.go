package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
	"github.com/sangkips/repairpos-api/internal/domain/repository"
	"github.com/sangkips/repairpos-api/pkg/apperror"
)

// SettingsService handles the shop-wide tax and loyalty settings
type SettingsService struct {
	settingsRepo repository.SettingsRepository
	defaults     entity.BusinessSettings
}

// NewSettingsService creates a new settings service. defaults is used to
// create the settings row when none exists.
func NewSettingsService(settingsRepo repository.SettingsRepository, defaults *entity.BusinessSettings) *SettingsService {
	s := &SettingsService{settingsRepo: settingsRepo}
	if defaults != nil {
		s.defaults = *defaults
	}
	return s
}

// GetSettings retrieves the settings, creating defaults if none exist
func (s *SettingsService) GetSettings(ctx context.Context) (*entity.BusinessSettings, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	if settings == nil {
		created := s.defaults
		created.TaxExemptCategories = append([]string(nil), s.defaults.TaxExemptCategories...)
		if err := s.settingsRepo.Create(ctx, &created); err != nil {
			return nil, err
		}
		settings = &created
	}

	return settings, nil
}

// UpdateSettingsInput represents the input for updating settings. Nil fields
// are left unchanged.
type UpdateSettingsInput struct {
	StoreName                 *string
	Currency                  *string
	TaxEnabled                *bool
	TaxRate                   *decimal.Decimal
	TaxExemptCategories       []string
	PointsEnabled             *bool
	PointsPerDollar           *decimal.Decimal
	PointsRedemptionThreshold *decimal.Decimal
	PointsValue               *decimal.Decimal
}

// UpdateSettings updates the settings
func (s *SettingsService) UpdateSettings(ctx context.Context, input *UpdateSettingsInput) (*entity.BusinessSettings, error) {
	if errs := validateSettings(input); len(errs) > 0 {
		return nil, apperror.NewValidationError(errs)
	}

	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	if input.StoreName != nil {
		settings.StoreName = *input.StoreName
	}
	if input.Currency != nil {
		settings.Currency = *input.Currency
	}
	if input.TaxEnabled != nil {
		settings.TaxEnabled = *input.TaxEnabled
	}
	if input.TaxRate != nil {
		settings.TaxRate = *input.TaxRate
	}
	if input.TaxExemptCategories != nil {
		settings.TaxExemptCategories = input.TaxExemptCategories
	}
	if input.PointsEnabled != nil {
		settings.PointsEnabled = *input.PointsEnabled
	}
	if input.PointsPerDollar != nil {
		settings.PointsPerDollar = *input.PointsPerDollar
	}
	if input.PointsRedemptionThreshold != nil {
		settings.PointsRedemptionThreshold = *input.PointsRedemptionThreshold
	}
	if input.PointsValue != nil {
		settings.PointsValue = *input.PointsValue
	}

	if err := s.settingsRepo.Update(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func validateSettings(input *UpdateSettingsInput) []apperror.FieldError {
	var errs []apperror.FieldError
	if input.TaxRate != nil && (input.TaxRate.IsNegative() || input.TaxRate.GreaterThan(decimal.NewFromInt(1))) {
		errs = append(errs, apperror.FieldError{Field: "tax_rate", Message: "must be a fraction between 0 and 1"})
	}
	if input.PointsPerDollar != nil && input.PointsPerDollar.IsNegative() {
		errs = append(errs, apperror.FieldError{Field: "points_per_dollar", Message: "must not be negative"})
	}
	if input.PointsRedemptionThreshold != nil && input.PointsRedemptionThreshold.IsNegative() {
		errs = append(errs, apperror.FieldError{Field: "points_redemption_threshold", Message: "must not be negative"})
	}
	if input.PointsValue != nil && !input.PointsValue.IsPositive() {
		errs = append(errs, apperror.FieldError{Field: "points_value", Message: "must be greater than zero"})
	}
	if input.Currency != nil && len(*input.Currency) != 3 {
		errs = append(errs, apperror.FieldError{Field: "currency", Message: "must be a 3-letter ISO code"})
	}
	return errs
}
