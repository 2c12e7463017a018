package repository

import (
	"context"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
)

// SettingsRepository defines the interface for business settings access
type SettingsRepository interface {
	// Get returns the settings row, or nil when none exists yet
	Get(ctx context.Context) (*entity.BusinessSettings, error)
	Create(ctx context.Context, settings *entity.BusinessSettings) error
	Update(ctx context.Context, settings *entity.BusinessSettings) error
}
