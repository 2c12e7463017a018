package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
	domainRepo "github.com/sangkips/repairpos-api/internal/domain/repository"
)

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *gorm.DB) domainRepo.SettingsRepository {
	return &settingsRepository{db: db}
}

// Get retrieves the oldest settings row
func (r *settingsRepository) Get(ctx context.Context) (*entity.BusinessSettings, error) {
	var settings entity.BusinessSettings
	err := conn(ctx, r.db).Order("created_at ASC").First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Create creates the settings row
func (r *settingsRepository) Create(ctx context.Context, settings *entity.BusinessSettings) error {
	return conn(ctx, r.db).Create(settings).Error
}

// Update updates the settings row
func (r *settingsRepository) Update(ctx context.Context, settings *entity.BusinessSettings) error {
	return conn(ctx, r.db).Save(settings).Error
}
