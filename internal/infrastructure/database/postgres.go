package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sangkips/repairpos-api/internal/config"
	"github.com/sangkips/repairpos-api/internal/domain/entity"
	"github.com/sangkips/repairpos-api/pkg/logger"
)

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg *config.DatabaseConfig, log *zap.Logger, debug bool) (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if debug {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true, // disables implicit prepared statement usage
	}), &gorm.Config{
		Logger: gormlogger.New(logger.NewPrintfAdapter(log.Named("gorm")), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	log.Info("connected to postgres", zap.String("host", cfg.Host), zap.String("database", cfg.Name))
	return db, nil
}

// AutoMigrate runs GORM auto-migration for all entities
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")

	err := db.AutoMigrate(
		// Catalog
		&entity.Category{},
		&entity.Product{},

		// Loyalty
		&entity.Customer{},

		// Checkout
		&entity.Coupon{},
		&entity.Sale{},
		&entity.SaleItem{},

		// System
		&entity.BusinessSettings{},
		&entity.IdempotencyKey{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("database migrations completed")
	return nil
}

// SeedDefaultData creates the business settings row from config when the
// table is empty. Existing settings are never overwritten.
func SeedDefaultData(db *gorm.DB, pricing config.PricingConfig, log *zap.Logger) error {
	var count int64
	if err := db.Model(&entity.BusinessSettings{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count settings: %w", err)
	}
	if count > 0 {
		return nil
	}

	settings := DefaultSettings(pricing)
	if err := db.Create(settings).Error; err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}

	log.Info("seeded business settings",
		zap.String("currency", settings.Currency),
		zap.Bool("tax_enabled", settings.TaxEnabled),
		zap.Bool("points_enabled", settings.PointsEnabled),
	)
	return nil
}

// DefaultSettings builds a settings row from config
func DefaultSettings(pricing config.PricingConfig) *entity.BusinessSettings {
	return &entity.BusinessSettings{
		Currency:                  pricing.Currency,
		TaxEnabled:                pricing.TaxEnabled,
		TaxRate:                   pricing.TaxRate,
		TaxExemptCategories:       pricing.TaxExemptCategories,
		PointsEnabled:             pricing.PointsEnabled,
		PointsPerDollar:           pricing.PointsPerDollar,
		PointsRedemptionThreshold: pricing.PointsRedemptionThreshold,
		PointsValue:               pricing.PointsValue,
	}
}
