package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
	domainRepo "github.com/sangkips/repairpos-api/internal/domain/repository"
)

type idempotencyRepository struct {
	db *gorm.DB
}

// NewIdempotencyRepository creates a new idempotency repository
func NewIdempotencyRepository(db *gorm.DB) domainRepo.IdempotencyRepository {
	return &idempotencyRepository{db: db}
}

func (r *idempotencyRepository) GetByKey(ctx context.Context, key string, cashierID uuid.UUID) (*entity.IdempotencyKey, error) {
	var ikey entity.IdempotencyKey
	err := conn(ctx, r.db).
		Where("key = ? AND cashier_id = ?", key, cashierID).
		First(&ikey).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &ikey, err
}

// Reserve inserts ikey as an in-flight marker. The unique (key, cashier_id)
// index makes concurrent reservations of the same key race in the database;
// an existing row is only taken over once it has expired.
func (r *idempotencyRepository) Reserve(ctx context.Context, ikey *entity.IdempotencyKey, now time.Time) (bool, error) {
	result := conn(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}, {Name: "cashier_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"endpoint", "response_code", "response_body", "expires_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Lt{Column: clause.Column{Table: "idempotency_keys", Name: "expires_at"}, Value: now},
			}},
		}).
		Create(ikey)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Complete stores the response for a reserved key
func (r *idempotencyRepository) Complete(ctx context.Context, key string, cashierID uuid.UUID, code int, body string, expiresAt time.Time) error {
	return conn(ctx, r.db).Model(&entity.IdempotencyKey{}).
		Where("key = ? AND cashier_id = ?", key, cashierID).
		Updates(map[string]interface{}{
			"response_code": code,
			"response_body": body,
			"expires_at":    expiresAt,
		}).Error
}

// Release drops a reservation so the request can be retried
func (r *idempotencyRepository) Release(ctx context.Context, key string, cashierID uuid.UUID) error {
	return conn(ctx, r.db).
		Where("key = ? AND cashier_id = ?", key, cashierID).
		Delete(&entity.IdempotencyKey{}).Error
}

func (r *idempotencyRepository) DeleteExpired(ctx context.Context, before time.Time) error {
	return conn(ctx, r.db).
		Where("expires_at < ?", before).
		Delete(&entity.IdempotencyKey{}).Error
}
