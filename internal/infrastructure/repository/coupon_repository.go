package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
	domainRepo "github.com/sangkips/repairpos-api/internal/domain/repository"
	"github.com/sangkips/repairpos-api/pkg/pagination"
)

type couponRepository struct {
	db *gorm.DB
}

// NewCouponRepository creates a new coupon repository
func NewCouponRepository(db *gorm.DB) domainRepo.CouponRepository {
	return &couponRepository{db: db}
}

func (r *couponRepository) Create(ctx context.Context, coupon *entity.Coupon) error {
	return conn(ctx, r.db).Create(coupon).Error
}

func (r *couponRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Coupon, error) {
	var coupon entity.Coupon
	err := conn(ctx, r.db).First(&coupon, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &coupon, err
}

func (r *couponRepository) GetByCode(ctx context.Context, code string) (*entity.Coupon, error) {
	var coupon entity.Coupon
	err := conn(ctx, r.db).First(&coupon, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &coupon, err
}

// couponEditableColumns are the columns maintenance may change. usage_count
// is owned by IncrementUsage and ReleaseUsage.
var couponEditableColumns = []string{
	"code", "description", "discount_type", "discount_value", "min_purchase",
	"max_discount", "usage_limit", "is_active", "valid_from", "valid_until",
}

func (r *couponRepository) Update(ctx context.Context, coupon *entity.Coupon) error {
	return conn(ctx, r.db).Model(coupon).
		Select(couponEditableColumns).
		Updates(coupon).Error
}

func (r *couponRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return conn(ctx, r.db).Delete(&entity.Coupon{}, "id = ?", id).Error
}

func (r *couponRepository) List(ctx context.Context, params *pagination.PaginationParams, search string, activeOnly bool) ([]entity.Coupon, int64, error) {
	var coupons []entity.Coupon
	var total int64

	query := conn(ctx, r.db).Model(&entity.Coupon{})

	if search != "" {
		query = query.Where("code ILIKE ? OR description ILIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params.Validate()
	err := query.Offset(params.Offset()).Limit(params.PerPage).
		Order("created_at DESC").
		Find(&coupons).Error

	return coupons, total, err
}

// IncrementUsage is a compare-and-increment: the WHERE clause re-checks the
// limit so concurrent checkouts cannot push usage_count past usage_limit.
func (r *couponRepository) IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	result := conn(ctx, r.db).Model(&entity.Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)", id).
		Update("usage_count", gorm.Expr("usage_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *couponRepository) ReleaseUsage(ctx context.Context, id uuid.UUID) error {
	return conn(ctx, r.db).Model(&entity.Coupon{}).
		Where("id = ? AND usage_count > 0", id).
		Update("usage_count", gorm.Expr("usage_count - 1")).Error
}
