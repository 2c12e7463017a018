package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
	"github.com/sangkips/repairpos-api/pkg/pagination"
)

// CouponRepository defines the interface for coupon data operations
type CouponRepository interface {
	Create(ctx context.Context, coupon *entity.Coupon) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Coupon, error)
	// GetByCode looks up a canonical (upper-case) code
	GetByCode(ctx context.Context, code string) (*entity.Coupon, error)
	// Update writes the maintained rules. usage_count is never written here.
	Update(ctx context.Context, coupon *entity.Coupon) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params *pagination.PaginationParams, search string, activeOnly bool) ([]entity.Coupon, int64, error)
	// IncrementUsage bumps usage_count only while it is below usage_limit.
	// Returns false when the limit has been reached.
	IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error)
	// ReleaseUsage gives back one use taken by a sale that was cancelled
	ReleaseUsage(ctx context.Context, id uuid.UUID) error
}
