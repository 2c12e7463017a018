package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
	"github.com/sangkips/repairpos-api/internal/domain/enum"
	"github.com/sangkips/repairpos-api/internal/domain/pricing"
	"github.com/sangkips/repairpos-api/internal/domain/repository"
	"github.com/sangkips/repairpos-api/internal/infrastructure/metrics"
	"github.com/sangkips/repairpos-api/pkg/apperror"
	"github.com/sangkips/repairpos-api/pkg/logger"
	"github.com/sangkips/repairpos-api/pkg/pagination"
)

// CouponService is the coupon directory: validation for checkout plus
// maintenance of the coupon list
type CouponService struct {
	couponRepo repository.CouponRepository
	cache      *couponCache
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewCouponService creates a new coupon service. Lookups are cached for
// cacheTTL; zero disables the cache.
func NewCouponService(couponRepo repository.CouponRepository, cacheTTL time.Duration, m *metrics.Metrics, logger *zap.Logger) *CouponService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CouponService{
		couponRepo: couponRepo,
		cache:      newCouponCache(cacheTTL),
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Validate checks code against subtotal. Unknown or inapplicable coupons
// return a *pricing.CouponRejection; any other error means the directory
// could not be read.
func (s *CouponService) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (pricing.AppliedCoupon, error) {
	code = pricing.NormalizeCode(code)
	if code == "" {
		s.metrics.CouponValidated(metrics.CouponRejected)
		return pricing.AppliedCoupon{}, pricing.NotFound()
	}

	coupon, err := s.lookup(ctx, code)
	if err != nil {
		s.metrics.CouponValidated(metrics.CouponUnavailable)
		logger.FromContext(ctx, s.logger).Warn("coupon lookup failed", zap.String("code", code), zap.Error(err))
		return pricing.AppliedCoupon{}, fmt.Errorf("coupon lookup: %w", err)
	}
	if coupon == nil {
		s.metrics.CouponValidated(metrics.CouponRejected)
		return pricing.AppliedCoupon{}, pricing.NotFound()
	}

	applied, err := pricing.Apply(coupon.ToPricing(), subtotal, s.now())
	if err != nil {
		s.metrics.CouponValidated(metrics.CouponRejected)
		return pricing.AppliedCoupon{}, err
	}

	s.metrics.CouponValidated(metrics.CouponApplied)
	return applied, nil
}

func (s *CouponService) lookup(ctx context.Context, code string) (*entity.Coupon, error) {
	now := s.now()
	if coupon, ok := s.cache.get(code, now); ok {
		return coupon, nil
	}
	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	s.cache.set(code, coupon, now)
	return coupon, nil
}

// Consume records one use of a coupon. It fails when the usage limit was
// reached since validation.
func (s *CouponService) Consume(ctx context.Context, id uuid.UUID, code string) error {
	ok, err := s.couponRepo.IncrementUsage(ctx, id)
	if err != nil {
		return err
	}
	s.cache.invalidate(pricing.NormalizeCode(code))
	if !ok {
		return apperror.NewConflictError("Coupon usage limit reached")
	}
	return nil
}

// Release gives back one use of a coupon consumed by a sale that was later
// cancelled
func (s *CouponService) Release(ctx context.Context, id uuid.UUID, code string) error {
	if err := s.couponRepo.ReleaseUsage(ctx, id); err != nil {
		return err
	}
	s.cache.invalidate(pricing.NormalizeCode(code))
	return nil
}

// CouponInput represents the create/update coupon input
type CouponInput struct {
	Code          string
	Description   string
	DiscountType  enum.DiscountType
	DiscountValue decimal.Decimal
	MinPurchase   decimal.Decimal
	MaxDiscount   *decimal.Decimal
	UsageLimit    *int
	IsActive      bool
	ValidFrom     *time.Time
	ValidUntil    *time.Time
}

// CreateCoupon creates a new coupon
func (s *CouponService) CreateCoupon(ctx context.Context, input *CouponInput) (*entity.Coupon, error) {
	input.Code = pricing.NormalizeCode(input.Code)
	if errs := validateCoupon(input); len(errs) > 0 {
		return nil, apperror.NewValidationError(errs)
	}

	existing, err := s.couponRepo.GetByCode(ctx, input.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.NewConflictError(fmt.Sprintf("Coupon %s already exists", input.Code))
	}

	coupon := &entity.Coupon{}
	applyCouponInput(coupon, input)

	if err := s.couponRepo.Create(ctx, coupon); err != nil {
		return nil, err
	}
	s.cache.invalidate(coupon.Code)
	return coupon, nil
}

// GetCoupon retrieves a coupon by ID
func (s *CouponService) GetCoupon(ctx context.Context, id uuid.UUID) (*entity.Coupon, error) {
	coupon, err := s.couponRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, apperror.NewNotFoundError("Coupon")
	}
	return coupon, nil
}

// ListCoupons lists coupons
func (s *CouponService) ListCoupons(ctx context.Context, params *pagination.PaginationParams, search string, activeOnly bool) (*pagination.PaginatedResult[entity.Coupon], error) {
	coupons, total, err := s.couponRepo.List(ctx, params, search, activeOnly)
	if err != nil {
		return nil, err
	}

	pag := pagination.NewPagination(params.Page, params.PerPage, total)
	return pagination.NewPaginatedResult(coupons, pag), nil
}

// UpdateCoupon replaces a coupon's rules. The usage count is kept.
func (s *CouponService) UpdateCoupon(ctx context.Context, id uuid.UUID, input *CouponInput) (*entity.Coupon, error) {
	input.Code = pricing.NormalizeCode(input.Code)
	if errs := validateCoupon(input); len(errs) > 0 {
		return nil, apperror.NewValidationError(errs)
	}

	coupon, err := s.GetCoupon(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Code != coupon.Code {
		existing, err := s.couponRepo.GetByCode(ctx, input.Code)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, apperror.NewConflictError(fmt.Sprintf("Coupon %s already exists", input.Code))
		}
	}

	oldCode := coupon.Code
	applyCouponInput(coupon, input)

	if err := s.couponRepo.Update(ctx, coupon); err != nil {
		return nil, err
	}
	s.cache.invalidate(oldCode)
	s.cache.invalidate(coupon.Code)

	// usage_count may have moved while the rules were being edited
	return s.GetCoupon(ctx, id)
}

// DeleteCoupon deletes a coupon
func (s *CouponService) DeleteCoupon(ctx context.Context, id uuid.UUID) error {
	coupon, err := s.GetCoupon(ctx, id)
	if err != nil {
		return err
	}
	if err := s.couponRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.invalidate(coupon.Code)
	return nil
}

func applyCouponInput(coupon *entity.Coupon, input *CouponInput) {
	coupon.Code = input.Code
	coupon.Description = input.Description
	coupon.DiscountType = input.DiscountType
	coupon.DiscountValue = input.DiscountValue
	coupon.MinPurchase = input.MinPurchase
	coupon.MaxDiscount = input.MaxDiscount
	coupon.UsageLimit = input.UsageLimit
	coupon.IsActive = input.IsActive
	coupon.ValidFrom = input.ValidFrom
	coupon.ValidUntil = input.ValidUntil
}

func validateCoupon(input *CouponInput) []apperror.FieldError {
	var errs []apperror.FieldError
	if input.Code == "" {
		errs = append(errs, apperror.FieldError{Field: "code", Message: "is required"})
	}
	if !input.DiscountValue.IsPositive() {
		errs = append(errs, apperror.FieldError{Field: "discount_value", Message: "must be greater than zero"})
	}
	if input.DiscountType == enum.DiscountTypePercentage && input.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		errs = append(errs, apperror.FieldError{Field: "discount_value", Message: "percentage cannot exceed 100"})
	}
	if input.MinPurchase.IsNegative() {
		errs = append(errs, apperror.FieldError{Field: "min_purchase", Message: "must not be negative"})
	}
	if input.MaxDiscount != nil && input.MaxDiscount.IsNegative() {
		errs = append(errs, apperror.FieldError{Field: "max_discount", Message: "must not be negative"})
	}
	if input.UsageLimit != nil && *input.UsageLimit < 0 {
		errs = append(errs, apperror.FieldError{Field: "usage_limit", Message: "must not be negative"})
	}
	if input.ValidFrom != nil && input.ValidUntil != nil && input.ValidUntil.Before(*input.ValidFrom) {
		errs = append(errs, apperror.FieldError{Field: "valid_until", Message: "must be after valid_from"})
	}
	return errs
}
