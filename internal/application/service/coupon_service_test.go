package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
	"github.com/sangkips/repairpos-api/internal/domain/enum"
	"github.com/sangkips/repairpos-api/internal/domain/pricing"
	"github.com/sangkips/repairpos-api/pkg/apperror"
	"github.com/sangkips/repairpos-api/pkg/pagination"
)

func TestCouponService_Validate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tests := []struct {
		name     string
		code     string
		subtotal string
		discount string
		reason   string
	}{
		{name: "percentage", code: "save10", subtotal: "150", discount: "15"},
		{name: "fixed above minimum", code: " five ", subtotal: "60", discount: "5"},
		{name: "below minimum", code: "FIVE", subtotal: "59.99", reason: "Minimum purchase of $60.00 required"},
		{name: "inactive", code: "OFF", subtotal: "100", reason: "Coupon is not active"},
		{name: "unknown", code: "NOPE", subtotal: "100", reason: "Invalid coupon code"},
		{name: "blank", code: "  ", subtotal: "100", reason: "Invalid coupon code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied, err := f.couponSvc.Validate(ctx, tt.code, decimal.RequireFromString(tt.subtotal))
			if tt.reason != "" {
				var rej *pricing.CouponRejection
				require.ErrorAs(t, err, &rej)
				assert.Equal(t, tt.reason, rej.Reason)
				return
			}
			require.NoError(t, err)
			assert.True(t, applied.Discount.Equal(decimal.RequireFromString(tt.discount)), "discount %s", applied.Discount)
		})
	}
}

func TestCouponService_ValidateUnavailable(t *testing.T) {
	f := newFixture()
	f.coupons.err = errDBDown

	_, err := f.couponSvc.Validate(context.Background(), "SAVE10", decimal.NewFromInt(100))
	require.Error(t, err)

	var rej *pricing.CouponRejection
	assert.False(t, errors.As(err, &rej))
	assert.ErrorIs(t, err, errDBDown)
}

func TestCouponService_CachesLookups(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.couponSvc.Validate(ctx, "SAVE10", decimal.NewFromInt(100))
		require.NoError(t, err)
		_, err = f.couponSvc.Validate(ctx, "NOPE", decimal.NewFromInt(100))
		require.Error(t, err)
	}
	assert.Equal(t, 2, f.coupons.lookups)

	f.couponSvc.now = func() time.Time { return fixedNow.Add(2 * time.Minute) }
	_, err := f.couponSvc.Validate(ctx, "SAVE10", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, 3, f.coupons.lookups)
}

func TestCouponService_CacheDisabled(t *testing.T) {
	f := newFixture()
	svc := NewCouponService(f.coupons, 0, nil, nil)

	for i := 0; i < 2; i++ {
		_, err := svc.Validate(context.Background(), "SAVE10", decimal.NewFromInt(100))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.coupons.lookups)
}

func TestCouponService_ConsumeRespectsLimit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	applied, err := f.couponSvc.Validate(ctx, "ONCE", decimal.NewFromInt(10))
	require.NoError(t, err)
	id := applied.Coupon.ID

	coupon, err := f.couponSvc.GetCoupon(ctx, mustUUID(t, id))
	require.NoError(t, err)

	require.NoError(t, f.couponSvc.Consume(ctx, coupon.ID, coupon.Code))

	err = f.couponSvc.Consume(ctx, coupon.ID, coupon.Code)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, apperror.GetAppError(err).Code)

	// consumption invalidated the cached row
	_, err = f.couponSvc.Validate(ctx, "ONCE", decimal.NewFromInt(10))
	var rej *pricing.CouponRejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, pricing.RejectUsageExceeded, rej.Code)
}

func TestCouponService_Create(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	coupon, err := f.couponSvc.CreateCoupon(ctx, &CouponInput{
		Code:          " spring ",
		DiscountType:  enum.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(20),
		IsActive:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "SPRING", coupon.Code)

	_, err = f.couponSvc.CreateCoupon(ctx, &CouponInput{
		Code:          "Spring",
		DiscountType:  enum.DiscountTypeFixed,
		DiscountValue: decimal.NewFromInt(1),
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, apperror.GetAppError(err).Code)
}

func TestCouponService_CreateValidation(t *testing.T) {
	f := newFixture()
	from := fixedNow
	until := fixedNow.Add(-time.Hour)

	_, err := f.couponSvc.CreateCoupon(context.Background(), &CouponInput{
		Code:          "",
		DiscountType:  enum.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(150),
		MinPurchase:   decimal.NewFromInt(-1),
		ValidFrom:     &from,
		ValidUntil:    &until,
	})
	require.Error(t, err)

	appErr := apperror.GetAppError(err)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Code)

	fields := map[string]bool{}
	for _, fe := range appErr.Errors {
		fields[fe.Field] = true
	}
	assert.True(t, fields["code"])
	assert.True(t, fields["discount_value"])
	assert.True(t, fields["min_purchase"])
	assert.True(t, fields["valid_until"])
}

func TestCouponService_UpdateInvalidatesCache(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	applied, err := f.couponSvc.Validate(ctx, "SAVE10", decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = f.couponSvc.UpdateCoupon(ctx, mustUUID(t, applied.Coupon.ID), &CouponInput{
		Code:          "SAVE10",
		DiscountType:  enum.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(10),
		IsActive:      false,
	})
	require.NoError(t, err)

	_, err = f.couponSvc.Validate(ctx, "SAVE10", decimal.NewFromInt(100))
	var rej *pricing.CouponRejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, pricing.RejectInactive, rej.Code)
}

// usesOnRead records one use of the coupon right after the first read, the
// way a checkout landing between an edit's read and write would
type usesOnRead struct {
	*fakeCouponRepo
	used bool
}

func (r *usesOnRead) GetByID(ctx context.Context, id uuid.UUID) (*entity.Coupon, error) {
	coupon, err := r.fakeCouponRepo.GetByID(ctx, id)
	if err != nil || coupon == nil || r.used {
		return coupon, err
	}
	r.used = true
	if _, err := r.fakeCouponRepo.IncrementUsage(ctx, id); err != nil {
		return nil, err
	}
	return coupon, nil
}

func TestCouponService_UpdateKeepsConcurrentUsage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	repo := &usesOnRead{fakeCouponRepo: f.coupons}
	svc := NewCouponService(repo, time.Minute, nil, nil)
	svc.now = func() time.Time { return fixedNow }

	var once *entity.Coupon
	for _, c := range f.coupons.coupons {
		if c.Code == "ONCE" {
			once = c
		}
	}
	require.NotNil(t, once)
	limit := 1

	updated, err := svc.UpdateCoupon(ctx, once.ID, &CouponInput{
		Code:          "ONCE",
		Description:   "one per shop",
		DiscountType:  enum.DiscountTypeFixed,
		DiscountValue: decimal.NewFromInt(2),
		UsageLimit:    &limit,
		IsActive:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.UsageCount)
	assert.True(t, updated.DiscountValue.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, 1, f.coupons.coupons[once.ID].UsageCount)
	assert.Equal(t, "one per shop", f.coupons.coupons[once.ID].Description)

	err = svc.Consume(ctx, once.ID, once.Code)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, apperror.GetAppError(err).Code)
	assert.Equal(t, 1, f.coupons.coupons[once.ID].UsageCount)
}

func TestCouponService_Release(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	applied, err := f.couponSvc.Validate(ctx, "ONCE", decimal.NewFromInt(10))
	require.NoError(t, err)
	id := mustUUID(t, applied.Coupon.ID)

	require.NoError(t, f.couponSvc.Consume(ctx, id, "ONCE"))
	require.NoError(t, f.couponSvc.Release(ctx, id, "ONCE"))

	// released use is available again, and the cache saw it
	_, err = f.couponSvc.Validate(ctx, "ONCE", decimal.NewFromInt(10))
	require.NoError(t, err)

	// never below zero
	require.NoError(t, f.couponSvc.Release(ctx, id, "ONCE"))
	assert.Equal(t, 0, f.coupons.coupons[id].UsageCount)
}

func TestCouponService_DeleteAndList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	page, err := f.couponSvc.ListCoupons(ctx, pagination.DefaultPagination(), "", true)
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)

	applied, err := f.couponSvc.Validate(ctx, "SAVE10", decimal.NewFromInt(100))
	require.NoError(t, err)
	require.NoError(t, f.couponSvc.DeleteCoupon(ctx, mustUUID(t, applied.Coupon.ID)))

	_, err = f.couponSvc.Validate(ctx, "SAVE10", decimal.NewFromInt(100))
	var rej *pricing.CouponRejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, pricing.RejectNotFound, rej.Code)

	err = f.couponSvc.DeleteCoupon(ctx, mustUUID(t, applied.Coupon.ID))
	assert.Equal(t, http.StatusNotFound, apperror.GetAppError(err).Code)
}
