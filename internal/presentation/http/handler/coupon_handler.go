package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sangkips/repairpos-api/internal/application/service"
	"github.com/sangkips/repairpos-api/internal/domain/enum"
	"github.com/sangkips/repairpos-api/internal/domain/pricing"
	"github.com/sangkips/repairpos-api/internal/presentation/http/dto/request"
	"github.com/sangkips/repairpos-api/internal/presentation/http/dto/response"
	"github.com/sangkips/repairpos-api/pkg/apperror"
)

// CouponHandler handles coupon validation and maintenance
type CouponHandler struct {
	couponService *service.CouponService
}

// NewCouponHandler creates a new coupon handler
func NewCouponHandler(couponService *service.CouponService) *CouponHandler {
	return &CouponHandler{couponService: couponService}
}

// Validate handles checking a code against a subtotal
func (h *CouponHandler) Validate(c *gin.Context) {
	var req request.ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	applied, err := h.couponService.Validate(c.Request.Context(), req.Code, req.Subtotal)
	if err != nil {
		var rej *pricing.CouponRejection
		if errors.As(err, &rej) {
			response.Error(c, &apperror.AppError{
				Code:    http.StatusBadRequest,
				Message: rej.Reason,
				Errors:  []apperror.FieldError{{Field: "code", Message: string(rej.Code)}},
			})
			return
		}
		response.Error(c, apperror.NewUnavailableError("Coupon service unavailable", err))
		return
	}

	response.OK(c, "Coupon applied", response.NewAppliedCoupon(applied))
}

// List handles listing coupons
func (h *CouponHandler) List(c *gin.Context) {
	params := pageParams(c)
	activeOnly := c.Query("active") == "true"

	result, err := h.couponService.ListCoupons(c.Request.Context(), params, c.Query("search"), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, "Coupons retrieved successfully", result)
}

// Get handles retrieving a coupon
func (h *CouponHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id", "coupon")
	if !ok {
		return
	}

	coupon, err := h.couponService.GetCoupon(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Coupon retrieved successfully", coupon)
}

// Create handles creating a coupon
func (h *CouponHandler) Create(c *gin.Context) {
	input, ok := bindCoupon(c)
	if !ok {
		return
	}

	coupon, err := h.couponService.CreateCoupon(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Coupon created successfully", coupon)
}

// Update handles replacing a coupon's rules
func (h *CouponHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id", "coupon")
	if !ok {
		return
	}
	input, ok := bindCoupon(c)
	if !ok {
		return
	}

	coupon, err := h.couponService.UpdateCoupon(c.Request.Context(), id, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Coupon updated successfully", coupon)
}

// Delete handles deleting a coupon
func (h *CouponHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id", "coupon")
	if !ok {
		return
	}

	if err := h.couponService.DeleteCoupon(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Coupon deleted successfully", nil)
}

func bindCoupon(c *gin.Context) (*service.CouponInput, bool) {
	var req request.CouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return nil, false
	}

	discountType, err := enum.ParseDiscountType(req.DiscountType)
	if err != nil {
		response.BadRequest(c, err.Error())
		return nil, false
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	return &service.CouponInput{
		Code:          req.Code,
		Description:   req.Description,
		DiscountType:  discountType,
		DiscountValue: req.DiscountValue,
		MinPurchase:   req.MinPurchase,
		MaxDiscount:   req.MaxDiscount,
		UsageLimit:    req.UsageLimit,
		IsActive:      active,
		ValidFrom:     req.ValidFrom,
		ValidUntil:    req.ValidUntil,
	}, true
}
