package request

import "github.com/google/uuid"

// CartItemRequest represents a cart line
type CartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1,max=10000"`
}

// QuoteRequest represents a request to price a cart
type QuoteRequest struct {
	Items       []CartItemRequest `json:"items" binding:"required,min=1,dive"`
	CouponCode  string            `json:"coupon_code" binding:"omitempty,max=64"`
	CustomerID  *uuid.UUID        `json:"customer_id"`
	PointsToUse int64             `json:"points_to_use" binding:"min=0"`
}

// CheckoutRequest represents a sale submission
type CheckoutRequest struct {
	QuoteRequest
	PaymentMethod string `json:"payment_method" binding:"required,oneof=cash stripe card paypal"`
	// AllowWithoutCoupon completes the sale at full price when the coupon
	// directory cannot be reached
	AllowWithoutCoupon bool `json:"allow_without_coupon"`
}

// ConfirmSessionRequest identifies a paid gateway checkout session
type ConfirmSessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// SaleFilterRequest represents sale list filters
type SaleFilterRequest struct {
	Search        string `form:"search"`
	Status        string `form:"status" binding:"omitempty,oneof=pending completed cancelled"`
	PaymentMethod string `form:"payment_method" binding:"omitempty,oneof=cash stripe card paypal"`
	CustomerID    string `form:"customer_id" binding:"omitempty,uuid"`
	StartDate     string `form:"start_date"`
	EndDate       string `form:"end_date"`
	Page          int    `form:"page"`
	PerPage       int    `form:"per_page"`
}
