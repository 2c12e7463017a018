package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sangkips/repairpos-api/internal/application/service"
	"github.com/sangkips/repairpos-api/internal/domain/enum"
	"github.com/sangkips/repairpos-api/internal/presentation/http/dto/request"
	"github.com/sangkips/repairpos-api/internal/presentation/http/dto/response"
)

// CheckoutHandler handles pricing and sale submission
type CheckoutHandler struct {
	checkoutService *service.CheckoutService
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutService *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

// Quote handles pricing a cart
func (h *CheckoutHandler) Quote(c *gin.Context) {
	var req request.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	quote, err := h.checkoutService.Quote(c.Request.Context(), toQuoteInput(&req))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Quote computed successfully", toQuoteResponse(quote))
}

// Checkout handles submitting a sale
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	userID := GetUserID(c)
	if userID == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	var req request.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.checkoutService.Checkout(c.Request.Context(), &service.CheckoutInput{
		QuoteInput:    *toQuoteInput(&req.QuoteRequest),
		PaymentMethod:      req.PaymentMethod,
		CashierID:          *userID,
		AllowWithoutCoupon: req.AllowWithoutCoupon,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	data := response.Checkout{
		Sale:        result.Sale,
		RedirectURL: result.RedirectURL,
		Quote:       toQuoteResponse(result.Quote),
	}
	if result.Sale.Status == enum.SaleStatusPending {
		response.Accepted(c, "Sale awaiting payment", data)
		return
	}
	response.Created(c, "Sale completed successfully", data)
}

func toQuoteInput(req *request.QuoteRequest) *service.QuoteInput {
	items := make([]service.CartItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.CartItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return &service.QuoteInput{
		Items:       items,
		CouponCode:  req.CouponCode,
		CustomerID:  req.CustomerID,
		PointsToUse: req.PointsToUse,
	}
}

func toQuoteResponse(q *service.Quote) *response.Quote {
	out := &response.Quote{
		Lines:          make([]response.QuoteLine, 0, len(q.Lines)),
		Totals:         q.Totals,
		CouponMessage:  q.CouponMessage,
		PointsToUse:    q.PointsToUse,
		MaxPointsToUse: q.MaxPointsToUse,
		Warnings:       q.Warnings,
	}
	for _, line := range q.Lines {
		out.Lines = append(out.Lines, response.QuoteLine{
			ItemID:    line.ItemID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal().Round(2),
		})
	}
	if q.Coupon != nil {
		out.Coupon = response.NewAppliedCoupon(*q.Coupon)
	}
	if q.CustomerID != "" {
		out.Customer = &response.Loyalty{CustomerID: q.CustomerID, Name: q.CustomerName}
		if q.Loyalty != nil {
			out.Customer.PointsBalance = q.Loyalty.PointsBalance
			out.Customer.LifetimeSpend = q.Loyalty.LifetimeSpend
			out.Customer.CanRedeem = q.Loyalty.CanRedeem
		}
	}
	return out
}
