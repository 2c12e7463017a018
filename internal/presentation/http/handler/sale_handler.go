package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sangkips/repairpos-api/internal/application/service"
	"github.com/sangkips/repairpos-api/internal/domain/enum"
	"github.com/sangkips/repairpos-api/internal/domain/repository"
	"github.com/sangkips/repairpos-api/internal/presentation/http/dto/request"
	"github.com/sangkips/repairpos-api/internal/presentation/http/dto/response"
	"github.com/sangkips/repairpos-api/pkg/pagination"
)

// SaleHandler handles sales history and payment confirmation
type SaleHandler struct {
	saleService *service.SaleService
}

// NewSaleHandler creates a new sale handler
func NewSaleHandler(saleService *service.SaleService) *SaleHandler {
	return &SaleHandler{saleService: saleService}
}

// List handles listing sales
func (h *SaleHandler) List(c *gin.Context) {
	var req request.SaleFilterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	params := &repository.SaleFilterParams{
		Pagination: &pagination.PaginationParams{Page: req.Page, PerPage: req.PerPage},
		Search:     req.Search,
	}
	params.Pagination.Validate()

	if req.Status != "" {
		status, err := enum.ParseSaleStatus(req.Status)
		if err != nil {
			response.BadRequest(c, "Invalid status")
			return
		}
		params.Status = &status
	}
	if req.PaymentMethod != "" {
		method, err := enum.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			response.BadRequest(c, "Invalid payment method")
			return
		}
		params.PaymentMethod = &method
	}
	if req.CustomerID != "" {
		customerID, _ := uuid.Parse(req.CustomerID)
		params.CustomerID = &customerID
	}
	if req.StartDate != "" {
		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			response.BadRequest(c, "Invalid start_date, expected YYYY-MM-DD")
			return
		}
		params.StartDate = &start
	}
	if req.EndDate != "" {
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			response.BadRequest(c, "Invalid end_date, expected YYYY-MM-DD")
			return
		}
		// inclusive of the whole day
		end = end.Add(24*time.Hour - time.Nanosecond)
		params.EndDate = &end
	}

	result, err := h.saleService.ListSales(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, "Sales retrieved successfully", result)
}

// Get handles retrieving a sale with its items
func (h *SaleHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id", "sale")
	if !ok {
		return
	}

	sale, err := h.saleService.GetSale(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Sale retrieved successfully", sale)
}

// Confirm handles marking a pending sale as paid
func (h *SaleHandler) Confirm(c *gin.Context) {
	id, ok := paramID(c, "id", "sale")
	if !ok {
		return
	}

	sale, err := h.saleService.ConfirmPayment(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Sale payment confirmed", sale)
}

// ConfirmSession handles confirming the sale behind a gateway session
func (h *SaleHandler) ConfirmSession(c *gin.Context) {
	var req request.ConfirmSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	sale, err := h.saleService.ConfirmGatewaySession(c.Request.Context(), req.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Sale payment confirmed", sale)
}

// Cancel handles abandoning a sale that is awaiting payment
func (h *SaleHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id", "sale")
	if !ok {
		return
	}

	sale, err := h.saleService.CancelSale(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Sale cancelled", sale)
}

// maxWebhookBody caps gateway notification payloads
const maxWebhookBody = 64 << 10

// StripeWebhook handles signed checkout session notifications from Stripe
func (h *SaleHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(c, "Invalid webhook payload")
		return
	}

	sale, err := h.saleService.HandleGatewayWebhook(c.Request.Context(), "stripe", payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Webhook received", sale)
}
