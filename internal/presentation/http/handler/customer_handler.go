package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sangkips/repairpos-api/internal/application/service"
	"github.com/sangkips/repairpos-api/internal/presentation/http/dto/response"
)

// CustomerHandler exposes customers and their loyalty standing
type CustomerHandler struct {
	loyaltyService *service.LoyaltyService
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(loyaltyService *service.LoyaltyService) *CustomerHandler {
	return &CustomerHandler{loyaltyService: loyaltyService}
}

// List handles listing customers
func (h *CustomerHandler) List(c *gin.Context) {
	result, err := h.loyaltyService.ListCustomers(c.Request.Context(), pageParams(c), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, "Customers retrieved successfully", result)
}

// GetLoyalty handles retrieving a customer's points balance and eligibility
func (h *CustomerHandler) GetLoyalty(c *gin.Context) {
	id, ok := paramID(c, "id", "customer")
	if !ok {
		return
	}

	customer, state, err := h.loyaltyService.GetCustomerLoyalty(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Loyalty retrieved successfully", response.NewLoyalty(customer, state))
}

// GetByAccount handles looking a customer up by their account number
func (h *CustomerHandler) GetByAccount(c *gin.Context) {
	customer, state, err := h.loyaltyService.GetCustomerByAccount(c.Request.Context(), c.Param("account_number"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Customer retrieved successfully", response.NewLoyalty(customer, state))
}
