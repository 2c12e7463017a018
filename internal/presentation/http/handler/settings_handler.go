package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sangkips/repairpos-api/internal/application/service"
	"github.com/sangkips/repairpos-api/internal/presentation/http/dto/request"
	"github.com/sangkips/repairpos-api/internal/presentation/http/dto/response"
)

// SettingsHandler handles the shop's tax and loyalty settings
type SettingsHandler struct {
	settingsService *service.SettingsService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// GetSettings handles retrieving the settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.GetSettings(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Settings retrieved successfully", settings)
}

// UpdateSettings handles updating the settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req request.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	settings, err := h.settingsService.UpdateSettings(c.Request.Context(), &service.UpdateSettingsInput{
		StoreName:                 req.StoreName,
		Currency:                  req.Currency,
		TaxEnabled:                req.TaxEnabled,
		TaxRate:                   req.TaxRate,
		TaxExemptCategories:       req.TaxExemptCategories,
		PointsEnabled:             req.PointsEnabled,
		PointsPerDollar:           req.PointsPerDollar,
		PointsRedemptionThreshold: req.PointsRedemptionThreshold,
		PointsValue:               req.PointsValue,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Settings updated successfully", settings)
}
