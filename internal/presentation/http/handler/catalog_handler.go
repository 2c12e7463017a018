package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sangkips/repairpos-api/internal/application/service"
	"github.com/sangkips/repairpos-api/internal/domain/repository"
	"github.com/sangkips/repairpos-api/internal/presentation/http/dto/response"
	"github.com/sangkips/repairpos-api/pkg/pagination"
)

// CatalogHandler exposes item lookups to the till
type CatalogHandler struct {
	catalogService *service.CatalogService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// Get handles retrieving an item's category and price
func (h *CatalogHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id", "item")
	if !ok {
		return
	}

	product, err := h.catalogService.GetItem(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Item retrieved successfully", response.NewCatalogItem(product))
}

// GetByCode handles a barcode scan
func (h *CatalogHandler) GetByCode(c *gin.Context) {
	product, err := h.catalogService.GetItemByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Item retrieved successfully", response.NewCatalogItem(product))
}

// List handles searching the catalog
func (h *CatalogHandler) List(c *gin.Context) {
	params := &repository.ProductFilterParams{
		Pagination: pageParams(c),
		Search:     c.Query("search"),
	}
	if raw := c.Query("category_id"); raw != "" {
		categoryID, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "Invalid category ID")
			return
		}
		params.CategoryID = &categoryID
	}

	result, err := h.catalogService.ListItems(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]response.CatalogItem, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, response.NewCatalogItem(&result.Items[i]))
	}
	response.SuccessWithPagination(c, http.StatusOK, "Items retrieved successfully", pagination.NewPaginatedResult(items, result.Pagination))
}
