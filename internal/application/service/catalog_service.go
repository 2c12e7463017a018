package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
	"github.com/sangkips/repairpos-api/internal/domain/pricing"
	"github.com/sangkips/repairpos-api/internal/domain/repository"
	"github.com/sangkips/repairpos-api/pkg/apperror"
	"github.com/sangkips/repairpos-api/pkg/pagination"
)

// CatalogService answers item lookups for checkout
type CatalogService struct {
	productRepo repository.ProductRepository
}

// NewCatalogService creates a new catalog service
func NewCatalogService(productRepo repository.ProductRepository) *CatalogService {
	return &CatalogService{productRepo: productRepo}
}

// GetItem retrieves a catalog item by ID
func (s *CatalogService) GetItem(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperror.NewNotFoundError("Product")
	}
	return product, nil
}

// GetItemByCode retrieves a catalog item by its scanned code
func (s *CatalogService) GetItemByCode(ctx context.Context, code string) (*entity.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperror.NewBadRequestError("Item code is required")
	}
	product, err := s.productRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperror.NewNotFoundError("Product")
	}
	return product, nil
}

// ListItems lists catalog items with filtering
func (s *CatalogService) ListItems(ctx context.Context, params *repository.ProductFilterParams) (*pagination.PaginatedResult[entity.Product], error) {
	if params.Pagination == nil {
		params.Pagination = pagination.DefaultPagination()
	}
	products, total, err := s.productRepo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	pag := pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)
	return pagination.NewPaginatedResult(products, pag), nil
}

// Resolve loads every product in ids in one query. A missing product is a
// not-found error naming the id.
func (s *CatalogService) Resolve(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*entity.Product, error) {
	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	productMap := make(map[uuid.UUID]*entity.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}
	for _, id := range ids {
		if _, ok := productMap[id]; !ok {
			return nil, apperror.NewNotFoundError(fmt.Sprintf("Product %s", id))
		}
	}
	return productMap, nil
}

// CatalogLookup adapts resolved products to the pricing engine
func CatalogLookup(products map[uuid.UUID]*entity.Product) pricing.CatalogLookup {
	return func(itemID string) (pricing.CatalogItem, bool) {
		id, err := uuid.Parse(itemID)
		if err != nil {
			return pricing.CatalogItem{}, false
		}
		p, ok := products[id]
		if !ok {
			return pricing.CatalogItem{}, false
		}
		return pricing.CatalogItem{Category: p.CategoryName(), UnitPrice: p.SellingPrice}, true
	}
}
