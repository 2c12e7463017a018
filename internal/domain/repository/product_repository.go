package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
	"github.com/sangkips/repairpos-api/pkg/pagination"
)

// ProductRepository defines the catalog operations checkout needs
type ProductRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Product, error)
	// GetByCode looks up a product by its unique code (barcode)
	GetByCode(ctx context.Context, code string) (*entity.Product, error)
	// GetByIDs retrieves multiple products with their category in a single query
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.Product, error)
	List(ctx context.Context, params *ProductFilterParams) ([]entity.Product, int64, error)
	// AtomicDecrementBatch decrements stock for tracked products only where
	// enough is on hand. Returns the ids that were short; nothing is changed
	// when any id is short.
	AtomicDecrementBatch(ctx context.Context, decrements map[uuid.UUID]int) (failedIDs []uuid.UUID, err error)
	// IncrementBatch restores stock taken by a sale that was cancelled
	IncrementBatch(ctx context.Context, increments map[uuid.UUID]int) error
}

// ProductFilterParams contains filtering parameters for product queries
type ProductFilterParams struct {
	Pagination *pagination.PaginationParams
	Search     string
	CategoryID *uuid.UUID
}
