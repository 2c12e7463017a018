package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
	"github.com/sangkips/repairpos-api/internal/domain/enum"
	"github.com/sangkips/repairpos-api/pkg/pagination"
)

// SaleRepository defines the interface for sale data operations
type SaleRepository interface {
	// Create inserts the sale together with its items
	Create(ctx context.Context, sale *entity.Sale) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Sale, error)
	GetByGatewaySession(ctx context.Context, sessionID string) (*entity.Sale, error)
	List(ctx context.Context, params *SaleFilterParams) ([]entity.Sale, int64, error)
	SetGatewaySession(ctx context.Context, id uuid.UUID, sessionID string) error
	// MarkCompleted moves a pending sale to completed. Returns false when the
	// sale was not pending.
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// MarkCancelled moves a pending sale to cancelled
	MarkCancelled(ctx context.Context, id uuid.UUID) (bool, error)
}

// SaleFilterParams contains filtering parameters for sale queries
type SaleFilterParams struct {
	Pagination    *pagination.PaginationParams
	Search        string
	Status        *enum.SaleStatus
	PaymentMethod *enum.PaymentMethod
	CustomerID    *uuid.UUID
	StartDate     *time.Time
	EndDate       *time.Time
}
