package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
	"github.com/sangkips/repairpos-api/pkg/pagination"
)

// CustomerRepository defines the interface for customer and loyalty data
type CustomerRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Customer, error)
	// GetByAccountNumber looks up a canonical (upper-case) account number
	GetByAccountNumber(ctx context.Context, account string) (*entity.Customer, error)
	List(ctx context.Context, params *pagination.PaginationParams, search string) ([]entity.Customer, int64, error)
	// ApplyLoyalty sets points_balance += earned - used and lifetime_spend += spend
	// in one statement, refusing when the balance would go negative.
	// Returns false when refused or the customer does not exist.
	ApplyLoyalty(ctx context.Context, id uuid.UUID, earned, used int64, spend decimal.Decimal) (bool, error)
}
