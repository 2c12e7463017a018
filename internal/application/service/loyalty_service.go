package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
	"github.com/sangkips/repairpos-api/internal/domain/pricing"
	"github.com/sangkips/repairpos-api/internal/domain/repository"
	"github.com/sangkips/repairpos-api/pkg/apperror"
	"github.com/sangkips/repairpos-api/pkg/pagination"
)

// LoyaltyService is the loyalty ledger. Balances only change through Apply.
type LoyaltyService struct {
	customerRepo repository.CustomerRepository
	settings     *SettingsService
}

// NewLoyaltyService creates a new loyalty service
func NewLoyaltyService(customerRepo repository.CustomerRepository, settings *SettingsService) *LoyaltyService {
	return &LoyaltyService{
		customerRepo: customerRepo,
		settings:     settings,
	}
}

// Lookup returns the customer's balance and whether they may redeem points
func (s *LoyaltyService) Lookup(ctx context.Context, customerID string) (pricing.LoyaltyState, error) {
	id, err := uuid.Parse(customerID)
	if err != nil {
		return pricing.LoyaltyState{}, apperror.NewBadRequestError("Invalid customer ID")
	}
	_, state, err := s.GetCustomerLoyalty(ctx, id)
	return state, err
}

// GetCustomerLoyalty loads the customer together with their loyalty state
func (s *LoyaltyService) GetCustomerLoyalty(ctx context.Context, id uuid.UUID) (*entity.Customer, pricing.LoyaltyState, error) {
	customer, err := s.GetCustomer(ctx, id)
	if err != nil {
		return nil, pricing.LoyaltyState{}, err
	}
	return s.withLoyalty(ctx, customer)
}

// GetCustomerByAccount finds a customer by the account number printed on
// their card, together with their loyalty state
func (s *LoyaltyService) GetCustomerByAccount(ctx context.Context, account string) (*entity.Customer, pricing.LoyaltyState, error) {
	account = entity.NormalizeAccountNumber(account)
	if account == "" {
		return nil, pricing.LoyaltyState{}, apperror.NewBadRequestError("Account number is required")
	}
	customer, err := s.customerRepo.GetByAccountNumber(ctx, account)
	if err != nil {
		return nil, pricing.LoyaltyState{}, err
	}
	if customer == nil {
		return nil, pricing.LoyaltyState{}, apperror.NewNotFoundError("Customer")
	}
	return s.withLoyalty(ctx, customer)
}

func (s *LoyaltyService) withLoyalty(ctx context.Context, customer *entity.Customer) (*entity.Customer, pricing.LoyaltyState, error) {

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, pricing.LoyaltyState{}, err
	}

	state := pricing.LoyaltyState{
		PointsBalance: customer.PointsBalance,
		LifetimeSpend: customer.LifetimeSpend,
		CanRedeem:     settings.PointsConfig().CanRedeem(customer.LifetimeSpend),
	}
	return customer, state, nil
}

// GetCustomer retrieves a customer by ID
func (s *LoyaltyService) GetCustomer(ctx context.Context, id uuid.UUID) (*entity.Customer, error) {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, apperror.NewNotFoundError("Customer")
	}
	return customer, nil
}

// ListCustomers lists customers
func (s *LoyaltyService) ListCustomers(ctx context.Context, params *pagination.PaginationParams, search string) (*pagination.PaginatedResult[entity.Customer], error) {
	customers, total, err := s.customerRepo.List(ctx, params, search)
	if err != nil {
		return nil, err
	}

	pag := pagination.NewPagination(params.Page, params.PerPage, total)
	return pagination.NewPaginatedResult(customers, pag), nil
}

// Apply books a sale against the customer's ledger: earned points are added,
// used points deducted and spend added to the lifetime total. Redeemed points
// are taken when the sale is recorded, earnings once it is paid.
func (s *LoyaltyService) Apply(ctx context.Context, customerID uuid.UUID, earned, used int64, spend decimal.Decimal) error {
	if earned < 0 || used < 0 {
		return apperror.NewBadRequestError("Points cannot be negative")
	}
	ok, err := s.customerRepo.ApplyLoyalty(ctx, customerID, earned, used, spend)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewConflictError("Insufficient points balance")
	}
	return nil
}

// Refund gives back points redeemed by a sale that was cancelled
func (s *LoyaltyService) Refund(ctx context.Context, customerID uuid.UUID, points int64) error {
	if points <= 0 {
		return nil
	}
	return s.Apply(ctx, customerID, points, 0, decimal.Zero)
}
