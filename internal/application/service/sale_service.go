package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sangkips/repairpos-api/internal/domain/checkout"
	"github.com/sangkips/repairpos-api/internal/domain/entity"
	"github.com/sangkips/repairpos-api/internal/domain/enum"
	"github.com/sangkips/repairpos-api/internal/domain/repository"
	"github.com/sangkips/repairpos-api/internal/infrastructure/metrics"
	"github.com/sangkips/repairpos-api/pkg/apperror"
	"github.com/sangkips/repairpos-api/pkg/logger"
	"github.com/sangkips/repairpos-api/pkg/pagination"
	"github.com/sangkips/repairpos-api/pkg/payments"
	"github.com/sangkips/repairpos-api/pkg/utils"
)

// PaymentGateway creates and inspects hosted checkout sessions for non-cash
// sales
type PaymentGateway interface {
	Supports(provider string) bool
	CreateCheckoutSession(ctx context.Context, provider string, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, provider, id string) (payments.SessionStatus, error)
	ParseWebhook(provider string, payload []byte, signature string) (payments.WebhookEvent, error)
}

// SaleServiceDeps groups the collaborators of SaleService
type SaleServiceDeps struct {
	Transactor  repository.Transactor
	SaleRepo    repository.SaleRepository
	ProductRepo repository.ProductRepository
	Coupons     *CouponService
	Loyalty     *LoyaltyService
	Settings    *SettingsService
	Gateway     PaymentGateway
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	SuccessURL  string
	CancelURL   string
	Now         func() time.Time
}

// SaleService persists finalized checkouts and applies their side effects
type SaleService struct {
	tx          repository.Transactor
	saleRepo    repository.SaleRepository
	productRepo repository.ProductRepository
	coupons     *CouponService
	loyalty     *LoyaltyService
	settings    *SettingsService
	gateway     PaymentGateway
	metrics     *metrics.Metrics
	logger      *zap.Logger
	successURL  string
	cancelURL   string
	now         func() time.Time
}

// NewSaleService creates a new sale service
func NewSaleService(deps SaleServiceDeps) *SaleService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &SaleService{
		tx:          deps.Transactor,
		saleRepo:    deps.SaleRepo,
		productRepo: deps.ProductRepo,
		coupons:     deps.Coupons,
		loyalty:     deps.Loyalty,
		settings:    deps.Settings,
		gateway:     deps.Gateway,
		metrics:     deps.Metrics,
		logger:      logger,
		successURL:  deps.SuccessURL,
		cancelURL:   deps.CancelURL,
		now:         now,
	}
}

// SubmitResult is the outcome of submitting a sale. RedirectURL is set when
// the customer has to pay through a gateway.
type SubmitResult struct {
	Sale        *entity.Sale
	RedirectURL string
	Session     *payments.CheckoutSession
}

// Submit persists record. Cash sales, and sales with nothing to pay, complete
// in one transaction together with coupon usage, the loyalty ledger and
// stock. Other methods leave the sale pending behind a gateway session; the
// coupon use, redeemed points and stock are claimed up front and given back
// if the sale is cancelled.
func (s *SaleService) Submit(ctx context.Context, record checkout.SaleRecord, cashierID uuid.UUID, products map[uuid.UUID]*entity.Product) (*SubmitResult, error) {
	if len(record.Lines) == 0 {
		return nil, apperror.NewBadRequestError("Cart is empty")
	}

	sale, err := s.buildSale(record, cashierID, products)
	if err != nil {
		return nil, err
	}
	if err := checkStock(sale.Items, products); err != nil {
		return nil, err
	}

	if record.PaymentMethod.IsCash() || !sale.Total.IsPositive() {
		return s.submitCompleted(ctx, sale)
	}
	return s.submitPending(ctx, sale)
}

func (s *SaleService) submitCompleted(ctx context.Context, sale *entity.Sale) (*SubmitResult, error) {
	completedAt := s.now()
	sale.Status = enum.SaleStatusCompleted
	sale.CompletedAt = &completedAt

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.saleRepo.Create(ctx, sale); err != nil {
			return err
		}
		if err := s.claim(ctx, sale); err != nil {
			return err
		}
		return s.settle(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SaleRecorded(sale.PaymentMethod.String(), sale.Status.String(), sale.Total)
	logger.FromContext(ctx, s.logger).Info("sale completed",
		zap.String("sale_id", sale.ID.String()),
		zap.String("receipt_no", sale.ReceiptNo),
		zap.String("payment_method", sale.PaymentMethod.String()),
		zap.String("total", sale.Total.StringFixed(2)),
	)
	return &SubmitResult{Sale: sale}, nil
}

func (s *SaleService) submitPending(ctx context.Context, sale *entity.Sale) (*SubmitResult, error) {
	provider := sale.PaymentMethod.String()
	if s.gateway == nil || !s.gateway.Supports(provider) {
		return nil, apperror.NewBadRequestError(fmt.Sprintf("Payment method %s is not available", provider))
	}

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	sale.Status = enum.SaleStatusPending
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.saleRepo.Create(ctx, sale); err != nil {
			return err
		}
		return s.claim(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, provider, payments.CheckoutSessionRequest{
		Reference:      sale.ID.String(),
		Description:    fmt.Sprintf("%s %s", settings.StoreName, sale.ReceiptNo),
		Amount:         sale.Total,
		Currency:       settings.Currency,
		SuccessURL:     s.successURL,
		CancelURL:      s.cancelURL,
		IdempotencyKey: sale.ID.String(),
		Metadata: map[string]string{
			"receipt_no": sale.ReceiptNo,
		},
	})
	if err != nil {
		log := logger.FromContext(ctx, s.logger)
		log.Warn("gateway session failed",
			zap.String("sale_id", sale.ID.String()),
			zap.String("provider", provider),
			zap.Error(err),
		)
		if _, _, rerr := s.release(ctx, sale.ID); rerr != nil {
			log.Error("failed to cancel sale after gateway error", zap.String("sale_id", sale.ID.String()), zap.Error(rerr))
		}
		return nil, apperror.NewUnavailableError("Payment gateway unavailable", err)
	}

	if err := s.saleRepo.SetGatewaySession(ctx, sale.ID, session.ID); err != nil {
		return nil, err
	}
	sale.GatewaySessionID = &session.ID

	s.metrics.SaleRecorded(provider, sale.Status.String(), sale.Total)
	logger.FromContext(ctx, s.logger).Info("sale awaiting payment",
		zap.String("sale_id", sale.ID.String()),
		zap.String("provider", provider),
		zap.String("session_id", session.ID),
	)
	return &SubmitResult{Sale: sale, RedirectURL: session.RedirectURL, Session: &session}, nil
}

// ConfirmPayment asks the gateway whether a pending sale has been paid and
// completes it if so. An expired session cancels the sale. Confirming a
// completed sale is a no-op.
func (s *SaleService) ConfirmPayment(ctx context.Context, id uuid.UUID) (*entity.Sale, error) {
	sale, err := s.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}
	if sale.Status != enum.SaleStatusPending {
		return s.resolveGatewaySession(ctx, sale, payments.SessionStatus{})
	}
	if sale.GatewaySessionID == nil {
		return nil, apperror.NewConflictError("Sale has no payment session")
	}

	status, err := s.gateway.GetCheckoutSession(ctx, sale.PaymentMethod.String(), *sale.GatewaySessionID)
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn("gateway status check failed",
			zap.String("sale_id", sale.ID.String()),
			zap.String("session_id", *sale.GatewaySessionID),
			zap.Error(err),
		)
		return nil, apperror.NewUnavailableError("Payment gateway unavailable", err)
	}
	return s.resolveGatewaySession(ctx, sale, status)
}

// ConfirmGatewaySession confirms the sale behind a gateway checkout session
func (s *SaleService) ConfirmGatewaySession(ctx context.Context, sessionID string) (*entity.Sale, error) {
	sale, err := s.saleRepo.GetByGatewaySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, apperror.NewNotFoundError("Sale")
	}
	return s.ConfirmPayment(ctx, sale.ID)
}

// HandleGatewayWebhook verifies a gateway notification and completes or
// cancels the sale it refers to. Events for unknown sessions are ignored and
// return a nil sale.
func (s *SaleService) HandleGatewayWebhook(ctx context.Context, provider string, payload []byte, signature string) (*entity.Sale, error) {
	if s.gateway == nil {
		return nil, apperror.NewNotFoundError("Webhook")
	}
	event, err := s.gateway.ParseWebhook(provider, payload, signature)
	switch {
	case errors.Is(err, payments.ErrUnsupportedProvider), errors.Is(err, payments.ErrWebhooksDisabled):
		return nil, apperror.Wrap(http.StatusNotFound, "Webhook not found", err)
	case errors.Is(err, payments.ErrInvalidSignature):
		return nil, apperror.Wrap(http.StatusBadRequest, "Invalid webhook signature", err)
	case err != nil:
		return nil, apperror.Wrap(http.StatusBadRequest, "Invalid webhook payload", err)
	}

	if event.Type == payments.EventIgnored {
		return nil, nil
	}

	sale, err := s.saleRepo.GetByGatewaySession(ctx, event.Session.ID)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		logger.FromContext(ctx, s.logger).Warn("webhook for unknown session",
			zap.String("event_id", event.ID),
			zap.String("session_id", event.Session.ID),
		)
		return nil, nil
	}
	return s.resolveGatewaySession(ctx, sale, event.Session)
}

// resolveGatewaySession moves sale according to what the gateway reported
func (s *SaleService) resolveGatewaySession(ctx context.Context, sale *entity.Sale, status payments.SessionStatus) (*entity.Sale, error) {
	switch sale.Status {
	case enum.SaleStatusCompleted:
		return sale, nil
	case enum.SaleStatusCancelled:
		if status.Paid {
			logger.FromContext(ctx, s.logger).Error("payment taken for cancelled sale, refund required",
				zap.String("sale_id", sale.ID.String()),
				zap.String("session_id", status.ID),
			)
		}
		return nil, apperror.NewConflictError("Sale has been cancelled")
	}

	switch {
	case status.Paid:
		return s.complete(ctx, sale.ID)
	case status.Expired:
		if _, _, err := s.release(ctx, sale.ID); err != nil {
			return nil, err
		}
		logger.FromContext(ctx, s.logger).Info("payment session expired, sale cancelled", zap.String("sale_id", sale.ID.String()))
		return nil, apperror.NewConflictError("Payment session expired; the sale was cancelled")
	}
	return nil, apperror.NewConflictError("Payment has not been completed")
}

// complete marks a paid sale completed and books its loyalty earnings
func (s *SaleService) complete(ctx context.Context, id uuid.UUID) (*entity.Sale, error) {
	var sale *entity.Sale
	applied := false

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		completedAt := s.now()
		ok, err := s.saleRepo.MarkCompleted(ctx, id, completedAt)
		if err != nil {
			return err
		}
		sale, err = s.GetSale(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			// settled concurrently
			if sale.Status == enum.SaleStatusCancelled {
				return apperror.NewConflictError("Sale has been cancelled")
			}
			return nil
		}
		applied = true
		return s.settle(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	if applied {
		s.metrics.SaleRecorded(sale.PaymentMethod.String(), sale.Status.String(), sale.Total)
		logger.FromContext(ctx, s.logger).Info("sale payment confirmed", zap.String("sale_id", sale.ID.String()))
	}
	return sale, nil
}

// CancelSale cancels a sale still awaiting payment and gives back what it
// claimed
func (s *SaleService) CancelSale(ctx context.Context, id uuid.UUID) (*entity.Sale, error) {
	sale, ok, err := s.release(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := s.GetSale(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperror.NewConflictError("Only pending sales can be cancelled")
	}
	s.metrics.SaleRecorded(sale.PaymentMethod.String(), sale.Status.String(), sale.Total)
	logger.FromContext(ctx, s.logger).Info("sale cancelled", zap.String("sale_id", sale.ID.String()))
	return sale, nil
}

// release cancels a pending sale and returns its coupon use, redeemed points
// and stock. ok is false when the sale was not pending.
func (s *SaleService) release(ctx context.Context, id uuid.UUID) (sale *entity.Sale, ok bool, err error) {
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err = s.saleRepo.MarkCancelled(ctx, id)
		if err != nil || !ok {
			return err
		}
		sale, err = s.GetSale(ctx, id)
		if err != nil {
			return err
		}

		if sale.CouponID != nil {
			if err := s.coupons.Release(ctx, *sale.CouponID, sale.CouponCode); err != nil {
				return err
			}
		}
		if sale.CustomerID != nil && sale.PointsUsed > 0 {
			if err := s.loyalty.Refund(ctx, *sale.CustomerID, sale.PointsUsed); err != nil {
				return err
			}
		}
		return s.productRepo.IncrementBatch(ctx, saleQuantities(sale))
	})
	if err != nil {
		return nil, false, err
	}
	return sale, ok, nil
}

// GetSale retrieves a sale by ID
func (s *SaleService) GetSale(ctx context.Context, id uuid.UUID) (*entity.Sale, error) {
	sale, err := s.saleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, apperror.NewNotFoundError("Sale")
	}
	return sale, nil
}

// ListSales lists sales with filtering
func (s *SaleService) ListSales(ctx context.Context, params *repository.SaleFilterParams) (*pagination.PaginatedResult[entity.Sale], error) {
	if params.Pagination == nil {
		params.Pagination = pagination.DefaultPagination()
	}
	sales, total, err := s.saleRepo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	pag := pagination.NewPagination(params.Pagination.Page, params.Pagination.PerPage, total)
	return pagination.NewPaginatedResult(sales, pag), nil
}

// claim takes the coupon use, redeemed points and stock a sale holds from
// the moment it is recorded. It must run inside the transaction that creates
// the sale.
func (s *SaleService) claim(ctx context.Context, sale *entity.Sale) error {
	if sale.CouponID != nil {
		if err := s.coupons.Consume(ctx, *sale.CouponID, sale.CouponCode); err != nil {
			return err
		}
	}

	if sale.CustomerID != nil && sale.PointsUsed > 0 {
		if err := s.loyalty.Apply(ctx, *sale.CustomerID, 0, sale.PointsUsed, decimal.Zero); err != nil {
			return err
		}
	}

	names := make(map[uuid.UUID]string, len(sale.Items))
	for _, item := range sale.Items {
		names[item.ProductID] = item.ItemName
	}
	failedIDs, err := s.productRepo.AtomicDecrementBatch(ctx, saleQuantities(sale))
	if err != nil {
		return err
	}
	if len(failedIDs) > 0 {
		failedNames := make([]string, 0, len(failedIDs))
		for _, id := range failedIDs {
			failedNames = append(failedNames, names[id])
		}
		sort.Strings(failedNames)
		return apperror.NewConflictError(fmt.Sprintf("Insufficient stock for: %s", strings.Join(failedNames, ", ")))
	}
	return nil
}

// settle books what a paid sale earns: points and lifetime spend
func (s *SaleService) settle(ctx context.Context, sale *entity.Sale) error {
	if sale.CustomerID == nil {
		return nil
	}
	return s.loyalty.Apply(ctx, *sale.CustomerID, sale.PointsEarned, 0, sale.Total)
}

func saleQuantities(sale *entity.Sale) map[uuid.UUID]int {
	quantities := make(map[uuid.UUID]int, len(sale.Items))
	for _, item := range sale.Items {
		quantities[item.ProductID] += item.Quantity
	}
	return quantities
}

func (s *SaleService) buildSale(record checkout.SaleRecord, cashierID uuid.UUID, products map[uuid.UUID]*entity.Product) (*entity.Sale, error) {
	totals := record.Totals.Rounded()

	sale := &entity.Sale{
		ID:              uuid.New(),
		ReceiptNo:       utils.GenerateReferenceNo("RCP"),
		CreatedBy:       cashierID,
		CustomerName:    record.CustomerName,
		PaymentMethod:   record.PaymentMethod,
		Subtotal:        totals.Subtotal,
		TaxableSubtotal: totals.TaxableSubtotal,
		Tax:             totals.Tax,
		CouponCode:      record.CouponCode(),
		CouponDiscount:  totals.CouponDiscount,
		PointsUsed:      record.PointsToUse,
		PointsDiscount:  totals.PointsDiscount,
		PointsEarned:    totals.PointsEarned,
		Total:           totals.Total,
	}

	if record.CustomerID != "" {
		customerID, err := uuid.Parse(record.CustomerID)
		if err != nil {
			return nil, apperror.NewBadRequestError("Invalid customer ID")
		}
		sale.CustomerID = &customerID
	} else {
		// points belong to a customer
		sale.PointsUsed = 0
		sale.PointsEarned = 0
	}

	if record.Coupon != nil {
		couponID, err := uuid.Parse(record.Coupon.Coupon.ID)
		if err != nil {
			return nil, fmt.Errorf("coupon %s has invalid id: %w", record.Coupon.Coupon.Code, err)
		}
		sale.CouponID = &couponID
	}

	sale.Items = make([]entity.SaleItem, 0, len(record.Lines))
	for _, line := range record.Lines {
		productID, err := uuid.Parse(line.ItemID)
		if err != nil {
			return nil, apperror.NewBadRequestError(fmt.Sprintf("Invalid item ID %q", line.ItemID))
		}
		item := entity.SaleItem{
			SaleID:    sale.ID,
			ProductID: productID,
			ItemName:  line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.Round(2),
			Subtotal:  line.Subtotal().Round(2),
		}
		if p, ok := products[productID]; ok {
			item.Category = p.CategoryName()
			if item.ItemName == "" {
				item.ItemName = p.Name
			}
		}
		sale.Items = append(sale.Items, item)
	}
	return sale, nil
}

// errInsufficientStock is reported before anything is written
var errInsufficientStock = errors.New("insufficient stock")

func checkStock(items []entity.SaleItem, products map[uuid.UUID]*entity.Product) error {
	wanted := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		wanted[item.ProductID] += item.Quantity
	}

	var short []string
	for id, qty := range wanted {
		p, ok := products[id]
		if !ok || !p.TrackStock {
			continue
		}
		if p.Quantity < qty {
			short = append(short, p.Name)
		}
	}
	if len(short) > 0 {
		sort.Strings(short)
		return apperror.Wrap(http.StatusBadRequest, fmt.Sprintf("Insufficient stock for: %s", strings.Join(short, ", ")), errInsufficientStock)
	}
	return nil
}
