package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sangkips/repairpos-api/internal/domain/checkout"
	"github.com/sangkips/repairpos-api/internal/domain/entity"
	"github.com/sangkips/repairpos-api/internal/domain/enum"
	"github.com/sangkips/repairpos-api/internal/domain/pricing"
	"github.com/sangkips/repairpos-api/internal/infrastructure/metrics"
	"github.com/sangkips/repairpos-api/pkg/apperror"
	"github.com/sangkips/repairpos-api/pkg/logger"
)

// Warnings attached to a quote when a collaborator could not be reached
const (
	WarningCouponUnavailable  = "Coupon service unavailable; totals exclude the coupon"
	WarningLoyaltyUnavailable = "Loyalty points unavailable for this customer"
)

// CheckoutService rebuilds a checkout session from a client cart so totals
// are always computed server-side
type CheckoutService struct {
	catalog  *CatalogService
	coupons  checkout.CouponDirectory
	loyalty  *LoyaltyService
	settings *SettingsService
	sales    *SaleService
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	catalog *CatalogService,
	coupons checkout.CouponDirectory,
	loyalty *LoyaltyService,
	settings *SettingsService,
	sales *SaleService,
	m *metrics.Metrics,
	logger *zap.Logger,
) *CheckoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutService{
		catalog:  catalog,
		coupons:  coupons,
		loyalty:  loyalty,
		settings: settings,
		sales:    sales,
		metrics:  m,
		logger:   logger,
	}
}

// CartItemInput represents a cart line sent by the client
type CartItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// QuoteInput represents the state of a checkout
type QuoteInput struct {
	Items       []CartItemInput
	CouponCode  string
	CustomerID  *uuid.UUID
	PointsToUse int64
}

// Quote is the server-side view of a checkout
type Quote struct {
	Lines          []pricing.Line
	Totals         pricing.Breakdown
	Coupon         *pricing.AppliedCoupon
	CouponMessage  string
	CustomerID     string
	CustomerName   string
	Loyalty        *pricing.LoyaltyState
	PointsToUse    int64
	MaxPointsToUse int64
	Warnings       []string
}

// Quote computes totals for input. Coupon rejections and unreachable
// collaborators are reported on the quote instead of failing it.
func (s *CheckoutService) Quote(ctx context.Context, input *QuoteInput) (*Quote, error) {
	b, err := s.build(ctx, input)
	if err != nil {
		return nil, err
	}
	s.metrics.QuoteComputed()
	return b.quote(), nil
}

// CheckoutInput represents a sale submission
type CheckoutInput struct {
	QuoteInput
	PaymentMethod string
	CashierID     uuid.UUID
	// AllowWithoutCoupon lets the sale go through without its coupon when the
	// coupon directory is down. A rejected coupon still fails the sale.
	AllowWithoutCoupon bool
}

// CheckoutResult is the submitted sale and, for gateway payments, where to
// send the customer
type CheckoutResult struct {
	Quote       *Quote
	Sale        *entity.Sale
	RedirectURL string
}

// Checkout finalizes the cart and submits the sale. Unlike Quote, a coupon
// that does not apply or a collaborator outage aborts the sale so the
// customer is never charged more than they were shown, unless the cashier
// has confirmed the sale may go ahead without the coupon.
func (s *CheckoutService) Checkout(ctx context.Context, input *CheckoutInput) (*CheckoutResult, error) {
	method, err := enum.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, apperror.NewBadRequestError("Invalid payment method")
	}

	b, err := s.build(ctx, &input.QuoteInput)
	if err != nil {
		return nil, err
	}
	if b.couponErr != nil {
		if !b.couponUnavailable || !input.AllowWithoutCoupon {
			return nil, b.couponErr
		}
		logger.FromContext(ctx, s.logger).Warn("checkout proceeding without coupon",
			zap.String("coupon_code", input.CouponCode),
		)
	}
	if b.loyaltyErr != nil && input.PointsToUse > 0 {
		return nil, b.loyaltyErr
	}

	record, err := b.session.Finalize(method)
	if err != nil {
		return nil, translateSessionError(err)
	}

	result, err := s.sales.Submit(ctx, record, input.CashierID, b.products)
	if err != nil {
		return nil, err
	}
	quote := b.quote()
	if result.Sale.Status == enum.SaleStatusCompleted {
		b.session.Complete()
	}

	return &CheckoutResult{
		Quote:       quote,
		Sale:        result.Sale,
		RedirectURL: result.RedirectURL,
	}, nil
}

type built struct {
	session    *checkout.Session
	products   map[uuid.UUID]*entity.Product
	couponErr  error
	loyaltyErr error
	warnings   []string

	// couponUnavailable is set when couponErr is an outage, not a rejection
	couponUnavailable bool
}

func (b *built) quote() *Quote {
	totals := b.session.Totals()
	q := &Quote{
		Lines:          b.session.Lines(),
		Totals:         totals.Rounded(),
		CouponMessage:  b.session.CouponError(),
		PointsToUse:    b.session.PointsToUse(),
		MaxPointsToUse: b.session.MaxPointsToUse(),
		Warnings:       b.warnings,
	}
	if applied, ok := b.session.Coupon(); ok {
		applied.Discount = applied.Discount.Round(2)
		q.Coupon = &applied
	}
	if customer, loyalty, ok := b.session.Customer(); ok {
		q.CustomerID = customer.ID
		q.CustomerName = customer.Name
		if b.loyaltyErr == nil {
			q.Loyalty = &loyalty
		}
	}
	return q
}

func (s *CheckoutService) build(ctx context.Context, input *QuoteInput) (*built, error) {
	if len(input.Items) == 0 {
		return nil, apperror.NewBadRequestError("Cart is empty")
	}

	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	session := checkout.NewSession(checkout.Config{
		Tax:     settings.TaxConfig(),
		Points:  settings.PointsConfig(),
		Catalog: CatalogLookup(products),
	})
	for _, item := range input.Items {
		p := products[item.ProductID]
		if err := session.AddItem(pricing.Line{
			ItemID:    p.ID.String(),
			Name:      p.Name,
			Quantity:  item.Quantity,
			UnitPrice: p.SellingPrice,
		}); err != nil {
			return nil, translateSessionError(err)
		}
	}

	b := &built{session: session, products: products}

	if input.CustomerID != nil {
		customer, err := s.loyalty.GetCustomer(ctx, *input.CustomerID)
		if err != nil {
			return nil, err
		}
		err = session.SelectCustomer(ctx, s.loyalty, checkout.Customer{ID: customer.ID.String(), Name: customer.Name})
		if err != nil {
			logger.FromContext(ctx, s.logger).Warn("loyalty lookup failed", zap.String("customer_id", customer.ID.String()), zap.Error(err))
			b.loyaltyErr = apperror.NewUnavailableError("Loyalty points are unavailable", err)
			b.warnings = append(b.warnings, WarningLoyaltyUnavailable)
		}
	}

	if input.CouponCode != "" {
		_, err := session.ApplyCoupon(ctx, s.coupons, input.CouponCode)
		if err != nil {
			var rej *pricing.CouponRejection
			switch {
			case errors.As(err, &rej):
				b.couponErr = apperror.Wrap(http.StatusBadRequest, rej.Reason, rej)
			case errors.Is(err, checkout.ErrCouponUnavailable):
				b.couponErr = apperror.NewUnavailableError("Coupon service unavailable", err)
				b.couponUnavailable = true
				b.warnings = append(b.warnings, WarningCouponUnavailable)
			default:
				return nil, translateSessionError(err)
			}
		}
	}

	if input.PointsToUse > 0 {
		session.SetPointsToUse(input.PointsToUse)
	}

	return b, nil
}

func translateSessionError(err error) error {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		return apperror.Wrap(http.StatusBadRequest, "Cart is empty", err)
	case errors.Is(err, checkout.ErrInvalidItem):
		return apperror.Wrap(http.StatusBadRequest, "Item ID is required", err)
	case errors.Is(err, checkout.ErrInvalidPaymentMethod):
		return apperror.Wrap(http.StatusBadRequest, "Invalid payment method", err)
	case errors.Is(err, checkout.ErrStaleResponse):
		return apperror.Wrap(http.StatusConflict, "Cart changed, please retry", err)
	}
	return err
}
