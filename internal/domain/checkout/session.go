// Package checkout holds the in-progress sale: cart lines, the applied coupon
// slot, the selected customer and the points request. Every mutation
// recomputes the totals through the pricing engine before returning.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sangkips/repairpos-api/internal/domain/enum"
	"github.com/sangkips/repairpos-api/internal/domain/pricing"
)

var (
	ErrEmptyCart            = errors.New("checkout: cart is empty")
	ErrStaleResponse        = errors.New("checkout: cart changed while the coupon was being validated")
	ErrCouponUnavailable    = errors.New("checkout: coupon service unavailable")
	ErrLoyaltyUnavailable   = errors.New("checkout: loyalty ledger unavailable")
	ErrInvalidItem          = errors.New("checkout: item id is required")
	ErrInvalidPaymentMethod = errors.New("checkout: unsupported payment method")
)

// CouponDirectory validates a coupon code against a subtotal. Rejections are
// reported as *pricing.CouponRejection; any other error means the directory
// could not be reached.
type CouponDirectory interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (pricing.AppliedCoupon, error)
}

// LoyaltyLedger reports a customer's points balance and redemption eligibility
type LoyaltyLedger interface {
	Lookup(ctx context.Context, customerID string) (pricing.LoyaltyState, error)
}

// Customer identifies the buyer attached to a sale
type Customer struct {
	ID   string
	Name string
}

// Config is fixed for the lifetime of a session
type Config struct {
	Tax     pricing.TaxConfig
	Points  pricing.PointsConfig
	Catalog pricing.CatalogLookup
}

// Session is a single checkout. Safe for concurrent use; the lock is never
// held across collaborator calls.
type Session struct {
	mu  sync.Mutex
	cfg Config

	lines   []pricing.Line
	version uint64

	coupon    *pricing.AppliedCoupon
	couponErr string

	customer    *Customer
	loyalty     pricing.LoyaltyState
	pointsToUse int64

	totals pricing.Breakdown
}

// NewSession creates an empty checkout session
func NewSession(cfg Config) *Session {
	s := &Session{cfg: cfg}
	s.recompute()
	return s
}

// AddItem adds line to the cart, merging quantities with an existing line for
// the same item.
func (s *Session) AddItem(line pricing.Line) error {
	if line.ItemID == "" {
		return ErrInvalidItem
	}
	if line.Quantity < 1 {
		line.Quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(line.ItemID); i >= 0 {
		s.lines[i].Quantity += line.Quantity
	} else {
		s.lines = append(s.lines, line)
	}
	s.mutated()
	return nil
}

// SetQuantity changes a line's quantity; zero or less removes the line
func (s *Session) SetQuantity(itemID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(itemID)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
	} else {
		s.lines[i].Quantity = quantity
	}
	s.mutated()
}

// RemoveItem drops a line from the cart
func (s *Session) RemoveItem(itemID string) {
	s.SetQuantity(itemID, 0)
}

// Clear empties the cart. The coupon goes with it.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	s.mutated()
}

// Lines returns a copy of the cart lines
func (s *Session) Lines() []pricing.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pricing.Line(nil), s.lines...)
}

// Version increases on every cart mutation
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// ApplyCoupon validates code with dir and attaches it. A response that
// arrives after the cart changed is discarded with ErrStaleResponse.
func (s *Session) ApplyCoupon(ctx context.Context, dir CouponDirectory, code string) (pricing.AppliedCoupon, error) {
	code = pricing.NormalizeCode(code)

	s.mu.Lock()
	if len(s.lines) == 0 {
		s.mu.Unlock()
		return pricing.AppliedCoupon{}, ErrEmptyCart
	}
	version := s.version
	subtotal := s.totals.Subtotal
	s.mu.Unlock()

	applied, err := dir.Validate(ctx, code, subtotal)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version != version {
		return pricing.AppliedCoupon{}, ErrStaleResponse
	}

	if err != nil {
		var rej *pricing.CouponRejection
		if errors.As(err, &rej) {
			s.coupon = nil
			s.couponErr = rej.Reason
			s.recompute()
			return pricing.AppliedCoupon{}, rej
		}
		return pricing.AppliedCoupon{}, fmt.Errorf("%w: %v", ErrCouponUnavailable, err)
	}

	s.coupon = &applied
	s.couponErr = ""
	s.recompute()
	if s.coupon == nil {
		// evicted on recompute; the directory and the local rule disagree
		return pricing.AppliedCoupon{}, pricing.BelowMinimum(applied.Coupon)
	}
	return *s.coupon, nil
}

// RemoveCoupon empties the coupon slot
func (s *Session) RemoveCoupon() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.coupon = nil
	s.couponErr = ""
	s.recompute()
}

// Coupon returns the applied coupon, if any
func (s *Session) Coupon() (pricing.AppliedCoupon, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coupon == nil {
		return pricing.AppliedCoupon{}, false
	}
	return *s.coupon, true
}

// CouponError is the last message explaining why the coupon slot is empty
func (s *Session) CouponError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.couponErr
}

// SelectCustomer attaches a customer and loads their loyalty standing. Any
// previous points request is discarded. When the ledger cannot be reached the
// customer is still selected, without redeemable points, and
// ErrLoyaltyUnavailable is returned.
func (s *Session) SelectCustomer(ctx context.Context, ledger LoyaltyLedger, customer Customer) error {
	s.mu.Lock()
	s.customer = &customer
	s.loyalty = pricing.LoyaltyState{}
	s.pointsToUse = 0
	s.recompute()
	s.mu.Unlock()

	if ledger == nil || customer.ID == "" {
		return nil
	}

	state, err := ledger.Lookup(ctx, customer.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	// another customer was picked meanwhile
	if s.customer == nil || s.customer.ID != customer.ID {
		return ErrStaleResponse
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoyaltyUnavailable, err)
	}
	s.loyalty = state
	s.recompute()
	return nil
}

// ClearCustomer detaches the customer and their points request
func (s *Session) ClearCustomer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customer = nil
	s.loyalty = pricing.LoyaltyState{}
	s.pointsToUse = 0
	s.recompute()
}

// Customer returns the selected customer and their loyalty state
func (s *Session) Customer() (Customer, pricing.LoyaltyState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.customer == nil {
		return Customer{}, pricing.LoyaltyState{}, false
	}
	return *s.customer, s.loyalty, true
}

// SetPointsToUse requests a points redemption. The request is clamped to what
// the customer may redeem; the accepted value is returned.
func (s *Session) SetPointsToUse(points int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pointsToUse = points
	s.recompute()
	return s.pointsToUse
}

// PointsToUse returns the accepted points request
func (s *Session) PointsToUse() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pointsToUse
}

// MaxPointsToUse returns the current redemption ceiling
func (s *Session) MaxPointsToUse() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.MaxRedeemablePoints(s.loyalty, s.totals, s.cfg.Points)
}

// Totals returns the breakdown for the current state
func (s *Session) Totals() pricing.Breakdown {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}

func (s *Session) indexOf(itemID string) int {
	for i := range s.lines {
		if s.lines[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// mutated must be called with the lock held after any cart change
func (s *Session) mutated() {
	s.version++
	s.recompute()
}

// recompute must be called with the lock held
func (s *Session) recompute() {
	if len(s.lines) == 0 && s.coupon != nil {
		s.coupon = nil
	}

	in := pricing.Input{
		Lines:   s.lines,
		Tax:     s.cfg.Tax,
		Catalog: s.cfg.Catalog,
		Coupon:  s.coupon,
		Points:  s.cfg.Points,
	}

	totals := pricing.ComputeTotals(in)
	if totals.CouponDropped {
		s.couponErr = pricing.BelowMinimum(s.coupon.Coupon).Reason
		s.coupon = nil
		in.Coupon = nil
		totals = pricing.ComputeTotals(in)
	}

	s.pointsToUse = pricing.ClampPoints(s.pointsToUse, s.loyalty, totals, s.cfg.Points)
	if s.pointsToUse > 0 {
		in.PointsToUse = s.pointsToUse
		totals = pricing.ComputeTotals(in)
	}

	if s.coupon != nil {
		s.coupon.Discount = totals.CouponDiscount
	}
	s.totals = totals
}

// SaleRecord is the persist-ready output of Finalize
type SaleRecord struct {
	Lines         []pricing.Line
	PaymentMethod enum.PaymentMethod
	CustomerID    string
	CustomerName  string
	Coupon        *pricing.AppliedCoupon
	PointsToUse   int64
	Totals        pricing.Breakdown
}

// CouponCode returns the applied coupon code or ""
func (r SaleRecord) CouponCode() string {
	if r.Coupon == nil {
		return ""
	}
	return r.Coupon.Coupon.Code
}

// Finalize re-derives the totals from the current state and returns the sale
// record to submit. The session is left untouched; call Complete once the
// sale has been committed as cash.
func (s *Session) Finalize(method enum.PaymentMethod) (SaleRecord, error) {
	switch method {
	case enum.PaymentMethodCash, enum.PaymentMethodStripe, enum.PaymentMethodPayPal:
	default:
		return SaleRecord{}, ErrInvalidPaymentMethod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.lines) == 0 {
		return SaleRecord{}, ErrEmptyCart
	}

	s.recompute()

	record := SaleRecord{
		Lines:         append([]pricing.Line(nil), s.lines...),
		PaymentMethod: method,
		PointsToUse:   s.pointsToUse,
		Totals:        s.totals,
	}
	if s.customer != nil {
		record.CustomerID = s.customer.ID
		record.CustomerName = s.customer.Name
	}
	if s.coupon != nil {
		applied := *s.coupon
		record.Coupon = &applied
	}
	return record, nil
}

// Complete resets the session after a committed sale
func (s *Session) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	s.coupon = nil
	s.couponErr = ""
	s.customer = nil
	s.loyalty = pricing.LoyaltyState{}
	s.pointsToUse = 0
	s.version++
	s.recompute()
}
