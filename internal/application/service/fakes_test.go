package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
	"github.com/sangkips/repairpos-api/internal/domain/enum"
	"github.com/sangkips/repairpos-api/internal/domain/repository"
	"github.com/sangkips/repairpos-api/pkg/pagination"
	"github.com/sangkips/repairpos-api/pkg/payments"
)

var errDBDown = errors.New("connection refused")

type fakeProductRepo struct {
	products map[uuid.UUID]*entity.Product
}

func newFakeProductRepo(products ...*entity.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: map[uuid.UUID]*entity.Product{}}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProductRepo) GetByCode(_ context.Context, code string) (*entity.Product, error) {
	for _, p := range r.products {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeProductRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]entity.Product, error) {
	var out []entity.Product
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		if p, ok := r.products[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) List(_ context.Context, _ *repository.ProductFilterParams) ([]entity.Product, int64, error) {
	var out []entity.Product
	for _, p := range r.products {
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (r *fakeProductRepo) AtomicDecrementBatch(_ context.Context, decrements map[uuid.UUID]int) ([]uuid.UUID, error) {
	var failed []uuid.UUID
	for id, qty := range decrements {
		p, ok := r.products[id]
		if !ok || (p.TrackStock && p.Quantity < qty) {
			failed = append(failed, id)
		}
	}
	if len(failed) > 0 {
		return failed, nil
	}
	for id, qty := range decrements {
		if p := r.products[id]; p.TrackStock {
			p.Quantity -= qty
		}
	}
	return nil, nil
}

func (r *fakeProductRepo) IncrementBatch(_ context.Context, increments map[uuid.UUID]int) error {
	for id, qty := range increments {
		if p, ok := r.products[id]; ok && p.TrackStock {
			p.Quantity += qty
		}
	}
	return nil
}

type fakeCouponRepo struct {
	mu      sync.Mutex
	coupons map[uuid.UUID]*entity.Coupon
	lookups int
	err     error
}

func newFakeCouponRepo(coupons ...*entity.Coupon) *fakeCouponRepo {
	r := &fakeCouponRepo{coupons: map[uuid.UUID]*entity.Coupon{}}
	for _, c := range coupons {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		r.coupons[c.ID] = c
	}
	return r
}

func (r *fakeCouponRepo) Create(_ context.Context, c *entity.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	r.coupons[c.ID] = &cp
	return nil
}

func (r *fakeCouponRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCouponRepo) GetByCode(_ context.Context, code string) (*entity.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if r.err != nil {
		return nil, r.err
	}
	for _, c := range r.coupons {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCouponRepo) Update(_ context.Context, c *entity.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	if stored, ok := r.coupons[c.ID]; ok {
		cp.UsageCount = stored.UsageCount
	}
	r.coupons[c.ID] = &cp
	return nil
}

func (r *fakeCouponRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.coupons, id)
	return nil
}

func (r *fakeCouponRepo) List(_ context.Context, _ *pagination.PaginationParams, search string, activeOnly bool) ([]entity.Coupon, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Coupon
	for _, c := range r.coupons {
		if activeOnly && !c.IsActive {
			continue
		}
		if search != "" && !strings.Contains(c.Code, strings.ToUpper(search)) {
			continue
		}
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (r *fakeCouponRepo) IncrementUsage(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[id]
	if !ok {
		return false, nil
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return false, nil
	}
	c.UsageCount++
	return true, nil
}

func (r *fakeCouponRepo) ReleaseUsage(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.coupons[id]; ok && c.UsageCount > 0 {
		c.UsageCount--
	}
	return nil
}

type fakeCustomerRepo struct {
	customers map[uuid.UUID]*entity.Customer
}

func newFakeCustomerRepo(customers ...*entity.Customer) *fakeCustomerRepo {
	r := &fakeCustomerRepo{customers: map[uuid.UUID]*entity.Customer{}}
	for _, c := range customers {
		r.customers[c.ID] = c
	}
	return r
}

func (r *fakeCustomerRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCustomerRepo) GetByAccountNumber(_ context.Context, account string) (*entity.Customer, error) {
	for _, c := range r.customers {
		if c.AccountNumber != nil && *c.AccountNumber == account {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCustomerRepo) List(_ context.Context, _ *pagination.PaginationParams, _ string) ([]entity.Customer, int64, error) {
	var out []entity.Customer
	for _, c := range r.customers {
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (r *fakeCustomerRepo) ApplyLoyalty(_ context.Context, id uuid.UUID, earned, used int64, spend decimal.Decimal) (bool, error) {
	c, ok := r.customers[id]
	if !ok || c.PointsBalance < used {
		return false, nil
	}
	c.PointsBalance += earned - used
	c.LifetimeSpend = c.LifetimeSpend.Add(spend)
	return true, nil
}

type fakeSaleRepo struct {
	sales map[uuid.UUID]*entity.Sale
}

func newFakeSaleRepo() *fakeSaleRepo {
	return &fakeSaleRepo{sales: map[uuid.UUID]*entity.Sale{}}
}

func (r *fakeSaleRepo) Create(_ context.Context, s *entity.Sale) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	r.sales[s.ID] = &cp
	return nil
}

func (r *fakeSaleRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSaleRepo) GetByGatewaySession(_ context.Context, sessionID string) (*entity.Sale, error) {
	for _, s := range r.sales {
		if s.GatewaySessionID != nil && *s.GatewaySessionID == sessionID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeSaleRepo) List(_ context.Context, params *repository.SaleFilterParams) ([]entity.Sale, int64, error) {
	var out []entity.Sale
	for _, s := range r.sales {
		if params.Status != nil && s.Status != *params.Status {
			continue
		}
		out = append(out, *s)
	}
	return out, int64(len(out)), nil
}

func (r *fakeSaleRepo) SetGatewaySession(_ context.Context, id uuid.UUID, sessionID string) error {
	if s, ok := r.sales[id]; ok {
		s.GatewaySessionID = &sessionID
	}
	return nil
}

func (r *fakeSaleRepo) MarkCompleted(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s, ok := r.sales[id]
	if !ok || s.Status != enum.SaleStatusPending {
		return false, nil
	}
	s.Status = enum.SaleStatusCompleted
	s.CompletedAt = &at
	return true, nil
}

func (r *fakeSaleRepo) MarkCancelled(_ context.Context, id uuid.UUID) (bool, error) {
	s, ok := r.sales[id]
	if !ok || s.Status != enum.SaleStatusPending {
		return false, nil
	}
	s.Status = enum.SaleStatusCancelled
	return true, nil
}

type fakeSettingsRepo struct {
	settings *entity.BusinessSettings
	creates  int
}

func (r *fakeSettingsRepo) Get(context.Context) (*entity.BusinessSettings, error) {
	if r.settings == nil {
		return nil, nil
	}
	cp := *r.settings
	return &cp, nil
}

func (r *fakeSettingsRepo) Create(_ context.Context, s *entity.BusinessSettings) error {
	r.creates++
	cp := *s
	r.settings = &cp
	return nil
}

func (r *fakeSettingsRepo) Update(_ context.Context, s *entity.BusinessSettings) error {
	cp := *s
	r.settings = &cp
	return nil
}

// fakeTransactor snapshots the stores it is given and restores them when fn
// fails, which is enough to observe rollback in tests.
type fakeTransactor struct {
	sales     *fakeSaleRepo
	coupons   *fakeCouponRepo
	customers *fakeCustomerRepo
	products  *fakeProductRepo
}

func (t *fakeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sales := map[uuid.UUID]entity.Sale{}
	for id, s := range t.sales.sales {
		sales[id] = *s
	}
	coupons := map[uuid.UUID]entity.Coupon{}
	for id, c := range t.coupons.coupons {
		coupons[id] = *c
	}
	customers := map[uuid.UUID]entity.Customer{}
	for id, c := range t.customers.customers {
		customers[id] = *c
	}
	products := map[uuid.UUID]entity.Product{}
	for id, p := range t.products.products {
		products[id] = *p
	}

	if err := fn(ctx); err != nil {
		t.sales.sales = map[uuid.UUID]*entity.Sale{}
		for id, s := range sales {
			s := s
			t.sales.sales[id] = &s
		}
		for id, c := range coupons {
			*t.coupons.coupons[id] = c
		}
		for id, c := range customers {
			*t.customers.customers[id] = c
		}
		for id, p := range products {
			*t.products.products[id] = p
		}
		return err
	}
	return nil
}

type fakeGateway struct {
	supported map[string]bool
	requests  []payments.CheckoutSessionRequest
	err       error

	// session states reported by GetCheckoutSession, keyed by session ID
	statuses  map[string]payments.SessionStatus
	statusErr error

	event      payments.WebhookEvent
	webhookErr error
}

func (g *fakeGateway) Supports(provider string) bool {
	return g.supported[provider]
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, provider string, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return payments.CheckoutSession{}, g.err
	}
	return payments.CheckoutSession{
		ID:          "cs_" + req.Reference[:8],
		Provider:    provider,
		RedirectURL: "https://checkout.example/" + req.Reference,
	}, nil
}

func (g *fakeGateway) GetCheckoutSession(_ context.Context, _ string, id string) (payments.SessionStatus, error) {
	if g.statusErr != nil {
		return payments.SessionStatus{}, g.statusErr
	}
	status, ok := g.statuses[id]
	if !ok {
		return payments.SessionStatus{ID: id}, nil
	}
	return status, nil
}

func (g *fakeGateway) ParseWebhook(string, []byte, string) (payments.WebhookEvent, error) {
	return g.event, g.webhookErr
}

// pay marks a session as paid
func (g *fakeGateway) pay(sessionID string) {
	g.statuses[sessionID] = payments.SessionStatus{ID: sessionID, Paid: true}
}

// expire marks a session as expired unpaid
func (g *fakeGateway) expire(sessionID string) {
	g.statuses[sessionID] = payments.SessionStatus{ID: sessionID, Expired: true}
}

// fixture wires every service over in-memory stores
type fixture struct {
	products  *fakeProductRepo
	coupons   *fakeCouponRepo
	customers *fakeCustomerRepo
	sales     *fakeSaleRepo
	settings  *fakeSettingsRepo
	gateway   *fakeGateway

	catalogSvc  *CatalogService
	couponSvc   *CouponService
	loyaltySvc  *LoyaltyService
	settingsSvc *SettingsService
	saleSvc     *SaleService
	checkoutSvc *CheckoutService

	phone, charger, labor *entity.Product
	regular, vip          *entity.Customer
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{}

	parts := &entity.Category{ID: uuid.New(), Name: "Parts"}
	services := &entity.Category{ID: uuid.New(), Name: "Services"}
	f.phone = &entity.Product{ID: uuid.New(), Code: "SCR-001", Name: "Screen", SellingPrice: decimal.RequireFromString("100.00"), Quantity: 5, TrackStock: true, Category: parts}
	f.charger = &entity.Product{ID: uuid.New(), Name: "Charger", SellingPrice: decimal.RequireFromString("20.00"), Quantity: 1, TrackStock: true, Category: parts}
	f.labor = &entity.Product{ID: uuid.New(), Name: "Repair labor", SellingPrice: decimal.RequireFromString("50.00"), Category: services}
	f.products = newFakeProductRepo(f.phone, f.charger, f.labor)

	limit := 1
	f.coupons = newFakeCouponRepo(
		&entity.Coupon{Code: "SAVE10", DiscountType: enum.DiscountTypePercentage, DiscountValue: decimal.NewFromInt(10), IsActive: true},
		&entity.Coupon{Code: "FIVE", DiscountType: enum.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(5), MinPurchase: decimal.NewFromInt(60), IsActive: true},
		&entity.Coupon{Code: "ONCE", DiscountType: enum.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(1), UsageLimit: &limit, IsActive: true},
		&entity.Coupon{Code: "OFF", DiscountType: enum.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(1), IsActive: false},
	)

	f.regular = &entity.Customer{ID: uuid.New(), Name: "Ann", PointsBalance: 40, LifetimeSpend: decimal.NewFromInt(100)}
	vipAccount := "0042"
	f.vip = &entity.Customer{ID: uuid.New(), Name: "Bo", AccountNumber: &vipAccount, PointsBalance: 40, LifetimeSpend: decimal.NewFromInt(5000)}
	f.customers = newFakeCustomerRepo(f.regular, f.vip)

	f.sales = newFakeSaleRepo()
	f.settings = &fakeSettingsRepo{}
	f.gateway = &fakeGateway{
		supported: map[string]bool{"stripe": true},
		statuses:  map[string]payments.SessionStatus{},
	}

	defaults := &entity.BusinessSettings{
		StoreName:                 "Fix It",
		Currency:                  "USD",
		TaxEnabled:                true,
		TaxRate:                   decimal.RequireFromString("0.10"),
		TaxExemptCategories:       []string{"services"},
		PointsEnabled:             true,
		PointsPerDollar:           decimal.RequireFromString("0.1"),
		PointsRedemptionThreshold: decimal.NewFromInt(3500),
		PointsValue:               decimal.NewFromInt(1),
	}

	f.settingsSvc = NewSettingsService(f.settings, defaults)
	f.catalogSvc = NewCatalogService(f.products)
	f.couponSvc = NewCouponService(f.coupons, time.Minute, nil, nil)
	f.couponSvc.now = func() time.Time { return fixedNow }
	f.loyaltySvc = NewLoyaltyService(f.customers, f.settingsSvc)
	f.saleSvc = NewSaleService(SaleServiceDeps{
		Transactor:  &fakeTransactor{sales: f.sales, coupons: f.coupons, customers: f.customers, products: f.products},
		SaleRepo:    f.sales,
		ProductRepo: f.products,
		Coupons:     f.couponSvc,
		Loyalty:     f.loyaltySvc,
		Settings:    f.settingsSvc,
		Gateway:     f.gateway,
		SuccessURL:  "https://pos.example/ok",
		CancelURL:   "https://pos.example/cancel",
		Now:         func() time.Time { return fixedNow },
	})
	f.checkoutSvc = NewCheckoutService(f.catalogSvc, f.couponSvc, f.loyaltySvc, f.settingsSvc, f.saleSvc, nil, nil)
	return f
}
