package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sangkips/repairpos-api/internal/application/service"
	"github.com/sangkips/repairpos-api/internal/config"
	domainRepo "github.com/sangkips/repairpos-api/internal/domain/repository"
	"github.com/sangkips/repairpos-api/internal/infrastructure/database"
	"github.com/sangkips/repairpos-api/internal/infrastructure/metrics"
	"github.com/sangkips/repairpos-api/internal/infrastructure/repository"
	"github.com/sangkips/repairpos-api/internal/presentation/http/handler"
	"github.com/sangkips/repairpos-api/internal/presentation/http/middleware"
	"github.com/sangkips/repairpos-api/internal/presentation/http/routes"
	"github.com/sangkips/repairpos-api/pkg/logger"
	"github.com/sangkips/repairpos-api/pkg/payments"
	"github.com/sangkips/repairpos-api/pkg/utils"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if !cfg.EnvFileLoaded {
		log.Info("no .env file found, using environment and defaults")
	}

	// Set Gin mode based on environment
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.NewPostgresDB(&cfg.Database, log, cfg.App.Debug)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run auto-migrations
	if err := database.AutoMigrate(db, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Seed default data
	if err := database.SeedDefaultData(db, cfg.Pricing, log); err != nil {
		log.Warn("failed to seed default data", zap.Error(err))
	}

	m := metrics.New()

	// Initialize repositories
	transactor := repository.NewTransactor(db)
	productRepo := repository.NewProductRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	gateway, err := newPaymentGateway(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize payment gateway", zap.Error(err))
	}

	// Initialize services
	settingsService := service.NewSettingsService(settingsRepo, database.DefaultSettings(cfg.Pricing))
	catalogService := service.NewCatalogService(productRepo)
	couponService := service.NewCouponService(couponRepo, cfg.Coupon.CacheTTL, m, log)
	loyaltyService := service.NewLoyaltyService(customerRepo, settingsService)
	saleService := service.NewSaleService(service.SaleServiceDeps{
		Transactor:  transactor,
		SaleRepo:    saleRepo,
		ProductRepo: productRepo,
		Coupons:     couponService,
		Loyalty:     loyaltyService,
		Settings:    settingsService,
		Gateway:     gateway,
		Metrics:     m,
		Logger:      log,
		SuccessURL:  cfg.Stripe.SuccessURL,
		CancelURL:   cfg.Stripe.CancelURL,
	})
	checkoutService := service.NewCheckoutService(catalogService, couponService, loyaltyService, settingsService, saleService, m, log)

	// Initialize handlers
	handlers := &routes.Handlers{
		Checkout: handler.NewCheckoutHandler(checkoutService),
		Coupon:   handler.NewCouponHandler(couponService),
		Customer: handler.NewCustomerHandler(loyaltyService),
		Catalog:  handler.NewCatalogHandler(catalogService),
		Sale:     handler.NewSaleHandler(saleService),
		Settings: handler.NewSettingsHandler(settingsService),
	}

	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.ExpiryHours)

	rateLimiter := middleware.NewCashierRateLimiter(rateLimiterConfig(cfg.RateLimit))
	defer rateLimiter.Stop()

	// Setup routes
	router := routes.Setup(handlers, &routes.Deps{
		JWTManager:      jwtManager,
		Cfg:             cfg,
		IdempotencyRepo: idempotencyRepo,
		Logger:          log,
		Metrics:         m,
		RateLimiter:     rateLimiter,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go purgeIdempotencyKeys(ctx, idempotencyRepo, log)

	port := cfg.App.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting server",
			zap.String("app", cfg.App.Name),
			zap.String("port", port),
			zap.String("env", cfg.App.Env),
			zap.Bool("gateway", gateway.Supports("stripe")),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newPaymentGateway registers Stripe when a secret key is configured. Without
// one, non-cash sales are rejected as unavailable.
func newPaymentGateway(cfg *config.Config, log *zap.Logger) (*payments.Manager, error) {
	providers := map[string]payments.Provider{}
	if cfg.Stripe.SecretKey != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey:        cfg.Stripe.SecretKey,
			AccountID:     cfg.Stripe.AccountID,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Logger:        log,
		})
		if err != nil {
			return nil, err
		}
		providers["stripe"] = stripeProvider
		if cfg.Stripe.WebhookSecret == "" {
			log.Warn("STRIPE_WEBHOOK_SECRET not set, card sales must be confirmed by the till")
		}
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, card payments disabled")
	}
	return payments.NewManager(providers)
}

func rateLimiterConfig(rl config.RateLimitConfig) middleware.RateLimiterConfig {
	out := middleware.DefaultRateLimiterConfig()
	if rl.Requests > 0 && rl.Duration > 0 {
		out.RequestsPerSecond = float64(rl.Requests) / float64(rl.Duration)
		out.BurstSize = rl.Requests
	}
	return out
}

func purgeIdempotencyKeys(ctx context.Context, repo domainRepo.IdempotencyRepository, log *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := repo.DeleteExpired(ctx, now); err != nil {
				log.Warn("failed to purge idempotency keys", zap.Error(err))
			}
		}
	}
}
