package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sangkips/repairpos-api/internal/config"
	domainRepo "github.com/sangkips/repairpos-api/internal/domain/repository"
	"github.com/sangkips/repairpos-api/internal/infrastructure/metrics"
	"github.com/sangkips/repairpos-api/internal/presentation/http/handler"
	"github.com/sangkips/repairpos-api/internal/presentation/http/middleware"
	"github.com/sangkips/repairpos-api/pkg/utils"
)

// Roles allowed to change coupons and settings
var managerRoles = []string{"admin", "manager"}

// Handlers holds all the HTTP handlers used for route registration.
type Handlers struct {
	Checkout *handler.CheckoutHandler
	Coupon   *handler.CouponHandler
	Customer *handler.CustomerHandler
	Catalog  *handler.CatalogHandler
	Sale     *handler.SaleHandler
	Settings *handler.SettingsHandler
}

// Deps holds shared dependencies needed by the routes.
type Deps struct {
	JWTManager      *utils.JWTManager
	Cfg             *config.Config
	IdempotencyRepo domainRepo.IdempotencyRepository
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
	RateLimiter     *middleware.CashierRateLimiter
}

// Setup creates the Gin router and registers all routes.
func Setup(h *Handlers, deps *Deps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(deps.Logger, deps.Metrics))
	router.Use(middleware.CORSMiddleware(&deps.Cfg.CORS))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": deps.Cfg.App.Name,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	if deps.Cfg.Metrics.Enabled && deps.Metrics != nil {
		router.GET(deps.Cfg.Metrics.Path, gin.WrapH(deps.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		// Signed by the gateway, not by a cashier token
		v1.POST("/webhooks/stripe", h.Sale.StripeWebhook)

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(deps.JWTManager))
		if deps.RateLimiter != nil {
			protected.Use(deps.RateLimiter.Middleware())
		}

		registerProtectedRoutes(protected, h, deps)
	}

	return router
}

func registerProtectedRoutes(protected *gin.RouterGroup, h *Handlers, deps *Deps) {
	idem := middleware.IdempotencyConfig{
		Repo:   deps.IdempotencyRepo,
		TTL:    deps.Cfg.Idempotency.TTL,
		Logger: deps.Logger,
	}

	// Checkout
	checkout := protected.Group("/checkout")
	{
		checkout.POST("/quote", h.Checkout.Quote)
		checkout.POST("/sales", middleware.IdempotencyRequired(idem), h.Checkout.Checkout)
	}

	// Catalog
	catalog := protected.Group("/catalog")
	{
		catalog.GET("", h.Catalog.List)
		catalog.GET("/code/:code", h.Catalog.GetByCode)
		catalog.GET("/:id", h.Catalog.Get)
	}

	// Customers
	customers := protected.Group("/customers")
	{
		customers.GET("", h.Customer.List)
		customers.GET("/account/:account_number", h.Customer.GetByAccount)
		customers.GET("/:id/loyalty", h.Customer.GetLoyalty)
	}

	registerCouponRoutes(protected, h, idem)
	registerSaleRoutes(protected, h, idem)

	// Settings
	protected.GET("/settings", h.Settings.GetSettings)
	protected.PUT("/settings", middleware.RequireRole(managerRoles...), h.Settings.UpdateSettings)
}

func registerCouponRoutes(protected *gin.RouterGroup, h *Handlers, idem middleware.IdempotencyConfig) {
	coupons := protected.Group("/coupons")
	{
		coupons.POST("/validate", h.Coupon.Validate)
		coupons.GET("", h.Coupon.List)
		coupons.GET("/:id", h.Coupon.Get)

		manage := coupons.Group("")
		manage.Use(middleware.RequireRole(managerRoles...))
		manage.POST("", middleware.Idempotency(idem), h.Coupon.Create)
		manage.PUT("/:id", h.Coupon.Update)
		manage.DELETE("/:id", h.Coupon.Delete)
	}
}

func registerSaleRoutes(protected *gin.RouterGroup, h *Handlers, idem middleware.IdempotencyConfig) {
	sales := protected.Group("/sales")
	{
		sales.GET("", h.Sale.List)
		sales.POST("/confirm", middleware.Idempotency(idem), h.Sale.ConfirmSession)
		sales.GET("/:id", h.Sale.Get)
		sales.POST("/:id/confirm", middleware.Idempotency(idem), h.Sale.Confirm)
		sales.POST("/:id/cancel", h.Sale.Cancel)
	}
}
