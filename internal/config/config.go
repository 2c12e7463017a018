package config

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	CORS        CORSConfig
	RateLimit   RateLimitConfig
	Log         LogConfig
	Stripe      StripeConfig
	Pricing     PricingConfig
	Coupon      CouponConfig
	Metrics     MetricsConfig
	Idempotency IdempotencyConfig

	// EnvFileLoaded is false when no .env file was found
	EnvFileLoaded bool
}

type AppConfig struct {
	Name  string
	Env   string
	Port  string
	Debug bool
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	Timezone     string
	MaxIdleConns int
	MaxOpenConns int
}

type JWTConfig struct {
	Secret      string
	ExpiryHours time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type RateLimitConfig struct {
	Requests int
	Duration int
}

type LogConfig struct {
	Level  string
	Format string
}

type StripeConfig struct {
	SecretKey     string
	AccountID     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// PricingConfig seeds the business settings row on first start
type PricingConfig struct {
	Currency                  string
	TaxEnabled                bool
	TaxRate                   decimal.Decimal
	TaxExemptCategories       []string
	PointsEnabled             bool
	PointsPerDollar           decimal.Decimal
	PointsRedemptionThreshold decimal.Decimal
	PointsValue               decimal.Decimal
}

type CouponConfig struct {
	CacheTTL time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type IdempotencyConfig struct {
	TTL time.Duration
}

// Load reads configuration from ./.env and the environment
func Load() *Config {
	return LoadFile(".env")
}

// LoadFile reads configuration from path and the environment. A missing file
// is not an error; defaults and environment variables still apply.
func LoadFile(path string) *Config {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	loaded := v.ReadInConfig() == nil

	setDefaults(v)

	return &Config{
		App: AppConfig{
			Name:  v.GetString("APP_NAME"),
			Env:   v.GetString("APP_ENV"),
			Port:  v.GetString("APP_PORT"),
			Debug: v.GetBool("APP_DEBUG"),
		},
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetString("DB_PORT"),
			Name:         v.GetString("DB_NAME"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			SSLMode:      v.GetString("DB_SSL_MODE"),
			Timezone:     v.GetString("DB_TIMEZONE"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		},
		JWT: JWTConfig{
			Secret:      v.GetString("JWT_SECRET"),
			ExpiryHours: time.Duration(v.GetInt("JWT_EXPIRY_HOURS")) * time.Hour,
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			AllowedMethods: splitList(v.GetString("CORS_ALLOWED_METHODS")),
			AllowedHeaders: splitList(v.GetString("CORS_ALLOWED_HEADERS")),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Duration: v.GetInt("RATE_LIMIT_DURATION"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("STRIPE_SECRET_KEY"),
			AccountID:     v.GetString("STRIPE_ACCOUNT_ID"),
			WebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
			SuccessURL:    v.GetString("STRIPE_SUCCESS_URL"),
			CancelURL:     v.GetString("STRIPE_CANCEL_URL"),
		},
		Pricing: PricingConfig{
			Currency:                  strings.ToUpper(v.GetString("CURRENCY")),
			TaxEnabled:                v.GetBool("TAX_ENABLED"),
			TaxRate:                   getDecimal(v, "TAX_RATE"),
			TaxExemptCategories:       splitList(v.GetString("TAX_EXEMPT_CATEGORIES")),
			PointsEnabled:             v.GetBool("POINTS_ENABLED"),
			PointsPerDollar:           getDecimal(v, "POINTS_PER_DOLLAR"),
			PointsRedemptionThreshold: getDecimal(v, "POINTS_REDEMPTION_THRESHOLD"),
			PointsValue:               getDecimal(v, "POINTS_VALUE"),
		},
		Coupon: CouponConfig{
			CacheTTL: time.Duration(v.GetInt("COUPON_CACHE_TTL_SECONDS")) * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
			Path:    v.GetString("METRICS_PATH"),
		},
		Idempotency: IdempotencyConfig{
			TTL: time.Duration(v.GetInt("IDEMPOTENCY_TTL_HOURS")) * time.Hour,
		},
		EnvFileLoaded: loaded,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "repairpos-api")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_DEBUG", true)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "repairpos")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 50)
	v.SetDefault("JWT_SECRET", "change-this-secret-in-production")
	v.SetDefault("JWT_EXPIRY_HOURS", 24)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	v.SetDefault("CORS_ALLOWED_HEADERS", "")
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_DURATION", 60)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("STRIPE_SUCCESS_URL", "http://localhost:3000/pos/checkout/success?session_id={CHECKOUT_SESSION_ID}")
	v.SetDefault("STRIPE_CANCEL_URL", "http://localhost:3000/pos/checkout/cancel")
	v.SetDefault("CURRENCY", "USD")
	v.SetDefault("TAX_ENABLED", true)
	v.SetDefault("TAX_RATE", "0")
	v.SetDefault("TAX_EXEMPT_CATEGORIES", "")
	v.SetDefault("POINTS_ENABLED", true)
	v.SetDefault("POINTS_PER_DOLLAR", "0.002")
	v.SetDefault("POINTS_REDEMPTION_THRESHOLD", "3500")
	v.SetDefault("POINTS_VALUE", "1")
	v.SetDefault("COUPON_CACHE_TTL_SECONDS", 30)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_PATH", "/metrics")
	v.SetDefault("IDEMPOTENCY_TTL_HOURS", 24)
}

// IsProduction reports whether APP_ENV is production
func (c *AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.Timezone
}

func getDecimal(v *viper.Viper, key string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
