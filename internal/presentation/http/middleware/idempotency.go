package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
	"github.com/sangkips/repairpos-api/internal/domain/repository"
	"github.com/sangkips/repairpos-api/internal/presentation/http/dto/response"
)

const (
	// IdempotencyKeyHeader is the HTTP header for idempotency keys
	IdempotencyKeyHeader = "Idempotency-Key"
	// DefaultIdempotencyKeyTTL is how long keys are valid when no TTL is configured
	DefaultIdempotencyKeyTTL = 24 * time.Hour
	// DefaultIdempotencyLockTimeout bounds how long an unanswered request holds
	// its key, so a crashed request does not block retries for a full TTL
	DefaultIdempotencyLockTimeout = 2 * time.Minute
)

// IdempotencyConfig holds configuration for the idempotency middleware
type IdempotencyConfig struct {
	Repo        repository.IdempotencyRepository
	TTL         time.Duration
	LockTimeout time.Duration
	Logger      *zap.Logger
	Now         func() time.Time
}

func (cfg IdempotencyConfig) withDefaults() IdempotencyConfig {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultIdempotencyKeyTTL
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultIdempotencyLockTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg
}

// responseWriter wraps gin.ResponseWriter to capture the response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response when a request carries a key that
// was already processed. Requests without a key pass through.
func Idempotency(config IdempotencyConfig) gin.HandlerFunc {
	return idempotency(config.withDefaults(), false)
}

// IdempotencyRequired is a stricter version that rejects requests without a key
func IdempotencyRequired(config IdempotencyConfig) gin.HandlerFunc {
	return idempotency(config.withDefaults(), true)
}

func idempotency(config IdempotencyConfig, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			if required {
				response.BadRequest(c, "Idempotency-Key header is required for this request")
				c.Abort()
				return
			}
			c.Next()
			return
		}

		cashierID, ok := c.Get("user_id")
		userID, isUUID := cashierID.(uuid.UUID)
		if !ok || !isUUID {
			response.Unauthorized(c, "User not authenticated")
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		now := config.Now()
		reserved, err := config.Repo.Reserve(ctx, &entity.IdempotencyKey{
			Key:       key,
			CashierID: userID,
			Endpoint:  c.Request.Method + " " + c.FullPath(),
			ExpiresAt: now.Add(config.LockTimeout),
		}, now)
		if err != nil {
			config.Logger.Error("idempotency reservation failed", zap.String("key", key), zap.Error(err))
			response.InternalServerError(c, "Failed to check idempotency key")
			c.Abort()
			return
		}

		if !reserved {
			replay(c, config, key, userID)
			c.Abort()
			return
		}

		blw := &responseWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		// the outcome is recorded even if the client has gone away
		storeCtx := context.WithoutCancel(ctx)

		// Only keep successful responses so a failed attempt can be retried
		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			if err := config.Repo.Release(storeCtx, key, userID); err != nil {
				config.Logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
			}
			return
		}

		expiresAt := config.Now().Add(config.TTL)
		if err := config.Repo.Complete(storeCtx, key, userID, status, blw.body.String(), expiresAt); err != nil {
			config.Logger.Warn("failed to store idempotency key", zap.String("key", key), zap.Error(err))
		}
	}
}

// replay answers a request whose key is already held: with the stored
// response once there is one, or 409 while the first request is running
func replay(c *gin.Context, config IdempotencyConfig, key string, cashierID uuid.UUID) {
	existing, err := config.Repo.GetByKey(c.Request.Context(), key, cashierID)
	if err != nil {
		config.Logger.Error("idempotency lookup failed", zap.String("key", key), zap.Error(err))
		response.InternalServerError(c, "Failed to check idempotency key")
		return
	}

	if existing == nil || existing.InProgress() {
		c.Header("Retry-After", "1")
		response.ErrorWithCode(c, http.StatusConflict, "A request with this Idempotency-Key is still being processed")
		return
	}

	c.Header("X-Idempotency-Replayed", "true")
	c.Data(existing.ResponseCode, "application/json; charset=utf-8", []byte(existing.ResponseBody))
}
