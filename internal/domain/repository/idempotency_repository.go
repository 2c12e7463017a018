package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sangkips/repairpos-api/internal/domain/entity"
)

// IdempotencyRepository defines the interface for idempotency key operations
type IdempotencyRepository interface {
	GetByKey(ctx context.Context, key string, cashierID uuid.UUID) (*entity.IdempotencyKey, error)
	// Reserve claims the key for one in-flight request. Returns false when an
	// unexpired entry already holds it.
	Reserve(ctx context.Context, ikey *entity.IdempotencyKey, now time.Time) (bool, error)
	// Complete records the response of the request holding the key
	Complete(ctx context.Context, key string, cashierID uuid.UUID, code int, body string, expiresAt time.Time) error
	// Release frees the key after a failed request
	Release(ctx context.Context, key string, cashierID uuid.UUID) error
	DeleteExpired(ctx context.Context, before time.Time) error
}
