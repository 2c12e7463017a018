package entity

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyKey remembers the response to a state-changing request so a
// retried submission replays it instead of creating a second sale
type IdempotencyKey struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Key          string    `gorm:"uniqueIndex:idx_idempotency_cashier_key;size:255;not null"`
	CashierID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_idempotency_cashier_key"`
	Endpoint     string    `gorm:"size:255;not null"` // e.g. "POST /checkout/sales"
	ResponseCode int       `gorm:"not null"` // 0 while the request is in flight
	ResponseBody string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	ExpiresAt    time.Time `gorm:"not null;index"`
}

// TableName returns the table name for IdempotencyKey
func (IdempotencyKey) TableName() string {
	return "idempotency_keys"
}

// IsExpiredAt reports whether the key is no longer replayable at now
func (i *IdempotencyKey) IsExpiredAt(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// InProgress reports whether the request holding the key has not answered yet
func (i *IdempotencyKey) InProgress() bool {
	return i.ResponseCode == 0
}
