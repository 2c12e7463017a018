package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer represents a shop customer and their loyalty standing
type Customer struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	AccountNumber *string         `gorm:"size:50;uniqueIndex" json:"account_number,omitempty"`
	Email         *string         `gorm:"size:255" json:"email,omitempty"`
	Phone         *string         `gorm:"size:50" json:"phone,omitempty"`
	Address       *string         `gorm:"type:text" json:"address,omitempty"`
	PointsBalance int64           `gorm:"not null;default:0;check:points_balance >= 0" json:"points_balance"`
	LifetimeSpend decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"lifetime_spend"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`

	Sales []Sale `gorm:"foreignKey:CustomerID" json:"-"`
}

// BeforeCreate generates a UUID and canonicalises the account number
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.AccountNumber != nil {
		account := NormalizeAccountNumber(*c.AccountNumber)
		c.AccountNumber = &account
	}
	return nil
}

// NormalizeAccountNumber returns the stored form of a customer account number
func NormalizeAccountNumber(account string) string {
	return strings.ToUpper(strings.TrimSpace(account))
}

// TableName returns the table name for the Customer model
func (Customer) TableName() string {
	return "customers"
}
