package models

import (
	"time"

	"custody/internal/money"
)

// Wallet holds the balance of exactly one account. Balance is stored in minor
// units and guarded by a CHECK constraint in addition to service checks.
type Wallet struct {
	ID        string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID string       `gorm:"type:varchar(64);uniqueIndex;not null" json:"account_id"`
	Balance   money.Amount `gorm:"not null;default:0;check:balance >= 0" json:"balance"`
	Currency  string       `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	PayerRef  string       `gorm:"type:varchar(255);not null" json:"payer_ref"`
	Version   int64        `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
