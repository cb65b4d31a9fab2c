package models

import (
	"time"

	"custody/internal/money"
)

// Transaction kinds
const (
	TransactionKindDeposit  = "deposit"
	TransactionKindWithdraw = "withdraw"
	TransactionKindTransfer = "transfer"
)

// Transaction statuses
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// Transaction is one journal entry. Kind, amount and wallet references never
// change after insert; status only moves forward out of pending.
type Transaction struct {
	ID             string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Kind           string       `gorm:"type:varchar(16);not null;index" json:"kind"`
	Amount         money.Amount `gorm:"not null;check:amount > 0" json:"amount"`
	Currency       string       `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	SourceWalletID *string      `gorm:"type:varchar(36);index" json:"source_wallet_id"`
	DestWalletID   *string      `gorm:"type:varchar(36);index" json:"dest_wallet_id"`
	Status         string       `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	ExternalRef    *string      `gorm:"type:varchar(255);uniqueIndex" json:"external_ref"`
	Description    string       `json:"description"`
	Metadata       JSON         `gorm:"type:jsonb" json:"metadata"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// TableName keeps the journal apart from any provider-side "transactions".
func (Transaction) TableName() string {
	return "ledger_transactions"
}

// IsTerminal reports whether the status can no longer change.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}

// Touches reports whether walletID is the source or destination.
func (t *Transaction) Touches(walletID string) bool {
	return (t.SourceWalletID != nil && *t.SourceWalletID == walletID) ||
		(t.DestWalletID != nil && *t.DestWalletID == walletID)
}
