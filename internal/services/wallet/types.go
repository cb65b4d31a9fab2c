package wallet

import (
	"time"

	"custody/internal/models"
	"custody/internal/money"
	"custody/internal/services/gateway"
)

// Config holds configuration for ledger operations
type Config struct {
	Currency string
	// MaxRetries bounds how many times a unit of work is re-run after a
	// storage conflict before Conflict is reported.
	MaxRetries     int
	RetryBackoff   time.Duration
	StatusCacheTTL time.Duration
}

// DepositIntent is what a client needs to complete a deposit with the
// provider.
type DepositIntent struct {
	PaymentRef    string                      `json:"payment_ref"`
	ClientSecret  string                      `json:"client_secret"`
	Amount        money.Amount                `json:"amount"`
	Currency      string                      `json:"currency"`
	Status        gateway.AuthorizationStatus `json:"status"`
	TransactionID string                      `json:"transaction_id"`
}

// DepositResult reports a settled deposit. AlreadyApplied is set when the
// reference had been credited before this call.
type DepositResult struct {
	Wallet         *models.Wallet      `json:"wallet"`
	Transaction    *models.Transaction `json:"transaction"`
	AlreadyApplied bool                `json:"already_applied"`
}

// PaymentStatus is the projection returned by GetPaymentStatus.
type PaymentStatus struct {
	PaymentRef    string       `json:"payment_ref"`
	TransactionID string       `json:"transaction_id"`
	WalletID      string       `json:"wallet_id"`
	Status        string       `json:"status"`
	Amount        money.Amount `json:"amount"`
	Currency      string       `json:"currency"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// MetricsCollector defines the interface for collecting ledger metrics
type MetricsCollector interface {
	// Operation metrics
	RecordOperationDuration(operation string, duration time.Duration)
	RecordOperationResult(operation, result string)

	// Cache metrics
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)

	// Error metrics
	RecordError(operation, errType string)
	RecordRetry(operation string)

	// Transaction metrics
	RecordTransaction(txType string, amount money.Amount)
}
