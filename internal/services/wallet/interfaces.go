package wallet

import (
	"context"
	"time"

	"custody/internal/models"
	"custody/internal/money"
	"custody/internal/repositories"
	"custody/internal/services/gateway"
	"custody/internal/services/notification"
	"custody/internal/services/payment_method"
	"custody/internal/services/transaction"

	"go.uber.org/zap"
)

// Service defines the ledger operations
type Service interface {
	// Wallet management
	CreateWallet(ctx context.Context, accountID, email string, initialBalance money.Amount) (*models.Wallet, error)
	GetWallet(ctx context.Context, accountID string) (*models.Wallet, error)
	GetBalance(ctx context.Context, accountID string) (money.Amount, error)

	// Deposits
	InitiateDeposit(ctx context.Context, accountID string, amount money.Amount) (*DepositIntent, error)
	ConfirmDeposit(ctx context.Context, accountID, paymentRef, instrumentRef string) (*DepositResult, error)
	GetPaymentStatus(ctx context.Context, accountID, paymentRef string) (*PaymentStatus, error)

	// Transfers
	Transfer(ctx context.Context, fromAccountID, toAccountID string, amount money.Amount, description string) (*models.Transaction, error)

	// History
	GetTransaction(ctx context.Context, accountID, transactionID string) (*models.Transaction, error)
	History(ctx context.Context, accountID string, limit, offset int) ([]*models.Transaction, error)

	// Payment methods
	AddPaymentMethod(ctx context.Context, accountID, externalID string) (*payment_method.AddResult, error)
	RemovePaymentMethod(ctx context.Context, accountID, externalID string) error
}

// IdentityGate answers whether an account may hold funds.
type IdentityGate interface {
	IsApproved(ctx context.Context, accountID string) (bool, error)
}

// PaymentMethods is the part of the instrument registry the ledger uses.
type PaymentMethods interface {
	Add(ctx context.Context, accountID, payerRef, externalID string) (*payment_method.AddResult, error)
	Find(ctx context.Context, accountID, externalID string) (*models.PaymentMethod, error)
	Remove(ctx context.Context, accountID, externalID string) error
}

// StatusCache stores terminal payment status projections.
type StatusCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SettlementLocker serializes settlement of one payment reference across
// processes.
type SettlementLocker interface {
	Acquire(ctx context.Context, ref string) (func(context.Context) error, error)
}

// Dependencies are the collaborators of the ledger. Cache, Lock, Notifier,
// Metrics and Logger are optional.
type Dependencies struct {
	Store    repositories.Store
	Journal  transaction.Service
	Identity IdentityGate
	Methods  PaymentMethods
	Gateway  gateway.Gateway
	Notifier notification.Notifier
	Cache    StatusCache
	Lock     SettlementLocker
	Metrics  MetricsCollector
	Logger   *zap.Logger
}
