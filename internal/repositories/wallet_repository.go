package repositories

import (
	"context"
	"errors"

	"custody/internal/models"
	"custody/internal/money"
)

var (
	ErrWalletNotFound        = errors.New("wallet not found")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	ErrVerificationNotFound  = errors.New("verification record not found")
	ErrDuplicate             = errors.New("record already exists")
	ErrConflict              = errors.New("concurrent update conflict")
	ErrNegativeBalance       = errors.New("balance cannot be negative")
	ErrCheckViolation        = errors.New("check constraint violated")
)

// WalletRepository defines the interface for wallet-related database operations
type WalletRepository interface {
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByID(ctx context.Context, id string) (*models.Wallet, error)
	GetByAccountID(ctx context.Context, accountID string) (*models.Wallet, error)

	// LockByIDs loads the wallets with a row lock, acquiring locks in
	// ascending id order whatever order the ids are passed in. Only
	// meaningful inside ExecuteInTransaction.
	LockByIDs(ctx context.Context, ids ...string) (map[string]*models.Wallet, error)

	// UpdateBalance stores newBalance if the row still carries wallet.Version,
	// then bumps the version on both the row and wallet. A stale version
	// returns ErrConflict.
	UpdateBalance(ctx context.Context, wallet *models.Wallet, newBalance money.Amount) error

	TotalBalance(ctx context.Context) (money.Amount, error)
}

// TransactionRepository persists the append-only journal.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	GetByExternalRef(ctx context.Context, ref string) (*models.Transaction, error)
	GetByExternalRefForUpdate(ctx context.Context, ref string) (*models.Transaction, error)

	// UpdateStatus moves a row from one status to another and merges metadata.
	// It returns ErrConflict when the stored status is not from.
	UpdateStatus(ctx context.Context, id, from, to string, metadata models.JSON) error

	ListByWallet(ctx context.Context, walletID string, limit, offset int) ([]*models.Transaction, error)
}

type PaymentMethodRepository interface {
	Create(ctx context.Context, pm *models.PaymentMethod) error
	GetByExternalID(ctx context.Context, externalID string) (*models.PaymentMethod, error)
	ListByAccountID(ctx context.Context, accountID string) ([]*models.PaymentMethod, error)
	Delete(ctx context.Context, id string) error
}

type VerificationRepository interface {
	Create(ctx context.Context, v *models.KYCVerification) error
	GetByAccountID(ctx context.Context, accountID string) (*models.KYCVerification, error)
	// GetByAccountIDForUpdate holds the row until the enclosing unit of work ends.
	GetByAccountIDForUpdate(ctx context.Context, accountID string) (*models.KYCVerification, error)
	Update(ctx context.Context, v *models.KYCVerification) error
}

// Store groups the repositories behind one unit of work. Repositories
// obtained from the Store passed to ExecuteInTransaction's callback commit or
// roll back together.
type Store interface {
	Wallets() WalletRepository
	Transactions() TransactionRepository
	PaymentMethods() PaymentMethodRepository
	Verifications() VerificationRepository

	// ExecuteInTransaction runs fn atomically. A nested call joins the
	// enclosing transaction.
	ExecuteInTransaction(ctx context.Context, fn func(Store) error) error
}
