package repositories

import (
	"context"

	"gorm.io/gorm"
)

type gormStore struct {
	db *gorm.DB
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Wallets() WalletRepository {
	return NewWalletRepository(s.db)
}

func (s *gormStore) Transactions() TransactionRepository {
	return NewTransactionRepository(s.db)
}

func (s *gormStore) PaymentMethods() PaymentMethodRepository {
	return NewPaymentMethodRepository(s.db)
}

func (s *gormStore) Verifications() VerificationRepository {
	return NewVerificationRepository(s.db)
}

// ExecuteInTransaction runs fn inside a database transaction. gorm turns a
// nested call into a savepoint on the outer transaction.
func (s *gormStore) ExecuteInTransaction(ctx context.Context, fn func(Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
	return translateError(err)
}
