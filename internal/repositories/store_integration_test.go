package repositories

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"custody/internal/models"
	"custody/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupPostgresStore(t *testing.T) (Store, *gorm.DB) {
	t.Helper()
	if os.Getenv("RUN_DB_INTEGRATION") == "" {
		t.Skip("set RUN_DB_INTEGRATION=1 to run")
	}
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=postgres dbname=custody_test port=5432 sslmode=disable"
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Skipf("db connection failed: %v", err)
	}
	require.NoError(t, DropAllTables(db))
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		_ = DropAllTables(db)
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewStore(db), db
}

func TestPostgresStoreWalletLifecycle(t *testing.T) {
	store, _ := setupPostgresStore(t)
	ctx := context.Background()

	w := &models.Wallet{AccountID: "acct-1", Balance: 1000, Currency: "USD", PayerRef: "cus_1"}
	require.NoError(t, store.Wallets().Create(ctx, w))

	err := store.Wallets().Create(ctx, &models.Wallet{AccountID: "acct-1", Currency: "USD", PayerRef: "cus_2"})
	assert.ErrorIs(t, err, ErrDuplicate)

	stale := *w
	require.NoError(t, store.Wallets().UpdateBalance(ctx, w, 400))
	assert.ErrorIs(t, store.Wallets().UpdateBalance(ctx, &stale, 1), ErrConflict)

	got, err := store.Wallets().GetByAccountID(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, money.Amount(400), got.Balance)
	assert.Equal(t, int64(1), got.Version)
}

func TestPostgresStoreRollback(t *testing.T) {
	store, _ := setupPostgresStore(t)
	ctx := context.Background()
	w := &models.Wallet{AccountID: "acct-1", Balance: 100, Currency: "USD", PayerRef: "cus_1"}
	require.NoError(t, store.Wallets().Create(ctx, w))
	boom := errors.New("boom")

	err := store.ExecuteInTransaction(ctx, func(tx Store) error {
		locked, err := tx.Wallets().LockByIDs(ctx, w.ID)
		if err != nil {
			return err
		}
		if err := tx.Wallets().UpdateBalance(ctx, locked[w.ID], 0); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Wallets().GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(100), got.Balance)
}

func TestPostgresStoreJournal(t *testing.T) {
	store, _ := setupPostgresStore(t)
	ctx := context.Background()
	w := &models.Wallet{AccountID: "acct-1", Currency: "USD", PayerRef: "cus_1"}
	require.NoError(t, store.Wallets().Create(ctx, w))

	tx := &models.Transaction{
		Kind:         models.TransactionKindDeposit,
		Amount:       250,
		Currency:     "USD",
		DestWalletID: &w.ID,
		Status:       models.TransactionStatusPending,
		ExternalRef:  strPtr("pi_1"),
	}
	require.NoError(t, store.Transactions().Create(ctx, tx))

	dup := &models.Transaction{Kind: models.TransactionKindDeposit, Amount: 1, Currency: "USD", ExternalRef: strPtr("pi_1")}
	assert.ErrorIs(t, store.Transactions().Create(ctx, dup), ErrDuplicate)

	zero := &models.Transaction{Kind: models.TransactionKindDeposit, Amount: 0, Currency: "USD"}
	assert.ErrorIs(t, store.Transactions().Create(ctx, zero), ErrCheckViolation)

	require.NoError(t, store.Transactions().UpdateStatus(ctx, tx.ID, models.TransactionStatusPending, models.TransactionStatusCompleted, models.JSON{"gateway_status": "succeeded"}))
	assert.ErrorIs(t, store.Transactions().UpdateStatus(ctx, tx.ID, models.TransactionStatusPending, models.TransactionStatusFailed, nil), ErrConflict)

	history, err := store.Transactions().ListByWallet(ctx, w.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.TransactionStatusCompleted, history[0].Status)
	assert.Equal(t, "succeeded", history[0].Metadata["gateway_status"])
}

func TestPostgresStoreConcurrentCredits(t *testing.T) {
	store, _ := setupPostgresStore(t)
	ctx := context.Background()
	w := &models.Wallet{AccountID: "acct-1", Currency: "USD", PayerRef: "cus_1"}
	require.NoError(t, store.Wallets().Create(ctx, w))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.ExecuteInTransaction(ctx, func(tx Store) error {
				locked, err := tx.Wallets().LockByIDs(ctx, w.ID)
				if err != nil {
					return err
				}
				return tx.Wallets().UpdateBalance(ctx, locked[w.ID], locked[w.ID].Balance+5)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	total, err := store.Wallets().TotalBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(100), total)
}
