package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"custody/internal/models"
	"custody/internal/money"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{
		db: db,
	}
}

func (r *walletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	if wallet.ID == "" {
		wallet.ID = uuid.NewString()
	}
	if wallet.Balance < 0 {
		return ErrNegativeBalance
	}
	result := r.db.WithContext(ctx).Create(wallet)
	if result.Error != nil {
		return fmt.Errorf("failed to create wallet: %w", translateError(result.Error))
	}
	return nil
}

func (r *walletRepository) GetByID(ctx context.Context, id string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *walletRepository) GetByAccountID(ctx context.Context, accountID string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *walletRepository) LockByIDs(ctx context.Context, ids ...string) (map[string]*models.Wallet, error) {
	ordered := sortedUnique(ids)
	locked := make(map[string]*models.Wallet, len(ordered))

	// One statement per row keeps the acquisition order deterministic.
	for _, id := range ordered {
		var wallet models.Wallet
		err := r.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&wallet).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrWalletNotFound
			}
			return nil, fmt.Errorf("failed to lock wallet: %w", translateError(err))
		}
		locked[id] = &wallet
	}
	return locked, nil
}

func (r *walletRepository) UpdateBalance(ctx context.Context, wallet *models.Wallet, newBalance money.Amount) error {
	if newBalance < 0 {
		return ErrNegativeBalance
	}
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND version = ?", wallet.ID, wallet.Version).
		Updates(map[string]interface{}{
			"balance":    newBalance,
			"version":    wallet.Version + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update wallet balance: %w", translateError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	wallet.Balance = newBalance
	wallet.Version++
	wallet.UpdatedAt = now
	return nil
}

func (r *walletRepository) TotalBalance(ctx context.Context) (money.Amount, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Select("COALESCE(SUM(balance), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum wallet balances: %w", err)
	}
	return money.Amount(total), nil
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
