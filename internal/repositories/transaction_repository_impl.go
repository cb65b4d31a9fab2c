package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"custody/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", translateError(err))
	}
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	return r.first(ctx, r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *transactionRepository) GetByExternalRef(ctx context.Context, ref string) (*models.Transaction, error) {
	return r.first(ctx, r.db.WithContext(ctx).Where("external_ref = ?", ref))
}

func (r *transactionRepository) GetByExternalRefForUpdate(ctx context.Context, ref string) (*models.Transaction, error) {
	query := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_ref = ?", ref)
	return r.first(ctx, query)
}

func (r *transactionRepository) first(_ context.Context, query *gorm.DB) (*models.Transaction, error) {
	var tx models.Transaction
	if err := query.First(&tx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", translateError(err))
	}
	return &tx, nil
}

func (r *transactionRepository) UpdateStatus(ctx context.Context, id, from, to string, metadata models.JSON) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != from {
		return ErrConflict
	}

	merged := models.NewJSON(current.Metadata)
	if len(metadata) > 0 && merged == nil {
		merged = models.JSON{}
	}
	for k, v := range metadata {
		merged[k] = v
	}

	result := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"metadata":   merged,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update transaction status: %w", translateError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *transactionRepository) ListByWallet(ctx context.Context, walletID string, limit, offset int) ([]*models.Transaction, error) {
	query := r.db.WithContext(ctx).
		Where("source_wallet_id = ? OR dest_wallet_id = ?", walletID, walletID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var txs []*models.Transaction
	if err := query.Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return txs, nil
}
