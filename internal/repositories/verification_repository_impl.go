package repositories

import (
	"context"
	"errors"
	"fmt"

	"custody/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type verificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

func (r *verificationRepository) Create(ctx context.Context, v *models.KYCVerification) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("failed to create verification: %w", translateError(err))
	}
	return nil
}

func (r *verificationRepository) GetByAccountID(ctx context.Context, accountID string) (*models.KYCVerification, error) {
	var v models.KYCVerification
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVerificationNotFound
		}
		return nil, fmt.Errorf("failed to get verification: %w", err)
	}
	return &v, nil
}

func (r *verificationRepository) GetByAccountIDForUpdate(ctx context.Context, accountID string) (*models.KYCVerification, error) {
	var v models.KYCVerification
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ?", accountID).
		First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVerificationNotFound
		}
		return nil, fmt.Errorf("failed to lock verification: %w", translateError(err))
	}
	return &v, nil
}

func (r *verificationRepository) Update(ctx context.Context, v *models.KYCVerification) error {
	result := r.db.WithContext(ctx).Save(v)
	if result.Error != nil {
		return fmt.Errorf("failed to update verification: %w", translateError(result.Error))
	}
	return nil
}
