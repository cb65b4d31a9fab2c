// Package transaction records money movements. Entries are never deleted,
// their kind, amount and wallet references never change, and their status
// only moves forward out of pending.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "custody/internal/errors"
	"custody/internal/models"
	"custody/internal/money"
	"custody/internal/repositories"
)

type service struct {
	store repositories.Store
}

// NewService creates a journal over store.
func NewService(store repositories.Store) Service {
	if store == nil {
		panic("store is required")
	}
	return &service{store: store}
}

func (s *service) WithStore(store repositories.Store) Service {
	return &service{store: store}
}

func (s *service) Record(ctx context.Context, req RecordRequest) (*models.Transaction, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.TransactionStatusCompleted
		if req.ExternalRef != "" {
			status = models.TransactionStatusPending
		}
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = money.DefaultCurrency
	}

	tx := &models.Transaction{
		Kind:           req.Kind,
		Amount:         req.Amount,
		Currency:       currency,
		SourceWalletID: optional(req.SourceWalletID),
		DestWalletID:   optional(req.DestWalletID),
		Status:         status,
		ExternalRef:    optional(req.ExternalRef),
		Description:    req.Description,
		Metadata:       models.NewJSON(req.Metadata),
	}
	if err := s.store.Transactions().Create(ctx, tx); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperrors.Newf(apperrors.KindAlreadyExists, "TRANSACTION_EXISTS",
				"a transaction with reference %s already exists", req.ExternalRef)
		}
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}
	return tx, nil
}

func validate(req RecordRequest) error {
	if !req.Amount.IsPositive() {
		return apperrors.Newf(apperrors.KindInvalidAmount, "INVALID_AMOUNT", "amount must be positive, got %s", req.Amount)
	}
	switch req.Status {
	case "", models.TransactionStatusPending, models.TransactionStatusCompleted, models.TransactionStatusFailed:
	default:
		return apperrors.Newf(apperrors.KindInvalidState, "INVALID_TRANSACTION_STATUS", "unknown status %q", req.Status)
	}

	switch req.Kind {
	case models.TransactionKindDeposit:
		if req.DestWalletID == "" || req.SourceWalletID != "" {
			return apperrors.New(apperrors.KindInvalidState, "INVALID_DEPOSIT", "a deposit credits one wallet and has no source")
		}
	case models.TransactionKindWithdraw:
		if req.SourceWalletID == "" || req.DestWalletID != "" {
			return apperrors.New(apperrors.KindInvalidState, "INVALID_WITHDRAWAL", "a withdrawal debits one wallet and has no destination")
		}
	case models.TransactionKindTransfer:
		if req.SourceWalletID == "" || req.DestWalletID == "" {
			return apperrors.New(apperrors.KindInvalidState, "INVALID_TRANSFER", "a transfer needs source and destination wallets")
		}
		if req.SourceWalletID == req.DestWalletID {
			return apperrors.New(apperrors.KindInvalidState, "SELF_TRANSFER", "source and destination wallets must differ")
		}
	default:
		return apperrors.Newf(apperrors.KindInvalidState, "INVALID_TRANSACTION_KIND", "unknown transaction kind %q", req.Kind)
	}
	return nil
}

func (s *service) FindByID(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := s.store.Transactions().GetByID(ctx, id)
	return tx, notFound(err, "transaction "+id)
}

func (s *service) FindByExternalRef(ctx context.Context, ref string) (*models.Transaction, error) {
	tx, err := s.store.Transactions().GetByExternalRef(ctx, ref)
	return tx, notFound(err, "payment "+ref)
}

func (s *service) FindByExternalRefForUpdate(ctx context.Context, ref string) (*models.Transaction, error) {
	tx, err := s.store.Transactions().GetByExternalRefForUpdate(ctx, ref)
	return tx, notFound(err, "payment "+ref)
}

func notFound(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repositories.ErrTransactionNotFound) {
		return apperrors.Wrap(apperrors.KindNotFound, "TRANSACTION_NOT_FOUND", what+" not found", err)
	}
	return fmt.Errorf("failed to get transaction: %w", err)
}

func (s *service) BelongsToAccount(ctx context.Context, tx *models.Transaction, accountID string) (bool, error) {
	for _, walletID := range []*string{tx.SourceWalletID, tx.DestWalletID} {
		if walletID == nil {
			continue
		}
		wallet, err := s.store.Wallets().GetByID(ctx, *walletID)
		if err != nil {
			if errors.Is(err, repositories.ErrWalletNotFound) {
				continue
			}
			return false, fmt.Errorf("failed to resolve wallet owner: %w", err)
		}
		if wallet.AccountID == accountID {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) MarkCompleted(ctx context.Context, tx *models.Transaction, metadata models.JSON) error {
	return s.transition(ctx, tx, models.TransactionStatusCompleted, metadata)
}

func (s *service) MarkFailed(ctx context.Context, tx *models.Transaction, reason string) error {
	return s.transition(ctx, tx, models.TransactionStatusFailed, models.JSON{"failure_reason": reason})
}

func (s *service) transition(ctx context.Context, tx *models.Transaction, to string, metadata models.JSON) error {
	if tx.Status != models.TransactionStatusPending {
		return apperrors.Newf(apperrors.KindInvalidState, "TRANSACTION_NOT_PENDING",
			"transaction %s is %s and cannot become %s", tx.ID, tx.Status, to)
	}
	err := s.store.Transactions().UpdateStatus(ctx, tx.ID, models.TransactionStatusPending, to, metadata)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return apperrors.Wrap(apperrors.KindInvalidState, "TRANSACTION_NOT_PENDING",
				fmt.Sprintf("transaction %s is no longer pending", tx.ID), err)
		}
		return notFound(err, "transaction "+tx.ID)
	}

	tx.Status = to
	if len(metadata) > 0 {
		if tx.Metadata == nil {
			tx.Metadata = models.JSON{}
		}
		for k, v := range metadata {
			tx.Metadata[k] = v
		}
	}
	return nil
}

func (s *service) History(ctx context.Context, walletID string, limit, offset int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	txs, err := s.store.Transactions().ListByWallet(ctx, walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return txs, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
