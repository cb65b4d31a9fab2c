package wallet

import (
	"context"
	"fmt"
	"time"

	apperrors "custody/internal/errors"
	"custody/internal/models"
	"custody/internal/money"
	"custody/internal/repositories"
	"custody/internal/services/notification"
	"custody/internal/services/transaction"

	"go.uber.org/zap"
)

func (s *service) Transfer(ctx context.Context, fromAccountID, toAccountID string, amount money.Amount, description string) (_ *models.Transaction, err error) {
	defer s.observe(OpTransfer, time.Now(), &err)

	if !amount.IsPositive() {
		return nil, apperrors.Newf(apperrors.KindInvalidAmount, "INVALID_AMOUNT",
			"transfer amount must be positive, got %s", amount)
	}
	if fromAccountID == toAccountID {
		return nil, apperrors.New(apperrors.KindInvalidState, "SELF_TRANSFER",
			"cannot transfer to the same account")
	}

	source, err := s.walletByAccount(ctx, s.store, fromAccountID)
	if err != nil {
		return nil, err
	}
	dest, err := s.walletByAccount(ctx, s.store, toAccountID)
	if err != nil {
		return nil, err
	}
	if source.Currency != dest.Currency {
		return nil, apperrors.Newf(apperrors.KindInvalidState, "CURRENCY_MISMATCH",
			"cannot transfer %s to a %s wallet", source.Currency, dest.Currency)
	}
	// Fail fast without taking locks; the check is repeated under lock.
	if source.Balance < amount {
		return nil, insufficientFunds(source.Balance, amount)
	}

	var (
		record     *models.Transaction
		srcBalance money.Amount
		dstBalance money.Amount
	)
	err = s.withRetry(ctx, OpTransfer, func() error {
		return s.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
			locked, err := tx.Wallets().LockByIDs(ctx, source.ID, dest.ID)
			if err != nil {
				return fmt.Errorf("failed to lock wallets: %w", err)
			}
			src, dst := locked[source.ID], locked[dest.ID]
			if src == nil || dst == nil {
				return fmt.Errorf("transfer %s -> %s: %w", source.ID, dest.ID, repositories.ErrWalletNotFound)
			}

			if src.Balance < amount {
				return insufficientFunds(src.Balance, amount)
			}
			credited, err := addBalance(dst.Balance, amount)
			if err != nil {
				return err
			}
			if err := tx.Wallets().UpdateBalance(ctx, src, src.Balance-amount); err != nil {
				return fmt.Errorf("failed to debit source wallet: %w", err)
			}
			if err := tx.Wallets().UpdateBalance(ctx, dst, credited); err != nil {
				return fmt.Errorf("failed to credit destination wallet: %w", err)
			}

			record, err = s.journal.WithStore(tx).Record(ctx, transaction.RecordRequest{
				Kind:           models.TransactionKindTransfer,
				Amount:         amount,
				Currency:       src.Currency,
				SourceWalletID: src.ID,
				DestWalletID:   dst.ID,
				Status:         models.TransactionStatusCompleted,
				Description:    description,
			})
			if err != nil {
				return err
			}
			srcBalance, dstBalance = src.Balance, dst.Balance
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransaction(models.TransactionKindTransfer, amount)
	s.logger.Info("transfer completed",
		zap.String("transaction_id", record.ID),
		zap.String("from_account", fromAccountID),
		zap.String("to_account", toAccountID),
		zap.Stringer("amount", amount))

	s.notifier.Notify(ctx, notification.EventTransferSent, fromAccountID, map[string]interface{}{
		"transaction_id": record.ID,
		"to_account":     toAccountID,
		"amount":         amount.Int64(),
		"balance":        srcBalance.Int64(),
	})
	s.notifier.Notify(ctx, notification.EventTransferReceived, toAccountID, map[string]interface{}{
		"transaction_id": record.ID,
		"from_account":   fromAccountID,
		"amount":         amount.Int64(),
		"balance":        dstBalance.Int64(),
	})
	return record, nil
}
