package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "custody/internal/errors"
	"custody/internal/models"
	"custody/internal/money"
	"custody/internal/repositories"
	"custody/internal/repositories/cache"
	"custody/internal/services/gateway"
	"custody/internal/services/notification"
	"custody/internal/services/transaction"

	"go.uber.org/zap"
)

func (s *service) InitiateDeposit(ctx context.Context, accountID string, amount money.Amount) (_ *DepositIntent, err error) {
	defer s.observe(OpInitiateDeposit, time.Now(), &err)

	if !amount.IsPositive() {
		return nil, apperrors.Newf(apperrors.KindInvalidAmount, "INVALID_AMOUNT",
			"deposit amount must be positive, got %s", amount)
	}
	wallet, err := s.walletByAccount(ctx, s.store, accountID)
	if err != nil {
		return nil, err
	}

	auth, err := s.gateway.CreateAuthorization(ctx, gateway.AuthorizationRequest{
		Amount:   amount,
		Currency: wallet.Currency,
		PayerRef: wallet.PayerRef,
	})
	if err != nil {
		return nil, gatewayError("failed to create payment authorization", err)
	}

	entry, err := s.journal.Record(ctx, transaction.RecordRequest{
		Kind:         models.TransactionKindDeposit,
		Amount:       amount,
		Currency:     wallet.Currency,
		DestWalletID: wallet.ID,
		ExternalRef:  auth.ID,
		Status:       models.TransactionStatusPending,
		Metadata:     models.JSON{"gateway_status": string(auth.Status)},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deposit initiated",
		zap.String("account_id", accountID),
		zap.String("payment_ref", auth.ID),
		zap.Stringer("amount", amount))
	return &DepositIntent{
		PaymentRef:    auth.ID,
		ClientSecret:  auth.ClientSecret,
		Amount:        amount,
		Currency:      wallet.Currency,
		Status:        auth.Status,
		TransactionID: entry.ID,
	}, nil
}

func (s *service) ConfirmDeposit(ctx context.Context, accountID, paymentRef, instrumentRef string) (_ *DepositResult, err error) {
	defer s.observe(OpConfirmDeposit, time.Now(), &err)

	if paymentRef == "" {
		return nil, apperrors.New(apperrors.KindInvalidState, "PAYMENT_REF_REQUIRED", "payment reference is required")
	}
	wallet, err := s.walletByAccount(ctx, s.store, accountID)
	if err != nil {
		return nil, err
	}
	if _, err := s.methods.Find(ctx, accountID, instrumentRef); err != nil {
		return nil, err
	}

	if s.lock != nil {
		release, err := s.lock.Acquire(ctx, paymentRef)
		switch {
		case errors.Is(err, cache.ErrLockHeld):
			return nil, apperrors.Wrap(apperrors.KindConflict, "SETTLEMENT_IN_PROGRESS",
				fmt.Sprintf("payment %s is being settled by another request", paymentRef), err)
		case err != nil:
			// The journal row lock still serializes settlement.
			s.logger.Warn("settlement lock unavailable", zap.String("payment_ref", paymentRef), zap.Error(err))
		default:
			defer func() {
				if err := release(context.Background()); err != nil {
					s.logger.Warn("failed to release settlement lock", zap.String("payment_ref", paymentRef), zap.Error(err))
				}
			}()
		}
	}

	pending, result, err := s.priorDeposit(ctx, wallet, paymentRef)
	if err != nil || result != nil {
		return result, err
	}

	auth, err := s.gateway.RetrieveAuthorization(ctx, paymentRef)
	if err != nil {
		return nil, gatewayError("failed to retrieve payment authorization", err)
	}
	if auth.PayerRef != "" && auth.PayerRef != wallet.PayerRef {
		return nil, apperrors.Newf(apperrors.KindForbidden, "PAYMENT_FORBIDDEN",
			"payment %s was not created for account %s", paymentRef, accountID)
	}
	if err := checkDepositCurrency(paymentRef, auth, wallet, pending); err != nil {
		return nil, err
	}
	if auth.Status != gateway.StatusSucceeded && !auth.Status.IsTerminalFailure() {
		auth, err = s.gateway.ConfirmAuthorization(ctx, paymentRef, instrumentRef)
		if err != nil {
			return nil, gatewayError("failed to confirm payment authorization", err)
		}
	}
	if auth.Status != gateway.StatusSucceeded {
		if auth.Status.IsTerminalFailure() && pending != nil {
			if err := s.journal.MarkFailed(ctx, pending, string(auth.Status)); err != nil {
				s.logger.Warn("failed to mark deposit failed", zap.String("payment_ref", paymentRef), zap.Error(err))
			}
		}
		return nil, apperrors.Newf(apperrors.KindPaymentFailed, "PAYMENT_NOT_SUCCEEDED",
			"payment %s did not succeed: %s", paymentRef, auth.Status)
	}

	result, err = s.settleDeposit(ctx, wallet.ID, paymentRef, instrumentRef, auth)
	if err != nil {
		return nil, err
	}
	if result.AlreadyApplied {
		return result, nil
	}

	s.metrics.RecordTransaction(models.TransactionKindDeposit, result.Transaction.Amount)
	s.logger.Info("deposit settled",
		zap.String("account_id", accountID),
		zap.String("payment_ref", paymentRef),
		zap.Stringer("amount", result.Transaction.Amount),
		zap.Stringer("balance", result.Wallet.Balance))
	s.notifier.Notify(ctx, notification.EventDepositCompleted, accountID, map[string]interface{}{
		"transaction_id": result.Transaction.ID,
		"payment_ref":    paymentRef,
		"amount":         result.Transaction.Amount.Int64(),
		"balance":        result.Wallet.Balance.Int64(),
	})
	return result, nil
}

// priorDeposit inspects the journal entry for ref. It returns the pending
// entry if there is one, or a finished result when ref was already credited
// to this wallet.
func (s *service) priorDeposit(ctx context.Context, wallet *models.Wallet, ref string) (*models.Transaction, *DepositResult, error) {
	entry, err := s.journal.FindByExternalRef(ctx, ref)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if entry.Kind != models.TransactionKindDeposit || !entry.Touches(wallet.ID) {
		return nil, nil, paymentForbidden(ref, wallet.AccountID)
	}
	switch entry.Status {
	case models.TransactionStatusCompleted:
		return nil, &DepositResult{Wallet: wallet, Transaction: entry, AlreadyApplied: true}, nil
	case models.TransactionStatusFailed:
		return nil, nil, paymentAlreadyFailed(ref)
	}
	return entry, nil, nil
}

// settleDeposit credits the wallet and completes the journal entry for ref in
// one unit of work. It is safe to race: the loser observes the completed
// entry and reports AlreadyApplied.
func (s *service) settleDeposit(ctx context.Context, walletID, ref, instrumentRef string, auth *gateway.Authorization) (*DepositResult, error) {
	var result *DepositResult
	metadata := models.JSON{
		"gateway_status": string(auth.Status),
		"instrument_ref": instrumentRef,
	}

	err := s.withRetry(ctx, OpConfirmDeposit, func() error {
		result = nil
		return s.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
			journal := s.journal.WithStore(tx)

			entry, err := journal.FindByExternalRefForUpdate(ctx, ref)
			if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return err
			}
			locked, err := tx.Wallets().LockByIDs(ctx, walletID)
			if err != nil {
				return fmt.Errorf("failed to lock wallet: %w", err)
			}
			wallet, ok := locked[walletID]
			if !ok {
				return fmt.Errorf("wallet %s: %w", walletID, repositories.ErrWalletNotFound)
			}

			if err := checkDepositCurrency(ref, auth, wallet, entry); err != nil {
				return err
			}
			if entry != nil {
				switch entry.Status {
				case models.TransactionStatusCompleted:
					result = &DepositResult{Wallet: wallet, Transaction: entry, AlreadyApplied: true}
					return nil
				case models.TransactionStatusFailed:
					return paymentAlreadyFailed(ref)
				}
				if entry.Amount != auth.Amount {
					return apperrors.Newf(apperrors.KindInvalidState, "AMOUNT_MISMATCH",
						"payment %s authorized %s but %s was requested", ref, auth.Amount, entry.Amount)
				}
			}

			balance, err := addBalance(wallet.Balance, auth.Amount)
			if err != nil {
				return err
			}
			if err := tx.Wallets().UpdateBalance(ctx, wallet, balance); err != nil {
				return fmt.Errorf("failed to credit wallet: %w", err)
			}

			if entry != nil {
				if err := journal.MarkCompleted(ctx, entry, metadata); err != nil {
					return err
				}
			} else {
				entry, err = journal.Record(ctx, transaction.RecordRequest{
					Kind:         models.TransactionKindDeposit,
					Amount:       auth.Amount,
					Currency:     wallet.Currency,
					DestWalletID: wallet.ID,
					ExternalRef:  ref,
					Status:       models.TransactionStatusCompleted,
					Metadata:     metadata,
				})
				if errors.Is(err, apperrors.ErrAlreadyExists) {
					// A concurrent settlement inserted the entry first.
					return fmt.Errorf("%w: %v", repositories.ErrConflict, err)
				}
				if err != nil {
					return err
				}
			}
			result = &DepositResult{Wallet: wallet, Transaction: entry}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// checkDepositCurrency rejects an authorization whose currency differs from
// the wallet's or from the pending journal entry's.
func checkDepositCurrency(ref string, auth *gateway.Authorization, wallet *models.Wallet, entry *models.Transaction) error {
	expected := wallet.Currency
	if strings.EqualFold(auth.Currency, expected) && entry != nil {
		expected = entry.Currency
	}
	if !strings.EqualFold(auth.Currency, expected) {
		return apperrors.Newf(apperrors.KindInvalidState, "CURRENCY_MISMATCH",
			"payment %s is in %s but %s was expected", ref, auth.Currency, expected)
	}
	return nil
}

func paymentAlreadyFailed(ref string) error {
	return apperrors.Newf(apperrors.KindPaymentFailed, "PAYMENT_FAILED",
		"payment %s has already failed", ref)
}

func (s *service) GetPaymentStatus(ctx context.Context, accountID, paymentRef string) (_ *PaymentStatus, err error) {
	defer s.observe(OpGetPaymentStatus, time.Now(), &err)

	wallet, err := s.walletByAccount(ctx, s.store, accountID)
	if err != nil {
		return nil, err
	}

	key := cache.GenerateKey(PaymentStatusCacheEntity, PaymentStatusCacheKind, paymentRef)
	if s.cache != nil {
		var cached PaymentStatus
		found, err := s.cache.Get(ctx, key, &cached)
		switch {
		case err != nil:
			s.logger.Warn("payment status cache read failed", zap.String("key", key), zap.Error(err))
		case found && cached.WalletID == wallet.ID:
			s.metrics.RecordCacheHit(PaymentStatusCacheEntity)
			return &cached, nil
		case found:
			return nil, paymentForbidden(paymentRef, accountID)
		default:
			s.metrics.RecordCacheMiss(PaymentStatusCacheEntity)
		}
	}

	entry, err := s.journal.FindByExternalRef(ctx, paymentRef)
	if err != nil {
		return nil, err
	}
	owned, err := s.journal.BelongsToAccount(ctx, entry, accountID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, paymentForbidden(paymentRef, accountID)
	}

	status := &PaymentStatus{
		PaymentRef:    paymentRef,
		TransactionID: entry.ID,
		WalletID:      wallet.ID,
		Status:        entry.Status,
		Amount:        entry.Amount,
		Currency:      entry.Currency,
		UpdatedAt:     entry.UpdatedAt,
	}
	if s.cache != nil && entry.IsTerminal() {
		if err := s.cache.SetWithTTL(ctx, key, status, s.config.StatusCacheTTL); err != nil {
			s.logger.Warn("payment status cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return status, nil
}

func paymentForbidden(ref, accountID string) error {
	return apperrors.Newf(apperrors.KindForbidden, "PAYMENT_FORBIDDEN",
		"payment %s does not belong to account %s", ref, accountID)
}
