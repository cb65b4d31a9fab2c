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
	"custody/internal/services/gateway"
	"custody/internal/services/notification"
	"custody/internal/services/payment_method"
	"custody/internal/services/transaction"

	"go.uber.org/zap"
)

type service struct {
	store    repositories.Store
	journal  transaction.Service
	identity IdentityGate
	methods  PaymentMethods
	gateway  gateway.Gateway
	notifier notification.Notifier
	cache    StatusCache
	lock     SettlementLocker
	metrics  MetricsCollector
	logger   *zap.Logger
	config   Config
}

// NewService creates a new ledger service
func NewService(deps Dependencies, config Config) Service {
	if deps.Store == nil {
		panic("store is required")
	}
	if deps.Journal == nil {
		panic("journal is required")
	}
	if deps.Identity == nil {
		panic("identity gate is required")
	}
	if deps.Methods == nil {
		panic("payment method registry is required")
	}
	if deps.Gateway == nil {
		panic("gateway is required")
	}

	// Set default configuration values if not provided
	config.Currency = strings.ToUpper(config.Currency)
	if config.Currency == "" {
		config.Currency = DefaultCurrency
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultRetryBackoff
	}
	if config.StatusCacheTTL <= 0 {
		config.StatusCacheTTL = DefaultStatusCacheTTL
	}

	if deps.Notifier == nil {
		deps.Notifier = notification.NoopNotifier{}
	}
	if deps.Metrics == nil {
		deps.Metrics = &NoopMetricsCollector{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &service{
		store:    deps.Store,
		journal:  deps.Journal,
		identity: deps.Identity,
		methods:  deps.Methods,
		gateway:  deps.Gateway,
		notifier: deps.Notifier,
		cache:    deps.Cache,
		lock:     deps.Lock,
		metrics:  deps.Metrics,
		logger:   deps.Logger.Named("ledger"),
		config:   config,
	}
}

func (s *service) CreateWallet(ctx context.Context, accountID, email string, initialBalance money.Amount) (_ *models.Wallet, err error) {
	defer s.observe(OpCreateWallet, time.Now(), &err)

	if initialBalance < 0 {
		return nil, apperrors.Newf(apperrors.KindInvalidAmount, "INVALID_AMOUNT",
			"initial balance cannot be negative, got %s", initialBalance)
	}

	approved, err := s.identity.IsApproved(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to check verification status: %w", err)
	}
	if !approved {
		return nil, apperrors.Newf(apperrors.KindKYCNotApproved, "KYC_NOT_APPROVED",
			"account %s has not passed identity verification", accountID)
	}

	if _, err := s.store.Wallets().GetByAccountID(ctx, accountID); err == nil {
		return nil, walletExists(accountID, nil)
	} else if !errors.Is(err, repositories.ErrWalletNotFound) {
		return nil, fmt.Errorf("failed to check existing wallet: %w", err)
	}

	payerRef, err := s.gateway.RegisterPayer(ctx, email)
	if err != nil {
		return nil, gatewayError("failed to register payer with provider", err)
	}

	wallet := &models.Wallet{
		AccountID: accountID,
		Balance:   initialBalance,
		Currency:  s.config.Currency,
		PayerRef:  payerRef,
	}
	err = s.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		if err := tx.Wallets().Create(ctx, wallet); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return walletExists(accountID, err)
			}
			return fmt.Errorf("failed to create wallet: %w", err)
		}
		if !initialBalance.IsPositive() {
			return nil
		}
		_, err := s.journal.WithStore(tx).Record(ctx, transaction.RecordRequest{
			Kind:         models.TransactionKindDeposit,
			Amount:       initialBalance,
			Currency:     wallet.Currency,
			DestWalletID: wallet.ID,
			Status:       models.TransactionStatusCompleted,
			Description:  "initial balance",
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if initialBalance.IsPositive() {
		s.metrics.RecordTransaction(models.TransactionKindDeposit, initialBalance)
	}
	s.logger.Info("wallet created",
		zap.String("account_id", accountID),
		zap.String("wallet_id", wallet.ID),
		zap.Stringer("initial_balance", initialBalance))
	s.notifier.Notify(ctx, notification.EventWalletCreated, accountID, map[string]interface{}{
		"wallet_id": wallet.ID,
		"balance":   wallet.Balance.Int64(),
		"currency":  wallet.Currency,
	})
	return wallet, nil
}

func walletExists(accountID string, err error) error {
	return apperrors.Wrap(apperrors.KindAlreadyExists, "WALLET_EXISTS",
		fmt.Sprintf("account %s already has a wallet", accountID), err)
}

func (s *service) GetWallet(ctx context.Context, accountID string) (*models.Wallet, error) {
	return s.walletByAccount(ctx, s.store, accountID)
}

func (s *service) GetBalance(ctx context.Context, accountID string) (money.Amount, error) {
	wallet, err := s.walletByAccount(ctx, s.store, accountID)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

func (s *service) GetTransaction(ctx context.Context, accountID, transactionID string) (*models.Transaction, error) {
	tx, err := s.journal.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnership(ctx, tx, accountID); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *service) History(ctx context.Context, accountID string, limit, offset int) ([]*models.Transaction, error) {
	wallet, err := s.walletByAccount(ctx, s.store, accountID)
	if err != nil {
		return nil, err
	}
	return s.journal.History(ctx, wallet.ID, limit, offset)
}

func (s *service) AddPaymentMethod(ctx context.Context, accountID, externalID string) (*payment_method.AddResult, error) {
	wallet, err := s.walletByAccount(ctx, s.store, accountID)
	if err != nil {
		return nil, err
	}
	return s.methods.Add(ctx, accountID, wallet.PayerRef, externalID)
}

func (s *service) RemovePaymentMethod(ctx context.Context, accountID, externalID string) error {
	if _, err := s.walletByAccount(ctx, s.store, accountID); err != nil {
		return err
	}
	return s.methods.Remove(ctx, accountID, externalID)
}

func (s *service) walletByAccount(ctx context.Context, store repositories.Store, accountID string) (*models.Wallet, error) {
	wallet, err := store.Wallets().GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, walletNotFound(accountID, err)
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

func (s *service) checkOwnership(ctx context.Context, tx *models.Transaction, accountID string) error {
	owned, err := s.journal.BelongsToAccount(ctx, tx, accountID)
	if err != nil {
		return err
	}
	if !owned {
		return apperrors.Newf(apperrors.KindForbidden, "TRANSACTION_FORBIDDEN",
			"transaction %s does not belong to account %s", tx.ID, accountID)
	}
	return nil
}

// withRetry runs fn until it succeeds, fails with a non-retryable error or
// the retry budget is spent.
func (s *service) withRetry(ctx context.Context, operation string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.RecordRetry(operation)
			s.logger.Debug("retrying after storage conflict",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.config.RetryBackoff * time.Duration(attempt)):
			}
		}
		err = fn()
		if err == nil || !isRetryable(err) {
			return err
		}
	}
	return apperrors.Wrap(apperrors.KindConflict, "CONFLICT",
		fmt.Sprintf("%s lost to concurrent updates, try again", operation), err)
}

func (s *service) observe(operation string, start time.Time, errp *error) {
	s.metrics.RecordOperationDuration(operation, time.Since(start))
	if *errp == nil {
		s.metrics.RecordOperationResult(operation, "success")
		return
	}
	kind := apperrors.KindOf(*errp)
	s.metrics.RecordOperationResult(operation, "error")
	s.metrics.RecordError(operation, string(kind))
	if kind == apperrors.KindInternal {
		s.logger.Error("ledger operation failed", zap.String("operation", operation), zap.Error(*errp))
	}
}

func addBalance(balance, amount money.Amount) (money.Amount, error) {
	sum := balance + amount
	if sum < balance {
		return 0, apperrors.Newf(apperrors.KindInvalidAmount, "BALANCE_OVERFLOW",
			"crediting %s would overflow the balance", amount)
	}
	return sum, nil
}
