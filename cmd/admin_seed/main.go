// Command admin_seed provisions an operator account: it approves the
// account's identity verification and opens its wallet with an optional
// opening balance given in major units.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"custody/internal/app"
	"custody/internal/config"
	apperrors "custody/internal/errors"
	"custody/internal/logging"
	"custody/internal/models"
	"custody/internal/money"

	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	accountID := os.Getenv("SEED_ACCOUNT_ID")
	email := os.Getenv("SEED_EMAIL")
	if accountID == "" || email == "" {
		log.Fatal("SEED_ACCOUNT_ID and SEED_EMAIL must be set in environment")
	}
	balance, err := money.ParseMajor(config.GetEnv("SEED_BALANCE", "0"))
	if err != nil {
		log.Fatalf("invalid SEED_BALANCE: %v", err)
	}

	zlog, err := logging.New(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	services, err := app.New(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize services", zap.Error(err))
	}
	defer func() {
		if err := services.Close(context.Background()); err != nil {
			zlog.Warn("failed to release resources", zap.Error(err))
		}
	}()

	if _, err := services.KYC.Submit(ctx, accountID); err != nil && !errors.Is(err, apperrors.ErrAlreadyExists) {
		zlog.Fatal("failed to open verification", zap.Error(err))
	}
	if _, err := services.KYC.SetStatus(ctx, accountID, models.KYCStatusApproved, nil); err != nil {
		zlog.Fatal("failed to approve verification", zap.Error(err))
	}

	wallet, err := services.Ledger.CreateWallet(ctx, accountID, email, balance)
	if errors.Is(err, apperrors.ErrAlreadyExists) {
		zlog.Info("wallet already exists", zap.String("account_id", accountID))
		return
	}
	if err != nil {
		zlog.Fatal("failed to create wallet", zap.Error(err))
	}

	zlog.Info("operator account provisioned",
		zap.String("account_id", accountID),
		zap.String("wallet_id", wallet.ID),
		zap.Stringer("balance", wallet.Balance))

	total, err := services.Store.Wallets().TotalBalance(ctx)
	if err != nil {
		zlog.Warn("failed to sum balances", zap.Error(err))
		return
	}
	zlog.Info("funds under custody", zap.Stringer("total", total))
}
