package wallet

import (
	"errors"
	"fmt"

	apperrors "custody/internal/errors"
	"custody/internal/repositories"
)

func walletNotFound(accountID string, err error) error {
	return apperrors.Wrap(apperrors.KindNotFound, "WALLET_NOT_FOUND",
		fmt.Sprintf("no wallet for account %s", accountID), err)
}

func gatewayError(message string, err error) error {
	return apperrors.Wrap(apperrors.KindGateway, "GATEWAY_ERROR", message, err)
}

func insufficientFunds(available, requested fmt.Stringer) error {
	return apperrors.Newf(apperrors.KindInsufficientFunds, "INSUFFICIENT_BALANCE",
		"insufficient wallet balance: available %s, requested %s", available, requested)
}

// isRetryable reports whether a unit of work lost a race and may be re-run.
func isRetryable(err error) bool {
	return errors.Is(err, repositories.ErrConflict)
}
