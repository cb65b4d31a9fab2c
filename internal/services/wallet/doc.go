/*
Package wallet is the custodial ledger. It owns wallet balances and is the
only component that moves money.

Every balance change happens inside one storage unit of work together with
the journal entry that explains it, so the sum of all balances always equals
completed deposits minus completed withdrawals. Wallet rows are locked in id
order before they are read for a change, which keeps concurrent transfers
between the same pair of wallets from deadlocking.

Usage:

	svc := wallet.NewService(wallet.Dependencies{
	    Store:    store,
	    Journal:  journal,
	    Identity: kycService,
	    Methods:  paymentMethods,
	    Gateway:  gw,
	    Notifier: dispatcher,
	    Logger:   logger,
	}, wallet.Config{Currency: "USD"})

	w, err := svc.CreateWallet(ctx, accountID, email, 0)
	intent, err := svc.InitiateDeposit(ctx, accountID, 5000)
	res, err := svc.ConfirmDeposit(ctx, accountID, intent.PaymentRef, "pm_card_visa")
	tx, err := svc.Transfer(ctx, accountID, otherAccountID, 2500, "rent")

Deposits are idempotent per provider payment reference: confirming a
reference that was already credited returns the existing entry with
AlreadyApplied set and never credits twice.

Errors:

All errors returned by Service carry a kind from custody/internal/errors.
Storage conflicts are retried up to Config.MaxRetries times before
KindConflict is reported.
*/
package wallet
