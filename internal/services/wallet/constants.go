package wallet

import "time"

// Default configuration values
const (
	DefaultCurrency       = "USD"
	DefaultMaxRetries     = 3
	DefaultRetryBackoff   = 25 * time.Millisecond
	DefaultStatusCacheTTL = 24 * time.Hour
)

// Operation names used for metrics and logs
const (
	OpCreateWallet     = "create_wallet"
	OpInitiateDeposit  = "initiate_deposit"
	OpConfirmDeposit   = "confirm_deposit"
	OpTransfer         = "transfer"
	OpGetPaymentStatus = "get_payment_status"
)

// Cache keys
const (
	PaymentStatusCacheEntity = "payment"
	PaymentStatusCacheKind   = "status"
)
