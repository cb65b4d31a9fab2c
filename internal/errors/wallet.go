package errors

// Sentinels for errors.Is matching. Services build richer messages with New
// or Newf using the same kinds.
var (
	ErrNotFound = &DomainError{
		Kind:    KindNotFound,
		Code:    "NOT_FOUND",
		Message: "resource not found",
	}
	ErrAlreadyExists = &DomainError{
		Kind:    KindAlreadyExists,
		Code:    "ALREADY_EXISTS",
		Message: "resource already exists",
	}
	ErrInvalidState = &DomainError{
		Kind:    KindInvalidState,
		Code:    "INVALID_STATE",
		Message: "operation not allowed in current state",
	}
	ErrInvalidAmount = &DomainError{
		Kind:    KindInvalidAmount,
		Code:    "INVALID_AMOUNT",
		Message: "invalid amount",
	}
	ErrInsufficientFunds = &DomainError{
		Kind:    KindInsufficientFunds,
		Code:    "INSUFFICIENT_BALANCE",
		Message: "insufficient wallet balance",
	}
	ErrKYCNotApproved = &DomainError{
		Kind:    KindKYCNotApproved,
		Code:    "KYC_NOT_APPROVED",
		Message: "identity verification is not approved",
	}
	ErrForbidden = &DomainError{
		Kind:    KindForbidden,
		Code:    "FORBIDDEN",
		Message: "resource does not belong to this account",
	}
	ErrGateway = &DomainError{
		Kind:    KindGateway,
		Code:    "GATEWAY_ERROR",
		Message: "payment provider call failed",
	}
	ErrPaymentFailed = &DomainError{
		Kind:    KindPaymentFailed,
		Code:    "PAYMENT_FAILED",
		Message: "payment failed",
	}
	ErrConflict = &DomainError{
		Kind:    KindConflict,
		Code:    "CONFLICT",
		Message: "concurrent update detected",
	}
)
