// Package errors defines the domain error taxonomy shared by the custody
// services. Callers match on kind with the standard library's errors.Is.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a domain failure.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindAlreadyExists     Kind = "ALREADY_EXISTS"
	KindInvalidState      Kind = "INVALID_STATE"
	KindInvalidAmount     Kind = "INVALID_AMOUNT"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindKYCNotApproved    Kind = "KYC_NOT_APPROVED"
	KindForbidden         Kind = "FORBIDDEN"
	KindGateway           Kind = "GATEWAY_ERROR"
	KindPaymentFailed     Kind = "PAYMENT_FAILED"
	KindConflict          Kind = "CONFLICT"

	// KindInternal is reported for anything outside the taxonomy.
	KindInternal Kind = "INTERNAL"
)

// DomainError is a typed, recoverable failure carrying one of the kinds above.
type DomainError struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same kind, so the package sentinels can
// be used as targets regardless of message or code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a DomainError of the given kind.
func New(kind Kind, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

// Newf creates a DomainError with a formatted message.
func Newf(kind Kind, code, format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new DomainError.
func Wrap(kind Kind, code, message string, err error) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf returns the kind of the first DomainError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// PublicMessage returns text safe to show to an end user. Provider and
// storage details are never exposed.
func PublicMessage(err error) string {
	var de *DomainError
	if !stderrors.As(err, &de) {
		return "internal error"
	}
	switch de.Kind {
	case KindGateway:
		return "payment provider unavailable, please retry"
	case KindInternal:
		return "internal error"
	}
	return de.Message
}
