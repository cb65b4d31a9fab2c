// Package gateway defines the contract the ledger holds the external payment
// provider to, along with a Stripe implementation, a timeout decorator and an
// in-memory sandbox provider.
package gateway

import (
	"context"
	"errors"

	"custody/internal/money"
)

var (
	ErrTimeout              = errors.New("gateway call timed out")
	ErrAuthorizationUnknown = errors.New("authorization not found at provider")
	ErrInstrumentUnknown    = errors.New("instrument not found at provider")
	ErrPayerUnknown         = errors.New("payer not found at provider")
	ErrInvalidRequest       = errors.New("invalid gateway request")
)

// AuthorizationStatus mirrors the provider's payment authorization states.
type AuthorizationStatus string

const (
	StatusSucceeded             AuthorizationStatus = "succeeded"
	StatusRequiresAction        AuthorizationStatus = "requires_action"
	StatusRequiresPaymentMethod AuthorizationStatus = "requires_payment_method"
	StatusRequiresConfirmation  AuthorizationStatus = "requires_confirmation"
	StatusProcessing            AuthorizationStatus = "processing"
	StatusFailed                AuthorizationStatus = "failed"
	StatusCanceled              AuthorizationStatus = "canceled"
)

// IsTerminalFailure reports whether the authorization can never succeed.
func (s AuthorizationStatus) IsTerminalFailure() bool {
	return s == StatusFailed || s == StatusCanceled
}

// AuthorizationRequest describes a payment the payer is asked to approve.
type AuthorizationRequest struct {
	Amount        money.Amount
	Currency      string
	PayerRef      string
	InstrumentRef string
}

// Authorization is the provider-side view of a pending or settled payment.
type Authorization struct {
	ID            string
	ClientSecret  string
	Status        AuthorizationStatus
	Amount        money.Amount
	Currency      string
	PayerRef      string
	InstrumentRef string
}

// InstrumentDetails carries what is needed to create a card instrument.
// Token takes precedence over raw card fields.
type InstrumentDetails struct {
	Token    string
	Number   string
	ExpMonth string
	ExpYear  string
	CVC      string
}

// Instrument is the provider's description of a payment method.
type Instrument struct {
	ID       string
	Type     string
	Brand    string
	LastFour string
	ExpMonth int
	ExpYear  int
	PayerRef string
}

// Gateway is the set of provider operations the ledger depends on.
type Gateway interface {
	RegisterPayer(ctx context.Context, email string) (string, error)
	CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*Authorization, error)
	RetrieveAuthorization(ctx context.Context, authRef string) (*Authorization, error)
	ConfirmAuthorization(ctx context.Context, authRef, instrumentRef string) (*Authorization, error)
	CreateInstrument(ctx context.Context, kind string, details InstrumentDetails) (string, error)
	RetrieveInstrument(ctx context.Context, instrumentRef string) (*Instrument, error)
	AttachToPayer(ctx context.Context, instrumentRef, payerRef string) error
	Detach(ctx context.Context, instrumentRef string) error
}
