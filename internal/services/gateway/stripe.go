package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"custody/internal/money"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"go.uber.org/zap"
)

type stripeGateway struct {
	api       *client.API
	returnURL string
	logger    *zap.Logger
}

// StripeOption customizes the Stripe gateway.
type StripeOption func(*stripeGateway)

// WithReturnURL sets where the provider sends the payer after an
// authentication challenge during confirmation.
func WithReturnURL(url string) StripeOption {
	return func(g *stripeGateway) { g.returnURL = url }
}

// NewStripeGateway creates a Gateway backed by the Stripe API. backends may
// be nil to use Stripe's default endpoints.
func NewStripeGateway(secretKey string, backends *stripe.Backends, logger *zap.Logger, opts ...StripeOption) Gateway {
	if secretKey == "" {
		panic("stripe secret key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &stripeGateway{
		api:    client.New(secretKey, backends),
		logger: logger.Named("stripe"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *stripeGateway) RegisterPayer(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx

	customer, err := g.api.Customers.New(params)
	if err != nil {
		return "", g.wrap("create customer", err)
	}
	return customer.ID, nil
}

func (g *stripeGateway) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*Authorization, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = strings.ToLower(money.DefaultCurrency)
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Amount.Int64()),
		Currency:           stripe.String(currency),
		Customer:           stripe.String(req.PayerRef),
		SetupFutureUsage:   stripe.String("off_session"),
		ConfirmationMethod: stripe.String("manual"),
		Confirm:            stripe.Bool(false),
	}
	if req.InstrumentRef != "" {
		params.PaymentMethod = stripe.String(req.InstrumentRef)
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, g.wrap("create payment intent", err)
	}
	return toAuthorization(pi), nil
}

func (g *stripeGateway) RetrieveAuthorization(ctx context.Context, authRef string) (*Authorization, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(authRef, params)
	if err != nil {
		if isResourceMissing(err) {
			return nil, fmt.Errorf("%w: %s", ErrAuthorizationUnknown, authRef)
		}
		return nil, g.wrap("retrieve payment intent", err)
	}
	return toAuthorization(pi), nil
}

// ConfirmAuthorization confirms the payment intent. A card decline is a
// payment outcome, not a transport failure, so it comes back as a failed
// authorization rather than an error.
func (g *stripeGateway) ConfirmAuthorization(ctx context.Context, authRef, instrumentRef string) (*Authorization, error) {
	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(instrumentRef),
	}
	if g.returnURL != "" {
		params.ReturnURL = stripe.String(g.returnURL)
	}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Confirm(authRef, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			g.logger.Info("payment intent declined",
				zap.String("payment_ref", authRef),
				zap.String("code", string(stripeErr.Code)),
			)
			auth := &Authorization{ID: authRef, Status: StatusFailed, InstrumentRef: instrumentRef}
			if stripeErr.PaymentIntent != nil {
				auth = toAuthorization(stripeErr.PaymentIntent)
				auth.Status = StatusFailed
			}
			return auth, nil
		}
		if isResourceMissing(err) {
			return nil, fmt.Errorf("%w: %s", ErrAuthorizationUnknown, authRef)
		}
		return nil, g.wrap("confirm payment intent", err)
	}
	return toAuthorization(pi), nil
}

func (g *stripeGateway) CreateInstrument(ctx context.Context, kind string, details InstrumentDetails) (string, error) {
	if kind == "" {
		kind = string(stripe.PaymentMethodTypeCard)
	}
	card := &stripe.PaymentMethodCardParams{}
	if details.Token != "" {
		card.Token = stripe.String(details.Token)
	} else {
		card.Number = stripe.String(details.Number)
		card.ExpMonth = stripe.String(details.ExpMonth)
		card.ExpYear = stripe.String(details.ExpYear)
		card.CVC = stripe.String(details.CVC)
	}

	params := &stripe.PaymentMethodParams{
		Type: stripe.String(kind),
		Card: card,
	}
	params.Context = ctx

	pm, err := g.api.PaymentMethods.New(params)
	if err != nil {
		return "", g.wrap("create payment method", err)
	}
	return pm.ID, nil
}

func (g *stripeGateway) RetrieveInstrument(ctx context.Context, instrumentRef string) (*Instrument, error) {
	params := &stripe.PaymentMethodParams{}
	params.Context = ctx

	pm, err := g.api.PaymentMethods.Get(instrumentRef, params)
	if err != nil {
		if isResourceMissing(err) {
			return nil, fmt.Errorf("%w: %s", ErrInstrumentUnknown, instrumentRef)
		}
		return nil, g.wrap("retrieve payment method", err)
	}
	return toInstrument(pm), nil
}

func (g *stripeGateway) AttachToPayer(ctx context.Context, instrumentRef, payerRef string) error {
	params := &stripe.PaymentMethodAttachParams{Customer: stripe.String(payerRef)}
	params.Context = ctx

	if _, err := g.api.PaymentMethods.Attach(instrumentRef, params); err != nil {
		return g.wrap("attach payment method", err)
	}
	return nil
}

func (g *stripeGateway) Detach(ctx context.Context, instrumentRef string) error {
	params := &stripe.PaymentMethodDetachParams{}
	params.Context = ctx

	if _, err := g.api.PaymentMethods.Detach(instrumentRef, params); err != nil {
		return g.wrap("detach payment method", err)
	}
	return nil
}

func (g *stripeGateway) wrap(op string, err error) error {
	g.logger.Warn("stripe call failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("stripe %s: %w", op, err)
}

func isResourceMissing(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing
}

func toAuthorization(pi *stripe.PaymentIntent) *Authorization {
	auth := &Authorization{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       AuthorizationStatus(pi.Status),
		Amount:       money.Amount(pi.Amount),
		Currency:     strings.ToUpper(string(pi.Currency)),
	}
	if pi.Customer != nil {
		auth.PayerRef = pi.Customer.ID
	}
	if pi.PaymentMethod != nil {
		auth.InstrumentRef = pi.PaymentMethod.ID
	}
	return auth
}

func toInstrument(pm *stripe.PaymentMethod) *Instrument {
	inst := &Instrument{
		ID:   pm.ID,
		Type: string(pm.Type),
	}
	if pm.Card != nil {
		inst.Brand = string(pm.Card.Brand)
		inst.LastFour = pm.Card.Last4
		inst.ExpMonth = int(pm.Card.ExpMonth)
		inst.ExpYear = int(pm.Card.ExpYear)
	}
	if pm.Customer != nil {
		inst.PayerRef = pm.Customer.ID
	}
	return inst
}
