package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
}

// WithTimeout bounds every call on next by d. Calls cut off by the deadline
// return an error matching ErrTimeout. A non-positive d returns next as is.
func WithTimeout(next Gateway, d time.Duration) Gateway {
	if d <= 0 {
		return next
	}
	return &timeoutGateway{next: next, timeout: d}
}

func (g *timeoutGateway) call(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrTimeout, op)
		}
		return ctx.Err()
	}
}

func (g *timeoutGateway) RegisterPayer(ctx context.Context, email string) (string, error) {
	var ref string
	err := g.call(ctx, "register payer", func(ctx context.Context) error {
		var err error
		ref, err = g.next.RegisterPayer(ctx, email)
		return err
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

func (g *timeoutGateway) CreateAuthorization(ctx context.Context, req AuthorizationRequest) (*Authorization, error) {
	return g.authorization(ctx, "create authorization", func(ctx context.Context) (*Authorization, error) {
		return g.next.CreateAuthorization(ctx, req)
	})
}

func (g *timeoutGateway) RetrieveAuthorization(ctx context.Context, authRef string) (*Authorization, error) {
	return g.authorization(ctx, "retrieve authorization", func(ctx context.Context) (*Authorization, error) {
		return g.next.RetrieveAuthorization(ctx, authRef)
	})
}

func (g *timeoutGateway) ConfirmAuthorization(ctx context.Context, authRef, instrumentRef string) (*Authorization, error) {
	return g.authorization(ctx, "confirm authorization", func(ctx context.Context) (*Authorization, error) {
		return g.next.ConfirmAuthorization(ctx, authRef, instrumentRef)
	})
}

func (g *timeoutGateway) authorization(ctx context.Context, op string, fn func(context.Context) (*Authorization, error)) (*Authorization, error) {
	var auth *Authorization
	err := g.call(ctx, op, func(ctx context.Context) error {
		var err error
		auth, err = fn(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return auth, nil
}

func (g *timeoutGateway) CreateInstrument(ctx context.Context, kind string, details InstrumentDetails) (string, error) {
	var ref string
	err := g.call(ctx, "create instrument", func(ctx context.Context) error {
		var err error
		ref, err = g.next.CreateInstrument(ctx, kind, details)
		return err
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

func (g *timeoutGateway) RetrieveInstrument(ctx context.Context, instrumentRef string) (*Instrument, error) {
	var inst *Instrument
	err := g.call(ctx, "retrieve instrument", func(ctx context.Context) error {
		var err error
		inst, err = g.next.RetrieveInstrument(ctx, instrumentRef)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func (g *timeoutGateway) AttachToPayer(ctx context.Context, instrumentRef, payerRef string) error {
	return g.call(ctx, "attach instrument", func(ctx context.Context) error {
		return g.next.AttachToPayer(ctx, instrumentRef, payerRef)
	})
}

func (g *timeoutGateway) Detach(ctx context.Context, instrumentRef string) error {
	return g.call(ctx, "detach instrument", func(ctx context.Context) error {
		return g.next.Detach(ctx, instrumentRef)
	})
}
