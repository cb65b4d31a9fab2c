// Package gatewaytest provides a testify mock of gateway.Gateway.
package gatewaytest

import (
	"context"

	"custody/internal/services/gateway"

	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

var _ gateway.Gateway = (*MockGateway)(nil)

func (m *MockGateway) RegisterPayer(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CreateAuthorization(ctx context.Context, req gateway.AuthorizationRequest) (*gateway.Authorization, error) {
	args := m.Called(ctx, req)
	auth, _ := args.Get(0).(*gateway.Authorization)
	return auth, args.Error(1)
}

func (m *MockGateway) RetrieveAuthorization(ctx context.Context, authRef string) (*gateway.Authorization, error) {
	args := m.Called(ctx, authRef)
	auth, _ := args.Get(0).(*gateway.Authorization)
	return auth, args.Error(1)
}

func (m *MockGateway) ConfirmAuthorization(ctx context.Context, authRef, instrumentRef string) (*gateway.Authorization, error) {
	args := m.Called(ctx, authRef, instrumentRef)
	auth, _ := args.Get(0).(*gateway.Authorization)
	return auth, args.Error(1)
}

func (m *MockGateway) CreateInstrument(ctx context.Context, kind string, details gateway.InstrumentDetails) (string, error) {
	args := m.Called(ctx, kind, details)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) RetrieveInstrument(ctx context.Context, instrumentRef string) (*gateway.Instrument, error) {
	args := m.Called(ctx, instrumentRef)
	inst, _ := args.Get(0).(*gateway.Instrument)
	return inst, args.Error(1)
}

func (m *MockGateway) AttachToPayer(ctx context.Context, instrumentRef, payerRef string) error {
	return m.Called(ctx, instrumentRef, payerRef).Error(0)
}

func (m *MockGateway) Detach(ctx context.Context, instrumentRef string) error {
	return m.Called(ctx, instrumentRef).Error(0)
}
