package payment_method

import (
	"context"
	"errors"
	"testing"

	apperrors "custody/internal/errors"
	"custody/internal/models"
	"custody/internal/repositories"
	"custody/internal/services/gateway"
	"custody/internal/services/gateway/gatewaytest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var visa = &gateway.Instrument{ID: "pm_1", Type: "card", Brand: "visa", LastFour: "4242", ExpMonth: 12, ExpYear: 2034}

func TestAdd(t *testing.T) {
	ctx := context.Background()
	providerDown := errors.New("provider down")

	tests := []struct {
		name      string
		seed      *models.PaymentMethod
		setupMock func(*gatewaytest.MockGateway)
		wantErr   error
		wantDup   bool
	}{
		{
			name: "registers new instrument",
			setupMock: func(gw *gatewaytest.MockGateway) {
				gw.On("RetrieveInstrument", mock.Anything, "pm_1").Return(visa, nil).Once()
				gw.On("AttachToPayer", mock.Anything, "pm_1", "cus_1").Return(nil).Once()
			},
		},
		{
			name:      "existing row skips gateway",
			seed:      &models.PaymentMethod{AccountID: "acct-1", ExternalID: "pm_1", Type: "card"},
			setupMock: func(gw *gatewaytest.MockGateway) {},
			wantDup:   true,
		},
		{
			name:      "row owned by another account",
			seed:      &models.PaymentMethod{AccountID: "acct-2", ExternalID: "pm_1", Type: "card"},
			setupMock: func(gw *gatewaytest.MockGateway) {},
			wantErr:   apperrors.ErrAlreadyExists,
		},
		{
			name: "retrieve fails",
			setupMock: func(gw *gatewaytest.MockGateway) {
				gw.On("RetrieveInstrument", mock.Anything, "pm_1").Return(nil, providerDown).Once()
			},
			wantErr: apperrors.ErrGateway,
		},
		{
			name: "attach fails",
			setupMock: func(gw *gatewaytest.MockGateway) {
				gw.On("RetrieveInstrument", mock.Anything, "pm_1").Return(visa, nil).Once()
				gw.On("AttachToPayer", mock.Anything, "pm_1", "cus_1").Return(providerDown).Once()
			},
			wantErr: apperrors.ErrGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repositories.NewMemoryStore()
			if tt.seed != nil {
				require.NoError(t, store.PaymentMethods().Create(ctx, tt.seed))
			}
			gw := new(gatewaytest.MockGateway)
			tt.setupMock(gw)
			svc := NewService(store, gw, nil, nil)

			result, err := svc.Add(ctx, "acct-1", "cus_1", "pm_1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				gw.AssertExpectations(t)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDup, result.AlreadyExists)
			assert.Equal(t, "pm_1", result.Method.ExternalID)
			gw.AssertExpectations(t)

			stored, err := store.PaymentMethods().ListByAccountID(ctx, "acct-1")
			require.NoError(t, err)
			assert.Len(t, stored, 1)
		})
	}
}

func TestAddStoresDisplayMetadataAndDefault(t *testing.T) {
	ctx := context.Background()
	sb := gateway.NewSandbox()
	payer, err := sb.RegisterPayer(ctx, "a@example.com")
	require.NoError(t, err)
	svc := NewService(repositories.NewMemoryStore(), sb, nil, nil)

	first, err := svc.Add(ctx, "acct-1", payer, gateway.SandboxCardVisa)
	require.NoError(t, err)
	assert.True(t, first.Method.IsDefault)
	assert.Equal(t, "visa", first.Method.Brand)
	assert.Equal(t, "4242", first.Method.LastFour)

	second, err := svc.Add(ctx, "acct-1", payer, gateway.SandboxCardMastercard)
	require.NoError(t, err)
	assert.False(t, second.Method.IsDefault)

	again, err := svc.Add(ctx, "acct-1", payer, gateway.SandboxCardVisa)
	require.NoError(t, err)
	assert.True(t, again.AlreadyExists)
	assert.Equal(t, 2, sb.Calls("AttachToPayer"))

	list, err := svc.List(ctx, "acct-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	require.NoError(t, store.PaymentMethods().Create(ctx, &models.PaymentMethod{AccountID: "acct-1", ExternalID: "pm_1", Type: "card"}))
	svc := NewService(store, new(gatewaytest.MockGateway), nil, nil)

	pm, err := svc.Find(ctx, "acct-1", "pm_1")
	require.NoError(t, err)
	assert.Equal(t, "pm_1", pm.ExternalID)

	_, err = svc.Find(ctx, "acct-2", "pm_1")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.Find(ctx, "acct-1", "pm_missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("detaches then deletes", func(t *testing.T) {
		store := repositories.NewMemoryStore()
		require.NoError(t, store.PaymentMethods().Create(ctx, &models.PaymentMethod{AccountID: "acct-1", ExternalID: "pm_1", Type: "card"}))
		gw := new(gatewaytest.MockGateway)
		gw.On("Detach", mock.Anything, "pm_1").Return(nil).Once()
		svc := NewService(store, gw, nil, nil)

		require.NoError(t, svc.Remove(ctx, "acct-1", "pm_1"))
		gw.AssertExpectations(t)

		_, err := svc.Find(ctx, "acct-1", "pm_1")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("foreign row is not found", func(t *testing.T) {
		store := repositories.NewMemoryStore()
		require.NoError(t, store.PaymentMethods().Create(ctx, &models.PaymentMethod{AccountID: "acct-2", ExternalID: "pm_1", Type: "card"}))
		gw := new(gatewaytest.MockGateway)
		svc := NewService(store, gw, nil, nil)

		assert.ErrorIs(t, svc.Remove(ctx, "acct-1", "pm_1"), apperrors.ErrNotFound)
		gw.AssertNotCalled(t, "Detach", mock.Anything, mock.Anything)
	})

	t.Run("detach failure keeps row", func(t *testing.T) {
		store := repositories.NewMemoryStore()
		require.NoError(t, store.PaymentMethods().Create(ctx, &models.PaymentMethod{AccountID: "acct-1", ExternalID: "pm_1", Type: "card"}))
		gw := new(gatewaytest.MockGateway)
		gw.On("Detach", mock.Anything, "pm_1").Return(errors.New("timeout")).Once()
		svc := NewService(store, gw, nil, nil)

		assert.ErrorIs(t, svc.Remove(ctx, "acct-1", "pm_1"), apperrors.ErrGateway)
		_, err := svc.Find(ctx, "acct-1", "pm_1")
		assert.NoError(t, err)
	})
}
