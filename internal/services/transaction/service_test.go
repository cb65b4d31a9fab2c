package transaction

import (
	"context"
	"testing"

	apperrors "custody/internal/errors"
	"custody/internal/models"
	"custody/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (Service, repositories.Store, *models.Wallet, *models.Wallet) {
	t.Helper()
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	a := &models.Wallet{AccountID: "acct-a", Currency: "USD", PayerRef: "cus_a"}
	b := &models.Wallet{AccountID: "acct-b", Currency: "USD", PayerRef: "cus_b"}
	require.NoError(t, store.Wallets().Create(ctx, a))
	require.NoError(t, store.Wallets().Create(ctx, b))
	return NewService(store), store, a, b
}

func TestRecordValidation(t *testing.T) {
	svc, _, a, b := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     RecordRequest
		wantErr error
	}{
		{"zero amount", RecordRequest{Kind: models.TransactionKindDeposit, Amount: 0, DestWalletID: a.ID}, apperrors.ErrInvalidAmount},
		{"negative amount", RecordRequest{Kind: models.TransactionKindDeposit, Amount: -5, DestWalletID: a.ID}, apperrors.ErrInvalidAmount},
		{"deposit with source", RecordRequest{Kind: models.TransactionKindDeposit, Amount: 1, SourceWalletID: b.ID, DestWalletID: a.ID}, apperrors.ErrInvalidState},
		{"deposit without destination", RecordRequest{Kind: models.TransactionKindDeposit, Amount: 1}, apperrors.ErrInvalidState},
		{"withdraw with destination", RecordRequest{Kind: models.TransactionKindWithdraw, Amount: 1, SourceWalletID: a.ID, DestWalletID: b.ID}, apperrors.ErrInvalidState},
		{"transfer missing side", RecordRequest{Kind: models.TransactionKindTransfer, Amount: 1, SourceWalletID: a.ID}, apperrors.ErrInvalidState},
		{"self transfer", RecordRequest{Kind: models.TransactionKindTransfer, Amount: 1, SourceWalletID: a.ID, DestWalletID: a.ID}, apperrors.ErrInvalidState},
		{"unknown kind", RecordRequest{Kind: "refund", Amount: 1, DestWalletID: a.ID}, apperrors.ErrInvalidState},
		{"unknown status", RecordRequest{Kind: models.TransactionKindDeposit, Amount: 1, DestWalletID: a.ID, Status: "settled"}, apperrors.ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Record(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRecordDefaults(t *testing.T) {
	svc, _, a, b := setup(t)
	ctx := context.Background()

	internal, err := svc.Record(ctx, RecordRequest{
		Kind: models.TransactionKindTransfer, Amount: 200, SourceWalletID: a.ID, DestWalletID: b.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, internal.Status)
	assert.Equal(t, "USD", internal.Currency)
	assert.Nil(t, internal.ExternalRef)

	external, err := svc.Record(ctx, RecordRequest{
		Kind: models.TransactionKindDeposit, Amount: 500, DestWalletID: a.ID, ExternalRef: "pi_1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, external.Status)
	assert.Nil(t, external.SourceWalletID)

	_, err = svc.Record(ctx, RecordRequest{
		Kind: models.TransactionKindDeposit, Amount: 500, DestWalletID: a.ID, ExternalRef: "pi_1",
	})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestFindAndOwnership(t *testing.T) {
	svc, _, a, b := setup(t)
	ctx := context.Background()

	tx, err := svc.Record(ctx, RecordRequest{
		Kind: models.TransactionKindDeposit, Amount: 500, DestWalletID: a.ID, ExternalRef: "pi_1",
	})
	require.NoError(t, err)

	found, err := svc.FindByExternalRef(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, found.ID)

	byID, err := svc.FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", *byID.ExternalRef)

	_, err = svc.FindByExternalRef(ctx, "pi_missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	owns, err := svc.BelongsToAccount(ctx, found, "acct-a")
	require.NoError(t, err)
	assert.True(t, owns)

	owns, err = svc.BelongsToAccount(ctx, found, "acct-b")
	require.NoError(t, err)
	assert.False(t, owns)

	transfer, err := svc.Record(ctx, RecordRequest{
		Kind: models.TransactionKindTransfer, Amount: 1, SourceWalletID: a.ID, DestWalletID: b.ID,
	})
	require.NoError(t, err)
	owns, err = svc.BelongsToAccount(ctx, transfer, "acct-b")
	require.NoError(t, err)
	assert.True(t, owns)
}

func TestStatusTransitions(t *testing.T) {
	svc, _, a, _ := setup(t)
	ctx := context.Background()

	tx, err := svc.Record(ctx, RecordRequest{
		Kind: models.TransactionKindDeposit, Amount: 500, DestWalletID: a.ID, ExternalRef: "pi_1",
		Metadata: models.JSON{"client_secret_issued": true},
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkCompleted(ctx, tx, models.JSON{"gateway_status": "succeeded"}))
	assert.Equal(t, models.TransactionStatusCompleted, tx.Status)

	stored, err := svc.FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, stored.Status)
	assert.Equal(t, "succeeded", stored.Metadata["gateway_status"])
	assert.Equal(t, true, stored.Metadata["client_secret_issued"])

	// Terminal entries never move again.
	assert.ErrorIs(t, svc.MarkFailed(ctx, tx, "late decline"), apperrors.ErrInvalidState)
	assert.ErrorIs(t, svc.MarkCompleted(ctx, stored, nil), apperrors.ErrInvalidState)

	pending, err := svc.Record(ctx, RecordRequest{
		Kind: models.TransactionKindDeposit, Amount: 10, DestWalletID: a.ID, ExternalRef: "pi_2",
	})
	require.NoError(t, err)
	stale := *pending
	require.NoError(t, svc.MarkFailed(ctx, pending, "card_declined"))
	assert.Equal(t, "card_declined", pending.Metadata["failure_reason"])

	// A stale copy that still says pending is rejected by the store.
	assert.ErrorIs(t, svc.MarkCompleted(ctx, &stale, nil), apperrors.ErrInvalidState)
}

func TestWithStoreJoinsUnitOfWork(t *testing.T) {
	svc, store, a, _ := setup(t)
	ctx := context.Background()

	err := store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		_, err := svc.WithStore(tx).Record(ctx, RecordRequest{
			Kind: models.TransactionKindDeposit, Amount: 10, DestWalletID: a.ID,
		})
		require.NoError(t, err)
		return apperrors.ErrConflict
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	history, err := svc.History(ctx, a.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHistory(t *testing.T) {
	svc, _, a, b := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Record(ctx, RecordRequest{
			Kind: models.TransactionKindTransfer, Amount: 1, SourceWalletID: a.ID, DestWalletID: b.ID,
			Description: string(rune('a' + i)),
		})
		require.NoError(t, err)
	}

	all, err := svc.History(ctx, b.ID, 0, -1)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Description)

	page, err := svc.History(ctx, a.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].Description)
}
