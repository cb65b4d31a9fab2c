package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTimeoutPassesThrough(t *testing.T) {
	sb := NewSandbox()
	gw := WithTimeout(sb, time.Second)
	ctx := context.Background()

	payer, err := gw.RegisterPayer(ctx, "a@example.com")
	require.NoError(t, err)

	auth, err := gw.CreateAuthorization(ctx, AuthorizationRequest{Amount: 100, PayerRef: payer})
	require.NoError(t, err)

	confirmed, err := gw.ConfirmAuthorization(ctx, auth.ID, SandboxCardVisa)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, confirmed.Status)

	_, err = gw.RetrieveAuthorization(ctx, "pi_missing")
	assert.ErrorIs(t, err, ErrAuthorizationUnknown)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestWithTimeoutCutsSlowCalls(t *testing.T) {
	sb := NewSandbox()
	sb.SetLatency(time.Second)
	gw := WithTimeout(sb, 20*time.Millisecond)

	start := time.Now()
	_, err := gw.RegisterPayer(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	err = gw.Detach(context.Background(), SandboxCardVisa)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestWithTimeoutCallerCancellation(t *testing.T) {
	sb := NewSandbox()
	sb.SetLatency(time.Second)
	gw := WithTimeout(sb, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.RetrieveInstrument(ctx, SandboxCardVisa)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestWithTimeoutDisabled(t *testing.T) {
	sb := NewSandbox()
	assert.Same(t, Gateway(sb), WithTimeout(sb, 0))
}
