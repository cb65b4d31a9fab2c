package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
)

// fakeStripe answers the handful of API routes the adapter uses.
func fakeStripe(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, body)
	}

	mux.HandleFunc("/v1/customers", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"id":"cus_test","object":"customer","email":%q}`, r.PostForm.Get("email")))
	})
	mux.HandleFunc("/v1/payment_intents", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "1234", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "manual", r.PostForm.Get("confirmation_method"))
		writeJSON(w, http.StatusOK, `{"id":"pi_test","object":"payment_intent","amount":1234,"currency":"usd",
			"status":"requires_payment_method","client_secret":"pi_test_secret_abc","customer":"cus_test"}`)
	})
	mux.HandleFunc("/v1/payment_intents/pi_test/confirm", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "pm_card_visa", r.PostForm.Get("payment_method"))
		writeJSON(w, http.StatusOK, `{"id":"pi_test","object":"payment_intent","amount":1234,"currency":"usd",
			"status":"succeeded","customer":"cus_test","payment_method":"pm_card_visa"}`)
	})
	mux.HandleFunc("/v1/payment_intents/pi_declined/confirm", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusPaymentRequired, `{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`)
	})
	mux.HandleFunc("/v1/payment_intents/pi_missing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such payment_intent"}}`)
	})
	mux.HandleFunc("/v1/payment_methods/pm_card_visa", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"pm_card_visa","object":"payment_method","type":"card",
			"card":{"brand":"visa","last4":"4242","exp_month":12,"exp_year":2034}}`)
	})
	mux.HandleFunc("/v1/payment_methods/pm_card_visa/attach", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "cus_test", r.PostForm.Get("customer"))
		writeJSON(w, http.StatusOK, `{"id":"pm_card_visa","object":"payment_method","type":"card","customer":"cus_test"}`)
	})
	mux.HandleFunc("/v1/payment_methods/pm_card_visa/detach", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"pm_card_visa","object":"payment_method","type":"card"}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestStripeGateway(t *testing.T) Gateway {
	srv := fakeStripe(t)
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeGateway("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend}, nil)
}

func TestStripeGatewayPaymentFlow(t *testing.T) {
	ctx := context.Background()
	gw := newTestStripeGateway(t)

	payer, err := gw.RegisterPayer(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "cus_test", payer)

	auth, err := gw.CreateAuthorization(ctx, AuthorizationRequest{Amount: 1234, Currency: "USD", PayerRef: payer})
	require.NoError(t, err)
	assert.Equal(t, "pi_test", auth.ID)
	assert.Equal(t, "pi_test_secret_abc", auth.ClientSecret)
	assert.Equal(t, StatusRequiresPaymentMethod, auth.Status)
	assert.Equal(t, "USD", auth.Currency)
	assert.Equal(t, "cus_test", auth.PayerRef)

	confirmed, err := gw.ConfirmAuthorization(ctx, "pi_test", "pm_card_visa")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, confirmed.Status)
	assert.EqualValues(t, 1234, confirmed.Amount)
	assert.Equal(t, "pm_card_visa", confirmed.InstrumentRef)
}

func TestStripeGatewayDeclineIsFailedAuthorization(t *testing.T) {
	gw := newTestStripeGateway(t)

	auth, err := gw.ConfirmAuthorization(context.Background(), "pi_declined", "pm_card_visa")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, auth.Status)
	assert.True(t, auth.Status.IsTerminalFailure())
}

func TestStripeGatewayMissingAuthorization(t *testing.T) {
	gw := newTestStripeGateway(t)

	_, err := gw.RetrieveAuthorization(context.Background(), "pi_missing")
	assert.ErrorIs(t, err, ErrAuthorizationUnknown)
}

func TestStripeGatewayInstruments(t *testing.T) {
	ctx := context.Background()
	gw := newTestStripeGateway(t)

	inst, err := gw.RetrieveInstrument(ctx, "pm_card_visa")
	require.NoError(t, err)
	assert.Equal(t, &Instrument{ID: "pm_card_visa", Type: "card", Brand: "visa", LastFour: "4242", ExpMonth: 12, ExpYear: 2034}, inst)

	require.NoError(t, gw.AttachToPayer(ctx, "pm_card_visa", "cus_test"))
	require.NoError(t, gw.Detach(ctx, "pm_card_visa"))
}

func TestStripeGatewayRejectsNonPositiveAmount(t *testing.T) {
	gw := newTestStripeGateway(t)

	_, err := gw.CreateAuthorization(context.Background(), AuthorizationRequest{Amount: 0, PayerRef: "cus_test"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestNewStripeGatewayRequiresKey(t *testing.T) {
	assert.Panics(t, func() { NewStripeGateway("", nil, nil) })
}
