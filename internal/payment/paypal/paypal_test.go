package paypal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babyresell/babyresell/internal/payment"
	"github.com/babyresell/babyresell/internal/payment/paypal"
)

func newServer(t *testing.T, tokenCalls *int32, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)

		id, secret, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client", id)
		assert.Equal(t, "secret", secret)

		w.Write([]byte(`{"access_token":"tok","expires_in":32400}`))
	})

	for pattern, h := range routes {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			h(w, r)
		})
	}

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return ts
}

func TestProvider_CreateIntent(t *testing.T) {
	var tokens int32

	ts := newServer(t, &tokens, map[string]http.HandlerFunc{
		"POST /v2/checkout/orders": func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Intent        string `json:"intent"`
				PurchaseUnits []struct {
					ReferenceID string `json:"reference_id"`
					Amount      struct {
						CurrencyCode string `json:"currency_code"`
						Value        string `json:"value"`
					} `json:"amount"`
				} `json:"purchase_units"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

			assert.Equal(t, "CAPTURE", body.Intent)
			require.Len(t, body.PurchaseUnits, 1)
			assert.Equal(t, "item-1", body.PurchaseUnits[0].ReferenceID)
			assert.Equal(t, "USD", body.PurchaseUnits[0].Amount.CurrencyCode)
			assert.Equal(t, "45.50", body.PurchaseUnits[0].Amount.Value)

			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"ORDER-1","status":"CREATED"}`))
		},
	})

	p := paypal.New(ts.URL, "client", "secret")

	in, err := p.CreateIntent(context.Background(), payment.IntentParams{
		Amount:   4550,
		Currency: "usd",
		Metadata: map[string]string{"item_id": "item-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "ORDER-1", in.ID)
	assert.Equal(t, "ORDER-1", in.ClientSecret)
	assert.Equal(t, payment.IntentRequiresPayment, in.Status)
}

func TestProvider_GetIntent(t *testing.T) {
	tests := []struct {
		name   string
		status string
		want   payment.IntentStatus
	}{
		{name: "Completed", status: "COMPLETED", want: payment.IntentSucceeded},
		{name: "Voided", status: "VOIDED", want: payment.IntentCanceled},
		{name: "Created", status: "CREATED", want: payment.IntentRequiresPayment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tokens int32

			ts := newServer(t, &tokens, map[string]http.HandlerFunc{
				"GET /v2/checkout/orders/ORDER-1": func(w http.ResponseWriter, r *http.Request) {
					w.Write([]byte(`{"id":"ORDER-1","status":"` + tt.status + `","purchase_units":[{"amount":{"currency_code":"USD","value":"100.00"}}]}`))
				},
			})

			in, err := paypal.New(ts.URL, "client", "secret").GetIntent(context.Background(), "ORDER-1")
			require.NoError(t, err)

			assert.Equal(t, tt.want, in.Status)
			assert.Equal(t, int64(10000), in.Amount)
			assert.Equal(t, "usd", in.Currency)
		})
	}
}

func TestProvider_GetIntent_CapturesApproved(t *testing.T) {
	var tokens, captures int32

	ts := newServer(t, &tokens, map[string]http.HandlerFunc{
		"GET /v2/checkout/orders/ORDER-1": func(w http.ResponseWriter, r *http.Request) {
			status := "APPROVED"
			if atomic.LoadInt32(&captures) > 0 {
				status = "COMPLETED"
			}

			w.Write([]byte(`{"id":"ORDER-1","status":"` + status + `","purchase_units":[{"reference_id":"item-1","custom_id":"buyer-1","amount":{"currency_code":"USD","value":"100.00"}}]}`))
		},
		"POST /v2/checkout/orders/ORDER-1/capture": func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&captures, 1)
			assert.Equal(t, "capture-ORDER-1", r.Header.Get("PayPal-Request-Id"))

			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"ORDER-1","status":"COMPLETED"}`))
		},
	})

	in, err := paypal.New(ts.URL, "client", "secret").GetIntent(context.Background(), "ORDER-1")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&captures))
	assert.Equal(t, payment.IntentSucceeded, in.Status)
	assert.True(t, in.Status.Funded())
	assert.Equal(t, "item-1", in.Metadata["item_id"])
	assert.Equal(t, "buyer-1", in.Metadata["buyer_id"])
}

func TestProvider_GetIntent_CaptureFails(t *testing.T) {
	var tokens int32

	ts := newServer(t, &tokens, map[string]http.HandlerFunc{
		"GET /v2/checkout/orders/ORDER-1": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"ORDER-1","status":"APPROVED","purchase_units":[{"amount":{"currency_code":"USD","value":"100.00"}}]}`))
		},
		"POST /v2/checkout/orders/ORDER-1/capture": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"INSTRUMENT_DECLINED"}]}`))
		},
	})

	in, err := paypal.New(ts.URL, "client", "secret").GetIntent(context.Background(), "ORDER-1")
	assert.ErrorIs(t, err, payment.ErrProvider)
	assert.Nil(t, in)
}

func TestProvider_ReusesToken(t *testing.T) {
	var tokens int32

	ts := newServer(t, &tokens, map[string]http.HandlerFunc{
		"GET /v2/checkout/orders/ORDER-1": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"ORDER-1","status":"COMPLETED"}`))
		},
	})

	p := paypal.New(ts.URL, "client", "secret")

	for range 3 {
		_, err := p.GetIntent(context.Background(), "ORDER-1")
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&tokens))
}

func TestProvider_Release(t *testing.T) {
	var tokens int32

	ts := newServer(t, &tokens, map[string]http.HandlerFunc{
		"POST /v1/payments/payouts": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "release-tx-1", r.Header.Get("PayPal-Request-Id"))

			var body struct {
				Header struct {
					SenderBatchID string `json:"sender_batch_id"`
				} `json:"sender_batch_header"`
				Items []struct {
					Receiver string `json:"receiver"`
					Amount   struct {
						Value    string `json:"value"`
						Currency string `json:"currency"`
					} `json:"amount"`
				} `json:"items"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

			assert.Equal(t, "release-tx-1", body.Header.SenderBatchID)
			require.Len(t, body.Items, 1)
			assert.Equal(t, "seller@example.com", body.Items[0].Receiver)
			assert.Equal(t, "92.00", body.Items[0].Amount.Value)
			assert.Equal(t, "USD", body.Items[0].Amount.Currency)

			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"batch_header":{"payout_batch_id":"BATCH-1","batch_status":"PENDING"}}`))
		},
	})

	out, err := paypal.New(ts.URL, "client", "secret").Release(context.Background(), payment.PayoutParams{
		Amount:         9200,
		Currency:       "usd",
		Destination:    "seller@example.com",
		Reference:      "tx-1",
		IdempotencyKey: "release-tx-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "BATCH-1", out.ID)
}

func TestProvider_Release_NoDestination(t *testing.T) {
	p := paypal.New("http://127.0.0.1:0", "client", "secret")

	_, err := p.Release(context.Background(), payment.PayoutParams{Amount: 100, Currency: "usd"})
	assert.ErrorIs(t, err, payment.ErrNoDestination)
}

func TestProvider_Refund(t *testing.T) {
	var tokens int32

	ts := newServer(t, &tokens, map[string]http.HandlerFunc{
		"GET /v2/checkout/orders/ORDER-1": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"ORDER-1","status":"COMPLETED","purchase_units":[{"amount":{"currency_code":"USD","value":"100.00"},"payments":{"captures":[{"id":"CAP-1"}]}}]}`))
		},
		"POST /v2/payments/captures/CAP-1/refund": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "refund-tx-1", r.Header.Get("PayPal-Request-Id"))

			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"REF-1","status":"COMPLETED"}`))
		},
	})

	out, err := paypal.New(ts.URL, "client", "secret").Refund(context.Background(), payment.RefundParams{
		IntentID:       "ORDER-1",
		IdempotencyKey: "refund-tx-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "REF-1", out.ID)
}

func TestProvider_Refund_NoCapture(t *testing.T) {
	var tokens int32

	ts := newServer(t, &tokens, map[string]http.HandlerFunc{
		"GET /v2/checkout/orders/ORDER-1": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"ORDER-1","status":"APPROVED"}`))
		},
	})

	_, err := paypal.New(ts.URL, "client", "secret").Refund(context.Background(), payment.RefundParams{IntentID: "ORDER-1"})
	assert.ErrorIs(t, err, payment.ErrProvider)
}

func TestProvider_ErrorStatus(t *testing.T) {
	var tokens int32

	ts := newServer(t, &tokens, map[string]http.HandlerFunc{
		"GET /v2/checkout/orders/ORDER-1": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"name":"RESOURCE_NOT_FOUND"}`))
		},
	})

	_, err := paypal.New(ts.URL, "client", "secret").GetIntent(context.Background(), "ORDER-1")
	require.ErrorIs(t, err, payment.ErrProvider)
	assert.Contains(t, err.Error(), "RESOURCE_NOT_FOUND")
}
