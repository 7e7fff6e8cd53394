package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gearguard/gearguard/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.Config{
		GatewayBaseURL: srv.URL + "/v1/",
		GatewayKeyID:   "rzp_test_key",
		GatewaySecret:  "shh",
		GatewayTimeout: timeout,
	}, zaptest.NewLogger(t))
}

func TestSignature(t *testing.T) {
	sig := Sign("order_1", "pay_1", "shh")
	assert.Len(t, sig, 64)
	assert.True(t, VerifySignature("order_1", "pay_1", sig, "shh"))
	assert.False(t, VerifySignature("order_1", "pay_2", sig, "shh"))
	assert.False(t, VerifySignature("order_1", "pay_1", sig, "other"))
	assert.False(t, VerifySignature("order_1", "pay_1", "", "shh"))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(50000), MinorUnits(500))
	assert.Equal(t, int64(1999), MinorUnits(19.99))
	assert.Equal(t, int64(0), MinorUnits(0))
}

func TestCreateOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "shh", pass)

		var in OrderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, int64(50000), in.Amount)
		assert.Equal(t, "INR", in.Currency)
		assert.Equal(t, "RENTAL", in.Notes["paymentType"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_9","amount":50000,"currency":"INR","receipt":"receipt_1","status":"created"}`))
	}, time.Second)

	o, err := c.CreateOrder(context.Background(), OrderRequest{
		Amount: 50000, Currency: "INR", Receipt: "receipt_1",
		Notes: map[string]string{"paymentType": "RENTAL"},
	})
	require.NoError(t, err)
	assert.Equal(t, "order_9", o.ID)
	assert.Equal(t, int64(50000), o.Amount)
}

func TestFetchPayment_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/pay_x", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The id provided does not exist"}}`))
	}, time.Second)

	_, err := c.FetchPayment(context.Background(), "pay_x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "BAD_REQUEST_ERROR", apiErr.Code)
}

func TestPaymentIDIsPathEscaped(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"id":"x","status":"captured"}`))
	}, time.Second)

	_, err := c.FetchPayment(context.Background(), "pay_1/../../orders?x=1")
	require.NoError(t, err)
	_, err = c.Refund(context.Background(), "pay_1/refund", 100, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/v1/payments/pay_1%2F..%2F..%2Forders%3Fx=1",
		"/v1/payments/pay_1%2Frefund/refund",
	}, paths)
}

func TestRefund(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/pay_1/refund", r.URL.Path)
		var in struct {
			Amount int64             `json:"amount"`
			Notes  map[string]string `json:"notes"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, int64(1999), in.Amount)
		assert.Equal(t, "Admin refund", in.Notes["reason"])
		_, _ = w.Write([]byte(`{"id":"rfnd_1","payment_id":"pay_1","amount":1999,"status":"processed"}`))
	}, time.Second)

	rf, err := c.Refund(context.Background(), "pay_1", 1999, map[string]string{"reason": "Admin refund"})
	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", rf.ID)
}

func TestTimeoutIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, 50*time.Millisecond)

	_, err := c.FetchPayment(context.Background(), "pay_1")
	assert.ErrorIs(t, err, ErrUnavailable)
}
