package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/config"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/order"
)

func testGateway(baseURL string) *HTTPGateway {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewHTTPGateway(config.PaymentConfig{
		BaseURL:       baseURL,
		KeyID:         "key-id",
		KeySecret:     "key-secret",
		ChargeTimeout: 2 * time.Second,
	}, logger)
}

func chargeReq() order.ChargeRequest {
	return order.ChargeRequest{
		OrderNumber:    "ORD-20260307-00042",
		Amount:         4998,
		Currency:       "USD",
		Method:         "card",
		Token:          "tok_test",
		Email:          "nurse@example.com",
		IdempotencyKey: "idem-123",
	}
}

func TestCharge_Succeeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/charges", r.URL.Path)
		assert.Equal(t, "idem-123", r.Header.Get("Idempotency-Key"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key-id", user)
		assert.Equal(t, "key-secret", pass)

		var body chargeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(4998), body.Amount)
		assert.Equal(t, "ORD-20260307-00042", body.Receipt)

		json.NewEncoder(w).Encode(chargeResponse{ID: "ch_abc", Status: "succeeded"})
	}))
	defer srv.Close()

	result, err := testGateway(srv.URL).Charge(context.Background(), chargeReq())

	require.NoError(t, err)
	assert.Equal(t, "ch_abc", result.GatewayRef)
	assert.Equal(t, order.ChargeStatusSucceeded, result.Status)
}

func TestCharge_Pending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(chargeResponse{ID: "ch_async", Status: "pending"})
	}))
	defer srv.Close()

	result, err := testGateway(srv.URL).Charge(context.Background(), chargeReq())

	require.NoError(t, err)
	assert.Equal(t, order.ChargeStatusPending, result.Status)
}

func TestCharge_Declined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(chargeResponse{
			Status:      "declined",
			ErrorCode:   "card_declined",
			Description: "insufficient funds",
		})
	}))
	defer srv.Close()

	_, err := testGateway(srv.URL).Charge(context.Background(), chargeReq())

	require.Error(t, err)
	assert.True(t, errors.Is(err, order.ErrPaymentDeclined))
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestCharge_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(chargeResponse{ID: "ch_slow", Status: "succeeded"})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := testGateway(srv.URL).Charge(ctx, chargeReq())

	require.Error(t, err)
	assert.True(t, errors.Is(err, order.ErrGatewayTimeout))
}

func TestCharge_UnexpectedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testGateway(srv.URL).Charge(context.Background(), chargeReq())

	require.Error(t, err)
	assert.False(t, errors.Is(err, order.ErrPaymentDeclined))
	assert.False(t, errors.Is(err, order.ErrGatewayTimeout))
}

func TestRefund_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/charges/ch_abc/refund", r.URL.Path)
		json.NewEncoder(w).Encode(chargeResponse{ID: "rf_1", Status: "succeeded"})
	}))
	defer srv.Close()

	err := testGateway(srv.URL).Refund(context.Background(), "ch_abc", 4998)

	require.NoError(t, err)
}

func TestRefund_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(chargeResponse{ErrorCode: "already_refunded"})
	}))
	defer srv.Close()

	err := testGateway(srv.URL).Refund(context.Background(), "ch_abc", 4998)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already_refunded")
}
