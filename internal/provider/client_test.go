package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solentpay/payment-reconciler/internal/domain"
)

func testRequest() ModificationRequest {
	return ModificationRequest{
		PaymentReference:  "order-1",
		MerchantReference: "session-1",
		Currency:          "USD",
		Amount:            10000,
	}
}

func TestHTTPClientCapture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/capture", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("X-API-Key"))

		var req ModificationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "order-1", req.PaymentReference)
		assert.Equal(t, int64(10000), req.Amount)

		w.WriteHeader(http.StatusAccepted)
		err := json.NewEncoder(w).Encode(ModificationResult{PSPReference: "psp-1", Response: "[capture-received]"})
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "secret-key")
	result, err := c.Capture(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "psp-1", result.PSPReference)
}

func TestHTTPClientNon2xxIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown payment", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key")
	_, err := c.Cancel(context.Background(), testRequest())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.False(t, apiErr.Retryable())
}

func TestRetryClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "temporarily down", http.StatusServiceUnavailable)
			return
		}
		err := json.NewEncoder(w).Encode(ModificationResult{PSPReference: "psp-1"})
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := NewRetryClient(NewHTTPClient(srv.URL, "key"), 10*time.Second)
	result, err := c.Refund(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "psp-1", result.PSPReference)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryClientGivesUpEventually(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewRetryClient(NewHTTPClient(srv.URL, "key"), 500*time.Millisecond)
	_, err := c.Capture(context.Background(), testRequest())

	require.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestRetryClientClientErrorsArePermanent(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "not found", status: http.StatusNotFound, wantErr: domain.ErrNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: domain.ErrNotAllowed},
		{name: "forbidden", status: http.StatusForbidden, wantErr: domain.ErrNotAllowed},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, wantErr: domain.ErrInvalidArgument},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				http.Error(w, "no", tc.status)
			}))
			defer srv.Close()

			c := NewRetryClient(NewHTTPClient(srv.URL, "key"), 10*time.Second)
			_, err := c.Capture(context.Background(), testRequest())

			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, int32(1), calls.Load(), "client errors must not be retried")
		})
	}
}

func TestRetryClientHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	c := NewRetryClient(NewHTTPClient(srv.URL, "key"), time.Hour)
	_, err := c.Capture(ctx, testRequest())
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}
