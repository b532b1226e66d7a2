// Package provider talks to the payment provider's modification API. The
// HTTP client is deliberately thin; retry policy lives in the RetryClient
// decorator so the transport stays testable on its own.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/solentpay/payment-reconciler/internal/logging"
)

// ModificationRequest asks the provider to move money against an earlier
// authorisation. Amount is in the provider's integer minor units.
type ModificationRequest struct {
	PaymentReference  string `json:"originalReference"`
	MerchantReference string `json:"merchantReference"`
	Currency          string `json:"currency"`
	Amount            int64  `json:"amount"`
}

// ModificationResult acknowledges receipt; the actual outcome arrives later
// as an asynchronous notification.
type ModificationResult struct {
	PSPReference string `json:"pspReference"`
	Response     string `json:"response"`
}

type Client interface {
	Capture(ctx context.Context, req ModificationRequest) (*ModificationResult, error)
	Refund(ctx context.Context, req ModificationRequest) (*ModificationResult, error)
	Cancel(ctx context.Context, req ModificationRequest) (*ModificationResult, error)
}

// APIError is a non-2xx provider response. Retryable reports whether the
// failure is 5xx-class and worth another attempt.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500
}

type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *HTTPClient) Capture(ctx context.Context, req ModificationRequest) (*ModificationResult, error) {
	return c.post(ctx, "/capture", req)
}

func (c *HTTPClient) Refund(ctx context.Context, req ModificationRequest) (*ModificationResult, error) {
	return c.post(ctx, "/refund", req)
}

func (c *HTTPClient) Cancel(ctx context.Context, req ModificationRequest) (*ModificationResult, error) {
	return c.post(ctx, "/cancel", req)
}

func (c *HTTPClient) post(ctx context.Context, path string, req ModificationRequest) (*ModificationResult, error) {
	log := logging.FromContext(ctx)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: marshal: %w", path, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("post %s: build request: %w", path, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post %s: send: %w", path, err)
	}
	defer resp.Body.Close()

	log.Info("provider modification response",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result ModificationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("post %s: decode: %w", path, err)
	}
	return &result, nil
}
