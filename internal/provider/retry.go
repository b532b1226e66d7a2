package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/solentpay/payment-reconciler/internal/domain"
)

// RetryClient wraps a Client with exponential backoff on 5xx-class provider
// responses. Everything else is terminal and translated into the domain
// error taxonomy.
type RetryClient struct {
	inner      Client
	maxElapsed time.Duration
}

func NewRetryClient(inner Client, maxElapsed time.Duration) *RetryClient {
	return &RetryClient{inner: inner, maxElapsed: maxElapsed}
}

func (c *RetryClient) Capture(ctx context.Context, req ModificationRequest) (*ModificationResult, error) {
	return c.retry(ctx, func(ctx context.Context) (*ModificationResult, error) {
		return c.inner.Capture(ctx, req)
	})
}

func (c *RetryClient) Refund(ctx context.Context, req ModificationRequest) (*ModificationResult, error) {
	return c.retry(ctx, func(ctx context.Context) (*ModificationResult, error) {
		return c.inner.Refund(ctx, req)
	})
}

func (c *RetryClient) Cancel(ctx context.Context, req ModificationRequest) (*ModificationResult, error) {
	return c.retry(ctx, func(ctx context.Context) (*ModificationResult, error) {
		return c.inner.Cancel(ctx, req)
	})
}

func (c *RetryClient) retry(ctx context.Context, call func(context.Context) (*ModificationResult, error)) (*ModificationResult, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.maxElapsed

	result, err := backoff.RetryWithData(func() (*ModificationResult, error) {
		res, err := call(ctx)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.Retryable() {
				return nil, backoff.Permanent(translate(apiErr))
			}
			return nil, err
		}
		return res, nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Retryable() {
			return nil, fmt.Errorf("retry: %w: %w", domain.ErrProviderUnavailable, err)
		}
		return nil, fmt.Errorf("retry: %w", err)
	}
	return result, nil
}

func translate(apiErr *APIError) error {
	switch {
	case apiErr.StatusCode == 404:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, apiErr.Body)
	case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
		return fmt.Errorf("%w: %s", domain.ErrNotAllowed, apiErr.Body)
	case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, apiErr.Body)
	default:
		return apiErr
	}
}
