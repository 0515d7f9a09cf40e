package concurrency

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundedqa/sentra/internal/errs"
)

func TestRetry_succeedsWithoutRetryingOnFirstSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultRetryConfig(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_retriesTransientUpToMaxAttempts(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialInterval: 1, MaxInterval: 2}
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		return errs.New(errs.UpstreamTransient, errors.New("flaky"))
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_doesNotRetryNonRetryableErrors(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 5, InitialInterval: 1, MaxInterval: 2}
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		return errs.New(errs.AuthError, errors.New("bad key"))
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_succeedsAfterTransientFailures(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialInterval: 1, MaxInterval: 2}
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 2 {
			return errs.New(errs.UpstreamTransient, errors.New("flaky"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
