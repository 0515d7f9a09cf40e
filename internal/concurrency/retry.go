// Package concurrency provides shared middleware: retry with jittered
// backoff, bounded parallel pools, and SSE framing. The LLM clients'
// Complete and Embed requests go through Retry; streaming and structured
// completions, search requests and web requests are sent without it.
package concurrency

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/groundedqa/sentra/internal/errs"
)

// RetryConfig controls the backoff middleware.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the default of 3 capped attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Retry runs fn, retrying only errs.Retryable errors with exponential
// backoff and jitter, honoring a classified Retry-After delay when
// present (the 429 case).
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.InitialInterval
	policy.MaxInterval = cfg.MaxInterval
	policy.MaxElapsedTime = 0 // bounded by MaxAttempts instead of wall time

	attempts := 0
	operation := func() error {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !errs.Retryable(err) {
			return backoff.Permanent(err)
		}
		if attempts >= cfg.MaxAttempts {
			return backoff.Permanent(err)
		}
		if delay := retryAfterDelay(err); delay > 0 {
			policy.NextBackOff() // advance internal state for telemetry symmetry
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			}
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

func retryAfterDelay(err error) time.Duration {
	var c *errs.Classified
	if stderrors.As(err, &c) && c.RetryAfter != nil {
		return time.Duration(*c.RetryAfter) * time.Second
	}
	return 0
}
