package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_classifiedError(t *testing.T) {
	err := New(UpstreamTransient, fmt.Errorf("boom"))
	assert.Equal(t, UpstreamTransient, KindOf(err))
}

func TestKindOf_unclassifiedDefaultsToInternalInvariant(t *testing.T) {
	assert.Equal(t, InternalInvariant, KindOf(errors.New("plain error")))
}

func TestKindOf_wrappedClassifiedError(t *testing.T) {
	base := New(AuthError, fmt.Errorf("denied"))
	wrapped := fmt.Errorf("calling upstream: %w", base)
	assert.Equal(t, AuthError, KindOf(wrapped))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(UpstreamTimeout, nil)))
	assert.True(t, Retryable(New(UpstreamTransient, nil)))
	assert.True(t, Retryable(RateLimited(nil, 5)))
	assert.False(t, Retryable(New(AuthError, nil)))
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(New(Cancelled, nil)))
	assert.True(t, Terminal(New(DeadlineExceeded, nil)))
	assert.True(t, Terminal(New(InternalInvariant, nil)))
	assert.False(t, Terminal(New(UpstreamTransient, nil)))
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(New(RetrievalEmpty, nil)))
	assert.True(t, Recoverable(New(ContextOverflow, nil)))
	assert.False(t, Recoverable(New(UpstreamTransient, nil)))
}

func TestRateLimited_carriesRetryAfter(t *testing.T) {
	err := RateLimited(errors.New("slow down"), 30)
	assert.Equal(t, UpstreamRateLimited, err.K)
	assert.NotNil(t, err.RetryAfter)
	assert.Equal(t, 30, *err.RetryAfter)
}
