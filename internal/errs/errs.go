// Package errs classifies pipeline errors into a fixed taxonomy: each
// kind carries a fixed retry/recovery policy so callers never have to
// special-case a vendor error type directly.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a closed taxonomy of error classes. It is not a vendor error
// type — every upstream/client error gets wrapped into one of these at
// the boundary where it's first observed.
type Kind string

const (
	ConfigError           Kind = "ConfigError"
	AuthError             Kind = "AuthError"
	UpstreamTimeout       Kind = "UpstreamTimeout"
	UpstreamRateLimited   Kind = "UpstreamRateLimited"
	UpstreamTransient     Kind = "UpstreamTransient"
	UpstreamInvalidReq    Kind = "UpstreamInvalidRequest"
	SchemaError           Kind = "SchemaError"
	RetrievalEmpty        Kind = "RetrievalEmpty"
	ContextOverflow       Kind = "ContextOverflow"
	Cancelled             Kind = "Cancelled"
	DeadlineExceeded      Kind = "DeadlineExceeded"
	InternalInvariant     Kind = "InternalInvariant"
)

// Classified wraps an underlying error with its taxonomy kind and, for
// rate limiting, an optional server-provided retry delay.
type Classified struct {
	K          Kind
	Err        error
	RetryAfter *int // seconds, set only for UpstreamRateLimited
}

func (c *Classified) Error() string {
	if c.Err == nil {
		return string(c.K)
	}
	return fmt.Sprintf("%s: %v", c.K, c.Err)
}

func (c *Classified) Unwrap() error { return c.Err }

// New classifies err under kind k.
func New(k Kind, err error) *Classified {
	return &Classified{K: k, Err: err}
}

// RateLimited classifies err as UpstreamRateLimited with the given
// Retry-After delay in seconds.
func RateLimited(err error, retryAfterSeconds int) *Classified {
	return &Classified{K: UpstreamRateLimited, Err: err, RetryAfter: &retryAfterSeconds}
}

// KindOf extracts the Kind from err, defaulting to InternalInvariant when
// err has not been classified.
func KindOf(err error) Kind {
	var c *Classified
	if errors.As(err, &c) {
		return c.K
	}
	return InternalInvariant
}

// Retryable reports whether the retry middleware should retry this
// error: only network timeouts, 5xx-shaped transients, and 429s honoring
// Retry-After are retryable — everything else is a single-shot failure.
func Retryable(err error) bool {
	switch KindOf(err) {
	case UpstreamTimeout, UpstreamTransient, UpstreamRateLimited:
		return true
	default:
		return false
	}
}

// Recoverable reports whether the orchestrator can apply a stage-local
// recovery policy (fallback chain, web-only synthesis, query
// reformulation) instead of failing the whole turn.
func Recoverable(err error) bool {
	switch KindOf(err) {
	case RetrievalEmpty, ContextOverflow:
		return true
	default:
		return false
	}
}

// Terminal reports whether err ends the turn outright regardless of
// revision/fallback budget remaining.
func Terminal(err error) bool {
	switch KindOf(err) {
	case Cancelled, DeadlineExceeded, InternalInvariant, AuthError, ConfigError:
		return true
	default:
		return false
	}
}
