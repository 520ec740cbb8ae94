// Package provider defines the DNS provider publishing contract and the
// error taxonomy that drives the reconciler's retry policy.
package provider

import (
	"context"
	"errors"
	"net/http"
	"net/netip"

	"github.com/dyndnsd/dyndnsd/record"
)

// ErrAPIResponseFailure is wrapped by provider errors whose API response
// indicates failure.
var ErrAPIResponseFailure = errors.New("API response indicates failure")

// Publisher sets a managed record to a target address at a DNS provider.
type Publisher interface {
	// Publish sets rec to addr, performing whatever authentication and
	// request shaping the provider requires. It returns nil only if the
	// provider's response affirmatively confirms the record now holds addr.
	//
	// Failures should be classified with [Transient], [Auth], or [Rejected];
	// unclassified errors are treated as transient.
	Publish(ctx context.Context, rec record.Record, addr netip.Addr) error
}

// ErrorKind classifies a provider failure for retry policy.
type ErrorKind uint8

const (
	// KindTransient failures (rate limits, 5xx, timeouts) are safe to retry.
	KindTransient ErrorKind = iota

	// KindAuth failures (invalid or expired credential) are not retried
	// automatically and are surfaced for operator action.
	KindAuth

	// KindRejected failures (record or zone not found, malformed input)
	// are configuration errors, not retried automatically.
	KindRejected
)

// String implements [fmt.Stringer].
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Error wraps a provider failure with its retry classification.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable failure.
func Transient(err error) error {
	return &Error{Kind: KindTransient, Err: err}
}

// Auth wraps err as a credential failure.
func Auth(err error) error {
	return &Error{Kind: KindAuth, Err: err}
}

// Rejected wraps err as a configuration rejection.
func Rejected(err error) error {
	return &Error{Kind: KindRejected, Err: err}
}

// KindOf returns the classification of err. Errors that do not carry a
// classification, including timeouts and network failures, are transient.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// ClassifyStatus wraps err with the classification implied by an HTTP
// response status code. It must only be called for non-2xx codes.
func ClassifyStatus(code int, err error) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return Auth(err)
	case code == http.StatusTooManyRequests || code >= 500:
		return Transient(err)
	default:
		return Rejected(err)
	}
}
