// Package errors defines the error taxonomy for upstream MDM interactions.
package errors

import (
	"errors"
	"fmt"
)

// ErrAuthUnavailable means the credential exchange itself failed. Every
// outbound call is fatal until a later exchange succeeds.
var ErrAuthUnavailable = errors.New("mdm authentication unavailable")

// ErrDeviceNotFound means the upstream has no record of the device
var ErrDeviceNotFound = errors.New("device not found")

// RetryableAuthError means the upstream rejected a token mid-call. The
// client retries once with a forced refresh before surfacing it.
type RetryableAuthError struct {
	Endpoint string
}

func (e *RetryableAuthError) Error() string {
	return fmt.Sprintf("mdm rejected access token on %s", e.Endpoint)
}

// TimeoutError means an upstream call exceeded its per-call deadline
type TimeoutError struct {
	Endpoint string
	Cause    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("mdm request to %s timed out: %v", e.Endpoint, e.Cause)
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// UpstreamError carries the endpoint and status of a non-success response
// for diagnostics
type UpstreamError struct {
	Endpoint   string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("mdm request to %s failed with status %d", e.Endpoint, e.StatusCode)
}

// IsRetryableAuth reports whether err is a mid-call token rejection
func IsRetryableAuth(err error) bool {
	var rae *RetryableAuthError
	return errors.As(err, &rae)
}

// IsTimeout reports whether err is an upstream timeout
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
