// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrBulkheadFull is returned when a call cannot acquire a bulkhead permit
// within the configured wait. The call never reaches the circuit breaker or
// the underlying operation.
var ErrBulkheadFull = errors.New("resilience: bulkhead full")

// StatusError carries an HTTP status from a collaborator response.
// 5xx is transient (retryable, breaker-counted); 4xx is permanent.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// permanentError marks an error as non-retryable.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the retry loop stops immediately and the circuit
// breaker does not count it as a dependency failure. Use for input errors
// (malformed identifiers, validation rejections) where the dependency
// itself is healthy.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err must not be retried: explicitly marked
// errors, 4xx statuses, and caller-side cancellation. Timeouts
// (context.DeadlineExceeded) stay transient.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusBadRequest && se.Code < http.StatusInternalServerError
	}
	return errors.Is(err, context.Canceled)
}

// IsRejected reports whether err means the call was refused before reaching
// the operation: breaker open, breaker half-open quota exhausted, or
// bulkhead full. Rejections are failures of the protection layer, not of
// the dependency, and are surfaced separately in metrics.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) ||
		errors.Is(err, ErrBulkheadFull)
}
