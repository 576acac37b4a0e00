package core

import (
	"errors"
	"fmt"
)

// ErrNotFound marks an entity that does not exist in a remote store.
// Collaborator clients return it for 404s and empty lookups.
var ErrNotFound = errors.New("not found")

// ErrIgnoredEvent marks a webhook event type this core does not handle.
// Handlers acknowledge these so the sender stops redelivering.
var ErrIgnoredEvent = errors.New("ignored event type")

// AuthError is a failed authenticity check: a bad webhook signature or
// bad service credentials. Non-retryable, and the handler that raises it
// has performed no writes.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// ValidationError is an event or request that cannot be processed
// because required data is missing. Non-retryable; the ingestor flags
// these to the reconciliation journal for manual review.
type ValidationError struct {
	Field  string
	Reason string
	// Ref is the payment reference when one could be extracted, so the
	// flagged event stays attributable.
	Ref string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransientError is a collaborator timeout, rate limit, or 5xx. Safe to
// retry because every core operation is idempotent; webhook senders are
// expected to redeliver when a handler propagates one.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient backend failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable, tagged with the failing operation.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err (anywhere in its chain) is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsAuth reports whether err is an authenticity failure.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsValidation reports whether err is an unprocessable-input failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
