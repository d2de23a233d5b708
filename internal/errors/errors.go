// Package errors provides centralized error definitions and classification
// helpers for the vaultd codebase.
//
// Two conditions in this system are expected race outcomes rather than
// failures and carry their own sentinels: ErrConflict (a record with the
// same id already exists) and ErrAlreadyClaimed (another worker won the
// claim race). Callers swallow both and log them at low severity.
//
// Real failures are split along the axis the orchestrator cares about:
//
//   - TransientError: timeouts, rate limits, flaky transport. Retried with
//     backoff up to the attempt ceiling, then quarantined.
//   - AuthError: credential or permission failures. Fatal; the orchestration
//     loop halts and surfaces the error to the operator.
//   - ClassificationError: the reasoning engine could not produce a usable
//     verdict. Quarantined immediately for human triage.
//
// Classification is done through IsTransient, IsAuth, and IsClassification,
// which unwrap through error chains via errors.As/Is.
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions so callers can import only this
// package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Sentinel errors for expected store and queue outcomes.
var (
	// ErrConflict indicates a record with the same id already exists in the
	// target stage. Not a failure: producers treat it as "already delivered".
	ErrConflict = New("record already exists")

	// ErrAlreadyClaimed indicates another worker moved the record out of the
	// shared stage first. Not a failure: the normal outcome of a lost race.
	ErrAlreadyClaimed = New("record already claimed")

	// ErrNotFound indicates the referenced record does not exist at the
	// expected stage location.
	ErrNotFound = New("record not found")

	// ErrInvalidTransition indicates a stage transition that the lifecycle
	// graph does not permit.
	ErrInvalidTransition = New("invalid stage transition")

	// ErrDuplicateContent indicates the dedup ledger has already admitted an
	// item with the same content hash.
	ErrDuplicateContent = New("duplicate content hash")

	// ErrExpiredApproval indicates an approval request whose expiry elapsed
	// before a decision was made.
	ErrExpiredApproval = New("approval request expired")

	// ErrReasonRequired indicates a manual rejection was attempted without a
	// decision reason.
	ErrReasonRequired = New("rejection reason required")

	// ErrNotDashboardWriter indicates this instance does not hold the
	// dashboard writer token and refused to write.
	ErrNotDashboardWriter = New("not the designated dashboard writer")
)

// TransientError wraps a failure that may succeed on retry, such as a
// timeout or rate limit from the reasoning engine.
type TransientError struct {
	Op    string
	Cause error
}

// NewTransientError creates a TransientError for the given operation.
func NewTransientError(op string, cause error) *TransientError {
	return &TransientError{Op: op, Cause: cause}
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transient failure [op=%s]: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("transient failure [op=%s]", e.Op)
}

// Unwrap returns the underlying cause.
func (e *TransientError) Unwrap() error { return e.Cause }

// AuthError wraps a credential or permission failure. These are never
// retried: the loop halts so the operator can fix credentials.
type AuthError struct {
	Op    string
	Cause error
}

// NewAuthError creates an AuthError for the given operation.
func NewAuthError(op string, cause error) *AuthError {
	return &AuthError{Op: op, Cause: cause}
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth failure [op=%s]: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("auth failure [op=%s]", e.Op)
}

// Unwrap returns the underlying cause.
func (e *AuthError) Unwrap() error { return e.Cause }

// ClassificationError indicates the reasoning engine returned output from
// which no verdict could be determined.
type ClassificationError struct {
	ItemID string
	Detail string
}

// NewClassificationError creates a ClassificationError for the given item.
func NewClassificationError(itemID, detail string) *ClassificationError {
	return &ClassificationError{ItemID: itemID, Detail: detail}
}

func (e *ClassificationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("classification failure [item=%s]: %s", e.ItemID, e.Detail)
	}
	return fmt.Sprintf("classification failure [item=%s]", e.ItemID)
}

// IsTransient reports whether err represents a transient condition that may
// succeed on retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	return As(err, &te)
}

// IsAuth reports whether err represents a credential or permission failure.
func IsAuth(err error) bool {
	if err == nil {
		return false
	}
	var ae *AuthError
	return As(err, &ae)
}

// IsClassification reports whether err represents an engine verdict that
// could not be classified.
func IsClassification(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassificationError
	return As(err, &ce)
}

// IsBenign reports whether err is an expected race outcome (lost claim or
// duplicate record) that should be logged at debug level and dropped.
func IsBenign(err error) bool {
	return Is(err, ErrAlreadyClaimed) || Is(err, ErrConflict) || Is(err, ErrDuplicateContent)
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
