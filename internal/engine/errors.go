package engine

import (
	"errors"
	"fmt"
)

// ErrBusy is returned by Snapshot while the engine is neither idle nor
// drained.
var ErrBusy = errors.New("engine busy: snapshot is only available while idle or drained")

// ErrPhase matches every RuntimeError with code PHASE via errors.Is.
var ErrPhase = errors.New("operation not allowed in current phase")

// RuntimeError represents an error detected during engine execution.
//
// Every RuntimeError except PHASE is fatal: the engine moves to Aborted
// and refuses further work. Continuing after an invariant violation would
// risk further-incorrect diagnoses.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Rule identifies the rule involved, if any.
	Rule string

	// Tuple is the tuple hash of the activation involved, if any.
	Tuple string

	// Err is the underlying cause (ACTION_FAILED).
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvariant indicates the engine broke one of its own
	// guarantees, such as firing the same tuple twice.
	ErrCodeInvariant RuntimeErrorCode = "INVARIANT_VIOLATION"

	// ErrCodePhase indicates an operation was called in the wrong phase.
	ErrCodePhase RuntimeErrorCode = "PHASE"

	// ErrCodeQuotaExceeded indicates the run exceeded its firing budget.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeActionFailed indicates a rule action returned an error or
	// panicked.
	ErrCodeActionFailed RuntimeErrorCode = "ACTION_FAILED"

	// ErrCodeUndeclaredProduct indicates an action inserted a type its rule
	// does not declare in Produces.
	ErrCodeUndeclaredProduct RuntimeErrorCode = "UNDECLARED_PRODUCT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Rule != "" {
		msg += fmt.Sprintf(" (rule=%s)", e.Rule)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Err }

// Is makes PHASE errors match ErrPhase.
func (e *RuntimeError) Is(target error) bool {
	return target == ErrPhase && e.Code == ErrCodePhase
}

// IsInvariantError returns true if the error is an invariant violation.
// Uses errors.As to handle wrapped errors.
func IsInvariantError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvariant || re.Code == ErrCodeUndeclaredProduct
	}
	return false
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and
// FiringsExceededError.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeQuotaExceeded
	}
	var fe *FiringsExceededError
	return errors.As(err, &fe)
}

// NewInvariantError creates a RuntimeError for a broken engine guarantee.
func NewInvariantError(rule, tuple, message string) *RuntimeError {
	return &RuntimeError{Code: ErrCodeInvariant, Message: message, Rule: rule, Tuple: tuple}
}

func newPhaseError(op string, p Phase) *RuntimeError {
	return &RuntimeError{Code: ErrCodePhase, Message: fmt.Sprintf("%s not allowed while %s", op, p)}
}
