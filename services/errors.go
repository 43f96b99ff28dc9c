package services

import (
	"errors"
	"fmt"
)

// ErrKind distinguishes the caller-facing failure classes. A caller's retry
// strategy differs per kind, so these are never collapsed into one error.
type ErrKind string

const (
	ErrValidation        ErrKind = "validation"
	ErrNotFound          ErrKind = "not_found"
	ErrInvalidTransition ErrKind = "invalid_transition"
	ErrNotAuthorized     ErrKind = "not_authorized"
	ErrInternal          ErrKind = "internal"
)

// OpError is the error type returned by every assignment/ledger operation.
type OpError struct {
	Kind    ErrKind
	Message string
	Err     error // wrapped storage error, internal kind only
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *OpError) Unwrap() error { return e.Err }

func validationError(format string, args ...interface{}) *OpError {
	return &OpError{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(format string, args ...interface{}) *OpError {
	return &OpError{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func invalidTransitionError(format string, args ...interface{}) *OpError {
	return &OpError{Kind: ErrInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

func notAuthorizedError(format string, args ...interface{}) *OpError {
	return &OpError{Kind: ErrNotAuthorized, Message: fmt.Sprintf(format, args...)}
}

func internalError(msg string, err error) *OpError {
	return &OpError{Kind: ErrInternal, Message: msg, Err: err}
}

// KindOf extracts the failure class from an operation error.
// Unknown errors count as internal.
func KindOf(err error) ErrKind {
	var op *OpError
	if errors.As(err, &op) {
		return op.Kind
	}
	return ErrInternal
}
