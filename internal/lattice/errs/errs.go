// Package errs defines the error kinds the core surfaces across service
// boundaries. Handlers map these to HTTP status codes; nothing below the
// HTTP layer needs to know about status codes.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a language-neutral error category (spec ERROR HANDLING DESIGN).
type Kind string

const (
	InvalidInput     Kind = "InvalidInput"
	NotFound         Kind = "NotFound"
	Conflict         Kind = "Conflict"
	DocumentLocked   Kind = "DocumentLocked"
	SchemaValidation Kind = "SchemaValidation"
	Cancelled        Kind = "Cancelled"
	Internal         Kind = "Internal"
)

// FieldError describes a single constraint violation.
type FieldError struct {
	FieldPath string `json:"fieldPath"`
	Message   string `json:"message"`
}

// Error is the structured error type every core component returns.
type Error struct {
	Kind    Kind
	Message string

	// FieldErrors is populated for SchemaValidation.
	FieldErrors []FieldError

	// LockedByHostname and LockCreatedUtc are populated for DocumentLocked.
	LockedByHostname string
	LockCreatedUtc   int64

	// Cause is the wrapped underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a plain error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Internal error wrapping cause, unless cause is already a
// typed *Error, in which case it passes through unchanged.
func Wrap(message string, cause error) *Error {
	if cause == nil {
		return nil
	}
	if e, ok := cause.(*Error); ok {
		return e
	}
	return &Error{Kind: Internal, Message: message, Cause: cause}
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

// Conflictf builds a Conflict error.
func Conflictf(format string, args ...any) *Error {
	return New(Conflict, fmt.Sprintf(format, args...))
}

// InvalidInputf builds an InvalidInput error.
func InvalidInputf(format string, args ...any) *Error {
	return New(InvalidInput, fmt.Sprintf(format, args...))
}

// Locked builds a DocumentLocked error carrying the lock owner.
func Locked(collectionID, documentName, hostname string, createdUtc int64) *Error {
	return &Error{
		Kind:             DocumentLocked,
		Message:          fmt.Sprintf("document %q in collection %s is locked by %s", documentName, collectionID, hostname),
		LockedByHostname: hostname,
		LockCreatedUtc:   createdUtc,
	}
}

// Validation builds a SchemaValidation error carrying field errors.
func Validation(fieldErrors []FieldError) *Error {
	return &Error{
		Kind:        SchemaValidation,
		Message:     "document failed schema validation",
		FieldErrors: fieldErrors,
	}
}

// Of extracts the *Error from err, if any.
func Of(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
