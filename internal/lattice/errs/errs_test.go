package errs

import (
	"errors"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	e := New(NotFound, "document not found")
	if e.Error() != "NotFound: document not found" {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestErrorMessageWithCause(t *testing.T) {
	cause := errors.New("disk full")
	e := &Error{Kind: Internal, Message: "write failed", Cause: cause}
	if e.Error() != "Internal: write failed: disk full" {
		t.Errorf("Error() = %q", e.Error())
	}
	if !errors.Is(e, cause) {
		t.Error("errors.Is did not see through Unwrap")
	}
}

func TestWrapPassesThroughTypedError(t *testing.T) {
	original := New(Conflict, "already exists")
	wrapped := Wrap("creating collection", original)
	if wrapped != original {
		t.Error("Wrap should pass a *Error through unchanged")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap("noop", nil) != nil {
		t.Error("Wrap(_, nil) should return nil")
	}
}

func TestWrapPlainError(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := Wrap("querying backend", cause)
	if wrapped.Kind != Internal {
		t.Errorf("Kind = %q, want Internal", wrapped.Kind)
	}
	if wrapped.Cause != cause {
		t.Error("Cause not preserved")
	}
}

func TestNotFoundfFormats(t *testing.T) {
	e := NotFoundf("collection %q not found", "widgets")
	if e.Kind != NotFound {
		t.Errorf("Kind = %q, want NotFound", e.Kind)
	}
	if e.Message != `collection "widgets" not found` {
		t.Errorf("Message = %q", e.Message)
	}
}
