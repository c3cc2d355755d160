package order

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no order row exists for the identifier.
	ErrNotFound = errors.New("order: not found")
	// ErrForbidden signals the actor is not a party to the order.
	ErrForbidden = errors.New("order: actor is not a party to this order")
	// ErrConflict is the base of every state conflict; match with errors.Is.
	ErrConflict = errors.New("order: conflict")
	// ErrStorageTimeout signals a bounded storage call expired. Callers may
	// retry against fresh state.
	ErrStorageTimeout = errors.New("order: storage timeout")
)

// ValidationError reports a user-correctable input problem with field detail.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order: invalid %s: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConflictError is returned when the input is valid but the order's current
// state forbids the operation. It explains the observed state so the caller
// can retry against fresh data.
type ConflictError struct {
	Op      string
	Current Status
	Deleted bool
}

func (e *ConflictError) Error() string {
	if e.Deleted {
		return fmt.Sprintf("order: cannot %s: order is deleted", e.Op)
	}
	return fmt.Sprintf("order: cannot %s: order status is %s", e.Op, e.Current)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
