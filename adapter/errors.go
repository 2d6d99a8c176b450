package adapter

import (
	"errors"
	"fmt"
)

// ConstraintError is a storage-level rejection, such as a uniqueness
// violation the engine caught at write time. It is surfaced distinctly
// from a validation error: the logical layer did not catch it, the
// store did.
type ConstraintError struct {
	Table  string
	Column string // offending column, when the engine reports one
	Attr   string // logical attribute name; filled in by the dispatcher
	msg    string
	wrap   error
}

// Error returns the error string.
func (e *ConstraintError) Error() string {
	name := e.Attr
	if name == "" {
		name = e.Column
	}
	if name != "" {
		return fmt.Sprintf("strata: constraint failed on %s.%s: %s", e.Table, name, e.msg)
	}
	return fmt.Sprintf("strata: constraint failed on %s: %s", e.Table, e.msg)
}

// Unwrap returns the engine's underlying error.
func (e *ConstraintError) Unwrap() error { return e.wrap }

// NewConstraintError returns a ConstraintError for the given table and
// column, wrapping the engine's error.
func NewConstraintError(table, column, msg string, wrap error) *ConstraintError {
	return &ConstraintError{Table: table, Column: column, msg: msg, wrap: wrap}
}

// IsConstraint reports whether err is a ConstraintError.
func IsConstraint(err error) bool {
	if err == nil {
		return false
	}
	var e *ConstraintError
	return errors.As(err, &e)
}

// UnsupportedOperationError reports that no connection in a model's
// list serves the requested capability or custom method.
type UnsupportedOperationError struct {
	Identity string
	Op       string
}

// Error returns the error string.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("strata: no connection of %s supports %q", e.Identity, e.Op)
}

// IsUnsupported reports whether err is an UnsupportedOperationError.
func IsUnsupported(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedOperationError
	return errors.As(err, &e)
}
