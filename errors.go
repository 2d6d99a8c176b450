package strata

import (
	"errors"
	"fmt"

	"github.com/syssam/strata/adapter"
	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/validate"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a single-record lookup matches
	// nothing.
	ErrNotFound = errors.New("strata: record not found")

	// ErrDuplicateIdentity is returned when registering a model whose
	// identity is already taken.
	ErrDuplicateIdentity = errors.New("strata: duplicate model identity")

	// ErrDuplicateConnection is returned when registering a connection
	// name twice.
	ErrDuplicateConnection = errors.New("strata: duplicate connection name")
)

// The error taxonomy. Each kind carries enough structure (offending
// attributes, rule names, capability) for a caller to build field-level
// feedback without parsing message strings.
//
// SchemaError is fatal at compile time: the model never registers.
// ValidationError is recoverable: the caller corrects input and
// retries. ConstraintError is a storage-level rejection that the
// logical layer did not catch, surfaced distinctly from validation.
type (
	// SchemaError reports a malformed model declaration.
	SchemaError = schema.Error

	// ValidationError carries the complete per-attribute list of
	// failed rule names for one candidate record.
	ValidationError = validate.Error

	// UnknownAttributeError reports criteria or a write referencing an
	// attribute absent from the schema.
	UnknownAttributeError = criteria.UnknownAttributeError

	// ConstraintError reports a storage-level constraint violation.
	ConstraintError = adapter.ConstraintError

	// UnsupportedOperationError reports that no connection of the
	// model serves the requested capability or method.
	UnsupportedOperationError = adapter.UnsupportedOperationError
)

// HookError wraps an error a lifecycle hook signaled. The pipeline
// aborts at the failing hook; Unwrap returns the hook's error
// unmodified, so errors.Is and errors.As observe the original value.
type HookError struct {
	Hook string // hook name, e.g. "beforeCreate"
	Err  error
}

// Error returns the error string.
func (e *HookError) Error() string {
	return fmt.Sprintf("strata: hook %s: %v", e.Hook, e.Err)
}

// Unwrap returns the hook's error verbatim.
func (e *HookError) Unwrap() error { return e.Err }

// IsSchemaError reports whether err is a SchemaError.
func IsSchemaError(err error) bool {
	if err == nil {
		return false
	}
	var e *SchemaError
	return errors.As(err, &e)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// IsUnknownAttribute reports whether err is an UnknownAttributeError.
func IsUnknownAttribute(err error) bool {
	if err == nil {
		return false
	}
	var e *UnknownAttributeError
	return errors.As(err, &e)
}

// IsConstraint reports whether err is a ConstraintError.
func IsConstraint(err error) bool {
	return adapter.IsConstraint(err)
}

// IsUnsupported reports whether err is an UnsupportedOperationError.
func IsUnsupported(err error) bool {
	return adapter.IsUnsupported(err)
}

// IsHookError reports whether err is a HookError.
func IsHookError(err error) bool {
	if err == nil {
		return false
	}
	var e *HookError
	return errors.As(err, &e)
}

// IsNotFound reports whether err is the not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
