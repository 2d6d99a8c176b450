package schema

import "fmt"

// Error is a compile-time schema error. It is fatal: a model whose
// declaration fails to compile is never registered.
type Error struct {
	Identity string // model identity, when known
	Attr     string // offending attribute, when applicable
	msg      string
}

// Error returns the error string.
func (e *Error) Error() string {
	switch {
	case e.Identity != "" && e.Attr != "":
		return fmt.Sprintf("strata: schema %s: attribute %q: %s", e.Identity, e.Attr, e.msg)
	case e.Identity != "":
		return fmt.Sprintf("strata: schema %s: %s", e.Identity, e.msg)
	default:
		return fmt.Sprintf("strata: schema: %s", e.msg)
	}
}

// NewError returns a model-level schema error.
func NewError(identity, format string, args ...any) *Error {
	return &Error{Identity: identity, msg: fmt.Sprintf(format, args...)}
}

// NewAttrError returns an attribute-level schema error.
func NewAttrError(identity, attr, format string, args ...any) *Error {
	return &Error{Identity: identity, Attr: attr, msg: fmt.Sprintf(format, args...)}
}
