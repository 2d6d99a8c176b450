package schema

import "fmt"

// Type is the semantic type of an attribute. It is a closed enumeration:
// adapters receive it alongside every value and criteria condition so they
// can apply the correct storage and comparison semantics.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeString
	TypeText
	TypeInteger
	TypeFloat
	TypeDate
	TypeTime
	TypeDateTime
	TypeBoolean
	TypeBinary
	TypeArray
	TypeJSON
)

var typeNames = [...]string{
	TypeInvalid:  "invalid",
	TypeString:   "string",
	TypeText:     "text",
	TypeInteger:  "integer",
	TypeFloat:    "float",
	TypeDate:     "date",
	TypeTime:     "time",
	TypeDateTime: "datetime",
	TypeBoolean:  "boolean",
	TypeBinary:   "binary",
	TypeArray:    "array",
	TypeJSON:     "json",
}

// String returns the declaration name of the type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", t)
}

// Valid reports whether t is a member of the type enumeration.
func (t Type) Valid() bool {
	return t > TypeInvalid && int(t) < len(typeNames)
}

// Numeric reports whether values of t order numerically.
func (t Type) Numeric() bool {
	return t == TypeInteger || t == TypeFloat
}

// Textual reports whether values of t are compared as strings.
// String comparison across the module is case-insensitive; see the
// criteria package for the contract.
func (t Type) Textual() bool {
	return t == TypeString || t == TypeText
}

// Temporal reports whether values of t are time.Time instants.
func (t Type) Temporal() bool {
	return t == TypeDate || t == TypeTime || t == TypeDateTime
}

// typeAliases maps accepted declaration spellings to canonical types.
// "int" and "integer" are intentionally the same type; the source
// declarations this design descends from carried both with identical
// semantics.
var typeAliases = map[string]Type{
	"string":   TypeString,
	"text":     TypeText,
	"int":      TypeInteger,
	"integer":  TypeInteger,
	"float":    TypeFloat,
	"date":     TypeDate,
	"time":     TypeTime,
	"datetime": TypeDateTime,
	"boolean":  TypeBoolean,
	"binary":   TypeBinary,
	"array":    TypeArray,
	"json":     TypeJSON,
}

// ParseType resolves a declared type name to its canonical Type.
// Names outside the fixed enumeration are rejected.
func ParseType(name string) (Type, error) {
	if t, ok := typeAliases[name]; ok {
		return t, nil
	}
	return TypeInvalid, fmt.Errorf("unknown attribute type %q", name)
}
