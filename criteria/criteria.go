package criteria

import (
	"fmt"

	"github.com/syssam/strata/schema"
)

// Criteria is a logical filter/sort/pagination/projection specification.
// It references attributes by their logical names; Normalize translates
// those to storage columns before dispatch.
type Criteria struct {
	Where  Where
	Sort   []Sort
	Limit  int
	Skip   int
	Select []string
}

// Where maps an attribute name to either a bare value (equality), a
// slice (membership), or a modifier map such as
//
//	Where{"age": map[string]any{">=": 21}}
//
// The special key "or" holds a slice of Where branches that are
// disjuncted with each other and conjuncted with the remaining keys.
type Where map[string]any

// Sort orders results by one attribute.
type Sort struct {
	Attr string
	Desc bool
}

// Op is a normalized comparison operator.
type Op uint8

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
	OpNotIn
	OpContains
	OpStartsWith
	OpEndsWith
	OpLike
)

var opNames = [...]string{
	OpEq:         "=",
	OpNe:         "!=",
	OpLt:         "<",
	OpLte:        "<=",
	OpGt:         ">",
	OpGte:        ">=",
	OpIn:         "in",
	OpNotIn:      "notIn",
	OpContains:   "contains",
	OpStartsWith: "startsWith",
	OpEndsWith:   "endsWith",
	OpLike:       "like",
}

// String returns the operator's criteria spelling.
func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", op)
}

// modifiers maps criteria modifier spellings to operators. Symbolic and
// word forms are interchangeable.
var modifiers = map[string]Op{
	"<":                  OpLt,
	"lessThan":           OpLt,
	"<=":                 OpLte,
	"lessThanOrEqual":    OpLte,
	">":                  OpGt,
	"greaterThan":        OpGt,
	">=":                 OpGte,
	"greaterThanOrEqual": OpGte,
	"!":                  OpNe,
	"not":                OpNe,
	"in":                 OpIn,
	"notIn":              OpNotIn,
	"contains":           OpContains,
	"startsWith":         OpStartsWith,
	"endsWith":           OpEndsWith,
	"like":               OpLike,
}

// Condition is one normalized predicate. Attr is the logical name,
// Column the storage name, and Type the attribute's semantic type so
// adapters can apply correct comparison semantics.
//
// Equality and the substring operators on textual types are
// case-insensitive by contract. This is also why a plain index request
// on a string attribute may be rejected or downgraded by adapters whose
// indexes compare exact bytes; that limitation is documented, not
// worked around.
type Condition struct {
	Attr   string
	Column string
	Op     Op
	Value  any
	Type   schema.Type
}

// SortColumn is one normalized sort key.
type SortColumn struct {
	Attr   string
	Column string
	Desc   bool
	Type   schema.Type
}

// Query is the adapter-neutral form of a Criteria. Conditions are
// conjuncted; each Or branch is internally conjuncted and the branches
// disjuncted with each other, the whole disjunction conjuncted with
// Conditions.
type Query struct {
	Conditions []Condition
	Or         [][]Condition
	Sort       []SortColumn
	Limit      int
	Skip       int

	// Columns is the projection in storage names; Attrs carries the
	// corresponding logical names. Empty means all attributes.
	Columns []string
	Attrs   []string
}

// UnknownAttributeError reports criteria or a write referencing an
// attribute absent from the model's schema. It fails fast, before any
// adapter is consulted.
type UnknownAttributeError struct {
	Identity string
	Attr     string
}

// Error returns the error string.
func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("strata: model %s has no attribute %q", e.Identity, e.Attr)
}
