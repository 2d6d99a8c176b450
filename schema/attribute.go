package schema

// Attribute describes one declared field of a model.
//
// Exactly one attribute per compiled schema carries PrimaryKey, whether
// declared explicitly or injected by the auto-primary-key flag.
// AutoIncrement is only legal on integer attributes; the compiler
// enforces both invariants.
type Attribute struct {
	// Name is the logical name, used at the application boundary.
	// Set by the compiler from the declaration map key.
	Name string

	// Type is the semantic type. Required unless the attribute declares
	// a relation (Model or Collection), in which case it defaults to
	// the related model's key type.
	Type Type

	Required      bool
	Unique        bool
	Index         bool
	PrimaryKey    bool
	AutoIncrement bool

	// DefaultsTo supplies a value when the attribute is absent from a
	// create. It is either a literal or a zero-argument producer
	// (func() any), invoked per record.
	DefaultsTo any

	// ColumnName overrides the storage-layer name. Empty means the
	// logical name is used as-is.
	ColumnName string

	// Rules are the attribute's validation rules, evaluated in order.
	Rules []Rule

	// Validate names a custom type validator registered on the model.
	// It runs after the built-in rules for this attribute.
	Validate string

	// Model declares a belongs-to relation: the attribute holds a
	// foreign key referencing the named model's primary key.
	Model string

	// Collection declares a has-many relation to the named model.
	// Via names the attribute on that model holding this model's key.
	// Collection attributes are virtual: they occupy no storage column.
	Collection string
	Via        string
}

// Relational reports whether the attribute declares a relation.
func (a Attribute) Relational() bool {
	return a.Model != "" || a.Collection != ""
}

// Virtual reports whether the attribute occupies no storage column.
// Has-many attributes are resolved by the association resolver at read
// time and never travel to an adapter.
func (a Attribute) Virtual() bool {
	return a.Collection != ""
}

// Column returns the resolved storage name.
func (a Attribute) Column() string {
	if a.ColumnName != "" {
		return a.ColumnName
	}
	return a.Name
}

// Default resolves DefaultsTo to a concrete value, invoking producers.
// The second return is false when no default is declared.
func (a Attribute) Default() (any, bool) {
	switch d := a.DefaultsTo.(type) {
	case nil:
		return nil, false
	case func() any:
		return d(), true
	default:
		return cloneValue(d), true
	}
}

// cloneValue shallow-copies map and slice defaults so one record's
// mutation cannot leak into the next record's default.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = e
		}
		return m
	case []any:
		s := make([]any, len(t))
		copy(s, t)
		return s
	default:
		return v
	}
}
