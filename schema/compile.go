package schema

import (
	"sort"

	"github.com/go-openapi/inflect"
)

// Reserved attribute names. These collide with the declaration intake's
// top-level keys or with the fixed lifecycle hook set, so the compiler
// rejects them regardless of model flags.
var reservedNames = map[string]bool{
	"identity":       true,
	"connection":     true,
	"connections":    true,
	"tableName":      true,
	"attributes":     true,
	"types":          true,
	"autoPK":         true,
	"autoCreatedAt":  true,
	"autoUpdatedAt":  true,
	"schema":         true,
	"beforeValidate": true,
	"afterValidate":  true,
	"beforeCreate":   true,
	"afterCreate":    true,
	"beforeUpdate":   true,
	"afterUpdate":    true,
	"beforeDestroy":  true,
	"afterDestroy":   true,
}

// Config carries the model-level flags consumed by Compile.
type Config struct {
	// Identity is the model's globally unique name.
	Identity string

	// Connections is the ordered list of named connections the model
	// dispatches to. At least one is required.
	Connections []string

	// TableName overrides the storage table/collection name. When empty
	// the identity is tableized (underscored and pluralized).
	TableName string

	// AutoPK injects an integer, auto-incrementing, indexed primary key
	// named "id".
	AutoPK bool

	// AutoCreatedAt and AutoUpdatedAt inject datetime attributes
	// maintained by the write pipeline.
	AutoCreatedAt bool
	AutoUpdatedAt bool

	// Strict rejects writes and criteria referencing attributes outside
	// the schema. Non-strict models pass undeclared keys through to the
	// adapter untouched.
	Strict bool

	// Validators are the model's custom type validators, referenced by
	// name from Attribute.Validate.
	Validators map[string]TypeValidator
}

// Schema is the immutable compiled form of a model declaration.
// It is safe for unlimited concurrent readers.
type Schema struct {
	identity      string
	tableName     string
	strict        bool
	connections   []string
	attrs         map[string]Attribute
	order         []string
	byColumn      map[string]string
	pk            string
	autoCreatedAt bool
	autoUpdatedAt bool
	validators    map[string]TypeValidator
}

// Compile turns a raw attribute map and model flags into a canonical
// schema, or fails with a schema *Error. Injection of the auto primary
// key and timestamp attributes happens here, as does construction of the
// bidirectional logical-name/column-name mapping.
func Compile(cfg Config, attrs map[string]Attribute) (*Schema, error) {
	id := cfg.Identity
	if id == "" {
		return nil, NewError("", "identity is required")
	}
	if len(cfg.Connections) == 0 {
		return nil, NewError(id, "at least one connection is required")
	}
	compiled := make(map[string]Attribute, len(attrs)+3)
	for name, a := range attrs {
		if name == "" {
			return nil, NewError(id, "empty attribute name")
		}
		if reservedNames[name] {
			return nil, NewAttrError(id, name, "name is reserved")
		}
		a.Name = name
		if a.Model != "" && a.Collection != "" {
			return nil, NewAttrError(id, name, "cannot declare both model and collection")
		}
		if a.Collection != "" {
			if a.Via == "" {
				return nil, NewAttrError(id, name, "collection relation requires via")
			}
			if a.Unique || a.PrimaryKey || a.AutoIncrement || a.Index {
				return nil, NewAttrError(id, name, "collection attributes are virtual and cannot be unique, indexed, or keys")
			}
		}
		if a.Type == TypeInvalid {
			if a.Model == "" && a.Collection == "" {
				return nil, NewAttrError(id, name, "missing type")
			}
			// Foreign keys default to the key type of the related model.
			a.Type = TypeInteger
		}
		if !a.Type.Valid() {
			return nil, NewAttrError(id, name, "type %q is outside the type enumeration", a.Type)
		}
		if a.AutoIncrement && a.Type != TypeInteger {
			return nil, NewAttrError(id, name, "autoIncrement requires integer type, got %s", a.Type)
		}
		if a.Via != "" && a.Collection == "" {
			return nil, NewAttrError(id, name, "via is only valid with collection")
		}
		if a.Validate != "" {
			if _, ok := cfg.Validators[a.Validate]; !ok {
				return nil, NewAttrError(id, name, "unknown custom type validator %q", a.Validate)
			}
		}
		compiled[name] = a
	}

	declared := make([]string, 0, len(compiled))
	for name := range compiled {
		declared = append(declared, name)
	}
	sort.Strings(declared)

	pk := ""
	for _, name := range declared {
		if !compiled[name].PrimaryKey {
			continue
		}
		if pk != "" {
			return nil, NewError(id, "more than one primary key (%s, %s)", pk, name)
		}
		pk = name
	}
	switch {
	case cfg.AutoPK && pk != "":
		return nil, NewAttrError(id, pk, "explicit primary key conflicts with autoPK; disable autoPK to declare your own")
	case cfg.AutoPK:
		if _, exists := compiled["id"]; exists {
			return nil, NewAttrError(id, "id", "name is reserved while autoPK is enabled")
		}
		compiled["id"] = Attribute{
			Name:          "id",
			Type:          TypeInteger,
			PrimaryKey:    true,
			AutoIncrement: true,
			Index:         true,
			Unique:        true,
		}
		pk = "id"
	case pk == "":
		return nil, NewError(id, "no primary key declared and autoPK is disabled")
	}
	// The primary key is unique whether or not it was declared so;
	// per-column engines enforce uniqueness off this flag.
	if a := compiled[pk]; !a.Unique {
		a.Unique = true
		compiled[pk] = a
	}

	for _, ts := range []struct {
		on   bool
		name string
	}{
		{cfg.AutoCreatedAt, "createdAt"},
		{cfg.AutoUpdatedAt, "updatedAt"},
	} {
		if !ts.on {
			continue
		}
		if _, exists := compiled[ts.name]; exists {
			return nil, NewAttrError(id, ts.name, "name is reserved while auto-timestamps are enabled")
		}
		compiled[ts.name] = Attribute{Name: ts.name, Type: TypeDateTime}
	}

	order := make([]string, 0, len(compiled))
	for name := range compiled {
		order = append(order, name)
	}
	sort.Strings(order)

	byColumn := make(map[string]string, len(compiled))
	for _, name := range order {
		a := compiled[name]
		if a.Virtual() {
			continue
		}
		col := a.Column()
		if prev, dup := byColumn[col]; dup {
			return nil, NewError(id, "column %q maps to both %q and %q", col, prev, name)
		}
		byColumn[col] = name
	}

	table := cfg.TableName
	if table == "" {
		table = inflect.Tableize(id)
	}
	return &Schema{
		identity:      id,
		tableName:     table,
		strict:        cfg.Strict,
		connections:   append([]string(nil), cfg.Connections...),
		attrs:         compiled,
		order:         order,
		byColumn:      byColumn,
		pk:            pk,
		autoCreatedAt: cfg.AutoCreatedAt,
		autoUpdatedAt: cfg.AutoUpdatedAt,
		validators:    cfg.Validators,
	}, nil
}

// Identity returns the model's unique name.
func (s *Schema) Identity() string { return s.identity }

// TableName returns the resolved storage table/collection name.
func (s *Schema) TableName() string { return s.tableName }

// Strict reports whether undeclared attributes are rejected.
func (s *Schema) Strict() bool { return s.strict }

// AutoCreatedAt reports whether the createdAt attribute was injected by
// the compiler and is maintained by the write pipeline.
func (s *Schema) AutoCreatedAt() bool { return s.autoCreatedAt }

// AutoUpdatedAt reports the same for updatedAt.
func (s *Schema) AutoUpdatedAt() bool { return s.autoUpdatedAt }

// Connections returns the model's ordered connection names.
func (s *Schema) Connections() []string {
	return append([]string(nil), s.connections...)
}

// Attribute returns the descriptor for the given logical name.
func (s *Schema) Attribute(name string) (Attribute, bool) {
	a, ok := s.attrs[name]
	return a, ok
}

// Attributes returns all descriptors in deterministic (sorted) order.
func (s *Schema) Attributes() []Attribute {
	out := make([]Attribute, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.attrs[name])
	}
	return out
}

// PrimaryKey returns the descriptor of the primary key attribute.
func (s *Schema) PrimaryKey() Attribute {
	return s.attrs[s.pk]
}

// ColumnOf resolves a logical attribute name to its storage column.
func (s *Schema) ColumnOf(name string) (string, bool) {
	a, ok := s.attrs[name]
	if !ok || a.Virtual() {
		return "", false
	}
	return a.Column(), true
}

// LogicalOf resolves a storage column back to its logical name.
func (s *Schema) LogicalOf(column string) (string, bool) {
	name, ok := s.byColumn[column]
	return name, ok
}

// Validator returns the named custom type validator, if registered.
func (s *Schema) Validator(name string) (TypeValidator, bool) {
	v, ok := s.validators[name]
	return v, ok
}
