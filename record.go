package strata

import (
	"encoding/json"
	"sort"

	"github.com/syssam/strata/schema"
)

// Record is a single materialized row bound to its collection. Values
// are keyed by logical attribute name; populated associations hold
// *Record or []*Record in place of the raw key.
type Record struct {
	c      *Collection
	values schema.Values
}

func newRecord(c *Collection, values schema.Values) *Record {
	if values == nil {
		values = make(schema.Values)
	}
	return &Record{c: c, values: values}
}

// Collection returns the model this record belongs to.
func (r *Record) Collection() *Collection { return r.c }

// Get returns the value stored under the logical attribute name.
func (r *Record) Get(attr string) any { return r.values[attr] }

// Set stores a value under the logical attribute name. No validation
// happens here; it runs when the record is written back.
func (r *Record) Set(attr string, v any) { r.values[attr] = v }

// Keys returns the populated attribute names, sorted.
func (r *Record) Keys() []string {
	out := make([]string, 0, len(r.values))
	for k := range r.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Values returns the record's backing map. Mutations are visible to
// the record.
func (r *Record) Values() schema.Values { return r.values }

// ToObject flattens the record into plain data: nested populated
// records become maps, populated collections become slices of maps.
func (r *Record) ToObject() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		switch nested := v.(type) {
		case *Record:
			out[k] = nested.ToObject()
		case []*Record:
			rows := make([]map[string]any, len(nested))
			for i, rec := range nested {
				rows[i] = rec.ToObject()
			}
			out[k] = rows
		default:
			out[k] = v
		}
	}
	return out
}

// ToJSON returns the record's serialization form. A model-level ToJSON
// override takes precedence; otherwise it is ToObject.
func (r *Record) ToJSON() any {
	if r.c != nil && r.c.def.ToJSON != nil {
		return r.c.def.ToJSON(r)
	}
	return r.ToObject()
}

// MarshalJSON implements json.Marshaler via ToJSON.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToJSON())
}

// Invoke calls an instance method declared on the model definition.
func (r *Record) Invoke(name string, args ...any) (any, error) {
	m, ok := r.c.def.Methods[name]
	if !ok {
		return nil, &UnsupportedOperationError{Identity: r.c.s.Identity(), Op: name}
	}
	return m(r, args...), nil
}
