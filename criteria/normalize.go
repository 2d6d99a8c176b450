package criteria

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/syssam/strata/schema"
)

// Normalize translates a logical criteria expression into an
// adapter-neutral Query: attribute names become storage columns,
// comparison values are coerced to the attribute's semantic type, and
// every condition carries that type. Criteria referencing attributes
// absent from the schema fail with *UnknownAttributeError.
func Normalize(c Criteria, s *schema.Schema) (*Query, error) {
	q := &Query{
		Limit: max(c.Limit, 0),
		Skip:  max(c.Skip, 0),
	}
	conds, or, err := normalizeWhere(c.Where, s)
	if err != nil {
		return nil, err
	}
	q.Conditions, q.Or = conds, or

	for _, sk := range c.Sort {
		a, ok := storable(s, sk.Attr)
		if !ok {
			return nil, &UnknownAttributeError{Identity: s.Identity(), Attr: sk.Attr}
		}
		q.Sort = append(q.Sort, SortColumn{
			Attr:   a.Name,
			Column: a.Column(),
			Desc:   sk.Desc,
			Type:   a.Type,
		})
	}
	for _, name := range c.Select {
		a, ok := storable(s, name)
		if !ok {
			return nil, &UnknownAttributeError{Identity: s.Identity(), Attr: name}
		}
		q.Attrs = append(q.Attrs, a.Name)
		q.Columns = append(q.Columns, a.Column())
	}
	return q, nil
}

// storable resolves a logical name to a non-virtual attribute.
func storable(s *schema.Schema, name string) (schema.Attribute, bool) {
	a, ok := s.Attribute(name)
	if !ok || a.Virtual() {
		return schema.Attribute{}, false
	}
	return a, true
}

func normalizeWhere(w Where, s *schema.Schema) ([]Condition, [][]Condition, error) {
	if len(w) == 0 {
		return nil, nil, nil
	}
	// Deterministic condition order regardless of map iteration.
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conds []Condition
	var or [][]Condition
	for _, key := range keys {
		if key == "or" {
			branches, err := orBranches(w[key])
			if err != nil {
				return nil, nil, err
			}
			for _, branch := range branches {
				bc, nestedOr, err := normalizeWhere(branch, s)
				if err != nil {
					return nil, nil, err
				}
				if nestedOr != nil {
					return nil, nil, fmt.Errorf("strata: criteria: nested or is not supported")
				}
				or = append(or, bc)
			}
			continue
		}
		a, ok := storable(s, key)
		if !ok {
			return nil, nil, &UnknownAttributeError{Identity: s.Identity(), Attr: key}
		}
		kc, err := attrConditions(a, w[key])
		if err != nil {
			return nil, nil, err
		}
		conds = append(conds, kc...)
	}
	return conds, or, nil
}

func orBranches(v any) ([]Where, error) {
	switch b := v.(type) {
	case []Where:
		return b, nil
	case []map[string]any:
		out := make([]Where, len(b))
		for i, m := range b {
			out[i] = Where(m)
		}
		return out, nil
	case []any:
		out := make([]Where, len(b))
		for i, e := range b {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("strata: criteria: or branch must be a map, got %T", e)
			}
			out[i] = Where(m)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("strata: criteria: or expects a list of branches, got %T", v)
	}
}

// attrConditions expands one where entry into normalized conditions.
// A bare value is equality, a slice is membership, and a modifier map
// yields one condition per modifier.
func attrConditions(a schema.Attribute, v any) ([]Condition, error) {
	switch val := v.(type) {
	case map[string]any:
		mods := make([]string, 0, len(val))
		for m := range val {
			mods = append(mods, m)
		}
		sort.Strings(mods)
		conds := make([]Condition, 0, len(mods))
		for _, m := range mods {
			op, ok := modifiers[m]
			if !ok {
				return nil, fmt.Errorf("strata: criteria: unknown modifier %q on %s", m, a.Name)
			}
			c, err := condition(a, op, val[m])
			if err != nil {
				return nil, err
			}
			conds = append(conds, c)
		}
		return conds, nil
	default:
		if list, ok := asList(v); ok {
			c, err := condition(a, OpIn, list)
			if err != nil {
				return nil, err
			}
			return []Condition{c}, nil
		}
		c, err := condition(a, OpEq, v)
		if err != nil {
			return nil, err
		}
		return []Condition{c}, nil
	}
}

// asList widens a slice operand of any element type to []any.
// []byte stays a scalar; it is a binary value, not a membership list.
func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func condition(a schema.Attribute, op Op, v any) (Condition, error) {
	coerced, err := coerceOperand(a, op, v)
	if err != nil {
		return Condition{}, fmt.Errorf("strata: criteria: %s: %w", a.Name, err)
	}
	return Condition{
		Attr:   a.Name,
		Column: a.Column(),
		Op:     op,
		Value:  coerced,
		Type:   a.Type,
	}, nil
}

func coerceOperand(a schema.Attribute, op Op, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch op {
	case OpIn, OpNotIn:
		list, ok := asList(v)
		if !ok {
			return nil, fmt.Errorf("%s expects a list, got %T", op, v)
		}
		out := make([]any, len(list))
		for i, e := range list {
			c, err := schema.Coerce(a.Type, e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case OpContains, OpStartsWith, OpEndsWith, OpLike:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s expects a string, got %T", op, v)
		}
		return s, nil
	default:
		return schema.Coerce(a.Type, v)
	}
}
