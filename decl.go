package strata

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
)

// declaration intake. A model may arrive as a loose map (typically
// decoded from a config file, or assembled by hand) instead of a typed
// Definition. Reserved keys configure the model; every other top-level
// key must be a lifecycle hook matching one of the fixed hook names, or
// an instance method.
var reservedDeclKeys = map[string]bool{
	"identity":      true,
	"connection":    true,
	"tableName":     true,
	"autoPK":        true,
	"autoCreatedAt": true,
	"autoUpdatedAt": true,
	"schema":        true,
	"attributes":    true,
	"types":         true,
	"toJSON":        true,
}

// attribute descriptor keys. Everything else inside an attribute map is
// a validation rule.
var attrDeclKeys = map[string]bool{
	"type":          true,
	"required":      true,
	"unique":        true,
	"index":         true,
	"primaryKey":    true,
	"autoIncrement": true,
	"defaultsTo":    true,
	"columnName":    true,
	"model":         true,
	"collection":    true,
	"via":           true,
}

// ParseDefinition converts a loose declaration map into a typed
// Definition. The "schema" key carries the strictness flag; attribute
// values may be a bare type name or a descriptor map whose extra keys
// become validation rules.
func ParseDefinition(decl map[string]any) (Definition, error) {
	var def Definition

	identity, _ := decl["identity"].(string)
	if identity == "" {
		return def, schema.NewError("", "declaration has no identity")
	}
	def.Identity = identity

	conns, err := declConnections(decl["connection"])
	if err != nil {
		return def, schema.NewError(identity, "%s", err)
	}
	def.Connection = conns

	if v, ok := decl["tableName"]; ok {
		name, isStr := v.(string)
		if !isStr {
			return def, schema.NewError(identity, "tableName must be a string")
		}
		def.TableName = name
	}
	for key, dst := range map[string]**bool{
		"autoPK":        &def.AutoPK,
		"autoCreatedAt": &def.AutoCreatedAt,
		"autoUpdatedAt": &def.AutoUpdatedAt,
		"schema":        &def.Strict,
	} {
		v, ok := decl[key]
		if !ok {
			continue
		}
		b, isBool := v.(bool)
		if !isBool {
			return def, schema.NewError(identity, "%s must be a boolean", key)
		}
		*dst = Bool(b)
	}

	if v, ok := decl["types"]; ok {
		def.Types, err = declTypes(v)
		if err != nil {
			return def, schema.NewError(identity, "%s", err)
		}
	}
	if v, ok := decl["toJSON"]; ok {
		fn, isFn := asToJSON(v)
		if !isFn {
			return def, schema.NewError(identity, "toJSON must be func(*Record) any")
		}
		def.ToJSON = fn
	}

	rawAttrs, _ := decl["attributes"].(map[string]any)
	def.Attributes = make(map[string]schema.Attribute, len(rawAttrs))
	for _, name := range sortedDeclKeys(rawAttrs) {
		attr, err := declAttribute(identity, name, rawAttrs[name], def.Types)
		if err != nil {
			return def, err
		}
		def.Attributes[name] = attr
	}

	for _, key := range sortedDeclKeys(decl) {
		if reservedDeclKeys[key] {
			continue
		}
		if bound, err := bindHook(&def.Hooks, key, decl[key]); err != nil {
			return def, schema.NewError(identity, "%s", err)
		} else if bound {
			continue
		}
		if m, ok := asMethod(decl[key]); ok {
			if def.Methods == nil {
				def.Methods = make(map[string]Method)
			}
			def.Methods[key] = m
			continue
		}
		return def, schema.NewError(identity, "unknown declaration key %q", key)
	}
	return def, nil
}

func declConnections(v any) ([]string, error) {
	switch c := v.(type) {
	case nil:
		return nil, fmt.Errorf("declaration has no connection")
	case string:
		return []string{c}, nil
	case []string:
		return c, nil
	case []any:
		out := make([]string, len(c))
		for i, e := range c {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("connection entries must be strings")
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("connection must be a string or a list of strings")
	}
}

func declTypes(v any) (map[string]schema.TypeValidator, error) {
	switch t := v.(type) {
	case map[string]schema.TypeValidator:
		return t, nil
	case map[string]any:
		out := make(map[string]schema.TypeValidator, len(t))
		for name, raw := range t {
			tv, ok := asTypeValidator(raw)
			if !ok {
				return nil, fmt.Errorf("type %q must be func(value any, rec map[string]any) bool", name)
			}
			out[name] = tv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("types must be a map of named validators")
	}
}

// declAttribute parses one attribute. A bare string is a type shorthand;
// a map is a full descriptor. A type name registered in the model's
// custom validators resolves to a json-typed attribute validated by it.
func declAttribute(identity, name string, raw any, types map[string]schema.TypeValidator) (schema.Attribute, error) {
	switch v := raw.(type) {
	case schema.Attribute:
		return v, nil
	case string:
		return declAttrType(identity, name, v, types)
	case map[string]any:
		var a schema.Attribute
		if tn, ok := v["type"].(string); ok {
			parsed, err := declAttrType(identity, name, tn, types)
			if err != nil {
				return a, err
			}
			a = parsed
		}
		if s, ok := v["model"].(string); ok {
			a.Model = s
		}
		if s, ok := v["collection"].(string); ok {
			a.Collection = s
		}
		if s, ok := v["via"].(string); ok {
			a.Via = s
		}
		if s, ok := v["columnName"].(string); ok {
			a.ColumnName = s
		}
		if b, ok := v["required"].(bool); ok {
			a.Required = b
		}
		if b, ok := v["unique"].(bool); ok {
			a.Unique = b
		}
		if b, ok := v["index"].(bool); ok {
			a.Index = b
		}
		if b, ok := v["primaryKey"].(bool); ok {
			a.PrimaryKey = b
		}
		if b, ok := v["autoIncrement"].(bool); ok {
			a.AutoIncrement = b
		}
		if d, ok := v["defaultsTo"]; ok {
			a.DefaultsTo = d
		}
		for _, key := range sortedDeclKeys(v) {
			if attrDeclKeys[key] {
				continue
			}
			a.Rules = append(a.Rules, schema.Rule{Name: key, Value: declRuleValue(v[key])})
		}
		return a, nil
	default:
		return schema.Attribute{}, schema.NewAttrError(identity, name, "attribute must be a type name or a descriptor map")
	}
}

func declAttrType(identity, name, typeName string, types map[string]schema.TypeValidator) (schema.Attribute, error) {
	if t, err := schema.ParseType(typeName); err == nil {
		return schema.Attribute{Type: t}, nil
	}
	if _, ok := types[typeName]; ok {
		return schema.Attribute{Type: schema.TypeJSON, Validate: typeName}, nil
	}
	return schema.Attribute{}, schema.NewAttrError(identity, name, "unknown type %q", typeName)
}

// declRuleValue classifies a rule operand: compiled patterns stay
// patterns, producer funcs become derived operands, everything else is
// a literal.
func declRuleValue(v any) schema.RuleValue {
	switch fn := v.(type) {
	case schema.RuleValue:
		return fn
	case *regexp.Regexp:
		return schema.Regex(fn)
	case func(rec schema.Values) any:
		return schema.Derive(fn)
	case func(ctx context.Context, rec schema.Values) (any, error):
		return schema.DeriveCtx(fn)
	default:
		return schema.Lit(v)
	}
}

func bindHook(h *Hooks, name string, v any) (bool, error) {
	switch name {
	case HookBeforeValidate, HookAfterValidate, HookBeforeCreate, HookBeforeUpdate:
		fn, ok := asBeforeHook(v)
		if !ok {
			return false, fmt.Errorf("%s must be func(ctx, record) error", name)
		}
		switch name {
		case HookBeforeValidate:
			h.BeforeValidate = fn
		case HookAfterValidate:
			h.AfterValidate = fn
		case HookBeforeCreate:
			h.BeforeCreate = fn
		case HookBeforeUpdate:
			h.BeforeUpdate = fn
		}
		return true, nil
	case HookAfterCreate, HookAfterUpdate, HookAfterDestroy:
		fn, ok := asAfterHook(v)
		if !ok {
			return false, fmt.Errorf("%s must be func(ctx, records) error", name)
		}
		switch name {
		case HookAfterCreate:
			h.AfterCreate = fn
		case HookAfterUpdate:
			h.AfterUpdate = fn
		case HookAfterDestroy:
			h.AfterDestroy = fn
		}
		return true, nil
	case HookBeforeDestroy:
		fn, ok := asDestroyHook(v)
		if !ok {
			return false, fmt.Errorf("%s must be func(ctx, criteria) error", name)
		}
		h.BeforeDestroy = fn
		return true, nil
	}
	return false, nil
}

func asBeforeHook(v any) (BeforeHook, bool) {
	switch fn := v.(type) {
	case BeforeHook:
		return fn, true
	case func(ctx context.Context, rec schema.Values) error:
		return fn, true
	}
	return nil, false
}

func asAfterHook(v any) (AfterHook, bool) {
	switch fn := v.(type) {
	case AfterHook:
		return fn, true
	case func(ctx context.Context, recs []*Record) error:
		return fn, true
	}
	return nil, false
}

func asDestroyHook(v any) (DestroyHook, bool) {
	switch fn := v.(type) {
	case DestroyHook:
		return fn, true
	case func(ctx context.Context, c *criteria.Criteria) error:
		return fn, true
	}
	return nil, false
}

func asMethod(v any) (Method, bool) {
	switch fn := v.(type) {
	case Method:
		return fn, true
	case func(r *Record, args ...any) any:
		return fn, true
	}
	return nil, false
}

func asTypeValidator(v any) (schema.TypeValidator, bool) {
	switch fn := v.(type) {
	case schema.TypeValidator:
		return fn, true
	case func(value any, rec schema.Values) bool:
		return fn, true
	}
	return nil, false
}

func asToJSON(v any) (func(*Record) any, bool) {
	switch fn := v.(type) {
	case func(*Record) any:
		return fn, true
	}
	return nil, false
}

func sortedDeclKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
