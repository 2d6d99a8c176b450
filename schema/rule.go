package schema

import (
	"context"
	"fmt"
	"regexp"
)

// Values is the attribute-name keyed view of an in-flight candidate record.
// Rule producers and custom type validators receive the full candidate so
// they can read sibling attribute values; the record is passed explicitly
// rather than bound implicitly.
type Values = map[string]any

// TypeValidator is a named predicate registered per model. It receives the
// candidate value and the full in-progress record, and reports whether the
// value is acceptable. A false return fails the owning attribute under the
// validator's registered name.
type TypeValidator func(value any, rec Values) bool

// Rule is one named validation rule attached to an attribute.
// The engine resolves Value to a concrete comparison operand before
// evaluating the named check.
type Rule struct {
	Name  string
	Value RuleValue
}

type ruleKind uint8

const (
	ruleLiteral ruleKind = iota
	ruleRegexp
	ruleDerive
	ruleDeriveCtx
)

// RuleValue is the operand of a validation rule. It is a tagged variant
// over a literal value, a compiled regular expression, a synchronous
// producer, and a context-aware (possibly slow) producer. Producers
// receive the full candidate record.
type RuleValue struct {
	kind   ruleKind
	lit    any
	re     *regexp.Regexp
	fn     func(rec Values) any
	fnCtx  func(ctx context.Context, rec Values) (any, error)
}

// Lit returns a RuleValue holding a literal operand.
func Lit(v any) RuleValue {
	return RuleValue{kind: ruleLiteral, lit: v}
}

// Regex returns a RuleValue holding a compiled pattern, for the
// pattern-matching rules ("is", "not").
func Regex(re *regexp.Regexp) RuleValue {
	return RuleValue{kind: ruleRegexp, re: re}
}

// Derive returns a RuleValue whose operand is produced at validation time
// from the candidate record.
func Derive(fn func(rec Values) any) RuleValue {
	return RuleValue{kind: ruleDerive, fn: fn}
}

// DeriveCtx returns a RuleValue whose operand is produced by a
// context-aware call that may block (an I/O-backed lookup, for example).
// The engine awaits these independently per attribute.
func DeriveCtx(fn func(ctx context.Context, rec Values) (any, error)) RuleValue {
	return RuleValue{kind: ruleDeriveCtx, fnCtx: fn}
}

// Resolve produces the concrete comparison operand for this rule value.
// Regexp-valued rules resolve to the *regexp.Regexp itself.
func (rv RuleValue) Resolve(ctx context.Context, rec Values) (any, error) {
	switch rv.kind {
	case ruleLiteral:
		return rv.lit, nil
	case ruleRegexp:
		return rv.re, nil
	case ruleDerive:
		return rv.fn(rec), nil
	case ruleDeriveCtx:
		return rv.fnCtx(ctx, rec)
	default:
		return nil, fmt.Errorf("unresolvable rule value (kind %d)", rv.kind)
	}
}

// Regexp returns the compiled pattern for regexp-valued rules, or nil.
func (rv RuleValue) Regexp() *regexp.Regexp { return rv.re }
