package validate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/strata/schema"
)

// Error reports one or more attribute rule failures. Failures carries
// the complete per-attribute list of failed rule names: the engine never
// stops at the first failure, so a caller can present a full correction
// list without re-deriving it from the message.
type Error struct {
	Identity string
	Failures map[string][]string
}

// Error returns the error string with attributes and rule names in
// deterministic (sorted) order.
func (e *Error) Error() string {
	attrs := make([]string, 0, len(e.Failures))
	for a := range e.Failures {
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, fmt.Sprintf("%s [%s]", a, strings.Join(e.Failures[a], ", ")))
	}
	return fmt.Sprintf("strata: validation of %s failed: %s", e.Identity, strings.Join(parts, "; "))
}

// Rules returns the failed rule names for one attribute.
func (e *Error) Rules(attr string) []string {
	return e.Failures[attr]
}

// Engine evaluates a compiled schema's rules against candidate records.
type Engine struct {
	s *schema.Schema
}

// New returns an engine bound to the given schema.
func New(s *schema.Schema) *Engine {
	return &Engine{s: s}
}

// failures accumulates rule failures from concurrent attribute
// evaluations.
type failures struct {
	mu sync.Mutex
	m  map[string][]string
}

func (f *failures) add(attr string, rules ...string) {
	if len(rules) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.m == nil {
		f.m = make(map[string][]string)
	}
	f.m[attr] = append(f.m[attr], rules...)
}

// Validate checks rec against the schema: a complete record for creates
// (partial=false) or only the supplied attributes for updates
// (partial=true). Coercion runs first and mutates rec in place, so
// later pipeline stages observe the coerced values. Rule evaluation
// then fans out per attribute; a slow rule on one attribute does not
// delay rules on another, but Validate does not return until every rule
// has resolved. On failure it returns an *Error carrying every failed
// attribute and rule name.
//
// Defaults are applied by the caller before Validate, which is why an
// attribute with a resolvable default never fails "required".
func Validate(ctx context.Context, s *schema.Schema, rec schema.Values, partial bool) error {
	return New(s).Validate(ctx, rec, partial)
}

// Validate implements the package-level Validate for a bound engine.
func (e *Engine) Validate(ctx context.Context, rec schema.Values, partial bool) error {
	var fails failures

	// Coercion phase runs sequentially: it writes into rec, and the
	// concurrent phase below must observe a stable record.
	for _, a := range e.s.Attributes() {
		if a.Virtual() {
			continue
		}
		v, present := rec[a.Name]
		if !present || v == nil {
			continue
		}
		coerced, err := schema.Coerce(a.Type, v)
		if err != nil {
			fails.add(a.Name, a.Type.String())
			continue
		}
		rec[a.Name] = coerced
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range e.s.Attributes() {
		if a.Virtual() {
			continue
		}
		if _, bad := fails.get(a.Name); bad {
			continue
		}
		v, present := rec[a.Name]
		if partial && !present {
			continue
		}
		g.Go(func() error {
			return e.attribute(gctx, a, v, present, rec, &fails)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(fails.m) == 0 {
		return nil
	}
	for _, rules := range fails.m {
		sort.Strings(rules)
	}
	return &Error{Identity: e.s.Identity(), Failures: fails.m}
}

func (f *failures) get(attr string) ([]string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rules, ok := f.m[attr]
	return rules, ok
}

// attribute evaluates every rule of one attribute. Producer errors count
// as failures under the rule's name; only context cancellation aborts.
func (e *Engine) attribute(ctx context.Context, a schema.Attribute, v any, present bool, rec schema.Values, fails *failures) error {
	if !present || v == nil || v == "" {
		if a.Required {
			fails.add(a.Name, "required")
		}
		// Absent attributes are not evaluated against the remaining
		// rules; there is no value to compare.
		return nil
	}
	for _, rule := range a.Rules {
		if err := ctx.Err(); err != nil {
			return err
		}
		operand, err := rule.Value.Resolve(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fails.add(a.Name, rule.Name)
			continue
		}
		// A false operand disables the rule; declarations commonly
		// carry e.g. {email: false} to switch a rule off per record.
		if off, isBool := operand.(bool); isBool && !off {
			continue
		}
		fn, ok := checks[rule.Name]
		if !ok || !fn(v, operand) {
			fails.add(a.Name, rule.Name)
		}
	}
	if a.Validate != "" {
		fn, ok := e.s.Validator(a.Validate)
		if ok && !safeValidate(fn, v, rec) {
			fails.add(a.Name, a.Validate)
		}
	}
	return nil
}

// safeValidate runs a custom type validator, converting a panic into a
// plain rejection. Validators signal failure by returning false or by
// panicking; either way the attribute fails under the validator's name.
func safeValidate(fn schema.TypeValidator, v any, rec schema.Values) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return fn(v, rec)
}
