package strata

import (
	"context"
	"sort"
	"time"

	"github.com/syssam/strata/adapter"
	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/validate"
)

// Collection is a compiled, registered model: the schema, its
// validation engine, and the dispatcher over its connections. All
// persistence flows through its pipelines, which run the model's
// lifecycle hooks in fixed order.
type Collection struct {
	orm        *ORM
	def        Definition
	s          *schema.Schema
	engine     *validate.Engine
	dispatcher *adapter.Dispatcher

	cache    Cache
	cacheTTL time.Duration
}

// Schema returns the compiled schema.
func (c *Collection) Schema() *schema.Schema { return c.s }

// Identity returns the model identity.
func (c *Collection) Identity() string { return c.s.Identity() }

// Create runs the full write pipeline for a new record:
// defaults, beforeValidate, validation, afterValidate, beforeCreate,
// dispatch, afterCreate. A failing hook aborts with a HookError and
// nothing is written.
func (c *Collection) Create(ctx context.Context, values schema.Values) (*Record, error) {
	rec := cloneValues(values)
	if err := c.checkDeclared(rec); err != nil {
		return nil, err
	}
	c.applyDefaults(rec)

	if err := c.runBefore(ctx, HookBeforeValidate, c.def.Hooks.BeforeValidate, rec); err != nil {
		return nil, err
	}
	if err := c.engine.Validate(ctx, rec, false); err != nil {
		return nil, err
	}
	if err := c.runBefore(ctx, HookAfterValidate, c.def.Hooks.AfterValidate, rec); err != nil {
		return nil, err
	}
	if err := c.runBefore(ctx, HookBeforeCreate, c.def.Hooks.BeforeCreate, rec); err != nil {
		return nil, err
	}
	c.stamp(rec, true)

	stored, err := c.dispatcher.Insert(ctx, rec)
	if err != nil {
		return nil, err
	}
	c.invalidateCache(ctx)
	out := newRecord(c, stored)
	if err := c.runAfter(ctx, HookAfterCreate, c.def.Hooks.AfterCreate, []*Record{out}); err != nil {
		return nil, err
	}
	return out, nil
}

// Update validates the partial change set, runs the update hooks, and
// applies the changes to every matching record. The updated records are
// returned.
func (c *Collection) Update(ctx context.Context, crit criteria.Criteria, changes schema.Values) ([]*Record, error) {
	q, err := criteria.Normalize(crit, c.s)
	if err != nil {
		return nil, err
	}
	rec := cloneValues(changes)
	if err := c.checkDeclared(rec); err != nil {
		return nil, err
	}

	if err := c.runBefore(ctx, HookBeforeValidate, c.def.Hooks.BeforeValidate, rec); err != nil {
		return nil, err
	}
	if err := c.engine.Validate(ctx, rec, true); err != nil {
		return nil, err
	}
	if err := c.runBefore(ctx, HookAfterValidate, c.def.Hooks.AfterValidate, rec); err != nil {
		return nil, err
	}
	if err := c.runBefore(ctx, HookBeforeUpdate, c.def.Hooks.BeforeUpdate, rec); err != nil {
		return nil, err
	}
	c.stamp(rec, false)

	rows, err := c.dispatcher.Update(ctx, q, rec)
	if err != nil {
		return nil, err
	}
	c.invalidateCache(ctx)
	out := c.wrap(rows)
	if err := c.runAfter(ctx, HookAfterUpdate, c.def.Hooks.AfterUpdate, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateOne updates exactly one matching record and returns it, or
// ErrNotFound when nothing matched. The target is resolved first and
// the write is re-targeted by primary key, so a broad criteria never
// touches more than one record.
func (c *Collection) UpdateOne(ctx context.Context, crit criteria.Criteria, changes schema.Values) (*Record, error) {
	target, err := c.FindOne(ctx, crit)
	if err != nil {
		return nil, err
	}
	pk := c.s.PrimaryKey().Name
	recs, err := c.Update(ctx, criteria.Criteria{
		Where: criteria.Where{pk: target.Get(pk)},
	}, changes)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

// Destroy removes every record matching the criteria and returns the
// removed records. The beforeDestroy hook sees the criteria before
// dispatch and may adjust it; a hook failure leaves the store
// untouched.
func (c *Collection) Destroy(ctx context.Context, crit criteria.Criteria) ([]*Record, error) {
	if h := c.def.Hooks.BeforeDestroy; h != nil {
		if err := h(ctx, &crit); err != nil {
			return nil, &HookError{Hook: HookBeforeDestroy, Err: err}
		}
	}
	q, err := criteria.Normalize(crit, c.s)
	if err != nil {
		return nil, err
	}
	rows, err := c.dispatcher.Delete(ctx, q)
	if err != nil {
		return nil, err
	}
	c.invalidateCache(ctx)
	out := c.wrap(rows)
	if err := c.runAfter(ctx, HookAfterDestroy, c.def.Hooks.AfterDestroy, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Find starts a query over the collection.
func (c *Collection) Find(crit criteria.Criteria) *Finder {
	return &Finder{c: c, crit: crit}
}

// FindOne resolves a single record, or ErrNotFound.
func (c *Collection) FindOne(ctx context.Context, crit criteria.Criteria) (*Record, error) {
	return c.Find(crit).One(ctx)
}

// Count returns the number of records matching the criteria.
func (c *Collection) Count(ctx context.Context, crit criteria.Criteria) (int, error) {
	return c.Find(crit).Count(ctx)
}

// Methods returns the custom adapter method names reachable through
// Call: the union across the model's connections, sorted.
func (c *Collection) Methods() []string {
	return c.dispatcher.Methods()
}

// Call dispatches a custom adapter method by name. When several
// connections export the same name, the leftmost connection wins.
func (c *Collection) Call(ctx context.Context, method string, args ...any) (any, error) {
	return c.dispatcher.Call(ctx, method, args...)
}

func (c *Collection) runBefore(ctx context.Context, name string, h BeforeHook, rec schema.Values) error {
	if h == nil {
		return nil
	}
	if err := h(ctx, rec); err != nil {
		return &HookError{Hook: name, Err: err}
	}
	return nil
}

func (c *Collection) runAfter(ctx context.Context, name string, h AfterHook, recs []*Record) error {
	if h == nil {
		return nil
	}
	if err := h(ctx, recs); err != nil {
		return &HookError{Hook: name, Err: err}
	}
	return nil
}

// checkDeclared rejects undeclared keys on strict models. Keys are
// visited in sorted order so the reported attribute is deterministic.
func (c *Collection) checkDeclared(rec schema.Values) error {
	if !c.s.Strict() {
		return nil
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := c.s.Attribute(k); !ok {
			return &criteria.UnknownAttributeError{Identity: c.s.Identity(), Attr: k}
		}
	}
	return nil
}

// applyDefaults fills absent attributes from their declared defaults.
// Defaults land before validation, so a required attribute with a
// default never fails the required check.
func (c *Collection) applyDefaults(rec schema.Values) {
	for _, a := range c.s.Attributes() {
		if a.Virtual() {
			continue
		}
		if _, present := rec[a.Name]; present {
			continue
		}
		if v, ok := a.Default(); ok {
			rec[a.Name] = v
		}
	}
}

// stamp fills the auto-injected timestamps. updatedAt is always
// refreshed; createdAt only on insert and only when not already set by
// a hook. Timestamps the model declares itself are left alone.
func (c *Collection) stamp(rec schema.Values, insert bool) {
	now := time.Now().UTC()
	if insert && c.s.AutoCreatedAt() {
		if _, set := rec["createdAt"]; !set {
			rec["createdAt"] = now
		}
	}
	if c.s.AutoUpdatedAt() {
		rec["updatedAt"] = now
	}
}

func (c *Collection) wrap(rows []map[string]any) []*Record {
	out := make([]*Record, len(rows))
	for i, row := range rows {
		out[i] = newRecord(c, row)
	}
	return out
}

func cloneValues(values schema.Values) schema.Values {
	out := make(schema.Values, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
