package strata

import (
	"context"

	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
)

// The fixed lifecycle hook set. Declaration intake binds unknown
// top-level keys against these names.
const (
	HookBeforeValidate = "beforeValidate"
	HookAfterValidate  = "afterValidate"
	HookBeforeCreate   = "beforeCreate"
	HookAfterCreate    = "afterCreate"
	HookBeforeUpdate   = "beforeUpdate"
	HookAfterUpdate    = "afterUpdate"
	HookBeforeDestroy  = "beforeDestroy"
	HookAfterDestroy   = "afterDestroy"
)

// BeforeHook runs ahead of a pipeline stage with the in-flight
// candidate record. It may mutate the record in place; the mutation is
// visible to every later stage, including validation and dispatch.
// A non-nil return aborts the pipeline with a HookError.
type BeforeHook func(ctx context.Context, rec schema.Values) error

// AfterHook runs after a completed write with the persisted records.
type AfterHook func(ctx context.Context, recs []*Record) error

// DestroyHook runs ahead of a destroy with the criteria about to be
// dispatched. It may inspect matching records through the model and may
// mutate the criteria.
type DestroyHook func(ctx context.Context, c *criteria.Criteria) error

// Hooks binds lifecycle hooks to their fixed stages. Any hook may be
// nil (no-op). Hooks never run concurrently within one operation; they
// execute strictly in pipeline order.
type Hooks struct {
	BeforeValidate BeforeHook
	AfterValidate  BeforeHook
	BeforeCreate   BeforeHook
	AfterCreate    AfterHook
	BeforeUpdate   BeforeHook
	AfterUpdate    AfterHook
	BeforeDestroy  DestroyHook
	AfterDestroy   AfterHook
}

// Method is a bound instance method, invoked on a persisted record.
type Method func(r *Record, args ...any) any

// Definition is a model declaration: attributes, flags, relations,
// lifecycle hooks, and instance behavior. It is consumed once by
// [ORM.Register]; the compiled model is immutable afterwards.
//
// The boolean flags default to enabled (nil means true) except Strict,
// which also defaults to true: undeclared attributes in writes and
// criteria are rejected unless the model opts out.
type Definition struct {
	// Identity is the model's globally unique name. Required.
	Identity string

	// Connection lists the named connections the model dispatches to,
	// in precedence order. Required.
	Connection []string

	// TableName overrides the storage table name. Defaults to the
	// tableized identity ("person" becomes "people").
	TableName string

	AutoPK        *bool
	AutoCreatedAt *bool
	AutoUpdatedAt *bool
	Strict        *bool

	// Attributes maps logical names to descriptors.
	Attributes map[string]schema.Attribute

	// Types registers the model's custom type validators, referenced
	// by name from an attribute's Validate field.
	Types map[string]schema.TypeValidator

	Hooks   Hooks
	Methods map[string]Method

	// ToJSON overrides the externally-serialized shape of the model's
	// records. When nil, serialization uses ToObject's plain snapshot.
	ToJSON func(r *Record) any
}

func flag(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Bool is a convenience for setting Definition flags inline.
func Bool(v bool) *bool { return &v }
