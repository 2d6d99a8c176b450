// Package strata is a datastore-agnostic object-mapping core. Models
// are declared once, compiled into immutable schemas, and dispatched
// across one or more named connections, each backed by an adapter that
// advertises its capabilities.
//
// A model moves through a fixed pipeline on every write: defaults,
// beforeValidate, validation, afterValidate, the operation hook, the
// adapter, and the after hook. Validation reports every failing rule of
// every attribute in one pass rather than stopping at the first.
//
// The package tree mirrors the pipeline: schema compiles declarations,
// validate evaluates rules, criteria normalizes query shapes, and
// adapter dispatches to storage engines. Engines for in-memory tables,
// key/value stores, and SQLite live under adapter/.
package strata
