package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
)

// Connection is a named binding to an adapter instance.
type Connection struct {
	Name    string
	Adapter Adapter
}

// Dispatcher routes one model's logical operations to its ordered
// connection list. It selects the first connection exposing the needed
// capability (left-to-right precedence, also for custom method name
// collisions), translates logical attribute names to storage columns on
// the way in and back on the way out, and applies the json/array
// stringify polyfill for engines without native json support.
type Dispatcher struct {
	s     *schema.Schema
	conns []Connection
}

// NewDispatcher builds a dispatcher for the given compiled schema and
// its resolved connections, in declaration order.
func NewDispatcher(s *schema.Schema, conns []Connection) *Dispatcher {
	return &Dispatcher{s: s, conns: conns}
}

// Schema returns the dispatcher's compiled schema.
func (d *Dispatcher) Schema() *schema.Schema { return d.s }

// forCapability returns the first connection serving c.
func (d *Dispatcher) forCapability(c Capability) (Connection, error) {
	for _, conn := range d.conns {
		if conn.Adapter.Capabilities().Has(c) {
			return conn, nil
		}
	}
	return Connection{}, &UnsupportedOperationError{Identity: d.s.Identity(), Op: string(c)}
}

// Insert stores one candidate record and returns the persisted values
// under logical names, including engine-generated keys.
func (d *Dispatcher) Insert(ctx context.Context, rec map[string]any) (map[string]any, error) {
	conn, err := d.forCapability(Insert)
	if err != nil {
		return nil, err
	}
	native := conn.Adapter.Capabilities().Has(NativeJSON)
	cols, err := d.toColumns(rec, native)
	if err != nil {
		return nil, err
	}
	out, err := conn.Adapter.Insert(ctx, d.s.TableName(), cols)
	if err != nil {
		return nil, d.constraintAttr(err)
	}
	return d.fromColumns(out, native), nil
}

// Update applies logical-name changes to every record matching q and
// returns the updated records.
func (d *Dispatcher) Update(ctx context.Context, q *criteria.Query, changes map[string]any) ([]map[string]any, error) {
	conn, err := d.forCapability(Update)
	if err != nil {
		return nil, err
	}
	native := conn.Adapter.Capabilities().Has(NativeJSON)
	cols, err := d.toColumns(changes, native)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Adapter.Update(ctx, d.s.TableName(), q, cols)
	if err != nil {
		return nil, d.constraintAttr(err)
	}
	return d.fromColumnsAll(rows, native), nil
}

// Delete removes every record matching q and returns the removed
// records.
func (d *Dispatcher) Delete(ctx context.Context, q *criteria.Query) ([]map[string]any, error) {
	conn, err := d.forCapability(Delete)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Adapter.Delete(ctx, d.s.TableName(), q)
	if err != nil {
		return nil, d.constraintAttr(err)
	}
	return d.fromColumnsAll(rows, conn.Adapter.Capabilities().Has(NativeJSON)), nil
}

// Find returns the records matching q under logical names.
func (d *Dispatcher) Find(ctx context.Context, q *criteria.Query) ([]map[string]any, error) {
	conn, err := d.forCapability(Find)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Adapter.Find(ctx, d.s.TableName(), q)
	if err != nil {
		return nil, err
	}
	return d.fromColumnsAll(rows, conn.Adapter.Capabilities().Has(NativeJSON)), nil
}

// Initialize materializes the schema on every connection that supports
// definition, and requests indexes for indexed attributes on every
// connection that supports them. Index requests may be downgraded by
// the adapter (string attributes, case-insensitive equality); that is
// the adapter's call to make and is not an error.
func (d *Dispatcher) Initialize(ctx context.Context) error {
	for _, conn := range d.conns {
		if def, ok := conn.Adapter.(SchemaDefiner); ok && conn.Adapter.Capabilities().Has(DefineSchema) {
			if err := def.DefineSchema(ctx, d.s.TableName(), d.s); err != nil {
				return fmt.Errorf("strata: connection %s: define schema: %w", conn.Name, err)
			}
		}
		idx, ok := conn.Adapter.(Indexer)
		if !ok || !conn.Adapter.Capabilities().Has(AddIndex) {
			continue
		}
		for _, a := range d.s.Attributes() {
			if a.Virtual() || (!a.Index && !a.Unique) {
				continue
			}
			if err := idx.AddIndex(ctx, d.s.TableName(), a.Column(), a.Unique); err != nil {
				return fmt.Errorf("strata: connection %s: index %s: %w", conn.Name, a.Name, err)
			}
		}
	}
	return nil
}

// Methods returns the union of custom method names across the
// connection list. Names exposed by more than one connection appear
// once; dispatch resolves them to the leftmost owner.
func (d *Dispatcher) Methods() []string {
	seen := make(map[string]bool)
	var out []string
	for _, conn := range d.conns {
		caller, ok := conn.Adapter.(Caller)
		if !ok {
			continue
		}
		for _, m := range caller.Methods() {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// Call invokes a custom adapter method. The first connection in the
// declared list exposing the name wins; methods exposed only by later
// connections remain reachable.
func (d *Dispatcher) Call(ctx context.Context, method string, args ...any) (any, error) {
	for _, conn := range d.conns {
		caller, ok := conn.Adapter.(Caller)
		if !ok {
			continue
		}
		for _, m := range caller.Methods() {
			if m == method {
				return caller.Call(ctx, method, d.s.TableName(), args...)
			}
		}
	}
	return nil, &UnsupportedOperationError{Identity: d.s.Identity(), Op: method}
}

// toColumns translates a logical-name record to storage columns,
// stringifying array/json values for engines without native support.
// Undeclared keys pass through untouched; strict models reject them
// before dispatch.
func (d *Dispatcher) toColumns(rec map[string]any, nativeJSON bool) (map[string]any, error) {
	out := make(map[string]any, len(rec))
	for name, v := range rec {
		a, ok := d.s.Attribute(name)
		if !ok {
			out[name] = v
			continue
		}
		if a.Virtual() {
			continue
		}
		if !nativeJSON && (a.Type == schema.TypeArray || a.Type == schema.TypeJSON) && v != nil {
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("strata: encode %s.%s: %w", d.s.Identity(), name, err)
			}
			out[a.Column()] = string(encoded)
			continue
		}
		out[a.Column()] = v
	}
	return out, nil
}

// fromColumns translates a storage row back to logical names and undoes
// the json/array polyfill. Columns the schema does not know are dropped
// for strict models and passed through otherwise.
func (d *Dispatcher) fromColumns(row map[string]any, nativeJSON bool) map[string]any {
	out := make(map[string]any, len(row))
	for col, v := range row {
		name, ok := d.s.LogicalOf(col)
		if !ok {
			if !d.s.Strict() {
				out[col] = v
			}
			continue
		}
		a, _ := d.s.Attribute(name)
		if !nativeJSON && (a.Type == schema.TypeArray || a.Type == schema.TypeJSON) {
			if enc, isStr := v.(string); isStr && enc != "" {
				var decoded any
				if err := json.Unmarshal([]byte(enc), &decoded); err == nil {
					out[name] = decoded
					continue
				}
			}
		}
		if v != nil {
			if coerced, err := schema.Coerce(a.Type, v); err == nil {
				out[name] = coerced
				continue
			}
		}
		out[name] = v
	}
	return out
}

func (d *Dispatcher) fromColumnsAll(rows []map[string]any, nativeJSON bool) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = d.fromColumns(row, nativeJSON)
	}
	return out
}

// constraintAttr fills the logical attribute name into constraint
// errors reported with a storage column.
func (d *Dispatcher) constraintAttr(err error) error {
	var ce *ConstraintError
	if errors.As(err, &ce) && ce.Attr == "" && ce.Column != "" {
		if name, ok := d.s.LogicalOf(ce.Column); ok {
			ce.Attr = name
		}
	}
	return err
}
