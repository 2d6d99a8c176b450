// Package kv provides a key-value adapter: records are msgpack-encoded
// blobs keyed by table and primary key over a pluggable [Store].
//
// The engine has no native json support, so array and json attributes
// arrive pre-stringified from the dispatcher. Finds are scans: every
// record under the table prefix is decoded and filtered through the
// shared matcher. Uniqueness is enforced by scanning, which makes it
// O(n) per write; the adapter targets small and mid-sized collections.
package kv

import (
	"context"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/strata/adapter"
	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
)

// Adapter is a kv-backed storage engine.
type Adapter struct {
	store Store

	mu     sync.Mutex
	tables map[string]*tableMeta
}

type tableMeta struct {
	pk     string
	seq    int64
	pkAuto bool
	unique map[string]schema.Type
}

// New returns an adapter running on the given store.
func New(store Store) *Adapter {
	return &Adapter{store: store, tables: make(map[string]*tableMeta)}
}

// Capabilities implements adapter.Adapter. Note the absence of native
// json support.
func (a *Adapter) Capabilities() adapter.CapabilitySet {
	return adapter.Caps(
		adapter.Insert, adapter.Update, adapter.Delete, adapter.Find,
		adapter.DefineSchema,
	)
}

// DefineSchema records the table's primary key and unique columns.
func (a *Adapter) DefineSchema(_ context.Context, name string, s *schema.Schema) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	meta, ok := a.tables[name]
	if !ok {
		meta = &tableMeta{unique: make(map[string]schema.Type)}
		a.tables[name] = meta
	}
	pk := s.PrimaryKey()
	meta.pk = pk.Column()
	meta.pkAuto = pk.AutoIncrement
	for _, attr := range s.Attributes() {
		if attr.Virtual() || !attr.Unique {
			continue
		}
		meta.unique[attr.Column()] = attr.Type
	}
	return nil
}

func (a *Adapter) meta(name string) (*tableMeta, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	meta, ok := a.tables[name]
	if !ok {
		return nil, fmt.Errorf("kv: table %q has no schema; define it first", name)
	}
	return meta, nil
}

func key(table string, pk any) string {
	return fmt.Sprintf("%s/%v", table, pk)
}

// Insert implements adapter.Adapter.
func (a *Adapter) Insert(ctx context.Context, name string, record map[string]any) (map[string]any, error) {
	meta, err := a.meta(name)
	if err != nil {
		return nil, err
	}
	row := copyRow(record)
	if v, ok := row[meta.pk]; !ok || v == nil {
		if !meta.pkAuto {
			return nil, fmt.Errorf("kv: table %q: missing primary key %q", name, meta.pk)
		}
		a.mu.Lock()
		meta.seq++
		row[meta.pk] = meta.seq
		a.mu.Unlock()
	}
	k := key(name, row[meta.pk])
	if _, err := a.store.Get(ctx, k); err == nil {
		return nil, adapter.NewConstraintError(name, meta.pk, fmt.Sprintf("duplicate key %v", row[meta.pk]), nil)
	}
	if err := a.checkUnique(ctx, name, meta, row, ""); err != nil {
		return nil, err
	}
	encoded, err := msgpack.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("kv: encode: %w", err)
	}
	if err := a.store.Put(ctx, k, encoded); err != nil {
		return nil, err
	}
	return row, nil
}

// Update implements adapter.Adapter.
func (a *Adapter) Update(ctx context.Context, name string, q *criteria.Query, changes map[string]any) ([]map[string]any, error) {
	meta, err := a.meta(name)
	if err != nil {
		return nil, err
	}
	rows, keys, err := a.scan(ctx, name, q)
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for i, row := range rows {
		next := copyRow(row)
		for col, v := range changes {
			next[col] = v
		}
		if err := a.checkUnique(ctx, name, meta, next, keys[i]); err != nil {
			return nil, err
		}
		encoded, err := msgpack.Marshal(next)
		if err != nil {
			return nil, fmt.Errorf("kv: encode: %w", err)
		}
		if err := a.store.Put(ctx, keys[i], encoded); err != nil {
			return nil, err
		}
		out = append(out, next)
	}
	return out, nil
}

// Delete implements adapter.Adapter.
func (a *Adapter) Delete(ctx context.Context, name string, q *criteria.Query) ([]map[string]any, error) {
	rows, keys, err := a.scan(ctx, name, q)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if err := a.store.Delete(ctx, k); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// Find implements adapter.Adapter.
func (a *Adapter) Find(ctx context.Context, name string, q *criteria.Query) ([]map[string]any, error) {
	rows, _, err := a.scan(ctx, name, q)
	if err != nil {
		return nil, err
	}
	adapter.SortRows(rows, q.Sort)
	rows = adapter.Window(rows, q.Skip, q.Limit)
	return adapter.Project(rows, q.Columns), nil
}

// Methods implements adapter.Caller.
func (a *Adapter) Methods() []string { return []string{"truncate", "keys"} }

// Call implements adapter.Caller. "truncate" removes every record under
// the table prefix; "keys" returns the stored keys.
func (a *Adapter) Call(ctx context.Context, method, name string, _ ...any) (any, error) {
	switch method {
	case "truncate":
		keys, err := a.store.Keys(ctx, name+"/")
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if err := a.store.Delete(ctx, k); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case "keys":
		return a.store.Keys(ctx, name+"/")
	default:
		return nil, fmt.Errorf("kv: unknown method %q", method)
	}
}

// scan decodes every record under the table prefix and returns those
// matching q together with their keys.
func (a *Adapter) scan(ctx context.Context, name string, q *criteria.Query) ([]map[string]any, []string, error) {
	keys, err := a.store.Keys(ctx, name+"/")
	if err != nil {
		return nil, nil, err
	}
	var rows []map[string]any
	var matched []string
	for _, k := range keys {
		encoded, err := a.store.Get(ctx, k)
		if err != nil {
			return nil, nil, err
		}
		var row map[string]any
		if err := msgpack.Unmarshal(encoded, &row); err != nil {
			return nil, nil, fmt.Errorf("kv: decode %s: %w", k, err)
		}
		if q == nil || adapter.Match(q, row) {
			rows = append(rows, row)
			matched = append(matched, k)
		}
	}
	return rows, matched, nil
}

func (a *Adapter) checkUnique(ctx context.Context, name string, meta *tableMeta, row map[string]any, selfKey string) error {
	for col, typ := range meta.unique {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		q := &criteria.Query{Conditions: []criteria.Condition{{Column: col, Op: criteria.OpEq, Value: v, Type: typ}}}
		rows, keys, err := a.scan(ctx, name, q)
		if err != nil {
			return err
		}
		for i := range rows {
			if keys[i] != selfKey {
				return adapter.NewConstraintError(name, col, fmt.Sprintf("duplicate value %v", v), nil)
			}
		}
	}
	return nil
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
