// Package memory provides the in-memory reference adapter.
//
// It serves the full capability set with native json support and is the
// default engine for tests and examples. Uniqueness is enforced per
// unique column with the module's case-insensitive textual equality.
//
// Index requests on string attributes are downgraded, not served:
// string equality is case-insensitive by contract, and a byte-exact
// index cannot answer it. The downgrade is recorded and observable via
// [Adapter.Downgraded]; it is a documented limitation, not a defect.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/syssam/strata/adapter"
	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
)

// Adapter is a map-backed storage engine. The zero value is not usable;
// construct with New.
type Adapter struct {
	mu     sync.RWMutex
	tables map[string]*table
}

type table struct {
	rows       []map[string]any
	seq        map[string]int64
	types      map[string]schema.Type
	unique     map[string]schema.Type
	autoinc    []string
	downgraded []string
}

// New returns an empty in-memory adapter.
func New() *Adapter {
	return &Adapter{tables: make(map[string]*table)}
}

// Capabilities implements adapter.Adapter.
func (a *Adapter) Capabilities() adapter.CapabilitySet {
	return adapter.Caps(
		adapter.Insert, adapter.Update, adapter.Delete, adapter.Find,
		adapter.DefineSchema, adapter.AddIndex, adapter.NativeJSON,
	)
}

// DefineSchema registers the table and records its unique and
// auto-increment columns. Calling it again for the same table is a
// no-op; rows are preserved.
func (a *Adapter) DefineSchema(_ context.Context, name string, s *schema.Schema) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.ensureTable(name)
	for _, attr := range s.Attributes() {
		if attr.Virtual() {
			continue
		}
		t.types[attr.Column()] = attr.Type
		if attr.Unique {
			t.unique[attr.Column()] = attr.Type
		}
		if attr.AutoIncrement {
			t.autoinc = append(t.autoinc, attr.Column())
		}
	}
	return nil
}

// AddIndex accepts index requests. All queries scan in this engine, so
// non-string indexes are a no-op; string indexes are downgraded and
// recorded (see the package comment).
func (a *Adapter) AddIndex(_ context.Context, name, column string, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.ensureTable(name)
	if t.types[column].Textual() {
		t.downgraded = append(t.downgraded, column)
	}
	return nil
}

// Downgraded returns the columns whose index requests were downgraded.
func (a *Adapter) Downgraded(name string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if t, ok := a.tables[name]; ok {
		return append([]string(nil), t.downgraded...)
	}
	return nil
}

// Insert implements adapter.Adapter. Auto-increment columns are filled
// from a per-table counter; unique columns are checked against every
// stored row before the write.
func (a *Adapter) Insert(_ context.Context, name string, record map[string]any) (map[string]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.ensureTable(name)
	row := copyRow(record)
	for _, col := range t.autoinc {
		if v, ok := row[col]; !ok || v == nil {
			t.seq[col]++
			row[col] = t.seq[col]
		} else if n, isInt := v.(int64); isInt && n > t.seq[col] {
			t.seq[col] = n
		}
	}
	if err := t.checkUnique(name, row, -1); err != nil {
		return nil, err
	}
	t.rows = append(t.rows, row)
	return copyRow(row), nil
}

// Update implements adapter.Adapter.
func (a *Adapter) Update(_ context.Context, name string, q *criteria.Query, changes map[string]any) ([]map[string]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.ensureTable(name)
	var out []map[string]any
	for i, row := range t.rows {
		if !adapter.Match(q, row) {
			continue
		}
		next := copyRow(row)
		for col, v := range changes {
			next[col] = v
		}
		if err := t.checkUnique(name, next, i); err != nil {
			return nil, err
		}
		t.rows[i] = next
		out = append(out, copyRow(next))
	}
	return out, nil
}

// Delete implements adapter.Adapter.
func (a *Adapter) Delete(_ context.Context, name string, q *criteria.Query) ([]map[string]any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.ensureTable(name)
	var kept []map[string]any
	var removed []map[string]any
	for _, row := range t.rows {
		if adapter.Match(q, row) {
			removed = append(removed, copyRow(row))
			continue
		}
		kept = append(kept, row)
	}
	t.rows = kept
	return removed, nil
}

// Find implements adapter.Adapter.
func (a *Adapter) Find(_ context.Context, name string, q *criteria.Query) ([]map[string]any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.tables[name]
	if !ok {
		return nil, nil
	}
	var out []map[string]any
	for _, row := range t.rows {
		if adapter.Match(q, row) {
			out = append(out, copyRow(row))
		}
	}
	adapter.SortRows(out, q.Sort)
	out = adapter.Window(out, q.Skip, q.Limit)
	return adapter.Project(out, q.Columns), nil
}

// Methods implements adapter.Caller.
func (a *Adapter) Methods() []string { return []string{"truncate", "count"} }

// Call implements adapter.Caller. "truncate" drops every row of the
// table; "count" returns the stored row count.
func (a *Adapter) Call(_ context.Context, method, name string, _ ...any) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch method {
	case "truncate":
		if t, ok := a.tables[name]; ok {
			t.rows = nil
		}
		return nil, nil
	case "count":
		if t, ok := a.tables[name]; ok {
			return len(t.rows), nil
		}
		return 0, nil
	default:
		return nil, fmt.Errorf("memory: unknown method %q", method)
	}
}

// ensureTable must be called with the write lock held.
func (a *Adapter) ensureTable(name string) *table {
	t, ok := a.tables[name]
	if !ok {
		t = &table{
			seq:    make(map[string]int64),
			types:  make(map[string]schema.Type),
			unique: make(map[string]schema.Type),
		}
		a.tables[name] = t
	}
	return t
}

// checkUnique scans stored rows for a unique-column collision with row,
// skipping the row at index self (for updates).
func (t *table) checkUnique(name string, row map[string]any, self int) error {
	for col, typ := range t.unique {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		for i, stored := range t.rows {
			if i == self {
				continue
			}
			q := &criteria.Query{Conditions: []criteria.Condition{{Column: col, Op: criteria.OpEq, Value: v, Type: typ}}}
			if adapter.Match(q, stored) {
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
