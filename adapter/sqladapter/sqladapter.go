// Package sqladapter provides a database/sql-backed adapter targeting
// SQLite (modernc.org/sqlite), with DDL derived from the compiled
// schema.
//
// Textual comparisons use SQLite's NOCASE collation, which makes the
// contractual case-insensitive string equality native here; indexes on
// textual columns are created with the same collation so they remain
// usable for those comparisons. Array and json attributes are stored as
// TEXT; the dispatcher stringifies them before they arrive.
package sqladapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/syssam/strata/adapter"
	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
)

// Adapter is a SQL storage engine over a *sql.DB.
type Adapter struct {
	db *sql.DB

	mu      sync.RWMutex
	schemas map[string]*schema.Schema
}

// Open opens a database/sql connection with the given driver and DSN
// and wraps it. For the bundled driver use
//
//	sqladapter.Open("sqlite", "file:app.db")
func Open(driverName, dsn string) (*Adapter, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	return OpenDB(db), nil
}

// OpenDB wraps an existing *sql.DB.
func OpenDB(db *sql.DB) *Adapter {
	return &Adapter{db: db, schemas: make(map[string]*schema.Schema)}
}

// DB returns the underlying *sql.DB.
func (a *Adapter) DB() *sql.DB { return a.db }

// Close closes the underlying connection pool.
func (a *Adapter) Close() error { return a.db.Close() }

// Capabilities implements adapter.Adapter.
func (a *Adapter) Capabilities() adapter.CapabilitySet {
	return adapter.Caps(
		adapter.Insert, adapter.Update, adapter.Delete, adapter.Find,
		adapter.DefineSchema, adapter.AddIndex,
	)
}

// columnType maps a semantic type to its SQLite column affinity.
func columnType(t schema.Type) string {
	switch t {
	case schema.TypeInteger, schema.TypeBoolean:
		return "INTEGER"
	case schema.TypeFloat:
		return "REAL"
	case schema.TypeBinary:
		return "BLOB"
	default:
		// Strings, temporals (RFC 3339), and stringified array/json.
		return "TEXT"
	}
}

// DefineSchema creates the table if it does not exist and retains the
// schema for value conversion on reads.
func (a *Adapter) DefineSchema(ctx context.Context, table string, s *schema.Schema) error {
	a.mu.Lock()
	a.schemas[table] = s
	a.mu.Unlock()

	var cols []string
	for _, attr := range s.Attributes() {
		if attr.Virtual() {
			continue
		}
		col := fmt.Sprintf("%q %s", attr.Column(), columnType(attr.Type))
		if attr.PrimaryKey {
			col += " PRIMARY KEY"
			if attr.AutoIncrement {
				col += " AUTOINCREMENT"
			}
		} else if attr.Unique {
			col += " UNIQUE"
			if attr.Type.Textual() {
				col += " COLLATE NOCASE"
			}
		}
		cols = append(cols, col)
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", table, strings.Join(cols, ", "))
	_, err := a.db.ExecContext(ctx, stmt)
	return err
}

// AddIndex creates a secondary index. Textual columns are indexed with
// the NOCASE collation so the index serves the case-insensitive
// comparisons this engine answers with.
func (a *Adapter) AddIndex(ctx context.Context, table, column string, unique bool) error {
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	expr := fmt.Sprintf("%q", column)
	if s := a.tableSchema(table); s != nil {
		if name, ok := s.LogicalOf(column); ok {
			if attr, ok := s.Attribute(name); ok && attr.Type.Textual() {
				expr += " COLLATE NOCASE"
			}
		}
	}
	stmt := fmt.Sprintf("CREATE %s IF NOT EXISTS %q ON %q (%s)",
		kind, fmt.Sprintf("idx_%s_%s", table, column), table, expr)
	_, err := a.db.ExecContext(ctx, stmt)
	return err
}

func (a *Adapter) tableSchema(table string) *schema.Schema {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.schemas[table]
}

// Insert implements adapter.Adapter.
func (a *Adapter) Insert(ctx context.Context, table string, record map[string]any) (map[string]any, error) {
	s := a.tableSchema(table)
	if s == nil {
		return nil, fmt.Errorf("sqladapter: table %q has no schema; define it first", table)
	}
	var cols []string
	var marks []string
	var args []any
	for _, attr := range s.Attributes() {
		if attr.Virtual() {
			continue
		}
		v, ok := record[attr.Column()]
		if !ok || v == nil {
			continue
		}
		cols = append(cols, fmt.Sprintf("%q", attr.Column()))
		marks = append(marks, "?")
		args = append(args, bindValue(v))
	}
	stmt := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	res, err := a.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, wrapConstraint(table, err)
	}
	out := copyRow(record)
	pk := s.PrimaryKey()
	if pk.AutoIncrement {
		if _, ok := out[pk.Column()]; !ok || out[pk.Column()] == nil {
			id, err := res.LastInsertId()
			if err == nil {
				out[pk.Column()] = id
			}
		}
	}
	return out, nil
}

// Update implements adapter.Adapter. Matching keys are resolved first
// so the updated rows can be returned even when the predicate touches
// changed columns.
func (a *Adapter) Update(ctx context.Context, table string, q *criteria.Query, changes map[string]any) ([]map[string]any, error) {
	s := a.tableSchema(table)
	if s == nil {
		return nil, fmt.Errorf("sqladapter: table %q has no schema; define it first", table)
	}
	pkCol := s.PrimaryKey().Column()
	keys, err := a.matchingKeys(ctx, table, pkCol, q)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	var sets []string
	var args []any
	for _, col := range sortedKeys(changes) {
		sets = append(sets, fmt.Sprintf("%q = ?", col))
		args = append(args, bindValue(changes[col]))
	}
	stmt := fmt.Sprintf("UPDATE %q SET %s WHERE %q IN (%s)",
		table, strings.Join(sets, ", "), pkCol, placeholders(len(keys)))
	args = append(args, keys...)
	if _, err := a.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, wrapConstraint(table, err)
	}
	return a.rowsByKey(ctx, table, pkCol, keys)
}

// Delete implements adapter.Adapter.
func (a *Adapter) Delete(ctx context.Context, table string, q *criteria.Query) ([]map[string]any, error) {
	s := a.tableSchema(table)
	if s == nil {
		return nil, fmt.Errorf("sqladapter: table %q has no schema; define it first", table)
	}
	pkCol := s.PrimaryKey().Column()
	keys, err := a.matchingKeys(ctx, table, pkCol, q)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	removed, err := a.rowsByKey(ctx, table, pkCol, keys)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("DELETE FROM %q WHERE %q IN (%s)", table, pkCol, placeholders(len(keys)))
	if _, err := a.db.ExecContext(ctx, stmt, keys...); err != nil {
		return nil, err
	}
	return removed, nil
}

// Find implements adapter.Adapter.
func (a *Adapter) Find(ctx context.Context, table string, q *criteria.Query) ([]map[string]any, error) {
	s := a.tableSchema(table)
	if s == nil {
		return nil, fmt.Errorf("sqladapter: table %q has no schema; define it first", table)
	}
	projection := "*"
	if len(q.Columns) > 0 {
		quoted := make([]string, len(q.Columns))
		for i, col := range q.Columns {
			quoted[i] = fmt.Sprintf("%q", col)
		}
		projection = strings.Join(quoted, ", ")
	}
	stmt := fmt.Sprintf("SELECT %s FROM %q", projection, table)
	where, args := buildWhere(q)
	if where != "" {
		stmt += " WHERE " + where
	}
	if len(q.Sort) > 0 {
		var keys []string
		for _, k := range q.Sort {
			dir := "ASC"
			if k.Desc {
				dir = "DESC"
			}
			expr := fmt.Sprintf("%q", k.Column)
			if k.Type.Textual() {
				expr += " COLLATE NOCASE"
			}
			keys = append(keys, expr+" "+dir)
		}
		stmt += " ORDER BY " + strings.Join(keys, ", ")
	}
	switch {
	case q.Limit > 0 && q.Skip > 0:
		stmt += fmt.Sprintf(" LIMIT %d OFFSET %d", q.Limit, q.Skip)
	case q.Limit > 0:
		stmt += fmt.Sprintf(" LIMIT %d", q.Limit)
	case q.Skip > 0:
		stmt += fmt.Sprintf(" LIMIT -1 OFFSET %d", q.Skip)
	}
	rows, err := a.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows, s)
}

func (a *Adapter) matchingKeys(ctx context.Context, table, pkCol string, q *criteria.Query) ([]any, error) {
	stmt := fmt.Sprintf("SELECT %q FROM %q", pkCol, table)
	where, args := buildWhere(q)
	if where != "" {
		stmt += " WHERE " + where
	}
	rows, err := a.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []any
	for rows.Next() {
		var k any
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (a *Adapter) rowsByKey(ctx context.Context, table, pkCol string, keys []any) ([]map[string]any, error) {
	stmt := fmt.Sprintf("SELECT * FROM %q WHERE %q IN (%s) ORDER BY %q",
		table, pkCol, placeholders(len(keys)), pkCol)
	rows, err := a.db.QueryContext(ctx, stmt, keys...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows, a.tableSchema(table))
}
