package sqladapter

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/syssam/strata/adapter"
	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
)

// buildWhere renders a query's predicate as a parameterized SQL clause.
func buildWhere(q *criteria.Query) (string, []any) {
	if q == nil {
		return "", nil
	}
	var parts []string
	var args []any
	for _, c := range q.Conditions {
		expr, condArgs := condExpr(c)
		parts = append(parts, expr)
		args = append(args, condArgs...)
	}
	if len(q.Or) > 0 {
		var branches []string
		for _, branch := range q.Or {
			var bparts []string
			for _, c := range branch {
				expr, condArgs := condExpr(c)
				bparts = append(bparts, expr)
				args = append(args, condArgs...)
			}
			branches = append(branches, "("+strings.Join(bparts, " AND ")+")")
		}
		parts = append(parts, "("+strings.Join(branches, " OR ")+")")
	}
	return strings.Join(parts, " AND "), args
}

func condExpr(c criteria.Condition) (string, []any) {
	col := fmt.Sprintf("%q", c.Column)
	if c.Type.Textual() {
		col += " COLLATE NOCASE"
	}
	switch c.Op {
	case criteria.OpEq:
		if c.Value == nil {
			return fmt.Sprintf("%q IS NULL", c.Column), nil
		}
		return col + " = ?", []any{bindValue(c.Value)}
	case criteria.OpNe:
		if c.Value == nil {
			return fmt.Sprintf("%q IS NOT NULL", c.Column), nil
		}
		return col + " <> ?", []any{bindValue(c.Value)}
	case criteria.OpLt:
		return col + " < ?", []any{bindValue(c.Value)}
	case criteria.OpLte:
		return col + " <= ?", []any{bindValue(c.Value)}
	case criteria.OpGt:
		return col + " > ?", []any{bindValue(c.Value)}
	case criteria.OpGte:
		return col + " >= ?", []any{bindValue(c.Value)}
	case criteria.OpIn, criteria.OpNotIn:
		list, _ := c.Value.([]any)
		if len(list) == 0 {
			if c.Op == criteria.OpIn {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		args := make([]any, len(list))
		for i, e := range list {
			args[i] = bindValue(e)
		}
		kw := "IN"
		if c.Op == criteria.OpNotIn {
			kw = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, kw, placeholders(len(list))), args
	case criteria.OpContains:
		return fmt.Sprintf("%q LIKE ? ESCAPE '\\'", c.Column), []any{"%" + escapeLike(c.Value) + "%"}
	case criteria.OpStartsWith:
		return fmt.Sprintf("%q LIKE ? ESCAPE '\\'", c.Column), []any{escapeLike(c.Value) + "%"}
	case criteria.OpEndsWith:
		return fmt.Sprintf("%q LIKE ? ESCAPE '\\'", c.Column), []any{"%" + escapeLike(c.Value)}
	case criteria.OpLike:
		return fmt.Sprintf("%q LIKE ?", c.Column), []any{c.Value}
	default:
		return "1 = 0", nil
	}
}

// escapeLike escapes LIKE metacharacters in a literal operand.
func escapeLike(v any) string {
	s, _ := v.(string)
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// bindValue converts a coerced attribute value into a driver-friendly
// bind parameter. Temporals travel as RFC 3339 text, booleans as 0/1.
func bindValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	case []any, map[string]any:
		// Stringified upstream by the dispatcher; reaching here means
		// the value bypassed it. Render stably rather than failing.
		return fmt.Sprintf("%v", t)
	default:
		return v
	}
}

// scanRows reads every row into column-keyed maps, converting driver
// values with the table schema when one is known.
func scanRows(rows *sql.Rows, s *schema.Schema) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = fromDriver(col, values[i], s)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// fromDriver normalizes a scanned value toward the column's semantic
// type. The dispatcher finishes the conversion; this only undoes
// driver-level representations such as []byte for TEXT.
func fromDriver(col string, v any, s *schema.Schema) any {
	if v == nil {
		return nil
	}
	var t schema.Type
	if s != nil {
		if name, ok := s.LogicalOf(col); ok {
			if attr, ok := s.Attribute(name); ok {
				t = attr.Type
			}
		}
	}
	if b, isBytes := v.([]byte); isBytes && t != schema.TypeBinary {
		return string(b)
	}
	if t == schema.TypeBoolean {
		if n, isInt := v.(int64); isInt {
			return n != 0
		}
	}
	return v
}

// wrapConstraint detects engine-reported constraint violations and
// surfaces them as adapter constraint errors. SQLite reports unique
// violations as "UNIQUE constraint failed: table.column".
func wrapConstraint(table string, err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	if !strings.Contains(lower, "unique") && !strings.Contains(lower, "constraint") {
		return err
	}
	column := ""
	if i := strings.Index(msg, "constraint failed: "); i >= 0 {
		ref := strings.TrimSpace(msg[i+len("constraint failed: "):])
		if j := strings.IndexByte(ref, '.'); j >= 0 {
			ref = ref[j+1:]
		}
		column = strings.Split(ref, " ")[0]
	}
	return adapter.NewConstraintError(table, column, "storage rejected write", err)
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
