package adapter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/syssam/strata/criteria"
	"github.com/syssam/strata/schema"
)

// Match reports whether a storage row satisfies the query's predicate.
// It is the reference matcher for in-memory engines: textual equality
// and the substring operators are case-insensitive, per the criteria
// contract.
func Match(q *criteria.Query, row map[string]any) bool {
	for _, c := range q.Conditions {
		if !matchCondition(c, row) {
			return false
		}
	}
	if len(q.Or) == 0 {
		return true
	}
	for _, branch := range q.Or {
		ok := true
		for _, c := range branch {
			if !matchCondition(c, row) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func matchCondition(c criteria.Condition, row map[string]any) bool {
	v, present := row[c.Column]
	switch c.Op {
	case criteria.OpEq:
		if c.Value == nil {
			return !present || v == nil
		}
		return equalValues(c.Type, v, c.Value)
	case criteria.OpNe:
		if c.Value == nil {
			return present && v != nil
		}
		return !equalValues(c.Type, v, c.Value)
	case criteria.OpIn, criteria.OpNotIn:
		list, _ := c.Value.([]any)
		found := false
		for _, e := range list {
			if equalValues(c.Type, v, e) {
				found = true
				break
			}
		}
		if c.Op == criteria.OpIn {
			return found
		}
		return !found
	case criteria.OpLt, criteria.OpLte, criteria.OpGt, criteria.OpGte:
		cmp, ok := compareValues(c.Type, v, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case criteria.OpLt:
			return cmp < 0
		case criteria.OpLte:
			return cmp <= 0
		case criteria.OpGt:
			return cmp > 0
		default:
			return cmp >= 0
		}
	case criteria.OpContains, criteria.OpStartsWith, criteria.OpEndsWith, criteria.OpLike:
		s, ok := v.(string)
		operand, ok2 := c.Value.(string)
		if !ok || !ok2 {
			return false
		}
		s, operand = strings.ToLower(s), strings.ToLower(operand)
		switch c.Op {
		case criteria.OpContains:
			return strings.Contains(s, operand)
		case criteria.OpStartsWith:
			return strings.HasPrefix(s, operand)
		case criteria.OpEndsWith:
			return strings.HasSuffix(s, operand)
		default:
			return matchLike(s, operand)
		}
	default:
		return false
	}
}

// matchLike evaluates a SQL-style pattern with % wildcards against an
// already lower-cased string.
func matchLike(s, pattern string) bool {
	parts := strings.Split(pattern, "%")
	if len(parts) == 1 {
		return s == pattern
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		i := strings.Index(s, part)
		if i < 0 {
			return false
		}
		s = s[i+len(part):]
	}
	return strings.HasSuffix(s, last)
}

// equalValues compares for equality under the attribute's semantic
// type. Textual equality folds case.
func equalValues(t schema.Type, a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if t.Textual() {
		as, aok := a.(string)
		bs, bok := b.(string)
		return aok && bok && strings.EqualFold(as, bs)
	}
	cmp, ok := compareValues(t, a, b)
	if ok {
		return cmp == 0
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// compareValues orders two values under the attribute's semantic type.
// The second return is false when the pair does not order.
func compareValues(t schema.Type, a, b any) (int, bool) {
	if t.Temporal() {
		at, aok := a.(time.Time)
		bt, bok := b.(time.Time)
		if !aok || !bok {
			return 0, false
		}
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		default:
			return 0, true
		}
	}
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(strings.ToLower(as), strings.ToLower(bs)), true
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		switch {
		case ab == bb:
			return 0, true
		case ab:
			return 1, true
		default:
			return -1, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// SortRows orders rows in place by the query's sort keys. Textual keys
// collate case-insensitively (Unicode collation, not byte order).
func SortRows(rows []map[string]any, keys []criteria.SortColumn) {
	if len(keys) == 0 {
		return
	}
	var coll *collate.Collator
	for _, k := range keys {
		if k.Type.Textual() {
			coll = collate.New(language.Und, collate.IgnoreCase)
			break
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			a, b := rows[i][k.Column], rows[j][k.Column]
			var cmp int
			if k.Type.Textual() && coll != nil {
				as, _ := a.(string)
				bs, _ := b.(string)
				cmp = coll.CompareString(as, bs)
			} else {
				var ordered bool
				cmp, ordered = compareValues(k.Type, a, b)
				if !ordered {
					continue
				}
			}
			if cmp == 0 {
				continue
			}
			if k.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// Window applies skip/limit pagination to rows.
func Window(rows []map[string]any, skip, limit int) []map[string]any {
	if skip > 0 {
		if skip >= len(rows) {
			return nil
		}
		rows = rows[skip:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// Project restricts each row to the query's projection columns.
// An empty projection returns rows unchanged.
func Project(rows []map[string]any, columns []string) []map[string]any {
	if len(columns) == 0 {
		return rows
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		p := make(map[string]any, len(columns))
		for _, col := range columns {
			if v, ok := row[col]; ok {
				p[col] = v
			}
		}
		out[i] = p
	}
	return out
}
