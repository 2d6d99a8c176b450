package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// A check evaluates one builtin rule: v is the (already coerced)
// candidate value, operand the rule's resolved comparison value.
type check func(v, operand any) bool

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// checks is the builtin rule table. "int" and "integer" are aliases of
// one kind check; no distinct semantics exist between them.
var checks = map[string]check{
	"equals":   func(v, o any) bool { return looseEqual(v, o) },
	"in":       inList,
	"notIn":    func(v, o any) bool { return !inList(v, o) },
	"min":      numericCmp(func(v, o float64) bool { return v >= o }),
	"max":      numericCmp(func(v, o float64) bool { return v <= o }),
	"greaterThan":        numericCmp(func(v, o float64) bool { return v > o }),
	"greaterThanOrEqual": numericCmp(func(v, o float64) bool { return v >= o }),
	"lessThan":           numericCmp(func(v, o float64) bool { return v < o }),
	"lessThanOrEqual":    numericCmp(func(v, o float64) bool { return v <= o }),
	"len":       lengthCmp(func(n, o int) bool { return n == o }),
	"minLength": lengthCmp(func(n, o int) bool { return n >= o }),
	"maxLength": lengthCmp(func(n, o int) bool { return n <= o }),
	"contains":    stringCmp(strings.Contains),
	"notContains": stringCmp(func(s, o string) bool { return !strings.Contains(s, o) }),
	"startsWith":  stringCmp(strings.HasPrefix),
	"endsWith":    stringCmp(strings.HasSuffix),
	"is":  matches(true),
	"not": matches(false),
	"lowercase": stringIs(func(s string) bool { return s == strings.ToLower(s) }),
	"uppercase": stringIs(func(s string) bool { return s == strings.ToUpper(s) }),
	"alpha": stringIs(func(s string) bool {
		return s != "" && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) }) < 0
	}),
	"alphanumeric": stringIs(func(s string) bool {
		return s != "" && strings.IndexFunc(s, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) < 0
	}),
	"numeric": stringIs(func(s string) bool {
		_, err := strconv.ParseFloat(s, 64)
		return err == nil
	}),
	"email": stringIs(func(s string) bool { return emailRe.MatchString(s) }),
	"url": stringIs(func(s string) bool {
		u, err := url.Parse(s)
		return err == nil && u.Scheme != "" && u.Host != ""
	}),
	"uuid": stringIs(func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil
	}),
	"integer": func(v, _ any) bool { return isInteger(v) },
	"int":     func(v, _ any) bool { return isInteger(v) },
	"float":   func(v, _ any) bool { _, ok := toFloat(v); return ok },
	"string":  func(v, _ any) bool { _, ok := v.(string); return ok },
	"boolean": func(v, _ any) bool { _, ok := v.(bool); return ok },
	"date": func(v, _ any) bool {
		switch t := v.(type) {
		case time.Time:
			return true
		case string:
			_, err := time.Parse(time.RFC3339, t)
			if err != nil {
				_, err = time.Parse("2006-01-02", t)
			}
			return err == nil
		default:
			return false
		}
	},
}

// Known reports whether name is a builtin rule. The compiler consults it
// so an unknown rule name fails model registration rather than silently
// passing at runtime.
func Known(name string) bool {
	_, ok := checks[name]
	return ok
}

func numericCmp(cmp func(v, o float64) bool) check {
	return func(v, o any) bool {
		vf, ok := toFloat(v)
		if !ok {
			return false
		}
		of, ok := toFloat(o)
		if !ok {
			return false
		}
		return cmp(vf, of)
	}
}

func lengthCmp(cmp func(n, o int) bool) check {
	return func(v, o any) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		of, ok := toFloat(o)
		if !ok {
			return false
		}
		return cmp(len([]rune(s)), int(of))
	}
}

func stringCmp(cmp func(s, operand string) bool) check {
	return func(v, o any) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		os, ok := o.(string)
		if !ok {
			return false
		}
		return cmp(s, os)
	}
}

func stringIs(pred func(s string) bool) check {
	return func(v, _ any) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		return pred(s)
	}
}

// matches evaluates the regexp rules. The operand is either a compiled
// *regexp.Regexp or a pattern string.
func matches(want bool) check {
	return func(v, o any) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		var re *regexp.Regexp
		switch p := o.(type) {
		case *regexp.Regexp:
			re = p
		case string:
			var err error
			re, err = regexp.Compile(p)
			if err != nil {
				return false
			}
		default:
			return false
		}
		return re.MatchString(s) == want
	}
}

func inList(v, o any) bool {
	list, ok := o.([]any)
	if !ok {
		return false
	}
	for _, e := range list {
		if looseEqual(v, e) {
			return true
		}
	}
	return false
}

// looseEqual compares values with numeric widening so int64(3) equals
// 3 and 3.0. Non-numeric values compare by formatted equality.
func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	if a == b {
		return true
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func isInteger(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return n == float64(int64(n))
	case float32:
		return n == float32(int64(n))
	case string:
		_, err := strconv.ParseInt(n, 10, 64)
		return err == nil
	default:
		return false
	}
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
	case time.Time:
		return float64(n.UnixNano()), true
	default:
		return 0, false
	}
}
