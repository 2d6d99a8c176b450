package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Temporal layouts accepted when coercing declaration or wire input into
// time.Time values. RFC 3339 is canonical; the remaining layouts cover
// date-only and clock-only attributes.
var timeLayouts = map[Type][]string{
	TypeDate:     {"2006-01-02", time.RFC3339},
	TypeTime:     {"15:04:05", "15:04", time.RFC3339},
	TypeDateTime: {time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"},
}

// Coerce converts v into the representation the given type expects.
// It runs before validation, so rules and custom validators always see
// the coerced value. A value that cannot be represented in t returns an
// error; nil passes through untouched.
func Coerce(t Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeString, TypeText:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		case fmt.Stringer:
			return s.String(), nil
		}
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
			return fmt.Sprintf("%v", v), nil
		}
		return nil, fmt.Errorf("cannot coerce %T to %s", v, t)
	case TypeInteger:
		return coerceInt(v)
	case TypeFloat:
		return coerceFloat(v)
	case TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(strings.ToLower(b))
			if err != nil {
				return nil, fmt.Errorf("cannot coerce %q to boolean", b)
			}
			return parsed, nil
		}
		if n, err := coerceInt(v); err == nil && (n == 0 || n == 1) {
			return n == 1, nil
		}
		return nil, fmt.Errorf("cannot coerce %T to boolean", v)
	case TypeDate, TypeTime, TypeDateTime:
		return coerceTime(t, v)
	case TypeBinary:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
		return nil, fmt.Errorf("cannot coerce %T to binary", v)
	case TypeArray:
		switch a := v.(type) {
		case []any:
			return a, nil
		case []string:
			out := make([]any, len(a))
			for i, e := range a {
				out[i] = e
			}
			return out, nil
		}
		return nil, fmt.Errorf("cannot coerce %T to array", v)
	case TypeJSON:
		// Arbitrary nested structure; anything goes.
		return v, nil
	default:
		return nil, fmt.Errorf("cannot coerce to %s", t)
	}
}

func coerceInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), nil
		}
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), nil
		}
	case float32:
		if n == float32(int64(n)) {
			return int64(n), nil
		}
	case float64:
		if n == float64(int64(n)) {
			return int64(n), nil
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err == nil {
			return parsed, nil
		}
	}
	return 0, fmt.Errorf("cannot coerce %T(%v) to integer", v, v)
}

func coerceFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err == nil {
			return parsed, nil
		}
		return 0, fmt.Errorf("cannot coerce %q to float", n)
	}
	if i, err := coerceInt(v); err == nil {
		return float64(i), nil
	}
	return 0, fmt.Errorf("cannot coerce %T to float", v)
}

func coerceTime(t Type, v any) (time.Time, error) {
	switch tv := v.(type) {
	case time.Time:
		return tv, nil
	case string:
		for _, layout := range timeLayouts[t] {
			if parsed, err := time.Parse(layout, tv); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot coerce %q to %s", tv, t)
	case int64:
		return time.Unix(tv, 0).UTC(), nil
	case int:
		return time.Unix(int64(tv), 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("cannot coerce %T to %s", v, t)
}
