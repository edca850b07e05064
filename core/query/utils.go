package query

import (
	"cmp"
	"fmt"
	"strconv"
)

// ToFloat64 is a utility function that converts a value of various numeric types
// to a float64. It returns the converted float64 and a boolean indicating whether
// the conversion was successful.
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case Value:
		switch val.Kind() {
		case KindInt:
			return float64(val.i), true
		case KindFloat:
			return val.f, true
		case KindBool:
			if val.b {
				return 1, true
			}
			return 0, true
		}
		return 0, false
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// CompareValues orders two non-null values the way SQLite orders mixed
// storage classes: numbers (booleans count as 0/1) before text, numbers by
// value and text bytewise. Integers are compared exactly.
func CompareValues(a, b Value) (int, error) {
	if a.IsNull() || b.IsNull() {
		return 0, fmt.Errorf("%w: NULL has no ordering", ErrInvalidValue)
	}
	aText, bText := a.Kind() == KindString, b.Kind() == KindString
	switch {
	case aText && bText:
		return cmp.Compare(a.s, b.s), nil
	case aText:
		return 1, nil
	case bText:
		return -1, nil
	}
	if ai, ok := integral(a); ok {
		if bi, ok := integral(b); ok {
			return cmp.Compare(ai, bi), nil
		}
	}
	af, _ := ToFloat64(a)
	bf, _ := ToFloat64(b)
	return cmp.Compare(af, bf), nil
}

func integral(v Value) (int64, bool) {
	switch v.Kind() {
	case KindInt:
		return v.i, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// textOf renders v as the text SQL would compare it as in LIKE and regex
// matches.
func (v Value) textOf() string {
	switch v.Kind() {
	case KindString:
		return v.s
	case KindBool:
		if v.b {
			return "1"
		}
		return "0"
	case KindNull:
		return ""
	default:
		return v.String()
	}
}
