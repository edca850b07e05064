package query

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueKind identifies which variant a Value holds.
type ValueKind uint8

// Value kinds. The zero Value is KindNull.
const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// Value is an immutable scalar bound to a placeholder. It is never rendered
// into SQL text.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
}

// Null returns the SQL NULL value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps a 64-bit signed integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a 64-bit float.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// ValueOf converts a Go value into a Value. It accepts nil, bool, every
// integer width, float32/64, string, fmt.Stringer (uuid.UUID, for instance)
// and Value itself.
func ValueOf(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return val, nil
	case *Value:
		if val == nil {
			return Null(), nil
		}
		return *val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(int64(val)), nil
	case int8:
		return Int(int64(val)), nil
	case int16:
		return Int(int64(val)), nil
	case int32:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case uint:
		return fromUint(uint64(val))
	case uint8:
		return Int(int64(val)), nil
	case uint16:
		return Int(int64(val)), nil
	case uint32:
		return Int(int64(val)), nil
	case uint64:
		return fromUint(val)
	case float32:
		return Float(float64(val)), nil
	case float64:
		return Float(val), nil
	case string:
		return String(val), nil
	case json.Number:
		return numberValue(val)
	case fmt.Stringer:
		return String(val.String()), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
}

// MustValueOf is like ValueOf but panics on unsupported types. It is meant
// for literals in tests and examples.
func MustValueOf(v any) Value {
	val, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return val
}

// ValuesOf converts every element with ValueOf.
func ValuesOf(vs ...any) ([]Value, error) {
	out := make([]Value, 0, len(vs))
	for _, v := range vs {
		val, err := ValueOf(v)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, fmt.Errorf("%w: %d overflows int64", ErrInvalidValue, u)
	}
	return Int(int64(u)), nil
}

func numberValue(n json.Number) (Value, error) {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return Int(i), nil
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return Value{}, fmt.Errorf("%w: malformed number %q", ErrInvalidValue, string(n))
	}
	return Float(f), nil
}

// Kind reports the variant held by v.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean and whether v holds one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer and whether v holds one.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the float and whether v holds one.
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }

// AsString returns the string and whether v holds one.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Interface returns the native Go value: nil, bool, int64, float64 or string.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	default:
		return nil
	}
}

// Value implements driver.Valuer so a Value can be passed straight to
// database/sql.
func (v Value) Value() (driver.Value, error) {
	return v.Interface(), nil
}

// Equal reports whether two values hold the same variant and payload.
func (v Value) Equal(other Value) bool {
	return v == other
}

// String renders v for logs and error messages. It is never used to build SQL.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	default:
		return "NULL"
	}
}

// MarshalJSON encodes v as its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindFloat && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
		return nil, fmt.Errorf("%w: %v cannot be encoded as JSON", ErrInvalidValue, v.f)
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes a JSON scalar. Numbers without a fraction or exponent
// that fit in int64 become Int, other numbers become Float. Arrays and objects
// are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch raw.(type) {
	case map[string]any, []any:
		return fmt.Errorf("%w: expected a JSON scalar, got %s", ErrInvalidValue, bytes.TrimSpace(data))
	}
	val, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}
