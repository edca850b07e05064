package query

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/asaidimu/go-sqlgate/core/validate"
)

const (
	// MaxCursorSize bounds the length of an encoded cursor token.
	MaxCursorSize = 4096
	// MaxCursorFields bounds the number of fields a cursor may carry.
	MaxCursorFields = 16
)

// tokenEncoding rejects non-zero padding bits so that every token has exactly
// one valid spelling.
var tokenEncoding = base64.RawURLEncoding.Strict()

// CursorDirection selects which side of the cursor a keyset scan resumes on.
type CursorDirection int

const (
	// CursorAfter selects rows strictly after the cursor in sort order.
	CursorAfter CursorDirection = iota
	// CursorBefore selects rows strictly before the cursor in sort order.
	CursorBefore
)

func (d CursorDirection) String() string {
	if d == CursorBefore {
		return "before"
	}
	return "after"
}

// CursorField is one sort key captured in a cursor.
type CursorField struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Cursor is the ordered set of sort-key values of the last row of a page.
type Cursor struct {
	Fields []CursorField `json:"fields"`
}

// NewCursor returns an empty cursor.
func NewCursor() Cursor {
	return Cursor{}
}

// With returns a copy of c with name set to v, replacing an existing entry.
func (c Cursor) With(name string, v Value) Cursor {
	out := c.clone()
	for i := range out.Fields {
		if out.Fields[i].Name == name {
			out.Fields[i].Value = v
			return out
		}
	}
	out.Fields = append(out.Fields, CursorField{Name: name, Value: v})
	return out
}

// Get returns the value stored under name.
func (c Cursor) Get(name string) (Value, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Len returns the number of fields.
func (c Cursor) Len() int {
	return len(c.Fields)
}

func (c Cursor) clone() Cursor {
	fields := make([]CursorField, len(c.Fields))
	copy(fields, c.Fields)
	return Cursor{Fields: fields}
}

// CursorFromRow projects row onto the sort keys, in sort order.
func CursorFromRow(row map[string]Value, sorts []SortField) (Cursor, error) {
	if len(sorts) == 0 {
		return Cursor{}, fmt.Errorf("%w: no sort fields to capture", ErrInvalidCursor)
	}
	c := Cursor{Fields: make([]CursorField, 0, len(sorts))}
	for _, s := range sorts {
		v, ok := row[s.Field]
		if !ok {
			return Cursor{}, fmt.Errorf("%w: row has no value for sort field %q", ErrInvalidCursor, s.Field)
		}
		c.Fields = append(c.Fields, CursorField{Name: s.Field, Value: v})
	}
	return c, nil
}

// CursorCodec turns cursors into opaque URL-safe tokens and back. Every token
// carries an HMAC-SHA256 tag over its payload. Without a secret the tag only
// detects corruption; with one it also detects forgery.
type CursorCodec struct {
	secret []byte
}

// NewCursorCodec returns a codec keyed with secret, which may be nil.
func NewCursorCodec(secret []byte) *CursorCodec {
	return &CursorCodec{secret: bytes.Clone(secret)}
}

// Signed reports whether the codec was built with a secret.
func (cc *CursorCodec) Signed() bool {
	return len(cc.secret) > 0
}

type wireField struct {
	Name  string          `json:"n"`
	Type  string          `json:"t"`
	Value json.RawMessage `json:"v,omitempty"`
}

type wireCursor struct {
	Fields []wireField `json:"f"`
}

// Encode serializes c. It fails for cursors that Decode would reject.
func (cc *CursorCodec) Encode(c Cursor) (string, error) {
	if len(c.Fields) == 0 || len(c.Fields) > MaxCursorFields {
		return "", fmt.Errorf("%w: cursor must carry 1-%d fields, got %d", ErrInvalidCursor, MaxCursorFields, len(c.Fields))
	}
	wire := wireCursor{Fields: make([]wireField, 0, len(c.Fields))}
	for _, f := range c.Fields {
		if !validate.IsValidIdentifier(f.Name) {
			return "", fmt.Errorf("%w: field name %q is not a valid identifier", ErrInvalidCursor, f.Name)
		}
		if str, ok := f.Value.AsString(); ok && !utf8.ValidString(str) {
			return "", fmt.Errorf("%w: value of %q is not valid UTF-8", ErrInvalidCursor, f.Name)
		}
		wf := wireField{Name: f.Name, Type: f.Value.Kind().String()}
		if !f.Value.IsNull() {
			raw, err := json.Marshal(f.Value)
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
			}
			wf.Value = raw
		}
		wire.Fields = append(wire.Fields, wf)
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	token := tokenEncoding.EncodeToString(payload) + "." + tokenEncoding.EncodeToString(cc.mac(payload))
	if len(token) > MaxCursorSize {
		return "", fmt.Errorf("%w: encoded cursor exceeds %d bytes", ErrInvalidCursor, MaxCursorSize)
	}
	return token, nil
}

// Decode parses a token produced by Encode with the same secret. Every
// failure wraps ErrInvalidCursor.
func (cc *CursorCodec) Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("%w: empty token", ErrInvalidCursor)
	}
	if len(token) > MaxCursorSize {
		return Cursor{}, fmt.Errorf("%w: token exceeds %d bytes", ErrInvalidCursor, MaxCursorSize)
	}
	body, tag, ok := strings.Cut(token, ".")
	if !ok {
		return Cursor{}, fmt.Errorf("%w: missing integrity tag", ErrInvalidCursor)
	}
	payload, err := tokenEncoding.DecodeString(body)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: malformed encoding", ErrInvalidCursor)
	}
	sig, err := tokenEncoding.DecodeString(tag)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: malformed integrity tag", ErrInvalidCursor)
	}
	if !hmac.Equal(sig, cc.mac(payload)) {
		return Cursor{}, fmt.Errorf("%w: integrity check failed", ErrInvalidCursor)
	}

	var wire wireCursor
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return Cursor{}, fmt.Errorf("%w: malformed payload", ErrInvalidCursor)
	}
	if len(wire.Fields) == 0 || len(wire.Fields) > MaxCursorFields {
		return Cursor{}, fmt.Errorf("%w: cursor must carry 1-%d fields, got %d", ErrInvalidCursor, MaxCursorFields, len(wire.Fields))
	}

	c := Cursor{Fields: make([]CursorField, 0, len(wire.Fields))}
	for _, wf := range wire.Fields {
		if !validate.IsValidIdentifier(wf.Name) {
			return Cursor{}, fmt.Errorf("%w: field name %q is not a valid identifier", ErrInvalidCursor, wf.Name)
		}
		if _, dup := c.Get(wf.Name); dup {
			return Cursor{}, fmt.Errorf("%w: duplicate field %q", ErrInvalidCursor, wf.Name)
		}
		v, err := decodeWireValue(wf)
		if err != nil {
			return Cursor{}, err
		}
		c.Fields = append(c.Fields, CursorField{Name: wf.Name, Value: v})
	}
	return c, nil
}

func (cc *CursorCodec) mac(payload []byte) []byte {
	h := hmac.New(sha256.New, cc.secret)
	h.Write(payload)
	return h.Sum(nil)
}

func decodeWireValue(wf wireField) (Value, error) {
	bad := func() (Value, error) {
		return Value{}, fmt.Errorf("%w: field %q does not hold a %s", ErrInvalidCursor, wf.Name, wf.Type)
	}
	if wf.Type == KindNull.String() {
		if len(wf.Value) != 0 {
			return bad()
		}
		return Null(), nil
	}
	var v Value
	if err := json.Unmarshal(wf.Value, &v); err != nil {
		return bad()
	}
	switch wf.Type {
	case KindBool.String():
		if v.Kind() != KindBool {
			return bad()
		}
	case KindInt.String():
		if v.Kind() != KindInt {
			return bad()
		}
	case KindFloat.String():
		switch v.Kind() {
		case KindFloat:
		case KindInt:
			v = Float(float64(v.i))
		default:
			return bad()
		}
	case KindString.String():
		if v.Kind() != KindString {
			return bad()
		}
	default:
		return Value{}, fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidCursor, wf.Name, wf.Type)
	}
	return v, nil
}
