package query

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_With(t *testing.T) {
	base := NewCursor().With("id", Int(1))
	next := base.With("id", Int(2)).With("name", String("x"))

	v, ok := base.Get("id")
	require.True(t, ok)
	assert.Equal(t, Int(1), v)
	assert.Equal(t, 1, base.Len())

	v, _ = next.Get("id")
	assert.Equal(t, Int(2), v)
	assert.Equal(t, 2, next.Len())

	_, ok = next.Get("missing")
	assert.False(t, ok)
}

func TestCursorCodec_RoundTrip(t *testing.T) {
	cursors := []Cursor{
		NewCursor().With("id", Int(100)),
		NewCursor().With("created_at", String("2024-01-01T00:00:00Z")).With("id", Int(-7)),
		NewCursor().With("score", Float(3)).With("ratio", Float(0.1)).With("big", Float(1e300)),
		NewCursor().With("active", Bool(false)).With("deleted_at", Null()),
		NewCursor().With("name", String("ünïcödé \"quoted\" ' ; --")),
		NewCursor().With("min", Int(math.MinInt64)).With("max", Int(math.MaxInt64)),
	}

	for _, secret := range [][]byte{nil, []byte("s3cret")} {
		codec := NewCursorCodec(secret)
		assert.Equal(t, secret != nil, codec.Signed())
		for i, c := range cursors {
			t.Run(fmt.Sprintf("signed=%v/%d", codec.Signed(), i), func(t *testing.T) {
				token, err := codec.Encode(c)
				require.NoError(t, err)
				assert.NotContains(t, token, "=")
				assert.NotContains(t, token, "+")
				assert.NotContains(t, token, "/")

				decoded, err := codec.Decode(token)
				require.NoError(t, err)
				assert.Equal(t, c, decoded)
			})
		}
	}
}

func TestCursorCodec_RoundTripFromRow(t *testing.T) {
	row := map[string]Value{"id": Int(9), "name": String("Ada"), "score": Float(2.5), "bio": String("ignored")}
	sorts := []SortField{Desc("score"), Asc("name"), Asc("id")}

	c, err := CursorFromRow(row, sorts)
	require.NoError(t, err)

	codec := NewCursorCodec(nil)
	token, err := codec.Encode(c)
	require.NoError(t, err)
	decoded, err := codec.Decode(token)
	require.NoError(t, err)

	for _, s := range sorts {
		v, ok := decoded.Get(s.Field)
		require.True(t, ok)
		assert.Equal(t, row[s.Field], v)
	}
	_, ok := decoded.Get("bio")
	assert.False(t, ok)

	_, err = CursorFromRow(row, []SortField{Asc("missing")})
	assert.ErrorIs(t, err, ErrInvalidCursor)
	_, err = CursorFromRow(row, nil)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestCursorCodec_DetectsTampering(t *testing.T) {
	for _, secret := range [][]byte{nil, []byte("s3cret")} {
		codec := NewCursorCodec(secret)
		token, err := codec.Encode(NewCursor().With("id", Int(100)).With("name", String("alice")))
		require.NoError(t, err)

		// Flip every character of the token in turn; no variant may decode.
		for i := 0; i < len(token); i++ {
			replacement := byte('A')
			if token[i] == 'A' {
				replacement = 'B'
			}
			tampered := token[:i] + string(replacement) + token[i+1:]
			_, err := codec.Decode(tampered)
			assert.ErrorIs(t, err, ErrInvalidCursor, "position %d", i)
		}
	}
}

func TestCursorCodec_RejectsForgedPayload(t *testing.T) {
	signed := NewCursorCodec([]byte("s3cret"))
	token, err := signed.Encode(NewCursor().With("id", Int(100)))
	require.NoError(t, err)
	_, tag, _ := strings.Cut(token, ".")

	forged := base64.RawURLEncoding.EncodeToString([]byte(`{"f":[{"n":"id","t":"int","v":1}]}`)) + "." + tag
	_, err = signed.Decode(forged)
	assert.ErrorIs(t, err, ErrInvalidCursor)

	otherKey := NewCursorCodec([]byte("other"))
	_, err = otherKey.Decode(token)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestCursorCodec_DecodeErrors(t *testing.T) {
	codec := NewCursorCodec(nil)
	sealed := func(payload string) string {
		p := []byte(payload)
		return base64.RawURLEncoding.EncodeToString(p) + "." + base64.RawURLEncoding.EncodeToString(codec.mac(p))
	}

	manyFields := make([]string, MaxCursorFields+1)
	for i := range manyFields {
		manyFields[i] = fmt.Sprintf(`{"n":"f%d","t":"int","v":%d}`, i, i)
	}

	tests := map[string]string{
		"empty":              "",
		"too large":          strings.Repeat("a", MaxCursorSize+1),
		"no tag":             base64.RawURLEncoding.EncodeToString([]byte(`{"f":[]}`)),
		"bad base64 body":    "!!!." + base64.RawURLEncoding.EncodeToString([]byte("x")),
		"bad base64 tag":     base64.RawURLEncoding.EncodeToString([]byte("x")) + ".!!!",
		"bad json":           sealed(`{"f":`),
		"unknown json field": sealed(`{"f":[{"n":"id","t":"int","v":1}],"x":1}`),
		"no fields":          sealed(`{"f":[]}`),
		"too many fields":    sealed(`{"f":[` + strings.Join(manyFields, ",") + `]}`),
		"unknown type":       sealed(`{"f":[{"n":"id","t":"blob","v":"AA=="}]}`),
		"type mismatch":      sealed(`{"f":[{"n":"id","t":"int","v":"1"}]}`),
		"fractional int":     sealed(`{"f":[{"n":"id","t":"int","v":1.5}]}`),
		"null with value":    sealed(`{"f":[{"n":"id","t":"null","v":1}]}`),
		"missing value":      sealed(`{"f":[{"n":"id","t":"string"}]}`),
		"invalid field name": sealed(`{"f":[{"n":"id; DROP","t":"int","v":1}]}`),
		"duplicate field":    sealed(`{"f":[{"n":"id","t":"int","v":1},{"n":"id","t":"int","v":2}]}`),
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			c, err := codec.Decode(token)
			assert.ErrorIs(t, err, ErrInvalidCursor)
			assert.Zero(t, c.Len())
		})
	}
}

func TestCursorCodec_EncodeErrors(t *testing.T) {
	codec := NewCursorCodec(nil)

	_, err := codec.Encode(NewCursor())
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = codec.Encode(NewCursor().With("bad name", Int(1)))
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = codec.Encode(NewCursor().With("x", Float(math.Inf(1))))
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = codec.Encode(NewCursor().With("x", String(strings.Repeat("a", MaxCursorSize))))
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = codec.Encode(NewCursor().With("id", Int(1)).With("name", String("ab\xffc")))
	assert.ErrorIs(t, err, ErrInvalidCursor)
	assert.Contains(t, err.Error(), `"name"`)

	token, err := codec.Encode(NewCursor().With("name", String("ünïcødé ✓")))
	require.NoError(t, err)
	decoded, err := codec.Decode(token)
	require.NoError(t, err)
	got, _ := decoded.Get("name")
	assert.Equal(t, String("ünïcødé ✓"), got)

	c := NewCursor()
	for i := 0; i <= MaxCursorFields; i++ {
		c = c.With(fmt.Sprintf("f%d", i), Int(int64(i)))
	}
	_, err = codec.Encode(c)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestCursorDirection_String(t *testing.T) {
	assert.Equal(t, "after", CursorAfter.String())
	assert.Equal(t, "before", CursorBefore.String())
}
