package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asaidimu/go-sqlgate/core/query"
	"github.com/asaidimu/go-sqlgate/core/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--log-level=error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

type compiled struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

func TestCompile_Stdin(t *testing.T) {
	out, err := run(t, `{"table":"users","fields":["id"],"filter":{"age":{"$gte":18}},"sort":"-id","limit":5}`,
		"--dialect=sqlite", "compile")
	require.NoError(t, err)

	var res compiled
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "SELECT id FROM users WHERE age >= ? ORDER BY id DESC LIMIT ?", res.SQL)
	assert.Equal(t, []any{18.0, 5.0}, res.Params)
}

func TestCompile_FileTrustedText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"table":"users","filter":{"id":1}}`), 0o600))

	out, err := run(t, "", "compile", path, "--trusted", `{"tenant_id":7}`, "--format", "text")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE (tenant_id = $1) AND (id = $2)\n1\t7\n2\t1\n", out)
}

func TestCompile_Errors(t *testing.T) {
	_, err := run(t, `{"table":"users","filter":{"email":"x"}}`, "--allow-fields=id,name", "compile")
	assert.ErrorIs(t, err, security.ErrFieldNotAllowed)

	_, err = run(t, `{"table":"users"}`, "compile", "--trusted", `{"$bogus":1}`)
	assert.ErrorIs(t, err, query.ErrUnknownOperator)

	_, err = run(t, `{"table":"users"}`, "compile", "--format", "xml")
	assert.Error(t, err)

	_, err = run(t, "", "compile", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = run(t, `{"table":"users"}`, "--dialect=oracle", "compile")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	out, err := run(t, `{"$or":[{"a":1},{"b":{"$in":[1,2]}}]}`, "validate")
	require.NoError(t, err)

	var report validateReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, validateReport{Valid: true, Depth: 1, Fields: []string{"a", "b"}}, report)

	_, err = run(t, `{"name":{"$regex":"^a"}}`, "validate")
	assert.ErrorIs(t, err, security.ErrOperatorDenied)

	_, err = run(t, `{"$not":{"$not":{"a":1}}}`, "--max-depth=1", "validate")
	assert.ErrorIs(t, err, security.ErrDepthExceeded)

	_, err = run(t, `{"a":`, "validate")
	assert.ErrorIs(t, err, query.ErrParse)
}

func TestCursor_RoundTrip(t *testing.T) {
	out, err := run(t, "", "--cursor-secret=k1", "cursor", "encode", "created_at=\"2024-01-01\"", "id=42", "name=alice")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	require.NotEmpty(t, token)

	out, err = run(t, "", "--cursor-secret=k1", "cursor", "decode", token)
	require.NoError(t, err)
	var c query.Cursor
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, query.NewCursor().
		With("created_at", query.String("2024-01-01")).
		With("id", query.Int(42)).
		With("name", query.String("alice")), c)

	_, err = run(t, "", "--cursor-secret=k2", "cursor", "decode", token)
	assert.ErrorIs(t, err, query.ErrInvalidCursor)
}

func TestParseCursorArgs(t *testing.T) {
	c, err := parseCursorArgs([]string{"a=1.5", "b=true", "c=null", "d=[1]"})
	require.NoError(t, err)
	v, _ := c.Get("a")
	assert.Equal(t, query.Float(1.5), v)
	v, _ = c.Get("b")
	assert.Equal(t, query.Bool(true), v)
	v, _ = c.Get("c")
	assert.True(t, v.IsNull())
	v, _ = c.Get("d")
	assert.Equal(t, query.String("[1]"), v)

	_, err = parseCursorArgs([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseCursorArgs([]string{"a=1", "a=2"})
	assert.Error(t, err)
}
