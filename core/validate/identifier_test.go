package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"simple", "users", true},
		{"snake case", "user_id", true},
		{"leading underscore", "_private", true},
		{"single underscore", "_", true},
		{"mixed case with digits", "Table123", true},
		{"max length", strings.Repeat("a", MaxIdentifierLength), true},
		{"empty", "", false},
		{"too long", strings.Repeat("a", MaxIdentifierLength+1), false},
		{"leading digit", "1abc", false},
		{"dash", "user-name", false},
		{"dot", "user.id", false},
		{"space", "user name", false},
		{"semicolon", "users;drop", false},
		{"single quote", "table'", false},
		{"double quote", "table\"", false},
		{"comment", "id--", false},
		{"parenthesis", "count(", false},
		{"non ascii", "usér", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidIdentifier(tt.input))
		})
	}
}

func TestAssertIdentifier(t *testing.T) {
	require.NoError(t, AssertIdentifier("users", "table"))

	err := AssertIdentifier("users; DROP TABLE x", "table")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	assert.Contains(t, err.Error(), "table name")
}

func TestAssertIdentifiers(t *testing.T) {
	assert.NoError(t, AssertIdentifiers([]string{"id", "name"}, "field"))
	assert.NoError(t, AssertIdentifiers(nil, "field"))

	err := AssertIdentifiers([]string{"id", "na me", "x-y"}, "field")
	require.ErrorIs(t, err, ErrInvalidIdentifier)
	assert.Contains(t, err.Error(), `"na me"`)
}
