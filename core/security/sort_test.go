package security

import (
	"testing"

	"github.com/asaidimu/go-sqlgate/core/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSort(t *testing.T) {
	open := PermissiveFilterValidator()
	tests := []struct {
		name string
		spec string
		want []query.SortField
	}{
		{"empty", "", nil},
		{"single", "name", []query.SortField{query.Asc("name")}},
		{"mixed", "name,-created_at", []query.SortField{query.Asc("name"), query.Desc("created_at")}},
		{"explicit asc", "+name", []query.SortField{query.Asc("name")}},
		{"spaces and empty parts", " name , ,-id ,", []query.SortField{query.Asc("name"), query.Desc("id")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := open.ParseSort(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSort_Errors(t *testing.T) {
	v := PermissiveFilterValidator().AllowFields("name", "created_at")

	_, err := v.ParseSort("name,-password")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldNotAllowed, verr.Kind)
	assert.Equal(t, "password", verr.Field)
	assert.Equal(t, "sort", verr.Path)

	open := PermissiveFilterValidator()
	_, err = open.ParseSort("name;DROP")
	assert.ErrorIs(t, err, query.ErrInvalidIdentifier)

	_, err = open.ParseSort("-")
	assert.ErrorIs(t, err, query.ErrInvalidIdentifier)

	_, err = open.ParseSort("name,-name")
	assert.ErrorIs(t, err, query.ErrInvalidValue)
}
