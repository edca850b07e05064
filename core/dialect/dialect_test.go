package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1", Postgres.Placeholder(1))
	assert.Equal(t, "$12", Postgres.Placeholder(12))
	assert.Equal(t, "?", SQLite.Placeholder(1))
	assert.Equal(t, "?", SQLite.Placeholder(7))
}

func TestQuoteIdentifier(t *testing.T) {
	for _, d := range []Dialect{Postgres, SQLite} {
		t.Run(string(d.Name()), func(t *testing.T) {
			assert.Equal(t, `"users"`, d.QuoteIdentifier("users"))
			assert.Equal(t, `"a""b"`, d.QuoteIdentifier(`a"b`))
		})
	}
}

func TestCapabilities(t *testing.T) {
	tests := []struct {
		dialect        Dialect
		returning      bool
		ilike          bool
		regex          string
		limitForOffset bool
	}{
		{Postgres, true, true, "~", false},
		{SQLite, false, false, "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect.Name()), func(t *testing.T) {
			assert.Equal(t, tt.returning, tt.dialect.SupportsReturning())
			assert.Equal(t, tt.ilike, tt.dialect.SupportsILike())
			assert.Equal(t, tt.regex, tt.dialect.RegexOperator())
			assert.Equal(t, tt.limitForOffset, tt.dialect.RequiresLimitForOffset())
		})
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"postgres", KindPostgres, false},
		{"PostgreSQL", KindPostgres, false},
		{" pg ", KindPostgres, false},
		{"sqlite", KindSQLite, false},
		{"sqlite3", KindSQLite, false},
		{"mysql", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownDialect)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFor(t *testing.T) {
	d, err := For(KindSQLite)
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	d, err = Named("postgresql")
	require.NoError(t, err)
	assert.Equal(t, KindPostgres, d.Name())

	_, err = For(Kind("oracle"))
	assert.ErrorIs(t, err, ErrUnknownDialect)

	_, err = Named("oracle")
	assert.ErrorIs(t, err, ErrUnknownDialect)
}
