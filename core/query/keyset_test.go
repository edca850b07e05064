package query

import (
	"testing"

	"github.com/asaidimu/go-sqlgate/core/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysetCondition(t *testing.T) {
	tests := []struct {
		name      string
		sorts     []SortField
		cursor    Cursor
		direction CursorDirection
		expected  string
		params    []Value
	}{
		{
			name:      "single ascending after",
			sorts:     []SortField{Asc("id")},
			cursor:    NewCursor().With("id", Int(100)),
			direction: CursorAfter,
			expected:  "id > $1",
			params:    []Value{Int(100)},
		},
		{
			name:      "single descending after",
			sorts:     []SortField{Desc("created_at")},
			cursor:    NewCursor().With("created_at", String("2024-01-01")),
			direction: CursorAfter,
			expected:  "created_at < $1",
			params:    []Value{String("2024-01-01")},
		},
		{
			name:      "single ascending before",
			sorts:     []SortField{Asc("id")},
			cursor:    NewCursor().With("id", Int(100)),
			direction: CursorBefore,
			expected:  "id < $1",
			params:    []Value{Int(100)},
		},
		{
			name:      "single descending before",
			sorts:     []SortField{Desc("id")},
			cursor:    NewCursor().With("id", Int(100)),
			direction: CursorBefore,
			expected:  "id > $1",
			params:    []Value{Int(100)},
		},
		{
			name:      "three fields with mixed directions",
			sorts:     []SortField{Asc("a"), Desc("b"), Asc("c")},
			cursor:    NewCursor().With("c", Int(3)).With("b", Int(2)).With("a", Int(1)),
			direction: CursorAfter,
			expected:  "a > $1 OR (a = $2 AND b < $3) OR (a = $4 AND b = $5 AND c > $6)",
			params:    []Value{Int(1), Int(1), Int(2), Int(1), Int(2), Int(3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := KeysetCondition(tt.sorts, tt.cursor, tt.direction)
			require.NoError(t, err)
			res, err := RenderFilter(dialect.Postgres, expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, res.SQL)
			assert.Equal(t, tt.params, res.Params)
		})
	}
}

func TestKeysetCondition_Errors(t *testing.T) {
	c := NewCursor().With("id", Int(1))
	tests := []struct {
		name   string
		sorts  []SortField
		cursor Cursor
	}{
		{"no sorts", nil, c},
		{"missing field", []SortField{Asc("name")}, c},
		{"extra cursor field", []SortField{Asc("id")}, c.With("name", String("x"))},
		{"null value", []SortField{Asc("id")}, NewCursor().With("id", Null())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := KeysetCondition(tt.sorts, tt.cursor, CursorAfter)
			assert.ErrorIs(t, err, ErrInvalidCursor)
		})
	}
}

// A keyset condition must select exactly the rows that sort after the cursor.
func TestKeysetCondition_MatchesSortOrder(t *testing.T) {
	sorts := []SortField{Desc("score"), Asc("id")}
	var rows []map[string]Value
	for id := int64(1); id <= 12; id++ {
		rows = append(rows, map[string]Value{"score": Int(id % 4), "id": Int(id)})
	}
	less := func(a, b map[string]Value) bool {
		for _, s := range sorts {
			n, err := CompareValues(a[s.Field], b[s.Field])
			require.NoError(t, err)
			if n == 0 {
				continue
			}
			if s.Direction == SortDirectionDesc {
				return n > 0
			}
			return n < 0
		}
		return false
	}

	for _, pivot := range rows {
		c, err := CursorFromRow(pivot, sorts)
		require.NoError(t, err)
		after, err := KeysetCondition(sorts, c, CursorAfter)
		require.NoError(t, err)
		before, err := KeysetCondition(sorts, c, CursorBefore)
		require.NoError(t, err)

		for _, row := range rows {
			isAfter, err := Match(after, row)
			require.NoError(t, err)
			isBefore, err := Match(before, row)
			require.NoError(t, err)
			assert.Equal(t, less(pivot, row), isAfter, "row %v after %v", row, pivot)
			assert.Equal(t, less(row, pivot), isBefore, "row %v before %v", row, pivot)
		}
	}
}
