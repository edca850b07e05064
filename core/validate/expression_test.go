package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidExpression(t *testing.T) {
	valid := []string{
		"quantity * price",
		"price * 1.1",
		"age + 1",
		"COALESCE(nickname, name)",
		"UPPER(name)",
		"round(total / count_items, 2)",
		"(a + b) % 7",
		"orders.total - orders.discount",
		"last_updated",
		"created_at",
		"selected_items",
		"order_total",
		"from_date",
		"upper\n(name)",
		"price\r\n* quantity",
	}
	for _, expr := range valid {
		t.Run("valid "+expr, func(t *testing.T) {
			assert.True(t, IsValidExpression(expr), expr)
		})
	}

	invalid := []string{
		"",
		"   ",
		"name -- comment",
		"/* c */ name",
		"name */",
		"1; DROP TABLE users",
		"first_name || ' ' || last_name",
		`"quoted"`,
		"`ticked`",
		"(SELECT password)",
		"x FROM y",
		"UNION ALL",
		"pg_sleep(10)",
		"sleep(5)",
		"version()",
		"lo_unlink\n(16400)",
		"lo_unlink\r(16400)",
		"lo_unlink \r\n\t (16400)",
		"sqlite_master",
		"information_schema.tables",
		"0x48454C4C4F",
		"(a + b",
		"a + b)",
		"1.2.3",
		"a = b",
		"9abc",
		strings.Repeat("a+", MaxExpressionLength),
	}
	for _, expr := range invalid {
		t.Run("invalid "+expr, func(t *testing.T) {
			assert.False(t, IsValidExpression(expr), expr)
		})
	}
}

func TestAssertExpression(t *testing.T) {
	assert.NoError(t, AssertExpression("quantity * price", "computed field"))

	err := AssertExpression("price; DROP TABLE x", "computed field")
	assert.ErrorIs(t, err, ErrInvalidExpression)
	assert.Contains(t, err.Error(), "computed field")
}

func TestExpressionIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want []string
	}{
		{"bare column", "password_hash", []string{"password_hash"}},
		{"arithmetic", "quantity * price + quantity", []string{"quantity", "price"}},
		{"function names excluded", "COALESCE(nickname, name)", []string{"nickname", "name"}},
		{"function across newline", "round\n(total, 2)", []string{"total"}},
		{"dotted reference", "orders.total - 1", []string{"orders.total"}},
		{"literals only", "(1 + 2) * 3", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpressionIdentifiers(tt.expr)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ExpressionIdentifiers("lo_unlink\n(16400)")
	assert.ErrorIs(t, err, ErrInvalidExpression)
}
