package query

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-sqlgate/core/dialect"
)

// Assignment is one "column = value" pair of an UPDATE.
type Assignment struct {
	Column string `json:"column"`
	Value  Value  `json:"value"`
}

// UpdateBuilder builds UPDATE statements. Assignments render in the order
// they were set, so parameter order is deterministic.
type UpdateBuilder struct {
	dialect   dialect.Dialect
	table     string
	sets      []Assignment
	filters   []FilterExpr
	returning []string
	quote     bool
}

// NewUpdateBuilder creates an UPDATE builder for table.
func NewUpdateBuilder(d dialect.Dialect, table string) *UpdateBuilder {
	return &UpdateBuilder{dialect: d, table: table}
}

// Set assigns value to column. Setting the same column twice keeps the last
// value in the position of the first.
func (ub *UpdateBuilder) Set(column string, value Value) *UpdateBuilder {
	for i := range ub.sets {
		if ub.sets[i].Column == column {
			ub.sets[i].Value = value
			return ub
		}
	}
	ub.sets = append(ub.sets, Assignment{Column: column, Value: value})
	return ub
}

// SetMany applies Set for each assignment in order.
func (ub *UpdateBuilder) SetMany(assignments ...Assignment) *UpdateBuilder {
	for _, a := range assignments {
		ub.Set(a.Column, a.Value)
	}
	return ub
}

// Filter ANDs expr into the WHERE clause.
func (ub *UpdateBuilder) Filter(expr FilterExpr) *UpdateBuilder {
	ub.filters = append(ub.filters, expr)
	return ub
}

// Where ANDs a single condition into the WHERE clause.
func (ub *UpdateBuilder) Where(field string, op ComparisonOperator, value Value) *UpdateBuilder {
	return ub.Filter(Simple(field, op, value))
}

// Returning requests columns back from the updated rows.
func (ub *UpdateBuilder) Returning(columns ...string) *UpdateBuilder {
	ub.returning = append(ub.returning, columns...)
	return ub
}

// QuoteIdentifiers makes Build quote every identifier.
func (ub *UpdateBuilder) QuoteIdentifiers() *UpdateBuilder {
	ub.quote = true
	return ub
}

// Build renders the statement.
func (ub *UpdateBuilder) Build() (QueryResult, error) {
	r := newRenderer(ub.dialect, ub.quote)

	table, err := r.ident(ub.table, "table")
	if err != nil {
		return QueryResult{}, err
	}
	if len(ub.sets) == 0 {
		return QueryResult{}, fmt.Errorf("%w: UPDATE %s has no assignments", ErrIncompleteStatement, ub.table)
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(table)
	sb.WriteString(" SET ")
	for i, a := range ub.sets {
		column, err := r.ident(a.Column, "column")
		if err != nil {
			return QueryResult{}, err
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(column)
		sb.WriteString(" = ")
		sb.WriteString(r.bind(a.Value))
	}

	if err := r.where(&sb, ub.filters); err != nil {
		return QueryResult{}, err
	}
	if err := r.returning(&sb, ub.returning); err != nil {
		return QueryResult{}, err
	}
	return QueryResult{SQL: sb.String(), Params: r.params}, nil
}

// where appends " WHERE ..." for the AND of filters, if any.
func (r *renderer) where(sb *strings.Builder, filters []FilterExpr) error {
	expr, ok := combine(filters)
	if !ok {
		return nil
	}
	clause, err := r.filter(expr)
	if err != nil {
		return err
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(clause)
	return nil
}
