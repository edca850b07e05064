package query

import (
	"strings"

	"github.com/asaidimu/go-sqlgate/core/dialect"
)

// DeleteBuilder builds DELETE statements. A DELETE without filters removes
// every row; the builder renders it as asked.
type DeleteBuilder struct {
	dialect   dialect.Dialect
	table     string
	filters   []FilterExpr
	returning []string
	quote     bool
}

// NewDeleteBuilder creates a DELETE builder for table.
func NewDeleteBuilder(d dialect.Dialect, table string) *DeleteBuilder {
	return &DeleteBuilder{dialect: d, table: table}
}

// Filter ANDs expr into the WHERE clause.
func (db *DeleteBuilder) Filter(expr FilterExpr) *DeleteBuilder {
	db.filters = append(db.filters, expr)
	return db
}

// Where ANDs a single condition into the WHERE clause.
func (db *DeleteBuilder) Where(field string, op ComparisonOperator, value Value) *DeleteBuilder {
	return db.Filter(Simple(field, op, value))
}

// Returning requests columns back from the deleted rows.
func (db *DeleteBuilder) Returning(columns ...string) *DeleteBuilder {
	db.returning = append(db.returning, columns...)
	return db
}

// QuoteIdentifiers makes Build quote every identifier.
func (db *DeleteBuilder) QuoteIdentifiers() *DeleteBuilder {
	db.quote = true
	return db
}

// Build renders the statement.
func (db *DeleteBuilder) Build() (QueryResult, error) {
	r := newRenderer(db.dialect, db.quote)

	table, err := r.ident(db.table, "table")
	if err != nil {
		return QueryResult{}, err
	}

	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(table)
	if err := r.where(&sb, db.filters); err != nil {
		return QueryResult{}, err
	}
	if err := r.returning(&sb, db.returning); err != nil {
		return QueryResult{}, err
	}
	return QueryResult{SQL: sb.String(), Params: r.params}, nil
}
