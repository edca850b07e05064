package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/asaidimu/go-sqlgate/core/dialect"
)

// InsertBuilder builds single and multi-row INSERT statements. It does not
// know which columns a table requires; it only checks that every row has one
// value per column.
type InsertBuilder struct {
	dialect   dialect.Dialect
	table     string
	columns   []string
	rows      [][]Value
	returning []string
	quote     bool
}

// NewInsertBuilder creates an INSERT builder for table.
func NewInsertBuilder(d dialect.Dialect, table string) *InsertBuilder {
	return &InsertBuilder{dialect: d, table: table}
}

// Columns appends target columns.
func (ib *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	ib.columns = append(ib.columns, columns...)
	return ib
}

// Values appends one row.
func (ib *InsertBuilder) Values(row ...Value) *InsertBuilder {
	ib.rows = append(ib.rows, slices.Clone(row))
	return ib
}

// ValuesMany appends several rows.
func (ib *InsertBuilder) ValuesMany(rows [][]Value) *InsertBuilder {
	for _, row := range rows {
		ib.Values(row...)
	}
	return ib
}

// Returning requests columns back from the inserted rows. It is ignored on
// dialects without RETURNING.
func (ib *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	ib.returning = append(ib.returning, columns...)
	return ib
}

// QuoteIdentifiers makes Build quote every identifier.
func (ib *InsertBuilder) QuoteIdentifiers() *InsertBuilder {
	ib.quote = true
	return ib
}

// Build renders the statement.
func (ib *InsertBuilder) Build() (QueryResult, error) {
	r := newRenderer(ib.dialect, ib.quote)

	table, err := r.ident(ib.table, "table")
	if err != nil {
		return QueryResult{}, err
	}
	if len(ib.columns) == 0 {
		return QueryResult{}, fmt.Errorf("%w: INSERT INTO %s has no columns", ErrIncompleteStatement, ib.table)
	}
	if len(ib.rows) == 0 {
		return QueryResult{}, fmt.Errorf("%w: INSERT INTO %s has no rows", ErrIncompleteStatement, ib.table)
	}
	columns, err := r.idents(ib.columns, "column")
	if err != nil {
		return QueryResult{}, err
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(") VALUES ")

	for i, row := range ib.rows {
		if len(row) != len(ib.columns) {
			return QueryResult{}, invalidValue(fmt.Sprintf("row %d", i), "has %d values for %d columns", len(row), len(ib.columns))
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		marks := make([]string, len(row))
		for j, v := range row {
			marks[j] = r.bind(v)
		}
		sb.WriteString("(")
		sb.WriteString(strings.Join(marks, ", "))
		sb.WriteString(")")
	}

	if err := r.returning(&sb, ib.returning); err != nil {
		return QueryResult{}, err
	}
	return QueryResult{SQL: sb.String(), Params: r.params}, nil
}

// returning appends RETURNING when the dialect supports it. Columns are
// validated either way.
func (r *renderer) returning(sb *strings.Builder, columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	cols, err := r.idents(columns, "returning column")
	if err != nil {
		return err
	}
	if !r.dialect.SupportsReturning() {
		return nil
	}
	sb.WriteString(" RETURNING ")
	sb.WriteString(strings.Join(cols, ", "))
	return nil
}
