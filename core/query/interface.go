package query

import "github.com/asaidimu/go-sqlgate/core/dialect"

// Statement is implemented by every builder. Build is pure: calling it twice
// without changing the builder returns identical results.
type Statement interface {
	Build() (QueryResult, error)
}

var (
	_ Statement = (*QueryBuilder)(nil)
	_ Statement = (*InsertBuilder)(nil)
	_ Statement = (*UpdateBuilder)(nil)
	_ Statement = (*DeleteBuilder)(nil)
)

// Factory creates builders that share a dialect and quoting mode.
type Factory struct {
	dialect dialect.Dialect
	quote   bool
}

// NewFactory returns a Factory for d.
func NewFactory(d dialect.Dialect) *Factory {
	return &Factory{dialect: d}
}

// QuoteIdentifiers returns a copy of the factory whose builders quote
// identifiers.
func (f *Factory) QuoteIdentifiers() *Factory {
	return &Factory{dialect: f.dialect, quote: true}
}

// Dialect returns the factory's dialect.
func (f *Factory) Dialect() dialect.Dialect {
	return f.dialect
}

// Select starts a SELECT against table.
func (f *Factory) Select(table string) *QueryBuilder {
	qb := NewQueryBuilder(f.dialect, table)
	qb.quote = f.quote
	return qb
}

// Insert starts an INSERT into table.
func (f *Factory) Insert(table string) *InsertBuilder {
	ib := NewInsertBuilder(f.dialect, table)
	ib.quote = f.quote
	return ib
}

// Update starts an UPDATE of table.
func (f *Factory) Update(table string) *UpdateBuilder {
	ub := NewUpdateBuilder(f.dialect, table)
	ub.quote = f.quote
	return ub
}

// Delete starts a DELETE from table.
func (f *Factory) Delete(table string) *DeleteBuilder {
	db := NewDeleteBuilder(f.dialect, table)
	db.quote = f.quote
	return db
}
