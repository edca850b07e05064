package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/asaidimu/go-sqlgate/core/dialect"
	"github.com/asaidimu/go-sqlgate/core/validate"
)

// QueryBuilder provides a fluent API for building SELECT statements. Setters
// only record state; every check happens in Build, which never mutates the
// builder and can be called any number of times.
type QueryBuilder struct {
	dialect    dialect.Dialect
	table      string
	fields     []string
	computed   []ComputedField
	aggregates []Aggregate
	filters    []FilterExpr
	groupBy    []string
	having     []FilterExpr
	sorts      []SortField
	limit      *int64
	offset     *int64
	cursor     *Cursor
	token      string
	direction  CursorDirection
	codec      *CursorCodec
	quote      bool
}

// NewQueryBuilder creates a SELECT builder for table.
func NewQueryBuilder(d dialect.Dialect, table string) *QueryBuilder {
	return &QueryBuilder{dialect: d, table: table}
}

// Table returns the table the builder selects from.
func (qb *QueryBuilder) Table() string {
	return qb.table
}

// Fields appends plain columns to the select list.
func (qb *QueryBuilder) Fields(fields ...string) *QueryBuilder {
	qb.fields = append(qb.fields, fields...)
	return qb
}

// Computed appends "(expression) AS alias" to the select list. The expression
// must pass validate.IsValidExpression.
func (qb *QueryBuilder) Computed(alias, expression string) *QueryBuilder {
	qb.computed = append(qb.computed, ComputedField{Alias: alias, Expression: expression})
	return qb
}

// Aggregate appends an aggregate to the select list.
func (qb *QueryBuilder) Aggregate(agg Aggregate) *QueryBuilder {
	qb.aggregates = append(qb.aggregates, agg)
	return qb
}

// Count adds COUNT(*) AS count.
func (qb *QueryBuilder) Count() *QueryBuilder {
	return qb.Aggregate(Aggregate{Func: AggregateCount, Alias: "count"})
}

// CountField adds COUNT(field).
func (qb *QueryBuilder) CountField(field, alias string) *QueryBuilder {
	return qb.Aggregate(Aggregate{Func: AggregateCount, Field: field, Alias: alias})
}

// CountDistinct adds COUNT(DISTINCT field).
func (qb *QueryBuilder) CountDistinct(field, alias string) *QueryBuilder {
	return qb.Aggregate(Aggregate{Func: AggregateCountDistinct, Field: field, Alias: alias})
}

// Sum adds SUM(field).
func (qb *QueryBuilder) Sum(field, alias string) *QueryBuilder {
	return qb.Aggregate(Aggregate{Func: AggregateSum, Field: field, Alias: alias})
}

// Avg adds AVG(field).
func (qb *QueryBuilder) Avg(field, alias string) *QueryBuilder {
	return qb.Aggregate(Aggregate{Func: AggregateAvg, Field: field, Alias: alias})
}

// Min adds MIN(field).
func (qb *QueryBuilder) Min(field, alias string) *QueryBuilder {
	return qb.Aggregate(Aggregate{Func: AggregateMin, Field: field, Alias: alias})
}

// Max adds MAX(field).
func (qb *QueryBuilder) Max(field, alias string) *QueryBuilder {
	return qb.Aggregate(Aggregate{Func: AggregateMax, Field: field, Alias: alias})
}

// Filter ANDs expr into the WHERE clause.
func (qb *QueryBuilder) Filter(expr FilterExpr) *QueryBuilder {
	qb.filters = append(qb.filters, expr)
	return qb
}

// Where ANDs a single condition into the WHERE clause.
func (qb *QueryBuilder) Where(field string, op ComparisonOperator, value Value) *QueryBuilder {
	return qb.Filter(Simple(field, op, value))
}

// GroupBy appends GROUP BY columns.
func (qb *QueryBuilder) GroupBy(fields ...string) *QueryBuilder {
	qb.groupBy = append(qb.groupBy, fields...)
	return qb
}

// Having ANDs expr into the HAVING clause. A condition whose field is the
// alias of an aggregate in the select list compares against that aggregate.
func (qb *QueryBuilder) Having(expr FilterExpr) *QueryBuilder {
	qb.having = append(qb.having, expr)
	return qb
}

// Sort appends an ORDER BY term.
func (qb *QueryBuilder) Sort(field string, direction SortDirection) *QueryBuilder {
	qb.sorts = append(qb.sorts, SortField{Field: field, Direction: direction})
	return qb
}

// Sorts appends several ORDER BY terms.
func (qb *QueryBuilder) Sorts(sorts ...SortField) *QueryBuilder {
	qb.sorts = append(qb.sorts, sorts...)
	return qb
}

// OrderByAsc is shorthand for Sort(field, SortDirectionAsc).
func (qb *QueryBuilder) OrderByAsc(field string) *QueryBuilder {
	return qb.Sort(field, SortDirectionAsc)
}

// OrderByDesc is shorthand for Sort(field, SortDirectionDesc).
func (qb *QueryBuilder) OrderByDesc(field string) *QueryBuilder {
	return qb.Sort(field, SortDirectionDesc)
}

// Limit sets the maximum number of rows.
func (qb *QueryBuilder) Limit(limit int) *QueryBuilder {
	l := int64(limit)
	qb.limit = &l
	return qb
}

// Offset sets the number of rows to skip.
func (qb *QueryBuilder) Offset(offset int) *QueryBuilder {
	o := int64(offset)
	qb.offset = &o
	return qb
}

// LimitOffset sets both LIMIT and OFFSET.
func (qb *QueryBuilder) LimitOffset(limit, offset int) *QueryBuilder {
	return qb.Limit(limit).Offset(offset)
}

// Page selects the 1-based page of perPage rows. Pages below 1 are treated
// as the first page.
func (qb *QueryBuilder) Page(page, perPage int) *QueryBuilder {
	if page < 1 {
		page = 1
	}
	return qb.LimitOffset(perPage, (page-1)*perPage)
}

// After resumes a keyset scan strictly after c in sort order.
func (qb *QueryBuilder) After(c Cursor) *QueryBuilder {
	return qb.setCursor(&c, "", CursorAfter)
}

// Before resumes a keyset scan strictly before c. The ORDER BY is reversed
// so that LIMIT keeps the rows nearest to the cursor; callers reverse the
// returned rows to restore display order.
func (qb *QueryBuilder) Before(c Cursor) *QueryBuilder {
	return qb.setCursor(&c, "", CursorBefore)
}

// AfterToken is After for an encoded cursor. An empty token is ignored so a
// missing request parameter can be passed through directly; a malformed one
// makes Build fail with ErrInvalidCursor.
func (qb *QueryBuilder) AfterToken(token string) *QueryBuilder {
	if token == "" {
		return qb
	}
	return qb.setCursor(nil, token, CursorAfter)
}

// BeforeToken is Before for an encoded cursor.
func (qb *QueryBuilder) BeforeToken(token string) *QueryBuilder {
	if token == "" {
		return qb
	}
	return qb.setCursor(nil, token, CursorBefore)
}

func (qb *QueryBuilder) setCursor(c *Cursor, token string, dir CursorDirection) *QueryBuilder {
	qb.cursor = c
	qb.token = token
	qb.direction = dir
	return qb
}

// WithCursorCodec sets the codec used to decode tokens passed to AfterToken
// and BeforeToken. The default codec is unsigned.
func (qb *QueryBuilder) WithCursorCodec(codec *CursorCodec) *QueryBuilder {
	qb.codec = codec
	return qb
}

// QuoteIdentifiers makes Build quote every identifier with the dialect's
// quote character.
func (qb *QueryBuilder) QuoteIdentifiers() *QueryBuilder {
	qb.quote = true
	return qb
}

// Clone creates a copy of the builder that can be modified without affecting
// the original.
func (qb *QueryBuilder) Clone() *QueryBuilder {
	clone := *qb
	clone.fields = slices.Clone(qb.fields)
	clone.computed = slices.Clone(qb.computed)
	clone.aggregates = slices.Clone(qb.aggregates)
	clone.filters = slices.Clone(qb.filters)
	clone.groupBy = slices.Clone(qb.groupBy)
	clone.having = slices.Clone(qb.having)
	clone.sorts = slices.Clone(qb.sorts)
	if qb.cursor != nil {
		c := qb.cursor.clone()
		clone.cursor = &c
	}
	return &clone
}

// Reset clears every clause, keeping the dialect and table.
func (qb *QueryBuilder) Reset() *QueryBuilder {
	*qb = QueryBuilder{dialect: qb.dialect, table: qb.table}
	return qb
}

// Build renders the statement.
func (qb *QueryBuilder) Build() (QueryResult, error) {
	r := newRenderer(qb.dialect, qb.quote)
	var sb strings.Builder

	table, err := r.ident(qb.table, "table")
	if err != nil {
		return QueryResult{}, err
	}

	columns, aliases, err := qb.selectList(r)
	if err != nil {
		return QueryResult{}, err
	}
	sb.WriteString("SELECT ")
	sb.WriteString(columns)
	sb.WriteString(" FROM ")
	sb.WriteString(table)

	sorts := qb.sorts
	where := slices.Clone(qb.filters)
	if qb.cursor != nil || qb.token != "" {
		keyset, err := qb.keyset()
		if err != nil {
			return QueryResult{}, err
		}
		where = append(where, keyset)
		if qb.direction == CursorBefore {
			sorts = reverseSorts(sorts)
		}
	}
	if err := r.where(&sb, where); err != nil {
		return QueryResult{}, err
	}

	if len(qb.groupBy) > 0 {
		groups, err := r.idents(qb.groupBy, "group by field")
		if err != nil {
			return QueryResult{}, err
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(groups, ", "))
	}

	if expr, ok := combine(qb.having); ok {
		r.aliases = aliases
		clause, err := r.filter(expr)
		if err != nil {
			return QueryResult{}, err
		}
		sb.WriteString(" HAVING ")
		sb.WriteString(clause)
	}
	r.aliases = nil

	if len(sorts) > 0 {
		order, err := r.orderBy(sorts)
		if err != nil {
			return QueryResult{}, err
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(order)
	}

	if err := r.limitOffset(&sb, qb.limit, qb.offset); err != nil {
		return QueryResult{}, err
	}

	return QueryResult{SQL: sb.String(), Params: r.params}, nil
}

// selectList renders the column list and returns the SQL of every aliased
// aggregate keyed by alias.
func (qb *QueryBuilder) selectList(r *renderer) (string, map[string]string, error) {
	parts := make([]string, 0, len(qb.fields)+len(qb.computed)+len(qb.aggregates))
	aliases := make(map[string]string)

	fields, err := r.idents(qb.fields, "field")
	if err != nil {
		return "", nil, err
	}
	parts = append(parts, fields...)

	for _, cf := range qb.computed {
		alias, err := r.ident(cf.Alias, "computed field alias")
		if err != nil {
			return "", nil, err
		}
		if err := validate.AssertExpression(cf.Expression, "computed field "+cf.Alias); err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+cf.Expression+") AS "+alias)
	}

	for _, agg := range qb.aggregates {
		expr, err := r.aggregate(agg)
		if err != nil {
			return "", nil, err
		}
		if agg.Alias != "" {
			alias, err := r.ident(agg.Alias, "aggregate alias")
			if err != nil {
				return "", nil, err
			}
			aliases[agg.Alias] = expr
			expr += " AS " + alias
		}
		parts = append(parts, expr)
	}

	if len(parts) == 0 {
		return "*", aliases, nil
	}
	return strings.Join(parts, ", "), aliases, nil
}

func (qb *QueryBuilder) keyset() (FilterExpr, error) {
	cursor := qb.cursor
	if cursor == nil {
		codec := qb.codec
		if codec == nil {
			codec = NewCursorCodec(nil)
		}
		decoded, err := codec.Decode(qb.token)
		if err != nil {
			return FilterExpr{}, err
		}
		cursor = &decoded
	}
	return KeysetCondition(qb.sorts, *cursor, qb.direction)
}

func (r *renderer) aggregate(agg Aggregate) (string, error) {
	var fn string
	switch agg.Func {
	case AggregateCount, AggregateCountDistinct:
		fn = "COUNT"
	case AggregateSum, AggregateAvg, AggregateMin, AggregateMax:
		fn = strings.ToUpper(string(agg.Func))
	default:
		return "", &QueryValidationError{Field: agg.Field, Message: fmt.Sprintf("aggregate function %q is not supported", agg.Func), Err: ErrUnknownOperator}
	}

	if agg.Field == "" {
		if agg.Func == AggregateCount {
			return "COUNT(*)", nil
		}
		return "", invalidValue(string(agg.Func), "%s requires a field", agg.Func)
	}
	field, err := r.ident(agg.Field, "aggregate field")
	if err != nil {
		return "", err
	}
	if agg.Func == AggregateCountDistinct {
		return "COUNT(DISTINCT " + field + ")", nil
	}
	return fn + "(" + field + ")", nil
}

func (r *renderer) orderBy(sorts []SortField) (string, error) {
	parts := make([]string, 0, len(sorts))
	for _, s := range sorts {
		field, err := r.ident(s.Field, "sort field")
		if err != nil {
			return "", err
		}
		if s.Direction != SortDirectionAsc && s.Direction != SortDirectionDesc && s.Direction != "" {
			return "", invalidValue(s.Field, "unknown sort direction %q", s.Direction)
		}
		parts = append(parts, field+" "+s.Direction.SQL())
	}
	return strings.Join(parts, ", "), nil
}

// limitOffset appends LIMIT and OFFSET as bound parameters.
func (r *renderer) limitOffset(sb *strings.Builder, limit, offset *int64) error {
	if limit != nil && *limit < 0 {
		return invalidValue("limit", "limit cannot be negative")
	}
	if offset != nil && *offset < 0 {
		return invalidValue("offset", "offset cannot be negative")
	}
	switch {
	case limit != nil:
		sb.WriteString(" LIMIT ")
		sb.WriteString(r.bind(Int(*limit)))
	case offset != nil && r.dialect.RequiresLimitForOffset():
		sb.WriteString(" LIMIT ")
		sb.WriteString(r.bind(Int(-1)))
	}
	if offset != nil {
		sb.WriteString(" OFFSET ")
		sb.WriteString(r.bind(Int(*offset)))
	}
	return nil
}

func reverseSorts(sorts []SortField) []SortField {
	out := make([]SortField, len(sorts))
	for i, s := range sorts {
		out[i] = SortField{Field: s.Field, Direction: s.Direction.Reverse()}
	}
	return out
}

// String returns a human-readable summary of the builder's clauses.
func (qb *QueryBuilder) String() string {
	parts := []string{"FROM: " + qb.table}
	if len(qb.fields) > 0 {
		parts = append(parts, "SELECT: "+strings.Join(qb.fields, ", "))
	}
	if len(qb.filters) > 0 {
		parts = append(parts, fmt.Sprintf("FILTERS: %d", len(qb.filters)))
	}
	if len(qb.sorts) > 0 {
		sortFields := make([]string, len(qb.sorts))
		for i, s := range qb.sorts {
			sortFields[i] = fmt.Sprintf("%s %s", s.Field, s.Direction)
		}
		parts = append(parts, "ORDER BY: "+strings.Join(sortFields, ", "))
	}
	if qb.limit != nil {
		parts = append(parts, fmt.Sprintf("LIMIT: %d", *qb.limit))
	}
	if qb.offset != nil {
		parts = append(parts, fmt.Sprintf("OFFSET: %d", *qb.offset))
	}
	if qb.cursor != nil || qb.token != "" {
		parts = append(parts, "CURSOR: "+qb.direction.String())
	}
	if len(qb.aggregates) > 0 {
		parts = append(parts, fmt.Sprintf("AGGREGATIONS: %d", len(qb.aggregates)))
	}
	return strings.Join(parts, " | ")
}
