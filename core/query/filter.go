package query

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-sqlgate/core/dialect"
	"github.com/asaidimu/go-sqlgate/core/validate"
)

// Simple builds a single-value condition.
func Simple(field string, op ComparisonOperator, value Value) FilterExpr {
	return FilterExpr{Condition: &FilterCondition{Field: field, Operator: op, Value: value}}
}

// Eq matches field = value. Eq with Null renders IS NULL.
func Eq(field string, value Value) FilterExpr { return Simple(field, ComparisonOperatorEq, value) }

// Ne matches field != value. Ne with Null renders IS NOT NULL.
func Ne(field string, value Value) FilterExpr { return Simple(field, ComparisonOperatorNe, value) }

func Gt(field string, value Value) FilterExpr  { return Simple(field, ComparisonOperatorGt, value) }
func Gte(field string, value Value) FilterExpr { return Simple(field, ComparisonOperatorGte, value) }
func Lt(field string, value Value) FilterExpr  { return Simple(field, ComparisonOperatorLt, value) }
func Lte(field string, value Value) FilterExpr { return Simple(field, ComparisonOperatorLte, value) }

func Like(field string, pattern Value) FilterExpr {
	return Simple(field, ComparisonOperatorLike, pattern)
}

func ILike(field string, pattern Value) FilterExpr {
	return Simple(field, ComparisonOperatorILike, pattern)
}

func StartsWith(field string, prefix Value) FilterExpr {
	return Simple(field, ComparisonOperatorStartsWith, prefix)
}

func EndsWith(field string, suffix Value) FilterExpr {
	return Simple(field, ComparisonOperatorEndsWith, suffix)
}

func Contains(field string, needle Value) FilterExpr {
	return Simple(field, ComparisonOperatorContains, needle)
}

func Regex(field string, pattern Value) FilterExpr {
	return Simple(field, ComparisonOperatorRegex, pattern)
}

// IsNull matches rows where field is NULL.
func IsNull(field string) FilterExpr { return Eq(field, Null()) }

// IsNotNull matches rows where field is not NULL.
func IsNotNull(field string) FilterExpr { return Ne(field, Null()) }

// In matches field against a list. An empty list matches nothing.
func In(field string, values ...Value) FilterExpr {
	return FilterExpr{Condition: &FilterCondition{Field: field, Operator: ComparisonOperatorIn, Values: values}}
}

// NotIn excludes a list. An empty list excludes nothing.
func NotIn(field string, values ...Value) FilterExpr {
	return FilterExpr{Condition: &FilterCondition{Field: field, Operator: ComparisonOperatorNin, Values: values}}
}

// Between matches low <= field <= high.
func Between(field string, low, high Value) FilterExpr {
	return FilterExpr{Condition: &FilterCondition{Field: field, Operator: ComparisonOperatorBetween, Values: []Value{low, high}}}
}

// And groups children with AND.
func And(children ...FilterExpr) FilterExpr {
	return FilterExpr{Group: &FilterGroup{Operator: LogicalOperatorAnd, Conditions: children}}
}

// Or groups children with OR.
func Or(children ...FilterExpr) FilterExpr {
	return FilterExpr{Group: &FilterGroup{Operator: LogicalOperatorOr, Conditions: children}}
}

// Not negates a single child.
func Not(child FilterExpr) FilterExpr {
	return FilterExpr{Group: &FilterGroup{Operator: LogicalOperatorNot, Conditions: []FilterExpr{child}}}
}

// IsCompound reports whether e is a group.
func (e FilterExpr) IsCompound() bool {
	return e.Group != nil
}

// Depth returns the number of logical nodes on the longest root-to-leaf
// path. A bare condition has depth 0.
func (e FilterExpr) Depth() int {
	if e.Group == nil {
		return 0
	}
	deepest := 0
	for _, child := range e.Group.Conditions {
		if d := child.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Fields returns every field referenced by the tree, in first-seen order.
func (e FilterExpr) Fields() []string {
	seen := make(map[string]struct{})
	var fields []string
	e.Walk(func(c *FilterCondition) {
		if _, ok := seen[c.Field]; !ok {
			seen[c.Field] = struct{}{}
			fields = append(fields, c.Field)
		}
	})
	return fields
}

// Walk calls fn for every condition in the tree, depth first.
func (e FilterExpr) Walk(fn func(*FilterCondition)) {
	if e.Condition != nil {
		fn(e.Condition)
	}
	if e.Group != nil {
		for _, child := range e.Group.Conditions {
			child.Walk(fn)
		}
	}
}

// list returns the operand list for list and pair operators.
func (c *FilterCondition) list() []Value {
	if len(c.Values) == 0 && !c.Value.IsNull() {
		return []Value{c.Value}
	}
	return c.Values
}

// CheckArity verifies that the condition carries the value shape its operator
// expects.
func (c *FilterCondition) CheckArity() error {
	if !c.Operator.IsStandard() {
		return &QueryValidationError{Field: c.Field, Message: fmt.Sprintf("operator %q is not supported", c.Operator), Err: ErrUnknownOperator}
	}
	switch c.Operator.Arity() {
	case ArityPair:
		if n := len(c.list()); n != 2 {
			return invalidValue(c.Field, "%s requires exactly 2 values, got %d", c.Operator, n)
		}
	case ArityValue:
		if len(c.Values) > 0 {
			return invalidValue(c.Field, "%s takes a single value, got a list of %d", c.Operator, len(c.Values))
		}
	}
	return nil
}

// RenderFilter renders e as a standalone predicate for d. Placeholders are
// numbered from 1.
func RenderFilter(d dialect.Dialect, e FilterExpr) (QueryResult, error) {
	r := newRenderer(d, false)
	sql, err := r.filter(e)
	if err != nil {
		return QueryResult{}, err
	}
	return QueryResult{SQL: sql, Params: r.params}, nil
}

// renderer accumulates bound parameters while SQL text is produced left to
// right, so the n-th placeholder always binds params[n-1].
type renderer struct {
	dialect dialect.Dialect
	quote   bool
	params  []Value
	// aliases maps aggregate aliases to their SQL so HAVING can refer to them.
	aliases map[string]string
}

func newRenderer(d dialect.Dialect, quote bool) *renderer {
	return &renderer{dialect: d, quote: quote}
}

func (r *renderer) bind(v Value) string {
	r.params = append(r.params, v)
	return r.dialect.Placeholder(len(r.params))
}

// ident validates name and returns it, quoted when quoting is enabled.
func (r *renderer) ident(name, context string) (string, error) {
	if err := validate.AssertIdentifier(name, context); err != nil {
		return "", err
	}
	if r.quote {
		return r.dialect.QuoteIdentifier(name), nil
	}
	return name, nil
}

func (r *renderer) idents(names []string, context string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, name := range names {
		id, err := r.ident(name, context)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (r *renderer) filter(e FilterExpr) (string, error) {
	switch {
	case e.Condition != nil && e.Group != nil:
		return "", invalidValue(e.Condition.Field, "filter sets both a condition and a group")
	case e.Condition != nil:
		return r.condition(e.Condition)
	case e.Group != nil:
		return r.group(e.Group)
	default:
		return "", invalidValue("filter", "filter is empty")
	}
}

func (r *renderer) group(g *FilterGroup) (string, error) {
	switch g.Operator {
	case LogicalOperatorNot:
		if len(g.Conditions) != 1 {
			return "", invalidValue("not", "NOT takes exactly one child, got %d", len(g.Conditions))
		}
		inner, err := r.filter(g.Conditions[0])
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case LogicalOperatorAnd, LogicalOperatorOr:
	default:
		return "", &QueryValidationError{Field: "group", Message: fmt.Sprintf("logical operator %q is not supported", g.Operator), Err: ErrUnknownOperator}
	}

	if len(g.Conditions) == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyCompound, strings.ToUpper(string(g.Operator)))
	}
	if len(g.Conditions) == 1 {
		return r.filter(g.Conditions[0])
	}

	parts := make([]string, 0, len(g.Conditions))
	for _, child := range g.Conditions {
		sql, err := r.filter(child)
		if err != nil {
			return "", err
		}
		if child.IsCompound() {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
	}
	return strings.Join(parts, " "+strings.ToUpper(string(g.Operator))+" "), nil
}

func (r *renderer) condition(c *FilterCondition) (string, error) {
	field, ok := r.aliases[c.Field]
	if !ok {
		var err error
		if field, err = r.ident(c.Field, "filter field"); err != nil {
			return "", err
		}
	}
	if err := c.CheckArity(); err != nil {
		return "", err
	}

	switch c.Operator {
	case ComparisonOperatorEq:
		if c.Value.IsNull() {
			return field + " IS NULL", nil
		}
		return field + " = " + r.bind(c.Value), nil
	case ComparisonOperatorNe:
		if c.Value.IsNull() {
			return field + " IS NOT NULL", nil
		}
		return field + " != " + r.bind(c.Value), nil
	case ComparisonOperatorGt:
		return field + " > " + r.bind(c.Value), nil
	case ComparisonOperatorGte:
		return field + " >= " + r.bind(c.Value), nil
	case ComparisonOperatorLt:
		return field + " < " + r.bind(c.Value), nil
	case ComparisonOperatorLte:
		return field + " <= " + r.bind(c.Value), nil
	case ComparisonOperatorIn, ComparisonOperatorNin:
		values := c.list()
		if len(values) == 0 {
			if c.Operator == ComparisonOperatorIn {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		marks := make([]string, len(values))
		for i, v := range values {
			marks[i] = r.bind(v)
		}
		keyword := " IN ("
		if c.Operator == ComparisonOperatorNin {
			keyword = " NOT IN ("
		}
		return field + keyword + strings.Join(marks, ", ") + ")", nil
	case ComparisonOperatorLike:
		return field + " LIKE " + r.bind(c.Value), nil
	case ComparisonOperatorILike:
		if r.dialect.SupportsILike() {
			return field + " ILIKE " + r.bind(c.Value), nil
		}
		return field + " LIKE " + r.bind(c.Value), nil
	case ComparisonOperatorRegex:
		if op := r.dialect.RegexOperator(); op != "" {
			return field + " " + op + " " + r.bind(c.Value), nil
		}
		return field + " LIKE " + r.bind(c.Value), nil
	case ComparisonOperatorStartsWith:
		return field + " LIKE " + r.bind(c.Value) + " || '%'", nil
	case ComparisonOperatorEndsWith:
		return field + " LIKE '%' || " + r.bind(c.Value), nil
	case ComparisonOperatorContains:
		return field + " LIKE '%' || " + r.bind(c.Value) + " || '%'", nil
	case ComparisonOperatorBetween:
		values := c.list()
		low := r.bind(values[0])
		high := r.bind(values[1])
		return field + " BETWEEN " + low + " AND " + high, nil
	}
	return "", &QueryValidationError{Field: c.Field, Message: fmt.Sprintf("operator %q is not supported", c.Operator), Err: ErrUnknownOperator}
}

// combine ANDs every expression into one, collapsing a single expression to
// itself. It returns false when there is nothing to combine.
func combine(exprs []FilterExpr) (FilterExpr, bool) {
	switch len(exprs) {
	case 0:
		return FilterExpr{}, false
	case 1:
		return exprs[0], true
	default:
		return And(exprs...), true
	}
}
