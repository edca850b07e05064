// Package query defines the dialect-neutral description of a SQL statement and
// the builders that render it. A filter is a tree of conditions and groups,
// values are typed scalars that only ever travel as bound parameters, and
// every identifier is validated before it reaches the SQL text.
package query

// LogicalOperator combines the children of a FilterGroup.
type LogicalOperator string

// Logical operators for combining filter conditions.
const (
	LogicalOperatorAnd LogicalOperator = "and"
	LogicalOperatorOr  LogicalOperator = "or"
	LogicalOperatorNot LogicalOperator = "not"
)

// IsValid reports whether l is one of the supported logical operators.
func (l LogicalOperator) IsValid() bool {
	switch l {
	case LogicalOperatorAnd, LogicalOperatorOr, LogicalOperatorNot:
		return true
	}
	return false
}

// ComparisonOperator defines the set of operators that can be used in a filter condition.
type ComparisonOperator string

// Supported comparison operators.
const (
	ComparisonOperatorEq         ComparisonOperator = "eq"
	ComparisonOperatorNe         ComparisonOperator = "ne"
	ComparisonOperatorGt         ComparisonOperator = "gt"
	ComparisonOperatorGte        ComparisonOperator = "gte"
	ComparisonOperatorLt         ComparisonOperator = "lt"
	ComparisonOperatorLte        ComparisonOperator = "lte"
	ComparisonOperatorIn         ComparisonOperator = "in"
	ComparisonOperatorNin        ComparisonOperator = "nin"
	ComparisonOperatorLike       ComparisonOperator = "like"
	ComparisonOperatorILike      ComparisonOperator = "ilike"
	ComparisonOperatorStartsWith ComparisonOperator = "startswith"
	ComparisonOperatorEndsWith   ComparisonOperator = "endswith"
	ComparisonOperatorContains   ComparisonOperator = "contains"
	ComparisonOperatorRegex      ComparisonOperator = "regex"
	ComparisonOperatorBetween    ComparisonOperator = "between"
)

// Arity describes what shape of value an operator takes.
type Arity int

const (
	// ArityValue operators compare against a single Value.
	ArityValue Arity = iota
	// ArityList operators compare against a list of Values.
	ArityList
	// ArityPair operators take exactly two Values.
	ArityPair
)

// standardComparisonOperators is the closed set of comparison operators and
// their arity.
var standardComparisonOperators = map[ComparisonOperator]Arity{
	ComparisonOperatorEq:         ArityValue,
	ComparisonOperatorNe:         ArityValue,
	ComparisonOperatorGt:         ArityValue,
	ComparisonOperatorGte:        ArityValue,
	ComparisonOperatorLt:         ArityValue,
	ComparisonOperatorLte:        ArityValue,
	ComparisonOperatorIn:         ArityList,
	ComparisonOperatorNin:        ArityList,
	ComparisonOperatorLike:       ArityValue,
	ComparisonOperatorILike:      ArityValue,
	ComparisonOperatorStartsWith: ArityValue,
	ComparisonOperatorEndsWith:   ArityValue,
	ComparisonOperatorContains:   ArityValue,
	ComparisonOperatorRegex:      ArityValue,
	ComparisonOperatorBetween:    ArityPair,
}

// IsStandard checks if a comparison operator is one of the standard, built-in operators.
func (c ComparisonOperator) IsStandard() bool {
	_, ok := standardComparisonOperators[c]
	return ok
}

// Arity returns the operator's value shape. It is only meaningful for standard
// operators.
func (c ComparisonOperator) Arity() Arity {
	return standardComparisonOperators[c]
}

// GetStandardComparisonOperators returns the standard operators in a stable order.
func GetStandardComparisonOperators() []ComparisonOperator {
	return []ComparisonOperator{
		ComparisonOperatorEq, ComparisonOperatorNe,
		ComparisonOperatorGt, ComparisonOperatorGte, ComparisonOperatorLt, ComparisonOperatorLte,
		ComparisonOperatorIn, ComparisonOperatorNin,
		ComparisonOperatorLike, ComparisonOperatorILike,
		ComparisonOperatorStartsWith, ComparisonOperatorEndsWith, ComparisonOperatorContains,
		ComparisonOperatorRegex, ComparisonOperatorBetween,
	}
}

// FilterCondition defines a single condition for filtering the results of a query.
// List operators read Values (a lone non-null Value counts as a one-element
// list), Between reads exactly two Values and every other operator reads Value.
type FilterCondition struct {
	Field    string             `json:"field"`
	Operator ComparisonOperator `json:"op"`
	Value    Value              `json:"value"`
	Values   []Value            `json:"values,omitempty"`
}

// FilterGroup combines multiple filter conditions using a logical operator.
// Not takes exactly one child; And and Or take at least one.
type FilterGroup struct {
	Operator   LogicalOperator `json:"op"`
	Conditions []FilterExpr    `json:"conditions"`
}

// FilterExpr is a union type that can represent either a single filter condition
// or a group of conditions. Exactly one of the two must be set.
type FilterExpr struct {
	Condition *FilterCondition `json:"condition,omitempty"`
	Group     *FilterGroup     `json:"group,omitempty"`
}

// SortDirection specifies the direction for sorting.
type SortDirection string

// Supported sort directions.
const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// SQL returns ASC or DESC. Unknown directions render as ASC.
func (d SortDirection) SQL() string {
	if d == SortDirectionDesc {
		return "DESC"
	}
	return "ASC"
}

// Reverse returns the opposite direction.
func (d SortDirection) Reverse() SortDirection {
	if d == SortDirectionDesc {
		return SortDirectionAsc
	}
	return SortDirectionDesc
}

// SortField defines the sorting order for a specific field.
type SortField struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// Asc is shorthand for an ascending SortField.
func Asc(field string) SortField { return SortField{Field: field, Direction: SortDirectionAsc} }

// Desc is shorthand for a descending SortField.
func Desc(field string) SortField { return SortField{Field: field, Direction: SortDirectionDesc} }

// AggregateFunc specifies the type of aggregation to be performed.
type AggregateFunc string

// Supported aggregate functions.
const (
	AggregateCount         AggregateFunc = "count"
	AggregateCountDistinct AggregateFunc = "count_distinct"
	AggregateSum           AggregateFunc = "sum"
	AggregateAvg           AggregateFunc = "avg"
	AggregateMin           AggregateFunc = "min"
	AggregateMax           AggregateFunc = "max"
)

// Aggregate defines an aggregation over a field. Count without a field
// renders as COUNT(*); every other function requires Field.
type Aggregate struct {
	Func  AggregateFunc `json:"func"`
	Field string        `json:"field,omitempty"`
	Alias string        `json:"alias,omitempty"`
}

// ComputedField is an output column backed by a validated arithmetic
// expression, rendered as "(expression) AS alias".
type ComputedField struct {
	Alias      string `json:"alias"`
	Expression string `json:"expression"`
}

// QueryResult is a rendered statement. Params are positional: the n-th
// placeholder in SQL binds Params[n-1].
type QueryResult struct {
	SQL    string  `json:"sql"`
	Params []Value `json:"params"`
}

// Args returns Params as native Go values for database/sql.
func (r QueryResult) Args() []any {
	args := make([]any, len(r.Params))
	for i, p := range r.Params {
		args[i] = p.Interface()
	}
	return args
}
