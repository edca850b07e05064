package query

import (
	"fmt"
	"regexp"
	"strings"
)

// truth is SQL's three-valued logic: a comparison with NULL is unknown, and
// WHERE keeps a row only when its predicate is true.
type truth uint8

const (
	truthFalse truth = iota
	truthTrue
	truthUnknown
)

func truthOf(b bool) truth {
	if b {
		return truthTrue
	}
	return truthFalse
}

// Match evaluates expr against an in-memory row with SQL's three-valued
// logic: comparisons involving NULL or a missing field are unknown and the
// row only matches when the whole predicate is true. Values of different
// types order as in CompareValues, LIKE is case-sensitive and regex uses Go
// syntax. It filters rows that never reach a database.
func Match(expr FilterExpr, row map[string]Value) (bool, error) {
	t, err := evaluate(expr, row)
	if err != nil {
		return false, err
	}
	return t == truthTrue, nil
}

func evaluate(expr FilterExpr, row map[string]Value) (truth, error) {
	switch {
	case expr.Condition != nil && expr.Group == nil:
		return evaluateCondition(expr.Condition, row)
	case expr.Group != nil && expr.Condition == nil:
		return evaluateGroup(expr.Group, row)
	default:
		return truthFalse, invalidValue("filter", "filter must set exactly one of condition or group")
	}
}

func evaluateGroup(g *FilterGroup, row map[string]Value) (truth, error) {
	switch g.Operator {
	case LogicalOperatorNot:
		if len(g.Conditions) != 1 {
			return truthFalse, invalidValue("not", "NOT takes exactly one child, got %d", len(g.Conditions))
		}
		t, err := evaluate(g.Conditions[0], row)
		if err != nil {
			return truthFalse, err
		}
		switch t {
		case truthTrue:
			return truthFalse, nil
		case truthFalse:
			return truthTrue, nil
		}
		return truthUnknown, nil
	case LogicalOperatorAnd, LogicalOperatorOr:
	default:
		return truthFalse, fmt.Errorf("%w: logical operator %q", ErrUnknownOperator, g.Operator)
	}
	if len(g.Conditions) == 0 {
		return truthFalse, fmt.Errorf("%w: %s", ErrEmptyCompound, strings.ToUpper(string(g.Operator)))
	}

	// AND short-circuits on false, OR on true; unknown is sticky otherwise.
	decisive, result := truthFalse, truthTrue
	if g.Operator == LogicalOperatorOr {
		decisive, result = truthTrue, truthFalse
	}
	for _, child := range g.Conditions {
		t, err := evaluate(child, row)
		if err != nil {
			return truthFalse, err
		}
		if t == decisive {
			return decisive, nil
		}
		if t == truthUnknown {
			result = truthUnknown
		}
	}
	return result, nil
}

func evaluateCondition(c *FilterCondition, row map[string]Value) (truth, error) {
	if err := c.CheckArity(); err != nil {
		return truthFalse, err
	}
	fieldValue, ok := row[c.Field]
	if !ok {
		fieldValue = Null()
	}

	switch c.Operator {
	case ComparisonOperatorEq:
		if c.Value.IsNull() {
			return truthOf(fieldValue.IsNull()), nil
		}
		return compareTruth(fieldValue, c.Value, func(n int) bool { return n == 0 })
	case ComparisonOperatorNe:
		if c.Value.IsNull() {
			return truthOf(!fieldValue.IsNull()), nil
		}
		return compareTruth(fieldValue, c.Value, func(n int) bool { return n != 0 })
	case ComparisonOperatorGt:
		return compareTruth(fieldValue, c.Value, func(n int) bool { return n > 0 })
	case ComparisonOperatorGte:
		return compareTruth(fieldValue, c.Value, func(n int) bool { return n >= 0 })
	case ComparisonOperatorLt:
		return compareTruth(fieldValue, c.Value, func(n int) bool { return n < 0 })
	case ComparisonOperatorLte:
		return compareTruth(fieldValue, c.Value, func(n int) bool { return n <= 0 })
	case ComparisonOperatorIn, ComparisonOperatorNin:
		values := c.list()
		if len(values) == 0 {
			return truthOf(c.Operator == ComparisonOperatorNin), nil
		}
		result := truthFalse
		for _, v := range values {
			t, err := compareTruth(fieldValue, v, func(n int) bool { return n == 0 })
			if err != nil {
				return truthFalse, err
			}
			if t == truthTrue {
				result = truthTrue
				break
			}
			if t == truthUnknown {
				result = truthUnknown
			}
		}
		if c.Operator == ComparisonOperatorNin {
			switch result {
			case truthTrue:
				return truthFalse, nil
			case truthFalse:
				return truthTrue, nil
			}
		}
		return result, nil
	case ComparisonOperatorBetween:
		values := c.list()
		low, err := compareTruth(fieldValue, values[0], func(n int) bool { return n >= 0 })
		if err != nil {
			return truthFalse, err
		}
		high, err := compareTruth(fieldValue, values[1], func(n int) bool { return n <= 0 })
		if err != nil {
			return truthFalse, err
		}
		return and(low, high), nil
	case ComparisonOperatorLike:
		return likeTruth(fieldValue, c.Value, "", "", false)
	case ComparisonOperatorILike:
		return likeTruth(fieldValue, c.Value, "", "", true)
	case ComparisonOperatorStartsWith:
		return likeTruth(fieldValue, c.Value, "", "%", false)
	case ComparisonOperatorEndsWith:
		return likeTruth(fieldValue, c.Value, "%", "", false)
	case ComparisonOperatorContains:
		return likeTruth(fieldValue, c.Value, "%", "%", false)
	case ComparisonOperatorRegex:
		if fieldValue.IsNull() || c.Value.IsNull() {
			return truthUnknown, nil
		}
		re, err := regexp.Compile(c.Value.textOf())
		if err != nil {
			return truthFalse, invalidValue(c.Field, "invalid regular expression: %v", err)
		}
		return truthOf(re.MatchString(fieldValue.textOf())), nil
	}
	return truthFalse, fmt.Errorf("%w: %s", ErrUnknownOperator, c.Operator)
}

func and(a, b truth) truth {
	if a == truthFalse || b == truthFalse {
		return truthFalse
	}
	if a == truthUnknown || b == truthUnknown {
		return truthUnknown
	}
	return truthTrue
}

func compareTruth(a, b Value, pred func(int) bool) (truth, error) {
	if a.IsNull() || b.IsNull() {
		return truthUnknown, nil
	}
	n, err := CompareValues(a, b)
	if err != nil {
		return truthFalse, err
	}
	return truthOf(pred(n)), nil
}

func likeTruth(field, pattern Value, prefix, suffix string, fold bool) (truth, error) {
	if field.IsNull() || pattern.IsNull() {
		return truthUnknown, nil
	}
	return truthOf(likeMatch(field.textOf(), prefix+pattern.textOf()+suffix, fold)), nil
}

// likeMatch implements LIKE with % and _ wildcards and no escape character.
func likeMatch(s, pattern string, fold bool) bool {
	if fold {
		s, pattern = strings.ToLower(s), strings.ToLower(pattern)
	}
	sr, pr := []rune(s), []rune(pattern)
	// Classic wildcard matching with backtracking on the last %.
	si, pi, star, mark := 0, 0, -1, 0
	for si < len(sr) {
		switch {
		case pi < len(pr) && pr[pi] == '%':
			star, mark = pi, si
			pi++
		case pi < len(pr) && (pr[pi] == '_' || pr[pi] == sr[si]):
			si++
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(pr) && pr[pi] == '%' {
		pi++
	}
	return pi == len(pr)
}
