package query

import "fmt"

// KeysetCondition expands a cursor into the predicate "strictly after (or
// before) the cursor in sort order". For sorts (a, b, c) moving forward it
// produces
//
//	a > ? OR (a = ? AND b > ?) OR (a = ? AND b = ? AND c > ?)
//
// with each comparison flipped for descending fields and again for
// CursorBefore. The cursor must carry exactly the sort fields, and none of
// them may be NULL since NULL never compares.
func KeysetCondition(sorts []SortField, c Cursor, dir CursorDirection) (FilterExpr, error) {
	if len(sorts) == 0 {
		return FilterExpr{}, fmt.Errorf("%w: keyset pagination requires at least one sort field", ErrInvalidCursor)
	}
	if c.Len() != len(sorts) {
		return FilterExpr{}, fmt.Errorf("%w: cursor has %d fields but the query sorts by %d", ErrInvalidCursor, c.Len(), len(sorts))
	}

	values := make([]Value, len(sorts))
	for i, s := range sorts {
		v, ok := c.Get(s.Field)
		if !ok {
			return FilterExpr{}, fmt.Errorf("%w: cursor does not carry sort field %q", ErrInvalidCursor, s.Field)
		}
		if v.IsNull() {
			return FilterExpr{}, fmt.Errorf("%w: cursor value for %q is NULL", ErrInvalidCursor, s.Field)
		}
		values[i] = v
	}

	branches := make([]FilterExpr, 0, len(sorts))
	for i, s := range sorts {
		terms := make([]FilterExpr, 0, i+1)
		for j := 0; j < i; j++ {
			terms = append(terms, Eq(sorts[j].Field, values[j]))
		}
		terms = append(terms, Simple(s.Field, keysetOperator(s.Direction, dir), values[i]))
		branch, _ := combine(terms)
		branches = append(branches, branch)
	}
	if len(branches) == 1 {
		return branches[0], nil
	}
	return Or(branches...), nil
}

func keysetOperator(sort SortDirection, dir CursorDirection) ComparisonOperator {
	forward := dir == CursorAfter
	ascending := sort != SortDirectionDesc
	if forward == ascending {
		return ComparisonOperatorGt
	}
	return ComparisonOperatorLt
}
