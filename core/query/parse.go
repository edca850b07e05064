package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// mongoOperators maps the "$" keys accepted by ParseFilter to operators.
var mongoOperators = map[string]ComparisonOperator{
	"$eq":          ComparisonOperatorEq,
	"$ne":          ComparisonOperatorNe,
	"$gt":          ComparisonOperatorGt,
	"$gte":         ComparisonOperatorGte,
	"$lt":          ComparisonOperatorLt,
	"$lte":         ComparisonOperatorLte,
	"$in":          ComparisonOperatorIn,
	"$nin":         ComparisonOperatorNin,
	"$like":        ComparisonOperatorLike,
	"$ilike":       ComparisonOperatorILike,
	"$regex":       ComparisonOperatorRegex,
	"$startsWith":  ComparisonOperatorStartsWith,
	"$starts_with": ComparisonOperatorStartsWith,
	"$endsWith":    ComparisonOperatorEndsWith,
	"$ends_with":   ComparisonOperatorEndsWith,
	"$contains":    ComparisonOperatorContains,
	"$between":     ComparisonOperatorBetween,
}

// ParseFilter parses a Mongo-style JSON filter document:
//
//	{"status": "active", "age": {"$gte": 18}, "$or": [{"role": "admin"}, {"role": "owner"}]}
//
// A bare value means equality, an object of "$" keys applies operators, and
// "$and", "$or" and "$not" build groups. Several keys at one level are ANDed
// in document order. Field names are not validated here; the builders and
// the security gate do that.
func ParseFilter(data []byte) (FilterExpr, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	root, err := decodeNode(dec)
	if err != nil {
		return FilterExpr{}, &ParseError{Message: "invalid JSON: " + err.Error(), Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return FilterExpr{}, &ParseError{Message: "unexpected data after filter document"}
	}
	return parseObject(root, "$")
}

// ParseFilterString is ParseFilter for a string.
func ParseFilterString(s string) (FilterExpr, error) {
	return ParseFilter([]byte(s))
}

type nodeKind int

const (
	nodeScalar nodeKind = iota
	nodeObject
	nodeArray
)

// jsonNode is a decoded JSON value that keeps object keys in document order.
type jsonNode struct {
	kind   nodeKind
	scalar any
	keys   []string
	values []jsonNode
}

func decodeNode(dec *json.Decoder) (jsonNode, error) {
	tok, err := dec.Token()
	if err != nil {
		return jsonNode{}, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return jsonNode{kind: nodeScalar, scalar: tok}, nil
	}
	switch delim {
	case '{':
		node := jsonNode{kind: nodeObject}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return jsonNode{}, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return jsonNode{}, fmt.Errorf("object key is not a string")
			}
			child, err := decodeNode(dec)
			if err != nil {
				return jsonNode{}, err
			}
			node.keys = append(node.keys, key)
			node.values = append(node.values, child)
		}
		if _, err := dec.Token(); err != nil {
			return jsonNode{}, err
		}
		return node, nil
	case '[':
		node := jsonNode{kind: nodeArray}
		for dec.More() {
			child, err := decodeNode(dec)
			if err != nil {
				return jsonNode{}, err
			}
			node.values = append(node.values, child)
		}
		if _, err := dec.Token(); err != nil {
			return jsonNode{}, err
		}
		return node, nil
	default:
		return jsonNode{}, fmt.Errorf("unexpected delimiter %q", delim)
	}
}

func parseObject(node jsonNode, path string) (FilterExpr, error) {
	if node.kind != nodeObject {
		return FilterExpr{}, &ParseError{Path: path, Message: "expected a JSON object"}
	}
	if len(node.keys) == 0 {
		return FilterExpr{}, &ParseError{Path: path, Message: "filter object cannot be empty", Err: ErrEmptyCompound}
	}

	filters := make([]FilterExpr, 0, len(node.keys))
	for i, key := range node.keys {
		value := node.values[i]
		childPath := path + "." + key
		if key == "" {
			return FilterExpr{}, &ParseError{Path: path, Message: "field name cannot be empty"}
		}

		var (
			expr FilterExpr
			err  error
		)
		switch {
		case key == "$and" || key == "$or":
			expr, err = parseLogical(key, value, childPath)
		case key == "$not":
			var inner FilterExpr
			inner, err = parseObject(value, childPath)
			expr = Not(inner)
		case strings.HasPrefix(key, "$"):
			err = &ParseError{Path: childPath, Message: fmt.Sprintf("unknown logical operator %q", key), Err: ErrUnknownOperator}
		default:
			expr, err = parseField(key, value, childPath)
		}
		if err != nil {
			return FilterExpr{}, err
		}
		filters = append(filters, expr)
	}

	expr, _ := combine(filters)
	return expr, nil
}

func parseLogical(key string, node jsonNode, path string) (FilterExpr, error) {
	if node.kind != nodeArray {
		return FilterExpr{}, &ParseError{Path: path, Message: key + " expects an array of filters"}
	}
	if len(node.values) == 0 {
		return FilterExpr{}, &ParseError{Path: path, Message: key + " requires at least one filter", Err: ErrEmptyCompound}
	}
	children := make([]FilterExpr, 0, len(node.values))
	for i, item := range node.values {
		child, err := parseObject(item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return FilterExpr{}, err
		}
		children = append(children, child)
	}
	if key == "$and" {
		return And(children...), nil
	}
	return Or(children...), nil
}

func parseField(field string, node jsonNode, path string) (FilterExpr, error) {
	switch node.kind {
	case nodeScalar:
		v, err := scalarValue(node, path)
		if err != nil {
			return FilterExpr{}, err
		}
		return Eq(field, v), nil
	case nodeArray:
		return FilterExpr{}, &ParseError{Path: path, Message: "arrays are only accepted by $in, $nin and $between"}
	}

	if len(node.keys) == 0 {
		return FilterExpr{}, &ParseError{Path: path, Message: "operator object cannot be empty"}
	}
	conds := make([]FilterExpr, 0, len(node.keys))
	for i, key := range node.keys {
		opPath := path + "." + key
		op, ok := mongoOperators[key]
		if !ok {
			return FilterExpr{}, &ParseError{Path: opPath, Message: fmt.Sprintf("unknown operator %q", key), Err: ErrUnknownOperator}
		}
		cond, err := parseOperand(field, op, key, node.values[i], opPath)
		if err != nil {
			return FilterExpr{}, err
		}
		conds = append(conds, cond)
	}
	expr, _ := combine(conds)
	return expr, nil
}

func parseOperand(field string, op ComparisonOperator, key string, node jsonNode, path string) (FilterExpr, error) {
	switch op.Arity() {
	case ArityList, ArityPair:
		if node.kind != nodeArray {
			return FilterExpr{}, &ParseError{Path: path, Message: key + " expects an array"}
		}
		if op.Arity() == ArityPair && len(node.values) != 2 {
			return FilterExpr{}, &ParseError{Path: path, Message: fmt.Sprintf("%s expects exactly 2 values, got %d", key, len(node.values)), Err: ErrInvalidValue}
		}
		var values []Value
		for i, item := range node.values {
			v, err := scalarValue(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return FilterExpr{}, err
			}
			values = append(values, v)
		}
		return FilterExpr{Condition: &FilterCondition{Field: field, Operator: op, Values: values}}, nil
	default:
		v, err := scalarValue(node, path)
		if err != nil {
			return FilterExpr{}, err
		}
		return Simple(field, op, v), nil
	}
}

func scalarValue(node jsonNode, path string) (Value, error) {
	if node.kind != nodeScalar {
		return Value{}, &ParseError{Path: path, Message: "expected a scalar value"}
	}
	v, err := ValueOf(node.scalar)
	if err != nil {
		return Value{}, &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	return v, nil
}
