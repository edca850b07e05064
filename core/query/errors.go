package query

import (
	"errors"
	"fmt"

	"github.com/asaidimu/go-sqlgate/core/validate"
)

var (
	// ErrInvalidValue is returned when a filter value does not fit its
	// operator's arity, or a Go value cannot be represented as a Value.
	ErrInvalidValue = errors.New("invalid filter value")

	// ErrUnknownOperator is returned for comparison or logical operators
	// outside the closed set understood by the builders.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrEmptyCompound is returned for an AND/OR group without children. Such
	// a group is never treated as "always true".
	ErrEmptyCompound = errors.New("compound filter has no children")

	// ErrInvalidCursor is returned when a cursor token cannot be decoded or
	// does not match the sort of the query it is applied to.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrIncompleteStatement is returned by Build when a statement lacks a
	// clause it cannot be rendered without, such as an UPDATE with no SET.
	ErrIncompleteStatement = errors.New("incomplete statement")

	// ErrParse is the root of every *ParseError.
	ErrParse = errors.New("filter parse error")

	// ErrInvalidIdentifier and ErrInvalidExpression are re-exported so callers
	// can match builder errors without importing the validate package.
	ErrInvalidIdentifier = validate.ErrInvalidIdentifier
	ErrInvalidExpression = validate.ErrInvalidExpression
)

// QueryValidationError represents an error found while rendering a query. It
// names the offending field and wraps the sentinel describing the failure.
type QueryValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error returns the error message for a QueryValidationError.
func (ve *QueryValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// Unwrap exposes the wrapped sentinel to errors.Is.
func (ve *QueryValidationError) Unwrap() error {
	return ve.Err
}

func invalidValue(field, format string, args ...any) error {
	return &QueryValidationError{Field: field, Message: fmt.Sprintf(format, args...), Err: ErrInvalidValue}
}

// ParseError reports where a textual filter document could not be parsed.
// It always matches ErrParse and additionally unwraps to ErrUnknownOperator
// when an unrecognized "$" key caused the failure.
type ParseError struct {
	Path    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrParse, e.Message)
	}
	return fmt.Sprintf("%s at %s: %s", ErrParse, e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is makes every ParseError match ErrParse.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
