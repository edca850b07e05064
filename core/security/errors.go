package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-sqlgate/core/query"
)

// ViolationKind classifies why a user filter was rejected.
type ViolationKind string

const (
	FieldNotAllowed ViolationKind = "FIELD_NOT_ALLOWED"
	OperatorDenied  ViolationKind = "OPERATOR_DENIED"
	DepthExceeded   ViolationKind = "DEPTH_EXCEEDED"
	TooManyNodes    ViolationKind = "TOO_MANY_NODES"
)

var (
	// ErrPolicyViolation matches every *ValidationError.
	ErrPolicyViolation = errors.New("filter rejected by policy")

	ErrFieldNotAllowed = errors.New("field not allowed")
	ErrOperatorDenied  = errors.New("operator denied")
	ErrDepthExceeded   = errors.New("filter nesting too deep")
	ErrTooManyNodes    = errors.New("filter has too many value nodes")
)

var kindErrors = map[ViolationKind]error{
	FieldNotAllowed: ErrFieldNotAllowed,
	OperatorDenied:  ErrOperatorDenied,
	DepthExceeded:   ErrDepthExceeded,
	TooManyNodes:    ErrTooManyNodes,
}

// ValidationError is returned by the gate when a user filter breaks policy.
// Path locates the offending node, e.g. "user[1].conditions[0]".
type ValidationError struct {
	Kind     ViolationKind            `json:"code"`
	Path     string                   `json:"path,omitempty"`
	Field    string                   `json:"field,omitempty"`
	Operator query.ComparisonOperator `json:"operator,omitempty"`
	Allowed  []string                 `json:"allowed,omitempty"`
	Depth    int                      `json:"depth,omitempty"`
	Max      int                      `json:"max,omitempty"`
}

func (e *ValidationError) Error() string {
	var msg string
	switch e.Kind {
	case FieldNotAllowed:
		msg = fmt.Sprintf("field %q is not allowed, allowed fields: %s", e.Field, strings.Join(e.Allowed, ", "))
	case OperatorDenied:
		msg = fmt.Sprintf("operator %q is denied for field %q", e.Operator, e.Field)
	case DepthExceeded:
		msg = fmt.Sprintf("filter nesting depth %d exceeds maximum %d", e.Depth, e.Max)
	case TooManyNodes:
		msg = fmt.Sprintf("filter contains too many value nodes (max %d)", e.Max)
	default:
		msg = string(e.Kind)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s at %s: %s", ErrPolicyViolation, e.Path, msg)
	}
	return fmt.Sprintf("%s: %s", ErrPolicyViolation, msg)
}

// Is matches ErrPolicyViolation and the sentinel for the error's kind.
func (e *ValidationError) Is(target error) bool {
	if target == ErrPolicyViolation {
		return true
	}
	sentinel, ok := kindErrors[e.Kind]
	return ok && target == sentinel
}
