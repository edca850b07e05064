// Package security reconciles trusted, code-authored filters with untrusted,
// request-derived ones. User filters are checked against a FilterValidator
// policy and then ANDed below the trusted conjunction, so no user OR branch
// can remove a trusted predicate.
package security

import (
	"fmt"
	"slices"

	"github.com/asaidimu/go-sqlgate/core/query"
	"github.com/asaidimu/go-sqlgate/core/validate"
)

const (
	// DefaultMaxDepth is the nesting limit used when none is configured.
	DefaultMaxDepth = 5

	// MaxValueNodes caps the number of values a single user filter may carry
	// across all of its IN/NOT IN/BETWEEN lists.
	MaxValueNodes = 10000
)

// FilterValidatorConfig is the serializable form of a FilterValidator.
type FilterValidatorConfig struct {
	AllowedFields   []string `mapstructure:"allowed_fields" json:"allowed_fields,omitempty"`
	DeniedOperators []string `mapstructure:"denied_operators" json:"denied_operators,omitempty"`
	MaxDepth        int      `mapstructure:"max_depth" json:"max_depth,omitempty"`
}

// FilterValidator is an immutable policy for user filters. An empty allow-list
// means every valid identifier is allowed. It is safe for concurrent use.
type FilterValidator struct {
	allowed  map[string]struct{}
	fields   []string
	denied   map[query.ComparisonOperator]struct{}
	maxDepth int
}

// NewFilterValidator creates a validator. A negative maxDepth is treated as 0,
// which admits only single conditions.
func NewFilterValidator(allowedFields []string, deniedOperators []query.ComparisonOperator, maxDepth int) *FilterValidator {
	v := &FilterValidator{
		allowed:  make(map[string]struct{}, len(allowedFields)),
		denied:   make(map[query.ComparisonOperator]struct{}, len(deniedOperators)),
		maxDepth: max(maxDepth, 0),
	}
	for _, f := range allowedFields {
		if _, seen := v.allowed[f]; !seen {
			v.allowed[f] = struct{}{}
			v.fields = append(v.fields, f)
		}
	}
	for _, op := range deniedOperators {
		v.denied[op] = struct{}{}
	}
	return v
}

// NewFilterValidatorFromConfig builds a validator from configuration, checking
// that every allowed field is a valid identifier and every denied operator is
// known. A zero MaxDepth selects DefaultMaxDepth.
func NewFilterValidatorFromConfig(cfg FilterValidatorConfig) (*FilterValidator, error) {
	if err := validate.AssertIdentifiers(cfg.AllowedFields, "allowed field"); err != nil {
		return nil, err
	}
	ops := make([]query.ComparisonOperator, 0, len(cfg.DeniedOperators))
	for _, name := range cfg.DeniedOperators {
		op := query.ComparisonOperator(name)
		if !op.IsStandard() {
			return nil, fmt.Errorf("%w: %q in denied operators", query.ErrUnknownOperator, name)
		}
		ops = append(ops, op)
	}
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("max depth must not be negative, got %d", cfg.MaxDepth)
	}
	depth := cfg.MaxDepth
	if depth == 0 {
		depth = DefaultMaxDepth
	}
	return NewFilterValidator(cfg.AllowedFields, ops, depth), nil
}

// DefaultFilterValidator allows every field, denies regex and limits nesting
// to DefaultMaxDepth. Use it for request-derived filters.
func DefaultFilterValidator() *FilterValidator {
	return NewFilterValidator(nil, []query.ComparisonOperator{query.ComparisonOperatorRegex}, DefaultMaxDepth)
}

// PermissiveFilterValidator denies no operator. Only for internal filters.
func PermissiveFilterValidator() *FilterValidator {
	return NewFilterValidator(nil, nil, DefaultMaxDepth)
}

// AllowFields returns a copy of v restricted to fields.
func (v *FilterValidator) AllowFields(fields ...string) *FilterValidator {
	return NewFilterValidator(fields, v.DeniedOperators(), v.maxDepth)
}

// DenyOperators returns a copy of v that denies ops instead of its current set.
func (v *FilterValidator) DenyOperators(ops ...query.ComparisonOperator) *FilterValidator {
	return NewFilterValidator(v.fields, ops, v.maxDepth)
}

// WithMaxDepth returns a copy of v with a different nesting limit.
func (v *FilterValidator) WithMaxDepth(depth int) *FilterValidator {
	return NewFilterValidator(v.fields, v.DeniedOperators(), depth)
}

// AllowedFields returns the allow-list in insertion order; nil means unrestricted.
func (v *FilterValidator) AllowedFields() []string {
	return slices.Clone(v.fields)
}

// DeniedOperators returns the denied operators in canonical operator order.
func (v *FilterValidator) DeniedOperators() []query.ComparisonOperator {
	var out []query.ComparisonOperator
	for _, op := range query.GetStandardComparisonOperators() {
		if _, ok := v.denied[op]; ok {
			out = append(out, op)
		}
	}
	return out
}

func (v *FilterValidator) MaxDepth() int {
	return v.maxDepth
}

// Config returns the serializable form of v.
func (v *FilterValidator) Config() FilterValidatorConfig {
	cfg := FilterValidatorConfig{AllowedFields: v.AllowedFields(), MaxDepth: v.maxDepth}
	for _, op := range v.DeniedOperators() {
		cfg.DeniedOperators = append(cfg.DeniedOperators, string(op))
	}
	return cfg
}

// AllowsField reports whether field may appear in a user filter.
func (v *FilterValidator) AllowsField(field string) bool {
	if len(v.allowed) == 0 {
		return validate.IsValidIdentifier(field)
	}
	_, ok := v.allowed[field]
	return ok
}

// CheckFields rejects the first name that is not on a non-empty allow-list.
// path locates the names in the request, e.g. "fields" or "group_by".
func (v *FilterValidator) CheckFields(path string, names ...string) error {
	if len(v.allowed) == 0 {
		return nil
	}
	for _, name := range names {
		if _, ok := v.allowed[name]; !ok {
			return &ValidationError{Kind: FieldNotAllowed, Path: path, Field: name, Allowed: v.AllowedFields()}
		}
	}
	return nil
}

// Denies reports whether op is rejected in user filters.
func (v *FilterValidator) Denies(op query.ComparisonOperator) bool {
	_, ok := v.denied[op]
	return ok
}

// Validate checks a single user filter against the policy. The root is at
// depth 0 and every logical node below it adds one. Structural problems are
// reported with the query package's sentinels; policy violations as
// *ValidationError.
func (v *FilterValidator) Validate(expr query.FilterExpr) error {
	return v.validate(expr, "filter")
}

func (v *FilterValidator) validate(expr query.FilterExpr, path string) error {
	nodes := 0
	return v.walk(expr, path, 0, &nodes)
}

func (v *FilterValidator) walk(expr query.FilterExpr, path string, depth int, nodes *int) error {
	switch {
	case expr.Condition != nil && expr.Group != nil:
		return fmt.Errorf("%w at %s: node has both a condition and a group", query.ErrInvalidValue, path)
	case expr.Condition != nil:
		return v.condition(expr.Condition, path, nodes)
	case expr.Group == nil:
		return fmt.Errorf("%w at %s: empty filter node", query.ErrInvalidValue, path)
	}

	g := expr.Group
	depth++
	if depth > v.maxDepth {
		return &ValidationError{Kind: DepthExceeded, Path: path, Depth: depth, Max: v.maxDepth}
	}
	switch g.Operator {
	case query.LogicalOperatorAnd, query.LogicalOperatorOr:
		if len(g.Conditions) == 0 {
			return fmt.Errorf("%w at %s", query.ErrEmptyCompound, path)
		}
	case query.LogicalOperatorNot:
		if len(g.Conditions) != 1 {
			return fmt.Errorf("%w at %s: NOT takes exactly one child, got %d", query.ErrInvalidValue, path, len(g.Conditions))
		}
	default:
		return fmt.Errorf("%w at %s: logical operator %q", query.ErrUnknownOperator, path, g.Operator)
	}
	for i, child := range g.Conditions {
		if err := v.walk(child, fmt.Sprintf("%s.conditions[%d]", path, i), depth, nodes); err != nil {
			return err
		}
	}
	return nil
}

func (v *FilterValidator) condition(c *query.FilterCondition, path string, nodes *int) error {
	if len(v.allowed) > 0 {
		if _, ok := v.allowed[c.Field]; !ok {
			return &ValidationError{Kind: FieldNotAllowed, Path: path, Field: c.Field, Allowed: v.AllowedFields()}
		}
	}
	if err := validate.AssertIdentifier(c.Field, "filter field"); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if !c.Operator.IsStandard() {
		return fmt.Errorf("%w at %s: %q", query.ErrUnknownOperator, path, c.Operator)
	}
	if v.Denies(c.Operator) {
		return &ValidationError{Kind: OperatorDenied, Path: path, Field: c.Field, Operator: c.Operator}
	}
	if err := c.CheckArity(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	*nodes += 1 + len(c.Values)
	if *nodes > MaxValueNodes {
		return &ValidationError{Kind: TooManyNodes, Path: path, Max: MaxValueNodes}
	}
	return nil
}

// MergeFilters combines trusted filters with user filters after validating
// every user filter against v; a nil v means DefaultFilterValidator. Trusted
// filters are not checked. The result is And(And(trusted...), And(user...)),
// which keeps every trusted predicate at the top level of the conjunction.
// On any violation no filter is returned.
func MergeFilters(trusted, user []query.FilterExpr, v *FilterValidator) (query.FilterExpr, error) {
	if v == nil {
		v = DefaultFilterValidator()
	}
	for i, expr := range user {
		if err := v.validate(expr, fmt.Sprintf("user[%d]", i)); err != nil {
			return query.FilterExpr{}, err
		}
	}

	switch {
	case len(trusted) == 0 && len(user) == 0:
		return query.FilterExpr{}, fmt.Errorf("%w: nothing to merge", query.ErrEmptyCompound)
	case len(user) == 0:
		return query.And(slices.Clone(trusted)...), nil
	case len(trusted) == 0:
		return query.And(slices.Clone(user)...), nil
	}
	return query.And(
		query.And(slices.Clone(trusted)...),
		query.And(slices.Clone(user)...),
	), nil
}
