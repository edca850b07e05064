package security

import (
	"strings"

	"github.com/asaidimu/go-sqlgate/core/query"
	"github.com/asaidimu/go-sqlgate/core/validate"
)

// ParseSort parses a request sort string such as "name,-created_at" into sort
// fields. A leading "-" sorts descending and a leading "+" ascending. Fields
// are checked against the validator's allow-list; empty parts are skipped and
// a field may appear only once.
func (v *FilterValidator) ParseSort(spec string) ([]query.SortField, error) {
	var (
		out  []query.SortField
		seen = map[string]struct{}{}
	)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dir := query.SortDirectionAsc
		switch part[0] {
		case '-':
			dir, part = query.SortDirectionDesc, part[1:]
		case '+':
			part = part[1:]
		}
		if len(v.allowed) > 0 {
			if _, ok := v.allowed[part]; !ok {
				return nil, &ValidationError{Kind: FieldNotAllowed, Path: "sort", Field: part, Allowed: v.AllowedFields()}
			}
		}
		if err := validate.AssertIdentifier(part, "sort field"); err != nil {
			return nil, err
		}
		if _, dup := seen[part]; dup {
			return nil, &query.QueryValidationError{Field: part, Message: "sort field listed twice", Err: query.ErrInvalidValue}
		}
		seen[part] = struct{}{}
		out = append(out, query.SortField{Field: part, Direction: dir})
	}
	return out, nil
}
