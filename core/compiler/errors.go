package compiler

import (
	"errors"
	"strings"

	"github.com/asaidimu/go-sqlgate/core/security"
)

var (
	ErrInvalidDocument = errors.New("invalid query document")
	ErrTableNotAllowed = errors.New("table not allowed")
	// ErrUnscopedWrite is returned for an UPDATE or DELETE without any filter
	// unless the document sets unscoped.
	ErrUnscopedWrite = errors.New("update or delete without a filter")
	ErrLimitExceeded = errors.New("limit exceeds maximum")
)

// rejected reports whether err is a policy decision rather than a malformed
// request, and returns the reason used in events and metrics.
func rejected(err error) (string, bool) {
	var verr *security.ValidationError
	switch {
	case errors.As(err, &verr):
		return strings.ToLower(string(verr.Kind)), true
	case errors.Is(err, ErrTableNotAllowed):
		return "table_not_allowed", true
	case errors.Is(err, ErrUnscopedWrite):
		return "unscoped_write", true
	case errors.Is(err, ErrLimitExceeded):
		return "limit_exceeded", true
	}
	return "", false
}
