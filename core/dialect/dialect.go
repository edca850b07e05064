// Package dialect describes the SQL variants the builders can target. A Dialect
// is a small strategy object: it decides how placeholders and quoted
// identifiers look and which optional clauses are available, so the four
// statement builders share one rendering path.
package dialect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownDialect is returned by ParseKind and For for unsupported names.
var ErrUnknownDialect = errors.New("unknown SQL dialect")

// Kind names a supported dialect.
type Kind string

// Supported dialects.
const (
	KindPostgres Kind = "postgres"
	KindSQLite   Kind = "sqlite"
)

// Dialect captures every place where the generated SQL differs between
// database engines.
type Dialect interface {
	// Name returns the dialect's Kind.
	Name() Kind

	// Placeholder returns the bind marker for the n-th parameter (1-based).
	Placeholder(n int) string

	// QuoteIdentifier wraps a validated identifier in the dialect's quote
	// characters.
	QuoteIdentifier(name string) string

	// SupportsReturning reports whether INSERT/UPDATE/DELETE accept a
	// RETURNING clause.
	SupportsReturning() bool

	// SupportsILike reports whether ILIKE exists. When it does not, the
	// builders fall back to LIKE.
	SupportsILike() bool

	// RegexOperator returns the infix regex match operator, or "" when the
	// dialect has none and the builders fall back to LIKE.
	RegexOperator() string

	// RequiresLimitForOffset reports whether OFFSET is only valid after a
	// LIMIT clause.
	RequiresLimitForOffset() bool
}

type postgres struct{}

func (postgres) Name() Kind { return KindPostgres }
func (postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgres) QuoteIdentifier(s string) string { return quote(s) }
func (postgres) SupportsReturning() bool { return true }
func (postgres) SupportsILike() bool { return true }
func (postgres) RegexOperator() string { return "~" }
func (postgres) RequiresLimitForOffset() bool { return false }

type sqlite struct{}

func (sqlite) Name() Kind { return KindSQLite }
func (sqlite) Placeholder(int) string { return "?" }
func (sqlite) QuoteIdentifier(s string) string { return quote(s) }
func (sqlite) SupportsReturning() bool { return false }
func (sqlite) SupportsILike() bool { return false }
func (sqlite) RegexOperator() string { return "" }
func (sqlite) RequiresLimitForOffset() bool { return true }

// Postgres renders $n placeholders and supports RETURNING, ILIKE and ~.
var Postgres Dialect = postgres{}

// SQLite renders ? placeholders. LIKE is already case-insensitive for ASCII
// there, so ILIKE and regex matches degrade to LIKE.
var SQLite Dialect = sqlite{}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ParseKind maps a user-facing name ("postgres", "postgresql", "pg",
// "sqlite", "sqlite3") to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg":
		return KindPostgres, nil
	case "sqlite", "sqlite3":
		return KindSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
}

// For returns the Dialect for kind.
func For(kind Kind) (Dialect, error) {
	switch kind {
	case KindPostgres:
		return Postgres, nil
	case KindSQLite:
		return SQLite, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, string(kind))
	}
}

// Named is shorthand for ParseKind followed by For.
func Named(name string) (Dialect, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	return For(kind)
}
