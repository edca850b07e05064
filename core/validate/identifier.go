// Package validate provides the character-class checks that decide whether a
// string may be spliced into SQL text. Identifiers (tables, columns, aliases)
// and computed-field expressions are never escaped or sanitized: they are
// either accepted verbatim or rejected with an error.
package validate

import (
	"errors"
	"fmt"
)

// MaxIdentifierLength is the longest identifier accepted. It matches the
// PostgreSQL NAMEDATALEN limit so that a name is never silently truncated.
const MaxIdentifierLength = 63

var (
	// ErrInvalidIdentifier is returned when a table, column or alias name fails
	// IsValidIdentifier.
	ErrInvalidIdentifier = errors.New("invalid SQL identifier")

	// ErrInvalidExpression is returned when a computed-field expression fails
	// IsValidExpression.
	ErrInvalidExpression = errors.New("invalid SQL expression")
)

// IsValidIdentifier reports whether s matches ^[A-Za-z_][A-Za-z0-9_]*$ and is
// at most MaxIdentifierLength bytes long.
func IsValidIdentifier(s string) bool {
	if s == "" || len(s) > MaxIdentifierLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', isLetter(c):
		case isDigit(c) && i > 0:
		default:
			return false
		}
	}
	return true
}

// AssertIdentifier returns an error wrapping ErrInvalidIdentifier when s is not
// a valid identifier. context names the role of the identifier ("table",
// "sort field", ...) and is only used for the message.
func AssertIdentifier(s, context string) error {
	if !IsValidIdentifier(s) {
		return fmt.Errorf("%w: %s name %q must start with a letter or underscore, contain only ASCII letters, digits or underscores and be 1-%d characters", ErrInvalidIdentifier, context, s, MaxIdentifierLength)
	}
	return nil
}

// AssertIdentifiers checks every name in names and returns the first failure.
func AssertIdentifiers(names []string, context string) error {
	for _, name := range names {
		if err := AssertIdentifier(name, context); err != nil {
			return err
		}
	}
	return nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
