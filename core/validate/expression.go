package validate

import (
	"fmt"
	"strings"
)

// MaxExpressionLength bounds the size of a computed-field expression.
const MaxExpressionLength = 1000

// allowedFunctions is the closed set of function names that may appear in a
// computed-field expression. Any other identifier followed by "(" is rejected.
var allowedFunctions = map[string]struct{}{
	"abs":      {},
	"avg":      {},
	"ceil":     {},
	"coalesce": {},
	"count":    {},
	"floor":    {},
	"greatest": {},
	"least":    {},
	"length":   {},
	"lower":    {},
	"max":      {},
	"min":      {},
	"nullif":   {},
	"round":    {},
	"sum":      {},
	"trim":     {},
	"upper":    {},
}

// deniedKeywords may not appear as a bare word anywhere in an expression, even
// as a column reference. Words that merely contain them ("created_at",
// "order_total") are fine.
var deniedKeywords = map[string]struct{}{
	"select": {}, "insert": {}, "update": {}, "delete": {}, "drop": {}, "truncate": {},
	"alter": {}, "create": {}, "grant": {}, "revoke": {}, "exec": {}, "execute": {},
	"union": {}, "into": {}, "from": {}, "where": {}, "having": {}, "group": {},
	"order": {}, "limit": {}, "offset": {}, "fetch": {}, "returning": {},
	"sleep": {}, "benchmark": {}, "waitfor": {}, "pg_sleep": {}, "load_file": {},
	"char": {}, "chr": {}, "ascii": {}, "hex": {}, "unhex": {}, "convert": {}, "cast": {},
	"encode": {}, "decode": {},
}

// deniedFragments are rejected wherever they occur, case-insensitively.
var deniedFragments = []string{"--", "/*", "*/", "pg_", "sqlite_", "information_schema", "0x"}

// IsValidExpression reports whether s is safe to use as the body of a computed
// field. Only identifiers (optionally dotted), numeric literals, whitespace,
// the arithmetic operators + - * / %, commas and balanced parentheses are
// accepted, and a function call must name one of the allowed functions.
// Semicolons, quotes and comment markers are always rejected.
func IsValidExpression(s string) bool {
	return checkExpression(s) == ""
}

// AssertExpression returns an error wrapping ErrInvalidExpression when s is not
// a valid computed-field expression.
func AssertExpression(s, context string) error {
	if reason := checkExpression(s); reason != "" {
		return fmt.Errorf("%w: %s %q: %s", ErrInvalidExpression, context, s, reason)
	}
	return nil
}

// ExpressionIdentifiers validates s like AssertExpression and returns the
// column references it contains, in order of first appearance. Function
// names are not included.
func ExpressionIdentifiers(s string) ([]string, error) {
	var idents []string
	seen := make(map[string]struct{})
	reason := scanExpression(s, func(word string) {
		if _, ok := seen[word]; ok {
			return
		}
		seen[word] = struct{}{}
		idents = append(idents, word)
	})
	if reason != "" {
		return nil, fmt.Errorf("%w: %q: %s", ErrInvalidExpression, s, reason)
	}
	return idents, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func checkExpression(s string) string {
	return scanExpression(s, nil)
}

// scanExpression returns the reason s is rejected, or "" if it is valid.
// column, when set, receives each identifier that is not a function call.
func scanExpression(s string, column func(string)) string {
	if strings.TrimSpace(s) == "" {
		return "expression is empty"
	}
	if len(s) > MaxExpressionLength {
		return fmt.Sprintf("expression exceeds %d characters", MaxExpressionLength)
	}
	lower := strings.ToLower(s)
	for _, frag := range deniedFragments {
		if strings.Contains(lower, frag) {
			return fmt.Sprintf("contains forbidden sequence %q", frag)
		}
	}

	depth := 0
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case isSpace(c):
			i++
		case c == '(':
			depth++
			i++
		case c == ')':
			depth--
			if depth < 0 {
				return "unbalanced parentheses"
			}
			i++
		case strings.IndexByte("+-*/%,", c) >= 0:
			i++
		case isDigit(c):
			j := i
			for j < len(s) && (isDigit(s[j]) || s[j] == '.') {
				j++
			}
			if strings.Count(s[i:j], ".") > 1 {
				return fmt.Sprintf("malformed number %q", s[i:j])
			}
			if j < len(s) && (isLetter(s[j]) || s[j] == '_') {
				return fmt.Sprintf("malformed token near %q", s[i:])
			}
			i = j
		case isLetter(c) || c == '_':
			j := i
			for j < len(s) && (isLetter(s[j]) || isDigit(s[j]) || s[j] == '_' || s[j] == '.') {
				j++
			}
			word := s[i:j]
			if reason := checkWord(word); reason != "" {
				return reason
			}
			k := j
			for k < len(s) && isSpace(s[k]) {
				k++
			}
			if k < len(s) && s[k] == '(' {
				if _, ok := allowedFunctions[strings.ToLower(word)]; !ok {
					return fmt.Sprintf("function %q is not allowed", word)
				}
			} else if column != nil {
				column(word)
			}
			i = j
		default:
			return fmt.Sprintf("character %q is not allowed", c)
		}
	}
	if depth != 0 {
		return "unbalanced parentheses"
	}
	return ""
}

// checkWord validates a (possibly dotted) identifier token.
func checkWord(word string) string {
	for _, part := range strings.Split(word, ".") {
		if !IsValidIdentifier(part) {
			return fmt.Sprintf("invalid identifier %q", word)
		}
		if _, denied := deniedKeywords[strings.ToLower(part)]; denied {
			return fmt.Sprintf("keyword %q is not allowed", part)
		}
	}
	return ""
}
