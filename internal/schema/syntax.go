package schema

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// Syntax is the value type of an attribute.
type Syntax int

const (
	// SyntaxString is a non-empty UTF-8 string, matched case-insensitively.
	SyntaxString Syntax = iota
	// SyntaxInteger is a base-10 signed 64-bit integer.
	SyntaxInteger
	// SyntaxBoolean is "true" or "false" in any case.
	SyntaxBoolean
	// SyntaxReference is the UUID of another entry.
	SyntaxReference
)

// String returns the name used for the syntax in schema documents.
func (s Syntax) String() string {
	switch s {
	case SyntaxString:
		return "string"
	case SyntaxInteger:
		return "integer"
	case SyntaxBoolean:
		return "boolean"
	case SyntaxReference:
		return "reference"
	default:
		return "unknown"
	}
}

// ParseSyntax parses a syntax name.
func ParseSyntax(s string) (Syntax, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "":
		return SyntaxString, nil
	case "integer":
		return SyntaxInteger, nil
	case "boolean":
		return SyntaxBoolean, nil
	case "reference", "uuid":
		return SyntaxReference, nil
	default:
		return 0, fmt.Errorf("%w: unknown syntax %q", ErrInvalidDefinition, s)
	}
}

// Validate reports whether the value conforms to the syntax.
func (s Syntax) Validate(value string) bool {
	switch s {
	case SyntaxString:
		return ValidateString(value)
	case SyntaxInteger:
		return ValidateInteger(value)
	case SyntaxBoolean:
		return ValidateBoolean(value)
	case SyntaxReference:
		return ValidateReference(value)
	default:
		return false
	}
}

// Normalize returns the canonical form of a value, used both as the
// secondary index key and for equality matching. Values that do not
// conform to the syntax are folded as strings.
func (s Syntax) Normalize(value string) string {
	switch s {
	case SyntaxInteger:
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return strconv.FormatInt(n, 10)
		}
	case SyntaxBoolean:
		return strings.ToLower(strings.TrimSpace(value))
	case SyntaxReference:
		if u, err := uuid.Parse(strings.TrimSpace(value)); err == nil {
			return u.String()
		}
	}
	return cases.Fold().String(value)
}

// Compare orders two values according to the syntax. Integers compare
// numerically; everything else compares by normalized form.
func (s Syntax) Compare(a, b string) int {
	if s == SyntaxInteger {
		x, errA := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
		y, errB := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
		if errA == nil && errB == nil {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(s.Normalize(a), s.Normalize(b))
}

// ValidateString accepts any non-empty valid UTF-8 string.
func ValidateString(value string) bool {
	return value != "" && utf8.ValidString(value)
}

// ValidateInteger accepts base-10 integers that fit in 64 bits.
func ValidateInteger(value string) bool {
	_, err := strconv.ParseInt(value, 10, 64)
	return err == nil
}

// ValidateBoolean accepts "true" and "false", case-insensitively.
func ValidateBoolean(value string) bool {
	return strings.EqualFold(value, "true") || strings.EqualFold(value, "false")
}

// ValidateReference accepts a UUID in any of the forms uuid.Parse understands.
func ValidateReference(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}
