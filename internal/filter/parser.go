package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Parser errors
var (
	ErrEmptyFilter      = errors.New("empty filter")
	ErrInvalidFilter    = errors.New("invalid filter syntax")
	ErrUnbalancedParens = errors.New("unbalanced parentheses")
	ErrMissingAttribute = errors.New("missing attribute name")
	ErrInvalidEscape    = errors.New("invalid escape sequence")
)

// Parse parses a filter string into a Filter structure.
// Supports RFC 4515 filter syntax:
//   - (attr=value)     - equality
//   - (attr=*)         - presence
//   - (attr=*val*)     - substring
//   - (attr>=value)    - greater or equal
//   - (attr<=value)    - less or equal
//   - (&(f1)(f2)...)   - AND
//   - (|(f1)(f2)...)   - OR
//   - (!(filter))      - NOT
//
// Values may contain \XX hex escapes, e.g. \2a for a literal asterisk.
// A bare simple filter without parentheses is accepted.
func Parse(filterStr string) (*Filter, error) {
	filterStr = strings.TrimSpace(filterStr)
	if filterStr == "" {
		return nil, ErrEmptyFilter
	}

	return parseFilter(filterStr)
}

// MustParse is like Parse but panics on error.
func MustParse(filterStr string) *Filter {
	f, err := Parse(filterStr)
	if err != nil {
		panic(fmt.Sprintf("filter: Parse(%q): %v", filterStr, err))
	}
	return f
}

func parseFilter(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyFilter
	}

	// Must start and end with parentheses
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		// Try wrapping simple filters
		if !strings.ContainsAny(s, "()") {
			s = "(" + s + ")"
		} else {
			return nil, ErrInvalidFilter
		}
	}

	end, err := matchingParen(s)
	if err != nil {
		return nil, err
	}
	if end != len(s)-1 {
		return nil, ErrInvalidFilter
	}

	inner := s[1 : len(s)-1]
	if inner == "" {
		return nil, ErrEmptyFilter
	}

	switch inner[0] {
	case '&':
		return parseComposite(inner[1:], NewAndFilter)
	case '|':
		return parseComposite(inner[1:], NewOrFilter)
	case '!':
		child, err := parseFilter(inner[1:])
		if err != nil {
			return nil, err
		}
		return NewNotFilter(child), nil
	default:
		return parseSimpleFilter(inner)
	}
}

func parseComposite(s string, build func(...*Filter) *Filter) (*Filter, error) {
	children, err := parseFilterList(s)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, ErrInvalidFilter
	}
	return build(children...), nil
}

// matchingParen returns the index of the paren closing s[0].
func matchingParen(s string) (int, error) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
			if depth < 0 {
				return -1, ErrUnbalancedParens
			}
		}
	}
	return -1, ErrUnbalancedParens
}

func parseFilterList(s string) ([]*Filter, error) {
	var filters []*Filter
	s = strings.TrimSpace(s)

	for len(s) > 0 {
		if s[0] != '(' {
			return nil, ErrInvalidFilter
		}

		end, err := matchingParen(s)
		if err != nil {
			return nil, err
		}

		f, err := parseFilter(s[:end+1])
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)

		s = strings.TrimSpace(s[end+1:])
	}

	return filters, nil
}

func parseSimpleFilter(s string) (*Filter, error) {
	idx := strings.IndexByte(s, '=')
	if idx < 0 {
		return nil, ErrInvalidFilter
	}

	op := byte('=')
	attrEnd := idx
	if idx > 0 && (s[idx-1] == '>' || s[idx-1] == '<') {
		op = s[idx-1]
		attrEnd = idx - 1
	}

	attr := strings.TrimSpace(s[:attrEnd])
	raw := s[idx+1:]
	if attr == "" {
		return nil, ErrMissingAttribute
	}
	if strings.ContainsAny(attr, "*~\\") {
		return nil, ErrInvalidFilter
	}

	switch op {
	case '>', '<':
		value, err := unescapeValue(raw)
		if err != nil {
			return nil, err
		}
		if op == '>' {
			return NewGreaterOrEqualFilter(attr, value), nil
		}
		return NewLessOrEqualFilter(attr, value), nil
	}

	// Presence filter: (attr=*)
	if raw == "*" {
		return NewPresentFilter(attr), nil
	}

	if strings.Contains(raw, "*") {
		return parseSubstringFilter(attr, raw)
	}

	value, err := unescapeValue(raw)
	if err != nil {
		return nil, err
	}
	return NewEqualityFilter(attr, value), nil
}

func parseSubstringFilter(attr, raw string) (*Filter, error) {
	parts := strings.Split(raw, "*")
	for i, p := range parts {
		v, err := unescapeValue(p)
		if err != nil {
			return nil, err
		}
		parts[i] = v
	}

	sf := &SubstringFilter{
		Attribute: attr,
		Initial:   parts[0],
		Final:     parts[len(parts)-1],
	}
	for _, p := range parts[1 : len(parts)-1] {
		if p != "" {
			sf.Any = append(sf.Any, p)
		}
	}

	return NewSubstringFilter(sf), nil
}

// unescapeValue decodes RFC 4515 \XX escapes.
func unescapeValue(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+3 > len(s) {
			return "", ErrInvalidEscape
		}
		n, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
		if err != nil {
			return "", ErrInvalidEscape
		}
		b.WriteByte(byte(n))
		i += 2
	}
	return b.String(), nil
}

// escapeValue encodes the characters RFC 4515 requires to be escaped.
func escapeValue(s string) string {
	if !strings.ContainsAny(s, "*()\\\x00") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '*', '(', ')', '\\', 0:
			fmt.Fprintf(&b, `\%02x`, c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
