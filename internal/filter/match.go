package filter

import (
	"strings"

	"golang.org/x/text/cases"
)

// foldMatcher compares values as case-folded strings.
type foldMatcher struct{}

func (foldMatcher) Normalize(_, value string) string {
	return cases.Fold().String(value)
}

func (foldMatcher) Compare(_, a, b string) int {
	return strings.Compare(cases.Fold().String(a), cases.Fold().String(b))
}

// NormalizeSubstring returns a copy of sf with every component normalized
// for its attribute.
func NormalizeSubstring(m Matcher, sf *SubstringFilter) *SubstringFilter {
	out := &SubstringFilter{
		Attribute: sf.Attribute,
		Any:       make([]string, 0, len(sf.Any)),
	}
	if sf.Initial != "" {
		out.Initial = m.Normalize(sf.Attribute, sf.Initial)
	}
	for _, a := range sf.Any {
		if a != "" {
			out.Any = append(out.Any, m.Normalize(sf.Attribute, a))
		}
	}
	if sf.Final != "" {
		out.Final = m.Normalize(sf.Attribute, sf.Final)
	}
	return out
}

// matchSubstring checks if an already normalized value matches a substring
// pattern. Components must not overlap.
func matchSubstring(value, initial string, any []string, final string) bool {
	if !strings.HasPrefix(value, initial) {
		return false
	}
	pos := len(initial)

	for _, substr := range any {
		idx := strings.Index(value[pos:], substr)
		if idx < 0 {
			return false
		}
		pos += idx + len(substr)
	}

	return len(value)-pos >= len(final) && strings.HasSuffix(value, final)
}
