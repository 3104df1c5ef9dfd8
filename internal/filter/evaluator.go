package filter

import (
	"github.com/KilimcininKorOglu/obacore/internal/entry"
)

// Matcher supplies attribute-aware value semantics. *schema.Schema
// implements it.
type Matcher interface {
	// Normalize returns the canonical form of value for attr.
	Normalize(attr, value string) string
	// Compare orders two values of attr.
	Compare(attr, a, b string) int
}

// Evaluator evaluates search filters against entries.
type Evaluator struct {
	m Matcher
}

// NewEvaluator creates a new filter evaluator with the given matcher.
// If nil, case-insensitive string matching is used.
func NewEvaluator(m Matcher) *Evaluator {
	if m == nil {
		m = foldMatcher{}
	}
	return &Evaluator{
		m: m,
	}
}

// Evaluate tests whether an entry matches a filter.
func (e *Evaluator) Evaluate(filter *Filter, en *entry.Entry) bool {
	if filter == nil || en == nil {
		return false
	}

	switch filter.Type {
	case FilterAnd:
		// Empty AND filter matches everything (vacuous truth)
		for _, child := range filter.Children {
			if !e.Evaluate(child, en) {
				return false
			}
		}
		return true
	case FilterOr:
		for _, child := range filter.Children {
			if e.Evaluate(child, en) {
				return true
			}
		}
		return false
	case FilterNot:
		if filter.Child == nil {
			return false
		}
		return !e.Evaluate(filter.Child, en)
	case FilterEquality:
		return e.evaluateEquality(filter.Attribute, filter.Value, en)
	case FilterSubstring:
		return e.evaluateSubstring(filter.Substring, en)
	case FilterPresent:
		return en.Has(filter.Attribute)
	case FilterGreaterOrEqual:
		return e.any(filter.Attribute, en, func(v string) bool {
			return e.m.Compare(filter.Attribute, v, filter.Value) >= 0
		})
	case FilterLessOrEqual:
		return e.any(filter.Attribute, en, func(v string) bool {
			return e.m.Compare(filter.Attribute, v, filter.Value) <= 0
		})
	default:
		return false
	}
}

// evaluateEquality tests if an entry has an attribute with the given value
// under the attribute's normalization.
func (e *Evaluator) evaluateEquality(attr, value string, en *entry.Entry) bool {
	want := e.m.Normalize(attr, value)
	return e.any(attr, en, func(v string) bool {
		return e.m.Normalize(attr, v) == want
	})
}

// evaluateSubstring tests if an entry has an attribute matching the substring pattern.
func (e *Evaluator) evaluateSubstring(sf *SubstringFilter, en *entry.Entry) bool {
	if sf == nil {
		return false
	}
	p := NormalizeSubstring(e.m, sf)
	return e.any(sf.Attribute, en, func(v string) bool {
		return matchSubstring(e.m.Normalize(sf.Attribute, v), p.Initial, p.Any, p.Final)
	})
}

func (e *Evaluator) any(attr string, en *entry.Entry, pred func(string) bool) bool {
	for _, v := range en.Get(attr) {
		if pred(v) {
			return true
		}
	}
	return false
}

// Matcher returns the evaluator's matcher.
func (e *Evaluator) Matcher() Matcher {
	return e.m
}
