package filter

import (
	"strings"
)

// FilterType represents the type of filter operation.
type FilterType int

const (
	// FilterAnd represents an AND filter (&).
	FilterAnd FilterType = iota
	// FilterOr represents an OR filter (|).
	FilterOr
	// FilterNot represents a NOT filter (!).
	FilterNot
	// FilterEquality represents an equality filter (attr=value).
	FilterEquality
	// FilterSubstring represents a substring filter (attr=*value*).
	FilterSubstring
	// FilterGreaterOrEqual represents a greater-or-equal filter (attr>=value).
	FilterGreaterOrEqual
	// FilterLessOrEqual represents a less-or-equal filter (attr<=value).
	FilterLessOrEqual
	// FilterPresent represents a presence filter (attr=*).
	FilterPresent
)

// String returns the string representation of the FilterType.
func (ft FilterType) String() string {
	switch ft {
	case FilterAnd:
		return "AND"
	case FilterOr:
		return "OR"
	case FilterNot:
		return "NOT"
	case FilterEquality:
		return "EQUALITY"
	case FilterSubstring:
		return "SUBSTRING"
	case FilterGreaterOrEqual:
		return "GREATER_OR_EQUAL"
	case FilterLessOrEqual:
		return "LESS_OR_EQUAL"
	case FilterPresent:
		return "PRESENT"
	default:
		return "UNKNOWN"
	}
}

// Filter represents a search filter.
type Filter struct {
	Type      FilterType
	Attribute string
	Value     string
	Children  []*Filter        // For AND/OR filters
	Child     *Filter          // For NOT filter
	Substring *SubstringFilter // For substring filters
}

// SubstringFilter represents the components of a substring filter.
type SubstringFilter struct {
	Attribute string
	Initial   string   // Initial substring (before first *)
	Any       []string // Middle substrings (between *s)
	Final     string   // Final substring (after last *)
}

// NewAndFilter creates a new AND filter with the given children.
func NewAndFilter(children ...*Filter) *Filter {
	return &Filter{
		Type:     FilterAnd,
		Children: children,
	}
}

// NewOrFilter creates a new OR filter with the given children.
func NewOrFilter(children ...*Filter) *Filter {
	return &Filter{
		Type:     FilterOr,
		Children: children,
	}
}

// NewNotFilter creates a new NOT filter with the given child.
func NewNotFilter(child *Filter) *Filter {
	return &Filter{
		Type:  FilterNot,
		Child: child,
	}
}

// NewAndNotFilter matches entries matching include but not exclude.
func NewAndNotFilter(include, exclude *Filter) *Filter {
	return NewAndFilter(include, NewNotFilter(exclude))
}

// NewEqualityFilter creates a new equality filter.
func NewEqualityFilter(attribute, value string) *Filter {
	return &Filter{
		Type:      FilterEquality,
		Attribute: attribute,
		Value:     value,
	}
}

// NewSubstringFilter creates a new substring filter.
func NewSubstringFilter(sf *SubstringFilter) *Filter {
	return &Filter{
		Type:      FilterSubstring,
		Attribute: sf.Attribute,
		Substring: sf,
	}
}

// NewPresentFilter creates a new presence filter.
func NewPresentFilter(attribute string) *Filter {
	return &Filter{
		Type:      FilterPresent,
		Attribute: attribute,
	}
}

// NewGreaterOrEqualFilter creates a new greater-or-equal filter.
func NewGreaterOrEqualFilter(attribute, value string) *Filter {
	return &Filter{
		Type:      FilterGreaterOrEqual,
		Attribute: attribute,
		Value:     value,
	}
}

// NewLessOrEqualFilter creates a new less-or-equal filter.
func NewLessOrEqualFilter(attribute, value string) *Filter {
	return &Filter{
		Type:      FilterLessOrEqual,
		Attribute: attribute,
		Value:     value,
	}
}

// FromAttributes builds an AND of equality filters, one per value, in
// sorted attribute order. It matches every entry holding all the values.
func FromAttributes(attrs map[string][]string) *Filter {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sortStrings(names)

	var children []*Filter
	for _, name := range names {
		for _, v := range attrs[name] {
			children = append(children, NewEqualityFilter(name, v))
		}
	}
	return NewAndFilter(children...)
}

// String renders the filter in RFC 4515 form.
func (f *Filter) String() string {
	var b strings.Builder
	f.write(&b)
	return b.String()
}

func (f *Filter) write(b *strings.Builder) {
	if f == nil {
		return
	}
	b.WriteByte('(')
	switch f.Type {
	case FilterAnd, FilterOr:
		if f.Type == FilterAnd {
			b.WriteByte('&')
		} else {
			b.WriteByte('|')
		}
		for _, c := range f.Children {
			c.write(b)
		}
	case FilterNot:
		b.WriteByte('!')
		f.Child.write(b)
	case FilterEquality:
		b.WriteString(f.Attribute + "=" + escapeValue(f.Value))
	case FilterGreaterOrEqual:
		b.WriteString(f.Attribute + ">=" + escapeValue(f.Value))
	case FilterLessOrEqual:
		b.WriteString(f.Attribute + "<=" + escapeValue(f.Value))
	case FilterPresent:
		b.WriteString(f.Attribute + "=*")
	case FilterSubstring:
		sf := f.Substring
		b.WriteString(sf.Attribute + "=" + escapeValue(sf.Initial) + "*")
		for _, a := range sf.Any {
			b.WriteString(escapeValue(a) + "*")
		}
		b.WriteString(escapeValue(sf.Final))
	}
	b.WriteByte(')')
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
