package schema

import (
	"errors"
	"fmt"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
)

// ErrViolation matches every *Violation with errors.Is.
var ErrViolation = errors.New("schema violation")

// Reason classifies a schema violation.
type Reason int

const (
	// ReasonNoClass indicates the entry declares no object class.
	ReasonNoClass Reason = iota + 1
	// ReasonUnknownClass indicates a declared class is not in the registry.
	ReasonUnknownClass
	// ReasonNotPermitted indicates an attribute no declared class allows.
	ReasonNotPermitted
	// ReasonMissingRequired indicates a required attribute is absent.
	ReasonMissingRequired
	// ReasonSingleValue indicates a single-valued attribute holds several values.
	ReasonSingleValue
	// ReasonInvalidSyntax indicates a value that does not match its syntax.
	ReasonInvalidSyntax
)

// String returns the string representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNoClass:
		return "NoClass"
	case ReasonUnknownClass:
		return "UnknownClass"
	case ReasonNotPermitted:
		return "NotPermitted"
	case ReasonMissingRequired:
		return "MissingRequired"
	case ReasonSingleValue:
		return "SingleValue"
	case ReasonInvalidSyntax:
		return "InvalidSyntax"
	default:
		return "Unknown"
	}
}

// Violation describes the first schema check an entry failed.
type Violation struct {
	Attribute string // Offending attribute ("class" for class checks)
	Reason    Reason
	Class     string // Class involved, when relevant
	Value     string // Offending value, for syntax violations
}

// Error implements the error interface.
func (v *Violation) Error() string {
	switch {
	case v.Reason == ReasonInvalidSyntax:
		return fmt.Sprintf("schema violation: %s: %s (value %q)", v.Reason, v.Attribute, v.Value)
	case v.Class != "":
		return fmt.Sprintf("schema violation: %s: %s (class %s)", v.Reason, v.Attribute, v.Class)
	default:
		return fmt.Sprintf("schema violation: %s: %s", v.Reason, v.Attribute)
	}
}

// Is lets errors.Is(err, ErrViolation) match any violation.
func (v *Violation) Is(target error) bool {
	return target == ErrViolation
}

// Validate checks the entry against the schema. It returns nil or a
// *Violation for the first failed check, in this order: declared classes,
// permitted attributes, required attributes, then value cardinality and
// syntax. Attributes are visited in sorted order.
func (s *Schema) Validate(e *entry.Entry) error {
	classes := e.Classes()
	if len(classes) == 0 {
		return &Violation{Attribute: entry.AttrClass, Reason: ReasonNoClass}
	}
	for _, c := range classes {
		if s.ObjectClasses[c] == nil {
			return &Violation{Attribute: entry.AttrClass, Reason: ReasonUnknownClass, Class: c}
		}
	}

	cs, err := s.Resolve(classes...)
	if err != nil {
		// Only reachable for schemas that fail Check.
		return &Violation{Attribute: entry.AttrClass, Reason: ReasonUnknownClass, Class: err.Error()}
	}

	names := e.Names()
	for _, name := range names {
		if cs.Permits(name) {
			continue
		}
		if cs.Extensible && s.AttributeTypes[name] != nil {
			continue
		}
		return &Violation{Attribute: name, Reason: ReasonNotPermitted}
	}

	for _, attr := range cs.Required() {
		if !e.Has(attr) {
			return &Violation{Attribute: attr, Reason: ReasonMissingRequired, Class: cs.Must[attr]}
		}
	}

	for _, name := range names {
		at := s.AttributeTypes[name]
		if at == nil {
			continue
		}
		values := e.Get(name)
		if at.IsSingleValued() && len(values) > 1 {
			return &Violation{Attribute: name, Reason: ReasonSingleValue}
		}
		for _, v := range values {
			if !at.Syntax.Validate(v) {
				return &Violation{Attribute: name, Reason: ReasonInvalidSyntax, Value: v}
			}
		}
	}

	return nil
}
