package schema

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
)

// Definition errors.
var (
	ErrInvalidDefinition = errors.New("schema: invalid definition")
	ErrDuplicate         = errors.New("schema: duplicate definition")
	ErrUnknownClass      = errors.New("schema: unknown object class")
	ErrExtendsCycle      = errors.New("schema: extends cycle detected")
)

// Schema is the registry of attribute types and object classes.
//
// A Schema is built once and then only read; validation and lookups are
// safe for concurrent use as long as no definitions are added.
type Schema struct {
	AttributeTypes map[string]*AttributeType
	ObjectClasses  map[string]*ObjectClass
}

// NewSchema creates a schema holding only the system attributes class and
// uuid, which every entry may carry.
func NewSchema() *Schema {
	s := &Schema{
		AttributeTypes: make(map[string]*AttributeType),
		ObjectClasses:  make(map[string]*ObjectClass),
	}

	class := NewAttributeType(entry.AttrClass, SyntaxString)
	class.MultiValued = true
	class.Indexed = true
	class.Description = "object classes declared by the entry"
	s.AttributeTypes[class.Name] = class

	id := NewAttributeType(entry.AttrUUID, SyntaxReference)
	id.Indexed = true
	id.Description = "stable external identifier"
	s.AttributeTypes[id.Name] = id

	return s
}

// GetAttributeType retrieves an attribute type by name.
// Returns nil if not found.
func (s *Schema) GetAttributeType(name string) *AttributeType {
	return s.AttributeTypes[strings.ToLower(name)]
}

// GetObjectClass retrieves an object class by name.
// Returns nil if not found.
func (s *Schema) GetObjectClass(name string) *ObjectClass {
	return s.ObjectClasses[strings.ToLower(name)]
}

// AddAttributeType registers an attribute type. The system attributes may
// be redefined to change their description, cardinality or indexing.
func (s *Schema) AddAttributeType(at *AttributeType) error {
	at.Name = strings.ToLower(strings.TrimSpace(at.Name))
	if at.Name == "" {
		return fmt.Errorf("%w: attribute without name", ErrInvalidDefinition)
	}
	if existing, ok := s.AttributeTypes[at.Name]; ok && !isSystemAttribute(at.Name) {
		return fmt.Errorf("%w: attribute %s", ErrDuplicate, existing.Name)
	}
	if isSystemAttribute(at.Name) && at.Syntax != s.AttributeTypes[at.Name].Syntax {
		return fmt.Errorf("%w: system attribute %s cannot change syntax", ErrInvalidDefinition, at.Name)
	}
	s.AttributeTypes[at.Name] = at
	return nil
}

// AddObjectClass registers an object class.
func (s *Schema) AddObjectClass(oc *ObjectClass) error {
	oc.Name = strings.ToLower(strings.TrimSpace(oc.Name))
	if oc.Name == "" {
		return fmt.Errorf("%w: class without name", ErrInvalidDefinition)
	}
	if _, ok := s.ObjectClasses[oc.Name]; ok {
		return fmt.Errorf("%w: class %s", ErrDuplicate, oc.Name)
	}
	oc.Must = lowerAll(oc.Must)
	oc.May = lowerAll(oc.May)
	oc.Extends = lowerAll(oc.Extends)
	s.ObjectClasses[oc.Name] = oc
	return nil
}

func isSystemAttribute(name string) bool {
	return name == entry.AttrClass || name == entry.AttrUUID
}

func lowerAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

// Check verifies that every class references known attributes and classes
// and that no class extends itself, directly or transitively.
func (s *Schema) Check() error {
	for _, name := range slices.Sorted(maps.Keys(s.ObjectClasses)) {
		oc := s.ObjectClasses[name]
		for _, attr := range slices.Concat(oc.Must, oc.May) {
			if s.AttributeTypes[attr] == nil {
				return fmt.Errorf("%w: class %s references unknown attribute %s", ErrInvalidDefinition, name, attr)
			}
		}
		for _, parent := range oc.Extends {
			if s.ObjectClasses[parent] == nil {
				return fmt.Errorf("%w: class %s extends unknown class %s", ErrInvalidDefinition, name, parent)
			}
		}
		if _, err := s.Resolve(name); err != nil {
			return err
		}
	}
	return nil
}

// Resolve composes the named classes into a ClassSet.
func (s *Schema) Resolve(classes ...string) (*ClassSet, error) {
	cs := &ClassSet{
		Must: make(map[string]string),
		May: map[string]struct{}{
			entry.AttrClass: {},
			entry.AttrUUID:  {},
		},
	}
	seen := make(map[string]bool)

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		if slices.Contains(path, name) {
			return fmt.Errorf("%w: %s", ErrExtendsCycle, strings.Join(append(path, name), " -> "))
		}
		if seen[name] {
			return nil
		}
		oc := s.ObjectClasses[name]
		if oc == nil {
			return fmt.Errorf("%w: %s", ErrUnknownClass, name)
		}
		seen[name] = true
		cs.Classes = append(cs.Classes, name)
		if name == entry.ClassExtensibleObject {
			cs.Extensible = true
		}
		for _, attr := range oc.Must {
			if _, ok := cs.Must[attr]; !ok {
				cs.Must[attr] = name
			}
			cs.May[attr] = struct{}{}
		}
		for _, attr := range oc.May {
			cs.May[attr] = struct{}{}
		}
		for _, parent := range oc.Extends {
			if err := visit(parent, append(path, name)); err != nil {
				return err
			}
		}
		return nil
	}

	for _, name := range classes {
		if err := visit(strings.ToLower(name), nil); err != nil {
			return nil, err
		}
	}
	slices.Sort(cs.Classes)
	return cs, nil
}

// IndexedAttributes returns the names of indexed attributes, sorted.
func (s *Schema) IndexedAttributes() []string {
	var out []string
	for name, at := range s.AttributeTypes {
		if at.Indexed {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Normalize returns the canonical form of a value of the attribute.
// Unknown attributes are normalized as strings.
func (s *Schema) Normalize(attr, value string) string {
	if at := s.GetAttributeType(attr); at != nil {
		return at.Syntax.Normalize(value)
	}
	return SyntaxString.Normalize(value)
}

// Compare orders two values of the attribute according to its syntax.
func (s *Schema) Compare(attr, a, b string) int {
	if at := s.GetAttributeType(attr); at != nil {
		return at.Syntax.Compare(a, b)
	}
	return SyntaxString.Compare(a, b)
}
