package schema

import (
	"slices"
	"strings"
)

// ObjectClass defines the attributes entries of that class must have
// (Must) and may have (May). A class may extend other classes; the
// effective sets are the union over the class and everything it extends.
type ObjectClass struct {
	Name        string   // Lower-case class name (e.g., "account")
	Description string   // Human-readable description
	Must        []string // Required attribute names
	May         []string // Optional attribute names
	Extends     []string // Classes composed into this one
}

// NewObjectClass creates an object class with no attributes.
func NewObjectClass(name string) *ObjectClass {
	return &ObjectClass{
		Name: strings.ToLower(name),
		Must: []string{},
		May:  []string{},
	}
}

// HasMustAttribute checks if the given attribute is directly required by this class.
func (oc *ObjectClass) HasMustAttribute(attr string) bool {
	return slices.Contains(oc.Must, attr)
}

// HasMayAttribute checks if the given attribute is directly optional for this class.
func (oc *ObjectClass) HasMayAttribute(attr string) bool {
	return slices.Contains(oc.May, attr)
}

// AddMustAttribute adds a required attribute to this object class.
func (oc *ObjectClass) AddMustAttribute(attr string) {
	attr = strings.ToLower(attr)
	if !oc.HasMustAttribute(attr) {
		oc.Must = append(oc.Must, attr)
	}
}

// AddMayAttribute adds an optional attribute to this object class.
func (oc *ObjectClass) AddMayAttribute(attr string) {
	attr = strings.ToLower(attr)
	if !oc.HasMayAttribute(attr) {
		oc.May = append(oc.May, attr)
	}
}

// AddExtends adds a class to compose into this one.
func (oc *ObjectClass) AddExtends(class string) {
	class = strings.ToLower(class)
	if !slices.Contains(oc.Extends, class) {
		oc.Extends = append(oc.Extends, class)
	}
}

// ClassSet is the composition of one or more object classes.
type ClassSet struct {
	Classes    []string            // Every class in the composition, sorted
	Must       map[string]string   // Required attribute -> class requiring it
	May        map[string]struct{} // Permitted attributes, including Must
	Extensible bool                // Composition includes extensibleobject
}

// Permits reports whether the composition allows the attribute.
func (cs *ClassSet) Permits(attr string) bool {
	_, ok := cs.May[attr]
	return ok
}

// Required returns the required attributes in sorted order.
func (cs *ClassSet) Required() []string {
	out := make([]string, 0, len(cs.Must))
	for attr := range cs.Must {
		out = append(out, attr)
	}
	slices.Sort(out)
	return out
}
