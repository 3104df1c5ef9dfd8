package schema

import "strings"

// AttributeType defines the value syntax and cardinality of an attribute.
type AttributeType struct {
	Name        string // Lower-case attribute name (e.g., "name")
	Description string // Human-readable description
	Syntax      Syntax // Value syntax
	MultiValued bool   // If false, at most one value is allowed
	Indexed     bool   // If true, the index keeps a value -> entries tree
}

// NewAttributeType creates a single-valued, unindexed attribute type.
func NewAttributeType(name string, syntax Syntax) *AttributeType {
	return &AttributeType{
		Name:   strings.ToLower(name),
		Syntax: syntax,
	}
}

// IsSingleValued returns true if this attribute can have only one value.
func (at *AttributeType) IsSingleValued() bool {
	return !at.MultiValued
}

// IsMultiValued returns true if this attribute can have multiple values.
func (at *AttributeType) IsMultiValued() bool {
	return at.MultiValued
}

// IsIndexed returns true if the attribute has a secondary index.
func (at *AttributeType) IsIndexed() bool {
	return at.Indexed
}
