package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrSchemaFileNotFound is returned by LoadFile for a missing path.
var ErrSchemaFileNotFound = errors.New("schema: file not found")

// Document is the YAML form of a schema.
//
//	attributes:
//	  - name: mail
//	    syntax: string
//	    multivalued: true
//	    indexed: true
//	classes:
//	  - name: account
//	    extends: [object]
//	    must: [name]
//	    may: [mail]
type Document struct {
	Attributes []AttributeDoc `yaml:"attributes"`
	Classes    []ClassDoc     `yaml:"classes"`
}

// AttributeDoc is one attribute definition in a Document.
type AttributeDoc struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Syntax      string `yaml:"syntax"`
	MultiValued bool   `yaml:"multivalued,omitempty"`
	Indexed     bool   `yaml:"indexed,omitempty"`
}

// ClassDoc is one object class definition in a Document.
type ClassDoc struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Extends     []string `yaml:"extends,omitempty"`
	Must        []string `yaml:"must,omitempty"`
	May         []string `yaml:"may,omitempty"`
}

// LoadFile reads a schema document from path.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaFileNotFound, path)
		}
		return nil, err
	}
	return Parse(data)
}

// Load reads a schema document from r.
func Load(r io.Reader) (*Schema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse builds a schema from a YAML document and checks it.
func Parse(data []byte) (*Schema, error) {
	s := NewSchema()
	if err := s.apply(data); err != nil {
		return nil, err
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}

// Merge adds the definitions of a YAML document to a copy of the schema.
// The receiver is left unchanged.
func (s *Schema) Merge(data []byte) (*Schema, error) {
	merged := s.Clone()
	if err := merged.apply(data); err != nil {
		return nil, err
	}
	if err := merged.Check(); err != nil {
		return nil, err
	}
	return merged, nil
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	out := &Schema{
		AttributeTypes: make(map[string]*AttributeType, len(s.AttributeTypes)),
		ObjectClasses:  make(map[string]*ObjectClass, len(s.ObjectClasses)),
	}
	for name, at := range s.AttributeTypes {
		cp := *at
		out.AttributeTypes[name] = &cp
	}
	for name, oc := range s.ObjectClasses {
		cp := *oc
		cp.Must = append([]string(nil), oc.Must...)
		cp.May = append([]string(nil), oc.May...)
		cp.Extends = append([]string(nil), oc.Extends...)
		out.ObjectClasses[name] = &cp
	}
	return out
}

func (s *Schema) apply(data []byte) error {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	for _, ad := range doc.Attributes {
		syntax, err := ParseSyntax(ad.Syntax)
		if err != nil {
			return fmt.Errorf("attribute %s: %w", ad.Name, err)
		}
		at := NewAttributeType(ad.Name, syntax)
		at.Description = ad.Description
		at.MultiValued = ad.MultiValued
		at.Indexed = ad.Indexed
		if err := s.AddAttributeType(at); err != nil {
			return err
		}
	}

	for _, cd := range doc.Classes {
		oc := NewObjectClass(cd.Name)
		oc.Description = cd.Description
		oc.Must = cd.Must
		oc.May = cd.May
		oc.Extends = cd.Extends
		if err := s.AddObjectClass(oc); err != nil {
			return err
		}
	}
	return nil
}
