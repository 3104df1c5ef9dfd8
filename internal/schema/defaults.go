package schema

import (
	_ "embed"
	"sync"
)

//go:embed core.yaml
var coreSchema []byte

var (
	defaultOnce   sync.Once
	defaultSchema *Schema
)

// Default returns a fresh copy of the built-in core schema.
func Default() *Schema {
	defaultOnce.Do(func() {
		s, err := Parse(coreSchema)
		if err != nil {
			panic("schema: built-in schema is invalid: " + err.Error())
		}
		defaultSchema = s
	})
	return defaultSchema.Clone()
}
