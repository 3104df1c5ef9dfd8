// Package entry provides the immutable directory entry used throughout obacore.
package entry

import (
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Well-known attribute and class names.
const (
	// AttrClass holds the object classes an entry declares.
	AttrClass = "class"
	// AttrUUID holds the entry's stable external identifier.
	AttrUUID = "uuid"

	// ClassObject is the base class every entry ultimately composes.
	ClassObject = "object"
	// ClassExtensibleObject permits any attribute known to the schema.
	ClassExtensibleObject = "extensibleobject"
	// ClassTombstone marks an entry that has been deleted but not purged.
	ClassTombstone = "tombstone"
)

// ID identifies an entry for its whole lifetime, across every version.
type ID uint64

// Entry is an identifier-keyed set of attributes.
//
// An Entry is never mutated after construction. Operations that change an
// entry, like Apply or Tombstone, return a new instance with the same ID.
type Entry struct {
	id    ID
	attrs map[string][]string
}

// New creates an entry from the given attributes.
// Attribute names are lower-cased and trimmed, values are de-duplicated and
// sorted, and attributes without values are dropped.
func New(id ID, attrs map[string][]string) *Entry {
	e := &Entry{
		id:    id,
		attrs: make(map[string][]string, len(attrs)),
	}
	for name, values := range attrs {
		name = NormalizeName(name)
		if name == "" {
			continue
		}
		merged := append(e.attrs[name], values...)
		if set := normalizeValues(merged); len(set) > 0 {
			e.attrs[name] = set
		}
	}
	return e
}

// NormalizeName returns the canonical form of an attribute name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func normalizeValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}

// ID returns the entry identifier.
func (e *Entry) ID() ID {
	return e.id
}

// WithID returns a copy of the entry carrying a different identifier.
func (e *Entry) WithID(id ID) *Entry {
	return &Entry{id: id, attrs: e.attrs}
}

// Get returns a copy of the values of an attribute, or nil.
func (e *Entry) Get(name string) []string {
	return slices.Clone(e.attrs[NormalizeName(name)])
}

// First returns the first value of an attribute in sorted order.
func (e *Entry) First(name string) (string, bool) {
	values := e.attrs[NormalizeName(name)]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Has reports whether the attribute is present with at least one value.
func (e *Entry) Has(name string) bool {
	return len(e.attrs[NormalizeName(name)]) > 0
}

// HasValue reports whether the attribute holds exactly the given value.
func (e *Entry) HasValue(name, value string) bool {
	_, found := slices.BinarySearch(e.attrs[NormalizeName(name)], value)
	return found
}

// Names returns the attribute names in sorted order.
func (e *Entry) Names() []string {
	return slices.Sorted(maps.Keys(e.attrs))
}

// Classes returns the declared object classes, lower-cased.
func (e *Entry) Classes() []string {
	values := e.attrs[AttrClass]
	classes := make([]string, len(values))
	for i, c := range values {
		classes[i] = strings.ToLower(c)
	}
	return classes
}

// HasClass reports whether the entry declares the class.
func (e *Entry) HasClass(class string) bool {
	for _, c := range e.attrs[AttrClass] {
		if strings.EqualFold(c, class) {
			return true
		}
	}
	return false
}

// IsTombstone reports whether the entry is a tombstone.
func (e *Entry) IsTombstone() bool {
	return e.HasClass(ClassTombstone)
}

// UUID returns the parsed uuid attribute.
func (e *Entry) UUID() (uuid.UUID, bool) {
	v, ok := e.First(AttrUUID)
	if !ok {
		return uuid.Nil, false
	}
	u, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, false
	}
	return u, true
}

// All iterates attributes in sorted name order. The yielded slices must not
// be modified.
func (e *Entry) All() iter.Seq2[string, []string] {
	return func(yield func(string, []string) bool) {
		for _, name := range e.Names() {
			if !yield(name, e.attrs[name]) {
				return
			}
		}
	}
}

// Attributes returns a deep copy of the attribute map.
func (e *Entry) Attributes() map[string][]string {
	out := make(map[string][]string, len(e.attrs))
	for name, values := range e.attrs {
		out[name] = slices.Clone(values)
	}
	return out
}

// Len returns the number of attributes.
func (e *Entry) Len() int {
	return len(e.attrs)
}

// Equal reports whether both entries have the same ID and attribute sets.
func (e *Entry) Equal(other *Entry) bool {
	if e == nil || other == nil {
		return e == other
	}
	if e.id != other.id {
		return false
	}
	return maps.EqualFunc(e.attrs, other.attrs, slices.Equal[[]string])
}

// Tombstone returns the tombstone that replaces this entry on delete.
// Only the uuid survives.
func (e *Entry) Tombstone() *Entry {
	attrs := map[string][]string{
		AttrClass: {ClassObject, ClassTombstone},
	}
	if u, ok := e.attrs[AttrUUID]; ok {
		attrs[AttrUUID] = u
	}
	return New(e.id, attrs)
}

// Reduce returns a copy holding only the named attributes.
func (e *Entry) Reduce(allowed ...string) *Entry {
	out := &Entry{id: e.id, attrs: make(map[string][]string, len(allowed))}
	for _, name := range allowed {
		name = NormalizeName(name)
		if values, ok := e.attrs[name]; ok {
			out.attrs[name] = values
		}
	}
	return out
}

// String returns a compact debugging representation.
func (e *Entry) String() string {
	var b strings.Builder
	b.WriteString("entry{")
	for i, name := range e.Names() {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(strings.Join(e.attrs[name], ","))
	}
	b.WriteString("}")
	return b.String()
}
