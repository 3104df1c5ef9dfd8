package entry

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidModification is returned by Apply for malformed modifications.
var ErrInvalidModification = errors.New("entry: invalid modification")

// ModificationType represents the type of modification operation.
type ModificationType int

const (
	// ModAdd adds values to an attribute.
	ModAdd ModificationType = iota
	// ModDelete removes the listed values, or the whole attribute when no
	// values are listed.
	ModDelete
	// ModReplace replaces all values of an attribute. An empty value list
	// removes the attribute.
	ModReplace
)

// String returns the string representation of the modification type.
func (m ModificationType) String() string {
	switch m {
	case ModAdd:
		return "add"
	case ModDelete:
		return "delete"
	case ModReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// ParseModificationType parses "add", "delete" or "replace".
func ParseModificationType(s string) (ModificationType, error) {
	switch s {
	case "add":
		return ModAdd, nil
	case "delete":
		return ModDelete, nil
	case "replace":
		return ModReplace, nil
	default:
		return 0, fmt.Errorf("%w: unknown type %q", ErrInvalidModification, s)
	}
}

// Modification represents a single change to an entry attribute.
type Modification struct {
	Type      ModificationType
	Attribute string
	Values    []string
}

// Add returns a modification adding values to an attribute.
func Add(attr string, values ...string) Modification {
	return Modification{Type: ModAdd, Attribute: attr, Values: values}
}

// Remove returns a modification removing values from an attribute.
func Remove(attr string, values ...string) Modification {
	return Modification{Type: ModDelete, Attribute: attr, Values: values}
}

// Purge returns a modification removing an attribute entirely.
func Purge(attr string) Modification {
	return Modification{Type: ModDelete, Attribute: attr}
}

// Replace returns a modification replacing all values of an attribute.
func Replace(attr string, values ...string) Modification {
	return Modification{Type: ModReplace, Attribute: attr, Values: values}
}

// Apply returns a new entry with the modifications applied in order.
// Removing a value that is not present is not an error.
func (e *Entry) Apply(mods ...Modification) (*Entry, error) {
	attrs := make(map[string][]string, len(e.attrs))
	for name, values := range e.attrs {
		attrs[name] = values
	}

	for i, mod := range mods {
		name := NormalizeName(mod.Attribute)
		if name == "" {
			return nil, fmt.Errorf("%w: modification %d has no attribute", ErrInvalidModification, i)
		}

		switch mod.Type {
		case ModAdd:
			if len(mod.Values) == 0 {
				return nil, fmt.Errorf("%w: add to %s without values", ErrInvalidModification, name)
			}
			attrs[name] = normalizeValues(append(slices.Clone(attrs[name]), mod.Values...))
		case ModDelete:
			if len(mod.Values) == 0 {
				delete(attrs, name)
				continue
			}
			kept := slices.DeleteFunc(slices.Clone(attrs[name]), func(v string) bool {
				return slices.Contains(mod.Values, v)
			})
			if len(kept) == 0 {
				delete(attrs, name)
			} else {
				attrs[name] = kept
			}
		case ModReplace:
			if len(mod.Values) == 0 {
				delete(attrs, name)
			} else {
				attrs[name] = normalizeValues(mod.Values)
			}
		default:
			return nil, fmt.Errorf("%w: unknown type %d", ErrInvalidModification, mod.Type)
		}
	}

	return &Entry{id: e.id, attrs: attrs}, nil
}
