package entry

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrUnsupportedFormat is returned when decoding an entry written in a
// format version this build does not understand.
var ErrUnsupportedFormat = errors.New("entry: unsupported stored format")

// dbEntry is the stored form of an entry. Exactly one version is set.
type dbEntry struct {
	V1 *dbEntryV1 `cbor:"1,keyasint,omitempty"`
}

type dbEntryV1 struct {
	Attrs map[string][]string `cbor:"1,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal encodes the entry attributes in the current stored format.
// The identifier is not part of the encoding; stores key records by it.
func Marshal(e *Entry) ([]byte, error) {
	data, err := encMode.Marshal(dbEntry{V1: &dbEntryV1{Attrs: e.attrs}})
	if err != nil {
		return nil, fmt.Errorf("entry: encode %d: %w", e.id, err)
	}
	return data, nil
}

// Unmarshal decodes a stored entry and assigns it the given identifier.
func Unmarshal(id ID, data []byte) (*Entry, error) {
	var db dbEntry
	if err := decMode.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("entry: decode %d: %w", id, err)
	}
	switch {
	case db.V1 != nil:
		return New(id, db.V1.Attrs), nil
	default:
		return nil, fmt.Errorf("%w: entry %d", ErrUnsupportedFormat, id)
	}
}
