package backend

import (
	"errors"
	"fmt"

	"github.com/KilimcininKorOglu/obacore/internal/storage/durable"
	"github.com/KilimcininKorOglu/obacore/internal/storage/index"
)

// Backend errors.
var (
	// ErrNotFound is returned for unknown IDs and for tombstones.
	ErrNotFound = index.ErrNotFound
	// ErrWriteConflict is returned when non-blocking writes find the write
	// token taken.
	ErrWriteConflict = index.ErrWriteConflict
	// ErrEntryExists is returned when a create names an ID already in use.
	ErrEntryExists = index.ErrEntryExists
	// ErrDuplicateUUID is returned when a create reuses another entry's uuid.
	ErrDuplicateUUID = errors.New("backend: duplicate uuid")
	// ErrInvalidEntry is returned for entries the server refuses regardless
	// of schema, such as a caller-supplied tombstone or a changed uuid.
	ErrInvalidEntry = errors.New("backend: invalid entry")
	// ErrHalted is returned by every write after a failure past the durable
	// commit point. Reads keep working; restart to reload durable state.
	ErrHalted = errors.New("backend: writes halted")
	// ErrInconsistent marks index problems found by Verify.
	ErrInconsistent = errors.New("backend: index inconsistent")
)

// StoreError reports a failed durable commit. Fatal is set when the
// commit may have been applied, in which case the server halts writes.
type StoreError struct {
	Op    string
	Err   error
	Fatal bool
}

func (e *StoreError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("backend: %s: fatal store error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("backend: %s: store error: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func newStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err, Fatal: durable.IsIndeterminate(err)}
}
