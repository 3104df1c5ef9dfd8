package index

import "errors"

// Index errors.
var (
	// ErrWriteConflict is returned by TryOpenWrite while another write
	// transaction is open.
	ErrWriteConflict = errors.New("index: write conflict")

	// ErrNotFound is returned for an unknown entry ID.
	ErrNotFound = errors.New("index: entry not found")

	// ErrEntryExists is returned when creating an entry whose ID is taken.
	ErrEntryExists = errors.New("index: entry already exists")

	// ErrTxnDone is returned when using a committed or aborted transaction.
	ErrTxnDone = errors.New("index: transaction already finished")

	// ErrSnapshotDiverged is returned when the current snapshot is no longer
	// the base of a committing transaction. The durable hook has already
	// run at that point, so the condition is fatal for the caller.
	ErrSnapshotDiverged = errors.New("index: current snapshot diverged from transaction base")

	// ErrDuplicateID is returned by Load for repeated entry IDs.
	ErrDuplicateID = errors.New("index: duplicate entry id")

	// ErrInvalidChange is returned by Stage for malformed changes.
	ErrInvalidChange = errors.New("index: invalid change")
)
