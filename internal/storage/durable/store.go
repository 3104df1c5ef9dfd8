// Package durable defines the persistence contract of the directory core
// and provides a SQLite implementation and an in-memory one for tests.
//
// A Store commits batches of entry writes atomically: after a crash either
// every Put and Delete of a committed Txn is visible to LoadAll, or none
// is. Entry serialization is the caller's business; the store keeps opaque
// bytes keyed by entry ID.
package durable

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
)

// Store errors.
var (
	ErrClosed  = errors.New("durable: store closed")
	ErrTxnDone = errors.New("durable: transaction already finished")
	ErrCorrupt = errors.New("durable: corrupt record")
)

// Record is one persisted entry.
type Record struct {
	ID   entry.ID
	Data []byte
}

// Store is a transactional key-value store keyed by entry ID.
type Store interface {
	// Begin starts a write transaction.
	Begin(ctx context.Context) (Txn, error)
	// LoadAll iterates every committed record in ascending ID order.
	LoadAll(ctx context.Context) iter.Seq2[Record, error]
	// Close releases the store.
	Close() error
}

// Txn stages writes until Commit. After Commit or Rollback the Txn is
// finished and further calls fail with ErrTxnDone, except Rollback which
// is a no-op.
type Txn interface {
	Put(id entry.ID, data []byte) error
	Delete(id entry.ID) error
	Commit() error
	Rollback() error
}

// Error describes a failed store operation. Indeterminate is set when the
// commit may or may not have been applied.
type Error struct {
	Op            string
	Err           error
	Indeterminate bool
}

func (e *Error) Error() string {
	if e.Indeterminate {
		return fmt.Sprintf("durable: %s (outcome unknown): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("durable: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsIndeterminate reports whether err carries an indeterminate commit.
func IsIndeterminate(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Indeterminate
}
