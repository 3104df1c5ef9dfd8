// Package backend implements the query server of obacore: the component a
// request server calls to search and change the directory.
//
// # Opening
//
// A QueryServer is opened over a durable store and a schema. Open reads
// every stored record once and builds the in-memory index from it:
//
//	store, err := durable.OpenSQLite("obacore.db")
//	if err != nil {
//	    return err
//	}
//	srv, err := backend.Open(ctx, store, schema.Default(),
//	    backend.WithLogger(log),
//	    backend.WithBroker(stream.NewBroker()),
//	)
//
// # Reads
//
// Search and Get pin the current snapshot and never wait for writers.
// Search yields results lazily in ascending ID order:
//
//	for e, err := range srv.Search(ctx, filter.MustParse("(class=group)")) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(e.ID(), e.Get("name"))
//	}
//
// OpenRead returns a ReadTxn for several reads against one snapshot.
// Deleted entries remain as tombstones until PurgeTombstones and are
// hidden unless IncludeTombstones is passed.
//
// # Writes
//
// Create, Modify, ModifyMatching, Delete, DeleteMatching and
// PurgeTombstones each run one write transaction:
//
//  1. take the write token (waiting, or failing with ErrWriteConflict
//     when WithNonBlockingWrites is set)
//  2. validate every candidate against the schema; the first violation
//     aborts
//  3. stage the changes in the index
//  4. commit them to the durable store, then publish the new snapshot
//  5. send change events to the broker
//
// A durable failure before commit leaves the directory unchanged and is
// returned as *StoreError. A failure whose outcome is unknown, or any
// failure after the durable commit, halts writes: every later write
// returns ErrHalted while reads continue.
//
// # Errors
//
//   - *schema.Violation (errors.Is(err, schema.ErrViolation))
//   - ErrNotFound, ErrEntryExists, ErrDuplicateUUID, ErrInvalidEntry
//   - ErrWriteConflict
//   - *StoreError, ErrHalted
package backend
