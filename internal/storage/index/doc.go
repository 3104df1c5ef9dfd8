// Package index implements the concurrent, snapshot-isolated entry index.
//
// # Overview
//
// The index holds one current Snapshot. A snapshot is an immutable mapping
// from entry ID to entry plus one secondary index per indexed attribute,
// mapping a normalized value to the set of IDs holding it. All trees are
// persistent AVL trees (see package ptree): a commit allocates new nodes
// only along the paths it changes and shares everything else with the
// previous snapshot.
//
// # Reads
//
// OpenRead pins the current snapshot with a single atomic load. It never
// blocks and never fails. Everything read through the returned ReadTxn
// comes from that snapshot, no matter what commits later:
//
//	rtx := ix.OpenRead()
//	defer rtx.Close()
//
//	for e := range rtx.Search(f) {
//	    // ascending ID order
//	}
//
// # Writes
//
// At most one write transaction is open at a time. OpenWrite waits for the
// write token; TryOpenWrite fails with ErrWriteConflict instead. Changes are
// staged in an overlay that the transaction itself reads through:
//
//	wtx, err := ix.OpenWrite(ctx)
//	if err != nil {
//	    return err
//	}
//	defer wtx.Abort()
//
//	if err := wtx.Stage(index.Create(e)); err != nil {
//	    return err
//	}
//	snap, err := wtx.Commit(ctx, persist)
//
// Commit derives the new snapshot, hands the ordered change list to the
// durable hook and only then swaps the current pointer. If the hook fails
// the current snapshot is left exactly as it was.
package index
