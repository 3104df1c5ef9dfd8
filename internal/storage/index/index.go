package index

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"math"
	"slices"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
)

// MaxID is the largest entry ID. The ID above it is never assigned so the
// next free ID always fits.
const MaxID = entry.ID(math.MaxUint64 - 1)

// Index holds the current snapshot and the single-writer token.
//
// The current pointer is the only mutable shared state. Readers load it
// atomically; the writer holding the token replaces it with
// compare-and-swap.
type Index struct {
	keys    KeySpace
	current atomic.Pointer[Snapshot]
	writer  *semaphore.Weighted

	pinned    atomic.Int64
	commits   atomic.Uint64
	aborts    atomic.Uint64
	conflicts atomic.Uint64
}

// Stats is a point-in-time summary of index activity.
type Stats struct {
	Snapshot  SnapshotID
	Entries   int
	Indexed   []string
	Pinned    int64
	Commits   uint64
	Aborts    uint64
	Conflicts uint64
}

// New returns an empty index whose secondary indexes are the attributes
// keys reports as indexed.
func New(keys KeySpace) *Index {
	ix := &Index{
		keys:   keys,
		writer: semaphore.NewWeighted(1),
	}
	ix.current.Store(newSnapshot(keys))
	return ix
}

// Load returns an index whose initial snapshot holds entries. Entries may
// arrive in any order but IDs must be in 1..MaxID and unique. Trees are built
// bottom-up in linear time after sorting.
func Load(keys KeySpace, entries iter.Seq[*entry.Entry]) (*Index, error) {
	var all []*entry.Entry
	for e := range entries {
		if e.ID() == 0 || e.ID() > MaxID {
			return nil, fmt.Errorf("%w: id %d out of range", ErrInvalidChange, e.ID())
		}
		all = append(all, e)
	}
	slices.SortFunc(all, func(a, b *entry.Entry) int {
		return cmp.Compare(a.ID(), b.ID())
	})
	for i := 1; i < len(all); i++ {
		if all[i].ID() == all[i-1].ID() {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, all[i].ID())
		}
	}

	snap, err := buildSnapshot(keys, all)
	if err != nil {
		return nil, err
	}

	ix := &Index{
		keys:   keys,
		writer: semaphore.NewWeighted(1),
	}
	ix.current.Store(snap)
	return ix, nil
}

// Current returns the snapshot visible to new readers.
func (ix *Index) Current() *Snapshot {
	return ix.current.Load()
}

// OpenRead pins the current snapshot. It never blocks and never fails.
func (ix *Index) OpenRead() *ReadTxn {
	ix.pinned.Add(1)
	return &ReadTxn{ix: ix, snap: ix.current.Load()}
}

// OpenWrite waits for the write token and opens a write transaction on the
// snapshot current at that moment. It fails only if ctx is done first.
func (ix *Index) OpenWrite(ctx context.Context) (*WriteTxn, error) {
	if err := ix.writer.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return ix.newWriteTxn(), nil
}

// TryOpenWrite is like OpenWrite but fails with ErrWriteConflict instead
// of waiting.
func (ix *Index) TryOpenWrite() (*WriteTxn, error) {
	if !ix.writer.TryAcquire(1) {
		ix.conflicts.Add(1)
		return nil, ErrWriteConflict
	}
	return ix.newWriteTxn(), nil
}

func (ix *Index) newWriteTxn() *WriteTxn {
	base := ix.current.Load()
	return &WriteTxn{
		ix:      ix,
		base:    base,
		overlay: make(map[entry.ID]Change),
		nextID:  base.nextID,
	}
}

// Stats returns a summary of the current snapshot and index activity.
func (ix *Index) Stats() Stats {
	snap := ix.current.Load()
	return Stats{
		Snapshot:  snap.id,
		Entries:   snap.Len(),
		Indexed:   snap.Indexed(),
		Pinned:    ix.pinned.Load(),
		Commits:   ix.commits.Load(),
		Aborts:    ix.aborts.Load(),
		Conflicts: ix.conflicts.Load(),
	}
}
