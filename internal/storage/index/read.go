package index

import (
	"iter"
	"sync/atomic"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
)

// ReadTxn reads from the snapshot pinned when it was opened. It takes no
// locks and is safe for concurrent use.
type ReadTxn struct {
	ix     *Index
	snap   *Snapshot
	closed atomic.Bool
}

// Snapshot returns the pinned snapshot.
func (r *ReadTxn) Snapshot() *Snapshot {
	return r.snap
}

// Get returns the entry with the given ID.
func (r *ReadTxn) Get(id entry.ID) (*entry.Entry, bool) {
	return r.snap.Get(id)
}

// Len returns the number of entries in the pinned snapshot.
func (r *ReadTxn) Len() int {
	return r.snap.Len()
}

// Search returns the entries matching f in ascending ID order. The
// sequence is lazy and may be ranged over repeatedly with identical
// results. A nil filter matches every entry.
func (r *ReadTxn) Search(f *filter.Filter) iter.Seq[*entry.Entry] {
	return r.snap.Search(f)
}

// Explain returns the plan Search uses for f.
func (r *ReadTxn) Explain(f *filter.Filter) *filter.QueryPlan {
	return r.snap.Explain(f)
}

// Close releases the pin. The snapshot stays readable through the
// transaction afterwards; Close only ends its accounting.
func (r *ReadTxn) Close() {
	if r.closed.CompareAndSwap(false, true) {
		r.ix.pinned.Add(-1)
	}
}
