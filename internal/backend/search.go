package backend

import (
	"context"
	"fmt"
	"iter"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
	"github.com/KilimcininKorOglu/obacore/internal/storage/index"
)

type searchOptions struct {
	tombstones bool
	attrs      []string
}

// SearchOption adjusts a search.
type SearchOption func(*searchOptions)

// IncludeTombstones makes a search return tombstones too.
func IncludeTombstones() SearchOption {
	return func(o *searchOptions) { o.tombstones = true }
}

// WithAttributes reduces every result to the named attributes.
func WithAttributes(names ...string) SearchOption {
	return func(o *searchOptions) { o.attrs = names }
}

func newSearchOptions(opts []SearchOption) searchOptions {
	var o searchOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Search pins the current snapshot and yields the entries matching f. If
// ctx ends mid-sequence the error is yielded once and iteration stops.
func (s *QueryServer) Search(ctx context.Context, f *filter.Filter, opts ...SearchOption) iter.Seq2[*entry.Entry, error] {
	return func(yield func(*entry.Entry, error) bool) {
		r := s.OpenRead()
		defer r.Close()
		for e, err := range r.search(ctx, f, newSearchOptions(opts)) {
			if !yield(e, err) {
				return
			}
		}
	}
}

// Get returns the live entry with the given ID.
func (s *QueryServer) Get(ctx context.Context, id entry.ID) (*entry.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := s.OpenRead()
	defer r.Close()
	return r.Get(id)
}

// ReadTxn is a pinned view for repeated reads. Results are stable for the
// life of the transaction regardless of concurrent writes.
type ReadTxn struct {
	txn *index.ReadTxn
}

// OpenRead pins the current snapshot. It never blocks.
func (s *QueryServer) OpenRead() *ReadTxn {
	return &ReadTxn{txn: s.index.OpenRead()}
}

// Snapshot returns the ID of the pinned snapshot.
func (r *ReadTxn) Snapshot() index.SnapshotID {
	return r.txn.Snapshot().ID()
}

// Get returns the live entry with the given ID.
func (r *ReadTxn) Get(id entry.ID) (*entry.Entry, error) {
	e, ok := r.txn.Get(id)
	if !ok || e.IsTombstone() {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return e, nil
}

// Search yields the entries matching f in the pinned snapshot.
func (r *ReadTxn) Search(ctx context.Context, f *filter.Filter, opts ...SearchOption) iter.Seq2[*entry.Entry, error] {
	return r.search(ctx, f, newSearchOptions(opts))
}

func (r *ReadTxn) search(ctx context.Context, f *filter.Filter, o searchOptions) iter.Seq2[*entry.Entry, error] {
	return func(yield func(*entry.Entry, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}
		for e := range r.txn.Search(f) {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !o.tombstones && e.IsTombstone() {
				continue
			}
			if len(o.attrs) > 0 {
				e = e.Reduce(o.attrs...)
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Explain returns the plan used for f.
func (r *ReadTxn) Explain(f *filter.Filter) *filter.QueryPlan {
	return r.txn.Explain(f)
}

// Close releases the pin.
func (r *ReadTxn) Close() {
	r.txn.Close()
}
