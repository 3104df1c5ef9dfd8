package index

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
)

// DurableFunc persists the changes of a committing transaction. It runs
// after the new snapshot is derived and before it is published. A non-nil
// error aborts the commit and leaves the current snapshot untouched.
type DurableFunc func(ctx context.Context, changes []Change) error

// PublishFunc observes a commit after its snapshot became current and
// before the write token is released, so successive calls follow commit
// order.
type PublishFunc func(id SnapshotID, changes []Change)

// WriteTxn stages changes in an overlay on top of its base snapshot. It
// holds the write token until Commit or Abort. A WriteTxn is not safe for
// concurrent use.
type WriteTxn struct {
	ix      *Index
	base    *Snapshot
	overlay map[entry.ID]Change
	nextID  entry.ID
	view    *Snapshot
	publish PublishFunc
	done    bool
}

// Base returns the snapshot the transaction was opened on.
func (t *WriteTxn) Base() *Snapshot {
	return t.base
}

// NextID returns the ID the next create without an ID will receive.
func (t *WriteTxn) NextID() entry.ID {
	return t.nextID
}

// OnPublish registers fn to run once a successful Commit has swapped in
// its snapshot, while the token is still held.
func (t *WriteTxn) OnPublish(fn PublishFunc) {
	t.publish = fn
}

// Get returns the entry with the given ID as seen by this transaction.
func (t *WriteTxn) Get(id entry.ID) (*entry.Entry, bool) {
	if c, ok := t.overlay[id]; ok {
		return c.Entry, c.Entry != nil
	}
	return t.base.Get(id)
}

// Search is like ReadTxn.Search but includes staged changes.
func (t *WriteTxn) Search(f *filter.Filter) iter.Seq[*entry.Entry] {
	return t.working().Search(f)
}

// working returns the base with the overlay applied. It is derived on
// first use and then advanced by each Stage.
func (t *WriteTxn) working() *Snapshot {
	if len(t.overlay) == 0 {
		return t.base
	}
	if t.view == nil {
		t.view = t.base.derive(t.Changes(), t.nextID)
	}
	return t.view
}

// advance applies the staged state of id to a copy of the view. Searches
// already running on the old view keep seeing it.
func (t *WriteTxn) advance(id entry.ID) {
	if t.view == nil {
		return
	}
	if len(t.overlay) == 0 {
		t.view = nil
		return
	}
	var e *entry.Entry
	if c, ok := t.overlay[id]; ok {
		e = c.Entry
	} else {
		e, _ = t.base.Get(id)
	}
	view := t.view.clone()
	view.put(id, e)
	view.nextID = max(view.nextID, t.nextID)
	t.view = view
}

// Len returns the number of staged changes after coalescing.
func (t *WriteTxn) Len() int {
	return len(t.overlay)
}

// Changes returns the coalesced staged changes in ascending ID order.
func (t *WriteTxn) Changes() []Change {
	ids := slices.Sorted(maps.Keys(t.overlay))
	changes := make([]Change, 0, len(ids))
	for _, id := range ids {
		changes = append(changes, t.overlay[id])
	}
	return changes
}

// Stage records c and returns the ID it applies to. Creates with a zero
// ID are assigned a fresh one. Changes to one ID coalesce: a create
// followed by a modify stays a create, a create followed by a delete
// vanishes, and a delete followed by a create becomes a modify.
func (t *WriteTxn) Stage(c Change) (entry.ID, error) {
	if t.done {
		return 0, ErrTxnDone
	}

	var id entry.ID
	switch c.Kind {
	case ChangeCreate:
		if c.Entry == nil {
			return 0, fmt.Errorf("%w: create without entry", ErrInvalidChange)
		}
		id = c.Entry.ID()
		if id == 0 {
			id = t.nextID
		}
		if id > MaxID {
			return 0, fmt.Errorf("%w: id %d out of range", ErrInvalidChange, id)
		}
		if _, ok := t.Get(id); ok {
			return 0, fmt.Errorf("%w: %d", ErrEntryExists, id)
		}
		if id >= t.nextID {
			t.nextID = id + 1
		}
		e := c.Entry.WithID(id)
		if prior, ok := t.base.Get(id); ok {
			t.overlay[id] = Change{Kind: ChangeModify, ID: id, Entry: e, Prior: prior}
		} else {
			t.overlay[id] = Change{Kind: ChangeCreate, ID: id, Entry: e}
		}

	case ChangeModify:
		if c.Entry == nil || c.Entry.ID() == 0 {
			return 0, fmt.Errorf("%w: modify without entry id", ErrInvalidChange)
		}
		id = c.Entry.ID()
		if _, ok := t.Get(id); !ok {
			return 0, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		if prev, ok := t.overlay[id]; ok && prev.Kind == ChangeCreate {
			t.overlay[id] = Change{Kind: ChangeCreate, ID: id, Entry: c.Entry}
		} else {
			prior, _ := t.base.Get(id)
			t.overlay[id] = Change{Kind: ChangeModify, ID: id, Entry: c.Entry, Prior: prior}
		}

	case ChangeDelete:
		id = c.ID
		if id == 0 && c.Entry != nil {
			id = c.Entry.ID()
		}
		if _, ok := t.Get(id); !ok {
			return 0, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		if prev, ok := t.overlay[id]; ok && prev.Kind == ChangeCreate {
			delete(t.overlay, id)
		} else {
			prior, _ := t.base.Get(id)
			t.overlay[id] = Change{Kind: ChangeDelete, ID: id, Prior: prior}
		}

	default:
		return 0, fmt.Errorf("%w: kind %d", ErrInvalidChange, c.Kind)
	}

	t.advance(id)
	return id, nil
}

// Commit derives the new snapshot, runs durable with the staged changes
// and publishes the snapshot, then calls the OnPublish callback. It
// returns the ID of the published snapshot, or the base ID when nothing
// was staged. The token is released in every case and the transaction is
// finished afterwards.
//
// If ctx is done or durable fails, nothing is published. If the current
// snapshot is no longer the base, ErrSnapshotDiverged is returned after
// durable has run.
func (t *WriteTxn) Commit(ctx context.Context, durable DurableFunc) (_ SnapshotID, err error) {
	if t.done {
		return 0, ErrTxnDone
	}
	defer func() { t.finish(err != nil) }()

	if len(t.overlay) == 0 {
		return t.base.id, nil
	}
	if err = ctx.Err(); err != nil {
		return 0, err
	}

	changes := t.Changes()
	next := t.working()
	if durable != nil {
		if err = durable(ctx, changes); err != nil {
			return 0, err
		}
	}

	if !t.ix.current.CompareAndSwap(t.base, next) {
		return 0, ErrSnapshotDiverged
	}
	t.ix.commits.Add(1)
	if t.publish != nil {
		t.publish(next.id, changes)
	}
	return next.id, nil
}

// Abort discards the overlay and releases the token. It is safe to call
// at any time, any number of times, including after Commit.
func (t *WriteTxn) Abort() {
	if !t.done {
		t.finish(true)
	}
}

func (t *WriteTxn) finish(aborted bool) {
	if t.done {
		return
	}
	t.done = true
	t.overlay = nil
	t.view = nil
	t.publish = nil
	if aborted {
		t.ix.aborts.Add(1)
	}
	t.ix.writer.Release(1)
}
