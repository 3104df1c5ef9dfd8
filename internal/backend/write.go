package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
	"github.com/KilimcininKorOglu/obacore/internal/storage/index"
	"github.com/KilimcininKorOglu/obacore/internal/storage/stream"
)

// write runs one write transaction. stage validates and stages changes on
// txn; any error aborts. The durable store commits before the snapshot is
// published, and committed changes are sent to the broker before the
// token passes to the next writer.
func (s *QueryServer) write(ctx context.Context, op string, stage func(txn *index.WriteTxn) error) (index.SnapshotID, error) {
	if cause := s.Halted(); cause != nil {
		return 0, fmt.Errorf("%w: %v", ErrHalted, cause)
	}

	txn, err := s.openWrite(ctx)
	if err != nil {
		return 0, err
	}
	defer txn.Abort()

	// A writer that waited for the token may have been overtaken by a
	// commit that halted the server.
	if cause := s.Halted(); cause != nil {
		return 0, fmt.Errorf("%w: %v", ErrHalted, cause)
	}

	if err := stage(txn); err != nil {
		s.log.Info("write rejected", "op", op, "err", err)
		return 0, err
	}

	durableOK := false
	txn.OnPublish(func(id index.SnapshotID, changes []index.Change) {
		s.log.Debug("commit", "op", op, "snapshot", id, "changes", len(changes))
		s.publish(id, changes)
	})
	id, err := txn.Commit(ctx, func(ctx context.Context, changes []index.Change) error {
		if err := s.persist(ctx, changes); err != nil {
			return err
		}
		durableOK = true
		return nil
	})
	if err != nil {
		return 0, s.commitFailed(op, err, durableOK)
	}
	return id, nil
}

// openWrite acquires the write token. The acquire timeout only bounds the
// wait.
func (s *QueryServer) openWrite(ctx context.Context) (*index.WriteTxn, error) {
	if s.nonBlocking {
		return s.index.TryOpenWrite()
	}
	if s.acquireTimeout <= 0 {
		return s.index.OpenWrite(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()
	return s.index.OpenWrite(actx)
}

// commitFailed classifies a commit error. Failures after the durable point
// leave memory behind the store, so writes halt.
func (s *QueryServer) commitFailed(op string, err error, durableOK bool) error {
	if durableOK {
		s.halt(err)
		return fmt.Errorf("%w: %s: %w", ErrHalted, op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	serr := newStoreError(op, err)
	if serr.Fatal {
		s.halt(serr)
	} else {
		s.log.Warn("durable commit failed", "op", op, "err", err)
	}
	return serr
}

func (s *QueryServer) persist(ctx context.Context, changes []index.Change) error {
	txn, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	for _, c := range changes {
		if c.Kind == index.ChangeDelete {
			err = txn.Delete(c.ID)
		} else {
			var data []byte
			if data, err = entry.Marshal(c.Entry); err == nil {
				err = txn.Put(c.ID, data)
			}
		}
		if err != nil {
			txn.Rollback()
			return err
		}
	}
	return txn.Commit()
}

func (s *QueryServer) publish(id index.SnapshotID, changes []index.Change) {
	if s.broker == nil {
		return
	}
	events := make([]stream.ChangeEvent, 0, len(changes))
	for _, c := range changes {
		ev := stream.ChangeEvent{ID: c.ID, Snapshot: uint64(id), Entry: c.Entry}
		switch {
		case c.Kind == index.ChangeCreate:
			ev.Operation = stream.OpCreate
		case c.Kind == index.ChangeDelete:
			ev.Operation = stream.OpPurge
		case c.Entry.IsTombstone() && c.Prior != nil && !c.Prior.IsTombstone():
			ev.Operation = stream.OpDelete
			ev.Entry = c.Prior
		default:
			ev.Operation = stream.OpModify
		}
		events = append(events, ev)
	}
	s.broker.Publish(events...)
}

// Create validates and adds entries in one transaction. Entries without a
// uuid get a random one; entries with a zero ID get the next free ID. The
// first invalid entry aborts the whole batch.
func (s *QueryServer) Create(ctx context.Context, entries ...*entry.Entry) ([]entry.ID, error) {
	ids := make([]entry.ID, 0, len(entries))
	_, err := s.write(ctx, "create", func(txn *index.WriteTxn) error {
		for _, e := range entries {
			e, err := s.prepareCreate(txn, e)
			if err != nil {
				return err
			}
			id, err := txn.Stage(index.Create(e))
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *QueryServer) prepareCreate(txn *index.WriteTxn, e *entry.Entry) (*entry.Entry, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil entry", ErrInvalidEntry)
	}
	if e.IsTombstone() {
		return nil, fmt.Errorf("%w: class %s is reserved", ErrInvalidEntry, entry.ClassTombstone)
	}

	u, ok := e.UUID()
	if !ok {
		if e.Has(entry.AttrUUID) {
			return nil, fmt.Errorf("%w: malformed uuid %v", ErrInvalidEntry, e.Get(entry.AttrUUID))
		}
		u = uuid.New()
		var err error
		if e, err = e.Apply(entry.Replace(entry.AttrUUID, u.String())); err != nil {
			return nil, err
		}
	}

	if err := s.schema.Validate(e); err != nil {
		return nil, err
	}

	for dup := range txn.Search(filter.NewEqualityFilter(entry.AttrUUID, u.String())) {
		return nil, fmt.Errorf("%w: %s held by entry %d", ErrDuplicateUUID, u, dup.ID())
	}
	return e, nil
}

// Modify applies mods to the live entry id and returns the new version.
// A modification list that leaves the entry unchanged commits nothing.
func (s *QueryServer) Modify(ctx context.Context, id entry.ID, mods ...entry.Modification) (*entry.Entry, error) {
	var out *entry.Entry
	_, err := s.write(ctx, "modify", func(txn *index.WriteTxn) error {
		cur, ok := txn.Get(id)
		if !ok || cur.IsTombstone() {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		next, err := s.stageModify(txn, cur, mods)
		if err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ModifyMatching applies mods to every live entry matching f and returns
// how many entries changed. One invalid result aborts all of them.
func (s *QueryServer) ModifyMatching(ctx context.Context, f *filter.Filter, mods ...entry.Modification) (int, error) {
	n := 0
	_, err := s.write(ctx, "modify", func(txn *index.WriteTxn) error {
		for _, cur := range liveMatches(txn, f) {
			next, err := s.stageModify(txn, cur, mods)
			if err != nil {
				return err
			}
			if next != cur {
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// stageModify returns cur itself when mods change nothing.
func (s *QueryServer) stageModify(txn *index.WriteTxn, cur *entry.Entry, mods []entry.Modification) (*entry.Entry, error) {
	next, err := cur.Apply(mods...)
	if err != nil {
		return nil, err
	}
	if next.Equal(cur) {
		return cur, nil
	}
	if !slices.Equal(next.Get(entry.AttrUUID), cur.Get(entry.AttrUUID)) {
		return nil, fmt.Errorf("%w: uuid of entry %d is immutable", ErrInvalidEntry, cur.ID())
	}
	if next.IsTombstone() {
		return nil, fmt.Errorf("%w: class %s is reserved", ErrInvalidEntry, entry.ClassTombstone)
	}
	if err := s.schema.Validate(next); err != nil {
		return nil, err
	}
	if _, err := txn.Stage(index.Modify(next)); err != nil {
		return nil, err
	}
	return next, nil
}

// Delete replaces the live entry id by its tombstone.
func (s *QueryServer) Delete(ctx context.Context, id entry.ID) error {
	_, err := s.write(ctx, "delete", func(txn *index.WriteTxn) error {
		cur, ok := txn.Get(id)
		if !ok || cur.IsTombstone() {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		_, err := txn.Stage(index.Modify(cur.Tombstone()))
		return err
	})
	return err
}

// DeleteMatching tombstones every live entry matching f and returns how
// many there were.
func (s *QueryServer) DeleteMatching(ctx context.Context, f *filter.Filter) (int, error) {
	n := 0
	_, err := s.write(ctx, "delete", func(txn *index.WriteTxn) error {
		for _, cur := range liveMatches(txn, f) {
			if _, err := txn.Stage(index.Modify(cur.Tombstone())); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// PurgeTombstones physically removes every tombstone and returns how many
// were removed.
func (s *QueryServer) PurgeTombstones(ctx context.Context) (int, error) {
	n := 0
	_, err := s.write(ctx, "purge", func(txn *index.WriteTxn) error {
		var ids []entry.ID
		for e := range txn.Search(filter.NewEqualityFilter(entry.AttrClass, entry.ClassTombstone)) {
			ids = append(ids, e.ID())
		}
		for _, id := range ids {
			if _, err := txn.Stage(index.Delete(id)); err != nil {
				return err
			}
		}
		n = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// liveMatches collects the non-tombstone entries matching f as seen by txn.
// Collecting first keeps staging from invalidating the iteration.
func liveMatches(txn *index.WriteTxn, f *filter.Filter) []*entry.Entry {
	var out []*entry.Entry
	for e := range txn.Search(f) {
		if !e.IsTombstone() {
			out = append(out, e)
		}
	}
	return out
}
