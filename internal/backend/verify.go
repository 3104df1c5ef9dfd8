package backend

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/sourcegraph/conc/pool"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
	"github.com/KilimcininKorOglu/obacore/internal/storage/index"
)

const verifyChunk = 256

// Verify checks the current snapshot: every entry against the schema and
// every secondary index against the entries, in both directions. It
// returns all problems found, sorted, or nil. Work is spread over a
// bounded pool.
func (s *QueryServer) Verify(ctx context.Context) []error {
	r := s.index.OpenRead()
	defer r.Close()
	snap := r.Snapshot()

	p := pool.NewWithResults[[]error]().WithMaxGoroutines(s.workers)

	var chunk []*entry.Entry
	flush := func() {
		batch := chunk
		chunk = nil
		p.Go(func() []error {
			if err := ctx.Err(); err != nil {
				return []error{err}
			}
			var errs []error
			for _, e := range batch {
				errs = append(errs, s.verifyEntry(snap, e)...)
			}
			return errs
		})
	}
	for e := range snap.All() {
		chunk = append(chunk, e)
		if len(chunk) == verifyChunk {
			flush()
		}
	}
	if len(chunk) > 0 {
		flush()
	}

	for _, attr := range snap.Indexed() {
		p.Go(func() []error {
			if err := ctx.Err(); err != nil {
				return []error{err}
			}
			return s.verifyPostings(snap, attr)
		})
	}

	var out []error
	for _, errs := range p.Wait() {
		out = append(out, errs...)
	}
	if len(out) == 0 {
		return nil
	}
	slices.SortFunc(out, func(a, b error) int {
		return cmp.Compare(a.Error(), b.Error())
	})
	out = slices.CompactFunc(out, func(a, b error) bool {
		return a.Error() == b.Error()
	})
	s.log.Warn("verify found problems", "count", len(out))
	return out
}

// verifyEntry checks e against the schema and checks that every indexed
// value of e is posted under e's ID.
func (s *QueryServer) verifyEntry(snap *index.Snapshot, e *entry.Entry) []error {
	var errs []error
	if err := s.schema.Validate(e); err != nil {
		errs = append(errs, fmt.Errorf("entry %d: %w", e.ID(), err))
	}
	for _, attr := range snap.Indexed() {
		for _, v := range e.Get(attr) {
			p := snap.Lookup(attr, v)
			if p == nil || !p.Contains(e.ID()) {
				errs = append(errs, fmt.Errorf("%w: entry %d: %s=%q not posted", ErrInconsistent, e.ID(), attr, v))
			}
		}
	}
	if u, ok := e.UUID(); ok && snap.IsIndexed(entry.AttrUUID) {
		if p := snap.Lookup(entry.AttrUUID, u.String()); p != nil && p.Len() > 1 {
			errs = append(errs, fmt.Errorf("%w: uuid %s held by %d entries", ErrDuplicateUUID, u, p.Len()))
		}
	}
	return errs
}

// verifyPostings checks that every ID posted under a key of attr exists
// and holds a value with that key.
func (s *QueryServer) verifyPostings(snap *index.Snapshot, attr string) []error {
	var errs []error
	for key, p := range snap.Values(attr).All() {
		if p == nil || p.Len() == 0 {
			errs = append(errs, fmt.Errorf("%w: %s=%q has an empty posting list", ErrInconsistent, attr, key))
			continue
		}
		for id := range p.IDs() {
			e, ok := snap.Get(id)
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %s=%q posts missing entry %d", ErrInconsistent, attr, key, id))
				continue
			}
			if !slices.ContainsFunc(e.Get(attr), func(v string) bool {
				return s.schema.Normalize(attr, v) == key
			}) {
				errs = append(errs, fmt.Errorf("%w: %s=%q posts entry %d without that value", ErrInconsistent, attr, key, id))
			}
		}
	}
	return errs
}
