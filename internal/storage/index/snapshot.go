package index

import (
	"cmp"
	"iter"
	"maps"
	"slices"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
	"github.com/KilimcininKorOglu/obacore/internal/storage/ptree"
)

// KeySpace decides which attributes are indexed and how their values are
// normalized into index keys. *schema.Schema implements it.
type KeySpace interface {
	filter.Matcher
	IndexedAttributes() []string
}

// SnapshotID numbers published snapshots. Each commit adds one.
type SnapshotID uint64

type (
	entryTree = ptree.Tree[entry.ID, *entry.Entry]
	valueTree = ptree.Tree[string, *Postings]
)

// Snapshot is an immutable, point-in-time view of all entries and their
// secondary indexes. It is safe for concurrent use.
type Snapshot struct {
	id      SnapshotID
	entries *entryTree
	attrs   map[string]*valueTree
	nextID  entry.ID
	keys    KeySpace
}

func newSnapshot(keys KeySpace) *Snapshot {
	s := &Snapshot{
		entries: ptree.New[entry.ID, *entry.Entry](cmp.Compare[entry.ID]),
		attrs:   make(map[string]*valueTree),
		nextID:  1,
		keys:    keys,
	}
	for _, attr := range keys.IndexedAttributes() {
		s.attrs[entry.NormalizeName(attr)] = ptree.New[string, *Postings](cmp.Compare[string])
	}
	return s
}

// buildSnapshot creates a snapshot from entries sorted by ascending ID.
func buildSnapshot(keys KeySpace, sorted []*entry.Entry) (*Snapshot, error) {
	s := newSnapshot(keys)

	entries, err := ptree.Build(cmp.Compare[entry.ID], func(yield func(entry.ID, *entry.Entry) bool) {
		for _, e := range sorted {
			if !yield(e.ID(), e) {
				return
			}
		}
	})
	if err != nil {
		return nil, ErrDuplicateID
	}
	s.entries = entries
	if n := len(sorted); n > 0 {
		s.nextID = sorted[n-1].ID() + 1
	}

	for attr := range s.attrs {
		values := make(map[string][]entry.ID)
		for _, e := range sorted {
			for _, key := range s.indexKeys(attr, e) {
				values[key] = append(values[key], e.ID())
			}
		}
		var perr error
		tree, err := ptree.Build(cmp.Compare[string], func(yield func(string, *Postings) bool) {
			for _, key := range slices.Sorted(maps.Keys(values)) {
				p, err := buildPostings(values[key])
				if err != nil {
					perr = err
					return
				}
				if !yield(key, p) {
					return
				}
			}
		})
		if err == nil {
			err = perr
		}
		if err != nil {
			return nil, err
		}
		s.attrs[attr] = tree
	}
	return s, nil
}

// ID returns the snapshot number.
func (s *Snapshot) ID() SnapshotID {
	return s.id
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return s.entries.Len()
}

// NextID returns the lowest ID never assigned in this snapshot's history.
func (s *Snapshot) NextID() entry.ID {
	return s.nextID
}

// Get returns the entry with the given ID.
func (s *Snapshot) Get(id entry.ID) (*entry.Entry, bool) {
	return s.entries.Get(id)
}

// All iterates every entry in ascending ID order.
func (s *Snapshot) All() iter.Seq[*entry.Entry] {
	return func(yield func(*entry.Entry) bool) {
		for _, e := range s.entries.All() {
			if !yield(e) {
				return
			}
		}
	}
}

// Entries returns the primary tree. Exposed for identity checks.
func (s *Snapshot) Entries() *ptree.Tree[entry.ID, *entry.Entry] {
	return s.entries
}

// Values returns the secondary tree of attr, or nil if attr is not indexed.
func (s *Snapshot) Values(attr string) *ptree.Tree[string, *Postings] {
	return s.attrs[entry.NormalizeName(attr)]
}

// IsIndexed reports whether attr has a secondary index.
func (s *Snapshot) IsIndexed(attr string) bool {
	_, ok := s.attrs[entry.NormalizeName(attr)]
	return ok
}

// Indexed returns the indexed attribute names in sorted order.
func (s *Snapshot) Indexed() []string {
	return slices.Sorted(maps.Keys(s.attrs))
}

// Lookup returns the IDs whose attr holds value, or nil.
func (s *Snapshot) Lookup(attr, value string) *Postings {
	attr = entry.NormalizeName(attr)
	tree, ok := s.attrs[attr]
	if !ok {
		return nil
	}
	p, _ := tree.Get(s.keys.Normalize(attr, value))
	return p
}

// indexKeys returns the distinct normalized keys of attr on e.
func (s *Snapshot) indexKeys(attr string, e *entry.Entry) []string {
	if e == nil {
		return nil
	}
	values := e.Get(attr)
	keys := make([]string, 0, len(values))
	for _, v := range values {
		keys = append(keys, s.keys.Normalize(attr, v))
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}
