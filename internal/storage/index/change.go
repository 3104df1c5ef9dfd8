package index

import (
	"maps"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
)

// ChangeKind identifies the effect of a staged change.
type ChangeKind int

const (
	// ChangeCreate adds an entry under a new ID.
	ChangeCreate ChangeKind = iota
	// ChangeModify replaces an existing entry with a new instance.
	ChangeModify
	// ChangeDelete removes an entry.
	ChangeDelete
)

// String returns the string representation of the ChangeKind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeCreate:
		return "create"
	case ChangeModify:
		return "modify"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is one staged create, modify or delete. Entry is the new state
// and is nil for deletes. Prior is the state in the transaction's base
// snapshot and is nil for creates; Stage fills it in.
type Change struct {
	Kind  ChangeKind
	ID    entry.ID
	Entry *entry.Entry
	Prior *entry.Entry
}

// Create returns a change adding e. An ID of zero is assigned on staging.
func Create(e *entry.Entry) Change {
	return Change{Kind: ChangeCreate, ID: e.ID(), Entry: e}
}

// Modify returns a change replacing the entry with e's ID by e.
func Modify(e *entry.Entry) Change {
	return Change{Kind: ChangeModify, ID: e.ID(), Entry: e}
}

// Delete returns a change removing the entry with the given ID.
func Delete(id entry.ID) Change {
	return Change{Kind: ChangeDelete, ID: id}
}

// derive returns a new snapshot holding the base plus changes. Each ID
// must appear at most once. Only nodes on changed paths are allocated.
func (s *Snapshot) derive(changes []Change, nextID entry.ID) *Snapshot {
	next := s.successor(nextID)
	for _, c := range changes {
		next.put(c.ID, c.Entry)
	}
	return next
}

// successor returns an unpublished copy of s numbered one higher.
func (s *Snapshot) successor(nextID entry.ID) *Snapshot {
	next := s.clone()
	next.id++
	next.nextID = max(next.nextID, nextID)
	return next
}

// clone copies s with its own attribute map, so put on the copy leaves s
// untouched.
func (s *Snapshot) clone() *Snapshot {
	c := *s
	c.attrs = maps.Clone(s.attrs)
	return &c
}

// put stores e under id, or removes id when e is nil, and moves its
// postings. s must not have been handed out yet.
func (s *Snapshot) put(id entry.ID, e *entry.Entry) {
	prior, _ := s.entries.Get(id)
	if e == nil {
		s.entries, _ = s.entries.Delete(id)
	} else {
		s.entries = s.entries.Put(id, e)
	}
	s.reindex(id, prior, e)
	if id >= s.nextID {
		s.nextID = id + 1
	}
}

// reindex moves id between postings lists for every indexed attribute
// whose keys differ between prior and current. Unchanged keys allocate
// nothing.
func (s *Snapshot) reindex(id entry.ID, prior, current *entry.Entry) {
	for attr, tree := range s.attrs {
		before := s.indexKeys(attr, prior)
		after := s.indexKeys(attr, current)

		i, j := 0, 0
		for i < len(before) || j < len(after) {
			switch {
			case j == len(after) || (i < len(before) && before[i] < after[j]):
				tree = removePosting(tree, before[i], id)
				i++
			case i == len(before) || after[j] < before[i]:
				tree = addPosting(tree, after[j], id)
				j++
			default:
				i++
				j++
			}
		}
		s.attrs[attr] = tree
	}
}

func addPosting(tree *valueTree, key string, id entry.ID) *valueTree {
	p, ok := tree.Get(key)
	if !ok {
		return tree.Put(key, newPostings(id))
	}
	if np := p.with(id); np != p {
		return tree.Put(key, np)
	}
	return tree
}

func removePosting(tree *valueTree, key string, id entry.ID) *valueTree {
	p, ok := tree.Get(key)
	if !ok {
		return tree
	}
	np := p.without(id)
	switch {
	case np == nil:
		tree, _ = tree.Delete(key)
	case np != p:
		tree = tree.Put(key, np)
	}
	return tree
}
