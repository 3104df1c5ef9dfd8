package index

import (
	"cmp"
	"iter"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
	"github.com/KilimcininKorOglu/obacore/internal/storage/ptree"
)

type idTree = ptree.Tree[entry.ID, struct{}]

// Postings is the immutable set of entry IDs holding one indexed value.
// Changes return a new set that shares all but one path with the receiver.
// Queries read a roaring bitmap built from the set on first use.
type Postings struct {
	ids *idTree

	once sync.Once
	bm   *roaring64.Bitmap
}

func newPostings(id entry.ID) *Postings {
	return &Postings{ids: ptree.New[entry.ID, struct{}](cmp.Compare[entry.ID]).Put(id, struct{}{})}
}

// buildPostings creates a set from strictly ascending IDs.
func buildPostings(sorted []entry.ID) (*Postings, error) {
	ids, err := ptree.Build(cmp.Compare[entry.ID], func(yield func(entry.ID, struct{}) bool) {
		for _, id := range sorted {
			if !yield(id, struct{}{}) {
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return &Postings{ids: ids}, nil
}

// Len returns the number of IDs.
func (p *Postings) Len() int {
	return p.ids.Len()
}

// Contains reports whether id is in the set.
func (p *Postings) Contains(id entry.ID) bool {
	return p.ids.Has(id)
}

// IDs iterates the IDs in ascending order.
func (p *Postings) IDs() iter.Seq[entry.ID] {
	return func(yield func(entry.ID) bool) {
		for id := range p.ids.All() {
			if !yield(id) {
				return
			}
		}
	}
}

// Tree returns the persistent set backing p. Exposed for sharing checks.
func (p *Postings) Tree() *ptree.Tree[entry.ID, struct{}] {
	return p.ids
}

// Bitmap returns a copy of the set as a bitmap.
func (p *Postings) Bitmap() *roaring64.Bitmap {
	return p.bitmap().Clone()
}

// bitmap returns the cached bitmap. Callers must not modify it.
func (p *Postings) bitmap() *roaring64.Bitmap {
	p.once.Do(func() {
		bm := roaring64.New()
		for id := range p.ids.All() {
			bm.Add(uint64(id))
		}
		bm.RunOptimize()
		p.bm = bm
	})
	return p.bm
}

func (p *Postings) with(id entry.ID) *Postings {
	if p.ids.Has(id) {
		return p
	}
	return &Postings{ids: p.ids.Put(id, struct{}{})}
}

// without returns nil when the last ID is removed.
func (p *Postings) without(id entry.ID) *Postings {
	ids, ok := p.ids.Delete(id)
	if !ok {
		return p
	}
	if ids.Len() == 0 {
		return nil
	}
	return &Postings{ids: ids}
}
