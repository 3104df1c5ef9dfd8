package index

import (
	"iter"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
)

// Explain returns the plan Search uses for f against this snapshot.
func (s *Snapshot) Explain(f *filter.Filter) *filter.QueryPlan {
	return filter.NewOptimizer(s, s.keys).Optimize(f)
}

// Search returns the entries matching f in ascending ID order. Indexed
// plans read candidate IDs from the postings; everything else scans the
// primary tree. Candidates are re-checked whenever the plan is not exact.
func (s *Snapshot) Search(f *filter.Filter) iter.Seq[*entry.Entry] {
	plan := s.Explain(f)
	ev := filter.NewEvaluator(s.keys)

	match := func(e *entry.Entry) bool {
		return plan.PostFilter == nil || ev.Evaluate(plan.PostFilter, e)
	}

	if plan.IsFullScan() {
		return func(yield func(*entry.Entry) bool) {
			for _, e := range s.entries.All() {
				if match(e) && !yield(e) {
					return
				}
			}
		}
	}

	return func(yield func(*entry.Entry) bool) {
		it := s.candidates(plan).Iterator()
		for it.HasNext() {
			e, ok := s.entries.Get(entry.ID(it.Next()))
			if !ok {
				continue
			}
			if match(e) && !yield(e) {
				return
			}
		}
	}
}

// candidates evaluates the index part of a plan into a fresh bitmap that
// the caller may modify.
func (s *Snapshot) candidates(p *filter.QueryPlan) *roaring64.Bitmap {
	switch p.Kind {
	case filter.PlanEquality:
		if tree := s.attrs[p.Attr]; tree != nil {
			if postings, ok := tree.Get(p.Key); ok {
				return postings.Bitmap()
			}
		}
		return roaring64.New()
	case filter.PlanPresence:
		bm := roaring64.New()
		if tree := s.attrs[p.Attr]; tree != nil {
			for _, postings := range tree.All() {
				bm.Or(postings.bitmap())
			}
		}
		return bm
	case filter.PlanPrefix:
		bm := roaring64.New()
		if tree := s.attrs[p.Attr]; tree != nil {
			for key, postings := range tree.Ascend(p.Key) {
				if !strings.HasPrefix(key, p.Key) {
					break
				}
				bm.Or(postings.bitmap())
			}
		}
		return bm
	case filter.PlanIntersect:
		bm := s.candidates(p.Children[0])
		for _, c := range p.Children[1:] {
			if bm.IsEmpty() {
				break
			}
			bm.And(s.candidates(c))
		}
		return bm
	case filter.PlanUnion:
		bm := roaring64.New()
		for _, c := range p.Children {
			bm.Or(s.candidates(c))
		}
		return bm
	default:
		bm := roaring64.New()
		for id := range s.entries.All() {
			bm.Add(uint64(id))
		}
		return bm
	}
}
