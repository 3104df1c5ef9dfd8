package filter

import (
	"github.com/KilimcininKorOglu/obacore/internal/entry"
)

// Indexes reports which attributes carry an equality index.
type Indexes interface {
	IsIndexed(attr string) bool
}

// Optimizer analyzes filters and creates query plans using available indexes.
type Optimizer struct {
	indexes Indexes
	m       Matcher
}

// NewOptimizer creates a new Optimizer. Lookup keys are normalized with m,
// which must be the normalization the indexes were built with.
func NewOptimizer(indexes Indexes, m Matcher) *Optimizer {
	if m == nil {
		m = foldMatcher{}
	}
	return &Optimizer{
		indexes: indexes,
		m:       m,
	}
}

// Optimize analyzes a filter and returns a query plan. The plan's
// PostFilter is the whole filter whenever the index candidates are a
// superset of the matches.
func (o *Optimizer) Optimize(filter *Filter) *QueryPlan {
	if filter == nil {
		return NewFullScanPlan(nil)
	}

	plan := o.plan(filter)
	plan.OriginalFilter = filter
	if plan.Kind == PlanFullScan || !plan.Exact {
		plan.PostFilter = filter
	} else {
		plan.PostFilter = nil
	}
	if plan.PostFilter != nil && plan.Kind != PlanFullScan {
		plan.EstimatedCost += o.estimateCost(filter)
	}
	return plan
}

func (o *Optimizer) plan(filter *Filter) *QueryPlan {
	if o.indexes == nil {
		return NewFullScanPlan(filter)
	}

	switch filter.Type {
	case FilterEquality:
		attr := entry.NormalizeName(filter.Attribute)
		if !o.indexes.IsIndexed(attr) {
			return NewFullScanPlan(filter)
		}
		return &QueryPlan{
			Kind:          PlanEquality,
			Attr:          attr,
			Key:           o.m.Normalize(attr, filter.Value),
			Exact:         true,
			EstimatedCost: CostIndexLookup,
		}
	case FilterPresent:
		attr := entry.NormalizeName(filter.Attribute)
		if !o.indexes.IsIndexed(attr) {
			return NewFullScanPlan(filter)
		}
		return &QueryPlan{
			Kind:          PlanPresence,
			Attr:          attr,
			Exact:         true,
			EstimatedCost: CostPresenceIndex,
		}
	case FilterSubstring:
		return o.planSubstring(filter)
	case FilterAnd:
		return o.planAnd(filter)
	case FilterOr:
		return o.planOr(filter)
	default:
		// NOT and range filters are evaluated by scanning.
		return NewFullScanPlan(filter)
	}
}

// planSubstring uses a prefix scan when the pattern has an initial
// component. Candidates may still fail the middle and final components.
func (o *Optimizer) planSubstring(filter *Filter) *QueryPlan {
	sf := filter.Substring
	if sf == nil || sf.Initial == "" {
		return NewFullScanPlan(filter)
	}
	attr := entry.NormalizeName(sf.Attribute)
	if !o.indexes.IsIndexed(attr) {
		return NewFullScanPlan(filter)
	}
	return &QueryPlan{
		Kind:          PlanPrefix,
		Attr:          attr,
		Key:           o.m.Normalize(attr, sf.Initial),
		Exact:         false,
		EstimatedCost: CostSubstringIndex,
	}
}

// planAnd intersects every indexable child. The rest are left to the
// post-filter.
func (o *Optimizer) planAnd(filter *Filter) *QueryPlan {
	var indexed []*QueryPlan
	exact := true
	for _, child := range filter.Children {
		p := o.plan(child)
		if p.Kind == PlanFullScan {
			exact = false
			continue
		}
		exact = exact && p.Exact
		indexed = append(indexed, p)
	}

	switch len(indexed) {
	case 0:
		return NewFullScanPlan(filter)
	case 1:
		p := indexed[0]
		p.Exact = exact
		return p
	}

	cost := 0
	for _, p := range indexed {
		cost += p.EstimatedCost
	}
	return &QueryPlan{
		Kind:          PlanIntersect,
		Children:      indexed,
		Exact:         exact,
		EstimatedCost: cost,
	}
}

// planOr unions the children when every branch can use an index.
func (o *Optimizer) planOr(filter *Filter) *QueryPlan {
	if len(filter.Children) == 0 {
		return NewFullScanPlan(filter)
	}

	children := make([]*QueryPlan, 0, len(filter.Children))
	exact := true
	cost := 0
	for _, child := range filter.Children {
		p := o.plan(child)
		if p.Kind == PlanFullScan {
			return NewFullScanPlan(filter)
		}
		exact = exact && p.Exact
		cost += p.EstimatedCost + CostOrUnion
		children = append(children, p)
	}

	if len(children) == 1 {
		return children[0]
	}
	return &QueryPlan{
		Kind:          PlanUnion,
		Children:      children,
		Exact:         exact,
		EstimatedCost: cost,
	}
}

// estimateCost estimates the cost of evaluating a filter without an index.
func (o *Optimizer) estimateCost(filter *Filter) int {
	if filter == nil {
		return 0
	}

	switch filter.Type {
	case FilterAnd, FilterOr:
		cost := 0
		for _, child := range filter.Children {
			cost += o.estimateCost(child)
		}
		return cost
	case FilterNot:
		return o.estimateCost(filter.Child)
	case FilterPresent:
		return CostPostFilter / 2 // Presence checks are cheap
	case FilterSubstring:
		return CostPostFilter * 2 // Substring matching is expensive
	default:
		return CostPostFilter
	}
}
