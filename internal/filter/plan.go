package filter

import (
	"strings"
)

// PlanKind identifies how a plan node produces candidate entries.
type PlanKind int

const (
	// PlanFullScan visits every entry.
	PlanFullScan PlanKind = iota
	// PlanEquality reads the postings of one normalized value.
	PlanEquality
	// PlanPresence unions every postings list of an attribute.
	PlanPresence
	// PlanPrefix unions the postings of all values starting with a prefix.
	PlanPrefix
	// PlanIntersect intersects the candidates of its children.
	PlanIntersect
	// PlanUnion unions the candidates of its children.
	PlanUnion
)

// String returns the string representation of the PlanKind.
func (k PlanKind) String() string {
	switch k {
	case PlanFullScan:
		return "FULL_SCAN"
	case PlanEquality:
		return "EQ"
	case PlanPresence:
		return "PRES"
	case PlanPrefix:
		return "PREFIX"
	case PlanIntersect:
		return "AND"
	case PlanUnion:
		return "OR"
	default:
		return "UNKNOWN"
	}
}

// QueryPlan represents an execution plan for a filter query. Index nodes
// yield candidate sets; when the plan is not Exact every candidate must
// still be checked against PostFilter.
type QueryPlan struct {
	Kind PlanKind

	// Attr is the indexed attribute for EQ, PRES and PREFIX nodes.
	Attr string

	// Key is the normalized lookup value for EQ, or the prefix for PREFIX.
	Key string

	// Children holds the operands of AND and OR nodes.
	Children []*QueryPlan

	// Exact reports that the candidates are exactly the matching entries.
	Exact bool

	// PostFilter is evaluated against each candidate. Nil when Exact.
	PostFilter *Filter

	// EstimatedCost is the estimated cost of executing this plan.
	// Cost units are arbitrary but consistent for comparison.
	EstimatedCost int

	// OriginalFilter is the filter that was planned.
	OriginalFilter *Filter
}

// Cost constants for query planning.
const (
	// CostFullScan is the base cost for a full table scan.
	CostFullScan = 10000

	// CostIndexLookup is the base cost for an index lookup.
	CostIndexLookup = 10

	// CostPostFilter is the additional cost per post-filter condition.
	CostPostFilter = 100

	// CostOrUnion is the cost per branch of an OR union.
	CostOrUnion = 50

	// CostSubstringIndex is the cost for a prefix scan of an index.
	CostSubstringIndex = 50

	// CostPresenceIndex is the cost for unioning every postings list.
	CostPresenceIndex = 30
)

// NewFullScanPlan creates a query plan that performs a full scan.
func NewFullScanPlan(filter *Filter) *QueryPlan {
	return &QueryPlan{
		Kind:           PlanFullScan,
		PostFilter:     filter,
		EstimatedCost:  CostFullScan,
		OriginalFilter: filter,
	}
}

// IsFullScan returns true if this plan requires a full table scan.
func (p *QueryPlan) IsFullScan() bool {
	return p.Kind == PlanFullScan
}

// HasPostFilter returns true if post-filtering is required.
func (p *QueryPlan) HasPostFilter() bool {
	return p.PostFilter != nil
}

// String returns a human-readable description of the query plan.
func (p *QueryPlan) String() string {
	var b strings.Builder
	p.describe(&b)
	if p.Kind != PlanFullScan && p.PostFilter != nil {
		b.WriteString(" + POST_FILTER")
	}
	return b.String()
}

func (p *QueryPlan) describe(b *strings.Builder) {
	switch p.Kind {
	case PlanEquality:
		b.WriteString("EQ(" + p.Attr + "=" + p.Key + ")")
	case PlanPresence:
		b.WriteString("PRES(" + p.Attr + ")")
	case PlanPrefix:
		b.WriteString("PREFIX(" + p.Attr + "=" + p.Key + "*)")
	case PlanIntersect, PlanUnion:
		b.WriteString(p.Kind.String() + "(")
		for i, c := range p.Children {
			if i > 0 {
				b.WriteString(", ")
			}
			c.describe(b)
		}
		b.WriteString(")")
	default:
		b.WriteString(p.Kind.String())
	}
}
