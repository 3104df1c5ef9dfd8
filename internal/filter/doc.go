// Package filter provides search filter data structures, parsing, evaluation
// and index-aware query planning for directory entries.
//
// # Overview
//
// Filters use the RFC 4515 text form and support:
//
//   - AND (&): Logical conjunction of filters
//   - OR (|): Logical disjunction of filters
//   - NOT (!): Logical negation of a filter
//   - Equality (=): Attribute value match under the attribute's normalization
//   - Substring (*): Pattern matching with wildcards
//   - Greater-or-Equal (>=) and Less-or-Equal (<=): Ordered comparison
//   - Present (=*): Attribute existence check
//
// # Filter Construction
//
//	// (&(class=account)(name=alice))
//	f := filter.NewAndFilter(
//	    filter.NewEqualityFilter("class", "account"),
//	    filter.NewEqualityFilter("name", "alice"),
//	)
//
//	f, err := filter.Parse("(&(class=account)(!(enabled=false)))")
//
// # Filter Evaluation
//
// The Evaluator takes a Matcher, usually the directory schema, which
// decides how values of each attribute are normalized and ordered:
//
//	ev := filter.NewEvaluator(schema)
//	if ev.Evaluate(f, e) {
//	    // e matches f
//	}
//
// # Query Planning
//
// The Optimizer turns a filter into a QueryPlan over equality indexes.
// Equality and presence on an indexed attribute are answered exactly;
// a substring with an initial component becomes a prefix scan; AND
// intersects and OR unions. NOT and range filters, and any OR with an
// unindexed branch, fall back to a full scan. Whenever the candidates
// may be a superset, the plan carries the whole filter as PostFilter.
package filter
