package stream

import (
	"slices"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
)

// WatchFilter selects events. Empty fields match everything; non-empty
// fields must all match.
type WatchFilter struct {
	// Operations limits the change kinds.
	Operations []Operation
	// Classes limits events to entries declaring any of these object
	// classes. Purge events carry no entry and never match a class filter.
	Classes []string
	// IDs limits events to the given entries.
	IDs []entry.ID
}

// Matches reports whether event passes the filter.
func (f *WatchFilter) Matches(event *ChangeEvent) bool {
	if event == nil {
		return false
	}
	if len(f.Operations) > 0 && !slices.Contains(f.Operations, event.Operation) {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, event.ID) {
		return false
	}
	if len(f.Classes) > 0 {
		if event.Entry == nil {
			return false
		}
		return slices.ContainsFunc(f.Classes, event.Entry.HasClass)
	}
	return true
}

// MatchAll returns a filter that matches every event.
func MatchAll() WatchFilter {
	return WatchFilter{}
}

// MatchID returns a filter for the changes of one entry.
func MatchID(id entry.ID) WatchFilter {
	return WatchFilter{IDs: []entry.ID{id}}
}

// MatchClass returns a filter for entries of the given object classes.
func MatchClass(classes ...string) WatchFilter {
	return WatchFilter{Classes: classes}
}
