// Package stream fans out committed directory changes to subscribers. Each
// published event gets a monotonically increasing token; a bounded replay
// buffer lets a subscriber that lost its channel resume from the last token
// it saw.
package stream

import (
	"time"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
)

// Operation is the kind of change an event reports.
type Operation uint8

const (
	// OpCreate reports a new entry.
	OpCreate Operation = iota + 1
	// OpModify reports a new version of an existing entry.
	OpModify
	// OpDelete reports an entry replaced by its tombstone.
	OpDelete
	// OpPurge reports a tombstone physically removed.
	OpPurge
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	case OpPurge:
		return "purge"
	default:
		return "unknown"
	}
}

// ChangeEvent is one committed change.
type ChangeEvent struct {
	// Token orders events; assigned by the broker.
	Token uint64
	// Operation is the change kind.
	Operation Operation
	// ID identifies the affected entry.
	ID entry.ID
	// Snapshot is the index snapshot that made the change visible.
	Snapshot uint64
	// Entry is the entry as committed; for OpDelete it is the last live
	// version. Nil for OpPurge.
	Entry *entry.Entry
	// Timestamp is set when the event is published.
	Timestamp time.Time
}
