package durable

import (
	"context"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
)

// Faults injects errors into a Memory store. A nil field means no fault.
type Faults struct {
	// Begin is returned by Begin.
	Begin error
	// Put is returned by Put and Delete.
	Put error
	// Commit is returned by Commit without applying the batch.
	Commit error
	// Indeterminate is returned by Commit after the batch was applied,
	// wrapped in an indeterminate *Error.
	Indeterminate error
}

// Memory is an in-memory Store. It keeps committed records in a map and
// can inject faults for tests.
type Memory struct {
	mu      sync.Mutex
	records map[entry.ID][]byte
	faults  Faults
	commits int
	closed  bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[entry.ID][]byte)}
}

// SetFaults replaces the injected faults.
func (m *Memory) SetFaults(f Faults) {
	m.mu.Lock()
	m.faults = f
	m.mu.Unlock()
}

// Len returns the number of committed records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Get returns a copy of the committed record for id.
func (m *Memory) Get(id entry.ID) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.records[id]
	return slices.Clone(data), ok
}

// Commits returns the number of successfully applied batches.
func (m *Memory) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

func (m *Memory) Begin(ctx context.Context) (Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "begin", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.faults.Begin != nil {
		return nil, &Error{Op: "begin", Err: m.faults.Begin}
	}
	return &memoryTxn{m: m, puts: make(map[entry.ID][]byte)}, nil
}

func (m *Memory) LoadAll(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			yield(Record{}, ErrClosed)
			return
		}
		ids := slices.Sorted(maps.Keys(m.records))
		recs := make([]Record, len(ids))
		for i, id := range ids {
			recs[i] = Record{ID: id, Data: slices.Clone(m.records[id])}
		}
		m.mu.Unlock()

		for _, r := range recs {
			if err := ctx.Err(); err != nil {
				yield(Record{}, &Error{Op: "load", Err: err})
				return
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

type memoryTxn struct {
	m    *Memory
	puts map[entry.ID][]byte // nil value marks a delete
	done bool
}

func (t *memoryTxn) stage(id entry.ID, data []byte) error {
	if t.done {
		return ErrTxnDone
	}
	t.m.mu.Lock()
	fault := t.m.faults.Put
	t.m.mu.Unlock()
	if fault != nil {
		return &Error{Op: "put", Err: fault}
	}
	t.puts[id] = data
	return nil
}

func (t *memoryTxn) Put(id entry.ID, data []byte) error {
	buf := slices.Clone(data)
	if buf == nil {
		buf = []byte{}
	}
	return t.stage(id, buf)
}

func (t *memoryTxn) Delete(id entry.ID) error {
	return t.stage(id, nil)
}

func (t *memoryTxn) Commit() error {
	if t.done {
		return ErrTxnDone
	}
	t.done = true

	m := t.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.faults.Commit != nil {
		return &Error{Op: "commit", Err: m.faults.Commit}
	}
	for id, data := range t.puts {
		if data == nil {
			delete(m.records, id)
			continue
		}
		m.records[id] = data
	}
	m.commits++
	if m.faults.Indeterminate != nil {
		return &Error{Op: "commit", Err: m.faults.Indeterminate, Indeterminate: true}
	}
	return nil
}

func (t *memoryTxn) Rollback() error {
	t.done = true
	return nil
}
