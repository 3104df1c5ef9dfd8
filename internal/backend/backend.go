package backend

import (
	"context"
	"fmt"
	"iter"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
	"github.com/KilimcininKorOglu/obacore/internal/logging"
	"github.com/KilimcininKorOglu/obacore/internal/schema"
	"github.com/KilimcininKorOglu/obacore/internal/storage/durable"
	"github.com/KilimcininKorOglu/obacore/internal/storage/index"
	"github.com/KilimcininKorOglu/obacore/internal/storage/stream"
)

// Backend is the contract a request server consumes. Callers are
// authorized before they reach it.
type Backend interface {
	// Search yields the live entries matching f in ascending ID order.
	Search(ctx context.Context, f *filter.Filter, opts ...SearchOption) iter.Seq2[*entry.Entry, error]

	// Get returns the live entry with the given ID.
	Get(ctx context.Context, id entry.ID) (*entry.Entry, error)

	// Create adds entries in one transaction and returns their IDs.
	Create(ctx context.Context, entries ...*entry.Entry) ([]entry.ID, error)

	// Modify applies mods to one entry and returns the new version.
	Modify(ctx context.Context, id entry.ID, mods ...entry.Modification) (*entry.Entry, error)

	// Delete replaces an entry by its tombstone.
	Delete(ctx context.Context, id entry.ID) error
}

// QueryServer binds the schema, the concurrent index and a durable store.
// Reads never block. Writes are serialized by the index write token and
// follow validate, stage, durable commit, publish.
type QueryServer struct {
	schema *schema.Schema
	index  *index.Index
	store  durable.Store
	broker *stream.Broker
	log    logging.Logger

	nonBlocking    bool
	acquireTimeout time.Duration
	workers        int

	halted atomic.Pointer[haltCause]
}

type haltCause struct {
	err error
}

var _ Backend = (*QueryServer)(nil)

// Option configures a QueryServer.
type Option func(*QueryServer)

// WithLogger sets the logger. The default discards output.
func WithLogger(l logging.Logger) Option {
	return func(s *QueryServer) { s.log = l }
}

// WithBroker publishes committed changes to b.
func WithBroker(b *stream.Broker) Option {
	return func(s *QueryServer) { s.broker = b }
}

// WithNonBlockingWrites makes writes fail with ErrWriteConflict instead of
// waiting for the write token.
func WithNonBlockingWrites() Option {
	return func(s *QueryServer) { s.nonBlocking = true }
}

// WithAcquireTimeout bounds how long a blocking write waits for the write
// token. It does not limit the write once the token is held.
func WithAcquireTimeout(d time.Duration) Option {
	return func(s *QueryServer) { s.acquireTimeout = d }
}

// WithVerifyWorkers bounds the parallelism of Verify.
func WithVerifyWorkers(n int) Option {
	return func(s *QueryServer) {
		if n > 0 {
			s.workers = n
		}
	}
}

// Open loads every record from store into a new index and returns a server
// over it. The store stays owned by the caller.
func Open(ctx context.Context, store durable.Store, sch *schema.Schema, opts ...Option) (*QueryServer, error) {
	s := &QueryServer{
		schema:  sch,
		store:   store,
		log:     logging.NewNop(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}

	var loadErr error
	entries := func(yield func(*entry.Entry) bool) {
		for rec, err := range store.LoadAll(ctx) {
			if err != nil {
				loadErr = err
				return
			}
			e, err := entry.Unmarshal(rec.ID, rec.Data)
			if err != nil {
				loadErr = fmt.Errorf("backend: load entry %d: %w", rec.ID, err)
				return
			}
			if !yield(e) {
				return
			}
		}
	}

	ix, err := index.Load(sch, entries)
	if loadErr != nil {
		return nil, loadErr
	}
	if err != nil {
		return nil, fmt.Errorf("backend: load: %w", err)
	}
	s.index = ix

	st := ix.Stats()
	s.log.Info("directory loaded", "entries", st.Entries, "indexed", len(st.Indexed))
	return s, nil
}

// Schema returns the schema writes are validated against.
func (s *QueryServer) Schema() *schema.Schema {
	return s.schema
}

// Stats returns index statistics.
func (s *QueryServer) Stats() index.Stats {
	return s.index.Stats()
}

// Halted returns the failure that halted writes, or nil.
func (s *QueryServer) Halted() error {
	if c := s.halted.Load(); c != nil {
		return c.err
	}
	return nil
}

func (s *QueryServer) halt(err error) {
	if s.halted.CompareAndSwap(nil, &haltCause{err: err}) {
		s.log.Error("writes halted", "err", err)
	}
}
