package backend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
	"github.com/KilimcininKorOglu/obacore/internal/schema"
	"github.com/KilimcininKorOglu/obacore/internal/storage/durable"
	"github.com/KilimcininKorOglu/obacore/internal/storage/index"
	"github.com/KilimcininKorOglu/obacore/internal/storage/stream"
)

// gatedStore holds the first Begin after arm until release is closed and
// records whether Begin contexts carried a deadline.
type gatedStore struct {
	*durable.Memory

	mu       sync.Mutex
	armed    bool
	entered  chan struct{}
	release  chan struct{}
	deadline bool
}

func newGatedStore() *gatedStore {
	return &gatedStore{Memory: durable.NewMemory()}
}

func (g *gatedStore) arm() {
	g.mu.Lock()
	g.armed = true
	g.entered = make(chan struct{})
	g.release = make(chan struct{})
	g.mu.Unlock()
}

func (g *gatedStore) Begin(ctx context.Context) (durable.Txn, error) {
	g.mu.Lock()
	armed := g.armed
	g.armed = false
	entered, release := g.entered, g.release
	if _, ok := ctx.Deadline(); ok {
		g.deadline = true
	}
	g.mu.Unlock()

	if armed {
		close(entered)
		<-release
	}
	return g.Memory.Begin(ctx)
}

func (g *gatedStore) sawDeadline() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deadline
}

func TestWaitingWriterStopsAfterHalt(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	srv, err := Open(ctx, store, schema.Default())
	require.NoError(t, err)
	_, err = srv.Create(ctx, account(1, "alice"))
	require.NoError(t, err)

	store.arm()
	store.SetFaults(durable.Faults{Indeterminate: errors.New("fsync failed")})

	first := make(chan error, 1)
	go func() {
		_, err := srv.Create(ctx, account(2, "bob"))
		first <- err
	}()
	<-store.entered

	second := make(chan error, 1)
	go func() {
		_, err := srv.Create(ctx, account(3, "carol"))
		second <- err
	}()
	// Let the second writer pass the entry check and queue for the token.
	time.Sleep(50 * time.Millisecond)
	close(store.release)

	select {
	case err := <-first:
		var serr *StoreError
		require.True(t, errors.As(err, &serr), "got %v", err)
		assert.True(t, serr.Fatal)
	case <-time.After(5 * time.Second):
		t.Fatal("first writer never finished")
	}

	select {
	case err := <-second:
		assert.ErrorIs(t, err, ErrHalted)
	case <-time.After(5 * time.Second):
		t.Fatal("second writer never finished")
	}

	// alice and the indeterminate bob; carol never reached the store.
	assert.Equal(t, 2, store.Len())
	_, ok := store.Get(3)
	assert.False(t, ok)
}

func TestConcurrentWritersPublishInCommitOrder(t *testing.T) {
	const (
		writers = 8
		each    = 20
	)
	ctx := context.Background()
	broker := stream.NewBroker(stream.WithChannelSize(writers * each * 2))
	defer broker.Close()
	srv, _ := newServer(t, WithBroker(broker))

	sub, err := broker.Subscribe(stream.MatchAll())
	require.NoError(t, err)

	g, gctx := errgroup.WithContext(ctx)
	for w := range writers {
		g.Go(func() error {
			for i := range each {
				if _, err := srv.Create(gctx, account(0, fmt.Sprintf("user-%d-%d", w, i))); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var last stream.ChangeEvent
	for n := range writers * each {
		select {
		case ev := <-sub.C:
			assert.Equal(t, uint64(n+1), ev.Token)
			assert.Greater(t, ev.Snapshot, last.Snapshot, "token %d", ev.Token)
			last = ev
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d events", n)
		}
	}
	assert.Equal(t, uint64(srv.index.Current().ID()), last.Snapshot)
}

func TestCreateAtIDLimit(t *testing.T) {
	ctx := context.Background()
	srv, store := newServer(t)

	ids, err := srv.Create(ctx, account(index.MaxID, "last"))
	require.NoError(t, err)
	assert.Equal(t, []entry.ID{index.MaxID}, ids)

	_, err = srv.Create(ctx, account(0, "overflow"))
	assert.ErrorIs(t, err, index.ErrInvalidChange)
	_, err = srv.Create(ctx, account(math.MaxUint64, "overflow"))
	assert.ErrorIs(t, err, index.ErrInvalidChange)

	assert.Equal(t, 1, store.Len())
	assert.NoError(t, srv.Halted())

	// Lower free IDs can still be given explicitly.
	_, err = srv.Create(ctx, account(5, "five"))
	assert.NoError(t, err)
}

func TestAcquireTimeoutBoundsOnlyTheWait(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	srv, err := Open(ctx, store, schema.Default(), WithAcquireTimeout(20*time.Millisecond))
	require.NoError(t, err)

	held, err := srv.index.OpenWrite(ctx)
	require.NoError(t, err)
	_, err = srv.Create(ctx, account(0, "alice"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	held.Abort()

	// A write that outlives the timeout once it holds the token still
	// commits.
	store.arm()
	done := make(chan error, 1)
	go func() {
		_, err := srv.Create(ctx, account(0, "alice"))
		done <- err
	}()
	<-store.entered
	time.Sleep(50 * time.Millisecond)
	close(store.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("write never finished")
	}
	assert.False(t, store.sawDeadline())
	assert.Equal(t, 1, store.Len())
}
