package index

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
	"github.com/KilimcininKorOglu/obacore/internal/schema"
)

func newAccount(id entry.ID, name string, attrs ...string) *entry.Entry {
	m := map[string][]string{
		"class": {"account"},
		"name":  {name},
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		m[attrs[i]] = append(m[attrs[i]], attrs[i+1])
	}
	return entry.New(id, m)
}

func commitChanges(t *testing.T, ix *Index, changes ...Change) SnapshotID {
	t.Helper()
	wtx, err := ix.OpenWrite(context.Background())
	require.NoError(t, err)
	defer wtx.Abort()
	for _, c := range changes {
		_, err := wtx.Stage(c)
		require.NoError(t, err)
	}
	id, err := wtx.Commit(context.Background(), nil)
	require.NoError(t, err)
	return id
}

func loadAccounts(t testing.TB, n int) *Index {
	t.Helper()
	ix, err := Load(schema.Default(), func(yield func(*entry.Entry) bool) {
		for i := n; i >= 1; i-- {
			e := newAccount(entry.ID(i), fmt.Sprintf("user%04d", i),
				"gidnumber", fmt.Sprint(100+i%3),
				"mail", fmt.Sprintf("user%04d@example.com", i))
			if !yield(e) {
				return
			}
		}
	})
	require.NoError(t, err)
	return ix
}

func ids(seq func(func(*entry.Entry) bool)) []entry.ID {
	var out []entry.ID
	for e := range seq {
		out = append(out, e.ID())
	}
	return out
}

func TestSnapshotIsolation(t *testing.T) {
	ix := New(schema.Default())
	commitChanges(t, ix, Create(newAccount(1, "alice")))

	r0 := ix.OpenRead()
	defer r0.Close()

	commitChanges(t, ix, Create(newAccount(2, "bob")))
	commitChanges(t, ix, Modify(newAccount(1, "alice", "mail", "alice@example.com")))

	_, ok := r0.Get(2)
	assert.False(t, ok, "pinned reader must not see later creates")
	e, ok := r0.Get(1)
	require.True(t, ok)
	assert.False(t, e.Has("mail"))
	assert.Equal(t, []entry.ID{1}, ids(r0.Search(filter.MustParse("(class=account)"))))

	r1 := ix.OpenRead()
	defer r1.Close()
	_, ok = r1.Get(2)
	assert.True(t, ok)
	assert.Equal(t, []entry.ID{1, 2}, ids(r1.Search(filter.MustParse("(class=account)"))))
	assert.Equal(t, []entry.ID{1}, ids(r1.Search(filter.MustParse("(mail=*)"))))
	assert.Equal(t, SnapshotID(3), r1.Snapshot().ID())
}

func TestSingleWriterSerialization(t *testing.T) {
	ix := New(schema.Default())

	var active, peak atomic.Int32
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			wtx, err := ix.OpenWrite(ctx)
			if err != nil {
				return err
			}
			defer wtx.Abort()

			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)

			if _, err := wtx.Stage(Create(newAccount(0, fmt.Sprintf("user%d", i)))); err != nil {
				return err
			}
			_, err = wtx.Commit(ctx, nil)
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), peak.Load())
	stats := ix.Stats()
	assert.Equal(t, 16, stats.Entries)
	assert.Equal(t, uint64(16), stats.Commits)
	assert.Equal(t, SnapshotID(16), stats.Snapshot)

	// IDs are assigned without gaps.
	assert.Equal(t, entry.ID(17), ix.Current().NextID())
}

func TestTryOpenWriteConflict(t *testing.T) {
	ix := New(schema.Default())

	wtx, err := ix.TryOpenWrite()
	require.NoError(t, err)

	_, err = ix.TryOpenWrite()
	assert.ErrorIs(t, err, ErrWriteConflict)
	assert.Equal(t, uint64(1), ix.Stats().Conflicts)

	wtx.Abort()
	wtx2, err := ix.TryOpenWrite()
	require.NoError(t, err)
	wtx2.Abort()
}

func TestOpenWriteWaitsForCurrentWriter(t *testing.T) {
	ix := New(schema.Default())
	commitChanges(t, ix, Create(newAccount(1, "alice")))

	first, err := ix.OpenWrite(context.Background())
	require.NoError(t, err)
	_, err = first.Stage(Modify(newAccount(1, "alice", "mail", "first@example.com")))
	require.NoError(t, err)

	opened := make(chan *WriteTxn)
	go func() {
		second, err := ix.OpenWrite(context.Background())
		if err != nil {
			close(opened)
			return
		}
		opened <- second
	}()

	select {
	case <-opened:
		t.Fatal("second writer opened while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	committed, err := first.Commit(context.Background(), nil)
	require.NoError(t, err)

	second := <-opened
	require.NotNil(t, second)
	defer second.Abort()

	assert.Equal(t, committed, second.Base().ID())
	e, ok := second.Get(1)
	require.True(t, ok)
	assert.Equal(t, []string{"first@example.com"}, e.Get("mail"))
}

func TestOpenWriteHonoursContext(t *testing.T) {
	ix := New(schema.Default())
	held, err := ix.OpenWrite(context.Background())
	require.NoError(t, err)
	defer held.Abort()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ix.OpenWrite(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStructuralSharing(t *testing.T) {
	ix := loadAccounts(t, 2000)
	before := ix.Current()

	baseNodes := make(map[any]bool)
	for n := range before.Entries().Nodes() {
		baseNodes[n] = true
	}

	commitChanges(t, ix, Modify(newAccount(777, "user0777",
		"gidnumber", fmt.Sprint(100+777%3),
		"mail", "renamed@example.com")))
	after := ix.Current()
	require.NotSame(t, before, after)

	fresh := 0
	for n := range after.Entries().Nodes() {
		if !baseNodes[n] {
			fresh++
		}
	}
	assert.LessOrEqual(t, fresh, 3*before.Entries().Root().Height())

	// Untouched secondary trees are shared as a whole.
	assert.Same(t, before.Values("gidnumber").Root(), after.Values("gidnumber").Root())
	assert.Same(t, before.Values("name").Root(), after.Values("name").Root())
	assert.Same(t, before.Values("class").Root(), after.Values("class").Root())
	assert.NotSame(t, before.Values("mail").Root(), after.Values("mail").Root())

	// Postings of untouched values are shared too.
	assert.Same(t, before.Lookup("mail", "user0001@example.com"), after.Lookup("mail", "user0001@example.com"))
	assert.Nil(t, after.Lookup("mail", "user0777@example.com"))
	assert.True(t, after.Lookup("mail", "RENAMED@example.com").Contains(777))

	// The old snapshot is intact.
	assert.True(t, before.Lookup("mail", "user0777@example.com").Contains(777))
}

func TestFailedDurableCommitLeavesSnapshotIdentical(t *testing.T) {
	ix := loadAccounts(t, 100)
	before := ix.Current()
	root := before.Entries().Root()
	mailRoot := before.Values("mail").Root()

	errDisk := errors.New("disk full")
	wtx, err := ix.OpenWrite(context.Background())
	require.NoError(t, err)
	_, err = wtx.Stage(Create(newAccount(0, "carol", "mail", "carol@example.com")))
	require.NoError(t, err)
	_, err = wtx.Stage(Delete(5))
	require.NoError(t, err)

	var seen []Change
	_, err = wtx.Commit(context.Background(), func(_ context.Context, changes []Change) error {
		seen = changes
		return errDisk
	})
	assert.ErrorIs(t, err, errDisk)
	require.Len(t, seen, 2)
	assert.Equal(t, ChangeDelete, seen[0].Kind)
	assert.Equal(t, entry.ID(5), seen[0].ID)
	assert.Equal(t, ChangeCreate, seen[1].Kind)
	assert.Equal(t, entry.ID(101), seen[1].ID)

	assert.Same(t, before, ix.Current())
	assert.Same(t, root, ix.Current().Entries().Root())
	assert.Same(t, mailRoot, ix.Current().Values("mail").Root())
	_, ok := ix.OpenRead().Get(5)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), ix.Stats().Aborts)

	// The token was released.
	next, err := ix.TryOpenWrite()
	require.NoError(t, err)
	next.Abort()
}

func TestCommitWithCancelledContext(t *testing.T) {
	ix := New(schema.Default())
	before := ix.Current()

	wtx, err := ix.OpenWrite(context.Background())
	require.NoError(t, err)
	_, err = wtx.Stage(Create(newAccount(0, "alice")))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	_, err = wtx.Commit(ctx, func(context.Context, []Change) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Same(t, before, ix.Current())
}

func TestIdempotentReadUnderConcurrentWrites(t *testing.T) {
	ix := loadAccounts(t, 300)
	r := ix.OpenRead()
	defer r.Close()

	queries := []*filter.Filter{
		filter.MustParse("(gidnumber=101)"),
		filter.MustParse("(name=user00*)"),
		filter.MustParse("(&(class=account)(!(gidnumber=100)))"),
	}
	var first [][]entry.ID
	for _, q := range queries {
		first = append(first, ids(r.Search(q)))
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		for i := 1; i <= 50; i++ {
			wtx, err := ix.OpenWrite(ctx)
			if err != nil {
				return err
			}
			_, err = wtx.Stage(Modify(newAccount(entry.ID(i), fmt.Sprintf("user%04d", i), "gidnumber", "101")))
			if err == nil {
				_, err = wtx.Stage(Delete(entry.ID(300 - i)))
			}
			if err != nil {
				wtx.Abort()
				return err
			}
			if _, err := wtx.Commit(ctx, nil); err != nil {
				return err
			}
		}
		return nil
	})
	for w := 0; w < 4; w++ {
		g.Go(func() error {
			for i := 0; i < 20; i++ {
				for qi, q := range queries {
					if got := ids(r.Search(q)); !slices.Equal(first[qi], got) {
						return fmt.Errorf("query %s changed: %v", q, got)
					}
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.NotEqual(t, first[0], ids(ix.OpenRead().Search(queries[0])))
}

func TestReadYourWrites(t *testing.T) {
	ix := New(schema.Default())
	commitChanges(t, ix, Create(newAccount(1, "alice")))

	wtx, err := ix.OpenWrite(context.Background())
	require.NoError(t, err)
	defer wtx.Abort()

	id, err := wtx.Stage(Create(newAccount(0, "bob")))
	require.NoError(t, err)
	assert.Equal(t, entry.ID(2), id)
	_, err = wtx.Stage(Delete(1))
	require.NoError(t, err)

	_, ok := wtx.Get(2)
	assert.True(t, ok)
	_, ok = wtx.Get(1)
	assert.False(t, ok)
	assert.Equal(t, []entry.ID{2}, ids(wtx.Search(filter.MustParse("(class=account)"))))

	// The base is untouched.
	_, ok = ix.Current().Get(2)
	assert.False(t, ok)
	assert.Equal(t, []entry.ID{1}, ids(ix.OpenRead().Search(filter.MustParse("(name=*)"))))
}

func TestStageCoalescing(t *testing.T) {
	tests := []struct {
		name   string
		stage  func(t *testing.T, wtx *WriteTxn)
		expect []ChangeKind
	}{
		{"create then modify", func(t *testing.T, wtx *WriteTxn) {
			_, err := wtx.Stage(Create(newAccount(10, "x")))
			require.NoError(t, err)
			_, err = wtx.Stage(Modify(newAccount(10, "y")))
			require.NoError(t, err)
		}, []ChangeKind{ChangeCreate}},
		{"create then delete", func(t *testing.T, wtx *WriteTxn) {
			_, err := wtx.Stage(Create(newAccount(10, "x")))
			require.NoError(t, err)
			_, err = wtx.Stage(Delete(10))
			require.NoError(t, err)
		}, []ChangeKind{}},
		{"modify then delete", func(t *testing.T, wtx *WriteTxn) {
			_, err := wtx.Stage(Modify(newAccount(1, "y")))
			require.NoError(t, err)
			_, err = wtx.Stage(Delete(1))
			require.NoError(t, err)
		}, []ChangeKind{ChangeDelete}},
		{"delete then create", func(t *testing.T, wtx *WriteTxn) {
			_, err := wtx.Stage(Delete(1))
			require.NoError(t, err)
			_, err = wtx.Stage(Create(newAccount(1, "z")))
			require.NoError(t, err)
		}, []ChangeKind{ChangeModify}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := New(schema.Default())
			commitChanges(t, ix, Create(newAccount(1, "alice")))

			wtx, err := ix.OpenWrite(context.Background())
			require.NoError(t, err)
			defer wtx.Abort()
			tt.stage(t, wtx)

			kinds := []ChangeKind{}
			for _, c := range wtx.Changes() {
				kinds = append(kinds, c.Kind)
				if c.Kind != ChangeCreate {
					assert.NotNil(t, c.Prior)
				}
			}
			assert.Equal(t, tt.expect, kinds)
		})
	}
}

func TestStageErrors(t *testing.T) {
	ix := New(schema.Default())
	commitChanges(t, ix, Create(newAccount(1, "alice")))

	wtx, err := ix.OpenWrite(context.Background())
	require.NoError(t, err)

	_, err = wtx.Stage(Create(newAccount(1, "dup")))
	assert.ErrorIs(t, err, ErrEntryExists)
	_, err = wtx.Stage(Modify(newAccount(9, "ghost")))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = wtx.Stage(Delete(9))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = wtx.Stage(Change{Kind: ChangeCreate})
	assert.ErrorIs(t, err, ErrInvalidChange)
	_, err = wtx.Stage(Modify(newAccount(0, "noid")))
	assert.ErrorIs(t, err, ErrInvalidChange)

	// Explicit IDs move the allocator past them.
	id, err := wtx.Stage(Create(newAccount(50, "fifty")))
	require.NoError(t, err)
	assert.Equal(t, entry.ID(50), id)
	id, err = wtx.Stage(Create(newAccount(0, "next")))
	require.NoError(t, err)
	assert.Equal(t, entry.ID(51), id)

	wtx.Abort()
	wtx.Abort()
	_, err = wtx.Stage(Delete(1))
	assert.ErrorIs(t, err, ErrTxnDone)
	_, err = wtx.Commit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrTxnDone)
	assert.Equal(t, 1, ix.Current().Len())
}

func TestEmptyCommitPublishesNothing(t *testing.T) {
	ix := New(schema.Default())
	before := ix.Current()

	wtx, err := ix.OpenWrite(context.Background())
	require.NoError(t, err)
	id, err := wtx.Commit(context.Background(), func(context.Context, []Change) error {
		t.Fatal("durable hook called for empty commit")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, before.ID(), id)
	assert.Same(t, before, ix.Current())
}

func TestLoad(t *testing.T) {
	ix := loadAccounts(t, 10)
	snap := ix.Current()
	assert.Equal(t, 10, snap.Len())
	assert.Equal(t, entry.ID(11), snap.NextID())
	assert.Equal(t, []entry.ID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ids(snap.All()))
	assert.Equal(t, 3, snap.Lookup("gidnumber", "100").Len())

	dup := func(yield func(*entry.Entry) bool) {
		_ = yield(newAccount(1, "a")) && yield(newAccount(1, "b"))
	}
	_, err := Load(schema.Default(), dup)
	assert.ErrorIs(t, err, ErrDuplicateID)

	zero := func(yield func(*entry.Entry) bool) {
		yield(newAccount(0, "a"))
	}
	_, err = Load(schema.Default(), zero)
	assert.ErrorIs(t, err, ErrInvalidChange)
}

func TestPinnedReadersAreCounted(t *testing.T) {
	ix := New(schema.Default())
	r1 := ix.OpenRead()
	r2 := ix.OpenRead()
	assert.Equal(t, int64(2), ix.Stats().Pinned)

	r1.Close()
	r1.Close()
	assert.Equal(t, int64(1), ix.Stats().Pinned)
	r2.Close()
	assert.Equal(t, int64(0), ix.Stats().Pinned)
}
