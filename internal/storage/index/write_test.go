package index

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
	"github.com/KilimcininKorOglu/obacore/internal/schema"
)

func TestStageRejectsIDBeyondMax(t *testing.T) {
	ix := New(schema.Default())

	wtx, err := ix.OpenWrite(context.Background())
	require.NoError(t, err)
	defer wtx.Abort()

	_, err = wtx.Stage(Create(newAccount(math.MaxUint64, "wrap")))
	assert.ErrorIs(t, err, ErrInvalidChange)
	assert.Equal(t, entry.ID(1), wtx.NextID())

	id, err := wtx.Stage(Create(newAccount(MaxID, "last")))
	require.NoError(t, err)
	assert.Equal(t, MaxID, id)
	assert.Equal(t, entry.ID(math.MaxUint64), wtx.NextID())

	_, err = wtx.Stage(Create(newAccount(0, "next")))
	assert.ErrorIs(t, err, ErrInvalidChange)
	assert.Equal(t, 1, wtx.Len())

	// Free IDs below the limit stay usable.
	id, err = wtx.Stage(Create(newAccount(7, "seven")))
	require.NoError(t, err)
	assert.Equal(t, entry.ID(7), id)

	snapID, err := wtx.Commit(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, snapID, ix.Current().ID())
	assert.Equal(t, entry.ID(math.MaxUint64), ix.Current().NextID())
	assert.Equal(t, 2, ix.Current().Len())
}

func TestLoadRejectsIDBeyondMax(t *testing.T) {
	_, err := Load(schema.Default(), func(yield func(*entry.Entry) bool) {
		yield(newAccount(math.MaxUint64, "wrap"))
	})
	assert.ErrorIs(t, err, ErrInvalidChange)

	ix, err := Load(schema.Default(), func(yield func(*entry.Entry) bool) {
		yield(newAccount(MaxID, "last"))
	})
	require.NoError(t, err)
	assert.Equal(t, entry.ID(math.MaxUint64), ix.Current().NextID())
}

func TestStagedViewAdvancesWithEachStage(t *testing.T) {
	ix := loadAccounts(t, 50)
	accounts := filter.MustParse("(class=account)")

	wtx, err := ix.OpenWrite(context.Background())
	require.NoError(t, err)
	defer wtx.Abort()

	_, err = wtx.Stage(Create(newAccount(0, "carol", "mail", "carol@example.com")))
	require.NoError(t, err)
	assert.Len(t, ids(wtx.Search(accounts)), 51)
	first := wtx.working()

	_, err = wtx.Stage(Delete(3))
	require.NoError(t, err)
	_, err = wtx.Stage(Modify(newAccount(4, "user0004", "mail", "moved@example.com")))
	require.NoError(t, err)
	assert.Len(t, ids(wtx.Search(accounts)), 50)
	assert.Equal(t, []entry.ID{4}, ids(wtx.Search(filter.MustParse("(mail=moved@example.com)"))))
	assert.Empty(t, ids(wtx.Search(filter.MustParse("(mail=user0004@example.com)"))))
	assert.Equal(t, []entry.ID{51}, ids(wtx.Search(filter.MustParse("(name=carol)"))))

	// Views handed out earlier do not move.
	assert.Equal(t, 51, first.Len())
	_, ok := first.Get(3)
	assert.True(t, ok)
	assert.True(t, first.Lookup("mail", "user0004@example.com").Contains(4))

	// The advanced view matches one derived from scratch.
	fresh := wtx.base.derive(wtx.Changes(), wtx.NextID())
	view := wtx.working()
	assert.Equal(t, fresh.ID(), view.ID())
	assert.Equal(t, fresh.NextID(), view.NextID())
	assert.Equal(t, ids(fresh.All()), ids(view.All()))
	for _, attr := range fresh.Indexed() {
		var want, got []string
		for key, p := range fresh.Values(attr).All() {
			want = append(want, key)
			q, _ := view.Values(attr).Get(key)
			assert.Equal(t, slicesOf(p), slicesOf(q), "%s=%s", attr, key)
		}
		for key := range view.Values(attr).All() {
			got = append(got, key)
		}
		assert.Equal(t, want, got, attr)
	}

	// Undoing the only create brings the view back to the base.
	_, err = wtx.Stage(Create(newAccount(3, "user0003")))
	require.NoError(t, err)
	_, err = wtx.Stage(Delete(51))
	require.NoError(t, err)
	assert.Empty(t, ids(wtx.Search(filter.MustParse("(name=carol)"))))
	assert.Len(t, ids(wtx.Search(accounts)), 50)
}

func slicesOf(p *Postings) []entry.ID {
	if p == nil {
		return nil
	}
	var out []entry.ID
	for id := range p.IDs() {
		out = append(out, id)
	}
	return out
}

func TestPostingsShareStructureAcrossCommits(t *testing.T) {
	ix := loadAccounts(t, 2000)
	before := ix.Current().Lookup("class", "account")
	require.Equal(t, 2000, before.Len())

	baseNodes := make(map[any]bool)
	for n := range before.Tree().Nodes() {
		baseNodes[n] = true
	}

	commitChanges(t, ix, Create(newAccount(0, "carol")))
	after := ix.Current().Lookup("class", "account")
	require.NotSame(t, before, after)
	assert.Equal(t, 2001, after.Len())
	assert.True(t, after.Contains(2001))

	fresh := 0
	for n := range after.Tree().Nodes() {
		if !baseNodes[n] {
			fresh++
		}
	}
	assert.LessOrEqual(t, fresh, 3*before.Tree().Root().Height())

	// The old set is intact.
	assert.Equal(t, 2000, before.Len())
	assert.False(t, before.Contains(2001))
	assert.False(t, before.Bitmap().Contains(2001))
	assert.True(t, after.Bitmap().Contains(2001))
}

func TestPostingsBitmapIsACopy(t *testing.T) {
	ix := loadAccounts(t, 10)
	p := ix.Current().Lookup("class", "account")

	bm := p.Bitmap()
	bm.Add(99)
	bm.Remove(1)
	assert.False(t, p.Contains(99))
	assert.True(t, p.Bitmap().Contains(1))
	assert.Equal(t, uint64(10), p.Bitmap().GetCardinality())
	assert.Len(t, ids(ix.Current().Search(filter.MustParse("(class=account)"))), 10)
}

func TestOnPublishRunsBeforeTokenRelease(t *testing.T) {
	ix := New(schema.Default())

	wtx, err := ix.OpenWrite(context.Background())
	require.NoError(t, err)
	_, err = wtx.Stage(Create(newAccount(0, "alice")))
	require.NoError(t, err)

	var (
		published SnapshotID
		changes   []Change
	)
	wtx.OnPublish(func(id SnapshotID, c []Change) {
		published = id
		changes = c
		assert.Equal(t, id, ix.Current().ID())
		_, err := ix.TryOpenWrite()
		assert.ErrorIs(t, err, ErrWriteConflict)
	})
	id, err := wtx.Commit(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, id, published)
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeCreate, changes[0].Kind)

	next, err := ix.TryOpenWrite()
	require.NoError(t, err)
	next.Abort()
}

func TestOnPublishSkippedWhenCommitFails(t *testing.T) {
	ix := New(schema.Default())

	wtx, err := ix.OpenWrite(context.Background())
	require.NoError(t, err)
	_, err = wtx.Stage(Create(newAccount(0, "alice")))
	require.NoError(t, err)

	wtx.OnPublish(func(SnapshotID, []Change) {
		t.Fatal("publish called for failed commit")
	})
	errDisk := errors.New("disk full")
	_, err = wtx.Commit(context.Background(), func(context.Context, []Change) error {
		return errDisk
	})
	assert.ErrorIs(t, err, errDisk)

	// Empty commits publish nothing either.
	empty, err := ix.OpenWrite(context.Background())
	require.NoError(t, err)
	empty.OnPublish(func(SnapshotID, []Change) {
		t.Fatal("publish called for empty commit")
	})
	_, err = empty.Commit(context.Background(), nil)
	require.NoError(t, err)
}
