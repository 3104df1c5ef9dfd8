package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/obacore/internal/entry"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
	"github.com/KilimcininKorOglu/obacore/internal/schema"
)

func bruteForce(snap *Snapshot, f *filter.Filter) []entry.ID {
	ev := filter.NewEvaluator(schema.Default())
	var out []entry.ID
	for e := range snap.All() {
		if ev.Evaluate(f, e) {
			out = append(out, e.ID())
		}
	}
	return out
}

func TestSearchMatchesFullScan(t *testing.T) {
	ix := loadAccounts(t, 120)
	commitChanges(t, ix,
		Modify(newAccount(7, "Admin", "gidnumber", "0100", "displayname", "The Admin")),
		Delete(8),
		Create(newAccount(0, "admins", "class", "group", "member", "6ba7b810-9dad-11d1-80b4-00c04fd430c8")),
	)
	snap := ix.Current()

	queries := []string{
		"(name=admin)",
		"(NAME=ADMIN)",
		"(gidnumber=100)",
		"(gidnumber=00101)",
		"(gidnumber>=101)",
		"(gidnumber<=100)",
		"(mail=*)",
		"(displayname=*)",
		"(name=admin*)",
		"(name=user01*)",
		"(name=*0*5)",
		"(name=user*9)",
		"(class=group)",
		"(member=6BA7B810-9DAD-11D1-80B4-00C04FD430C8)",
		"(&(class=account)(gidnumber=102))",
		"(&(gidnumber=102)(name=user00*))",
		"(&(class=account)(displayname=the admin))",
		"(|(name=admin)(name=user0003)(mail=user0004@example.com))",
		"(|(name=admin)(displayname=*))",
		"(!(gidnumber=100))",
		"(&(class=account)(!(|(gidnumber=100)(gidnumber=101))))",
		"(name=nobody)",
		"(&)",
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			var f *filter.Filter
			if q == "(&)" {
				f = filter.NewAndFilter()
			} else {
				f = filter.MustParse(q)
			}
			assert.Equal(t, bruteForce(snap, f), ids(snap.Search(f)))
		})
	}
}

func TestSearchNilFilterReturnsAll(t *testing.T) {
	ix := loadAccounts(t, 5)
	assert.Equal(t, []entry.ID{1, 2, 3, 4, 5}, ids(ix.OpenRead().Search(nil)))
}

func TestSearchIsLazyAndRestartable(t *testing.T) {
	ix := loadAccounts(t, 50)
	r := ix.OpenRead()
	defer r.Close()

	seq := r.Search(filter.MustParse("(class=account)"))
	var firstThree []entry.ID
	for e := range seq {
		firstThree = append(firstThree, e.ID())
		if len(firstThree) == 3 {
			break
		}
	}
	assert.Equal(t, []entry.ID{1, 2, 3}, firstThree)
	assert.Len(t, ids(seq), 50)
	assert.Len(t, ids(seq), 50)
}

func TestExplain(t *testing.T) {
	ix := loadAccounts(t, 3)
	r := ix.OpenRead()
	defer r.Close()

	assert.Equal(t, "EQ(name=user0001)", r.Explain(filter.MustParse("(name=USER0001)")).String())
	assert.Equal(t, "FULL_SCAN", r.Explain(filter.MustParse("(loginshell=/bin/sh)")).String())
	assert.Equal(t, "class", r.Snapshot().Indexed()[0])
	assert.True(t, r.Snapshot().IsIndexed("MAIL"))
	assert.False(t, r.Snapshot().IsIndexed("loginshell"))
}

func TestSearchSeesIndexUpdatesOnModify(t *testing.T) {
	ix := New(schema.Default())
	commitChanges(t, ix, Create(newAccount(1, "alice", "mail", "a@example.com", "mail", "b@example.com")))

	wtx, err := ix.OpenWrite(context.Background())
	require.NoError(t, err)
	_, err = wtx.Stage(Modify(newAccount(1, "alice", "mail", "b@example.com", "mail", "c@example.com")))
	require.NoError(t, err)
	_, err = wtx.Commit(context.Background(), nil)
	require.NoError(t, err)

	snap := ix.Current()
	assert.Nil(t, snap.Lookup("mail", "a@example.com"))
	for _, m := range []string{"b@example.com", "c@example.com"} {
		p := snap.Lookup("mail", m)
		require.NotNil(t, p, m)
		assert.Equal(t, []entry.ID{1}, collect(p))
	}

	commitChanges(t, ix, Delete(1))
	snap = ix.Current()
	assert.Zero(t, snap.Values("mail").Len())
	assert.Zero(t, snap.Values("name").Len())
	assert.Empty(t, ids(snap.Search(filter.MustParse("(mail=*)"))))
}

func collect(p *Postings) []entry.ID {
	var out []entry.ID
	for id := range p.IDs() {
		out = append(out, id)
	}
	return out
}

func TestPostingsAreImmutable(t *testing.T) {
	p := newPostings(1)
	q := p.with(2)
	assert.Equal(t, []entry.ID{1}, collect(p))
	assert.Equal(t, []entry.ID{1, 2}, collect(q))
	assert.Same(t, q, q.with(2))

	r := q.without(1)
	assert.Equal(t, []entry.ID{1, 2}, collect(q))
	assert.Equal(t, []entry.ID{2}, collect(r))
	assert.Nil(t, r.without(2))
	assert.Same(t, r, r.without(9))

	bm := q.Bitmap()
	bm.Add(99)
	assert.False(t, q.Contains(99))
	assert.Equal(t, 2, q.Len())
}
