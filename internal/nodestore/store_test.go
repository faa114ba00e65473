package nodestore

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/node"
)

func TestInsert_DuplicateID(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(node.New("a", "Book", "test")))

	err := s.Insert(node.New("a", "Book", "test"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrDuplicateID))
}

func TestInsert_RequiresID(t *testing.T) {
	s := New()
	err := s.Insert(node.New("", "Book", "test"))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAll_InsertionOrder(t *testing.T) {
	s := New()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Insert(node.New(id, "Book", "test")))
	}
	require.NoError(t, s.Insert(node.New("r", "Review", "test")))

	var ids []string
	for _, n := range s.All("Book") {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.Len(t, s.All("Review"), 1)
	assert.Empty(t, s.All("Missing"))
}

func TestUpsert_KeepsPosition(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(node.New("a", "Book", "test")))
	require.NoError(t, s.Insert(node.New("b", "Book", "test")))

	repl := node.New("a", "Book", "test")
	repl.Fields["title"] = "new"
	require.NoError(t, s.Upsert(repl))

	all := s.All("Book")
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "new", all[0].Fields["title"])
}

func TestRemove_DetachesFromParent(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(node.New("p", "File", "test")))
	require.NoError(t, s.Insert(node.New("c", "MarkdownRemark", "test")))
	require.NoError(t, s.AddChild("p", "c"))

	p, _ := s.Get("p")
	assert.Equal(t, []string{"c"}, p.Children)

	require.NoError(t, s.Remove("c"))
	assert.Empty(t, p.Children)
	_, ok := s.Get("c")
	assert.False(t, ok)

	assert.ErrorIs(t, s.Remove("c"), apperr.ErrNotFound)
}

func TestAddChild_Reparents(t *testing.T) {
	s := New()
	for _, id := range []string{"p1", "p2", "c"} {
		require.NoError(t, s.Insert(node.New(id, "T", "test")))
	}
	require.NoError(t, s.AddChild("p1", "c"))
	require.NoError(t, s.AddChild("p1", "c"))
	require.NoError(t, s.AddChild("p2", "c"))

	p1, _ := s.Get("p1")
	p2, _ := s.Get("p2")
	c, _ := s.Get("c")
	assert.Empty(t, p1.Children)
	assert.Equal(t, []string{"c"}, p2.Children)
	assert.Equal(t, "p2", c.Parent)

	assert.ErrorIs(t, s.AddChild("nope", "c"), apperr.ErrNotFound)
}

func TestFreeze_RejectsMutation(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(node.New("a", "Book", "test")))
	s.Freeze()

	assert.ErrorIs(t, s.Insert(node.New("b", "Book", "test")), apperr.ErrStoreFrozen)
	assert.ErrorIs(t, s.Upsert(node.New("a", "Book", "test")), apperr.ErrStoreFrozen)
	assert.ErrorIs(t, s.Remove("a"), apperr.ErrStoreFrozen)
	assert.ErrorIs(t, s.AddChild("a", "a"), apperr.ErrStoreFrozen)
	assert.True(t, s.Frozen())
}

func TestFreeze_SnapshotIsIsolated(t *testing.T) {
	s := New()
	n := node.New("a", "Book", "test")
	n.Fields["title"] = "before"
	require.NoError(t, s.Insert(n))

	snap := s.Freeze()
	n.Fields["title"] = "after"

	got, ok := snap.Get("a")
	require.True(t, ok)
	assert.Equal(t, "before", got.Fields["title"])
}

func TestSnapshot_Relations(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(node.New("book", "Book", "test")))
	require.NoError(t, s.Insert(node.New("r1", "Review", "test")))
	require.NoError(t, s.Insert(node.New("r2", "Review", "test")))
	require.NoError(t, s.AddChild("book", "r1"))
	require.NoError(t, s.AddChild("book", "r2"))

	snap := s.Freeze()
	book, _ := snap.Get("book")
	children := snap.Children(book)
	require.Len(t, children, 2)
	assert.Equal(t, "r1", children[0].ID)

	parent, ok := snap.Parent(children[1])
	require.True(t, ok)
	assert.Equal(t, "book", parent.ID)

	_, ok = snap.Parent(book)
	assert.False(t, ok)

	assert.Equal(t, []string{"Book", "Review"}, snap.Types())
	assert.Equal(t, 2, snap.Count("Review"))
	assert.Equal(t, 3, snap.Len())
	assert.False(t, snap.FrozenAt().IsZero())
}

func TestStore_ConcurrentInsert(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = s.Insert(node.New(fmt.Sprintf("n-%d-%d", w, i), "T", "test"))
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 400, s.Len())

	seen := map[int]bool{}
	for _, n := range s.Freeze().All("T") {
		assert.False(t, seen[n.Internal.Counter], "counter reused")
		seen[n.Internal.Counter] = true
	}
}
