package aggregate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/node"
	"github.com/starford/nodeql/internal/nodestore"
	"github.com/starford/nodeql/internal/schema"
	"github.com/starford/nodeql/internal/testutil"
	"github.com/starford/nodeql/internal/value"
)

func resolve(t *testing.T, reg *schema.Registry, path string) *schema.Path {
	t.Helper()
	p, err := Field(reg, "Book", "test", path)
	require.NoError(t, err)
	return p
}

func TestDistinct_RoundTrip(t *testing.T) {
	b := schema.NewBuilder()
	require.NoError(t, b.Register("Post", schema.Scalar("title", value.String)))
	reg, err := b.Seal()
	require.NoError(t, err)

	st := nodestore.New()
	for i, title := range []string{"B", "A", "A"} {
		n := node.New(string(rune('x'+i)), "Post", "test")
		n.Fields["title"] = title
		require.NoError(t, st.Insert(n))
	}
	snap := st.Freeze()

	p, err := reg.Resolve("Post", "title")
	require.NoError(t, err)
	got, err := Distinct(context.Background(), snap, snap.All("Post"), p)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, got)
}

func TestDistinct(t *testing.T) {
	reg, snap := testutil.Library(t)
	ctx := context.Background()
	books := snap.All("Book")

	got, err := Distinct(ctx, snap, books, resolve(t, reg, "rating"))
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4", "5"}, got)

	got, err = Distinct(ctx, snap, books, resolve(t, reg, "tags"))
	require.NoError(t, err)
	assert.Equal(t, []string{"classic", "cyberpunk", "romance", "sf"}, got)

	got, err = Distinct(ctx, snap, books, resolve(t, reg, "reviews.rating"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3", "4", "5"}, got)

	// b4 has no price and contributes nothing.
	got, err = Distinct(ctx, snap, books, resolve(t, reg, "price"))
	require.NoError(t, err)
	assert.Equal(t, []string{"6", "7.5", "8.25", "9.99"}, got)

	got, err = Distinct(ctx, snap, nil, resolve(t, reg, "title"))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGroup_RatingScenario(t *testing.T) {
	reg, snap := testutil.Library(t)
	books := snap.All("Book")

	groups, err := Group(context.Background(), snap, books, resolve(t, reg, "rating"), "rating")
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, "3", groups[0].FieldValue)
	assert.Equal(t, []string{"b1", "b3"}, testutil.IDs(groups[0].Nodes))
	assert.Equal(t, "5", groups[1].FieldValue)
	assert.Equal(t, []string{"b2", "b5"}, testutil.IDs(groups[1].Nodes))
	assert.Equal(t, "4", groups[2].FieldValue)
	assert.Equal(t, []string{"b4"}, testutil.IDs(groups[2].Nodes))
	for _, g := range groups {
		assert.Equal(t, "rating", g.Field)
	}
}

func TestGroup_Partitions(t *testing.T) {
	reg, snap := testutil.Library(t)
	books := snap.All("Book")

	for _, path := range []string{"rating", "price", "tags", "author.name", "reviews.rating", "inStock"} {
		t.Run(path, func(t *testing.T) {
			groups, err := Group(context.Background(), snap, books, resolve(t, reg, path), path)
			require.NoError(t, err)

			seen := map[string]int{}
			var total int
			for _, g := range groups {
				total += len(g.Nodes)
				for _, n := range g.Nodes {
					seen[n.ID]++
				}
			}
			assert.Equal(t, len(books), total)
			for _, n := range books {
				assert.Equal(t, 1, seen[n.ID], n.ID)
			}
		})
	}
}

func TestGroup_MissingAndLists(t *testing.T) {
	reg, snap := testutil.Library(t)
	books := snap.All("Book")

	groups, err := Group(context.Background(), snap, books, resolve(t, reg, "price"), "price")
	require.NoError(t, err)
	require.Len(t, groups, 5)
	assert.Equal(t, "", groups[3].FieldValue)
	assert.Equal(t, []string{"b4"}, testutil.IDs(groups[3].Nodes))

	groups, err = Group(context.Background(), snap, books, resolve(t, reg, "tags"), "tags")
	require.NoError(t, err)
	assert.Equal(t, "romance,classic", groups[0].FieldValue)

	groups, err = Group(context.Background(), snap, nil, resolve(t, reg, "tags"), "tags")
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestNumeric(t *testing.T) {
	reg, snap := testutil.Library(t)
	ctx := context.Background()
	books := snap.All("Book")

	price, err := Numeric(reg, "Book", "max", "price")
	require.NoError(t, err)
	got, err := Max(ctx, snap, books, price)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 9.99, *got, 1e-9)

	got, err = Min(ctx, snap, books, price)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, *got, 1e-9)

	rating, err := Numeric(reg, "Book", "sum", "rating")
	require.NoError(t, err)
	got, err = Sum(ctx, snap, books, rating)
	require.NoError(t, err)
	assert.Equal(t, 20.0, *got)

	reviews, err := Numeric(reg, "Book", "sum", "reviews.rating")
	require.NoError(t, err)
	got, err = Sum(ctx, snap, books, reviews)
	require.NoError(t, err)
	assert.Equal(t, 19.0, *got)

	got, err = Max(ctx, snap, nil, price)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = Numeric(reg, "Book", "max", "title")
	assert.ErrorIs(t, err, apperr.ErrTypeMismatch)
	_, err = Field(reg, "Book", "group", "author")
	assert.ErrorIs(t, err, apperr.ErrTypeMismatch)
}

func TestAggregate_Cancelled(t *testing.T) {
	reg, snap := testutil.Library(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Distinct(ctx, snap, snap.All("Book"), resolve(t, reg, "title"))
	assert.ErrorIs(t, err, apperr.ErrCancelled)
	_, err = Group(ctx, snap, snap.All("Book"), resolve(t, reg, "title"), "title")
	assert.ErrorIs(t, err, apperr.ErrCancelled)
	_, err = Sum(ctx, snap, snap.All("Book"), resolve(t, reg, "rating"))
	assert.ErrorIs(t, err, apperr.ErrCancelled)
}
