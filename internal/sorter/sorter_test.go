package sorter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/testutil"
)

func sortBooks(t *testing.T, spec Spec) []string {
	t.Helper()
	reg, snap := testutil.Library(t)
	s, err := Compile(reg, "Book", spec)
	require.NoError(t, err)
	out, err := s.Sort(context.Background(), snap, snap.All("Book"))
	require.NoError(t, err)
	return testutil.IDs(out)
}

func TestSort(t *testing.T) {
	cases := []struct {
		name string
		spec Spec
		want []string
	}{
		{"no keys keeps order", Spec{}, []string{"b1", "b2", "b3", "b4", "b5"}},
		{"string asc", Spec{Fields: []string{"title"}, Order: []Order{Asc}}, []string{"b2", "b1", "b5", "b4", "b3"}},
		{"int desc is stable", Spec{Fields: []string{"rating"}, Order: []Order{Desc}}, []string{"b2", "b5", "b4", "b1", "b3"}},
		{"int asc is stable", Spec{Fields: []string{"rating"}, Order: []Order{Asc}}, []string{"b1", "b3", "b4", "b2", "b5"}},
		{"second key breaks ties", Spec{Fields: []string{"rating", "title"}, Order: []Order{Desc, Asc}}, []string{"b2", "b5", "b4", "b1", "b3"}},
		{"second key desc", Spec{Fields: []string{"rating", "title"}, Order: []Order{Asc, Desc}}, []string{"b3", "b1", "b4", "b5", "b2"}},
		{"dates by instant", Spec{Fields: []string{"published"}, Order: []Order{Asc}}, []string{"b1", "b3", "b5", "b2", "b4"}},
		{"missing last in asc", Spec{Fields: []string{"price"}, Order: []Order{Asc}}, []string{"b3", "b1", "b5", "b2", "b4"}},
		{"missing first in desc", Spec{Fields: []string{"price"}, Order: []Order{Desc}}, []string{"b4", "b2", "b5", "b1", "b3"}},
		{"nested path", Spec{Fields: []string{"author.born", "title"}, Order: []Order{Asc, Asc}}, []string{"b1", "b3", "b2", "b5", "b4"}},
		{"booleans false first", Spec{Fields: []string{"inStock"}, Order: []Order{Asc}}, []string{"b3", "b5", "b1", "b2", "b4"}},
		{"lowercase order", Spec{Fields: []string{"title"}, Order: []Order{"desc"}}, []string{"b3", "b4", "b5", "b1", "b2"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, sortBooks(t, c.spec))
		})
	}
}

func TestSort_Idempotent(t *testing.T) {
	reg, snap := testutil.Library(t)
	s, err := Compile(reg, "Book", Spec{Fields: []string{"tags", "rating"}, Order: []Order{Asc, Desc}})
	require.NoError(t, err)

	once, err := s.Sort(context.Background(), snap, snap.All("Book"))
	require.NoError(t, err)
	twice, err := s.Sort(context.Background(), snap, once)
	require.NoError(t, err)
	assert.Equal(t, testutil.IDs(once), testutil.IDs(twice))
}

func TestSort_DoesNotMutateInput(t *testing.T) {
	reg, snap := testutil.Library(t)
	s, err := Compile(reg, "Book", Spec{Fields: []string{"title"}, Order: []Order{Desc}})
	require.NoError(t, err)

	in := snap.All("Book")
	before := testutil.IDs(in)
	_, err = s.Sort(context.Background(), snap, in)
	require.NoError(t, err)
	assert.Equal(t, before, testutil.IDs(in))
}

func TestCompile_Errors(t *testing.T) {
	reg, _ := testutil.Library(t)

	_, err := Compile(reg, "Book", Spec{Fields: []string{"title", "rating"}, Order: []Order{Asc}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = Compile(reg, "Book", Spec{Fields: []string{"nope"}, Order: []Order{Asc}})
	assert.ErrorIs(t, err, apperr.ErrUnknownFieldPath)

	_, err = Compile(reg, "Book", Spec{Fields: []string{"author"}, Order: []Order{Asc}})
	assert.ErrorIs(t, err, apperr.ErrTypeMismatch)

	_, err = Compile(reg, "Book", Spec{Fields: []string{"title"}, Order: []Order{"SIDEWAYS"}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSort_Cancelled(t *testing.T) {
	reg, snap := testutil.Library(t)
	s, err := Compile(reg, "Book", Spec{Fields: []string{"title"}, Order: []Order{Asc}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := s.Sort(ctx, snap, snap.All("Book"))
	assert.Nil(t, out)
	assert.ErrorIs(t, err, apperr.ErrCancelled)
}

func TestSpec_Empty(t *testing.T) {
	assert.True(t, Spec{}.Empty())
	assert.True(t, Spec{Fields: []string{}, Order: []Order{}}.Empty())
	assert.False(t, Spec{Fields: []string{"title"}, Order: []Order{Asc}}.Empty())
}
