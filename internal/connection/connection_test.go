package connection

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/node"
)

func seq(n int) []*node.Node {
	out := make([]*node.Node, n)
	for i := range out {
		out[i] = node.New(fmt.Sprintf("n%d", i), "Item", "test")
	}
	return out
}

func ptr(i int) *int { return &i }

func TestBuild_PaginationGrid(t *testing.T) {
	for total := 0; total <= 7; total++ {
		nodes := seq(total)
		for skip := 0; skip <= 9; skip++ {
			for limit := 0; limit <= 9; limit++ {
				c, err := Build(nodes, Page{Skip: ptr(skip), Limit: ptr(limit)})
				require.NoError(t, err)

				want := min(limit, max(0, total-skip))
				assert.Equal(t, total, c.TotalCount)
				assert.Equal(t, want, c.PageInfo.ItemCount, "total=%d skip=%d limit=%d", total, skip, limit)
				assert.Len(t, c.Nodes, want)
				assert.Len(t, c.Edges, want)
				assert.Equal(t, skip+want < total, c.PageInfo.HasNextPage)
				assert.Equal(t, skip > 0, c.PageInfo.HasPreviousPage)
				for i, n := range c.Nodes {
					assert.Same(t, nodes[skip+i], n)
				}
			}
		}
	}
}

func TestBuild_PageInfo(t *testing.T) {
	nodes := seq(10)

	c, err := Build(nodes, Page{Skip: ptr(4), Limit: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, PageInfo{CurrentPage: 3, PerPage: ptr(2), ItemCount: 2, PageCount: 5, HasNextPage: true, HasPreviousPage: true}, c.PageInfo)

	c, err = Build(nodes, Page{Skip: ptr(3), Limit: ptr(4)})
	require.NoError(t, err)
	assert.Equal(t, 1, c.PageInfo.CurrentPage)
	assert.Equal(t, 3, c.PageInfo.PageCount) // ceil(3/4) + ceil(7/4)

	c, err = Build(nodes, Page{})
	require.NoError(t, err)
	assert.Equal(t, PageInfo{CurrentPage: 1, ItemCount: 10, PageCount: 1}, c.PageInfo)

	c, err = Build(nodes, Page{Skip: ptr(8)})
	require.NoError(t, err)
	assert.Equal(t, 2, c.PageInfo.PageCount)
	assert.Equal(t, 2, c.PageInfo.ItemCount)

	c, err = Build(nodes, Page{Skip: ptr(20), Limit: ptr(5)})
	require.NoError(t, err)
	assert.Empty(t, c.Nodes)
	assert.Equal(t, 10, c.TotalCount)
	assert.False(t, c.PageInfo.HasNextPage)
}

func TestBuild_EdgesCrossPageBoundaries(t *testing.T) {
	nodes := seq(5)
	c, err := Build(nodes, Page{Skip: ptr(1), Limit: ptr(3)})
	require.NoError(t, err)
	require.Len(t, c.Edges, 3)

	assert.Same(t, nodes[0], c.Edges[0].Previous)
	assert.Same(t, nodes[1], c.Edges[0].Node)
	assert.Same(t, nodes[2], c.Edges[0].Next)
	assert.Same(t, nodes[4], c.Edges[2].Next)

	c, err = Build(nodes, Page{})
	require.NoError(t, err)
	assert.Nil(t, c.Edges[0].Previous)
	assert.Nil(t, c.Edges[4].Next)
}

func TestBuild_Validation(t *testing.T) {
	for _, p := range []Page{
		{Skip: ptr(-1)},
		{Limit: ptr(-1)},
		{Limit: ptr(math.MaxInt32 + 1)},
	} {
		_, err := Build(seq(3), p)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	}
}

func TestWindow(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	got, err := Window(items, Page{Skip: ptr(1), Limit: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, got)

	got, err = Window(items, Page{Skip: ptr(9)})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Window(items, Page{Skip: ptr(-2)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestConnection_JSON(t *testing.T) {
	nodes := seq(2)
	nodes[0].Fields["title"] = "A"
	c, err := Build(nodes, Page{Limit: ptr(1)})
	require.NoError(t, err)

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.EqualValues(t, 2, out["totalCount"])
	edges := out["edges"].([]any)
	edge := edges[0].(map[string]any)
	assert.NotContains(t, edge, "previous")
	assert.Equal(t, "n1", edge["next"].(map[string]any)["id"])
	assert.Equal(t, "A", edge["node"].(map[string]any)["title"])
	assert.NotContains(t, out, "distinct")
	assert.NotContains(t, out, "group")
	assert.EqualValues(t, 1, out["pageInfo"].(map[string]any)["perPage"])

	c.Distinct = []string{}
	c.Group = []GroupConnection{}
	data, err = json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"distinct":[]`)
	assert.Contains(t, string(data), `"group":[]`)
}
