// Package connection slices ordered node sequences into paginated
// connections.
package connection

import (
	"fmt"
	"math"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/node"
)

// Page is an optional skip/limit window.
type Page struct {
	Skip  *int `json:"skip,omitempty"`
	Limit *int `json:"limit,omitempty"`
}

// Validate rejects negative or out-of-range bounds.
func (p Page) Validate() error {
	for name, v := range map[string]*int{"skip": p.Skip, "limit": p.Limit} {
		if v == nil {
			continue
		}
		if *v < 0 || *v > math.MaxInt32 {
			return &apperr.QueryError{Op: "paginate", Err: apperr.ErrValidation,
				Msg: fmt.Sprintf("%s must be between 0 and %d, got %d", name, math.MaxInt32, *v)}
		}
	}
	return nil
}

// Edge is a node with its neighbours in the full ordered sequence.
type Edge struct {
	Previous *node.Node `json:"previous,omitempty"`
	Node     *node.Node `json:"node"`
	Next     *node.Node `json:"next,omitempty"`
}

// PageInfo describes the page a connection holds.
type PageInfo struct {
	CurrentPage     int  `json:"currentPage"`
	PerPage         *int `json:"perPage"`
	ItemCount       int  `json:"itemCount"`
	PageCount       int  `json:"pageCount"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// Connection is a page of an ordered node sequence plus the query-time
// aggregates derived from it.
type Connection struct {
	TotalCount int               `json:"totalCount"`
	Edges      []Edge            `json:"edges"`
	Nodes      []*node.Node      `json:"nodes"`
	PageInfo   PageInfo          `json:"pageInfo"`
	Distinct   []string          `json:"distinct,omitzero"`
	Group      []GroupConnection `json:"group,omitzero"`
	Max        *float64          `json:"max,omitempty"`
	Min        *float64          `json:"min,omitempty"`
	Sum        *float64          `json:"sum,omitempty"`
}

// GroupConnection is the connection of one group's members.
type GroupConnection struct {
	Field      string `json:"field"`
	FieldValue string `json:"fieldValue"`
	Connection
}

// Build slices seq by page. Edges link each node to its neighbours in seq,
// across page boundaries.
func Build(seq []*node.Node, page Page) (*Connection, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	total := len(seq)
	skip := 0
	if page.Skip != nil {
		skip = *page.Skip
	}
	start := min(skip, total)
	end := total
	if page.Limit != nil {
		end = min(start+*page.Limit, total)
	}

	c := &Connection{
		TotalCount: total,
		Edges:      make([]Edge, 0, end-start),
		Nodes:      make([]*node.Node, 0, end-start),
	}
	for i := start; i < end; i++ {
		e := Edge{Node: seq[i]}
		if i > 0 {
			e.Previous = seq[i-1]
		}
		if i+1 < total {
			e.Next = seq[i+1]
		}
		c.Edges = append(c.Edges, e)
		c.Nodes = append(c.Nodes, seq[i])
	}
	c.PageInfo = pageInfo(total, skip, page.Limit, len(c.Nodes))
	return c, nil
}

// Window returns the part of items selected by page. Group queries page the
// list of groups with it.
func Window[T any](items []T, page Page) ([]T, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	start := 0
	if page.Skip != nil {
		start = min(*page.Skip, len(items))
	}
	end := len(items)
	if page.Limit != nil {
		end = min(start+*page.Limit, len(items))
	}
	return items[start:end], nil
}

func pageInfo(total, skip int, limit *int, items int) PageInfo {
	info := PageInfo{
		ItemCount:       items,
		HasPreviousPage: skip > 0,
		HasNextPage:     skip+items < total,
	}
	if limit == nil || *limit == 0 {
		info.CurrentPage = 1
		info.PageCount = 1
		if skip > 0 {
			info.CurrentPage, info.PageCount = 2, 2
		}
		if limit != nil {
			l := *limit
			info.PerPage = &l
		}
		return info
	}
	l := *limit
	info.PerPage = &l
	info.CurrentPage = skip/l + 1
	info.PageCount = ceilDiv(skip, l) + ceilDiv(max(0, total-skip), l)
	return info
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
