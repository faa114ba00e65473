// Package sorter orders nodes by a multi-key sort specification.
package sorter

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/node"
	"github.com/starford/nodeql/internal/schema"
	"github.com/starford/nodeql/internal/value"
)

// Order is a sort direction.
type Order string

const (
	Asc  Order = "ASC"
	Desc Order = "DESC"
)

// ParseOrder accepts ASC/DESC in any case.
func ParseOrder(s string) (Order, bool) {
	switch Order(strings.ToUpper(strings.TrimSpace(s))) {
	case Asc:
		return Asc, true
	case Desc:
		return Desc, true
	}
	return "", false
}

// Spec is the wire form of a sort: parallel fields and orders, first field
// dominant.
type Spec struct {
	Fields []string `json:"fields"`
	Order  []Order  `json:"order"`
}

// Empty reports whether the spec sorts by nothing.
func (s Spec) Empty() bool {
	return len(s.Fields) == 0 && len(s.Order) == 0
}

type key struct {
	path *schema.Path
	desc bool
}

// Sorter is a compiled sort specification.
type Sorter struct {
	keys []key
}

// Compile resolves every sort field against typeName.
func Compile(reg *schema.Registry, typeName string, spec Spec) (*Sorter, error) {
	if len(spec.Fields) != len(spec.Order) {
		return nil, &apperr.QueryError{Op: "sort", Type: typeName, Err: apperr.ErrValidation,
			Msg: fmt.Sprintf("%d fields but %d orders", len(spec.Fields), len(spec.Order))}
	}
	s := &Sorter{keys: make([]key, 0, len(spec.Fields))}
	for i, f := range spec.Fields {
		p, err := reg.Resolve(typeName, f)
		if err != nil {
			return nil, err
		}
		if p.Type != "" {
			return nil, &apperr.QueryError{Op: "sort", Type: typeName, Path: f, Err: apperr.ErrTypeMismatch,
				Msg: "cannot sort by an object"}
		}
		o, ok := ParseOrder(string(spec.Order[i]))
		if !ok {
			return nil, &apperr.QueryError{Op: "sort", Type: typeName, Path: f, Err: apperr.ErrValidation,
				Msg: fmt.Sprintf("invalid order %q", spec.Order[i])}
		}
		s.keys = append(s.keys, key{path: p, desc: o == Desc})
	}
	return s, nil
}

type row struct {
	n    *node.Node
	vals []any
}

// Sort returns a sorted copy of nodes. Nodes equal on every key keep their
// relative input order. Missing values are greater than any present value,
// so they come last in ASC and first in DESC.
func (s *Sorter) Sort(ctx context.Context, r schema.Resolver, nodes []*node.Node) ([]*node.Node, error) {
	if s == nil || len(s.keys) == 0 {
		return slices.Clone(nodes), nil
	}

	rows := make([]row, len(nodes))
	for i, n := range nodes {
		if err := apperr.CheckContext(ctx); err != nil {
			return nil, fmt.Errorf("sort: %w", err)
		}
		vals := make([]any, len(s.keys))
		for j, k := range s.keys {
			if v, ok := k.path.Get(r, n); ok {
				vals[j] = normalize(k.path, v)
			}
		}
		rows[i] = row{n: n, vals: vals}
	}

	slices.SortStableFunc(rows, func(a, b row) int {
		for j, k := range s.keys {
			c := value.CompareAny(k.path.Kind, k.path.Elem, a.vals[j], b.vals[j])
			if c == 0 {
				continue
			}
			if k.desc {
				return -c
			}
			return c
		}
		return 0
	})
	if err := apperr.CheckContext(ctx); err != nil {
		return nil, fmt.Errorf("sort: %w", err)
	}

	out := make([]*node.Node, len(rows))
	for i, rw := range rows {
		out[i] = rw.n
	}
	return out, nil
}

// normalize coerces a resolved value once so the comparator does not parse
// dates or numbers on every comparison. Uncoercible values become nil.
func normalize(p *schema.Path, v any) any {
	if p.Kind != value.List {
		c, _ := value.Coerce(p.Kind, v)
		return c
	}
	l, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]any, len(l))
	for i, e := range l {
		out[i], _ = value.Coerce(p.Elem, e)
	}
	return out
}
