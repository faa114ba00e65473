package schema

import (
	"github.com/starford/nodeql/internal/node"
	"github.com/starford/nodeql/internal/value"
)

// Built-in type names.
const (
	NodeType     = "Node"
	InternalType = "Internal"
)

// nodeFields are the fields every node type carries.
func nodeFields() []*Field {
	return []*Field{
		{
			FieldDef: Scalar("id", value.String),
			get: func(_ Resolver, obj any) (any, bool) {
				n, ok := obj.(*node.Node)
				if !ok || n.ID == "" {
					return nil, false
				}
				return n.ID, true
			},
		},
		{
			FieldDef: FieldDef{Name: "parent", Kind: value.Object, Type: NodeType, Link: ByID},
			get: func(r Resolver, obj any) (any, bool) {
				n, ok := obj.(*node.Node)
				if !ok || n.Parent == "" {
					return nil, false
				}
				p, ok := r.Get(n.Parent)
				if !ok {
					return nil, false
				}
				return p, true
			},
		},
		{
			FieldDef: FieldDef{Name: "children", Kind: value.List, Elem: value.Object, Type: NodeType, Link: ByID},
			get: func(r Resolver, obj any) (any, bool) {
				n, ok := obj.(*node.Node)
				if !ok || len(n.Children) == 0 {
					return nil, false
				}
				out := make([]any, 0, len(n.Children))
				for _, id := range n.Children {
					if c, ok := r.Get(id); ok {
						out = append(out, c)
					}
				}
				if len(out) == 0 {
					return nil, false
				}
				return out, true
			},
		},
		{
			FieldDef: Object("internal", InternalType),
			get: func(_ Resolver, obj any) (any, bool) {
				n, ok := obj.(*node.Node)
				if !ok {
					return nil, false
				}
				return n.Internal, true
			},
		},
	}
}

func internalField(d FieldDef, read func(in node.Internal) (any, bool)) *Field {
	return &Field{
		FieldDef: d,
		get: func(_ Resolver, obj any) (any, bool) {
			in, ok := obj.(node.Internal)
			if !ok {
				return nil, false
			}
			return read(in)
		},
	}
}

func nonEmpty(s string) (any, bool) {
	return s, s != ""
}

func internalFields() []*Field {
	return []*Field{
		internalField(Scalar("type", value.String), func(in node.Internal) (any, bool) { return nonEmpty(in.Type) }),
		internalField(Scalar("contentDigest", value.String), func(in node.Internal) (any, bool) { return nonEmpty(in.ContentDigest) }),
		internalField(Scalar("owner", value.String), func(in node.Internal) (any, bool) { return nonEmpty(in.Owner) }),
		internalField(Scalar("mediaType", value.String), func(in node.Internal) (any, bool) { return nonEmpty(in.MediaType) }),
		internalField(Scalar("description", value.String), func(in node.Internal) (any, bool) { return nonEmpty(in.Description) }),
		internalField(Scalar("fieldOwners", value.JSON), func(in node.Internal) (any, bool) {
			if len(in.FieldOwners) == 0 {
				return nil, false
			}
			m := make(map[string]any, len(in.FieldOwners))
			for k, v := range in.FieldOwners {
				m[k] = v
			}
			return m, true
		}),
		internalField(Scalar("ignoreType", value.Boolean), func(in node.Internal) (any, bool) { return in.IgnoreType, true }),
		internalField(Scalar("counter", value.Int), func(in node.Internal) (any, bool) { return int64(in.Counter), true }),
	}
}
