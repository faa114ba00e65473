package schema

import (
	"reflect"

	"github.com/starford/nodeql/internal/node"
	"github.com/starford/nodeql/internal/value"
)

// Resolver looks nodes up by id. A frozen snapshot is the usual Resolver.
type Resolver interface {
	Get(id string) (*node.Node, bool)
}

// LinkMode says how an object-valued field is stored on its container.
type LinkMode uint8

const (
	// Embedded values are inline maps.
	Embedded LinkMode = iota
	// ByID values hold a node id (or a list of ids).
	ByID
	// ChildOf values are the container node's children of the field's type.
	ChildOf
)

// FieldDef declares one field of a type.
type FieldDef struct {
	Name string
	Kind value.Kind
	// Elem is the element kind when Kind is List; value.Object for lists of
	// objects.
	Elem value.Kind
	// Type names the object type for Object fields and lists of objects.
	Type string
	Link LinkMode
}

// Scalar declares a scalar field.
func Scalar(name string, k value.Kind) FieldDef {
	return FieldDef{Name: name, Kind: k}
}

// ListOf declares a list of scalars.
func ListOf(name string, elem value.Kind) FieldDef {
	return FieldDef{Name: name, Kind: value.List, Elem: elem}
}

// Object declares an embedded object of the given type.
func Object(name, typ string) FieldDef {
	return FieldDef{Name: name, Kind: value.Object, Type: typ}
}

// ObjectList declares a list of embedded objects.
func ObjectList(name, typ string) FieldDef {
	return FieldDef{Name: name, Kind: value.List, Elem: value.Object, Type: typ}
}

// Link declares a field holding the id of another node.
func Link(name, typ string) FieldDef {
	return FieldDef{Name: name, Kind: value.Object, Type: typ, Link: ByID}
}

// LinkList declares a field holding a list of node ids.
func LinkList(name, typ string) FieldDef {
	return FieldDef{Name: name, Kind: value.List, Elem: value.Object, Type: typ, Link: ByID}
}

// Child declares a field resolving to the first child node of a type.
func Child(name, typ string) FieldDef {
	return FieldDef{Name: name, Kind: value.Object, Type: typ, Link: ChildOf}
}

// ChildList declares a field resolving to all child nodes of a type.
func ChildList(name, typ string) FieldDef {
	return FieldDef{Name: name, Kind: value.List, Elem: value.Object, Type: typ, Link: ChildOf}
}

// Relation reports whether the field leads to objects that can be traversed.
func (d FieldDef) Relation() bool {
	return d.Kind == value.Object || (d.Kind == value.List && d.Elem == value.Object)
}

type getter func(r Resolver, obj any) (any, bool)

// Field is a registered field with its compiled getter.
type Field struct {
	FieldDef
	get getter
}

// Get resolves the field on a container: a *node.Node, an embedded
// map[string]any, or a node.Internal.
func (f *Field) Get(r Resolver, obj any) (any, bool) {
	return f.get(r, obj)
}

func newField(d FieldDef) *Field {
	return &Field{FieldDef: d, get: compileGetter(d)}
}

func compileGetter(d FieldDef) getter {
	raw := rawGetter(d.Name)

	switch {
	case d.Link == ChildOf:
		many := d.Kind == value.List
		typ := d.Type
		return func(r Resolver, obj any) (any, bool) {
			n, ok := obj.(*node.Node)
			if !ok {
				return nil, false
			}
			var out []any
			for _, id := range n.Children {
				c, ok := r.Get(id)
				if !ok || (typ != NodeType && c.Internal.Type != typ) {
					continue
				}
				if !many {
					return c, true
				}
				out = append(out, c)
			}
			if len(out) == 0 {
				return nil, false
			}
			return out, true
		}

	case d.Link == ByID && d.Kind == value.Object:
		return func(r Resolver, obj any) (any, bool) {
			v, ok := raw(r, obj)
			if !ok {
				return nil, false
			}
			id, ok := v.(string)
			if !ok {
				return nil, false
			}
			n, ok := r.Get(id)
			if !ok {
				return nil, false
			}
			return n, true
		}

	case d.Link == ByID && d.Kind == value.List:
		return func(r Resolver, obj any) (any, bool) {
			v, ok := raw(r, obj)
			if !ok {
				return nil, false
			}
			ids, ok := toList(v)
			if !ok {
				return nil, false
			}
			out := make([]any, 0, len(ids))
			for _, e := range ids {
				id, ok := e.(string)
				if !ok {
					continue
				}
				if n, ok := r.Get(id); ok {
					out = append(out, n)
				}
			}
			if len(out) == 0 {
				return nil, false
			}
			return out, true
		}

	case d.Kind == value.Object:
		return func(r Resolver, obj any) (any, bool) {
			v, ok := raw(r, obj)
			if !ok {
				return nil, false
			}
			m, ok := v.(map[string]any)
			return m, ok
		}

	case d.Kind == value.List:
		return func(r Resolver, obj any) (any, bool) {
			v, ok := raw(r, obj)
			if !ok {
				return nil, false
			}
			l, ok := toList(v)
			if !ok || len(l) == 0 {
				return nil, false
			}
			return l, true
		}
	}
	return raw
}

func rawGetter(name string) getter {
	return func(_ Resolver, obj any) (any, bool) {
		var v any
		var ok bool
		switch o := obj.(type) {
		case *node.Node:
			v, ok = o.Fields[name]
		case map[string]any:
			v, ok = o[name]
		}
		return v, ok && v != nil
	}
}

// toList normalises any slice into []any.
func toList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
