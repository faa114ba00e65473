// Package schema is the type registry: per-type field schemas and accessors
// compiled once for every enumerated field path.
package schema

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/node"
	"github.com/starford/nodeql/internal/value"
)

// DefaultMaxDepth bounds how many relations a field path may cross.
const DefaultMaxDepth = 3

// PathSep is the canonical field path separator (parent___internal___type).
const PathSep = "___"

// TypeDef is the declaration of one type, as read from SDL, inferred from
// data, or written by hand.
type TypeDef struct {
	Name string
	// Node types get the built-in id/parent/children/internal fields and
	// can be queried. Other types are only reachable as embedded objects.
	Node   bool
	Fields []FieldDef
}

// TypeSchema is the sealed schema of one type.
type TypeSchema struct {
	Name    string
	Node    bool
	Builtin bool

	fields []*Field
	byName map[string]*Field
	paths  map[string]*Path
	enum   []string
}

// Field returns a field by name.
func (t *TypeSchema) Field(name string) (*Field, bool) {
	f, ok := t.byName[name]
	return f, ok
}

// Fields returns the fields in declaration order, built-ins first.
func (t *TypeSchema) Fields() []*Field {
	return t.fields
}

// FieldPaths returns the type's enumerated scalar paths, sorted. These are the
// only values accepted for sort, group and distinct fields.
func (t *TypeSchema) FieldPaths() []string {
	return t.enum
}

// Accessor resolves a field path on a node.
type Accessor func(r Resolver, n *node.Node) (any, bool)

// Path is a compiled field path.
type Path struct {
	Name string
	// Kind is the leaf kind, or List when the leaf is a list or the path
	// crosses a list relation. Elem is then the element kind.
	Kind value.Kind
	Elem value.Kind
	// Type is the object type name when the path ends on a relation.
	Type string
	get  getter
}

// Get resolves the path on n.
func (p *Path) Get(r Resolver, n *node.Node) (any, bool) {
	return p.get(r, n)
}

// Value resolves the path on any container of the path's root type: a node,
// an embedded object map or a node.Internal.
func (p *Path) Value(r Resolver, obj any) (any, bool) {
	return p.get(r, obj)
}

// Accessor returns the compiled accessor.
func (p *Path) Accessor() Accessor {
	return func(r Resolver, n *node.Node) (any, bool) { return p.get(r, n) }
}

// ValueKind is the kind to compare resolved values with: Elem for lists.
func (p *Path) ValueKind() value.Kind {
	if p.Kind == value.List {
		return p.Elem
	}
	return p.Kind
}

// Builder collects type declarations. It is used once at startup and then
// sealed into a Registry.
type Builder struct {
	maxDepth int
	defs     map[string]TypeDef
	order    []string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithMaxDepth sets how many relations a field path may cross.
func WithMaxDepth(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.maxDepth = n
		}
	}
}

// NewBuilder creates a builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{maxDepth: DefaultMaxDepth, defs: map[string]TypeDef{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register declares a node type.
func (b *Builder) Register(name string, fields ...FieldDef) error {
	return b.Add(TypeDef{Name: name, Node: true, Fields: fields})
}

// RegisterObject declares an embedded object type.
func (b *Builder) RegisterObject(name string, fields ...FieldDef) error {
	return b.Add(TypeDef{Name: name, Fields: fields})
}

// Add declares a type.
func (b *Builder) Add(def TypeDef) error {
	if def.Name == "" {
		return fmt.Errorf("schema: register: %w: type name is required", apperr.ErrValidation)
	}
	if def.Name == NodeType || def.Name == InternalType {
		return fmt.Errorf("schema: register %s: %w", def.Name, apperr.ErrDuplicateType)
	}
	if _, ok := b.defs[def.Name]; ok {
		return fmt.Errorf("schema: register %s: %w", def.Name, apperr.ErrDuplicateType)
	}
	seen := map[string]bool{}
	for _, f := range def.Fields {
		if f.Name == "" || strings.Contains(f.Name, PathSep) || strings.Contains(f.Name, ".") {
			return fmt.Errorf("schema: register %s: %w: invalid field name %q", def.Name, apperr.ErrValidation, f.Name)
		}
		if def.Node && isNodeBuiltin(f.Name) {
			return fmt.Errorf("schema: register %s: %w: field %q is built in", def.Name, apperr.ErrValidation, f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema: register %s: %w: field %q declared twice", def.Name, apperr.ErrValidation, f.Name)
		}
		seen[f.Name] = true
		if f.Kind == value.Invalid || (f.Kind == value.List && f.Elem == value.Invalid) {
			return fmt.Errorf("schema: register %s.%s: %w: missing kind", def.Name, f.Name, apperr.ErrValidation)
		}
	}
	b.defs[def.Name] = def
	b.order = append(b.order, def.Name)
	return nil
}

// Has reports whether a type is declared.
func (b *Builder) Has(name string) bool {
	_, ok := b.defs[name]
	return ok || name == NodeType || name == InternalType
}

// Seal checks references, compiles every enumerated field path and returns
// the immutable registry.
func (b *Builder) Seal() (*Registry, error) {
	reg := &Registry{types: make(map[string]*TypeSchema, len(b.defs)+2)}

	reg.types[NodeType] = newTypeSchema(NodeType, true, true, nodeFields())
	reg.types[InternalType] = newTypeSchema(InternalType, false, true, internalFields())

	for _, name := range b.order {
		def := b.defs[name]
		var fields []*Field
		if def.Node {
			fields = nodeFields()
		}
		for _, fd := range def.Fields {
			if fd.Relation() {
				if !b.Has(fd.Type) {
					return nil, fmt.Errorf("schema: %s.%s: %w: %s", name, fd.Name, apperr.ErrUnknownType, fd.Type)
				}
				if fd.Link == ChildOf && !def.Node {
					return nil, fmt.Errorf("schema: %s.%s: %w: child relations need a node type", name, fd.Name, apperr.ErrValidation)
				}
			}
			fields = append(fields, newField(fd))
		}
		reg.types[name] = newTypeSchema(name, def.Node, false, fields)
	}

	for _, t := range reg.types {
		t.paths = map[string]*Path{}
		reg.enumerate(t, t, nil, 0, b.maxDepth)
		for p, path := range t.paths {
			if path.Kind.Scalar() || (path.Kind == value.List && path.Elem.Scalar()) {
				t.enum = append(t.enum, p)
			}
		}
		slices.Sort(t.enum)
	}
	return reg, nil
}

func newTypeSchema(name string, isNode, builtin bool, fields []*Field) *TypeSchema {
	t := &TypeSchema{Name: name, Node: isNode, Builtin: builtin, fields: fields, byName: make(map[string]*Field, len(fields))}
	for _, f := range fields {
		t.byName[f.Name] = f
	}
	return t
}

func isNodeBuiltin(name string) bool {
	switch name {
	case "id", "parent", "children", "internal":
		return true
	}
	return false
}

// enumerate walks the type graph from cur, compiling one Path per reachable
// field chain. hops counts relations crossed so far.
func (r *Registry) enumerate(root, cur *TypeSchema, chain []*Field, hops, maxDepth int) {
	for _, f := range cur.fields {
		next := append(slices.Clone(chain), f)
		root.paths[joinPath(next)] = compilePath(next)
		if !f.Relation() || hops >= maxDepth {
			continue
		}
		r.enumerate(root, r.types[f.Type], next, hops+1, maxDepth)
	}
}

func joinPath(chain []*Field) string {
	names := make([]string, len(chain))
	for i, f := range chain {
		names[i] = f.Name
	}
	return strings.Join(names, PathSep)
}

func compilePath(chain []*Field) *Path {
	leaf := chain[len(chain)-1]
	multi := false
	for _, f := range chain[:len(chain)-1] {
		if f.Kind == value.List {
			multi = true
		}
	}
	p := &Path{Name: joinPath(chain), Type: leaf.Type, get: chainGetter(chain)}
	switch {
	case leaf.Kind == value.List:
		p.Kind, p.Elem = value.List, leaf.Elem
	case multi:
		p.Kind, p.Elem = value.List, leaf.Kind
	default:
		p.Kind = leaf.Kind
	}
	return p
}

// chainGetter folds a field chain into a single closure. Crossing a list
// relation maps the rest of the chain over its elements and flattens.
func chainGetter(chain []*Field) getter {
	f := chain[0]
	if len(chain) == 1 {
		return f.get
	}
	rest := chainGetter(chain[1:])
	if f.Kind == value.List {
		return func(r Resolver, obj any) (any, bool) {
			v, ok := f.get(r, obj)
			if !ok {
				return nil, false
			}
			elems, _ := v.([]any)
			out := make([]any, 0, len(elems))
			for _, e := range elems {
				ev, ok := rest(r, e)
				if !ok {
					continue
				}
				if l, isList := ev.([]any); isList {
					out = append(out, l...)
				} else {
					out = append(out, ev)
				}
			}
			if len(out) == 0 {
				return nil, false
			}
			return out, true
		}
	}
	return func(r Resolver, obj any) (any, bool) {
		v, ok := f.get(r, obj)
		if !ok {
			return nil, false
		}
		return rest(r, v)
	}
}

// Registry is the sealed, read-only type registry. It is safe for concurrent
// use.
type Registry struct {
	types map[string]*TypeSchema
}

// Type returns the schema of a type.
func (r *Registry) Type(name string) (*TypeSchema, error) {
	t, ok := r.types[name]
	if !ok {
		return nil, &apperr.QueryError{Op: "schema", Type: name, Err: apperr.ErrUnknownType}
	}
	return t, nil
}

// NodeType returns the schema of a queryable node type.
func (r *Registry) NodeType(name string) (*TypeSchema, error) {
	t, err := r.Type(name)
	if err != nil {
		return nil, err
	}
	if !t.Node || t.Builtin {
		return nil, &apperr.QueryError{Op: "schema", Type: name, Msg: "not a node type", Err: apperr.ErrUnknownType}
	}
	return t, nil
}

// Types returns the sorted names of the registered node types.
func (r *Registry) Types() []string {
	var out []string
	for _, name := range slices.Sorted(maps.Keys(r.types)) {
		if t := r.types[name]; t.Node && !t.Builtin {
			out = append(out, name)
		}
	}
	return out
}

// Resolve returns the compiled path for typeName. Paths may use "." or "___"
// between segments.
func (r *Registry) Resolve(typeName, path string) (*Path, error) {
	t, err := r.Type(typeName)
	if err != nil {
		return nil, err
	}
	canon := NormalizePath(path)
	p, ok := t.paths[canon]
	if !ok {
		return nil, &apperr.QueryError{Op: "schema", Type: typeName, Path: path, Err: apperr.ErrUnknownFieldPath}
	}
	return p, nil
}

// FieldPaths returns the enumerated scalar paths of a type.
func (r *Registry) FieldPaths(typeName string) ([]string, error) {
	t, err := r.Type(typeName)
	if err != nil {
		return nil, err
	}
	return t.FieldPaths(), nil
}

// NormalizePath rewrites a dotted path to the canonical separator.
func NormalizePath(path string) string {
	return strings.ReplaceAll(strings.TrimSpace(path), ".", PathSep)
}
