package schema

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/value"
)

// Directives understood on field definitions:
//
//	reviews: [Review] @link            node ids resolved through the snapshot
//	reviews: [Review] @link(by: "id")  same, explicit
//	markdown: MarkdownRemark @childOf  children of the given type
const (
	directiveLink    = "link"
	directiveChildOf = "childOf"
)

// LoadSDL parses GraphQL type definitions into type declarations. Object types
// implementing Node become node types; other object types are embedded
// objects. Enums are strings. A field whose type is a node type is a link by
// id unless it is marked @childOf.
func LoadSDL(src string) ([]TypeDef, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: "schema.graphql", Input: src})
	if err != nil {
		return nil, fmt.Errorf("schema: parse sdl: %w: %s", apperr.ErrValidation, err.Error())
	}

	objects := map[string]*ast.Definition{}
	var order []string
	enums := map[string]bool{}
	scalars := map[string]bool{}

	for _, def := range doc.Definitions {
		switch def.Kind {
		case ast.Object:
			if _, ok := objects[def.Name]; ok {
				return nil, fmt.Errorf("schema: sdl type %s: %w", def.Name, apperr.ErrDuplicateType)
			}
			cp := *def
			objects[def.Name] = &cp
			order = append(order, def.Name)
		case ast.Enum:
			enums[def.Name] = true
		case ast.Scalar:
			scalars[def.Name] = true
		}
	}
	for _, ext := range doc.Extensions {
		if ext.Kind != ast.Object {
			continue
		}
		base, ok := objects[ext.Name]
		if !ok {
			return nil, fmt.Errorf("schema: sdl extend %s: %w", ext.Name, apperr.ErrUnknownType)
		}
		base.Fields = append(append(ast.FieldList{}, base.Fields...), ext.Fields...)
		base.Interfaces = append(append([]string{}, base.Interfaces...), ext.Interfaces...)
	}

	isNode := func(name string) bool {
		d, ok := objects[name]
		if !ok {
			return false
		}
		for _, i := range d.Interfaces {
			if i == NodeType {
				return true
			}
		}
		return false
	}

	defs := make([]TypeDef, 0, len(order))
	for _, name := range order {
		def := objects[name]
		td := TypeDef{Name: name, Node: isNode(name)}
		for _, f := range def.Fields {
			if td.Node && isNodeBuiltin(f.Name) {
				continue
			}
			fd, err := sdlField(f, enums, scalars, objects, isNode)
			if err != nil {
				return nil, fmt.Errorf("schema: sdl field %s.%s: %w", name, f.Name, err)
			}
			td.Fields = append(td.Fields, fd)
		}
		defs = append(defs, td)
	}
	return defs, nil
}

func sdlField(f *ast.FieldDefinition, enums, scalars map[string]bool, objects map[string]*ast.Definition, isNode func(string) bool) (FieldDef, error) {
	t := f.Type
	list := false
	if t.Elem != nil {
		list = true
		t = t.Elem
		if t.Elem != nil {
			return FieldDef{}, fmt.Errorf("%w: nested lists are not supported", apperr.ErrValidation)
		}
	}
	named := t.NamedType

	if k, ok := sdlScalarKind(named, enums, scalars); ok {
		if list {
			return ListOf(f.Name, k), nil
		}
		return Scalar(f.Name, k), nil
	}

	if _, ok := objects[named]; !ok && named != NodeType {
		// Resolved against the builder when sealing, so types may come from
		// another SDL document.
		if f.Directives.ForName(directiveLink) == nil && f.Directives.ForName(directiveChildOf) == nil {
			return objectField(f.Name, named, list, Embedded), nil
		}
	}

	mode := Embedded
	if named == NodeType || isNode(named) {
		mode = ByID
	}
	if d := f.Directives.ForName(directiveLink); d != nil {
		if arg := d.Arguments.ForName("by"); arg != nil && arg.Value != nil && strings.Trim(arg.Value.Raw, `"`) != "id" {
			return FieldDef{}, fmt.Errorf("%w: @link(by: %s) is not supported", apperr.ErrValidation, arg.Value.Raw)
		}
		mode = ByID
	}
	if f.Directives.ForName(directiveChildOf) != nil {
		mode = ChildOf
	}
	return objectField(f.Name, named, list, mode), nil
}

func objectField(name, typ string, list bool, mode LinkMode) FieldDef {
	if list {
		return FieldDef{Name: name, Kind: value.List, Elem: value.Object, Type: typ, Link: mode}
	}
	return FieldDef{Name: name, Kind: value.Object, Type: typ, Link: mode}
}

func sdlScalarKind(name string, enums, scalars map[string]bool) (value.Kind, bool) {
	if k, ok := value.ParseKind(name); ok {
		return k, true
	}
	if enums[name] {
		return value.String, true
	}
	if scalars[name] {
		return value.JSON, true
	}
	return value.Invalid, false
}

// AddSDL parses src and declares every type it defines.
func (b *Builder) AddSDL(src string) error {
	defs, err := LoadSDL(src)
	if err != nil {
		return err
	}
	for _, d := range defs {
		if err := b.Add(d); err != nil {
			return err
		}
	}
	return nil
}
