// Package node defines the content node shared by every content type.
package node

import (
	"encoding/json"
	"maps"
	"slices"
)

// Internal holds bookkeeping metadata set by the plugin that created a node.
type Internal struct {
	Type          string            `json:"type"`
	ContentDigest string            `json:"contentDigest"`
	Owner         string            `json:"owner"`
	MediaType     string            `json:"mediaType,omitempty"`
	Description   string            `json:"description,omitempty"`
	FieldOwners   map[string]string `json:"fieldOwners,omitempty"`
	IgnoreType    bool              `json:"ignoreType,omitempty"`
	// Counter is the insertion sequence assigned by the store.
	Counter int `json:"counter"`
}

// Node is a unit of content. Parent is a lookup id only; Children are ids
// owned by the store that holds the node.
type Node struct {
	ID       string
	Parent   string
	Children []string
	Internal Internal
	Fields   map[string]any
}

// New returns a node of the given type with an empty field map.
func New(id, typ, owner string) *Node {
	return &Node{
		ID:       id,
		Internal: Internal{Type: typ, Owner: owner},
		Fields:   map[string]any{},
	}
}

// Type returns the node's type name.
func (n *Node) Type() string {
	return n.Internal.Type
}

// Field returns a raw field value.
func (n *Node) Field(name string) (any, bool) {
	v, ok := n.Fields[name]
	return v, ok && v != nil
}

// Clone returns a deep copy of the node. Nested maps and slices in Fields are
// copied so the clone shares no mutable state with n.
func (n *Node) Clone() *Node {
	c := &Node{
		ID:       n.ID,
		Parent:   n.Parent,
		Children: slices.Clone(n.Children),
		Internal: n.Internal,
		Fields:   make(map[string]any, len(n.Fields)),
	}
	c.Internal.FieldOwners = maps.Clone(n.Internal.FieldOwners)
	for k, v := range n.Fields {
		c.Fields[k] = cloneValue(v)
	}
	return c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}

// MarshalJSON flattens Fields next to the built-in keys, which is the shape
// query responses expose.
func (n *Node) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(n.Fields)+4)
	for k, v := range n.Fields {
		out[k] = v
	}
	out["id"] = n.ID
	if n.Parent != "" {
		out["parent"] = n.Parent
	} else {
		out["parent"] = nil
	}
	children := n.Children
	if children == nil {
		children = []string{}
	}
	out["children"] = children
	out["internal"] = n.Internal
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Node{Fields: map[string]any{}}
	for k, v := range raw {
		var err error
		switch k {
		case "id":
			err = json.Unmarshal(v, &n.ID)
		case "parent":
			var p *string
			err = json.Unmarshal(v, &p)
			if p != nil {
				n.Parent = *p
			}
		case "children":
			err = json.Unmarshal(v, &n.Children)
		case "internal":
			err = json.Unmarshal(v, &n.Internal)
		default:
			var val any
			err = json.Unmarshal(v, &val)
			n.Fields[k] = val
		}
		if err != nil {
			return err
		}
	}
	return nil
}
