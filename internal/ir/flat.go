package ir

import (
	"fmt"
)

// RootParent is the Parent value of the document root.
const RootParent = -1

// FlatDocument is the parsed form of an authored document: a flat list of
// element nodes addressed by index. Node 0 is the document root.
type FlatDocument struct {
	Nodes []FlatNode `json:"nodes"`
}

// FlatNode is one element of a flat document.
type FlatNode struct {
	Tag        string          `json:"tag"`
	Name       string          `json:"name,omitempty"`
	Parent     int             `json:"parent"`
	Attributes []FlatAttribute `json:"attributes,omitempty"`
	Children   []FlatChild     `json:"children,omitempty"`

	// Extend is an unresolved reference ("$x", "$x.value", "$x[2]") naming
	// the component (or prop) this node copies.
	Extend string `json:"extend,omitempty"`

	// SourceDocument is set on a node whose children were imported from
	// another document. Names inside the import are scoped to this node.
	SourceDocument string `json:"source_document,omitempty"`
}

// FlatAttribute is an authored attribute. Its content may mix text and
// element nodes, the same as children.
type FlatAttribute struct {
	Name     string      `json:"name"`
	Children []FlatChild `json:"children"`
}

// FlatChild is either a reference to another node or literal text.
type FlatChild struct {
	Node *int   `json:"node,omitempty"`
	Text string `json:"text,omitempty"`
}

// NodeChild returns a child that references node idx.
func NodeChild(idx int) FlatChild {
	return FlatChild{Node: &idx}
}

// TextChild returns a literal text child.
func TextChild(s string) FlatChild {
	return FlatChild{Text: s}
}

// IsNode reports whether the child references an element node.
func (c FlatChild) IsNode() bool {
	return c.Node != nil
}

// Attribute returns the named attribute and whether it was authored.
func (n *FlatNode) Attribute(name string) (FlatAttribute, bool) {
	for _, a := range n.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return FlatAttribute{}, false
}

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the structural rules of a flat document.
// Returns all errors (not fail-fast) for better developer experience.
func (d *FlatDocument) Validate() []ValidationError {
	var errs []ValidationError

	if len(d.Nodes) == 0 {
		return []ValidationError{{Field: "nodes", Message: "document has no nodes"}}
	}
	if d.Nodes[0].Parent != RootParent {
		errs = append(errs, ValidationError{
			Field:   "nodes[0].parent",
			Message: "node 0 must be the document root (parent -1)",
		})
	}

	checkChildren := func(field string, owner int, children []FlatChild) {
		for j, c := range children {
			if c.Node == nil {
				continue
			}
			idx := *c.Node
			if idx <= 0 || idx >= len(d.Nodes) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s[%d]", field, j),
					Message: fmt.Sprintf("node index %d out of range", idx),
				})
				continue
			}
			if d.Nodes[idx].Parent != owner {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s[%d]", field, j),
					Message: fmt.Sprintf("node %d has parent %d, expected %d", idx, d.Nodes[idx].Parent, owner),
				})
			}
		}
	}

	for i, n := range d.Nodes {
		if n.Tag == "" && n.Extend == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("nodes[%d].tag", i),
				Message: "tag is required unless the node extends a reference",
			})
		}
		if i > 0 && (n.Parent < 0 || n.Parent >= len(d.Nodes)) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("nodes[%d].parent", i),
				Message: fmt.Sprintf("parent %d out of range", n.Parent),
			})
		}
		if n.Extend != "" {
			if _, err := ParseRef(n.Extend); err != nil {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("nodes[%d].extend", i),
					Message: err.Error(),
				})
			}
		}
		checkChildren(fmt.Sprintf("nodes[%d].children", i), i, n.Children)
		seen := make(map[string]bool, len(n.Attributes))
		for j, a := range n.Attributes {
			if seen[a.Name] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("nodes[%d].attributes[%d]", i, j),
					Message: fmt.Sprintf("duplicate attribute %q", a.Name),
				})
			}
			seen[a.Name] = true
			checkChildren(fmt.Sprintf("nodes[%d].attributes[%d]", i, j), i, a.Children)
		}
	}

	return errs
}

// Remap renumbers the document. remap[old] is the new index of node old,
// or -1 if the node was pruned. Children referencing pruned nodes are dropped.
func (d *FlatDocument) Remap(remap []int) *FlatDocument {
	size := 0
	for _, n := range remap {
		if n >= 0 {
			size = max(size, n+1)
		}
	}
	out := &FlatDocument{Nodes: make([]FlatNode, size)}

	mapChildren := func(children []FlatChild) []FlatChild {
		if children == nil {
			return nil
		}
		mapped := make([]FlatChild, 0, len(children))
		for _, c := range children {
			if c.Node == nil {
				mapped = append(mapped, c)
				continue
			}
			if nw := remap[*c.Node]; nw >= 0 {
				mapped = append(mapped, NodeChild(nw))
			}
		}
		return mapped
	}

	for old, nw := range remap {
		if nw < 0 {
			continue
		}
		n := d.Nodes[old]
		if n.Parent != RootParent {
			n.Parent = remap[n.Parent]
		}
		n.Children = mapChildren(n.Children)
		if n.Attributes != nil {
			attrs := make([]FlatAttribute, len(n.Attributes))
			for j, a := range n.Attributes {
				attrs[j] = FlatAttribute{Name: a.Name, Children: mapChildren(a.Children)}
			}
			n.Attributes = attrs
		}
		out.Nodes[nw] = n
	}
	return out
}

// ToValue converts the document to a Value tree for hashing and printing.
func (d *FlatDocument) ToValue() Value {
	childrenValue := func(children []FlatChild) Array {
		arr := make(Array, len(children))
		for i, c := range children {
			if c.Node != nil {
				arr[i] = NewObject(O("node", Int(*c.Node)))
			} else {
				arr[i] = NewObject(O("text", String(c.Text)))
			}
		}
		return arr
	}

	nodes := make(Array, len(d.Nodes))
	for i, n := range d.Nodes {
		obj := NewObject(
			O("tag", String(n.Tag)),
			O("parent", Int(n.Parent)),
			O("children", childrenValue(n.Children)),
		)
		if n.Name != "" {
			obj["name"] = String(n.Name)
		}
		if n.Extend != "" {
			obj["extend"] = String(n.Extend)
		}
		if n.SourceDocument != "" {
			obj["source_document"] = String(n.SourceDocument)
		}
		if len(n.Attributes) > 0 {
			attrs := make(Object, len(n.Attributes))
			for _, a := range n.Attributes {
				attrs[a.Name] = childrenValue(a.Children)
			}
			obj["attributes"] = attrs
		}
		nodes[i] = obj
	}
	return NewObject(O("nodes", nodes))
}
