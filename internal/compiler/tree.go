package compiler

import (
	"encoding/json"
	"strings"

	"github.com/roach88/doccore/internal/ir"
)

// Element fields. A struct whose single field is not one of these is the
// shorthand {tag: body}.
var keywords = map[string]bool{
	"tag":        true,
	"name":       true,
	"extend":     true,
	"attributes": true,
	"children":   true,
	"import":     true,
}

// RootTag is the tag of a document root that does not name one.
const RootTag = "document"

// importer compiles the document an element imports.
type importer func(ref string, at source) (*ir.FlatDocument, error)

type builder struct {
	flat    ir.FlatDocument
	imports importer
}

// compileTop compiles a top-level value: either {document: ...} in tree
// form or {nodes: [...]} in flat form.
func compileTop(s source, imports importer) (*ir.FlatDocument, error) {
	if s.kind() != kindStruct {
		return nil, s.errorf("expected a document or nodes field, got %s", s.kind())
	}
	fields, err := s.fields()
	if err != nil {
		return nil, err
	}
	var doc, nodes source
	for _, f := range fields {
		switch f.name {
		case "document":
			doc = f.value
		case "nodes":
			nodes = f.value
		}
	}
	switch {
	case doc != nil && nodes != nil:
		return nil, s.errorf("document and nodes are exclusive")
	case nodes != nil:
		return decodeFlat(s)
	case doc == nil:
		return nil, s.errorf("expected a document or nodes field")
	}

	b := &builder{imports: imports}
	if err := b.root(doc); err != nil {
		return nil, err
	}
	return b.validate()
}

// compileFragment compiles content (a list of children) under a wrapper
// root, the shape Document.AddNodes takes.
func compileFragment(s source, imports importer) (*ir.FlatDocument, error) {
	b := &builder{imports: imports}
	idx := b.add(ir.FlatNode{Tag: RootTag, Parent: ir.RootParent})
	children, err := b.content(s, idx)
	if err != nil {
		return nil, err
	}
	b.flat.Nodes[idx].Children = children
	return b.validate()
}

func (b *builder) validate() (*ir.FlatDocument, error) {
	if verrs := b.flat.Validate(); len(verrs) > 0 {
		return nil, &CompileError{Field: verrs[0].Field, Message: verrs[0].Message}
	}
	return &b.flat, nil
}

// root compiles the document element. Its tag defaults to RootTag and the
// {tag: body} shorthand does not apply; a list or text is its content.
func (b *builder) root(s source) error {
	switch s.kind() {
	case kindStruct:
		_, err := b.element(s, ir.RootParent, RootTag, false)
		return err
	default:
		idx := b.add(ir.FlatNode{Tag: RootTag, Parent: ir.RootParent})
		children, err := b.content(s, idx)
		if err != nil {
			return err
		}
		b.flat.Nodes[idx].Children = children
		return nil
	}
}

func (b *builder) add(n ir.FlatNode) int {
	b.flat.Nodes = append(b.flat.Nodes, n)
	return len(b.flat.Nodes) - 1
}

func (b *builder) element(s source, parent int, tag string, shorthand bool) (int, error) {
	body, err := s.fields()
	if err != nil {
		return 0, err
	}
	at := s
	if shorthand && len(body) == 1 && !keywords[body[0].name] {
		tag, at = body[0].name, body[0].value
		switch at.kind() {
		case kindNull:
			body = nil
		case kindScalar, kindList:
			idx := b.add(ir.FlatNode{Tag: tag, Parent: parent})
			children, err := b.content(at, idx)
			if err != nil {
				return 0, err
			}
			b.flat.Nodes[idx].Children = children
			return idx, nil
		default:
			if body, err = at.fields(); err != nil {
				return 0, err
			}
			for _, f := range body {
				if f.name == "tag" {
					return 0, f.value.errorf("tag is already given by the %q key", tag)
				}
			}
		}
	}

	node := ir.FlatNode{Tag: tag, Parent: parent}
	var attrs, children, imp source
	for _, f := range body {
		switch f.name {
		case "tag":
			if node.Tag, err = f.value.scalar(); err != nil {
				return 0, err
			}
		case "name":
			if node.Name, err = f.value.scalar(); err != nil {
				return 0, err
			}
			if path, perr := ir.ParsePath(node.Name); perr != nil || len(path) != 1 || len(path[0].Index) > 0 {
				return 0, f.value.errorf("invalid name %q", node.Name)
			}
		case "extend":
			if node.Extend, err = f.value.scalar(); err != nil {
				return 0, err
			}
			if _, perr := ir.ParseRef(node.Extend); perr != nil {
				return 0, f.value.errorf("%v", perr)
			}
		case "attributes":
			attrs = f.value
		case "children":
			children = f.value
		case "import":
			imp = f.value
		default:
			return 0, f.value.errorf("unknown element field %q", f.name)
		}
	}
	if node.Tag == "" && node.Extend == "" {
		return 0, at.errorf("element needs a tag or an extend reference")
	}
	if imp != nil && children != nil {
		return 0, imp.errorf("import and children are exclusive")
	}

	idx := b.add(node)
	if attrs != nil {
		if err := b.attributes(attrs, idx); err != nil {
			return 0, err
		}
	}
	if children != nil {
		content, err := b.content(children, idx)
		if err != nil {
			return 0, err
		}
		b.flat.Nodes[idx].Children = content
	}
	if imp != nil {
		if err := b.importInto(imp, idx); err != nil {
			return 0, err
		}
	}
	return idx, nil
}

func (b *builder) attributes(s source, owner int) error {
	if s.kind() != kindStruct {
		return s.errorf("attributes must be a mapping, got %s", s.kind())
	}
	fields, err := s.fields()
	if err != nil {
		return err
	}
	for _, f := range fields {
		content, err := b.content(f.value, owner)
		if err != nil {
			return err
		}
		if content == nil {
			content = []ir.FlatChild{}
		}
		attr := ir.FlatAttribute{Name: f.name, Children: content}
		b.flat.Nodes[owner].Attributes = append(b.flat.Nodes[owner].Attributes, attr)
	}
	return nil
}

// content compiles children: text, one element, or a list of either.
func (b *builder) content(s source, parent int) ([]ir.FlatChild, error) {
	switch s.kind() {
	case kindNull:
		return nil, nil
	case kindList:
		items, err := s.items()
		if err != nil {
			return nil, err
		}
		out := make([]ir.FlatChild, 0, len(items))
		for _, it := range items {
			if it.kind() == kindList {
				return nil, it.errorf("nested lists are not allowed")
			}
			if it.kind() == kindNull {
				return nil, it.errorf("empty child")
			}
			ch, err := b.child(it, parent)
			if err != nil {
				return nil, err
			}
			out = append(out, ch)
		}
		return out, nil
	default:
		ch, err := b.child(s, parent)
		if err != nil {
			return nil, err
		}
		return []ir.FlatChild{ch}, nil
	}
}

// child compiles one child. Text that is exactly a reference becomes a
// node copying the referent.
func (b *builder) child(s source, parent int) (ir.FlatChild, error) {
	if s.kind() == kindStruct {
		idx, err := b.element(s, parent, "", true)
		if err != nil {
			return ir.FlatChild{}, err
		}
		return ir.NodeChild(idx), nil
	}
	text, err := s.scalar()
	if err != nil {
		return ir.FlatChild{}, err
	}
	if IsReference(text) {
		return ir.NodeChild(b.add(ir.FlatNode{Parent: parent, Extend: text})), nil
	}
	return ir.TextChild(text), nil
}

// IsReference reports whether text is a whole reference such as $x.value
// or $list[2].
func IsReference(text string) bool {
	if !strings.HasPrefix(text, "$") {
		return false
	}
	_, err := ir.ParseRef(text)
	return err == nil
}

// importInto grafts the children of an imported document below owner.
// Names inside the import are scoped to owner.
func (b *builder) importInto(s source, owner int) error {
	ref, err := s.scalar()
	if err != nil {
		return err
	}
	if b.imports == nil {
		return s.errorf("imports are not available here")
	}
	imported, err := b.imports(ref, s)
	if err != nil {
		return err
	}

	base := len(b.flat.Nodes) - 1
	shift := func(j int) int {
		if j == 0 {
			return owner
		}
		return base + j
	}
	shiftChildren := func(children []ir.FlatChild) []ir.FlatChild {
		out := make([]ir.FlatChild, len(children))
		for k, ch := range children {
			if ch.Node == nil {
				out[k] = ch
				continue
			}
			out[k] = ir.NodeChild(shift(*ch.Node))
		}
		return out
	}
	for _, n := range imported.Nodes[1:] {
		n.Parent = shift(n.Parent)
		n.Children = shiftChildren(n.Children)
		attrs := make([]ir.FlatAttribute, len(n.Attributes))
		for k, a := range n.Attributes {
			attrs[k] = ir.FlatAttribute{Name: a.Name, Children: shiftChildren(a.Children)}
		}
		n.Attributes = attrs
		b.add(n)
	}
	b.flat.Nodes[owner].Children = shiftChildren(imported.Nodes[0].Children)
	b.flat.Nodes[owner].SourceDocument = ref
	return nil
}

// decodeFlat reads {nodes: [...]} in the ir.FlatDocument JSON shape.
func decodeFlat(s source) (*ir.FlatDocument, error) {
	var data []byte
	switch src := s.(type) {
	case cueSource:
		raw, err := src.v.MarshalJSON()
		if err != nil {
			return nil, formatCUEError(err)
		}
		data = raw
	case yamlSource:
		var v any
		if err := src.node().Decode(&v); err != nil {
			return nil, s.errorf("%v", err)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, s.errorf("%v", err)
		}
		data = raw
	}

	var flat ir.FlatDocument
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, s.errorf("decode flat document: %v", err)
	}
	if verrs := flat.Validate(); len(verrs) > 0 {
		return nil, &CompileError{Field: verrs[0].Field, Message: verrs[0].Message}
	}
	return &flat, nil
}
