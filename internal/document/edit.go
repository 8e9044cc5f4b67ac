package document

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/ir"
	"github.com/roach88/doccore/internal/resolver"
)

// AddNodes appends the content of fragment below the component with the
// given alias. Node 0 of fragment is a wrapper: its children (text
// included) become new children of parent, after the existing ones. It
// returns the aliases of the new top-level components.
//
// Content added to a map becomes part of its template, and the map is
// expanded again from scratch.
func (d *Document) AddNodes(parent string, fragment *ir.FlatDocument) ([]string, error) {
	p, ok := d.Lookup(parent)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlias, parent)
	}
	if verrs := fragment.Validate(); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, fmt.Errorf("invalid fragment: %w", errors.Join(errs...))
	}
	frag := fragment.Remap(reachable(fragment))

	base := len(d.flat.Nodes)
	shift := func(j int) int {
		if j == 0 {
			return p
		}
		return base + j - 1
	}
	nodes := make([]ir.FlatNode, 0, len(frag.Nodes)-1)
	for _, n := range frag.Nodes[1:] {
		n.Parent = shift(n.Parent)
		n.Children = shiftChildren(n.Children, shift)
		attrs := make([]ir.FlatAttribute, len(n.Attributes))
		for k, a := range n.Attributes {
			attrs[k] = ir.FlatAttribute{Name: a.Name, Children: shiftChildren(a.Children, shift)}
		}
		n.Attributes = attrs
		nodes = append(nodes, n)
	}
	top := shiftChildren(frag.Nodes[0].Children, shift)

	template := d.isMap(p)
	idxs, err := d.commit(nodes, resolver.IndexPolicy{}, template)
	if err != nil {
		return nil, err
	}
	children := append([]ir.FlatChild(nil), d.flat.Nodes[p].Children...)
	d.flat.Nodes[p].Children = append(children, top...)

	if template {
		if err := d.expand(p, true); err != nil {
			return nil, err
		}
	} else {
		d.graph.SetChildren(p, d.flat.Nodes[p].Children)
		d.engine.Flush()
		d.checkCycles()
		if err := d.expandAll(idxs); err != nil {
			return nil, err
		}
	}

	var aliases []string
	for _, ch := range top {
		if ch.Node != nil {
			aliases = append(aliases, d.Alias(*ch.Node))
		}
	}
	slog.Debug("nodes added", "parent", parent, "count", len(nodes))
	return aliases, nil
}

// DeleteNodes deletes the components with the given aliases and everything
// below them. Components copying a deleted component become placeholders.
// Aliases may name map template content, which is otherwise not live;
// deleting it expands the map again.
func (d *Document) DeleteNodes(aliases ...string) error {
	var roots []int
	maps := make(map[int]bool)
	for _, a := range aliases {
		i, ok := d.find(a)
		if ok && !d.live(i) {
			m := d.templateOwner(i)
			if ok = m >= 0; ok {
				maps[m] = true
			}
		}
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownAlias, a)
		}
		if i == 0 {
			return errors.New("cannot delete the document root")
		}
		if t := d.comps[i].tag; t == catalog.IterationTag || t == catalog.ItemTag {
			return fmt.Errorf("cannot delete generated component %q", a)
		}
		roots = append(roots, i)
	}

	d.remove(roots)
	d.failOrphans()
	d.engine.Flush()
	d.checkCycles()

	for m := range maps {
		if !d.isMap(m) {
			continue
		}
		if err := d.expand(m, true); err != nil {
			return err
		}
	}
	slog.Debug("nodes deleted", "aliases", aliases)
	return d.refresh()
}

// templateOwner returns the map whose template holds component i, or -1.
func (d *Document) templateOwner(i int) int {
	c := d.comps[i]
	if !c.inert || c.deleted {
		return -1
	}
	for p := c.parent; p >= 0; p = d.comps[p].parent {
		if d.isMap(p) {
			return p
		}
		if !d.comps[p].inert {
			return -1
		}
	}
	return -1
}

// failOrphans replaces components whose extend source was deleted.
func (d *Document) failOrphans() {
	for changed := true; changed; {
		changed = false
		for i, c := range d.comps {
			if c.deleted || c.inert || c.failed != nil || c.extend == nil {
				continue
			}
			if src := d.comps[c.extend.Source]; src.deleted || src.failed != nil {
				d.fail(i, CodeUnresolvedReference, fmt.Sprintf("%s refers to a deleted component", d.flat.Nodes[i].Extend), nil)
				changed = true
			}
		}
	}
}

// reachable numbers the nodes reachable from node 0 in their old order.
func reachable(doc *ir.FlatDocument) []int {
	seen := make([]bool, len(doc.Nodes))
	var visit func(i int)
	visit = func(i int) {
		if seen[i] {
			return
		}
		seen[i] = true
		n := doc.Nodes[i]
		for _, ch := range n.Children {
			if ch.Node != nil {
				visit(*ch.Node)
			}
		}
		for _, a := range n.Attributes {
			for _, ch := range a.Children {
				if ch.Node != nil {
					visit(*ch.Node)
				}
			}
		}
	}
	visit(0)

	remap := make([]int, len(doc.Nodes))
	next := 0
	for i := range remap {
		remap[i] = -1
		if seen[i] {
			remap[i] = next
			next++
		}
	}
	return remap
}

func shiftChildren(children []ir.FlatChild, shift func(int) int) []ir.FlatChild {
	out := make([]ir.FlatChild, len(children))
	for k, ch := range children {
		if ch.Node == nil {
			out[k] = ir.TextChild(ch.Text)
			continue
		}
		out[k] = ir.NodeChild(shift(*ch.Node))
	}
	return out
}
