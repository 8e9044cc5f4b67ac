package document

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/deps"
	"github.com/roach88/doccore/internal/ir"
	"github.com/roach88/doccore/internal/resolver"
	"github.com/roach88/doccore/internal/structure"
)

// maxIterations caps the repetitions of one map.
const maxIterations = 10_000

// expansion records the generated iterations of one map.
type expansion struct {
	itemName   string
	iterations []int
}

func (d *Document) isMap(i int) bool {
	c := d.comps[i]
	return c.def != nil && c.def.SourcesProp != "" && !c.inert && !c.deleted && c.failed == nil
}

// expandAll expands every live map among idxs.
func (d *Document) expandAll(idxs []int) error {
	for _, i := range idxs {
		if !d.isMap(i) {
			continue
		}
		if err := d.expand(i, false); err != nil {
			return err
		}
	}
	return nil
}

// refresh brings every expanded map in line with its current source count.
func (d *Document) refresh() error {
	for m := range d.comps {
		if !d.isMap(m) {
			continue
		}
		if err := d.expand(m, false); err != nil {
			return err
		}
	}
	return nil
}

// expand makes map m hold one iteration per source item. Existing
// iterations are kept when the count changes, so their state survives;
// rebuild discards them first (the template or item name changed).
func (d *Document) expand(m int, rebuild bool) error {
	def := d.comps[m].def
	n := d.iterationCount(m, def)
	name := d.itemName(m)

	exp := d.expansions[m]
	if exp != nil && (rebuild || exp.itemName != name) {
		d.remove(exp.iterations)
		exp = nil
	}
	if exp == nil {
		exp = &expansion{itemName: name}
		d.expansions[m] = exp
	} else if len(exp.iterations) == n {
		return nil
	}
	have := len(exp.iterations)

	if n < have {
		d.remove(exp.iterations[n:])
		exp.iterations = exp.iterations[:n]
		if _, err := d.commit(nil, resolver.IndexPolicy{Kind: resolver.IndexReplaceRange, Owner: m, Start: n + 1, End: have}, false); err != nil {
			return err
		}
		d.graph.SetChildren(m, nodeChildren(exp.iterations))
		d.engine.Flush()
		slog.Debug("map shrunk", "map", m, "iterations", n)
		return nil
	}

	// Iterations and items first, so the template clones can resolve the
	// item name and read its value.
	base := len(d.flat.Nodes)
	var nodes []ir.FlatNode
	var added []int
	for k := have; k < n; k++ {
		it := base + len(nodes)
		nodes = append(nodes,
			ir.FlatNode{Tag: catalog.IterationTag, Parent: m, Children: []ir.FlatChild{ir.NodeChild(it + 1)}},
			ir.FlatNode{Tag: catalog.ItemTag, Name: name, Parent: it},
		)
		added = append(added, it)
		exp.iterations = append(exp.iterations, it)
	}
	policy := resolver.IndexPolicy{Kind: resolver.IndexAppend, Owner: m, Indexed: added}
	if have == 0 {
		policy.Kind = resolver.IndexReplaceAll
	}
	if _, err := d.commit(nodes, policy, false); err != nil {
		return err
	}
	d.graph.SetChildren(m, nodeChildren(exp.iterations))
	d.engine.Flush()

	clones, err := d.fillIterations(m, added)
	if err != nil {
		return err
	}
	d.checkCycles()
	slog.Debug("map expanded", "map", m, "iterations", n, "added", len(added))
	return d.expandAll(clones)
}

// template returns the content map m repeats: its own children, or those
// of the map it copies.
func (d *Document) template(m int) []ir.FlatChild {
	if own := d.flat.Nodes[m].Children; len(own) > 0 {
		return own
	}
	return d.flat.Nodes[d.graph.UltimateSource(m)].Children
}

// fillIterations clones the template of map m into each iteration.
func (d *Document) fillIterations(m int, iterations []int) ([]int, error) {
	template := d.template(m)
	base := len(d.flat.Nodes)
	var out []ir.FlatNode
	contents := make([][]ir.FlatChild, len(iterations))
	for k, it := range iterations {
		content := []ir.FlatChild{ir.NodeChild(it + 1)}
		for _, ch := range template {
			if ch.Node == nil {
				content = append(content, ir.TextChild(ch.Text))
				continue
			}
			if d.comps[*ch.Node].deleted {
				continue
			}
			content = append(content, ir.NodeChild(d.cloneInto(&out, base, *ch.Node, it)))
		}
		contents[k] = content
	}

	clones, err := d.commit(out, resolver.IndexPolicy{}, false)
	if err != nil {
		return nil, err
	}
	for k, it := range iterations {
		d.flat.Nodes[it].Children = contents[k]
		d.graph.SetChildren(it, contents[k])
	}
	d.engine.Flush()
	return clones, nil
}

// cloneInto appends a copy of the subtree at src to out, parented at
// parent, and returns the copy's index. Copies are numbered from base.
func (d *Document) cloneInto(out *[]ir.FlatNode, base, src, parent int) int {
	n := d.flat.Nodes[src]
	idx := base + len(*out)
	*out = append(*out, ir.FlatNode{
		Tag:            n.Tag,
		Name:           n.Name,
		Parent:         parent,
		Extend:         n.Extend,
		SourceDocument: n.SourceDocument,
	})
	children := d.cloneChildren(out, base, n.Children, idx)
	var attrs []ir.FlatAttribute
	for _, a := range n.Attributes {
		attrs = append(attrs, ir.FlatAttribute{Name: a.Name, Children: d.cloneChildren(out, base, a.Children, idx)})
	}
	(*out)[idx-base].Children = children
	(*out)[idx-base].Attributes = attrs
	return idx
}

func (d *Document) cloneChildren(out *[]ir.FlatNode, base int, children []ir.FlatChild, parent int) []ir.FlatChild {
	var cloned []ir.FlatChild
	for _, ch := range children {
		if ch.Node == nil {
			cloned = append(cloned, ir.TextChild(ch.Text))
			continue
		}
		if d.comps[*ch.Node].deleted {
			continue
		}
		cloned = append(cloned, ir.NodeChild(d.cloneInto(out, base, *ch.Node, parent)))
	}
	return cloned
}

func (d *Document) iterationCount(m int, def *catalog.Definition) int {
	f, err := d.engine.ResolveFloat(deps.Size(m, def.SourcesProp))
	if err != nil {
		slog.Warn("map sources did not resolve", "map", m, "error", err)
		return 0
	}
	n := int(f)
	if n > maxIterations {
		slog.Warn("map iterations capped", "map", m, "sources", n, "max", maxIterations)
		n = maxIterations
	}
	return max(n, 0)
}

func (d *Document) itemName(m int) string {
	v, ok, err := d.engine.Resolve(deps.Whole(m, catalog.ItemNameProp))
	if err != nil || !ok {
		return catalog.DefaultItemName
	}
	name := strings.TrimSpace(ir.Text(v))
	if name == "" {
		return catalog.DefaultItemName
	}
	return name
}

// commit appends generated nodes to every table. inert nodes are map
// template content: named and numbered but never built.
func (d *Document) commit(nodes []ir.FlatNode, policy resolver.IndexPolicy, inert bool) ([]int, error) {
	base := len(d.flat.Nodes)
	if d.res.Len() != base || d.graph.Len() != base {
		return nil, fmt.Errorf("tables out of step: flat %d, resolver %d, graph %d", base, d.res.Len(), d.graph.Len())
	}

	idxs := make([]int, len(nodes))
	rnodes := make([]resolver.Node, len(nodes))
	for k, n := range nodes {
		i := base + k
		idxs[k] = i
		d.flat.Nodes = append(d.flat.Nodes, n)
		d.comps = append(d.comps, &component{tag: n.Tag, name: n.Name, parent: n.Parent, inert: inert})
		rnodes[k] = resolver.Node{Index: i, Name: n.Name, Parent: n.Parent, ChildrenInvisible: d.invisible(n.Tag)}
	}
	if err := d.res.AddNodes(rnodes, policy); err != nil {
		return nil, fmt.Errorf("commit generated nodes: %w", err)
	}

	if !inert {
		d.markTemplates(idxs)
		d.bind(idxs)
		d.created = append(d.created, idxs...)
	}
	structs := make([]structure.Component, len(idxs))
	for k, i := range idxs {
		structs[k] = d.structComponent(i)
	}
	_, err := d.graph.AddComponents(structs)
	d.failStuck(err)
	return idxs, nil
}

// remove deletes roots and everything below them.
func (d *Document) remove(roots []int) {
	for _, i := range d.res.DeleteNodes(roots) {
		d.comps[i].deleted = true
		if i < d.graph.Len() {
			d.graph.Remove(i)
		}
		delete(d.expansions, i)
	}
}

func nodeChildren(idxs []int) []ir.FlatChild {
	out := make([]ir.FlatChild, len(idxs))
	for k, i := range idxs {
		out[k] = ir.NodeChild(i)
	}
	return out
}
