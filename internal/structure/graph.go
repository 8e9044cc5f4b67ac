// Package structure records how components relate: children, attributes and
// props, with extend links between components.
//
// The graph is an arena. Every component owns a component node and three
// virtual grouping nodes (children, attributes, props); text content becomes
// string leaf nodes. Edges are ordered. A component extending another
// component links its children node to the source's children node as its
// first edge, so inherited children come before locally authored ones.
package structure

import (
	"fmt"
	"log/slog"

	"github.com/roach88/doccore/internal/ir"
)

// NodeKind distinguishes graph nodes.
type NodeKind int

const (
	NodeComponent NodeKind = iota
	NodeChildren
	NodeAttributes
	NodeAttribute
	NodeProps
	NodeString
	NodeProp
)

func (k NodeKind) String() string {
	switch k {
	case NodeComponent:
		return "component"
	case NodeChildren:
		return "children"
	case NodeAttributes:
		return "attributes"
	case NodeAttribute:
		return "attribute"
	case NodeProps:
		return "props"
	case NodeString:
		return "string"
	case NodeProp:
		return "prop"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node is one arena entry. String leaves record the component that
// authored them and their position in its authored content.
type Node struct {
	Kind      NodeKind
	Component int
	Name      string // attribute or prop name
	Text      string // string leaves
	Pos       int    // string leaves
}

// Extend names what a component copies. Prop is empty for a whole-component
// extend. Element is a 1-based array element of Prop, or 0 for the whole prop.
type Extend struct {
	Source  int
	Prop    string
	Element int
}

// Component is the input for one component.
type Component struct {
	Tag        string
	Parent     int
	Children   []ir.FlatChild
	Attributes []ir.FlatAttribute
	Extend     *Extend
	Props      []string

	// Inert components (map templates) are kept out of the graph.
	Inert bool

	// Generated children replace inherited ones on composites.
	Composite bool
}

// Content is one piece of a component's children or attribute content.
// Text pieces carry the authoring component and their position in its
// authored list, which stay stable as siblings come and go.
type Content struct {
	Component int // -1 for text
	Text      string
	Owner     int
	Pos       int
}

// IsText reports whether this piece is literal text.
func (c Content) IsText() bool {
	return c.Component < 0
}

// CycleError reports components whose extend sources never became
// available: they extend each other in a cycle.
type CycleError struct {
	Components []int
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("extend cycle among components %v", e.Components)
}

type componentNodes struct {
	component  int
	children   int
	attributes int
	props      int
	attribute  map[string]int
	prop       map[string]int
}

// Graph is the structure graph of a document.
type Graph struct {
	nodes   []Node
	edges   [][]int
	comps   []Component
	built   []bool
	removed []bool
	index   []componentNodes
}

// Build creates the graph for comps. Component i of the result is comps[i].
func Build(comps []Component) (*Graph, error) {
	g := &Graph{}
	if _, err := g.AddComponents(comps); err != nil {
		return g, err
	}
	return g, nil
}

// Len returns the number of components, including removed ones.
func (g *Graph) Len() int {
	return len(g.comps)
}

// AddComponents appends comps and builds them. Components may extend each
// other in any order; a component whose source is not yet built is requeued.
// More than twice as many requeues as components means a cycle.
func (g *Graph) AddComponents(comps []Component) ([]int, error) {
	start := len(g.comps)
	indices := make([]int, len(comps))
	for i, c := range comps {
		idx := start + i
		indices[i] = idx
		g.comps = append(g.comps, c)
		g.built = append(g.built, false)
		g.removed = append(g.removed, false)
		g.index = append(g.index, componentNodes{component: g.newNode(Node{Kind: NodeComponent, Component: idx})})
	}

	var queue []int
	for _, idx := range indices {
		if !g.comps[idx].Inert {
			queue = append(queue, idx)
		}
	}

	limit := 2 * len(queue)
	requeues := 0
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]

		if ext := g.comps[idx].Extend; ext != nil && ext.Prop == "" && !g.isBuilt(ext.Source) {
			requeues++
			if requeues > limit {
				stuck := append([]int{idx}, queue...)
				slog.Debug("structure graph requeue limit reached", "stuck", stuck)
				return indices, &CycleError{Components: stuck}
			}
			queue = append(queue, idx)
			continue
		}
		g.buildOne(idx)
	}
	return indices, nil
}

func (g *Graph) isBuilt(idx int) bool {
	return idx >= 0 && idx < len(g.built) && g.built[idx]
}

func (g *Graph) newNode(n Node) int {
	g.nodes = append(g.nodes, n)
	g.edges = append(g.edges, nil)
	return len(g.nodes) - 1
}

func (g *Graph) addEdge(from, to int) {
	g.edges[from] = append(g.edges[from], to)
}

func (g *Graph) buildOne(idx int) {
	c := &g.comps[idx]
	cn := &g.index[idx]

	cn.children = g.newNode(Node{Kind: NodeChildren, Component: idx})
	cn.attributes = g.newNode(Node{Kind: NodeAttributes, Component: idx})
	cn.props = g.newNode(Node{Kind: NodeProps, Component: idx})
	g.addEdge(cn.component, cn.children)
	g.addEdge(cn.component, cn.attributes)
	g.addEdge(cn.component, cn.props)

	g.linkChildren(idx)

	cn.attribute = make(map[string]int, len(c.Attributes))
	for _, a := range c.Attributes {
		an := g.newNode(Node{Kind: NodeAttribute, Component: idx, Name: a.Name})
		cn.attribute[a.Name] = an
		g.addEdge(cn.attributes, an)
		g.linkContent(an, idx, a.Children)
	}

	cn.prop = make(map[string]int, len(c.Props))
	for _, p := range c.Props {
		pn := g.newNode(Node{Kind: NodeProp, Component: idx, Name: p})
		cn.prop[p] = pn
		g.addEdge(cn.props, pn)
	}

	g.built[idx] = true
}

func (g *Graph) linkChildren(idx int) {
	cn := g.index[idx]
	g.edges[cn.children] = nil
	if ext := g.comps[idx].Extend; ext != nil && ext.Prop == "" && !g.comps[idx].Composite {
		g.addEdge(cn.children, g.index[ext.Source].children)
	}
	g.linkContent(cn.children, idx, g.comps[idx].Children)
}

func (g *Graph) linkContent(from, owner int, content []ir.FlatChild) {
	for pos, ch := range content {
		if ch.Node == nil {
			g.addEdge(from, g.newNode(Node{Kind: NodeString, Component: owner, Text: ch.Text, Pos: pos}))
			continue
		}
		if *ch.Node < 0 || *ch.Node >= len(g.index) {
			continue
		}
		g.addEdge(from, g.index[*ch.Node].component)
	}
}

// SetChildren replaces a component's authored children and relinks its
// children node. The inherited link, if any, stays first.
func (g *Graph) SetChildren(idx int, children []ir.FlatChild) {
	g.comps[idx].Children = children
	if g.built[idx] {
		g.linkChildren(idx)
	}
}

// Replace swaps the input record of a built component and rebuilds its
// virtual nodes. Edges pointing at its component node are kept, so the
// replacement takes its place in its parent's content.
func (g *Graph) Replace(idx int, c Component) {
	g.comps[idx] = c
	g.edges[g.index[idx].component] = nil
	g.built[idx] = false
	if !c.Inert {
		g.buildOne(idx)
	}
}

// Remove detaches a component. Its index stays allocated.
func (g *Graph) Remove(idx int) {
	g.removed[idx] = true
}

// Live reports whether idx is a built component that was not removed.
func (g *Graph) Live(idx int) bool {
	return idx >= 0 && idx < len(g.comps) && g.built[idx] && !g.removed[idx]
}

// Component returns the input record of component idx.
func (g *Graph) Component(idx int) Component {
	return g.comps[idx]
}

// Parent returns the parent component, or ir.RootParent.
func (g *Graph) Parent(idx int) int {
	return g.comps[idx].Parent
}

// Extend returns what component idx extends, or nil.
func (g *Graph) Extend(idx int) *Extend {
	return g.comps[idx].Extend
}

// Node returns arena node id.
func (g *Graph) Node(id int) Node {
	return g.nodes[id]
}

// Edges returns the ordered outgoing edges of node id.
func (g *Graph) Edges(id int) []int {
	return g.edges[id]
}

// ComponentNode returns the component node of idx.
func (g *Graph) ComponentNode(idx int) int {
	return g.index[idx].component
}

// ChildrenNode returns the virtual children node of idx.
func (g *Graph) ChildrenNode(idx int) int {
	return g.index[idx].children
}

// AttributesNode returns the virtual attributes node of idx.
func (g *Graph) AttributesNode(idx int) int {
	return g.index[idx].attributes
}

// AttributeNode returns the node for an authored attribute of idx.
func (g *Graph) AttributeNode(idx int, name string) (int, bool) {
	n, ok := g.index[idx].attribute[name]
	return n, ok
}

// PropsNode returns the virtual props node of idx.
func (g *Graph) PropsNode(idx int) int {
	return g.index[idx].props
}

// PropNode returns the node of prop name on idx.
func (g *Graph) PropNode(idx int, name string) (int, bool) {
	n, ok := g.index[idx].prop[name]
	return n, ok
}

// ContentChildren returns idx's children in order: inherited children
// first, then local ones. Removed components are skipped.
func (g *Graph) ContentChildren(idx int) []Content {
	if !g.isBuilt(idx) {
		return nil
	}
	var out []Content
	g.collect(g.index[idx].children, &out)
	return out
}

// AttributeContent returns the content of attribute name on idx, following
// extend sources when idx does not author it. owner is the component that
// authored the content.
func (g *Graph) AttributeContent(idx int, name string) (content []Content, owner int, ok bool) {
	for cur := idx; g.isBuilt(cur); {
		if an, found := g.index[cur].attribute[name]; found {
			var out []Content
			g.collect(an, &out)
			return out, cur, true
		}
		ext := g.comps[cur].Extend
		if ext == nil || ext.Prop != "" {
			break
		}
		cur = ext.Source
	}
	return nil, -1, false
}

func (g *Graph) collect(from int, out *[]Content) {
	for _, to := range g.edges[from] {
		n := g.nodes[to]
		switch n.Kind {
		case NodeChildren:
			g.collect(to, out)
		case NodeString:
			*out = append(*out, Content{Component: -1, Text: n.Text, Owner: n.Component, Pos: n.Pos})
		case NodeComponent:
			if !g.removed[n.Component] {
				*out = append(*out, Content{Component: n.Component})
			}
		}
	}
}

// Ancestors returns the parents of idx from nearest to the root.
func (g *Graph) Ancestors(idx int) []int {
	var out []int
	for p := g.comps[idx].Parent; p != ir.RootParent && p >= 0; p = g.comps[p].Parent {
		out = append(out, p)
	}
	return out
}

// UltimateSource follows whole-component extends to the component that
// authored the content idx shares.
func (g *Graph) UltimateSource(idx int) int {
	seen := 0
	for {
		ext := g.comps[idx].Extend
		if ext == nil || ext.Prop != "" || seen > len(g.comps) {
			return idx
		}
		idx = ext.Source
		seen++
	}
}
