package deps

import (
	"fmt"
	"strings"
)

// CycleError reports props that depend on each other. Path starts and ends
// at the same slot.
type CycleError struct {
	Path []SlotKey
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, k := range e.Path {
		parts[i] = k.String()
	}
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(parts, " -> "))
}

// Components returns the distinct components on the cycle, in path order.
func (e *CycleError) Components() []int {
	var out []int
	seen := make(map[int]bool)
	for _, k := range e.Path {
		if !seen[k.Component] {
			seen[k.Component] = true
			out = append(out, k.Component)
		}
	}
	return out
}

// slotGraph maps a whole slot to the whole slots it reads.
type slotGraph struct {
	nodes []SlotKey
	edges map[SlotKey][]SlotKey
}

// CheckCycles compiles every prop of every live component and reports each
// strongly connected group of whole slots as a cycle. Element and size
// slots collapse onto their whole slot. Props that fail to compile are
// skipped here; resolution reports them.
func (c *Compiler) CheckCycles() []*CycleError {
	g := c.buildSlotGraph()
	sccs := tarjanSCC(g)

	var out []*CycleError
	for _, scc := range sccs {
		if len(scc) > 1 || hasSelfLoop(scc[0], g) {
			out = append(out, &CycleError{Path: reconstructCyclePath(scc, g)})
		}
	}
	return out
}

func (c *Compiler) buildSlotGraph() *slotGraph {
	g := &slotGraph{edges: make(map[SlotKey][]SlotKey)}
	for comp := 0; comp < c.graph.Len(); comp++ {
		if !c.graph.Live(comp) {
			continue
		}
		def := c.host.Definition(comp)
		if def == nil {
			continue
		}
		for _, pd := range def.Props {
			key := Whole(comp, pd.Name)
			g.nodes = append(g.nodes, key)
			instrs, err := c.Compile(key)
			if err != nil {
				continue
			}
			for _, in := range instrs {
				for _, d := range in.Deps {
					g.edges[key] = append(g.edges[key], c.staticTargets(d, 0)...)
				}
			}
		}
	}
	return g
}

// staticTargets returns the whole slots a dependency reads in the current
// structure. Undetermined children expand through nested composites.
func (c *Compiler) staticTargets(d Dependency, depth int) []SlotKey {
	switch d := d.(type) {
	case Prop:
		return []SlotKey{d.Slot.WholeKey()}
	case Collection:
		return []SlotKey{d.Members.WholeKey()}
	case MapSource:
		return []SlotKey{Whole(d.Map, d.Prop)}
	case DynamicIndex:
		return []SlotKey{d.Array.WholeKey(), d.Index.WholeKey()}
	case UndeterminedChildren:
		if depth > c.graph.Len() {
			return nil
		}
		var out []SlotKey
		for _, inner := range c.ExpandChildren(d.Component, d.Profiles) {
			out = append(out, c.staticTargets(inner, depth+1)...)
		}
		return out
	default:
		return nil
	}
}

func hasSelfLoop(node SlotKey, g *slotGraph) bool {
	for _, n := range g.edges[node] {
		if n == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components. Nodes are visited in
// declaration order so results are deterministic.
func tarjanSCC(g *slotGraph) [][]SlotKey {
	var (
		index   = 0
		stack   []SlotKey
		indices = make(map[SlotKey]int)
		lowlink = make(map[SlotKey]int)
		onStack = make(map[SlotKey]bool)
		sccs    [][]SlotKey
	)

	var strongConnect func(SlotKey)
	strongConnect = func(v SlotKey) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []SlotKey
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath walks edges inside the SCC from its earliest member
// back to that member.
func reconstructCyclePath(scc []SlotKey, g *slotGraph) []SlotKey {
	inSCC := make(map[SlotKey]bool, len(scc))
	for _, n := range scc {
		inSCC[n] = true
	}
	start := scc[len(scc)-1]
	path := []SlotKey{start}
	visited := map[SlotKey]bool{start: true}
	for cur := start; ; {
		var next *SlotKey
		for _, w := range g.edges[cur] {
			if inSCC[w] && (w == start || !visited[w]) {
				w := w
				next = &w
				break
			}
		}
		if next == nil {
			break
		}
		path = append(path, *next)
		if *next == start {
			break
		}
		visited[*next] = true
		cur = *next
	}
	return path
}
