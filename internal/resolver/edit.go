package resolver

import (
	"fmt"
	"slices"
)

// IndexKind says how added nodes change an owner's index list.
type IndexKind int

const (
	// IndexNone leaves index lists alone.
	IndexNone IndexKind = iota
	// IndexReplaceAll replaces the owner's whole list.
	IndexReplaceAll
	// IndexReplaceRange replaces entries Start..End (1-based, inclusive).
	IndexReplaceRange
	// IndexAppend appends to the owner's list.
	IndexAppend
)

// IndexPolicy describes the index-list patch applied by AddNodes.
type IndexPolicy struct {
	Kind    IndexKind
	Owner   int
	Start   int
	End     int
	Indexed []int
}

// AddNodes appends nodes and patches the owner's index list per policy.
// Each node's Index must equal its position in the resolver.
func (r *Resolver) AddNodes(nodes []Node, policy IndexPolicy) error {
	start := len(r.nodes)
	for i, n := range nodes {
		if n.Index != start+i {
			return fmt.Errorf("add nodes: node %d has index %d, expected %d", i, n.Index, start+i)
		}
		parent := ParentInfo{Kind: ParentNone, Index: n.Parent}
		if n.Parent >= 0 && n.Parent < start+len(nodes) {
			parent = ParentInfo{Kind: ParentNode, Index: n.Parent}
		}
		r.nodes = append(r.nodes, record{
			name:              n.Name,
			parent:            parent,
			names:             make(map[string]Referent),
			childrenInvisible: n.ChildrenInvisible,
		})
	}
	for i := range nodes {
		r.register(start + i)
	}

	if policy.Kind == IndexNone {
		return nil
	}
	if policy.Owner < 0 || policy.Owner >= len(r.nodes) {
		return fmt.Errorf("add nodes: index owner %d out of range", policy.Owner)
	}
	owner := &r.nodes[policy.Owner]
	switch policy.Kind {
	case IndexReplaceAll:
		owner.indexed = slices.Clone(policy.Indexed)
	case IndexAppend:
		owner.indexed = append(owner.indexed, policy.Indexed...)
	case IndexReplaceRange:
		if policy.Start < 1 || policy.End < policy.Start-1 || policy.End > len(owner.indexed) {
			return fmt.Errorf("add nodes: replace range [%d,%d] outside index list of length %d",
				policy.Start, policy.End, len(owner.indexed))
		}
		owner.indexed = slices.Replace(owner.indexed, policy.Start-1, policy.End, policy.Indexed...)
	default:
		return fmt.Errorf("add nodes: unknown index policy %d", policy.Kind)
	}
	return nil
}

// DeleteNodes deletes nodes and their descendants: their names leave every
// ancestor's map (ambiguous entries are demoted where one referent remains)
// and index lists pointing at them now yield no referent.
func (r *Resolver) DeleteNodes(nodes []int) []int {
	doomed := make(map[int]bool, len(nodes))
	for _, n := range nodes {
		doomed[n] = true
	}
	// Descendants follow their parents.
	for changed := true; changed; {
		changed = false
		for i := range r.nodes {
			if doomed[i] || r.nodes[i].deleted {
				continue
			}
			if p := r.parentOf(i); p >= 0 && doomed[p] {
				doomed[i] = true
				changed = true
			}
		}
	}

	deleted := make([]int, 0, len(doomed))
	for n := range doomed {
		if !r.nodes[n].deleted {
			deleted = append(deleted, n)
		}
	}
	slices.Sort(deleted)

	for _, n := range deleted {
		r.unregister(n)
	}
	for _, n := range deleted {
		r.nodes[n].deleted = true
		r.nodes[n].names = make(map[string]Referent)
	}
	for i := range r.nodes {
		for j, target := range r.nodes[i].indexed {
			if target >= 0 && doomed[target] {
				r.nodes[i].indexed[j] = -1
			}
		}
	}
	return deleted
}

// Compact prunes deleted nodes and nodes unreachable from the root, then
// renumbers the survivors in their old order. It returns remap, where
// remap[old] is the new index or -1.
func (r *Resolver) Compact() []int {
	reachable := make([]int8, len(r.nodes)) // 0 unknown, 1 yes, -1 no
	var visit func(i int, depth int) bool
	visit = func(i int, depth int) bool {
		if reachable[i] != 0 {
			return reachable[i] > 0
		}
		ok := false
		switch rec := r.nodes[i]; {
		case rec.deleted:
		case rec.parent.Kind == ParentRoot:
			ok = true
		case rec.parent.Kind == ParentNode && depth <= len(r.nodes):
			ok = visit(rec.parent.Index, depth+1)
		}
		if ok {
			reachable[i] = 1
		} else {
			reachable[i] = -1
		}
		return ok
	}

	remap := make([]int, len(r.nodes))
	next := 0
	for i := range r.nodes {
		if visit(i, 0) {
			remap[i] = next
			next++
		} else {
			remap[i] = -1
		}
	}

	mapList := func(list []int, keepHoles bool) []int {
		if list == nil {
			return nil
		}
		out := make([]int, 0, len(list))
		for _, n := range list {
			switch {
			case n >= 0 && remap[n] >= 0:
				out = append(out, remap[n])
			case keepHoles:
				out = append(out, -1)
			}
		}
		return out
	}

	compacted := make([]record, next)
	for old, nw := range remap {
		if nw < 0 {
			continue
		}
		rec := r.nodes[old]
		if rec.parent.Kind == ParentNode {
			rec.parent.Index = remap[rec.parent.Index]
		}
		names := make(map[string]Referent, len(rec.names))
		for name, ref := range rec.names {
			if ref.Kind == Unique {
				if remap[ref.Node] >= 0 {
					names[name] = Referent{Kind: Unique, Node: remap[ref.Node]}
				}
				continue
			}
			survivors := mapList(ref.Nodes, false)
			switch len(survivors) {
			case 0:
			case 1:
				names[name] = Referent{Kind: Unique, Node: survivors[0]}
			default:
				names[name] = Referent{Kind: Ambiguous, Nodes: survivors}
			}
		}
		rec.names = names
		rec.indexed = mapList(rec.indexed, true)
		rec.sourceChain = mapList(rec.sourceChain, false)
		compacted[nw] = rec
	}
	r.nodes = compacted
	return remap
}
