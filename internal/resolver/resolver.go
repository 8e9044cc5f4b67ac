// Package resolver maps reference paths ($x.y[2].z) to node indices.
//
// Every node records the names of the descendants visible from it. A path is
// resolved by searching upward from the origin for the nearest node whose
// name map holds the first segment, then matching the remaining segments
// downward. Numeric indices consult per-node index lists that are patched as
// generated content (map iterations) is added or removed.
package resolver

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/doccore/internal/ir"
)

// Sentinel errors. Resolution errors wrap one of these.
var (
	ErrNoReferent        = errors.New("no referent")
	ErrNonUniqueReferent = errors.New("non-unique referent")
)

// ResolutionError describes a failed resolution.
type ResolutionError struct {
	Path    ir.Path
	Origin  int
	Segment string
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q from node %d: %v at %q", e.Path.String(), e.Origin, e.Err, e.Segment)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// IsNoReferent reports whether err means nothing matched.
func IsNoReferent(err error) bool {
	return errors.Is(err, ErrNoReferent)
}

// IsNonUnique reports whether err means several nodes matched equally near.
func IsNonUnique(err error) bool {
	return errors.Is(err, ErrNonUniqueReferent)
}

// ParentKind describes a node's place in the tree.
type ParentKind int

const (
	// ParentNone marks a node no reachable parent lists.
	ParentNone ParentKind = iota
	// ParentRoot marks the document root.
	ParentRoot
	// ParentNode marks an ordinary node; Index is its parent.
	ParentNode
)

// ParentInfo is a node's parent record.
type ParentInfo struct {
	Kind  ParentKind
	Index int
}

// ReferentKind distinguishes unique from ambiguous name entries.
type ReferentKind int

const (
	Unique ReferentKind = iota
	Ambiguous
)

// Referent is a name map entry.
type Referent struct {
	Kind  ReferentKind
	Node  int   // Unique
	Nodes []int // Ambiguous
}

// Result is a successful resolution. Remainder holds the segments left
// unconsumed: an index-only part when resolution stopped at an index, or
// trailing names treated as a prop access.
type Result struct {
	Node      int
	Remainder ir.Path
}

type record struct {
	name              string
	parent            ParentInfo
	names             map[string]Referent
	indexed           []int
	sourceChain       []int
	childrenInvisible bool
	boundary          bool
	deleted           bool
}

// Resolver holds one record per node.
type Resolver struct {
	nodes []record
}

// Node describes a node added after the initial build.
type Node struct {
	Index             int
	Name              string
	Parent            int
	ChildrenInvisible bool
}

// Build creates a resolver for doc. invisible reports whether a tag hides
// its descendants' names from its ancestors.
func Build(doc *ir.FlatDocument, invisible func(tag string) bool) *Resolver {
	r := &Resolver{nodes: make([]record, len(doc.Nodes))}

	for i, n := range doc.Nodes {
		rec := &r.nodes[i]
		rec.name = n.Name
		rec.names = make(map[string]Referent)
		rec.boundary = n.SourceDocument != ""
		if invisible != nil {
			rec.childrenInvisible = invisible(n.Tag)
		}
	}

	if len(doc.Nodes) > 0 {
		r.nodes[0].parent = ParentInfo{Kind: ParentRoot, Index: ir.RootParent}
	}
	for i, n := range doc.Nodes {
		for _, c := range allChildren(n) {
			if c < 0 || c >= len(doc.Nodes) || c == 0 || doc.Nodes[c].Parent != i {
				continue
			}
			r.nodes[c].parent = ParentInfo{Kind: ParentNode, Index: i}
		}
	}

	for i := range r.nodes {
		r.register(i)
	}
	return r
}

func allChildren(n ir.FlatNode) []int {
	var out []int
	for _, c := range n.Children {
		if c.Node != nil {
			out = append(out, *c.Node)
		}
	}
	for _, a := range n.Attributes {
		for _, c := range a.Children {
			if c.Node != nil {
				out = append(out, *c.Node)
			}
		}
	}
	return out
}

// Len returns the number of node records, including deleted ones.
func (r *Resolver) Len() int {
	return len(r.nodes)
}

// Parent returns the parent record of node.
func (r *Resolver) Parent(node int) ParentInfo {
	return r.nodes[node].parent
}

// Name returns the authored name of node.
func (r *Resolver) Name(node int) string {
	return r.nodes[node].name
}

// Deleted reports whether node was deleted.
func (r *Resolver) Deleted(node int) bool {
	return r.nodes[node].deleted
}

// Names returns a copy of the name map of node.
func (r *Resolver) Names(node int) map[string]Referent {
	out := make(map[string]Referent, len(r.nodes[node].names))
	for k, v := range r.nodes[node].names {
		out[k] = v
	}
	return out
}

// IndexResolutions returns a copy of node's index list. Entry i-1 is the
// node that index i resolves to, or -1 if it was deleted.
func (r *Resolver) IndexResolutions(node int) []int {
	return slices.Clone(r.nodes[node].indexed)
}

// SetSourceChain sets the nodes a failed name lookup at node falls through
// to, in order.
func (r *Resolver) SetSourceChain(node int, chain []int) {
	r.nodes[node].sourceChain = slices.Clone(chain)
}

func (r *Resolver) parentOf(node int) int {
	p := r.nodes[node].parent
	if p.Kind != ParentNode {
		return -1
	}
	return p.Index
}

// visibleAncestors returns the ancestors whose name maps hold node's name:
// every ancestor up to and including the first that hides its descendants.
func (r *Resolver) visibleAncestors(node int) []int {
	var out []int
	for cur := r.parentOf(node); cur >= 0; cur = r.parentOf(cur) {
		out = append(out, cur)
		if r.nodes[cur].childrenInvisible || r.nodes[cur].boundary {
			return out
		}
	}
	return out
}

func (r *Resolver) register(node int) {
	rec := r.nodes[node]
	if rec.name == "" || rec.deleted {
		return
	}
	for _, anc := range r.visibleAncestors(node) {
		names := r.nodes[anc].names
		ref, ok := names[rec.name]
		switch {
		case !ok:
			names[rec.name] = Referent{Kind: Unique, Node: node}
		case ref.Kind == Unique && ref.Node != node:
			names[rec.name] = Referent{Kind: Ambiguous, Nodes: []int{ref.Node, node}}
		case ref.Kind == Ambiguous && !slices.Contains(ref.Nodes, node):
			ref.Nodes = append(ref.Nodes, node)
			names[rec.name] = ref
		}
	}
}

func (r *Resolver) unregister(node int) {
	rec := r.nodes[node]
	if rec.name == "" {
		return
	}
	for _, anc := range r.visibleAncestors(node) {
		names := r.nodes[anc].names
		ref, ok := names[rec.name]
		if !ok {
			continue
		}
		if ref.Kind == Unique {
			if ref.Node == node {
				delete(names, rec.name)
			}
			continue
		}
		remaining := slices.DeleteFunc(slices.Clone(ref.Nodes), func(n int) bool { return n == node })
		switch len(remaining) {
		case 0:
			delete(names, rec.name)
		case 1:
			names[rec.name] = Referent{Kind: Unique, Node: remaining[0]}
		default:
			names[rec.name] = Referent{Kind: Ambiguous, Nodes: remaining}
		}
	}
}

// lookup finds name in node's map, falling through its source chain.
func (r *Resolver) lookup(node int, name string) (Referent, bool) {
	if ref, ok := r.nodes[node].names[name]; ok {
		return ref, true
	}
	for _, src := range r.nodes[node].sourceChain {
		if src < 0 || src >= len(r.nodes) || r.nodes[src].deleted {
			continue
		}
		if ref, ok := r.nodes[src].names[name]; ok {
			return ref, true
		}
	}
	return Referent{}, false
}

// Resolve resolves path starting at origin. Unless skipParentSearch is set,
// the first segment is searched upward from origin; otherwise only origin's
// own name map is consulted. Remaining segments match downward.
func (r *Resolver) Resolve(path ir.Path, origin int, skipParentSearch bool) (Result, error) {
	if len(path) == 0 {
		return Result{Node: origin}, nil
	}
	fail := func(seg string, err error) (Result, error) {
		return Result{}, &ResolutionError{Path: path, Origin: origin, Segment: seg, Err: err}
	}

	first := path[0]
	var (
		ref   Referent
		found bool
	)
	if skipParentSearch {
		ref, found = r.lookup(origin, first.Name)
	} else {
		for cur := origin; cur >= 0; cur = r.parentOf(cur) {
			if ref, found = r.lookup(cur, first.Name); found {
				break
			}
		}
	}
	if !found {
		return fail(first.Name, ErrNoReferent)
	}
	if ref.Kind == Ambiguous {
		return fail(first.Name, ErrNonUniqueReferent)
	}

	node := ref.Node
	rest := path[1:]
	part := first
	for {
		if len(part.Index) > 0 {
			remainder := append(ir.Path{{Index: part.Index}}, rest...)
			return Result{Node: node, Remainder: remainder}, nil
		}
		if r.nodes[node].childrenInvisible || len(rest) == 0 {
			return Result{Node: node, Remainder: rest}, nil
		}
		next, ok := r.lookup(node, rest[0].Name)
		if !ok {
			// Not a descendant: the rest is a prop access on node.
			return Result{Node: node, Remainder: rest}, nil
		}
		if next.Kind == Ambiguous {
			return fail(rest[0].Name, ErrNonUniqueReferent)
		}
		node = next.Node
		part = rest[0]
		rest = rest[1:]
	}
}

// ResolveIndexed is Resolve continued through index lists: x[2].y resolves
// x, takes its second index resolution and resolves y below it. An index on
// a node with no index list is left in the remainder for the caller.
func (r *Resolver) ResolveIndexed(path ir.Path, origin int, skipParentSearch bool) (Result, error) {
	res, err := r.Resolve(path, origin, skipParentSearch)
	if err != nil {
		return res, err
	}
	for len(res.Remainder) > 0 && res.Remainder[0].Name == "" {
		part := res.Remainder[0]
		rest := res.Remainder[1:]
		node := res.Node
		for k, idx := range part.Index {
			list := r.nodes[node].indexed
			if list == nil {
				remainder := append(ir.Path{{Index: part.Index[k:]}}, rest...)
				return Result{Node: node, Remainder: remainder}, nil
			}
			if idx < 1 || idx > len(list) || list[idx-1] < 0 {
				return Result{}, &ResolutionError{
					Path: path, Origin: origin,
					Segment: fmt.Sprintf("[%d]", idx), Err: ErrNoReferent,
				}
			}
			node = list[idx-1]
		}
		if len(rest) == 0 {
			return Result{Node: node}, nil
		}
		res, err = r.Resolve(rest, node, true)
		if IsNoReferent(err) {
			// The rest is a prop access on the indexed node.
			return Result{Node: node, Remainder: rest}, nil
		}
		if err != nil {
			return res, err
		}
	}
	return res, nil
}
