package deps

import (
	"fmt"
	"strings"

	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/ir"
	"github.com/roach88/doccore/internal/structure"
)

// Host answers which definition a component has. Dead components and
// inert template content return nil.
type Host interface {
	Definition(component int) *catalog.Definition
}

// Compiler binds data queries to dependencies against a structure graph.
// Compiled instructions are cached per slot until Flush.
type Compiler struct {
	graph *structure.Graph
	host  Host
	store *EssentialStore
	cache map[SlotKey][]Instruction
}

// NewCompiler creates a compiler.
func NewCompiler(graph *structure.Graph, host Host, store *EssentialStore) *Compiler {
	return &Compiler{
		graph: graph,
		host:  host,
		store: store,
		cache: make(map[SlotKey][]Instruction),
	}
}

// Store returns the essential store.
func (c *Compiler) Store() *EssentialStore {
	return c.store
}

// Graph returns the structure graph.
func (c *Compiler) Graph() *structure.Graph {
	return c.graph
}

// Flush drops every cached instruction list. Call after structural edits.
func (c *Compiler) Flush() {
	c.cache = make(map[SlotKey][]Instruction)
}

// Compile returns the instructions for a slot: one per data query for a
// whole slot, [whole] for a size slot and [size, whole] for an element slot.
func (c *Compiler) Compile(key SlotKey) ([]Instruction, error) {
	if instrs, ok := c.cache[key]; ok {
		return instrs, nil
	}
	instrs, err := c.compile(key)
	if err != nil {
		return nil, err
	}
	c.cache[key] = instrs
	return instrs, nil
}

func (c *Compiler) compile(key SlotKey) ([]Instruction, error) {
	def := c.host.Definition(key.Component)
	if def == nil {
		return nil, &CompileError{Component: key.Component, Prop: key.Prop, Message: "component does not exist"}
	}
	pd, ok := def.Prop(key.Prop)
	if !ok {
		return nil, &CompileError{Component: key.Component, Prop: key.Prop, Message: fmt.Sprintf("%s has no prop %q", def.Tag, key.Prop)}
	}

	switch key.Part {
	case PartSize:
		if !pd.IsArray {
			return nil, &CompileError{Component: key.Component, Prop: key.Prop, Message: "size of a non-array prop"}
		}
		return []Instruction{{Deps: []Dependency{Prop{Slot: key.WholeKey()}}}}, nil
	case PartElement:
		if !pd.IsArray {
			return nil, &CompileError{Component: key.Component, Prop: key.Prop, Message: "element of a non-array prop"}
		}
		return []Instruction{
			{Deps: []Dependency{Prop{Slot: Size(key.Component, key.Prop)}}},
			{Deps: []Dependency{Prop{Slot: key.WholeKey()}}},
		}, nil
	}

	if ext := c.graph.Extend(key.Component); ext != nil && ext.Prop != "" && def.ExtendProp == key.Prop {
		src := Whole(ext.Source, ext.Prop)
		if ext.Element > 0 {
			src = Element(ext.Source, ext.Prop, ext.Element-1)
		}
		return []Instruction{{Deps: []Dependency{Prop{Slot: src, Shadow: true}}}}, nil
	}

	instrs := make([]Instruction, len(pd.Queries))
	for i, q := range pd.Queries {
		deps, err := c.compileQuery(key.Component, def, pd, q)
		if err != nil {
			return nil, err
		}
		instrs[i] = Instruction{Deps: deps}
	}
	return instrs, nil
}

// IsShadow reports whether a compiled whole slot only copies another prop.
func IsShadow(instrs []Instruction) (Prop, bool) {
	if len(instrs) != 1 || len(instrs[0].Deps) != 1 {
		return Prop{}, false
	}
	p, ok := instrs[0].Deps[0].(Prop)
	return p, ok && p.Shadow
}

func (c *Compiler) compileQuery(comp int, def *catalog.Definition, pd *catalog.PropDef, q catalog.DataQuery) ([]Dependency, error) {
	switch q := q.(type) {
	case catalog.State:
		return c.state(comp, pd, q), nil

	case catalog.Attribute:
		return c.attribute(comp, def, pd, q)

	case catalog.Children:
		if q.ParseExpression {
			return c.expression(comp, q.Profiles), nil
		}
		return c.children(comp, q.Profiles), nil

	case catalog.Self:
		if _, ok := def.Prop(q.Prop); !ok {
			return nil, &CompileError{Component: comp, Prop: pd.Name, Message: fmt.Sprintf("self query names unknown prop %q", q.Prop)}
		}
		if q.Size {
			return []Dependency{Prop{Slot: Size(comp, q.Prop)}}, nil
		}
		return []Dependency{Prop{Slot: Whole(comp, q.Prop)}}, nil

	case catalog.Ancestor:
		for _, anc := range c.graph.Ancestors(comp) {
			adef := c.host.Definition(anc)
			if adef == nil {
				continue
			}
			if apd, ok := adef.Prop(q.Prop); ok && apd.Public {
				return []Dependency{Prop{Slot: Whole(anc, q.Prop)}}, nil
			}
		}
		return nil, nil

	case catalog.Indexed:
		for _, piece := range c.graph.ContentChildren(comp) {
			if piece.IsText() {
				continue
			}
			cdef := c.host.Definition(piece.Component)
			if cdef != nil && cdef.GroupMatches([]string{q.Profile}) {
				return []Dependency{DynamicIndex{
					Array: Whole(piece.Component, cdef.Group.MembersProp),
					Index: Whole(comp, q.IndexProp),
				}}, nil
			}
		}
		return nil, nil

	case catalog.MapItem:
		iteration := c.graph.Parent(comp)
		if iteration < 0 {
			return nil, nil
		}
		owner := c.graph.Parent(iteration)
		if owner < 0 {
			return nil, nil
		}
		odef := c.host.Definition(owner)
		if odef == nil || odef.SourcesProp == "" {
			return nil, &CompileError{Component: comp, Prop: pd.Name, Message: "map item outside a composite with sources"}
		}
		for pos, piece := range c.graph.ContentChildren(owner) {
			if piece.Component == iteration {
				return []Dependency{MapSource{Map: owner, Prop: odef.SourcesProp, Iteration: pos}}, nil
			}
		}
		return nil, nil

	default:
		return nil, &CompileError{Component: comp, Prop: pd.Name, Message: fmt.Sprintf("unknown query %T", q)}
	}
}

// state binds independent storage, shared by every component extending the
// same ultimate source.
func (c *Compiler) state(comp int, pd *catalog.PropDef, q catalog.State) []Dependency {
	owner := c.graph.UltimateSource(comp)
	key := EssentialKey{Component: owner, Origin: "prop:" + pd.Name}
	c.store.GetOrCreate(key, func() (ir.Value, bool) {
		if q.Prefill != "" {
			if content, _, ok := c.graph.AttributeContent(owner, q.Prefill); ok {
				if text, allText := joinText(content); allText {
					return catalog.Parse(pd.Type, text), false
				}
			}
		}
		return pd.Default, true
	})
	return []Dependency{Essential{Key: key}}
}

// attribute binds explicit content, then inherited content, then a default.
func (c *Compiler) attribute(comp int, def *catalog.Definition, pd *catalog.PropDef, q catalog.Attribute) ([]Dependency, error) {
	adef, declared := def.Attribute(q.Name)
	if !declared {
		return nil, &CompileError{Component: comp, Prop: pd.Name, Message: fmt.Sprintf("%s has no attribute %q", def.Tag, q.Name)}
	}

	content, owner, ok := c.graph.AttributeContent(comp, q.Name)
	if !ok {
		key := EssentialKey{Component: c.graph.UltimateSource(comp), Origin: "attr:" + q.Name}
		c.store.GetOrCreate(key, func() (ir.Value, bool) { return adef.Default, true })
		return []Dependency{Essential{Key: key}}, nil
	}

	var out []Dependency
	for _, piece := range content {
		if piece.IsText() {
			key := EssentialKey{Component: owner, Origin: fmt.Sprintf("attr:%s:%d", q.Name, piece.Pos)}
			text := piece.Text
			c.store.GetOrCreate(key, func() (ir.Value, bool) { return ir.String(text), false })
			out = append(out, Essential{Key: key, Text: true})
			continue
		}
		out = append(out, c.componentDeps(piece.Component, q.Profiles)...)
	}
	return out, nil
}

// children binds each matching child in document order. Text children get
// their own essential data, owned by the component that authored them.
func (c *Compiler) children(comp int, profiles []string) []Dependency {
	var out []Dependency
	for _, piece := range c.graph.ContentChildren(comp) {
		if piece.IsText() {
			key := EssentialKey{Component: piece.Owner, Origin: fmt.Sprintf("child:%d", piece.Pos)}
			text := piece.Text
			c.store.GetOrCreate(key, func() (ir.Value, bool) { return ir.String(text), false })
			out = append(out, Essential{Key: key, Text: true})
			continue
		}
		out = append(out, c.componentDeps(piece.Component, profiles)...)
	}
	return out
}

// expression folds text children into one expression with a placeholder
// _sK for the K-th matched element child. The expression comes first.
func (c *Compiler) expression(comp int, profiles []string) []Dependency {
	var (
		expr strings.Builder
		rest []Dependency
	)
	for _, piece := range c.graph.ContentChildren(comp) {
		if piece.IsText() {
			expr.WriteString(piece.Text)
			continue
		}
		for _, d := range c.componentDeps(piece.Component, profiles) {
			fmt.Fprintf(&expr, " %s ", Placeholder(len(rest)))
			rest = append(rest, d)
		}
	}

	key := EssentialKey{Component: c.graph.UltimateSource(comp), Origin: "expr"}
	text := strings.TrimSpace(expr.String())
	c.store.GetOrCreate(key, func() (ir.Value, bool) { return ir.String(text), false })
	return append([]Dependency{Essential{Key: key, Text: true}}, rest...)
}

// Placeholder names the k-th element child inside a folded expression.
func Placeholder(k int) string {
	return fmt.Sprintf("_s%d", k)
}

// componentDeps binds one element child against profiles.
func (c *Compiler) componentDeps(child int, profiles []string) []Dependency {
	cdef := c.host.Definition(child)
	if cdef == nil {
		return nil
	}
	switch {
	case cdef.Composite:
		return []Dependency{UndeterminedChildren{Component: child, Profiles: profiles}}
	case cdef.GroupMatches(profiles):
		return []Dependency{Collection{Group: child, Members: Whole(child, cdef.Group.MembersProp)}}
	}
	if prop, ok := cdef.Matches(profiles); ok {
		return []Dependency{Prop{Slot: Whole(child, prop)}}
	}
	return nil
}

// ExpandChildren binds the current children of a composite. The result may
// contain further UndeterminedChildren for nested composites.
func (c *Compiler) ExpandChildren(composite int, profiles []string) []Dependency {
	var out []Dependency
	for _, piece := range c.graph.ContentChildren(composite) {
		if piece.IsText() {
			continue
		}
		out = append(out, c.componentDeps(piece.Component, profiles)...)
	}
	return out
}

func joinText(content []structure.Content) (string, bool) {
	var b strings.Builder
	for _, piece := range content {
		if !piece.IsText() {
			return "", false
		}
		b.WriteString(piece.Text)
	}
	return b.String(), true
}
