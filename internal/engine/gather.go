package engine

import (
	"fmt"
	"math"

	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/cell"
	"github.com/roach88/doccore/internal/deps"
	"github.com/roach88/doccore/internal/ir"
)

// target is where inversion sends a request for one gathered value:
// either essential data or another prop slot.
type target struct {
	essential *deps.EssentialKey
	slot      *deps.SlotKey
}

// gathered holds the dependency values of one slot, grouped per query,
// plus every cell read to produce them.
type gathered struct {
	data  []catalog.QueryResult
	refs  [][]target
	cells []*cell.Cell
	seen  map[*cell.Cell]bool
}

func (g *gathered) read(c *cell.Cell) {
	if !g.seen[c] {
		g.seen[c] = true
		g.cells = append(g.cells, c)
	}
}

// changed reports whether any cell read is new to s or changed since s
// last looked.
func (g *gathered) changed(s *slot) bool {
	for _, c := range g.cells {
		v, ok := s.views[c]
		if !ok || v.Changed() {
			return true
		}
	}
	return false
}

// single returns the first value of query q.
func (g *gathered) single(q int) (catalog.DataValue, bool) {
	if q >= len(g.data) {
		return catalog.DataValue{}, false
	}
	return g.data[q].First()
}

// gather resolves every dependency of key. Dependencies are resolved in
// instruction order; array sizes resolve before elements because element
// slots resolve their size first.
func (e *Engine) gather(key deps.SlotKey, instrs []deps.Instruction) (*gathered, error) {
	s := e.slots[key]
	g := &gathered{
		data: make([]catalog.QueryResult, len(instrs)),
		refs: make([][]target, len(instrs)),
		seen: make(map[*cell.Cell]bool),
	}
	for qi, in := range instrs {
		for di, d := range in.Deps {
			if err := e.gatherDep(s, g, qi, di, d, 0); err != nil {
				return nil, &ResolveError{Component: key.Component, Prop: key.Prop, Dependency: describe(d), Cause: err}
			}
		}
	}
	return g, nil
}

func (e *Engine) gatherDep(s *slot, g *gathered, qi, di int, d deps.Dependency, depth int) error {
	add := func(v ir.Value, c *cell.Cell, text bool, t target) {
		g.read(c)
		view := s.views[c]
		g.data[qi].Values = append(g.data[qi].Values, catalog.DataValue{
			Value:       v,
			Changed:     view == nil || view.Changed(),
			FromDefault: c.FromDefault(),
			Text:        text,
			Dep:         di,
		})
		g.refs[qi] = append(g.refs[qi], t)
	}

	switch d := d.(type) {
	case deps.Essential:
		c, ok := e.compiler.Store().Get(d.Key)
		if !ok {
			return fmt.Errorf("essential data %s was never allocated", d.Key)
		}
		key := d.Key
		add(c.Get(), c, d.Text, target{essential: &key})

	case deps.Prop:
		v, ok, err := e.Resolve(d.Slot)
		if err != nil {
			return err
		}
		if !ok {
			e.readAbsent(g, d.Slot)
			return nil
		}
		key := d.Slot
		add(v, e.slots[key].cell, false, target{slot: &key})

	case deps.Collection:
		v, ok, err := e.Resolve(d.Members)
		if err != nil || !ok {
			return err
		}
		c := e.slots[d.Members].cell
		g.read(c)
		arr, _ := v.(ir.Array)
		for i, x := range arr {
			key := deps.Element(d.Members.Component, d.Members.Prop, i)
			add(x, c, false, target{slot: &key})
		}

	case deps.MapSource:
		whole := deps.Whole(d.Map, d.Prop)
		v, ok, err := e.Resolve(whole)
		if err != nil || !ok {
			return err
		}
		c := e.slots[whole].cell
		g.read(c)
		if arr, _ := v.(ir.Array); d.Iteration >= 0 && d.Iteration < len(arr) {
			key := deps.Element(d.Map, d.Prop, d.Iteration)
			add(arr[d.Iteration], c, false, target{slot: &key})
		}

	case deps.DynamicIndex:
		iv, ok, err := e.Resolve(d.Index)
		if err != nil || !ok {
			return err
		}
		g.read(e.slots[d.Index].cell)
		av, ok, err := e.Resolve(d.Array)
		if err != nil || !ok {
			return err
		}
		c := e.slots[d.Array].cell
		g.read(c)
		f, isNum := ir.AsFloat(iv)
		arr, _ := av.(ir.Array)
		if !isNum || math.IsNaN(f) {
			return nil
		}
		if idx := int(math.Round(f)); idx >= 1 && idx <= len(arr) {
			key := deps.Element(d.Array.Component, d.Array.Prop, idx-1)
			add(arr[idx-1], c, false, target{slot: &key})
		}

	case deps.UndeterminedChildren:
		if depth > e.compiler.Graph().Len() {
			return fmt.Errorf("composite %d nests too deeply", d.Component)
		}
		for _, inner := range e.compiler.ExpandChildren(d.Component, d.Profiles) {
			if err := e.gatherDep(s, g, qi, di, inner, depth+1); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unknown dependency %T", d)
	}
	return nil
}

// readAbsent records the size cell behind an absent element, so the slot
// goes stale when the array grows to include it.
func (e *Engine) readAbsent(g *gathered, key deps.SlotKey) {
	if key.Part != deps.PartElement {
		return
	}
	if s, ok := e.slots[deps.Size(key.Component, key.Prop)]; ok && s.cell.Freshness() == cell.Fresh {
		g.read(s.cell)
	}
}

func describe(d deps.Dependency) string {
	switch d := d.(type) {
	case deps.Essential:
		return "essential " + d.Key.String()
	case deps.Prop:
		return "prop " + d.Slot.String()
	case deps.Collection:
		return fmt.Sprintf("collection %d", d.Group)
	case deps.MapSource:
		return fmt.Sprintf("map source %d.%s[%d]", d.Map, d.Prop, d.Iteration)
	case deps.DynamicIndex:
		return fmt.Sprintf("index %s[%s]", d.Array, d.Index)
	case deps.UndeterminedChildren:
		return fmt.Sprintf("children of %d", d.Component)
	default:
		return fmt.Sprintf("%T", d)
	}
}
