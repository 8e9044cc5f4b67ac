package document

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/deps"
	"github.com/roach88/doccore/internal/ir"
)

// Render returns the renderer tree of the document. Each node carries the
// component's alias, its renderer type, its renderer props and, unless a
// prop consumes them, its children (text children as strings).
//
// A prop that fails to resolve renders as null; the failures are joined
// into the returned error alongside the full tree.
func (d *Document) Render() (ir.Object, error) {
	var errs []error
	d.created = nil
	tree := d.renderComponent(0, &errs)
	d.projected = d.engine.Generation()
	err := errors.Join(errs...)
	if err != nil {
		slog.Warn("render incomplete", "error", err)
	}
	return tree, err
}

func (d *Document) renderComponent(i int, errs *[]error) ir.Object {
	def := d.comps[i].def
	alias := d.Alias(i)
	out := ir.Object{
		"alias": ir.String(alias),
		"type":  ir.String(def.Renderer()),
		"props": d.renderProps(i, alias, def, errs),
	}
	if consumesChildren(def) {
		return out
	}
	children := ir.Array{}
	for _, piece := range d.graph.ContentChildren(i) {
		if piece.IsText() {
			children = append(children, ir.String(piece.Text))
			continue
		}
		cdef := d.Definition(piece.Component)
		if cdef == nil || cdef.Hidden {
			continue
		}
		children = append(children, d.renderComponent(piece.Component, errs))
	}
	out["children"] = children
	return out
}

func (d *Document) renderProps(i int, alias string, def *catalog.Definition, errs *[]error) ir.Object {
	props := ir.Object{}
	for _, pd := range def.Props {
		if !pd.ForRenderer {
			continue
		}
		key := deps.Whole(i, pd.Name)
		v, ok, err := d.engine.Resolve(key)
		switch {
		case err != nil:
			*errs = append(*errs, fmt.Errorf("%s.%s: %w", alias, pd.Name, err))
			v = ir.Null{}
		case !ok:
			v = ir.Null{}
		}
		props[pd.Name] = v
		if c, found := d.engine.Cell(key); found {
			d.seen[key] = c.Changes()
		}
	}
	return props
}

// consumesChildren reports whether a prop reads the component's children,
// in which case they are not rendered on their own.
func consumesChildren(def *catalog.Definition) bool {
	for _, pd := range def.Props {
		for _, q := range pd.Queries {
			if _, ok := q.(catalog.Children); ok {
				return true
			}
		}
	}
	return false
}

// RenderUpdates returns the renderer props that changed since they were
// last rendered or reported, keyed by alias then prop name. Components
// created since then report all their renderer props. Nothing is resolved
// when no update or edit was applied since the last projection.
func (d *Document) RenderUpdates() (ir.Object, error) {
	out := ir.Object{}
	gen := d.engine.Generation()
	if gen == d.projected {
		return out, nil
	}
	d.projected = gen
	d.watchCreated()

	var errs []error
	for key, seen := range d.seen {
		if !d.live(key.Component) {
			delete(d.seen, key)
			continue
		}
		v, ok, err := d.engine.Resolve(key)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", d.Alias(key.Component), key.Prop, err))
			continue
		}
		c, found := d.engine.Cell(key)
		if !found || c.Changes() == seen {
			continue
		}
		d.seen[key] = c.Changes()
		if !ok {
			v = ir.Null{}
		}
		alias := d.Alias(key.Component)
		props, _ := out[alias].(ir.Object)
		if props == nil {
			props = ir.Object{}
			out[alias] = props
		}
		props[key.Prop] = v
	}
	return out, errors.Join(errs...)
}

// watchCreated registers the renderer props of rendered components created
// since the last projection with a zero counter, so their first value is
// reported as a change.
func (d *Document) watchCreated() {
	created := d.created
	d.created = nil
	for _, i := range created {
		if !d.live(i) || !d.rendered(i) {
			continue
		}
		for _, pd := range d.comps[i].def.Props {
			if !pd.ForRenderer {
				continue
			}
			if key := deps.Whole(i, pd.Name); !d.hasSeen(key) {
				d.seen[key] = 0
			}
		}
	}
}

func (d *Document) hasSeen(key deps.SlotKey) bool {
	_, ok := d.seen[key]
	return ok
}

// rendered reports whether Render shows component i: every component on
// its path to the root is visible content of its parent.
func (d *Document) rendered(i int) bool {
	for i != 0 {
		def := d.Definition(i)
		if def == nil || def.Hidden {
			return false
		}
		p := d.comps[i].parent
		if p < 0 {
			return false
		}
		pdef := d.Definition(p)
		if pdef == nil || consumesChildren(pdef) || !d.isContentChild(p, i) {
			return false
		}
		i = p
	}
	return true
}

func (d *Document) isContentChild(p, i int) bool {
	for _, piece := range d.graph.ContentChildren(p) {
		if !piece.IsText() && piece.Component == i {
			return true
		}
	}
	return false
}
