package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/cell"
	"github.com/roach88/doccore/internal/deps"
	"github.com/roach88/doccore/internal/ir"
)

// Update requests that Slot take Value.
type Update struct {
	Slot  deps.SlotKey
	Value ir.Value
}

// plan collects the essential writes an update batch needs. Nothing is
// written until every update in the batch has been inverted.
type plan struct {
	writes  map[deps.EssentialKey]ir.Value
	order   []deps.EssentialKey
	touched []*cell.Cell
}

func (p *plan) write(key deps.EssentialKey, v ir.Value) {
	if _, ok := p.writes[key]; !ok {
		p.order = append(p.order, key)
	}
	p.writes[key] = v
}

func (p *plan) request(c *cell.Cell, v ir.Value) {
	if _, pending := c.Requested(); !pending {
		p.touched = append(p.touched, c)
	}
	c.RecordRequested(v)
}

func (p *plan) clear() {
	for _, c := range p.touched {
		c.ClearRequested()
	}
}

// RequestUpdate inverts a single requested value. See RequestUpdates.
func (e *Engine) RequestUpdate(key deps.SlotKey, v ir.Value) error {
	return e.RequestUpdates([]Update{{Slot: key, Value: v}})
}

// RequestUpdates inverts every update, then writes the resulting essential
// data and marks its dependents stale. Consumers recompute lazily on their
// next read.
//
// If any update cannot be inverted the whole batch fails with
// ErrInversionUndefined and nothing is written. When two updates reach the
// same essential data the later one wins. Element requests on one array
// merge through the array's requested value, so several elements can be
// written in one batch.
func (e *Engine) RequestUpdates(updates []Update) error {
	p := &plan{writes: make(map[deps.EssentialKey]ir.Value)}
	defer p.clear()

	for _, u := range updates {
		if err := e.plan(p, u.Slot, u.Value, 0); err != nil {
			slog.Debug("update declined", "slot", u.Slot, "error", err)
			return err
		}
	}
	e.apply(p)
	return nil
}

func (e *Engine) plan(p *plan, key deps.SlotKey, v ir.Value, depth int) error {
	pd := e.propDef(key)
	if pd == nil {
		return fmt.Errorf("%w: no slot %s", ErrInversionUndefined, key)
	}
	if err := e.quota.Check(key, depth); err != nil {
		return err
	}
	if _, ok, err := e.Resolve(key); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s has no value", ErrInversionUndefined, key)
	}
	s := e.slots[key]

	switch key.Part {
	case deps.PartSize:
		return fmt.Errorf("%w: array size %s", ErrInversionUndefined, key)

	case deps.PartElement:
		ws := e.slots[key.WholeKey()]
		current := ws.cell.Get()
		if req, ok := ws.cell.Requested(); ok {
			current = req
		}
		arr, _ := current.(ir.Array)
		if key.Element >= len(arr) {
			return fmt.Errorf("%w: %s out of range", ErrInversionUndefined, key)
		}
		merged := append(ir.Array(nil), arr...)
		merged[key.Element] = v
		p.request(s.cell, v)
		return e.plan(p, key.WholeKey(), merged, depth+1)
	}

	p.request(s.cell, v)

	instrs, err := e.compiler.Compile(key)
	if err != nil {
		return &ResolveError{Component: key.Component, Prop: key.Prop, Cause: err}
	}
	if sh, ok := deps.IsShadow(instrs); ok {
		return e.plan(p, sh.Slot, v, depth+1)
	}

	g, err := e.gather(key, instrs)
	if err != nil {
		return err
	}
	reqs, err := pd.Updater.Invert(g.data, convert(pd, v))
	if errors.Is(err, catalog.ErrNotInvertible) {
		return fmt.Errorf("%w: %s", ErrInversionUndefined, key)
	}
	if err != nil {
		return &ResolveError{Component: key.Component, Prop: key.Prop, Cause: err}
	}

	for _, r := range reqs {
		if r.Query < 0 || r.Query >= len(g.refs) || r.Index < 0 || r.Index >= len(g.refs[r.Query]) {
			return fmt.Errorf("%w: %s requested value %d of query %d", ErrInversionUndefined, key, r.Index, r.Query)
		}
		t := g.refs[r.Query][r.Index]
		if t.essential != nil {
			p.write(*t.essential, r.Value)
			continue
		}
		if err := e.plan(p, *t.slot, r.Value, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) apply(p *plan) {
	store := e.compiler.Store()
	for _, key := range p.order {
		c, ok := store.Get(key)
		if !ok {
			continue
		}
		c.Set(p.writes[key])
		e.propagate(c)
	}
	gen := e.clock.Advance()
	slog.Debug("applied update", "writes", len(p.order), "generation", gen)
}
