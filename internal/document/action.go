package document

import (
	"fmt"
	"log/slog"

	"github.com/roach88/doccore/internal/deps"
	"github.com/roach88/doccore/internal/engine"
	"github.com/roach88/doccore/internal/ir"
)

// Dispatch runs a named action of the component with the given alias. The
// action's prop requests are applied as one batch. It reports false, with
// no error, when the batch cannot be written back to essential data; in
// that case nothing changes.
func (d *Document) Dispatch(alias, action string, args ir.Object) (bool, error) {
	i, ok := d.Lookup(alias)
	if !ok {
		return false, &ActionError{Alias: alias, Action: action, Err: ErrUnknownAlias}
	}
	fn, ok := d.comps[i].def.Actions[action]
	if !ok {
		return false, &ActionError{Alias: alias, Action: action, Err: ErrUnknownAction}
	}
	reqs, err := fn(actionContext{d: d, comp: i}, args)
	if err != nil {
		return false, &ActionError{Alias: alias, Action: action, Err: err}
	}

	updates := make([]engine.Update, len(reqs))
	for k, r := range reqs {
		updates[k] = engine.Update{Slot: deps.Whole(i, r.Prop), Value: r.Value}
	}
	if err := d.engine.RequestUpdates(updates); err != nil {
		if engine.IsInversionUndefined(err) {
			slog.Info("action declined", "alias", alias, "action", action, "error", err)
			return false, nil
		}
		return false, &ActionError{Alias: alias, Action: action, Err: err}
	}
	if err := d.refresh(); err != nil {
		return true, fmt.Errorf("expand maps after %q: %w", action, err)
	}
	return true, nil
}

// RequestUpdate writes v to a prop, as if an action had asked for it.
func (d *Document) RequestUpdate(alias, prop string, v ir.Value) (bool, error) {
	i, ok := d.Lookup(alias)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownAlias, alias)
	}
	if err := d.engine.RequestUpdate(deps.Whole(i, prop), v); err != nil {
		if engine.IsInversionUndefined(err) {
			slog.Info("update declined", "alias", alias, "prop", prop, "error", err)
			return false, nil
		}
		return false, err
	}
	return true, d.refresh()
}

type actionContext struct {
	d    *Document
	comp int
}

func (c actionContext) Value(prop string) (ir.Value, error) {
	v, ok, err := c.d.engine.Resolve(deps.Whole(c.comp, prop))
	if err != nil {
		return nil, err
	}
	if !ok {
		return ir.Null{}, nil
	}
	return v, nil
}
