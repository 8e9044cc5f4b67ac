package engine

import (
	"sort"

	"github.com/roach88/doccore/internal/cell"
	"github.com/roach88/doccore/internal/deps"
)

// MarkStale invalidates key and, transitively, every slot that read it.
// Marking is idempotent: slots that are not Fresh are not revisited.
func (e *Engine) MarkStale(key deps.SlotKey) {
	s, ok := e.slots[key]
	if !ok || s.cell.Freshness() != cell.Fresh {
		return
	}
	s.cell.MarkStale()
	e.propagate(s.cell)
}

// MarkEssentialChanged marks stale every slot that read essential data key.
func (e *Engine) MarkEssentialChanged(key deps.EssentialKey) {
	if c, ok := e.compiler.Store().Get(key); ok {
		e.propagate(c)
	}
}

// propagate marks the dependents of c stale, depth first. Size slots go
// before whole slots, and whole slots before elements, so element slots
// are reached after the size information they depend on is already stale.
func (e *Engine) propagate(c *cell.Cell) {
	for _, key := range sortedKeys(e.dependents[c]) {
		s := e.slots[key]
		if s.cell.Freshness() != cell.Fresh {
			continue
		}
		s.cell.MarkStale()
		e.propagate(s.cell)
	}
}

var partOrder = map[deps.Part]int{
	deps.PartSize:    0,
	deps.PartWhole:   1,
	deps.PartElement: 2,
}

func sortedKeys(set map[deps.SlotKey]struct{}) []deps.SlotKey {
	keys := make([]deps.SlotKey, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if partOrder[a.Part] != partOrder[b.Part] {
			return partOrder[a.Part] < partOrder[b.Part]
		}
		if a.Component != b.Component {
			return a.Component < b.Component
		}
		if a.Prop != b.Prop {
			return a.Prop < b.Prop
		}
		return a.Element < b.Element
	})
	return keys
}

// Dependents returns the slots that read key on their last calculation.
func (e *Engine) Dependents(key deps.SlotKey) []deps.SlotKey {
	s, ok := e.slots[key]
	if !ok {
		return nil
	}
	return sortedKeys(e.dependents[s.cell])
}
