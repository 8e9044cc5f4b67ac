package cell

import "github.com/roach88/doccore/internal/ir"

// View is a read-only alias of a Cell that tracks which change it last saw.
type View struct {
	cell *Cell
	seen uint64
}

// Cell returns the backing cell.
func (v *View) Cell() *Cell {
	return v.cell
}

// Get returns the backing cell's value. Panics unless the cell is Fresh.
func (v *View) Get() ir.Value {
	return v.cell.Get()
}

// Freshness returns the backing cell's state.
func (v *View) Freshness() Freshness {
	return v.cell.freshness
}

// FromDefault reports the backing cell's came-from-default flag.
func (v *View) FromDefault() bool {
	return v.cell.fromDefault
}

// Changed reports whether the cell changed since the last MarkSeen.
func (v *View) Changed() bool {
	return v.cell.changes != v.seen
}

// MarkSeen records the cell's current change counter.
func (v *View) MarkSeen() {
	v.seen = v.cell.changes
}
