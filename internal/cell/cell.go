// Package cell implements the value holder behind every prop and every piece
// of essential data.
//
// A Cell carries a value, a freshness tag, a came-from-default flag, a
// pending requested value used by inversion, and a change counter. Views
// alias a cell and remember the counter they last saw, so a consumer can ask
// "did this change since I looked" without comparing values.
//
// Cells are not safe for concurrent use. A document owns all of its cells and
// a single writer (the resolution engine) mutates them synchronously.
package cell

import (
	"fmt"

	"github.com/roach88/doccore/internal/ir"
)

// Freshness is the lifecycle state of a cell's cached value.
//
//	Unresolved --SetResolved--> Resolved --Set--> Fresh
//	Fresh --MarkStale--> Stale --Set--> Fresh
//	Stale --RestorePrevious--> Fresh
type Freshness int

const (
	Unresolved Freshness = iota
	Resolved
	Fresh
	Stale
)

func (f Freshness) String() string {
	switch f {
	case Unresolved:
		return "unresolved"
	case Resolved:
		return "resolved"
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return fmt.Sprintf("freshness(%d)", int(f))
	}
}

// InvariantError is the panic value for illegal cell operations.
// These indicate a broken dependency graph, not bad input.
type InvariantError struct {
	Op    string
	State Freshness
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("cell invariant violated: %s on %s cell", e.Op, e.State)
}

// Cell is a single value slot.
type Cell struct {
	value       ir.Value
	freshness   Freshness
	fromDefault bool
	requested   ir.Value
	hasRequest  bool
	changes     uint64
}

// New returns an unresolved cell.
func New() *Cell {
	return &Cell{}
}

// NewFresh returns a fresh cell holding v. Essential data starts this way.
func NewFresh(v ir.Value, fromDefault bool) *Cell {
	return &Cell{value: v, freshness: Fresh, fromDefault: fromDefault, changes: 1}
}

// Freshness returns the current state.
func (c *Cell) Freshness() Freshness {
	return c.freshness
}

// Changes returns the change counter.
func (c *Cell) Changes() uint64 {
	return c.changes
}

// FromDefault reports whether the current value came from a declared default.
func (c *Cell) FromDefault() bool {
	return c.fromDefault
}

// Get returns the value. Panics unless the cell is Fresh.
func (c *Cell) Get() ir.Value {
	if c.freshness != Fresh {
		panic(&InvariantError{Op: "get", State: c.freshness})
	}
	return c.value
}

// Cached returns the last value set, whatever the freshness. The engine
// compares a recalculated value against it before deciding whether a stale
// cell really changed.
func (c *Cell) Cached() ir.Value {
	return c.value
}

// Set stores v, marks the cell Fresh, bumps the change counter and clears
// the came-from-default flag.
func (c *Cell) Set(v ir.Value) {
	c.SetWithDefault(v, false)
}

// SetWithDefault is Set with an explicit came-from-default flag.
// Setting an Unresolved cell is forbidden: its dependencies were never computed.
func (c *Cell) SetWithDefault(v ir.Value, fromDefault bool) {
	if c.freshness == Unresolved {
		panic(&InvariantError{Op: "set", State: c.freshness})
	}
	c.value = v
	c.fromDefault = fromDefault
	c.freshness = Fresh
	c.changes++
}

// MarkStale moves a Fresh cell to Stale. Marking a Stale cell is a no-op.
// Resolved and Unresolved cells hold no value and cannot go stale.
func (c *Cell) MarkStale() {
	switch c.freshness {
	case Fresh:
		c.freshness = Stale
	case Stale:
	default:
		panic(&InvariantError{Op: "mark stale", State: c.freshness})
	}
}

// RestorePrevious returns a Stale cell to Fresh keeping its value and its
// change counter, so views that already saw the value see no change.
func (c *Cell) RestorePrevious() {
	if c.freshness != Stale {
		panic(&InvariantError{Op: "restore previous", State: c.freshness})
	}
	c.freshness = Fresh
}

// SetResolved records that the cell's dependencies have been computed.
func (c *Cell) SetResolved() {
	if c.freshness != Unresolved {
		panic(&InvariantError{Op: "set resolved", State: c.freshness})
	}
	c.freshness = Resolved
}

// RecordRequested stores a value requested by inversion.
func (c *Cell) RecordRequested(v ir.Value) {
	c.requested = v
	c.hasRequest = true
}

// Requested returns the pending requested value, if any.
func (c *Cell) Requested() (ir.Value, bool) {
	return c.requested, c.hasRequest
}

// ClearRequested drops the pending requested value.
func (c *Cell) ClearRequested() {
	c.requested = nil
	c.hasRequest = false
}

// View returns a new read-only view over c. A new view has seen nothing.
func (c *Cell) View() *View {
	return &View{cell: c}
}
