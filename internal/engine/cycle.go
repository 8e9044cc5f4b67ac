package engine

import "github.com/roach88/doccore/internal/deps"

// CycleDetector tracks which slots are mid-resolution.
//
// The build-time cycle check rejects static cycles. Dynamic dependencies
// (an index chosen by another prop, children of a composite that change
// after build) can still close a loop the static check never saw; the
// detector turns that into a CYCLE_DETECTED error instead of unbounded
// recursion.
type CycleDetector struct {
	active map[deps.SlotKey]bool
}

// NewCycleDetector creates a new cycle detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{active: make(map[deps.SlotKey]bool)}
}

// WouldCycle reports whether slot is already being resolved.
func (c *CycleDetector) WouldCycle(slot deps.SlotKey) bool {
	return c.active[slot]
}

// Enter marks slot as being resolved. Call Leave when done.
func (c *CycleDetector) Enter(slot deps.SlotKey) {
	c.active[slot] = true
}

// Leave clears slot.
func (c *CycleDetector) Leave(slot deps.SlotKey) {
	delete(c.active, slot)
}

// Depth returns the number of slots currently being resolved.
func (c *CycleDetector) Depth() int {
	return len(c.active)
}
