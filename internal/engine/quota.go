package engine

import "github.com/roach88/doccore/internal/deps"

// DefaultMaxDepth bounds resolution recursion. Depth equals the length of
// the longest dependency chain, so well-formed documents stay far below it.
const DefaultMaxDepth = 10_000

// QuotaEnforcer limits how deep a single resolution may recurse.
type QuotaEnforcer struct {
	maxDepth int
}

// NewQuotaEnforcer creates an enforcer allowing maxDepth nested slots.
func NewQuotaEnforcer(maxDepth int) *QuotaEnforcer {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &QuotaEnforcer{maxDepth: maxDepth}
}

// Check returns a DEPTH_EXCEEDED error once depth passes the limit.
func (q *QuotaEnforcer) Check(slot deps.SlotKey, depth int) error {
	if depth > q.maxDepth {
		return NewDepthError(slot, depth, q.maxDepth)
	}
	return nil
}

// MaxDepth returns the configured limit.
func (q *QuotaEnforcer) MaxDepth() int {
	return q.maxDepth
}
