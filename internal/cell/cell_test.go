package cell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/doccore/internal/ir"
)

func requireInvariantPanic(t *testing.T, op string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic for %s", op)
		ie, ok := r.(*InvariantError)
		require.True(t, ok, "panic value should be *InvariantError, got %T", r)
		assert.Equal(t, op, ie.Op)
	}()
	fn()
}

func TestLifecycle(t *testing.T) {
	c := New()
	assert.Equal(t, Unresolved, c.Freshness())

	c.SetResolved()
	assert.Equal(t, Resolved, c.Freshness())

	c.Set(ir.Int(1))
	assert.Equal(t, Fresh, c.Freshness())
	assert.Equal(t, ir.Int(1), c.Get())
	assert.Equal(t, uint64(1), c.Changes())

	c.MarkStale()
	assert.Equal(t, Stale, c.Freshness())

	c.Set(ir.Int(2))
	assert.Equal(t, ir.Int(2), c.Get())
	assert.Equal(t, uint64(2), c.Changes())
}

func TestRestorePreviousKeepsCounter(t *testing.T) {
	c := NewFresh(ir.String("a"), false)
	before := c.Changes()

	c.MarkStale()
	c.RestorePrevious()

	assert.Equal(t, Fresh, c.Freshness())
	assert.Equal(t, ir.String("a"), c.Get())
	assert.Equal(t, before, c.Changes())
}

func TestMarkStaleIdempotent(t *testing.T) {
	c := NewFresh(ir.Int(1), false)
	c.MarkStale()
	c.MarkStale()
	assert.Equal(t, Stale, c.Freshness())
}

func TestFromDefault(t *testing.T) {
	c := NewFresh(ir.Number(0), true)
	assert.True(t, c.FromDefault())

	c.Set(ir.Number(3))
	assert.False(t, c.FromDefault(), "Set clears came-from-default")

	c.SetWithDefault(ir.Number(0), true)
	assert.True(t, c.FromDefault())
}

func TestIllegalTransitions(t *testing.T) {
	requireInvariantPanic(t, "get", func() { New().Get() })
	requireInvariantPanic(t, "set", func() { New().Set(ir.Int(1)) })
	requireInvariantPanic(t, "mark stale", func() { New().MarkStale() })
	requireInvariantPanic(t, "restore previous", func() {
		c := New()
		c.SetResolved()
		c.RestorePrevious()
	})
	requireInvariantPanic(t, "restore previous", func() {
		NewFresh(ir.Int(1), false).RestorePrevious()
	})
	requireInvariantPanic(t, "set resolved", func() {
		NewFresh(ir.Int(1), false).SetResolved()
	})
	requireInvariantPanic(t, "get", func() {
		c := NewFresh(ir.Int(1), false)
		c.MarkStale()
		c.Get()
	})
}

func TestRequestedChannel(t *testing.T) {
	c := NewFresh(ir.Int(1), false)

	_, ok := c.Requested()
	assert.False(t, ok)

	c.RecordRequested(ir.Int(5))
	v, ok := c.Requested()
	require.True(t, ok)
	assert.Equal(t, ir.Int(5), v)
	assert.Equal(t, ir.Int(1), c.Get(), "requesting does not write the value")

	c.ClearRequested()
	_, ok = c.Requested()
	assert.False(t, ok)
}

func TestViewChanged(t *testing.T) {
	c := NewFresh(ir.Int(1), false)
	v1 := c.View()
	v2 := c.View()

	assert.True(t, v1.Changed(), "a new view has seen nothing")
	v1.MarkSeen()
	assert.False(t, v1.Changed())

	c.MarkStale()
	c.RestorePrevious()
	assert.False(t, v1.Changed(), "restore does not count as a change")

	c.Set(ir.Int(2))
	assert.True(t, v1.Changed())
	assert.True(t, v2.Changed())

	v2.MarkSeen()
	assert.True(t, v1.Changed(), "views track independently")
	assert.False(t, v2.Changed())
	assert.Equal(t, ir.Int(2), v1.Get())
	assert.Same(t, c, v1.Cell())
}

func TestFreshnessString(t *testing.T) {
	assert.Equal(t, "stale", Stale.String())
	assert.Equal(t, "freshness(9)", Freshness(9).String())
}
