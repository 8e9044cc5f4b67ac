package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/cell"
	"github.com/roach88/doccore/internal/deps"
	"github.com/roach88/doccore/internal/ir"
	"github.com/roach88/doccore/internal/structure"
)

type host []*catalog.Definition

func (h host) Definition(c int) *catalog.Definition {
	if c < 0 || c >= len(h) {
		return nil
	}
	return h[c]
}

var numberProfile = []string{catalog.ProfileNumber}

func float(v ir.Value) float64 {
	f, _ := ir.AsFloat(v)
	return f
}

var (
	docDef = &catalog.Definition{Tag: "document"}

	inputDef = &catalog.Definition{
		Tag: "numberInput",
		Props: []catalog.PropDef{{
			Name: "value", Type: catalog.TypeNumber, Public: true, Default: ir.Number(0),
			Queries: []catalog.DataQuery{catalog.State{Prefill: "value"}},
			Updater: catalog.Identity(ir.Number(0)),
		}},
		Provides: []catalog.Provide{{Profile: catalog.ProfileNumber, Prop: "value"}},
	}

	doubleDef = &catalog.Definition{
		Tag: "double",
		Props: []catalog.PropDef{{
			Name: "value", Type: catalog.TypeNumber, Public: true,
			Queries: []catalog.DataQuery{catalog.Children{Profiles: numberProfile}},
			Updater: catalog.Funcs{
				Calc: func(data []catalog.QueryResult) (catalog.Result, error) {
					v, ok := data[0].First()
					if !ok {
						return catalog.Result{Value: ir.Number(0)}, nil
					}
					return catalog.Result{Value: ir.Number(2 * float(v.Value))}, nil
				},
				Inv: func(data []catalog.QueryResult, requested ir.Value) ([]catalog.Request, error) {
					return []catalog.Request{{Query: 0, Index: 0, Value: ir.Number(float(requested) / 2)}}, nil
				},
			},
		}},
		Provides: []catalog.Provide{{Profile: catalog.ProfileNumber, Prop: "value"}},
	}

	signDef = &catalog.Definition{
		Tag: "sign",
		Props: []catalog.PropDef{{
			Name: "value", Type: catalog.TypeNumber,
			Queries: []catalog.DataQuery{catalog.Children{Profiles: numberProfile}},
			Updater: catalog.Funcs{Calc: func(data []catalog.QueryResult) (catalog.Result, error) {
				v, _ := data[0].First()
				switch f := float(v.Value); {
				case f > 0:
					return catalog.Result{Value: ir.Number(1)}, nil
				case f < 0:
					return catalog.Result{Value: ir.Number(-1)}, nil
				}
				return catalog.Result{Value: ir.Number(0)}, nil
			}},
		}},
		Provides: []catalog.Provide{{Profile: catalog.ProfileNumber, Prop: "value"}},
	}

	listDef = &catalog.Definition{
		Tag:   "numberList",
		Group: &catalog.GroupDef{MembersProp: "values", Profile: catalog.ProfileNumber},
		Props: []catalog.PropDef{{
			Name: "values", Type: catalog.TypeNumber, IsArray: true, Public: true,
			Queries: []catalog.DataQuery{catalog.Children{Profiles: numberProfile}},
			Updater: catalog.Funcs{
				Calc: func(data []catalog.QueryResult) (catalog.Result, error) {
					out := ir.Array{}
					for _, v := range data[0].Values {
						out = append(out, v.Value)
					}
					return catalog.Result{Value: out}, nil
				},
				Inv: func(data []catalog.QueryResult, requested ir.Value) ([]catalog.Request, error) {
					arr, ok := requested.(ir.Array)
					if !ok || len(arr) != len(data[0].Values) {
						return nil, catalog.ErrNotInvertible
					}
					reqs := make([]catalog.Request, len(arr))
					for i, v := range arr {
						reqs[i] = catalog.Request{Query: 0, Index: i, Value: v}
					}
					return reqs, nil
				},
			},
		}},
	}

	pickDef = &catalog.Definition{
		Tag:        "pick",
		Attributes: []catalog.AttributeDef{{Name: "index", Default: ir.Int(1)}},
		Props: []catalog.PropDef{
			{
				Name: "index", Type: catalog.TypeInt,
				Queries: []catalog.DataQuery{catalog.Attribute{Name: "index", Profiles: numberProfile}},
				Updater: catalog.Funcs{Calc: func(data []catalog.QueryResult) (catalog.Result, error) {
					v, ok := data[0].First()
					if !ok {
						return catalog.Result{Value: ir.Int(1)}, nil
					}
					if v.Text {
						return catalog.Result{Value: catalog.Parse(catalog.TypeInt, ir.Text(v.Value))}, nil
					}
					return catalog.Result{Value: v.Value}, nil
				}},
			},
			{
				Name: "value", Type: catalog.TypeNumber,
				Queries: []catalog.DataQuery{catalog.Indexed{Profile: catalog.ProfileNumber, IndexProp: "index"}},
				Updater: catalog.Identity(ir.Number(0)),
			},
		},
	}

	mirrorDef = &catalog.Definition{
		Tag: "mirror",
		Props: []catalog.PropDef{{
			Name: "value", Type: catalog.TypeNumber, Public: true,
			Queries: []catalog.DataQuery{catalog.Children{Profiles: numberProfile}},
			Updater: catalog.Identity(ir.Number(0)),
		}},
		ExtendProp: "value",
	}

	errBoom = errors.New("boom")

	failDef = &catalog.Definition{
		Tag: "fail",
		Props: []catalog.PropDef{{
			Name: "value", Type: catalog.TypeNumber,
			Queries: []catalog.DataQuery{catalog.Children{Profiles: numberProfile}},
			Updater: catalog.Funcs{Calc: func([]catalog.QueryResult) (catalog.Result, error) {
				return catalog.Result{}, errBoom
			}},
		}},
	}
)

func children(idx ...int) []ir.FlatChild {
	out := make([]ir.FlatChild, len(idx))
	for i, n := range idx {
		out[i] = ir.NodeChild(n)
	}
	return out
}

func valueAttr(text string) []ir.FlatAttribute {
	return []ir.FlatAttribute{{Name: "value", Children: []ir.FlatChild{ir.TextChild(text)}}}
}

func newEngine(t *testing.T, comps []structure.Component, h host, opts ...Option) *Engine {
	t.Helper()
	g, err := structure.Build(comps)
	require.NoError(t, err)
	return New(h, deps.NewCompiler(g, h, deps.NewEssentialStore()), opts...)
}

func mustResolve(t *testing.T, e *Engine, key deps.SlotKey) ir.Value {
	t.Helper()
	v, ok, err := e.Resolve(key)
	require.NoError(t, err)
	require.True(t, ok, "slot %s has no value", key)
	return v
}

// doubleOfInput is: document > double > numberInput.
func doubleOfInput(t *testing.T, prefill string, opts ...Option) *Engine {
	input := structure.Component{Tag: "numberInput", Parent: 1}
	if prefill != "" {
		input.Attributes = valueAttr(prefill)
	}
	return newEngine(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: children(1)},
		{Tag: "double", Parent: 0, Children: children(2)},
		input,
	}, host{docDef, doubleDef, inputDef}, opts...)
}

// TestResolve_Idempotent tests that resolving twice calculates once.
func TestResolve_Idempotent(t *testing.T) {
	e := doubleOfInput(t, "3")
	key := deps.Whole(1, "value")

	assert.Equal(t, ir.Number(6), mustResolve(t, e, key))
	assert.Equal(t, ir.Number(6), mustResolve(t, e, key))
	assert.Equal(t, 1, e.Calculations(key))
	assert.Equal(t, cell.Fresh, e.Freshness(key))
}

// TestResolve_Absent tests that unknown props and out-of-range elements
// have no value.
func TestResolve_Absent(t *testing.T) {
	e := doubleOfInput(t, "3")

	_, ok, err := e.Resolve(deps.Whole(1, "missing"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = e.Resolve(deps.Size(1, "value"))
	require.NoError(t, err)
	assert.False(t, ok, "size of a scalar prop")
}

// TestRequestUpdate_RoundTrip tests that a requested value is inverted to
// essential data and reads back.
func TestRequestUpdate_RoundTrip(t *testing.T) {
	e := doubleOfInput(t, "")
	key := deps.Whole(1, "value")
	assert.Equal(t, ir.Number(0), mustResolve(t, e, key))

	require.NoError(t, e.RequestUpdate(key, ir.Number(10)))
	assert.Equal(t, cell.Stale, e.Freshness(key), "writes do not recompute consumers")
	assert.Equal(t, int64(1), e.Generation())

	assert.Equal(t, ir.Number(10), mustResolve(t, e, key))
	assert.Equal(t, ir.Number(5), mustResolve(t, e, deps.Whole(2, "value")))

	c, ok := e.Compiler().Store().Get(deps.EssentialKey{Component: 2, Origin: "prop:value"})
	require.True(t, ok)
	assert.Equal(t, ir.Number(5), c.Get())
	assert.False(t, c.FromDefault())
}

// TestRequestUpdate_PrefillDefault tests that essential state without an
// authored prefill starts at the default, and that an update writes only
// that essential cell without changing dependency topology.
func TestRequestUpdate_PrefillDefault(t *testing.T) {
	e := doubleOfInput(t, "")
	input := deps.Whole(2, "value")

	assert.Equal(t, ir.Number(0), mustResolve(t, e, input))
	mustResolve(t, e, deps.Whole(1, "value"))
	store := e.Compiler().Store()
	ekey := deps.EssentialKey{Component: 2, Origin: "prop:value"}
	c, _ := store.Get(ekey)
	assert.True(t, c.FromDefault())

	before := store.Len()
	dependents := e.Dependents(input)

	require.NoError(t, e.RequestUpdate(input, ir.Number(42)))
	assert.Equal(t, before, store.Len())
	assert.True(t, store.Modified(ekey))

	assert.Equal(t, ir.Number(42), mustResolve(t, e, input))
	mustResolve(t, e, deps.Whole(1, "value"))
	assert.Equal(t, dependents, e.Dependents(input))
}

// TestMarkStale_Transitive tests that staleness reaches indirect dependents
// and recomputation matches a fresh build.
func TestMarkStale_Transitive(t *testing.T) {
	e := newEngine(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: children(1)},
		{Tag: "double", Parent: 0, Children: children(2)},
		{Tag: "double", Parent: 1, Children: children(3)},
		{Tag: "numberInput", Parent: 2, Attributes: valueAttr("1")},
	}, host{docDef, doubleDef, doubleDef, inputDef})
	top := deps.Whole(1, "value")
	assert.Equal(t, ir.Number(4), mustResolve(t, e, top))

	require.NoError(t, e.RequestUpdate(deps.Whole(3, "value"), ir.Number(5)))
	assert.Equal(t, cell.Stale, e.Freshness(deps.Whole(2, "value")))
	assert.Equal(t, cell.Stale, e.Freshness(top))

	fresh := newEngine(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: children(1)},
		{Tag: "double", Parent: 0, Children: children(2)},
		{Tag: "double", Parent: 1, Children: children(3)},
		{Tag: "numberInput", Parent: 2, Attributes: valueAttr("5")},
	}, host{docDef, doubleDef, doubleDef, inputDef})
	assert.Equal(t, mustResolve(t, fresh, top), mustResolve(t, e, top))
}

// TestMarkStale_RestoresWithoutCalculation tests the cheap un-invalidate
// path: nothing upstream changed, so no updater runs.
func TestMarkStale_RestoresWithoutCalculation(t *testing.T) {
	e := doubleOfInput(t, "2")
	top, input := deps.Whole(1, "value"), deps.Whole(2, "value")
	mustResolve(t, e, top)

	e.MarkStale(input)
	assert.Equal(t, cell.Stale, e.Freshness(top))
	e.MarkStale(input)

	assert.Equal(t, ir.Number(4), mustResolve(t, e, top))
	assert.Equal(t, 1, e.Calculations(top))
	assert.Equal(t, 1, e.Calculations(input))
}

// TestResolve_EqualValueKeepsConsumers tests that a recalculation producing
// the same value does not ripple to consumers.
func TestResolve_EqualValueKeepsConsumers(t *testing.T) {
	e := newEngine(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: children(1)},
		{Tag: "double", Parent: 0, Children: children(2)},
		{Tag: "sign", Parent: 1, Children: children(3)},
		{Tag: "numberInput", Parent: 2, Attributes: valueAttr("5")},
	}, host{docDef, doubleDef, signDef, inputDef})
	top, sign := deps.Whole(1, "value"), deps.Whole(2, "value")
	assert.Equal(t, ir.Number(2), mustResolve(t, e, top))

	require.NoError(t, e.RequestUpdate(deps.Whole(3, "value"), ir.Number(7)))
	assert.Equal(t, ir.Number(2), mustResolve(t, e, top))
	assert.Equal(t, 2, e.Calculations(sign))
	assert.Equal(t, 1, e.Calculations(top))
}

// TestRequestUpdate_Undefined tests that a non-invertible prop declines the
// update without mutating anything.
func TestRequestUpdate_Undefined(t *testing.T) {
	e := newEngine(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: children(1)},
		{Tag: "sign", Parent: 0, Children: children(2)},
		{Tag: "numberInput", Parent: 1, Attributes: valueAttr("5")},
	}, host{docDef, signDef, inputDef})
	sign := deps.Whole(1, "value")
	mustResolve(t, e, sign)

	err := e.RequestUpdate(sign, ir.Number(-1))
	require.Error(t, err)
	assert.True(t, IsInversionUndefined(err))
	assert.Equal(t, cell.Fresh, e.Freshness(sign))
	assert.Equal(t, int64(0), e.Generation())

	c, _ := e.Compiler().Store().Get(deps.EssentialKey{Component: 2, Origin: "prop:value"})
	assert.Equal(t, ir.Number(5), c.Get())
	_, pending := c.Requested()
	assert.False(t, pending)
}

// TestRequestUpdate_Shadow tests that a prop extend forwards requests to
// the shadowed prop untouched.
func TestRequestUpdate_Shadow(t *testing.T) {
	e := newEngine(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: children(1, 2)},
		{Tag: "numberInput", Parent: 0, Attributes: valueAttr("4")},
		{Tag: "mirror", Parent: 0, Extend: &structure.Extend{Source: 1, Prop: "value"}},
	}, host{docDef, inputDef, mirrorDef})
	mirror := deps.Whole(2, "value")
	assert.Equal(t, ir.Number(4), mustResolve(t, e, mirror))

	require.NoError(t, e.RequestUpdate(mirror, ir.Number(9)))
	assert.Equal(t, ir.Number(9), mustResolve(t, e, deps.Whole(1, "value")))
	assert.Equal(t, ir.Number(9), mustResolve(t, e, mirror))
}

// listOfInputs is: document > numberList > (numberInput 1, numberInput 2).
func listOfInputs(t *testing.T) *Engine {
	return newEngine(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: children(1)},
		{Tag: "numberList", Parent: 0, Children: children(2, 3)},
		{Tag: "numberInput", Parent: 1, Attributes: valueAttr("1")},
		{Tag: "numberInput", Parent: 1, Attributes: valueAttr("2")},
	}, host{docDef, listDef, inputDef, inputDef})
}

// TestResolve_ArrayParts tests size, element and out-of-range reads.
func TestResolve_ArrayParts(t *testing.T) {
	e := listOfInputs(t)

	assert.Equal(t, ir.Int(2), mustResolve(t, e, deps.Size(1, "values")))
	assert.Equal(t, ir.Number(2), mustResolve(t, e, deps.Element(1, "values", 1)))

	_, ok, err := e.Resolve(deps.Element(1, "values", 5))
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestRequestUpdates_MergesElements tests that element requests on one
// array merge into a single write per member.
func TestRequestUpdates_MergesElements(t *testing.T) {
	e := listOfInputs(t)
	mustResolve(t, e, deps.Whole(1, "values"))

	require.NoError(t, e.RequestUpdates([]Update{
		{Slot: deps.Element(1, "values", 0), Value: ir.Number(10)},
		{Slot: deps.Element(1, "values", 1), Value: ir.Number(20)},
	}))
	assert.Equal(t, ir.Array{ir.Number(10), ir.Number(20)}, mustResolve(t, e, deps.Whole(1, "values")))
	assert.Equal(t, int64(1), e.Generation())
}

// TestDynamicIndex tests an element selected by another prop, and inversion
// through it.
func TestDynamicIndex(t *testing.T) {
	e := newEngine(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: children(1)},
		{Tag: "pick", Parent: 0, Children: children(2), Attributes: []ir.FlatAttribute{{Name: "index", Children: []ir.FlatChild{ir.TextChild("2")}}}},
		{Tag: "numberList", Parent: 1, Children: children(3, 4)},
		{Tag: "numberInput", Parent: 2, Attributes: valueAttr("1")},
		{Tag: "numberInput", Parent: 2, Attributes: valueAttr("7")},
	}, host{docDef, pickDef, listDef, inputDef, inputDef})
	pick := deps.Whole(1, "value")
	assert.Equal(t, ir.Number(7), mustResolve(t, e, pick))

	require.NoError(t, e.RequestUpdate(pick, ir.Number(8)))
	assert.Equal(t, ir.Number(8), mustResolve(t, e, deps.Whole(4, "value")))
	assert.Equal(t, ir.Number(1), mustResolve(t, e, deps.Whole(3, "value")))
	assert.Equal(t, ir.Number(8), mustResolve(t, e, pick))
}

// TestResolve_CalculationError tests that a failing updater is reported
// with context and leaves siblings intact.
func TestResolve_CalculationError(t *testing.T) {
	e := newEngine(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: children(1, 2)},
		{Tag: "fail", Parent: 0},
		{Tag: "numberInput", Parent: 0, Attributes: valueAttr("3")},
	}, host{docDef, failDef, inputDef})

	_, _, err := e.Resolve(deps.Whole(1, "value"))
	var re *ResolveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, re.Component)
	assert.Equal(t, "value", re.Prop)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, cell.Resolved, e.Freshness(deps.Whole(1, "value")))

	assert.Equal(t, ir.Number(3), mustResolve(t, e, deps.Whole(2, "value")))
}

// TestResolve_DepthLimit tests the recursion quota.
func TestResolve_DepthLimit(t *testing.T) {
	e := doubleOfInput(t, "1", WithMaxDepth(1))

	_, _, err := e.Resolve(deps.Whole(1, "value"))
	require.Error(t, err)
	assert.True(t, IsDepthError(err))
}

// TestFlush_RecompilesAfterEdit tests that structural edits are picked up
// after Flush.
func TestFlush_RecompilesAfterEdit(t *testing.T) {
	h := host{docDef, listDef, inputDef, inputDef}
	g, err := structure.Build([]structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: children(1)},
		{Tag: "numberList", Parent: 0, Children: children(2)},
		{Tag: "numberInput", Parent: 1, Attributes: valueAttr("1")},
		{Tag: "numberInput", Parent: 1, Attributes: valueAttr("2")},
	})
	require.NoError(t, err)
	e := New(h, deps.NewCompiler(g, h, deps.NewEssentialStore()))
	values := deps.Whole(1, "values")
	assert.Equal(t, ir.Array{ir.Number(1)}, mustResolve(t, e, values))

	g.SetChildren(1, children(2, 3))
	e.Flush()
	assert.Equal(t, int64(1), e.Generation())
	assert.Equal(t, cell.Stale, e.Freshness(values))
	assert.Equal(t, ir.Array{ir.Number(1), ir.Number(2)}, mustResolve(t, e, values))
	assert.Equal(t, ir.Int(2), mustResolve(t, e, deps.Size(1, "values")))
}

// TestResolve_DefaultFlagChangeIsAChange tests that a stale slot whose
// recalculated value is equal but no longer comes from a default is set,
// not restored.
func TestResolve_DefaultFlagChangeIsAChange(t *testing.T) {
	zeroDef := &catalog.Definition{
		Tag: "zero",
		Props: []catalog.PropDef{{
			Name: "value", Type: catalog.TypeNumber,
			Queries: []catalog.DataQuery{catalog.Children{Profiles: numberProfile}},
			Updater: catalog.Funcs{Calc: func(data []catalog.QueryResult) (catalog.Result, error) {
				v, _ := data[0].First()
				return catalog.Result{Value: ir.Number(0), FromDefault: float(v.Value) == 0}, nil
			}},
		}},
	}
	e := newEngine(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: children(1)},
		{Tag: "zero", Parent: 0, Children: children(2)},
		{Tag: "numberInput", Parent: 1},
	}, host{docDef, zeroDef, inputDef})
	key := deps.Whole(1, "value")
	assert.Equal(t, ir.Number(0), mustResolve(t, e, key))
	c, ok := e.Cell(key)
	require.True(t, ok)
	assert.True(t, c.FromDefault())
	before := c.Changes()

	require.NoError(t, e.RequestUpdate(deps.Whole(2, "value"), ir.Number(5)))
	assert.Equal(t, ir.Number(0), mustResolve(t, e, key))
	assert.False(t, c.FromDefault())
	assert.Greater(t, c.Changes(), before)
}

// TestCycleDetector tests the reentrancy guard.
func TestCycleDetector(t *testing.T) {
	cd := NewCycleDetector()
	key := deps.Whole(1, "value")

	assert.False(t, cd.WouldCycle(key))
	cd.Enter(key)
	assert.True(t, cd.WouldCycle(key))
	assert.Equal(t, 1, cd.Depth())
	cd.Leave(key)
	assert.False(t, cd.WouldCycle(key))
	assert.Equal(t, 0, cd.Depth())
}

// TestRuntimeErrors tests error classification helpers.
func TestRuntimeErrors(t *testing.T) {
	key := deps.Whole(3, "value")
	cycle := NewCycleError(key)
	assert.True(t, IsCycleError(cycle))
	assert.False(t, IsDepthError(cycle))
	assert.Contains(t, cycle.Error(), "CYCLE_DETECTED")

	depth := NewDepthError(key, 5, 4)
	assert.True(t, IsDepthError(&ResolveError{Component: 1, Prop: "x", Cause: depth}))
	assert.Equal(t, "5", depth.Details["depth"])
}
