package deps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/ir"
	"github.com/roach88/doccore/internal/structure"
)

type defs []*catalog.Definition

func (d defs) Definition(c int) *catalog.Definition {
	if c < 0 || c >= len(d) {
		return nil
	}
	return d[c]
}

var (
	docDef = &catalog.Definition{Tag: "document"}

	textDef = &catalog.Definition{
		Tag: "text",
		Props: []catalog.PropDef{{
			Name: "value", Type: catalog.TypeString, Public: true,
			Queries: []catalog.DataQuery{catalog.Children{Profiles: []string{catalog.ProfileText}}},
			Updater: catalog.Identity(ir.String("")),
		}},
		Provides:   []catalog.Provide{{Profile: catalog.ProfileText, Prop: "value"}},
		ExtendProp: "value",
	}

	numberDef = &catalog.Definition{
		Tag: "number",
		Props: []catalog.PropDef{{
			Name: "value", Type: catalog.TypeNumber, Public: true,
			Queries: []catalog.DataQuery{catalog.Children{Profiles: []string{catalog.ProfileNumber}, ParseExpression: true}},
			Updater: catalog.Identity(ir.Number(0)),
		}},
		Provides:   []catalog.Provide{{Profile: catalog.ProfileNumber, Prop: "value"}},
		ExtendProp: "value",
	}

	inputDef = &catalog.Definition{
		Tag:        "numberInput",
		Attributes: []catalog.AttributeDef{{Name: "value", Default: ir.Null{}}, {Name: "label", Default: ir.String("untitled")}},
		Props: []catalog.PropDef{
			{
				Name: "value", Type: catalog.TypeNumber, Public: true, Default: ir.Number(0),
				Queries: []catalog.DataQuery{catalog.State{Prefill: "value"}},
				Updater: catalog.Identity(ir.Number(0)),
			},
			{
				Name: "label", Type: catalog.TypeString,
				Queries: []catalog.DataQuery{catalog.Attribute{Name: "label", Profiles: []string{catalog.ProfileText}}},
				Updater: catalog.Identity(ir.String("")),
			},
		},
		Provides:   []catalog.Provide{{Profile: catalog.ProfileNumber, Prop: "value"}},
		ExtendProp: "value",
	}

	listDef = &catalog.Definition{
		Tag:   "numberList",
		Group: &catalog.GroupDef{MembersProp: "values", Profile: catalog.ProfileNumber},
		Props: []catalog.PropDef{
			{
				Name: "values", Type: catalog.TypeNumber, Public: true, IsArray: true,
				Queries: []catalog.DataQuery{catalog.Children{Profiles: []string{catalog.ProfileNumber}}},
				Updater: catalog.Identity(ir.Array{}),
			},
			{
				Name: "count", Type: catalog.TypeInt,
				Queries: []catalog.DataQuery{catalog.Self{Prop: "values", Size: true}},
				Updater: catalog.Identity(ir.Int(0)),
			},
		},
	}

	pickDef = &catalog.Definition{
		Tag:        "pick",
		Attributes: []catalog.AttributeDef{{Name: "index", Default: ir.Int(1)}},
		Props: []catalog.PropDef{
			{
				Name: "index", Type: catalog.TypeInt,
				Queries: []catalog.DataQuery{catalog.Attribute{Name: "index", Profiles: []string{catalog.ProfileNumber}}},
				Updater: catalog.Identity(ir.Int(1)),
			},
			{
				Name: "value", Type: catalog.TypeNumber,
				Queries: []catalog.DataQuery{catalog.Indexed{Profile: catalog.ProfileNumber, IndexProp: "index"}},
				Updater: catalog.Identity(ir.Number(0)),
			},
		},
	}
)

func text(s string) ir.FlatChild { return ir.TextChild(s) }
func node(i int) ir.FlatChild    { return ir.NodeChild(i) }

func newCompiler(t *testing.T, comps []structure.Component, d defs) *Compiler {
	t.Helper()
	g, err := structure.Build(comps)
	require.NoError(t, err)
	return NewCompiler(g, d, NewEssentialStore())
}

func essentialValue(t *testing.T, c *Compiler, key EssentialKey) (ir.Value, bool) {
	t.Helper()
	cl, ok := c.Store().Get(key)
	require.True(t, ok, "essential %s not allocated", key)
	return cl.Get(), cl.FromDefault()
}

// TestCompile_StatePrefill tests that authored attribute text seeds state.
func TestCompile_StatePrefill(t *testing.T) {
	c := newCompiler(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: []ir.FlatChild{node(1)}},
		{Tag: "numberInput", Parent: 0, Attributes: []ir.FlatAttribute{{Name: "value", Children: []ir.FlatChild{text("5")}}}},
	}, defs{docDef, inputDef})

	instrs, err := c.Compile(Whole(1, "value"))
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	key := EssentialKey{Component: 1, Origin: "prop:value"}
	assert.Equal(t, []Dependency{Essential{Key: key}}, instrs[0].Deps)

	v, fromDefault := essentialValue(t, c, key)
	assert.Equal(t, ir.Number(5), v)
	assert.False(t, fromDefault)
}

// TestCompile_StateDefault tests that a missing prefill attribute falls back
// to the declared default.
func TestCompile_StateDefault(t *testing.T) {
	c := newCompiler(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: []ir.FlatChild{node(1)}},
		{Tag: "numberInput", Parent: 0},
	}, defs{docDef, inputDef})

	_, err := c.Compile(Whole(1, "value"))
	require.NoError(t, err)

	v, fromDefault := essentialValue(t, c, EssentialKey{Component: 1, Origin: "prop:value"})
	assert.Equal(t, ir.Number(0), v)
	assert.True(t, fromDefault)
	assert.Equal(t, 1, c.Store().Len())
}

// TestCompile_StateSharedWithCopy tests that a whole-component copy shares
// its source's essential data.
func TestCompile_StateSharedWithCopy(t *testing.T) {
	c := newCompiler(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: []ir.FlatChild{node(1), node(2)}},
		{Tag: "numberInput", Parent: 0},
		{Tag: "numberInput", Parent: 0, Extend: &structure.Extend{Source: 1}},
	}, defs{docDef, inputDef, inputDef})

	a, err := c.Compile(Whole(1, "value"))
	require.NoError(t, err)
	b, err := c.Compile(Whole(2, "value"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 1, c.Store().Len())
}

// TestCompile_AttributeFallback tests explicit, inherited, then default
// attribute content.
func TestCompile_AttributeFallback(t *testing.T) {
	c := newCompiler(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: []ir.FlatChild{node(1), node(2), node(3)}},
		{Tag: "numberInput", Parent: 0, Attributes: []ir.FlatAttribute{{Name: "label", Children: []ir.FlatChild{text("Width")}}}},
		{Tag: "numberInput", Parent: 0, Extend: &structure.Extend{Source: 1}},
		{Tag: "numberInput", Parent: 0},
	}, defs{docDef, inputDef, inputDef, inputDef})

	explicit, err := c.Compile(Whole(1, "label"))
	require.NoError(t, err)
	inherited, err := c.Compile(Whole(2, "label"))
	require.NoError(t, err)
	fallback, err := c.Compile(Whole(3, "label"))
	require.NoError(t, err)

	owned := EssentialKey{Component: 1, Origin: "attr:label:0"}
	assert.Equal(t, []Dependency{Essential{Key: owned, Text: true}}, explicit[0].Deps)
	assert.Equal(t, explicit, inherited)

	dflt := EssentialKey{Component: 3, Origin: "attr:label"}
	assert.Equal(t, []Dependency{Essential{Key: dflt}}, fallback[0].Deps)
	v, fromDefault := essentialValue(t, c, dflt)
	assert.Equal(t, ir.String("untitled"), v)
	assert.True(t, fromDefault)
}

// TestCompile_UndeclaredAttribute tests that querying an undeclared
// attribute is a compile error.
func TestCompile_UndeclaredAttribute(t *testing.T) {
	bad := &catalog.Definition{
		Tag: "bad",
		Props: []catalog.PropDef{{
			Name: "x", Queries: []catalog.DataQuery{catalog.Attribute{Name: "missing"}},
			Updater: catalog.Identity(ir.Null{}),
		}},
	}
	c := newCompiler(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: []ir.FlatChild{node(1)}},
		{Tag: "bad", Parent: 0},
	}, defs{docDef, bad})

	_, err := c.Compile(Whole(1, "x"))
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Component)
}

// TestCompile_ChildrenWithGroup tests that children bind in document order
// and groups contribute a collection.
func TestCompile_ChildrenWithGroup(t *testing.T) {
	c := newCompiler(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: []ir.FlatChild{node(1)}},
		{Tag: "numberList", Parent: 0, Children: []ir.FlatChild{node(2), node(3), text(" ")}},
		{Tag: "numberInput", Parent: 1},
		{Tag: "numberList", Parent: 1},
	}, defs{docDef, listDef, inputDef, listDef})

	instrs, err := c.Compile(Whole(1, "values"))
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.Equal(t, []Dependency{
		Prop{Slot: Whole(2, "value")},
		Collection{Group: 3, Members: Whole(3, "values")},
		Essential{Key: EssentialKey{Component: 1, Origin: "child:2"}, Text: true},
	}, instrs[0].Deps)
}

// TestCompile_CopyKeepsLocalText tests that inherited text stays owned by
// the source while text authored on a copy belongs to the copy.
func TestCompile_CopyKeepsLocalText(t *testing.T) {
	c := newCompiler(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: []ir.FlatChild{node(1), node(2)}},
		{Tag: "text", Parent: 0, Children: []ir.FlatChild{text("shared")}},
		{Tag: "text", Parent: 0, Children: []ir.FlatChild{text(" local")}, Extend: &structure.Extend{Source: 1}},
	}, defs{docDef, textDef, textDef})

	instrs, err := c.Compile(Whole(2, "value"))
	require.NoError(t, err)
	assert.Equal(t, []Dependency{
		Essential{Key: EssentialKey{Component: 1, Origin: "child:0"}, Text: true},
		Essential{Key: EssentialKey{Component: 2, Origin: "child:0"}, Text: true},
	}, instrs[0].Deps)
}

// TestCompile_Expression tests folding text children into one expression
// with placeholders for element children.
func TestCompile_Expression(t *testing.T) {
	c := newCompiler(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: []ir.FlatChild{node(1)}},
		{Tag: "number", Parent: 0, Children: []ir.FlatChild{text("2 *"), node(2), text("+ 1")}},
		{Tag: "numberInput", Parent: 1},
	}, defs{docDef, numberDef, inputDef})

	instrs, err := c.Compile(Whole(1, "value"))
	require.NoError(t, err)
	key := EssentialKey{Component: 1, Origin: "expr"}
	assert.Equal(t, []Dependency{
		Essential{Key: key, Text: true},
		Prop{Slot: Whole(2, "value")},
	}, instrs[0].Deps)

	v, _ := essentialValue(t, c, key)
	assert.Equal(t, ir.String("2 * _s0 + 1"), v)
}

// TestCompile_ArrayParts tests size and element instructions.
func TestCompile_ArrayParts(t *testing.T) {
	c := newCompiler(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: []ir.FlatChild{node(1)}},
		{Tag: "numberList", Parent: 0},
	}, defs{docDef, listDef})

	size, err := c.Compile(Size(1, "values"))
	require.NoError(t, err)
	assert.Equal(t, []Instruction{{Deps: []Dependency{Prop{Slot: Whole(1, "values")}}}}, size)

	elem, err := c.Compile(Element(1, "values", 2))
	require.NoError(t, err)
	assert.Equal(t, []Instruction{
		{Deps: []Dependency{Prop{Slot: Size(1, "values")}}},
		{Deps: []Dependency{Prop{Slot: Whole(1, "values")}}},
	}, elem)

	count, err := c.Compile(Whole(1, "count"))
	require.NoError(t, err)
	assert.Equal(t, []Dependency{Prop{Slot: Size(1, "values")}}, count[0].Deps)

	_, err = c.Compile(Size(1, "count"))
	assert.Error(t, err)
}

// TestCompile_Shadow tests that a prop extend compiles to one shadow
// dependency on the source prop.
func TestCompile_Shadow(t *testing.T) {
	c := newCompiler(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: []ir.FlatChild{node(1), node(2), node(3), node(4)}},
		{Tag: "numberInput", Parent: 0},
		{Tag: "number", Parent: 0, Extend: &structure.Extend{Source: 1, Prop: "value"}},
		{Tag: "numberList", Parent: 0},
		{Tag: "number", Parent: 0, Extend: &structure.Extend{Source: 3, Prop: "values", Element: 2}},
	}, defs{docDef, inputDef, numberDef, listDef, numberDef})

	instrs, err := c.Compile(Whole(2, "value"))
	require.NoError(t, err)
	p, ok := IsShadow(instrs)
	require.True(t, ok)
	assert.Equal(t, Whole(1, "value"), p.Slot)

	instrs, err = c.Compile(Whole(4, "value"))
	require.NoError(t, err)
	p, ok = IsShadow(instrs)
	require.True(t, ok)
	assert.Equal(t, Element(3, "values", 1), p.Slot)
}

// TestCompile_Indexed tests the dynamic index dependency.
func TestCompile_Indexed(t *testing.T) {
	c := newCompiler(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: []ir.FlatChild{node(1)}},
		{Tag: "pick", Parent: 0, Children: []ir.FlatChild{node(2)}},
		{Tag: "numberList", Parent: 1},
	}, defs{docDef, pickDef, listDef})

	instrs, err := c.Compile(Whole(1, "value"))
	require.NoError(t, err)
	assert.Equal(t, []Dependency{DynamicIndex{Array: Whole(2, "values"), Index: Whole(1, "index")}}, instrs[0].Deps)
}

// TestCompile_Cached tests that compiled instructions are reused until Flush.
func TestCompile_Cached(t *testing.T) {
	g, err := structure.Build([]structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: []ir.FlatChild{node(1)}},
		{Tag: "numberList", Parent: 0, Children: []ir.FlatChild{node(2)}},
		{Tag: "numberInput", Parent: 1},
		{Tag: "numberInput", Parent: 1},
	})
	require.NoError(t, err)
	c := NewCompiler(g, defs{docDef, listDef, inputDef, inputDef}, NewEssentialStore())

	first, err := c.Compile(Whole(1, "values"))
	require.NoError(t, err)
	assert.Len(t, first[0].Deps, 1)

	g.SetChildren(1, []ir.FlatChild{node(2), node(3)})
	again, err := c.Compile(Whole(1, "values"))
	require.NoError(t, err)
	assert.Len(t, again[0].Deps, 1, "cache survives until flush")

	c.Flush()
	flushed, err := c.Compile(Whole(1, "values"))
	require.NoError(t, err)
	assert.Len(t, flushed[0].Deps, 2)
}

// TestCheckCycles_None tests that an acyclic document reports nothing.
func TestCheckCycles_None(t *testing.T) {
	c := newCompiler(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: []ir.FlatChild{node(1)}},
		{Tag: "number", Parent: 0, Children: []ir.FlatChild{node(2)}},
		{Tag: "numberInput", Parent: 1},
	}, defs{docDef, numberDef, inputDef})

	assert.Empty(t, c.CheckCycles())
}

// TestCheckCycles_MutualCopies tests two numbers that each contain a copy
// of the other.
func TestCheckCycles_MutualCopies(t *testing.T) {
	c := newCompiler(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: []ir.FlatChild{node(1), node(2)}},
		{Tag: "number", Parent: 0, Children: []ir.FlatChild{node(3)}},
		{Tag: "number", Parent: 0, Children: []ir.FlatChild{node(4)}},
		{Tag: "number", Parent: 1, Extend: &structure.Extend{Source: 2, Prop: "value"}},
		{Tag: "number", Parent: 2, Extend: &structure.Extend{Source: 1, Prop: "value"}},
	}, defs{docDef, numberDef, numberDef, numberDef, numberDef})

	cycles := c.CheckCycles()
	require.Len(t, cycles, 1)
	path := cycles[0].Path
	assert.Equal(t, path[0], path[len(path)-1])
	assert.ElementsMatch(t, []int{1, 2, 3, 4}, cycles[0].Components())
	assert.Contains(t, cycles[0].Error(), "cyclic dependency")
}

// TestCheckCycles_SelfShadow tests a prop extending itself.
func TestCheckCycles_SelfShadow(t *testing.T) {
	c := newCompiler(t, []structure.Component{
		{Tag: "document", Parent: ir.RootParent, Children: []ir.FlatChild{node(1)}},
		{Tag: "number", Parent: 0, Extend: &structure.Extend{Source: 1, Prop: "value"}},
	}, defs{docDef, numberDef})

	cycles := c.CheckCycles()
	require.Len(t, cycles, 1)
	assert.Equal(t, []SlotKey{Whole(1, "value"), Whole(1, "value")}, cycles[0].Path)
}

func TestEssentialStore_CreateTwicePanics(t *testing.T) {
	s := NewEssentialStore()
	key := EssentialKey{Component: 1, Origin: "prop:value"}
	s.Create(key, ir.Number(1), false)

	defer func() {
		err, _ := recover().(error)
		var ie *InvariantError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, key, ie.Key)
		got, ok := s.Get(key)
		require.True(t, ok)
		assert.Equal(t, ir.Number(1), got.Get())
	}()
	s.Create(key, ir.Number(2), false)
}
