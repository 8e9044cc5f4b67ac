package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/doccore/internal/ir"
)

func numberDef() *Definition {
	return &Definition{
		Tag: "number",
		Props: []PropDef{
			{Name: "value", Type: TypeNumber, Public: true, Queries: []DataQuery{State{}}, Updater: Identity(ir.Number(0))},
		},
		Provides:   []Provide{{Profile: ProfileNumber, Prop: "value"}},
		ExtendProp: "value",
	}
}

func TestRegisterAndLookup(t *testing.T) {
	c := New()
	require.NoError(t, c.Register(numberDef()))

	def, ok := c.Lookup("number")
	require.True(t, ok)
	assert.Equal(t, "number", def.Renderer())

	_, ok = c.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"number"}, c.Tags())
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	c := New()
	require.NoError(t, c.Register(numberDef()))
	assert.ErrorContains(t, c.Register(numberDef()), "duplicate definition")
}

func TestRegisterValidates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Definition)
		msg    string
	}{
		{"no tag", func(d *Definition) { d.Tag = "" }, "no tag"},
		{"duplicate prop", func(d *Definition) { d.Props = append(d.Props, d.Props[0]) }, "duplicate prop"},
		{"missing updater", func(d *Definition) { d.Props[0].Updater = nil }, "no updater"},
		{"unknown provider", func(d *Definition) { d.Provides[0].Prop = "nope" }, "unknown prop"},
		{"bad extend prop", func(d *Definition) { d.ExtendProp = "nope" }, "extend prop"},
		{"group needs array", func(d *Definition) { d.Group = &GroupDef{MembersProp: "value", Profile: ProfileNumber} }, "array prop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := numberDef()
			tt.mutate(d)
			assert.ErrorContains(t, New().Register(d), tt.msg)
		})
	}
}

func TestMatches(t *testing.T) {
	d := numberDef()

	prop, ok := d.Matches([]string{ProfileText, ProfileNumber})
	require.True(t, ok)
	assert.Equal(t, "value", prop)

	_, ok = d.Matches([]string{ProfileBoolean})
	assert.False(t, ok)

	assert.False(t, d.GroupMatches([]string{ProfileNumber}))
	d.Props = append(d.Props, PropDef{Name: "values", IsArray: true, Updater: Identity(ir.Array{})})
	d.Group = &GroupDef{MembersProp: "values", Profile: ProfileNumber}
	assert.True(t, d.GroupMatches([]string{ProfileNumber}))
}

func TestIdentityUpdater(t *testing.T) {
	u := Identity(ir.String("dflt"))

	res, err := u.Calculate([]QueryResult{{}})
	require.NoError(t, err)
	assert.Equal(t, ir.String("dflt"), res.Value)
	assert.True(t, res.FromDefault)

	data := []QueryResult{{Values: []DataValue{{Value: ir.String("x")}}}}
	res, err = u.Calculate(data)
	require.NoError(t, err)
	assert.Equal(t, ir.String("x"), res.Value)
	assert.False(t, res.FromDefault)

	reqs, err := u.Invert(data, ir.String("y"))
	require.NoError(t, err)
	assert.Equal(t, []Request{{Query: 0, Index: 0, Value: ir.String("y")}}, reqs)

	_, err = u.Invert([]QueryResult{{}}, ir.String("y"))
	assert.ErrorIs(t, err, ErrNotInvertible)
}

func TestFuncsWithoutInverse(t *testing.T) {
	u := Funcs{Calc: func([]QueryResult) (Result, error) { return Result{Value: ir.Int(1)}, nil }}
	_, err := u.Invert(nil, ir.Int(2))
	assert.ErrorIs(t, err, ErrNotInvertible)
}
