package std

import (
	"fmt"

	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/ir"
)

// Action names.
const (
	ActionUpdateValue = "updateValue"
	ActionToggle      = "toggle"
)

func labelProp() catalog.PropDef {
	return catalog.PropDef{
		Name: "label", Type: catalog.TypeString, ForRenderer: true,
		Queries: []catalog.DataQuery{catalog.Attribute{Name: "label", Profiles: textProfiles}},
		Updater: concatText(),
	}
}

// stateValue is the value prop of an input: essential state prefilled from
// an attribute.
func stateValue(typ, prefill string, def ir.Value) catalog.PropDef {
	return catalog.PropDef{
		Name: "value", Type: typ, Public: true, ForRenderer: true, Default: def,
		Queries: []catalog.DataQuery{catalog.State{Prefill: prefill}},
		Updater: catalog.Identity(def),
	}
}

// updateValue returns an action that sets value from args[arg].
func updateValue(typ, arg string) catalog.ActionFunc {
	return func(_ catalog.ActionContext, args ir.Object) ([]catalog.ActionRequest, error) {
		v, ok := args[arg]
		if !ok {
			return nil, fmt.Errorf("missing argument %q", arg)
		}
		if s, isText := v.(ir.String); isText {
			v = catalog.Parse(typ, string(s))
		}
		return []catalog.ActionRequest{{Prop: "value", Value: catalog.Convert(typ, v)}}, nil
	}
}

func textInput() *catalog.Definition {
	return &catalog.Definition{
		Tag: TagTextInput,
		Attributes: []catalog.AttributeDef{
			{Name: "prefill", Default: ir.String("")},
			{Name: "label", Default: ir.String("")},
		},
		Props: []catalog.PropDef{
			stateValue(catalog.TypeString, "prefill", ir.String("")),
			labelProp(),
		},
		Provides:   []catalog.Provide{{Profile: catalog.ProfileText, Prop: "value"}},
		Actions:    map[string]catalog.ActionFunc{ActionUpdateValue: updateValue(catalog.TypeString, "text")},
		ExtendProp: "value",
	}
}

func numberInput() *catalog.Definition {
	return &catalog.Definition{
		Tag: TagNumberInput,
		Attributes: []catalog.AttributeDef{
			{Name: "value", Default: ir.Null{}},
			{Name: "label", Default: ir.String("")},
		},
		Props: []catalog.PropDef{
			stateValue(catalog.TypeNumber, "value", ir.Number(0)),
			textProp(catalog.TypeNumber),
			labelProp(),
		},
		Provides: []catalog.Provide{
			{Profile: catalog.ProfileNumber, Prop: "value"},
			{Profile: catalog.ProfileText, Prop: "text"},
		},
		Actions:    map[string]catalog.ActionFunc{ActionUpdateValue: updateValue(catalog.TypeNumber, "value")},
		ExtendProp: "value",
	}
}

func booleanInput() *catalog.Definition {
	return &catalog.Definition{
		Tag: TagBooleanInput,
		Attributes: []catalog.AttributeDef{
			{Name: "value", Default: ir.Null{}},
			{Name: "label", Default: ir.String("")},
		},
		Props: []catalog.PropDef{
			stateValue(catalog.TypeBoolean, "value", ir.Bool(false)),
			textProp(catalog.TypeBoolean),
			labelProp(),
		},
		Provides: []catalog.Provide{
			{Profile: catalog.ProfileBoolean, Prop: "value"},
			{Profile: catalog.ProfileText, Prop: "text"},
		},
		Actions: map[string]catalog.ActionFunc{
			ActionUpdateValue: updateValue(catalog.TypeBoolean, "value"),
			ActionToggle:      toggle,
		},
		ExtendProp: "value",
	}
}

func toggle(ctx catalog.ActionContext, _ ir.Object) ([]catalog.ActionRequest, error) {
	v, err := ctx.Value("value")
	if err != nil {
		return nil, err
	}
	b, _ := catalog.Convert(catalog.TypeBoolean, v).(ir.Bool)
	return []catalog.ActionRequest{{Prop: "value", Value: !b}}, nil
}
