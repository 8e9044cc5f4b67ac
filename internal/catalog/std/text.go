package std

import (
	"strings"

	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/ir"
)

func paragraph() *catalog.Definition {
	return &catalog.Definition{
		Tag: TagP,
		Props: []catalog.PropDef{{
			Name: "text", Type: catalog.TypeString, Public: true, ForRenderer: true,
			Queries: []catalog.DataQuery{catalog.Children{Profiles: textProfiles}},
			Updater: concatText(),
		}},
		Provides: []catalog.Provide{{Profile: catalog.ProfileText, Prop: "text"}},
	}
}

func text() *catalog.Definition {
	return &catalog.Definition{
		Tag: TagText,
		Props: []catalog.PropDef{{
			Name: "value", Type: catalog.TypeString, Public: true, ForRenderer: true, Default: ir.String(""),
			Queries: []catalog.DataQuery{catalog.Children{Profiles: textProfiles}},
			Updater: concatText(),
		}},
		Provides:   []catalog.Provide{{Profile: catalog.ProfileText, Prop: "value"}},
		ExtendProp: "value",
	}
}

// concatText joins the text of every value of the first query. It inverts
// only when exactly one value contributes.
func concatText() catalog.Updater {
	return catalog.Funcs{
		Calc: func(data []catalog.QueryResult) (catalog.Result, error) {
			if len(data) == 0 || len(data[0].Values) == 0 {
				return catalog.Result{Value: ir.String(""), FromDefault: true}, nil
			}
			var b strings.Builder
			fromDefault := true
			for _, v := range data[0].Values {
				b.WriteString(ir.Text(v.Value))
				fromDefault = fromDefault && v.FromDefault
			}
			return catalog.Result{Value: ir.String(b.String()), FromDefault: fromDefault}, nil
		},
		Inv: func(data []catalog.QueryResult, requested ir.Value) ([]catalog.Request, error) {
			if len(data) == 0 || len(data[0].Values) != 1 {
				return nil, catalog.ErrNotInvertible
			}
			return []catalog.Request{{Query: 0, Index: 0, Value: ir.String(ir.Text(requested))}}, nil
		},
	}
}

// textOf renders a sibling prop as text and parses text back into it.
func textOf(typ string) catalog.Updater {
	return catalog.Funcs{
		Calc: func(data []catalog.QueryResult) (catalog.Result, error) {
			v, ok := data[0].First()
			if !ok {
				return catalog.Result{Value: ir.String(""), FromDefault: true}, nil
			}
			return catalog.Result{Value: ir.String(ir.Text(v.Value)), FromDefault: v.FromDefault}, nil
		},
		Inv: func(data []catalog.QueryResult, requested ir.Value) ([]catalog.Request, error) {
			if _, ok := data[0].First(); !ok {
				return nil, catalog.ErrNotInvertible
			}
			return []catalog.Request{{Query: 0, Index: 0, Value: catalog.Parse(typ, ir.Text(requested))}}, nil
		},
	}
}

func textProp(typ string) catalog.PropDef {
	return catalog.PropDef{
		Name: "text", Type: catalog.TypeString, Public: true,
		Queries: []catalog.DataQuery{catalog.Self{Prop: "value"}},
		Updater: textOf(typ),
	}
}
