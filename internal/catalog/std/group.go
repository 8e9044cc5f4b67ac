package std

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/ir"
)

// maxSequenceLength caps generated sequences.
const maxSequenceLength = 10_000

func countProp() catalog.PropDef {
	return catalog.PropDef{
		Name: "count", Type: catalog.TypeInt, Public: true,
		Queries: []catalog.DataQuery{catalog.Self{Prop: "values", Size: true}},
		Updater: catalog.Identity(ir.Int(0)),
	}
}

func numericAttr(name string, def float64) catalog.PropDef {
	return catalog.PropDef{
		Name: name, Type: catalog.TypeNumber, Public: true, Default: ir.Number(def),
		Queries: []catalog.DataQuery{catalog.Attribute{Name: name, Profiles: numberProfiles}},
		Updater: numericAttribute(def),
	}
}

func sequence() *catalog.Definition {
	return &catalog.Definition{
		Tag:   TagSequence,
		Group: &catalog.GroupDef{MembersProp: "values", Profile: catalog.ProfileNumber},
		Attributes: []catalog.AttributeDef{
			{Name: "from", Default: ir.Int(1)},
			{Name: "to", Default: ir.Int(1)},
			{Name: "step", Default: ir.Int(1)},
		},
		Props: []catalog.PropDef{
			numericAttr("from", 1),
			numericAttr("to", 1),
			numericAttr("step", 1),
			{
				Name: "values", Type: catalog.TypeNumber, IsArray: true, Public: true, ForRenderer: true,
				Queries: []catalog.DataQuery{
					catalog.Self{Prop: "from"},
					catalog.Self{Prop: "to"},
					catalog.Self{Prop: "step"},
				},
				Updater: catalog.Funcs{Calc: calcSequence},
			},
			countProp(),
		},
	}
}

func calcSequence(data []catalog.QueryResult) (catalog.Result, error) {
	get := func(q int) float64 {
		v, ok := data[q].First()
		if !ok {
			return math.NaN()
		}
		f, _ := ir.AsFloat(v.Value)
		return f
	}
	from, to, step := get(0), get(1), get(2)
	out := ir.Array{}
	if math.IsNaN(from) || math.IsNaN(to) || math.IsNaN(step) || step == 0 {
		return catalog.Result{Value: out}, nil
	}
	for x := from; (step > 0 && x <= to) || (step < 0 && x >= to); x += step {
		if len(out) >= maxSequenceLength {
			break
		}
		out = append(out, ir.Number(x))
	}
	return catalog.Result{Value: out}, nil
}

func numberList() *catalog.Definition {
	return &catalog.Definition{
		Tag:   TagNumberList,
		Group: &catalog.GroupDef{MembersProp: "values", Profile: catalog.ProfileNumber},
		Props: []catalog.PropDef{
			{
				Name: "values", Type: catalog.TypeNumber, IsArray: true, Public: true, ForRenderer: true,
				Queries: []catalog.DataQuery{catalog.Children{Profiles: numberProfiles}},
				Updater: tokenArray(catalog.TypeNumber),
			},
			countProp(),
		},
	}
}

// origin records which dependency value produced an array element.
type origin struct {
	value int
	text  bool

	// spread marks elements of an array-valued dependency, which cannot be
	// written back one at a time.
	spread bool
}

func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == ',' })
}

func parseToken(typ, tok string) ir.Value {
	if typ != catalog.TypeAny {
		return catalog.Parse(typ, tok)
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return ir.Number(f)
	}
	return ir.String(tok)
}

// flatten lays the values of one query out as array elements. Text splits
// on whitespace and commas; arrays spread.
func flatten(typ string, vals []catalog.DataValue) (ir.Array, []origin) {
	out := ir.Array{}
	var origins []origin
	for vi, v := range vals {
		switch {
		case v.Text:
			for _, tok := range tokens(ir.Text(v.Value)) {
				out = append(out, parseToken(typ, tok))
				origins = append(origins, origin{value: vi, text: true})
			}
		case isArray(v.Value):
			for _, x := range v.Value.(ir.Array) {
				out = append(out, catalog.Convert(typ, x))
				origins = append(origins, origin{value: vi, spread: true})
			}
		default:
			out = append(out, catalog.Convert(typ, v.Value))
			origins = append(origins, origin{value: vi})
		}
	}
	return out, origins
}

func isArray(v ir.Value) bool {
	_, ok := v.(ir.Array)
	return ok
}

// tokenArray collects the first query into an array. Inversion writes each
// changed element back to the value that produced it; a text piece is
// rewritten whole from its elements.
func tokenArray(typ string) catalog.Updater {
	return catalog.Funcs{
		Calc: func(data []catalog.QueryResult) (catalog.Result, error) {
			arr, _ := flatten(typ, data[0].Values)
			return catalog.Result{Value: arr}, nil
		},
		Inv: func(data []catalog.QueryResult, requested ir.Value) ([]catalog.Request, error) {
			cur, origins := flatten(typ, data[0].Values)
			req, ok := requested.(ir.Array)
			if !ok || len(req) != len(cur) {
				return nil, catalog.ErrNotInvertible
			}

			var reqs []catalog.Request
			pieces := make(map[int][]string)
			rewrite := make(map[int]bool)
			for i, o := range origins {
				changed := !ir.Equal(req[i], cur[i])
				switch {
				case o.text:
					pieces[o.value] = append(pieces[o.value], ir.Text(req[i]))
					rewrite[o.value] = rewrite[o.value] || changed
				case !changed:
				case o.spread:
					return nil, catalog.ErrNotInvertible
				default:
					reqs = append(reqs, catalog.Request{Query: 0, Index: o.value, Value: req[i]})
				}
			}
			for vi := range data[0].Values {
				if rewrite[vi] {
					reqs = append(reqs, catalog.Request{Query: 0, Index: vi, Value: ir.String(strings.Join(pieces[vi], " "))})
				}
			}
			return reqs, nil
		},
	}
}

func pick() *catalog.Definition {
	return &catalog.Definition{
		Tag:        TagPick,
		Attributes: []catalog.AttributeDef{{Name: "index", Default: ir.Int(1)}},
		Props: []catalog.PropDef{
			{
				Name: "index", Type: catalog.TypeInt, Public: true,
				Queries: []catalog.DataQuery{catalog.Attribute{Name: "index", Profiles: numberProfiles}},
				Updater: numericAttribute(1),
			},
			{
				Name: "value", Type: catalog.TypeNumber, Public: true, ForRenderer: true, Default: ir.Number(math.NaN()),
				Queries: []catalog.DataQuery{catalog.Indexed{Profile: catalog.ProfileNumber, IndexProp: "index"}},
				Updater: catalog.Identity(ir.Number(math.NaN())),
			},
			textProp(catalog.TypeNumber),
		},
		Provides: []catalog.Provide{
			{Profile: catalog.ProfileNumber, Prop: "value"},
			{Profile: catalog.ProfileText, Prop: "text"},
		},
		ExtendProp: "value",
	}
}

// selectDef shows one of its children. Names inside a select are invisible
// to its ancestors, so references must go through the select's name.
func selectDef() *catalog.Definition {
	return &catalog.Definition{
		Tag:               TagSelect,
		ChildrenInvisible: true,
		Attributes:        []catalog.AttributeDef{{Name: "index", Default: ir.Int(1)}},
		Props: []catalog.PropDef{
			{
				Name: "index", Type: catalog.TypeInt, Public: true,
				Queries: []catalog.DataQuery{catalog.Attribute{Name: "index", Profiles: numberProfiles}},
				Updater: numericAttribute(1),
			},
			{
				Name: "value", Type: catalog.TypeAny, Public: true, ForRenderer: true, Default: ir.Null{},
				Queries: []catalog.DataQuery{
					catalog.Children{Profiles: anyProfiles},
					catalog.Self{Prop: "index"},
				},
				Updater: catalog.Funcs{Calc: calcSelect, Inv: invertSelect},
			},
		},
		Provides: []catalog.Provide{
			{Profile: catalog.ProfileNumber, Prop: "value"},
			{Profile: catalog.ProfileText, Prop: "value"},
		},
		ExtendProp: "value",
	}
}

// options returns the positions of values that count as choices:
// whitespace-only text between elements does not.
func options(vals []catalog.DataValue) []int {
	var out []int
	for i, v := range vals {
		if v.Text && strings.TrimSpace(ir.Text(v.Value)) == "" {
			continue
		}
		out = append(out, i)
	}
	return out
}

func selected(data []catalog.QueryResult) (int, bool) {
	opts := options(data[0].Values)
	v, ok := data[1].First()
	if !ok {
		return 0, false
	}
	f, _ := ir.AsFloat(v.Value)
	i := int(math.Round(f))
	if math.IsNaN(f) || i < 1 || i > len(opts) {
		return 0, false
	}
	return opts[i-1], true
}

func calcSelect(data []catalog.QueryResult) (catalog.Result, error) {
	idx, ok := selected(data)
	if !ok {
		return catalog.Result{Value: ir.Null{}, FromDefault: true}, nil
	}
	v := data[0].Values[idx]
	if v.Text {
		return catalog.Result{Value: ir.String(strings.TrimSpace(ir.Text(v.Value))), FromDefault: v.FromDefault}, nil
	}
	return catalog.Result{Value: v.Value, FromDefault: v.FromDefault}, nil
}

func invertSelect(data []catalog.QueryResult, requested ir.Value) ([]catalog.Request, error) {
	idx, ok := selected(data)
	if !ok {
		return nil, catalog.ErrNotInvertible
	}
	if data[0].Values[idx].Text {
		requested = ir.String(ir.Text(requested))
	}
	return []catalog.Request{{Query: 0, Index: idx, Value: requested}}, nil
}
