package std

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/deps"
	"github.com/roach88/doccore/internal/expr"
	"github.com/roach88/doccore/internal/ir"
)

var placeholderRE = regexp.MustCompile(`_s(\d+)`)

func number() *catalog.Definition {
	return &catalog.Definition{
		Tag: TagNumber,
		Props: []catalog.PropDef{
			{
				Name: "value", Type: catalog.TypeNumber, Public: true, ForRenderer: true, Default: ir.Number(math.NaN()),
				Queries: []catalog.DataQuery{catalog.Children{Profiles: numberProfiles, ParseExpression: true}},
				Updater: numericExpression(),
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

func boolean() *catalog.Definition {
	return &catalog.Definition{
		Tag: TagBoolean,
		Props: []catalog.PropDef{
			{
				Name: "value", Type: catalog.TypeBoolean, Public: true, ForRenderer: true, Default: ir.Bool(false),
				Queries: []catalog.DataQuery{catalog.Children{Profiles: booleanProfiles, ParseExpression: true}},
				Updater: booleanExpression(),
			},
			textProp(catalog.TypeBoolean),
		},
		Provides: []catalog.Provide{
			{Profile: catalog.ProfileBoolean, Prop: "value"},
			{Profile: catalog.ProfileText, Prop: "text"},
		},
		ExtendProp: "value",
	}
}

// expression splits an expression query into its source and its bound
// placeholders. The first value is the folded expression text; the rest
// are grouped by the dependency that produced them.
func expression(data []catalog.QueryResult) (src string, vars expr.Vars, ok bool) {
	if len(data) == 0 || len(data[0].Values) == 0 || !data[0].Values[0].Text {
		return "", nil, false
	}
	vals := data[0].Values
	src = ir.Text(vals[0].Value)

	grouped := make(map[int][]ir.Value)
	for _, v := range vals[1:] {
		grouped[v.Dep] = append(grouped[v.Dep], v.Value)
	}

	vars = make(expr.Vars)
	for _, m := range placeholderRE.FindAllStringSubmatch(src, -1) {
		k, _ := strconv.Atoi(m[1])
		switch vs := grouped[k+1]; len(vs) {
		case 0:
			vars[m[0]] = ir.Number(math.NaN())
		case 1:
			vars[m[0]] = vs[0]
		default:
			vars[m[0]] = ir.Array(vs)
		}
	}
	return src, vars, true
}

// isLiteral reports whether an expression has no element children.
func isLiteral(src string) bool {
	return !placeholderRE.MatchString(src)
}

// isSinglePlaceholder reports whether src is exactly one element child.
func isSinglePlaceholder(src string, data []catalog.QueryResult) bool {
	return strings.TrimSpace(src) == deps.Placeholder(0) && len(data[0].Values) == 2
}

// numericExpression evaluates the children as an arithmetic expression.
// A malformed expression yields NaN rather than an error.
func numericExpression() catalog.Updater {
	return catalog.Funcs{
		Calc: func(data []catalog.QueryResult) (catalog.Result, error) {
			src, vars, ok := expression(data)
			if !ok {
				return catalog.Result{Value: ir.Number(math.NaN()), FromDefault: true}, nil
			}
			if isSinglePlaceholder(src, data) {
				v := data[0].Values[1]
				return catalog.Result{Value: v.Value, FromDefault: v.FromDefault}, nil
			}
			f, err := expr.EvalNumber(src, vars)
			if err != nil {
				slog.Debug("expression is not a number", "expr", src, "error", err)
				return catalog.Result{Value: ir.Number(math.NaN())}, nil
			}
			return catalog.Result{Value: ir.Number(f)}, nil
		},
		Inv: func(data []catalog.QueryResult, requested ir.Value) ([]catalog.Request, error) {
			src, _, ok := expression(data)
			if !ok {
				return nil, catalog.ErrNotInvertible
			}
			f, isNum := ir.AsFloat(catalog.Convert(catalog.TypeNumber, requested))
			if !isNum {
				return nil, catalog.ErrNotInvertible
			}
			switch {
			case isSinglePlaceholder(src, data):
				return []catalog.Request{{Query: 0, Index: 1, Value: ir.Number(f)}}, nil
			case isLiteral(src):
				return []catalog.Request{{Query: 0, Index: 0, Value: ir.String(ir.FormatNumber(f))}}, nil
			}
			return nil, catalog.ErrNotInvertible
		},
	}
}

// booleanExpression evaluates the children as a boolean expression.
func booleanExpression() catalog.Updater {
	return catalog.Funcs{
		Calc: func(data []catalog.QueryResult) (catalog.Result, error) {
			src, vars, ok := expression(data)
			if !ok || strings.TrimSpace(src) == "" {
				return catalog.Result{Value: ir.Bool(false), FromDefault: true}, nil
			}
			b, err := expr.EvalBool(src, vars)
			if err != nil {
				slog.Debug("expression is not a boolean", "expr", src, "error", err)
				return catalog.Result{Value: ir.Bool(false)}, nil
			}
			return catalog.Result{Value: ir.Bool(b)}, nil
		},
		Inv: func(data []catalog.QueryResult, requested ir.Value) ([]catalog.Request, error) {
			src, _, ok := expression(data)
			if !ok {
				return nil, catalog.ErrNotInvertible
			}
			b := catalog.Convert(catalog.TypeBoolean, requested)
			switch {
			case isSinglePlaceholder(src, data):
				return []catalog.Request{{Query: 0, Index: 1, Value: b}}, nil
			case isLiteral(src):
				return []catalog.Request{{Query: 0, Index: 0, Value: ir.String(ir.Text(b))}}, nil
			}
			return nil, catalog.ErrNotInvertible
		},
	}
}

// numericAttribute reads a number from an attribute: authored text is an
// expression, anything else converts directly.
func numericAttribute(def float64) catalog.Updater {
	return catalog.Funcs{
		Calc: func(data []catalog.QueryResult) (catalog.Result, error) {
			vals := data[0].Values
			if len(vals) == 0 {
				return catalog.Result{Value: ir.Number(def), FromDefault: true}, nil
			}
			if len(vals) == 1 && !vals[0].Text {
				return catalog.Result{Value: vals[0].Value, FromDefault: vals[0].FromDefault}, nil
			}
			var src strings.Builder
			for _, v := range vals {
				src.WriteString(ir.Text(v.Value))
			}
			f, err := expr.EvalNumber(src.String(), nil)
			if err != nil {
				slog.Debug("attribute is not a number", "text", src.String(), "error", err)
			}
			return catalog.Result{Value: ir.Number(f)}, nil
		},
		Inv: func(data []catalog.QueryResult, requested ir.Value) ([]catalog.Request, error) {
			vals := data[0].Values
			if len(vals) != 1 {
				return nil, catalog.ErrNotInvertible
			}
			if vals[0].Text {
				return []catalog.Request{{Query: 0, Index: 0, Value: ir.String(ir.Text(requested))}}, nil
			}
			return []catalog.Request{{Query: 0, Index: 0, Value: requested}}, nil
		},
	}
}
