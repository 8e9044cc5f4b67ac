// Package expr evaluates the small arithmetic and boolean expressions that
// number and boolean components are authored with. Expressions are Starlark
// expressions; the math module and a few constants are predeclared.
package expr

import (
	"errors"
	"fmt"
	"math"
	"strings"

	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/roach88/doccore/internal/ir"
)

// ErrEmpty is returned for an expression with no content.
var ErrEmpty = errors.New("empty expression")

// maxSteps bounds evaluation. Authored expressions have no loops, so this
// only trips on pathological input.
const maxSteps = 100_000

// Vars binds identifiers to values.
type Vars map[string]ir.Value

// Eval evaluates src with vars bound.
func Eval(src string, vars Vars) (ir.Value, error) {
	src = normalize(src)
	if src == "" {
		return nil, ErrEmpty
	}

	env := predeclared()
	for name, v := range vars {
		sv, err := toStarlark(v)
		if err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
		env[name] = sv
	}

	thread := &starlark.Thread{Name: "expr"}
	thread.SetMaxExecutionSteps(maxSteps)
	out, err := starlark.EvalOptions(&syntax.FileOptions{}, thread, "expr", src, env)
	if err != nil {
		return nil, err
	}
	return fromStarlark(out)
}

// EvalNumber evaluates src and coerces the result to a number.
func EvalNumber(src string, vars Vars) (float64, error) {
	v, err := Eval(src, vars)
	if err != nil {
		return math.NaN(), err
	}
	switch x := v.(type) {
	case ir.Bool:
		if x {
			return 1, nil
		}
		return 0, nil
	default:
		if f, ok := ir.AsFloat(v); ok {
			return f, nil
		}
	}
	return math.NaN(), fmt.Errorf("expression is %s, not a number", ir.KindOf(v))
}

// EvalBool evaluates src and coerces the result to a boolean using Starlark
// truthiness.
func EvalBool(src string, vars Vars) (bool, error) {
	v, err := Eval(src, vars)
	if err != nil {
		return false, err
	}
	sv, err := toStarlark(v)
	if err != nil {
		return false, err
	}
	return bool(sv.Truth()), nil
}

// normalize rewrites authoring conveniences into Starlark syntax.
func normalize(src string) string {
	src = strings.TrimSpace(src)
	src = strings.ReplaceAll(src, "\u00d7", "*")
	src = strings.ReplaceAll(src, "\u2212", "-")
	return src
}

func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"math":  starlarkmath.Module,
		"pi":    starlark.Float(math.Pi),
		"e":     starlark.Float(math.E),
		"true":  starlark.True,
		"false": starlark.False,
		"nan":   starlark.Float(math.NaN()),
	}
}

func toStarlark(v ir.Value) (starlark.Value, error) {
	switch x := v.(type) {
	case nil, ir.Null:
		return starlark.None, nil
	case ir.Bool:
		return starlark.Bool(x), nil
	case ir.Int:
		return starlark.MakeInt64(int64(x)), nil
	case ir.Number:
		return starlark.Float(x), nil
	case ir.String:
		return starlark.String(x), nil
	case ir.Array:
		elems := make([]starlark.Value, len(x))
		for i, e := range x {
			sv, err := toStarlark(e)
			if err != nil {
				return nil, err
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil
	case ir.Object:
		d := starlark.NewDict(len(x))
		for _, k := range x.SortedKeys() {
			sv, err := toStarlark(x[k])
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
}

func fromStarlark(v starlark.Value) (ir.Value, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return ir.Null{}, nil
	case starlark.Bool:
		return ir.Bool(x), nil
	case starlark.Int:
		if n, ok := x.Int64(); ok {
			return ir.Int(n), nil
		}
		f, _ := starlark.AsFloat(x)
		return ir.Number(f), nil
	case starlark.Float:
		return ir.Number(x), nil
	case starlark.String:
		return ir.String(x), nil
	case *starlark.List:
		out := make(ir.Array, x.Len())
		for i := range x.Len() {
			e, err := fromStarlark(x.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case starlark.Tuple:
		out := make(ir.Array, len(x))
		for i, e := range x {
			iv, err := fromStarlark(e)
			if err != nil {
				return nil, err
			}
			out[i] = iv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported starlark value %s", v.Type())
	}
}
