package catalog

import (
	"math"
	"strconv"
	"strings"

	"github.com/roach88/doccore/internal/ir"
)

// Parse converts authored text to a value of the given prop type.
// Unparseable numbers become NaN and unparseable booleans false, matching
// how expressions treat malformed input.
func Parse(typ, text string) ir.Value {
	text = strings.TrimSpace(text)
	switch typ {
	case TypeNumber:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return ir.Number(math.NaN())
		}
		return ir.Number(f)
	case TypeInt:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return ir.Int(0)
		}
		return ir.Int(n)
	case TypeBoolean:
		return ir.Bool(strings.EqualFold(text, "true"))
	default:
		return ir.String(text)
	}
}

// Convert coerces v to the given prop type.
func Convert(typ string, v ir.Value) ir.Value {
	switch typ {
	case TypeNumber:
		if f, ok := ir.AsFloat(v); ok {
			return ir.Number(f)
		}
		if b, ok := v.(ir.Bool); ok {
			if b {
				return ir.Number(1)
			}
			return ir.Number(0)
		}
		return Parse(typ, ir.Text(v))
	case TypeInt:
		if f, ok := ir.AsFloat(v); ok && !math.IsNaN(f) {
			return ir.Int(int64(math.Round(f)))
		}
		return Parse(typ, ir.Text(v))
	case TypeBoolean:
		switch x := v.(type) {
		case ir.Bool:
			return x
		case ir.Number, ir.Int:
			f, _ := ir.AsFloat(x)
			return ir.Bool(f != 0 && !math.IsNaN(f))
		}
		return Parse(typ, ir.Text(v))
	case TypeString:
		if s, ok := v.(ir.String); ok {
			return s
		}
		return ir.String(ir.Text(v))
	default:
		return v
	}
}

// TagForType returns the tag a reference to a prop of typ becomes when the
// authored node leaves its tag implicit.
func TagForType(typ string) string {
	switch typ {
	case TypeNumber, TypeInt:
		return "number"
	case TypeBoolean:
		return "boolean"
	default:
		return "text"
	}
}
