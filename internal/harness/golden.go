package harness

import (
	"math"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/doccore/internal/ir"
)

// Snapshot serializes a scenario result to canonical JSON: the initial and
// final render trees, the step trace, the essential state and the build
// errors. Non-finite numbers, which canonical JSON forbids, are written as
// the strings "NaN", "Infinity" and "-Infinity".
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make(ir.Array, len(result.Trace))
	for i, ev := range result.Trace {
		obj := ir.Object{
			"step":    ir.Int(ev.Step),
			"kind":    ir.String(ev.Kind),
			"outcome": ir.String(ev.Outcome),
		}
		if ev.Target != "" {
			obj["target"] = ir.String(ev.Target)
		}
		if ev.Detail != "" {
			obj["detail"] = ir.String(ev.Detail)
		}
		if len(ev.Updates) > 0 {
			obj["updates"] = ev.Updates
		}
		trace[i] = obj
	}
	buildErrors := ir.Array{}
	for _, e := range result.BuildErrors {
		buildErrors = append(buildErrors, ir.String(e))
	}
	state := result.State
	if state == nil {
		state = ir.Object{}
	}

	snap := ir.Object{
		"name":         ir.String(name),
		"initial":      result.Initial,
		"trace":        trace,
		"final":        result.Final,
		"state":        state,
		"build_errors": buildErrors,
	}
	return ir.MarshalCanonical(finite(snap))
}

// finite replaces non-finite numbers with their names.
func finite(v ir.Value) ir.Value {
	switch val := v.(type) {
	case ir.Number:
		f := float64(val)
		switch {
		case math.IsNaN(f):
			return ir.String("NaN")
		case math.IsInf(f, 1):
			return ir.String("Infinity")
		case math.IsInf(f, -1):
			return ir.String("-Infinity")
		}
		return val
	case ir.Array:
		out := make(ir.Array, len(val))
		for i, e := range val {
			out[i] = finite(e)
		}
		return out
	case ir.Object:
		out := make(ir.Object, len(val))
		for k, e := range val {
			out[k] = finite(e)
		}
		return out
	default:
		return v
	}
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
