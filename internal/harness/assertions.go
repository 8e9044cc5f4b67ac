package harness

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/doccore/internal/document"
	"github.com/roach88/doccore/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Index    int
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertions[%d] failed: %s\n", e.Index, e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the document.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(doc *document.Document, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertValue:
			err = assertValue(doc, a)
		case AssertRender:
			err = assertRender(doc, a)
		case AssertBuildError:
			err = assertBuildError(doc, a)
		case AssertNoBuildErrors:
			err = assertNoBuildErrors(doc)
		case AssertState:
			err = assertState(doc, a)
		case AssertReference:
			err = assertReference(doc, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			var ae *AssertionError
			if errors.As(err, &ae) {
				ae.Index = i
				errs = append(errs, ae.Error())
				continue
			}
			errs = append(errs, fmt.Sprintf("assertions[%d] %s: %v", i, a.Type, err))
		}
	}
	return errs
}

func assertValue(doc *document.Document, a Assertion) error {
	want, err := ir.FromGo(a.Expect)
	if err != nil {
		return err
	}
	got, ok, err := doc.Value(a.Component, a.Prop)
	if err != nil {
		return err
	}
	if !ok {
		return &AssertionError{Type: a.Type, Expected: show(want), Actual: fmt.Sprintf("%s has no prop %q", a.Component, a.Prop)}
	}
	if !sameValue(want, got) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s.%s = %s", a.Component, a.Prop, show(want)), Actual: show(got)}
	}
	return nil
}

func assertRender(doc *document.Document, a Assertion) error {
	want, err := ir.FromGo(a.Expect)
	if err != nil {
		return err
	}
	tree, _ := doc.Render()
	node := findRendered(tree, a.Component)
	if node == nil {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s is rendered", a.Component), Actual: "not rendered"}
	}
	props, _ := node["props"].(ir.Object)
	for name, v := range want.(ir.Object) {
		if got, ok := props[name]; !ok || !sameValue(v, got) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s renders %s = %s", a.Component, name, show(v)),
				Actual:   show(props),
			}
		}
	}
	return nil
}

func assertBuildError(doc *document.Document, a Assertion) error {
	var seen []string
	for _, be := range doc.Errors() {
		seen = append(seen, be.Code)
		if be.Code != a.Code {
			continue
		}
		if a.Component == "" || doc.Alias(be.Component) == a.Component {
			return nil
		}
	}
	want := a.Code
	if a.Component != "" {
		want += " on " + a.Component
	}
	return &AssertionError{Type: a.Type, Expected: want, Actual: fmt.Sprintf("%v", seen)}
}

func assertNoBuildErrors(doc *document.Document) error {
	errs := doc.Errors()
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, be := range errs {
		msgs[i] = be.Error()
	}
	return &AssertionError{Type: AssertNoBuildErrors, Expected: "no build errors", Actual: strings.Join(msgs, "; ")}
}

func assertState(doc *document.Document, a Assertion) error {
	want, err := ir.FromGo(a.Expect)
	if err != nil {
		return err
	}
	if _, isNull := want.(ir.Null); isNull {
		want = ir.Object{}
	}
	got := doc.EssentialState()
	if !sameValue(want, got) {
		return &AssertionError{Type: a.Type, Expected: show(want), Actual: show(got)}
	}
	return nil
}

func assertReference(doc *document.Document, a Assertion) error {
	alias, prop, err := doc.Reference(a.Ref)
	if err != nil {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s resolves to %s", a.Ref, a.Component), Actual: err.Error()}
	}
	if alias != a.Component || prop != a.Prop {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s resolves to %s %q", a.Ref, a.Component, a.Prop),
			Actual:   fmt.Sprintf("%s %q", alias, prop),
		}
	}
	return nil
}

// findRendered returns the rendered node with the given alias.
func findRendered(node ir.Object, alias string) ir.Object {
	if node == nil {
		return nil
	}
	if node["alias"] == ir.String(alias) {
		return node
	}
	children, _ := node["children"].(ir.Array)
	for _, ch := range children {
		if obj, ok := ch.(ir.Object); ok {
			if found := findRendered(obj, alias); found != nil {
				return found
			}
		}
	}
	return nil
}

// sameValue compares by canonical JSON, so integral numbers match
// regardless of representation. Values without a canonical form (NaN)
// fall back to ir.Equal.
func sameValue(a, b ir.Value) bool {
	ca, errA := ir.MarshalCanonical(a)
	cb, errB := ir.MarshalCanonical(b)
	if errA != nil || errB != nil {
		return ir.Equal(a, b)
	}
	return bytes.Equal(ca, cb)
}

func show(v ir.Value) string {
	data, err := ir.MarshalValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
