package catalog

import "github.com/roach88/doccore/internal/ir"

// ActionContext gives an action handler read access to its component.
type ActionContext interface {
	// Value resolves one of the acting component's props.
	Value(prop string) (ir.Value, error)
}

// ActionRequest asks for one of the acting component's props to take Value.
type ActionRequest struct {
	Prop  string
	Value ir.Value
}

// ActionFunc handles a named action. It returns the prop updates to feed
// to inversion; it never mutates state itself.
type ActionFunc func(ctx ActionContext, args ir.Object) ([]ActionRequest, error)
