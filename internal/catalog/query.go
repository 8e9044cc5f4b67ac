package catalog

// DataQuery is a declarative description of what a prop depends on.
// The dependency compiler binds each query to concrete graph edges.
//
// Only the query types in this file implement DataQuery.
type DataQuery interface {
	dataQuery()
}

// State asks for independent storage backing the prop. When Prefill names
// an authored attribute, its content seeds the storage; otherwise the
// prop's declared default does.
type State struct {
	Prefill string
}

// Attribute asks for the content of a named attribute: explicit content,
// else content inherited from an extend source, else the declared default.
// Element nodes in the content are matched against Profiles.
type Attribute struct {
	Name     string
	Profiles []string
}

// Children asks for the children matching Profiles, in document order.
// Groups among the children contribute every member. With ParseExpression
// the text children are folded into one expression with a placeholder per
// matched element child.
type Children struct {
	Profiles        []string
	ParseExpression bool
}

// Self asks for another prop of the same component, or its array size.
type Self struct {
	Prop string
	Size bool
}

// Ancestor asks for the named prop of the nearest ancestor declaring it.
type Ancestor struct {
	Prop string
}

// Indexed asks for one member of the first child group satisfying Profile;
// the member's 1-based position is the value of this component's IndexProp.
type Indexed struct {
	Profile   string
	IndexProp string
}

// MapItem asks for the source value of the iteration this component
// belongs to.
type MapItem struct{}

func (State) dataQuery()     {}
func (Attribute) dataQuery() {}
func (Children) dataQuery()  {}
func (Self) dataQuery()      {}
func (Ancestor) dataQuery()  {}
func (Indexed) dataQuery()   {}
func (MapItem) dataQuery()   {}
