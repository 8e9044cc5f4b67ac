// Package deps turns declarative data queries into concrete dependency
// edges, allocating essential storage when a prop has no upstream source.
package deps

import "fmt"

// Part selects which view of a prop a slot holds.
type Part int

const (
	// PartWhole is the prop's value (the whole array for array props).
	PartWhole Part = iota
	// PartSize is the length of an array prop.
	PartSize
	// PartElement is one element of an array prop.
	PartElement
)

// SlotKey names one prop slot. Element is 0-based and only meaningful
// for PartElement.
type SlotKey struct {
	Component int
	Prop      string
	Part      Part
	Element   int
}

// Whole returns the whole-value slot of a prop.
func Whole(component int, prop string) SlotKey {
	return SlotKey{Component: component, Prop: prop}
}

// Size returns the size slot of an array prop.
func Size(component int, prop string) SlotKey {
	return SlotKey{Component: component, Prop: prop, Part: PartSize}
}

// Element returns the slot of element i (0-based) of an array prop.
func Element(component int, prop string, i int) SlotKey {
	return SlotKey{Component: component, Prop: prop, Part: PartElement, Element: i}
}

// WholeKey returns the whole slot of the same prop.
func (k SlotKey) WholeKey() SlotKey {
	return Whole(k.Component, k.Prop)
}

func (k SlotKey) String() string {
	switch k.Part {
	case PartSize:
		return fmt.Sprintf("%d.%s#size", k.Component, k.Prop)
	case PartElement:
		return fmt.Sprintf("%d.%s[%d]", k.Component, k.Prop, k.Element)
	default:
		return fmt.Sprintf("%d.%s", k.Component, k.Prop)
	}
}

// EssentialKey names a piece of essential data: the owning component and
// an origin tag ("prop:value", "child:0", "attr:from:0", "expr").
type EssentialKey struct {
	Component int
	Origin    string
}

func (k EssentialKey) String() string {
	return fmt.Sprintf("%d/%s", k.Component, k.Origin)
}

// Dependency is a closed tagged variant. Only the types below implement it.
type Dependency interface {
	dependency()
}

// Essential reads independent storage. Text marks storage seeded from
// authored text.
type Essential struct {
	Key  EssentialKey
	Text bool
}

// Prop reads another prop slot. Shadow marks the prop a component merely
// copies; inversion forwards requests to it untouched.
type Prop struct {
	Slot   SlotKey
	Shadow bool
}

// Collection reads every member of a group. Members is the whole slot of
// the group's members prop; its size decides how many members there are.
type Collection struct {
	Group   int
	Members SlotKey
}

// MapSource reads the source value for one iteration of a composite.
type MapSource struct {
	Map       int
	Prop      string
	Iteration int
}

// DynamicIndex reads the element of Array whose 1-based position is the
// value of Index.
type DynamicIndex struct {
	Array SlotKey
	Index SlotKey
}

// UndeterminedChildren reads whatever children of a composite match
// Profiles when resolution happens.
type UndeterminedChildren struct {
	Component int
	Profiles  []string
}

func (Essential) dependency()            {}
func (Prop) dependency()                 {}
func (Collection) dependency()           {}
func (MapSource) dependency()            {}
func (DynamicIndex) dependency()         {}
func (UndeterminedChildren) dependency() {}

// Instruction holds the dependencies compiled from one data query.
type Instruction struct {
	Deps []Dependency
}

// CompileError reports a query that cannot be bound.
type CompileError struct {
	Component int
	Prop      string
	Message   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("component %d prop %q: %s", e.Component, e.Prop, e.Message)
}
