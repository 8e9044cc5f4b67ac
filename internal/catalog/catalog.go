// Package catalog describes component types: their props, attributes, data
// queries, calculation and inversion callbacks, and actions.
//
// The engine treats a catalog purely as data plus callbacks. It never looks
// inside an Updater to learn how a value is computed.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/doccore/internal/ir"
)

// ErrorTag is the tag of the inert placeholder that replaces a component
// that failed to build.
const ErrorTag = "_error"

// Components a composite generates for each repetition of its template.
const (
	IterationTag = "iteration"
	ItemTag      = "item"

	// ItemNameProp is the composite prop naming the generated item.
	ItemNameProp    = "itemName"
	DefaultItemName = "v"
)

// Value types a prop may declare.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInt     = "int"
	TypeBoolean = "boolean"
	TypeAny     = "any"
)

// Common capability profiles.
const (
	ProfileText    = "text"
	ProfileNumber  = "number"
	ProfileBoolean = "boolean"
)

// Definition describes one component type.
type Definition struct {
	Tag        string
	Props      []PropDef
	Attributes []AttributeDef

	// Group is set when the component expands into a variable number of
	// effective members.
	Group *GroupDef

	// Provides maps a capability profile to the prop that satisfies it.
	Provides []Provide

	Actions map[string]ActionFunc

	// ChildrenInvisible hides descendant names from this component's ancestors.
	ChildrenInvisible bool

	// ExtendProp is the prop that shadows the source when this component
	// extends another component's prop ($x.value).
	ExtendProp string

	// Composite components have generated children (map iterations).
	Composite bool

	// SourcesProp is the array prop a composite iterates over. MapItem
	// queries below the composite read its elements.
	SourcesProp string

	// Hidden components are never rendered.
	Hidden bool

	// RendererType overrides Tag in rendered output.
	RendererType string
}

// GroupDef names the array prop holding a group's members.
type GroupDef struct {
	MembersProp string
	Profile     string
}

// Provide binds a capability profile to a prop.
type Provide struct {
	Profile string
	Prop    string
}

// AttributeDef declares an attribute and its default.
type AttributeDef struct {
	Name    string
	Default ir.Value
}

// PropDef declares a prop.
type PropDef struct {
	Name string
	Type string

	// Public props can be referenced ($x.name) and extended.
	Public bool

	// ForRenderer props are projected into rendered output.
	ForRenderer bool

	IsArray bool
	Default ir.Value
	Queries []DataQuery
	Updater Updater
}

// Prop returns the named prop definition.
func (d *Definition) Prop(name string) (*PropDef, bool) {
	for i := range d.Props {
		if d.Props[i].Name == name {
			return &d.Props[i], true
		}
	}
	return nil, false
}

// Attribute returns the named attribute definition.
func (d *Definition) Attribute(name string) (*AttributeDef, bool) {
	for i := range d.Attributes {
		if d.Attributes[i].Name == name {
			return &d.Attributes[i], true
		}
	}
	return nil, false
}

// ProvidedProp returns the prop satisfying profile, if any.
func (d *Definition) ProvidedProp(profile string) (string, bool) {
	for _, p := range d.Provides {
		if p.Profile == profile {
			return p.Prop, true
		}
	}
	return "", false
}

// Matches returns the first profile in profiles this definition provides,
// along with the providing prop.
func (d *Definition) Matches(profiles []string) (string, bool) {
	for _, profile := range profiles {
		if prop, ok := d.ProvidedProp(profile); ok {
			return prop, true
		}
	}
	return "", false
}

// GroupMatches reports whether d is a group whose members satisfy one of profiles.
func (d *Definition) GroupMatches(profiles []string) bool {
	if d.Group == nil {
		return false
	}
	for _, p := range profiles {
		if p == d.Group.Profile {
			return true
		}
	}
	return false
}

// Renderer returns the renderer type.
func (d *Definition) Renderer() string {
	if d.RendererType != "" {
		return d.RendererType
	}
	return d.Tag
}

// Catalog is a registry of definitions keyed by tag.
type Catalog struct {
	defs map[string]*Definition
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{defs: make(map[string]*Definition)}
}

// Register adds a definition. Returns an error on a duplicate tag or an
// inconsistent definition.
func (c *Catalog) Register(def *Definition) error {
	if def.Tag == "" {
		return errors.New("definition has no tag")
	}
	if _, exists := c.defs[def.Tag]; exists {
		return fmt.Errorf("duplicate definition for tag %q", def.Tag)
	}
	if err := def.validate(); err != nil {
		return fmt.Errorf("definition %q: %w", def.Tag, err)
	}
	c.defs[def.Tag] = def
	return nil
}

// MustRegister is like Register but panics on error.
func (c *Catalog) MustRegister(defs ...*Definition) {
	for _, def := range defs {
		if err := c.Register(def); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the definition for tag.
func (c *Catalog) Lookup(tag string) (*Definition, bool) {
	def, ok := c.defs[tag]
	return def, ok
}

// Tags returns registered tags in sorted order.
func (c *Catalog) Tags() []string {
	tags := make([]string, 0, len(c.defs))
	for t := range c.defs {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

func (d *Definition) validate() error {
	seen := make(map[string]bool, len(d.Props))
	for _, p := range d.Props {
		if seen[p.Name] {
			return fmt.Errorf("duplicate prop %q", p.Name)
		}
		seen[p.Name] = true
		if p.Updater == nil {
			return fmt.Errorf("prop %q has no updater", p.Name)
		}
	}
	for _, p := range d.Provides {
		if !seen[p.Prop] {
			return fmt.Errorf("profile %q provided by unknown prop %q", p.Profile, p.Prop)
		}
	}
	if d.Group != nil {
		prop, ok := d.Prop(d.Group.MembersProp)
		if !ok || !prop.IsArray {
			return fmt.Errorf("group members prop %q must be a declared array prop", d.Group.MembersProp)
		}
	}
	if d.SourcesProp != "" && !seen[d.SourcesProp] {
		return fmt.Errorf("sources prop %q is not declared", d.SourcesProp)
	}
	if d.ExtendProp != "" && !seen[d.ExtendProp] {
		return fmt.Errorf("extend prop %q is not declared", d.ExtendProp)
	}
	return nil
}
