// Package std is the standard component catalog: text and paragraphs,
// numbers and booleans built from expressions, inputs holding user state,
// groups (sequences and lists), dynamic selection, and the map composite
// that repeats a template once per source item.
package std

import (
	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/ir"
)

// Tags of the built-in components.
const (
	TagDocument     = "document"
	TagSection      = "section"
	TagP            = "p"
	TagText         = "text"
	TagNumber       = "number"
	TagBoolean      = "boolean"
	TagTextInput    = "textInput"
	TagNumberInput  = "numberInput"
	TagBooleanInput = "booleanInput"
	TagSequence     = "sequence"
	TagNumberList   = "numberList"
	TagPick         = "pick"
	TagMap          = "map"
	TagIteration    = catalog.IterationTag
	TagItem         = catalog.ItemTag
	TagSelect       = "select"
)

// Map attribute names.
const (
	AttrFor      = "for"
	AttrItemName = catalog.ItemNameProp

	// DefaultItemName names the generated item when a map does not say.
	DefaultItemName = catalog.DefaultItemName
)

var (
	textProfiles    = []string{catalog.ProfileText}
	numberProfiles  = []string{catalog.ProfileNumber}
	booleanProfiles = []string{catalog.ProfileBoolean, catalog.ProfileNumber}
	anyProfiles     = []string{catalog.ProfileNumber, catalog.ProfileText, catalog.ProfileBoolean}
)

// New returns a catalog holding every standard definition.
func New() *catalog.Catalog {
	c := catalog.New()
	Register(c)
	return c
}

// Register adds the standard definitions to c.
func Register(c *catalog.Catalog) {
	c.MustRegister(
		container(TagDocument, false),
		container(TagSection, true),
		paragraph(),
		text(),
		number(),
		boolean(),
		textInput(),
		numberInput(),
		booleanInput(),
		sequence(),
		numberList(),
		pick(),
		mapDef(),
		iteration(),
		item(),
		selectDef(),
		errorDef(),
	)
}

// container is a titled block whose children render on their own.
func container(tag string, public bool) *catalog.Definition {
	return &catalog.Definition{
		Tag:        tag,
		Attributes: []catalog.AttributeDef{{Name: "title", Default: ir.String("")}},
		Props: []catalog.PropDef{{
			Name: "title", Type: catalog.TypeString, Public: public, ForRenderer: true,
			Queries: []catalog.DataQuery{catalog.Attribute{Name: "title", Profiles: textProfiles}},
			Updater: concatText(),
		}},
	}
}

func errorDef() *catalog.Definition {
	return &catalog.Definition{
		Tag:        catalog.ErrorTag,
		Attributes: []catalog.AttributeDef{{Name: "message", Default: ir.String("")}, {Name: "code", Default: ir.String("")}},
		Props: []catalog.PropDef{
			{
				Name: "message", Type: catalog.TypeString, ForRenderer: true,
				Queries: []catalog.DataQuery{catalog.Attribute{Name: "message"}},
				Updater: concatText(),
			},
			{
				Name: "code", Type: catalog.TypeString, ForRenderer: true,
				Queries: []catalog.DataQuery{catalog.Attribute{Name: "code"}},
				Updater: concatText(),
			},
		},
	}
}
