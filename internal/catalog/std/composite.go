package std

import (
	"github.com/roach88/doccore/internal/catalog"
	"github.com/roach88/doccore/internal/ir"
)

// mapDef repeats its template once per source item. The sources come from
// the for attribute, which may mix authored tokens with element children.
func mapDef() *catalog.Definition {
	return &catalog.Definition{
		Tag:         TagMap,
		Composite:   true,
		SourcesProp: "sources",
		Attributes: []catalog.AttributeDef{
			{Name: AttrFor, Default: ir.Array{}},
			{Name: AttrItemName, Default: ir.String(DefaultItemName)},
		},
		Props: []catalog.PropDef{
			{
				Name: "sources", Type: catalog.TypeAny, IsArray: true, Public: true,
				Queries: []catalog.DataQuery{catalog.Attribute{Name: AttrFor, Profiles: anyProfiles}},
				Updater: tokenArray(catalog.TypeAny),
			},
			{
				Name: "numIterations", Type: catalog.TypeInt, Public: true, ForRenderer: true,
				Queries: []catalog.DataQuery{catalog.Self{Prop: "sources", Size: true}},
				Updater: catalog.Identity(ir.Int(0)),
			},
			{
				Name: "itemName", Type: catalog.TypeString,
				Queries: []catalog.DataQuery{catalog.Attribute{Name: AttrItemName}},
				Updater: concatText(),
			},
		},
	}
}

// iteration wraps one repetition of a map template. Names inside it are
// scoped to the repetition.
func iteration() *catalog.Definition {
	return &catalog.Definition{
		Tag:               TagIteration,
		Composite:         true,
		ChildrenInvisible: true,
	}
}

// item exposes the source value of its iteration under the map's item name.
func item() *catalog.Definition {
	return &catalog.Definition{
		Tag:    TagItem,
		Hidden: true,
		Props: []catalog.PropDef{
			{
				Name: "value", Type: catalog.TypeAny, Public: true, Default: ir.Null{},
				Queries: []catalog.DataQuery{catalog.MapItem{}},
				Updater: catalog.Identity(ir.Null{}),
			},
			textProp(catalog.TypeAny),
		},
		Provides: []catalog.Provide{
			{Profile: catalog.ProfileNumber, Prop: "value"},
			{Profile: catalog.ProfileBoolean, Prop: "value"},
			{Profile: catalog.ProfileText, Prop: "text"},
		},
		ExtendProp: "value",
	}
}
