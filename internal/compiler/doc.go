// Package compiler turns authored documents into ir.FlatDocument.
//
// Documents are written as CUE, YAML or JSON in one tree shape:
//
//	document: children: [
//		{number: {name: "x", children: ["1 + 2"]}},
//		{tag: "p", children: ["x is ", "$x"]},
//	]
//
// An element is either explicit ({tag, name, extend, attributes, children,
// import}) or the shorthand {tag: body}, where body is the element's
// fields, its text, or its list of children. A child string that is
// exactly a reference ($x, $x.value, $list[2]) becomes a node copying the
// referent, with its tag inferred at build time. A document may instead
// give {nodes: [...]} in the flat JSON shape.
//
// import names another document file; its content is grafted below the
// importing element and its names are scoped to it.
package compiler
