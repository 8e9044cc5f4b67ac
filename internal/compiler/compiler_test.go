package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/doccore/internal/ir"
)

func compileYAML(t *testing.T, src string) (*ir.FlatDocument, error) {
	t.Helper()
	return NewLoader().Compile([]byte(src), FormatYAML, "doc.yaml")
}

func TestCompileYAML_Tree(t *testing.T) {
	flat, err := compileYAML(t, `
document:
  name: doc
  children:
    - number:
        name: x
        attributes:
          displayDigits: "3"
        children: ["1 + 2"]
    - p: ["x is ", "$x"]
    - tag: section
      extend: $x
`)
	require.NoError(t, err)

	want := &ir.FlatDocument{Nodes: []ir.FlatNode{
		{Tag: "document", Name: "doc", Parent: ir.RootParent, Children: []ir.FlatChild{ir.NodeChild(1), ir.NodeChild(2), ir.NodeChild(4)}},
		{Tag: "number", Name: "x", Parent: 0,
			Attributes: []ir.FlatAttribute{{Name: "displayDigits", Children: []ir.FlatChild{ir.TextChild("3")}}},
			Children:   []ir.FlatChild{ir.TextChild("1 + 2")}},
		{Tag: "p", Parent: 0, Children: []ir.FlatChild{ir.TextChild("x is "), ir.NodeChild(3)}},
		{Parent: 2, Extend: "$x"},
		{Tag: "section", Parent: 0, Extend: "$x"},
	}}
	assert.Equal(t, want, flat)
}

// TestCompileYAML_RootShorthand tests a root given as its list of children.
func TestCompileYAML_RootShorthand(t *testing.T) {
	flat, err := compileYAML(t, `
document:
  - text: hello
  - 42
`)
	require.NoError(t, err)
	require.Len(t, flat.Nodes, 2)
	assert.Equal(t, "document", flat.Nodes[0].Tag)
	assert.Equal(t, []ir.FlatChild{ir.NodeChild(1), ir.TextChild("42")}, flat.Nodes[0].Children)
	assert.Equal(t, []ir.FlatChild{ir.TextChild("hello")}, flat.Nodes[1].Children)
}

func TestCompileYAML_AttributeNodes(t *testing.T) {
	flat, err := compileYAML(t, `
document:
  children:
    - map:
        attributes:
          for: [{sequence: "1, 2"}]
          itemName: n
        children: ["$n"]
`)
	require.NoError(t, err)

	m := flat.Nodes[1]
	assert.Equal(t, "map", m.Tag)
	forAttr, ok := m.Attribute("for")
	require.True(t, ok)
	require.Len(t, forAttr.Children, 1)
	seq := *forAttr.Children[0].Node
	assert.Equal(t, "sequence", flat.Nodes[seq].Tag)
	assert.Equal(t, 1, flat.Nodes[seq].Parent)
	assert.Equal(t, []string{"for", "itemName"}, []string{m.Attributes[0].Name, m.Attributes[1].Name})
}

// TestCompile_ReferenceText tests which strings become copy nodes.
func TestCompile_ReferenceText(t *testing.T) {
	tests := []struct {
		text string
		ref  bool
	}{
		{"$x", true},
		{"$x.value", true},
		{"$list[2]", true},
		{"$5", false},
		{"price $x", false},
		{"$", false},
		{"x", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.ref, IsReference(tt.text))
		})
	}
}

func TestCompileYAML_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"no document", "other: 1", ""},
		{"missing tag", "document:\n  children:\n    - name: x\n      children: [a]", "document.children[0]"},
		{"bad extend", "document:\n  children:\n    - tag: p\n      extend: x", "document.children[0].extend"},
		{"bad name", "document:\n  children:\n    - tag: p\n      name: a.b", "document.children[0].name"},
		{"unknown field", "document:\n  children:\n    - tag: p\n      colour: red", "document.children[0].colour"},
		{"nested list", "document:\n  - [a]", "document[0]"},
		{"tag twice", "document:\n  - p: {tag: q}", "document[0].p.tag"},
		{"exclusive", "document:\n  - tag: p\n    import: other.yaml\n    children: [a]", "document[0].import"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileYAML(t, tt.src)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			if tt.field != "" {
				assert.Greater(t, ce.Line, 0)
				assert.Contains(t, ce.Error(), "doc.yaml:")
			}
		})
	}
}

func TestCompileJSON_Flat(t *testing.T) {
	src := `{"nodes": [` +
		`{"tag": "document", "parent": -1, "children": [{"node": 1}]},` +
		`{"tag": "number", "name": "x", "parent": 0, "children": [{"text": "7"}]}` +
		`]}`
	flat, err := NewLoader().Compile([]byte(src), FormatJSON, "doc.json")
	require.NoError(t, err)
	require.Len(t, flat.Nodes, 2)
	assert.Equal(t, "x", flat.Nodes[1].Name)
	assert.Equal(t, []ir.FlatChild{ir.TextChild("7")}, flat.Nodes[1].Children)
}

func TestCompileJSON_FlatInvalid(t *testing.T) {
	src := `{"nodes": [{"tag": "document", "parent": -1, "children": [{"node": 3}]}]}`
	_, err := NewLoader().Compile([]byte(src), FormatJSON, "doc.json")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "nodes[0].children[0]", ce.Field)
}

func TestCompileCUE(t *testing.T) {
	src := `
document: children: [
	{number: {name: "x", children: [1]}},
	{number: {name: "y", children: ["$x"]}},
]
`
	flat, err := NewLoader().Compile([]byte(src), FormatCUE, "doc.cue")
	require.NoError(t, err)
	require.Len(t, flat.Nodes, 4)
	assert.Equal(t, []ir.FlatChild{ir.TextChild("1")}, flat.Nodes[1].Children)
	assert.Equal(t, "y", flat.Nodes[2].Name)
	assert.Equal(t, "$x", flat.Nodes[3].Extend)
	assert.Equal(t, 2, flat.Nodes[3].Parent)
}

func TestCompileCUE_ErrorPosition(t *testing.T) {
	src := `
document: children: [
	{tag: "p", extend: "nope"},
]
`
	_, err := NewLoader().Compile([]byte(src), FormatCUE, "doc.cue")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())
	assert.Equal(t, 3, ce.Pos.Line())
}

func TestCompileValue(t *testing.T) {
	v := cuecontext.New().CompileString(`document: children: [{text: "hi"}]`)
	flat, err := NewLoader().CompileValue(v)
	require.NoError(t, err)
	assert.Len(t, flat.Nodes, 2)
}

func TestFragment(t *testing.T) {
	var n yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(`[{number: "4"}, " and ", "$x"]`), &n))

	flat, err := NewLoader().Fragment(&n, "")
	require.NoError(t, err)
	require.Len(t, flat.Nodes, 3)
	assert.Equal(t, RootTag, flat.Nodes[0].Tag)
	assert.Equal(t, []ir.FlatChild{ir.NodeChild(1), ir.TextChild(" and "), ir.NodeChild(2)}, flat.Nodes[0].Children)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_Import(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.yaml", `
document:
  - number: {name: x, children: ["5"]}
  - p: ["$x"]
`)
	main := writeFile(t, dir, "main.yaml", `
document:
  - section:
      name: lib
      import: lib.yaml
  - number: {name: y, children: ["$lib.x"]}
`)

	flat, err := LoadFile(main)
	require.NoError(t, err)

	sec := flat.Nodes[1]
	assert.Equal(t, "lib.yaml", sec.SourceDocument)
	require.Len(t, sec.Children, 2)
	x := flat.Nodes[*sec.Children[0].Node]
	assert.Equal(t, "x", x.Name)
	assert.Equal(t, 1, x.Parent)
	p := flat.Nodes[*sec.Children[1].Node]
	require.Len(t, p.Children, 1)
	assert.Equal(t, "$x", flat.Nodes[*p.Children[0].Node].Extend)
	assert.Empty(t, flat.Validate())
}

func TestLoadFile_ImportCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "document:\n  - section: {import: b.yaml}\n")
	writeFile(t, dir, "b.yaml", "document:\n  - section: {import: a.yaml}\n")

	_, err := LoadFile(filepath.Join(dir, "a.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import cycle")
}

func TestLoadFile_CUEPackage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.cue", "package doc\n\ndocument: children: [{number: {name: \"x\", children: [\"2\"]}}]\n")
	writeFile(t, dir, "b.cue", "package doc\n\ndocument: name: \"calc\"\n")

	flat, err := LoadFile(dir)
	require.NoError(t, err)
	assert.Equal(t, "calc", flat.Nodes[0].Name)
	assert.Len(t, flat.Nodes, 2)
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{"a.cue": FormatCUE, "a.yml": FormatYAML, "a.yaml": FormatYAML, "a.json": FormatJSON} {
		got, err := FormatOf(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := FormatOf("a.txt")
	assert.Error(t, err)
}
