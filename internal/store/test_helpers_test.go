package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/doccore/internal/ir"
	"github.com/roach88/doccore/internal/testutil"
)

// createTestStore creates a store in a temp dir with sequential row IDs.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.NewSequentialIDs("row")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// sampleFlat returns a document holding one number named x with the given
// text content.
func sampleFlat(content string) *ir.FlatDocument {
	return &ir.FlatDocument{Nodes: []ir.FlatNode{
		{Tag: "document", Parent: ir.RootParent, Children: []ir.FlatChild{ir.NodeChild(1)}},
		{Tag: "number", Name: "x", Parent: 0, Children: []ir.FlatChild{ir.TextChild(content)}},
	}}
}
