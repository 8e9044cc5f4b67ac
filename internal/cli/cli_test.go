package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	doubleDoc   = "testdata/docs/double.yaml"
	brokenDoc   = "testdata/docs/broken.yaml"
	declinedDoc = "testdata/docs/declined.yaml"
	invalidDoc  = "testdata/docs/invalid.yaml"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, errBuf := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeConfig writes a doccore.toml pointing at a database in a temp dir
// and returns its path.
func writeConfig(t *testing.T, extra string) (configPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "doc.db")
	configPath = filepath.Join(dir, "doccore.toml")
	content := "database = \"" + filepath.ToSlash(dbPath) + "\"\n" + extra
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return configPath, dbPath
}
