package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"validate", "render", "resolve", "act", "state", "test"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "validate", doubleDoc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootCommand_ConfigFormat(t *testing.T) {
	cfg, _ := writeConfig(t, "format = \"json\"\n")

	out, err := execute(t, "--config", cfg, "validate", doubleDoc)
	require.NoError(t, err)
	assert.Contains(t, out, `"status":"ok"`)

	// The flag wins over the file.
	out, err = execute(t, "--config", cfg, "--format", "text", "validate", doubleDoc)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Document valid")
}

func TestRootCommand_MissingConfig(t *testing.T) {
	_, err := execute(t, "--config", "testdata/nope.toml", "validate", doubleDoc)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRootCommand_LogFile(t *testing.T) {
	cfg, _ := writeConfig(t, "")
	logPath := filepath.Join(t.TempDir(), "doccore.log")

	_, err := execute(t, "--config", cfg, "--log-file", logPath, "validate", brokenDoc)
	require.Error(t, err)

	data, err := readFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, data, `"msg":"build error"`)
	assert.Contains(t, data, `"code":"E201"`)
}
