package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyScenarios copies the test scenarios and documents into a temp dir so
// golden files can be written.
func copyScenarios(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, sub := range []string{"docs", "scenarios"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, sub), 0o755))
		entries, err := os.ReadDir(filepath.Join("testdata", sub))
		require.NoError(t, err)
		for _, e := range entries {
			data, err := os.ReadFile(filepath.Join("testdata", sub, e.Name()))
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(filepath.Join(root, sub, e.Name()), data, 0o644))
		}
	}
	return filepath.Join(root, "scenarios")
}

func TestTest_Filter(t *testing.T) {
	out, err := execute(t, "test", "testdata/scenarios", "--filter", "double")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ double")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTest_Failure(t *testing.T) {
	out, err := execute(t, "test", "testdata/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "double.value = 5")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTest_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", "testdata/scenarios")
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTest_UpdateThenCompare(t *testing.T) {
	dir := copyScenarios(t)

	out, err := execute(t, "test", dir, "--filter", "double", "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ double (golden updated)")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "double.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"name":"double"`)
	assert.Contains(t, string(golden), `"double":{"value":10}`)

	_, err = execute(t, "test", dir, "--filter", "double")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "double.golden"), []byte("{}"), 0o644))
	out, err = execute(t, "test", dir, "--filter", "double")
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestTest_Errors(t *testing.T) {
	_, err := execute(t, "test", "testdata/nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := execute(t, "test", "testdata/scenarios", "--filter", "zzz*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
