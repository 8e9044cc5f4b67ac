package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/doccore/internal/ir"
)

func runScenario(t *testing.T, name string) *Result {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)
	return result
}

func TestRun_Scenarios(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, path := range files {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Trace(t *testing.T) {
	result := runScenario(t, "declined")
	require.Len(t, result.Trace, 2)

	assert.Equal(t, StepDispatch, result.Trace[0].Kind)
	assert.Equal(t, "in", result.Trace[0].Target)
	assert.Equal(t, OutcomeDeclined, result.Trace[0].Outcome)
	assert.Empty(t, result.Trace[0].Updates)

	assert.Equal(t, OutcomeError, result.Trace[1].Outcome)
	assert.Contains(t, result.Trace[1].Detail, "explode")
	assert.Equal(t, result.Trace[0].Generation, result.Trace[1].Generation, "nothing was applied")
}

func TestRun_Updates(t *testing.T) {
	result := runScenario(t, "double_input")
	require.Len(t, result.Trace, 1)
	updates := result.Trace[0].Updates
	assert.Positive(t, result.Trace[0].Generation)
	assert.Equal(t, ir.Object{"value": ir.Int(10)}, normalize(updates["double"]))
	assert.Equal(t, ir.Object{"n/prop:value": ir.Int(5)}, normalize(result.State))
}

func TestRun_RebuildKeepsState(t *testing.T) {
	result := runScenario(t, "resume_state")
	require.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, StepRebuild, result.Trace[1].Kind)
	assert.Equal(t, OutcomeApplied, result.Trace[1].Outcome)
}

func TestRun_BuildErrorsRecorded(t *testing.T) {
	result := runScenario(t, "edits")
	require.NotEmpty(t, result.BuildErrors)
	assert.Contains(t, result.BuildErrors[0], "E201")
}

func TestRun_FailingAssertion(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong
description: expects the wrong value
source:
  document:
    - number: {name: k, children: ["3"]}
assertions:
  - type: value
    component: k
    prop: value
    expect: 4
  - type: reference
    ref: $missing
    component: k
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "assertions[0] failed: value")
	assert.Contains(t, result.Errors[0], "k.value = 4")
	assert.Contains(t, result.Errors[1], "assertions[1] failed: reference")
}

func TestRun_UnexpectedOutcome(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: outcome
description: a dispatch to an unknown alias is an error
source:
  document: ["text"]
steps:
  - dispatch: ghost
    action: toggle
assertions:
  - type: no_build_errors
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected applied, got error")
}

func TestRun_CompileError(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: broken
description: the document does not compile
source:
  document:
    - number: {name: "a.b"}
assertions:
  - type: no_build_errors
`))
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile document")
}

// normalize re-reads a value through canonical JSON so integral numbers
// compare equal regardless of representation.
func normalize(v ir.Value) ir.Value {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return v
	}
	out, err := ir.UnmarshalValue(data)
	if err != nil {
		return v
	}
	return out
}
