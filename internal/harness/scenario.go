package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a document, a list of steps and assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Document is the path of the authored document, relative to the
	// scenario file. Exclusive with Source.
	Document string `yaml:"document,omitempty"`

	// Source is an inline document ({document: ...} or {nodes: [...]}).
	Source yaml.Node `yaml:"source,omitempty"`

	// State seeds essential data, keyed "alias/origin".
	State map[string]any `yaml:"state,omitempty"`

	Steps      []Step      `yaml:"steps,omitempty"`
	Assertions []Assertion `yaml:"assertions"`

	// Dir is the directory relative paths resolve against.
	Dir string `yaml:"-"`
}

// Step is one mutation of the document. Exactly one of Dispatch, Update,
// Add, Delete and Rebuild is set.
type Step struct {
	Dispatch string         `yaml:"dispatch,omitempty"`
	Action   string         `yaml:"action,omitempty"`
	Args     map[string]any `yaml:"args,omitempty"`

	Update string `yaml:"update,omitempty"`
	Prop   string `yaml:"prop,omitempty"`
	Value  any    `yaml:"value,omitempty"`

	Add     string    `yaml:"add,omitempty"`
	Content yaml.Node `yaml:"content,omitempty"`

	Delete []string `yaml:"delete,omitempty"`

	Rebuild bool `yaml:"rebuild,omitempty"`

	// Expect is the expected outcome: applied (default), declined or error.
	Expect string `yaml:"expect,omitempty"`
}

// Step kinds.
const (
	StepDispatch = "dispatch"
	StepUpdate   = "update"
	StepAdd      = "add"
	StepDelete   = "delete"
	StepRebuild  = "rebuild"
)

// Step outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeDeclined = "declined"
	OutcomeError    = "error"
)

// Kind returns which mutation the step performs, or "" when none or
// several are set.
func (s Step) Kind() string {
	var kinds []string
	if s.Dispatch != "" {
		kinds = append(kinds, StepDispatch)
	}
	if s.Update != "" {
		kinds = append(kinds, StepUpdate)
	}
	if s.Add != "" {
		kinds = append(kinds, StepAdd)
	}
	if len(s.Delete) > 0 {
		kinds = append(kinds, StepDelete)
	}
	if s.Rebuild {
		kinds = append(kinds, StepRebuild)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Target returns the alias a step acts on, if any.
func (s Step) Target() string {
	switch s.Kind() {
	case StepDispatch:
		return s.Dispatch
	case StepUpdate:
		return s.Update
	case StepAdd:
		return s.Add
	default:
		return ""
	}
}

// Assertion checks the document after the last step.
type Assertion struct {
	Type string `yaml:"type"`

	// Component is the alias checked by value, render, build_error and
	// reference.
	Component string `yaml:"component,omitempty"`

	// Prop is the prop read by value, or the prop a reference must name.
	Prop string `yaml:"prop,omitempty"`

	// Code is the build error code (used by build_error).
	Code string `yaml:"code,omitempty"`

	// Ref is the reference resolved by reference.
	Ref string `yaml:"ref,omitempty"`

	// Expect is the expected value (value, state) or props (render).
	Expect any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertValue         = "value"
	AssertRender        = "render"
	AssertBuildError    = "build_error"
	AssertNoBuildErrors = "no_build_errors"
	AssertState         = "state"
	AssertReference     = "reference"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.Dir = filepath.Dir(path)
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without validating it.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	hasSource := s.Source.Kind != 0
	switch {
	case s.Document == "" && !hasSource:
		return fmt.Errorf("document or source is required")
	case s.Document != "" && hasSource:
		return fmt.Errorf("document and source are exclusive")
	case s.Document != "":
		if _, err := os.Stat(s.path(s.Document)); os.IsNotExist(err) {
			return fmt.Errorf("document not found: %s", s.Document)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		kind := step.Kind()
		if kind == "" {
			return fmt.Errorf("steps[%d]: exactly one of dispatch, update, add, delete, rebuild is required", i)
		}
		switch kind {
		case StepDispatch:
			if step.Action == "" {
				return fmt.Errorf("steps[%d]: action is required for dispatch", i)
			}
		case StepUpdate:
			if step.Prop == "" {
				return fmt.Errorf("steps[%d]: prop is required for update", i)
			}
		case StepAdd:
			if step.Content.Kind == 0 {
				return fmt.Errorf("steps[%d]: content is required for add", i)
			}
		}
		switch step.Expect {
		case "", OutcomeApplied, OutcomeDeclined, OutcomeError:
		default:
			return fmt.Errorf("steps[%d]: unknown expect %q", i, step.Expect)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertValue:
		if a.Component == "" || a.Prop == "" {
			return fmt.Errorf("assertions[%d]: component and prop are required for value", index)
		}
	case AssertRender:
		if a.Component == "" {
			return fmt.Errorf("assertions[%d]: component is required for render", index)
		}
		if _, ok := a.Expect.(map[string]any); !ok {
			return fmt.Errorf("assertions[%d]: expect must be a mapping of props for render", index)
		}
	case AssertBuildError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for build_error", index)
		}
	case AssertNoBuildErrors:
	case AssertState:
		if _, ok := a.Expect.(map[string]any); !ok && a.Expect != nil {
			return fmt.Errorf("assertions[%d]: expect must be a mapping for state", index)
		}
	case AssertReference:
		if a.Ref == "" || a.Component == "" {
			return fmt.Errorf("assertions[%d]: ref and component are required for reference", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// path resolves p against the scenario directory.
func (s *Scenario) path(p string) string {
	if filepath.IsAbs(p) || s.Dir == "" {
		return p
	}
	return filepath.Join(s.Dir, p)
}
