package document

import (
	"errors"
	"fmt"
)

// Build error codes.
const (
	CodeUnresolvedReference = "E201"
	CodeAmbiguousReference  = "E202"
	CodeIncompatibleExtend  = "E203"
	CodeCyclicDependency    = "E204"
	CodeUnknownComponent    = "E205"
	CodeNotFound            = "E206"
	CodeExtendCycle         = "E207"
)

// ErrUnknownAlias is returned when no live component has the given alias.
var ErrUnknownAlias = errors.New("unknown component alias")

// ErrUnknownAction is returned when a component has no action of the
// given name.
var ErrUnknownAction = errors.New("unknown action")

// BuildError reports a component that could not be built. The component is
// replaced by an inert error placeholder; the rest of the document loads.
type BuildError struct {
	Code      string
	Component int
	Tag       string
	Name      string
	Message   string
	Err       error
}

func (e *BuildError) Error() string {
	who := fmt.Sprintf("component %d", e.Component)
	if e.Name != "" {
		who = fmt.Sprintf("component %d (%s %q)", e.Component, e.Tag, e.Name)
	} else if e.Tag != "" {
		who = fmt.Sprintf("component %d (%s)", e.Component, e.Tag)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Code, who, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, who, e.Message)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// IsBuildError reports whether err is a BuildError with the given code.
// An empty code matches any BuildError.
func IsBuildError(err error, code string) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return code == "" || be.Code == code
	}
	return false
}

// ActionError reports an action that could not run.
type ActionError struct {
	Alias  string
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %q on %q: %v", e.Action, e.Alias, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
