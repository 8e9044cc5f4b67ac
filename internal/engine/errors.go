package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/doccore/internal/deps"
)

// ErrInversionUndefined is returned when a requested value cannot be pushed
// back to the props or essential data it depends on. No state is mutated.
var ErrInversionUndefined = errors.New("inversion undefined")

// RuntimeError represents an error detected during resolution that a
// well-formed document cannot produce.
//
// Runtime errors include:
//   - Cycle detection: a slot was requested while it was being resolved
//   - Depth exceeded: resolution recursed past the configured limit
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Slot is the slot being resolved when the error was detected.
	Slot deps.SlotKey

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeCycleDetected indicates a slot depends on itself at runtime.
	ErrCodeCycleDetected RuntimeErrorCode = "CYCLE_DETECTED"

	// ErrCodeDepthExceeded indicates resolution went deeper than allowed.
	ErrCodeDepthExceeded RuntimeErrorCode = "DEPTH_EXCEEDED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s (slot=%s)", e.Code, e.Message, e.Slot)
}

// IsCycleError returns true if the error is a cycle detection error.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCycleDetected
	}
	return false
}

// IsDepthError returns true if the error is a depth exceeded error.
func IsDepthError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDepthExceeded
	}
	return false
}

// NewCycleError creates a RuntimeError for a slot re-entered during its
// own resolution.
func NewCycleError(slot deps.SlotKey) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCycleDetected,
		Message: "slot requested while it is being resolved",
		Slot:    slot,
	}
}

// NewDepthError creates a RuntimeError for exceeding the depth limit.
func NewDepthError(slot deps.SlotKey, depth, limit int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDepthExceeded,
		Message: fmt.Sprintf("resolution exceeded max depth (%d > %d)", depth, limit),
		Slot:    slot,
		Details: map[string]string{
			"depth":     fmt.Sprintf("%d", depth),
			"max_depth": fmt.Sprintf("%d", limit),
		},
	}
}

// ResolveError reports a prop whose calculation failed, or whose dependency
// could not be read.
type ResolveError struct {
	Component int
	Prop      string

	// Dependency describes the dependency being read, if the failure
	// happened while gathering values.
	Dependency string

	Cause error
}

func (e *ResolveError) Error() string {
	if e.Dependency != "" {
		return fmt.Sprintf("resolve component %d prop %q (dependency %s): %v", e.Component, e.Prop, e.Dependency, e.Cause)
	}
	return fmt.Sprintf("resolve component %d prop %q: %v", e.Component, e.Prop, e.Cause)
}

func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// IsInversionUndefined reports whether err declined an update.
func IsInversionUndefined(err error) bool {
	return errors.Is(err, ErrInversionUndefined)
}
