// Package xerrors provides structured error types for the execution engine:
// errors preserve a human message and an optional chained cause while
// remaining compatible with errors.Is/errors.As.
package xerrors

import (
	"errors"
	"fmt"
)

// StepErrorKind classifies why a Step Executor invocation failed.
type StepErrorKind string

const (
	NotFound       StepErrorKind = "not_found"
	NotVisible     StepErrorKind = "not_visible"
	Timeout        StepErrorKind = "timeout"
	TypeMismatch   StepErrorKind = "type_mismatch"
	NavigationFail StepErrorKind = "navigation_failed"
	Other          StepErrorKind = "other"
)

// StepError wraps a driver/executor failure with its classification.
type StepError struct {
	Kind    StepErrorKind
	Message string
	Cause   error
}

func (e *StepError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewStepError builds a classified StepError.
func NewStepError(kind StepErrorKind, message string, cause error) *StepError {
	return &StepError{Kind: kind, Message: message, Cause: cause}
}

// PlanningError represents a failure to obtain or parse a usable plan from
// the LLM.
type PlanningError struct {
	Message string
	Cause   error
}

func (e *PlanningError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("planning error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("planning error: %s", e.Message)
}

func (e *PlanningError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewPlanningError builds a PlanningError.
func NewPlanningError(message string, cause error) *PlanningError {
	return &PlanningError{Message: message, Cause: cause}
}

// PlaceholderError represents a reference to an unknown {{secret.KEY}} or
// {{var.KEY}} token.
type PlaceholderError struct {
	Namespace string // "secret" or "var"
	Key       string
}

func (e *PlaceholderError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("unknown placeholder %s.%s", e.Namespace, e.Key)
}

// NewPlaceholderError builds a PlaceholderError.
func NewPlaceholderError(namespace, key string) *PlaceholderError {
	return &PlaceholderError{Namespace: namespace, Key: key}
}

// StuckLoopError represents the loop detector firing.
type StuckLoopError struct {
	Message string
}

func (e *StuckLoopError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return "stuck: no progress detected"
	}
	return "stuck: " + e.Message
}

// NewStuckLoopError builds a StuckLoopError with the given detail message.
func NewStuckLoopError(message string) *StuckLoopError {
	return &StuckLoopError{Message: message}
}

// AsStepError reports whether err (or something it wraps) is a *StepError,
// and returns it.
func AsStepError(err error) (*StepError, bool) {
	var se *StepError
	return se, errors.As(err, &se)
}
