package model

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a planning failure.
type ErrorCode string

const (
	// ErrDefinition covers arity violations and duplicate or missing
	// parameter bindings.
	ErrDefinition ErrorCode = "DEFINITION_ERROR"
	// ErrVariable covers unbound, double-bound, colliding, or misplaced
	// variables.
	ErrVariable ErrorCode = "VARIABLE_ERROR"
	// ErrReference covers malformed or stale stage references, multiple
	// stage refs in one binding, and ill-formed dir() nesting.
	ErrReference ErrorCode = "REFERENCE_ERROR"
	// ErrUnresolvable signals that dependency resolution stalled. Given a
	// validated stage this should be unreachable; it is raised rather than
	// looping forever.
	ErrUnresolvable ErrorCode = "UNRESOLVABLE_DEPENDENCY"
	// ErrNoValidBinding means a filter produced no candidate values at
	// expansion time.
	ErrNoValidBinding ErrorCode = "NO_VALID_BINDING"
	// ErrConflict is returned for run-name collisions in the status store.
	ErrConflict ErrorCode = "CONFLICT"
	// ErrNotFound is returned when a stored entity does not exist.
	ErrNotFound ErrorCode = "NOT_FOUND"
)

// PlanError is the typed error raised by the planning core. It carries
// enough context (stage index, plugin class, parameter name) to produce an
// actionable message.
type PlanError struct {
	Code    ErrorCode `json:"code"`
	Stage   int       `json:"stage,omitempty"`
	Section Section   `json:"section,omitempty"`
	Plugin  string    `json:"plugin,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

func (e *PlanError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Stage > 0 {
		msg += fmt.Sprintf(" (stage %d", e.Stage)
		if e.Plugin != "" {
			msg += fmt.Sprintf(", plugin %s", e.Plugin)
		}
		if e.Param != "" {
			msg += fmt.Sprintf(", parameter %s", e.Param)
		}
		msg += ")"
	}
	return msg
}

// WithContext fills in stage/section/plugin context on an error that was
// raised deeper in the call chain, leaving already-set fields alone.
func (e *PlanError) WithContext(stage int, section Section, plugin string) *PlanError {
	if e.Stage == 0 {
		e.Stage = stage
	}
	if e.Section == "" {
		e.Section = section
	}
	if e.Plugin == "" {
		e.Plugin = plugin
	}
	return e
}

// NewDefinitionError creates a DEFINITION_ERROR.
func NewDefinitionError(format string, args ...any) *PlanError {
	return &PlanError{Code: ErrDefinition, Message: fmt.Sprintf(format, args...)}
}

// NewVariableError creates a VARIABLE_ERROR.
func NewVariableError(format string, args ...any) *PlanError {
	return &PlanError{Code: ErrVariable, Message: fmt.Sprintf(format, args...)}
}

// NewReferenceError creates a REFERENCE_ERROR.
func NewReferenceError(format string, args ...any) *PlanError {
	return &PlanError{Code: ErrReference, Message: fmt.Sprintf(format, args...)}
}

// NewUnresolvableError creates an UNRESOLVABLE_DEPENDENCY error.
func NewUnresolvableError(format string, args ...any) *PlanError {
	return &PlanError{Code: ErrUnresolvable, Message: fmt.Sprintf(format, args...)}
}

// NewNoValidBindingError creates a NO_VALID_BINDING error.
func NewNoValidBindingError(format string, args ...any) *PlanError {
	return &PlanError{Code: ErrNoValidBinding, Message: fmt.Sprintf(format, args...)}
}

// NewConflictError creates a CONFLICT error.
func NewConflictError(format string, args ...any) *PlanError {
	return &PlanError{Code: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError creates a NOT_FOUND error for a stored entity.
func NewNotFoundError(resource, id string) *PlanError {
	return &PlanError{Code: ErrNotFound, Message: fmt.Sprintf("%s '%s' not found", resource, id)}
}

// CodeOf returns the ErrorCode of err if it is (or wraps) a PlanError,
// and "" otherwise.
func CodeOf(err error) ErrorCode {
	var pe *PlanError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCode reports whether err is a PlanError with the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
