// Package errors defines the error taxonomy of the build pipeline.
//
// Three classes matter to callers:
//
//   - structural errors (unknown task, duplicate task, cyclic graph, missing
//     declared input) abort the current run;
//   - transform errors are isolated to a single task and reported;
//   - validation findings are informational unless validation was the
//     requested action.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeStructural ErrorType = "structural"
	ErrorTypeTransform  ErrorType = "transform"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
)

// Sentinel causes. Match them with errors.Is.
var (
	ErrDuplicateTask = errors.New("duplicate task")
	ErrUnknownTask   = errors.New("unknown task")
	ErrCycle         = errors.New("cycle detected")
	ErrMissingInput  = errors.New("missing declared input")
	ErrSealed        = errors.New("registry sealed")
	ErrRequirement   = errors.New("requirement not satisfied")
)

// PipelineError is a structured error type with task and path context.
type PipelineError struct {
	Type    ErrorType
	Code    string
	Message string
	Task    string
	Path    string
	Cause   error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Task != "" {
		parts = append(parts, "task:"+e.Task)
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a PipelineError of the same type and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithTask adds task context.
func (e *PipelineError) WithTask(task string) *PipelineError {
	e.Task = task

	return e
}

// WithPath adds file location information.
func (e *PipelineError) WithPath(path string) *PipelineError {
	e.Path = path

	return e
}

// NewDuplicateNameError reports a second registration of the same task name.
func NewDuplicateNameError(name string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeStructural,
		Code:    "DUPLICATE_TASK",
		Message: "task already registered",
		Task:    name,
		Cause:   ErrDuplicateTask,
	}
}

// NewUnknownTaskError reports a lookup of a task that was never registered.
func NewUnknownTaskError(name string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeStructural,
		Code:    "UNKNOWN_TASK",
		Message: "task not registered",
		Task:    name,
		Cause:   ErrUnknownTask,
	}
}

// NewCycleError reports a back-edge found while validating a graph. path
// lists the tasks on the cycle, first and last entries being equal.
func NewCycleError(from, to string, path []string) *PipelineError {
	msg := fmt.Sprintf("edge %s -> %s closes a cycle", from, to)
	if len(path) > 0 {
		msg += " (" + strings.Join(path, " -> ") + ")"
	}

	return &PipelineError{
		Type:    ErrorTypeStructural,
		Code:    "CYCLE",
		Message: msg,
		Task:    from,
		Cause:   ErrCycle,
	}
}

// NewStructuralError creates a fatal error for the current run.
func NewStructuralError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeStructural,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewMissingInputError reports a declared input directory or document that
// does not exist.
func NewMissingInputError(task, path string, cause error) *PipelineError {
	if cause == nil {
		cause = ErrMissingInput
	} else {
		cause = fmt.Errorf("%w: %w", ErrMissingInput, cause)
	}

	return &PipelineError{
		Type:    ErrorTypeStructural,
		Code:    "MISSING_INPUT",
		Message: "declared input not found",
		Task:    task,
		Path:    path,
		Cause:   cause,
	}
}

// NewTransformError wraps the failure of a single task's transform.
func NewTransformError(task string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeTransform,
		Code:    "TRANSFORM_FAILED",
		Message: "transform failed",
		Task:    task,
		Cause:   cause,
	}
}

// NewRequirementError marks a task skipped because a task it requires did
// not succeed.
func NewRequirementError(task, required string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeTransform,
		Code:    "REQUIREMENT_FAILED",
		Message: fmt.Sprintf("required task %q did not succeed", required),
		Task:    task,
		Cause:   ErrRequirement,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsStructural reports whether err must abort the current run. I/O errors
// on the output tree count as structural.
func IsStructural(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type == ErrorTypeStructural || pe.Type == ErrorTypeIO
	}

	return false
}

// IsTransform reports whether err is isolated to a single task.
func IsTransform(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type == ErrorTypeTransform
	}

	return false
}
