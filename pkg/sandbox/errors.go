package sandbox

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// ErrorCategory classifies execution failures. All categories are handled
// identically at the engine boundary: caught, never propagated as a host
// fault, and converted into a failed Result.
type ErrorCategory string

const (
	ErrorCategoryValidation    ErrorCategory = "validation_error"
	ErrorCategorySerialization ErrorCategory = "serialization_error"
	ErrorCategoryCompile       ErrorCategory = "compile_error"
	ErrorCategoryRuntime       ErrorCategory = "runtime_error"
	ErrorCategoryTimeout       ErrorCategory = "timeout_error"
	ErrorCategoryInternal      ErrorCategory = "internal_error"
)

// ScriptError is a structured execution failure.
type ScriptError struct {
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Category, e.Message)
}

// NewValidationError creates a pre-execution rejection error.
func NewValidationError(message string) *ScriptError {
	return &ScriptError{Category: ErrorCategoryValidation, Message: message}
}

// NewSerializationError reports data that could not be rendered to JSON text.
func NewSerializationError(err error) *ScriptError {
	return &ScriptError{
		Category: ErrorCategorySerialization,
		Message:  fmt.Sprintf("data is not JSON-serializable: %v", err),
	}
}

// NewTimeoutError reports an execution that exceeded its wall-clock budget.
func NewTimeoutError(budget string) *ScriptError {
	return &ScriptError{
		Category: ErrorCategoryTimeout,
		Message:  fmt.Sprintf("script timed out after %s", budget),
	}
}

// NewInternalError reports an engine-side fault.
func NewInternalError(message string) *ScriptError {
	return &ScriptError{Category: ErrorCategoryInternal, Message: message}
}

// wrapEvalError converts an error returned by the interpreter into a
// ScriptError. Thrown exceptions become runtime errors, parse failures
// become compile errors.
func wrapEvalError(err error) *ScriptError {
	if err == nil {
		return nil
	}
	if scriptErr, ok := err.(*ScriptError); ok {
		return scriptErr
	}

	category := ErrorCategoryRuntime
	message := err.Error()

	if exc, ok := err.(*goja.Exception); ok {
		message = exc.Error()
	}

	// goja reports parse failures with a SyntaxError diagnostic regardless
	// of whether they surface as an Exception or a compiler error.
	if strings.Contains(message, "SyntaxError") {
		category = ErrorCategoryCompile
	}

	return &ScriptError{Category: category, Message: message}
}
