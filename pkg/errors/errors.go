// Package errors provides the unified error type and factory functions for
// HazardSafe-KG.  Every layer (ingestion, validation, quality, pipelines,
// storage adapters) uses AppError as the single carrier for structured error
// information, enabling consistent reporting, logging, and monitoring.
package errors

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call-stack string starting two frames above
// the caller (skipping captureStack itself and New/Wrap).
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		// Trim standard-library noise to keep traces readable.
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// AppError is the single structured error type used throughout HazardSafe-KG.
// It satisfies the standard error interface and supports Go 1.13+ error
// wrapping so that errors.Is / errors.As / errors.Unwrap work transparently
// across layers.
//
// Usage:
//
//	return errors.New(errors.ErrCodeSchemaViolation, "required field name is missing")
//	return errors.Wrap(driverErr, errors.ErrCodeBackendUnavailable, "graph query failed")
type AppError struct {
	// Code is the typed error code that uniquely identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description of the error.
	Message string

	// Detail carries supplementary context (row numbers, entity ids, file
	// paths) that aids debugging without cluttering Message.
	Detail string

	// Cause is the underlying error that triggered this AppError, enabling
	// errors.Is / errors.As traversal of the full error chain.
	Cause error

	// Stack contains the formatted call-stack captured at the point of error
	// creation.  It is intentionally not included in Error() output; logging
	// middleware can inspect the field directly.
	Stack string
}

// Error implements the standard error interface.
// Format: "[<code>] <message>: <detail>"; the detail segment is omitted when
// Detail is empty.
func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error, enabling errors.Is and errors.As
// to traverse the full chain.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a shallow copy of the receiver with Detail set.
// Safe to call on a nil pointer (returns nil).
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set to err.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// New constructs a fresh AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Newf constructs a fresh AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError that wraps an existing error.  If err is nil,
// Wrap returns nil so it can be used inline.  When err is already an
// *AppError and code is CodeUnknown the original code is preserved,
// preventing loss of the original classification during propagation.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// IsCode reports whether any error in err's chain is an *AppError with the
// given code:
//
//	if errors.IsCode(err, errors.ErrCodeNotConnected) { ... }
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the ErrorCode from the first *AppError found in err's
// chain.  If no *AppError is present, CodeUnknown is returned.  Useful in
// metrics layers that need a single code label.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// NotFound constructs an ErrCodeNotFound AppError.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message, Stack: captureStack(1)}
}

// InputMalformed constructs an ErrCodeInputMalformed AppError, used when a
// file or row cannot be parsed at all.
func InputMalformed(message string) *AppError {
	return &AppError{Code: ErrCodeInputMalformed, Message: message, Stack: captureStack(1)}
}

// SchemaViolation constructs an ErrCodeSchemaViolation AppError, used when a
// required field is missing or an enumerated value is out of vocabulary.
func SchemaViolation(message string) *AppError {
	return &AppError{Code: ErrCodeSchemaViolation, Message: message, Stack: captureStack(1)}
}

// RangeViolation constructs an ErrCodeRangeViolation AppError.
func RangeViolation(message string) *AppError {
	return &AppError{Code: ErrCodeRangeViolation, Message: message, Stack: captureStack(1)}
}

// ShapeViolation constructs an ErrCodeShapeViolation AppError, used when an
// ontology candidate fails its node shape.
func ShapeViolation(message string) *AppError {
	return &AppError{Code: ErrCodeShapeViolation, Message: message, Stack: captureStack(1)}
}

// QualityBelowThreshold constructs an ErrCodeQualityBelowThreshold AppError.
func QualityBelowThreshold(message string) *AppError {
	return &AppError{Code: ErrCodeQualityBelowThreshold, Message: message, Stack: captureStack(1)}
}

// CompatibilityForbidden constructs an ErrCodeCompatibilityForbidden AppError.
func CompatibilityForbidden(message string) *AppError {
	return &AppError{Code: ErrCodeCompatibilityForbidden, Message: message, Stack: captureStack(1)}
}

// BackendUnavailable constructs an ErrCodeBackendUnavailable AppError.
func BackendUnavailable(message string) *AppError {
	return &AppError{Code: ErrCodeBackendUnavailable, Message: message, Stack: captureStack(1)}
}

// NotConnected constructs an ErrCodeNotConnected AppError, returned by store
// adapters used before Connect.
func NotConnected(message string) *AppError {
	return &AppError{Code: ErrCodeNotConnected, Message: message, Stack: captureStack(1)}
}

// Conflict constructs an ErrCodeConflict AppError.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message, Stack: captureStack(1)}
}

// Timeout constructs an ErrCodeTimeout AppError.
func Timeout(message string) *AppError {
	return &AppError{Code: ErrCodeTimeout, Message: message, Stack: captureStack(1)}
}

// Cancelled constructs an ErrCodeCancelled AppError.
func Cancelled(message string) *AppError {
	return &AppError{Code: ErrCodeCancelled, Message: message, Stack: captureStack(1)}
}

// Internal constructs an ErrCodeInternal AppError.  Use for unexpected
// failures where no more specific code applies.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message, Stack: captureStack(1)}
}

// FromContext maps a context error to the matching AppError: Cancelled for
// context.Canceled, Timeout for context.DeadlineExceeded, nil otherwise.
func FromContext(err error) *AppError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return Cancelled("operation cancelled").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout("operation deadline exceeded").WithCause(err)
	default:
		return Wrap(err, CodeUnknown, "context error")
	}
}
