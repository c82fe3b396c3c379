// Package errors provides error handling utilities.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Type identifies the category of error
type Type string

const (
	// TypeMissingField indicates a required request field is absent
	TypeMissingField Type = "MISSING_FIELD"

	// TypeInvalidAssetSize indicates an asset size outside [1, 250,000,000] or not an integer
	TypeInvalidAssetSize Type = "INVALID_ASSET_SIZE"

	// TypeInvalidLimit indicates a limit that is not a positive integer
	TypeInvalidLimit Type = "INVALID_LIMIT"

	// TypeInvalidRetention indicates a retention that is not a non-negative integer
	TypeInvalidRetention Type = "INVALID_RETENTION"

	// TypeLimitExceedsCapacity indicates limit + retention reached the capacity ceiling
	TypeLimitExceedsCapacity Type = "LIMIT_EXCEEDS_CAPACITY"

	// TypeInvalidIndustry indicates an industry label outside the rated set
	TypeInvalidIndustry Type = "INVALID_INDUSTRY"

	// TypeTableInconsistent indicates the rated industry set and the factor map disagree
	TypeTableInconsistent Type = "TABLE_INCONSISTENT"

	// TypeInvalidTable indicates a calibration table that breaks its invariants
	TypeInvalidTable Type = "INVALID_TABLE"

	// TypeTableLoad indicates a calibration source could not be read or parsed
	TypeTableLoad Type = "TABLE_LOAD"

	// TypeConfig indicates a configuration error
	TypeConfig Type = "CONFIG_ERROR"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"
)

// IsInput reports whether t is a user-input validation type
func (t Type) IsInput() bool {
	switch t {
	case TypeMissingField, TypeInvalidAssetSize, TypeInvalidLimit,
		TypeInvalidRetention, TypeLimitExceedsCapacity, TypeInvalidIndustry:
		return true
	}
	return false
}

// Error represents a domain error with context
type Error struct {
	Type    Type                   `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface.
// Input errors render as their bare message; callers match on that text.
func (e *Error) Error() string {
	if e.Type.IsInput() {
		return e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *Error) Is(t Type) bool {
	return e.Type == t
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(errType Type, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// As returns the first *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsType checks if an error, or anything it wraps, is of a specific type
func IsType(err error, t Type) bool {
	e, ok := As(err)
	return ok && e.Type == t
}

// TypeOf returns the type of err, or TypeInternal for foreign errors
func TypeOf(err error) Type {
	if e, ok := As(err); ok {
		return e.Type
	}
	return TypeInternal
}

// InvalidTable creates a calibration table error
func InvalidTable(format string, args ...interface{}) *Error {
	return Newf(TypeInvalidTable, format, args...)
}

// TableLoad creates a calibration loading error
func TableLoad(source string, cause error) *Error {
	return Wrapf(TypeTableLoad, cause, "failed to load tables from %s", source).
		WithContext("source", source)
}

// Config creates a configuration error
func Config(message string) *Error {
	return New(TypeConfig, message)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}
