package backup

import (
	"errors"
	"fmt"
)

// EngineError represents errors that occur during engine operations
type EngineError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause error
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// ErrorType represents different types of engine errors
type ErrorType string

const (
	ErrorTypeNotFound    ErrorType = "NOT_FOUND_ERROR"
	ErrorTypeValidation  ErrorType = "VALIDATION_ERROR"
	ErrorTypeIO          ErrorType = "IO_ERROR"
	ErrorTypeIntegrity   ErrorType = "INTEGRITY_ERROR"
	ErrorTypeCompression ErrorType = "COMPRESSION_ERROR"
	ErrorTypeSchedule    ErrorType = "SCHEDULE_ERROR"
)

// NewEngineError creates a new EngineError
func NewEngineError(errorType ErrorType, message string, cause error) *EngineError {
	return &EngineError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// WithContext adds context information to the error
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Common error constructors

func NewNotFoundError(message string, cause error) *EngineError {
	return NewEngineError(ErrorTypeNotFound, message, cause)
}

func NewValidationError(message string, cause error) *EngineError {
	return NewEngineError(ErrorTypeValidation, message, cause)
}

func NewIOError(message string, cause error) *EngineError {
	return NewEngineError(ErrorTypeIO, message, cause)
}

func NewIntegrityError(message string, cause error) *EngineError {
	return NewEngineError(ErrorTypeIntegrity, message, cause)
}

func NewCompressionError(message string, cause error) *EngineError {
	return NewEngineError(ErrorTypeCompression, message, cause)
}

func NewScheduleError(message string, cause error) *EngineError {
	return NewEngineError(ErrorTypeSchedule, message, cause)
}

// Error kind predicates

func isErrorType(err error, t ErrorType) bool {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Type == t
	}
	return false
}

// IsNotFound reports whether err is a NOT_FOUND_ERROR
func IsNotFound(err error) bool {
	return isErrorType(err, ErrorTypeNotFound)
}

// IsValidation reports whether err is a VALIDATION_ERROR. Field-level
// validation failures (ValidationError, ValidationErrors) count as well.
func IsValidation(err error) bool {
	if isErrorType(err, ErrorTypeValidation) {
		return true
	}
	var fieldErr *ValidationError
	var fieldErrs ValidationErrors
	return errors.As(err, &fieldErrs) || errors.As(err, &fieldErr)
}

// IsIntegrity reports whether err is an INTEGRITY_ERROR
func IsIntegrity(err error) bool {
	return isErrorType(err, ErrorTypeIntegrity)
}

// IsIO reports whether err is an IO_ERROR
func IsIO(err error) bool {
	return isErrorType(err, ErrorTypeIO)
}

// ValidationError represents a validation failure for a single field
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors represents a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d validation errors: %s (and %d more)", len(e), e[0].Error(), len(e)-1)
}

// Add adds a validation error to the collection
func (e *ValidationErrors) Add(field, message string, value interface{}) {
	*e = append(*e, ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	})
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}
