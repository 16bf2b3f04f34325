package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeFormat             ErrorType = "FORMAT"
	ErrTypeDateFormat         ErrorType = "DATE_FORMAT"
	ErrTypeUnsupportedFeature ErrorType = "UNSUPPORTED_FEATURE"
	ErrTypeParsing            ErrorType = "PARSING"
	ErrTypeStorage            ErrorType = "STORAGE"
	ErrTypeValidation         ErrorType = "VALIDATION"
	ErrTypeNotFound           ErrorType = "NOT_FOUND"
	ErrTypeAmbiguous          ErrorType = "AMBIGUOUS"
	ErrTypeConfig             ErrorType = "CONFIG"
)

// Sentinels matched by errors.Is against any AppError of the same type
var (
	ErrFormat             = stderrors.New("unsupported file format")
	ErrDateFormat         = stderrors.New("unrecognised date format")
	ErrUnsupportedFeature = stderrors.New("unsupported feature")
	ErrParse              = stderrors.New("malformed input")
	ErrStorage            = stderrors.New("storage failure")
	ErrValidation         = stderrors.New("validation failed")
	ErrNotFound           = stderrors.New("not found")
	ErrAmbiguous          = stderrors.New("ambiguous match")
	ErrConfig             = stderrors.New("invalid configuration")
)

var sentinels = map[ErrorType]error{
	ErrTypeFormat:             ErrFormat,
	ErrTypeDateFormat:         ErrDateFormat,
	ErrTypeUnsupportedFeature: ErrUnsupportedFeature,
	ErrTypeParsing:            ErrParse,
	ErrTypeStorage:            ErrStorage,
	ErrTypeValidation:         ErrValidation,
	ErrTypeNotFound:           ErrNotFound,
	ErrTypeAmbiguous:          ErrAmbiguous,
	ErrTypeConfig:             ErrConfig,
}

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface. Context keys are appended in sorted
// order, e.g. "[PARSING] bad cell (line=12, column=Temperature Actual [°C])".
func (e *AppError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Type, e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel of the error's type
func (e *AppError) Is(target error) bool {
	sentinel, ok := sentinels[e.Type]
	return ok && sentinel == target
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithLine records the 1-based input line the error refers to
func (e *AppError) WithLine(line int) *AppError {
	return e.WithContext("line", line)
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// TypeOf returns the ErrorType of the first AppError in the chain
func TypeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}

// Helper functions for common error types

// NewFormatError reports an unrecognised or unsupported file version
func NewFormatError(message string) *AppError {
	return NewAppError(ErrTypeFormat, message, nil)
}

// NewDateFormatError reports a timestamp matching none of the known layouts
func NewDateFormatError(value string) *AppError {
	return NewAppError(ErrTypeDateFormat, fmt.Sprintf("date %q matches no known layout", value), nil)
}

// NewUnsupportedFeatureError reports input the loader recognises but cannot handle
func NewUnsupportedFeatureError(message string) *AppError {
	return NewAppError(ErrTypeUnsupportedFeature, message, nil)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewAmbiguousError reports a lookup that matched more than one record
func NewAmbiguousError(resource string, count int) *AppError {
	return NewAppError(ErrTypeAmbiguous, fmt.Sprintf("%s matched %d records", resource, count), nil).
		WithContext("matches", count)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
