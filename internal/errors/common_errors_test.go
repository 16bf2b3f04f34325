package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorType_Constants(t *testing.T) {
	tests := []struct {
		name     string
		errType  ErrorType
		expected string
	}{
		{name: "format error type", errType: ErrTypeFormat, expected: "FORMAT"},
		{name: "date format error type", errType: ErrTypeDateFormat, expected: "DATE_FORMAT"},
		{name: "unsupported feature error type", errType: ErrTypeUnsupportedFeature, expected: "UNSUPPORTED_FEATURE"},
		{name: "parsing error type", errType: ErrTypeParsing, expected: "PARSING"},
		{name: "storage error type", errType: ErrTypeStorage, expected: "STORAGE"},
		{name: "validation error type", errType: ErrTypeValidation, expected: "VALIDATION"},
		{name: "not found error type", errType: ErrTypeNotFound, expected: "NOT_FOUND"},
		{name: "ambiguous error type", errType: ErrTypeAmbiguous, expected: "AMBIGUOUS"},
		{name: "config error type", errType: ErrTypeConfig, expected: "CONFIG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.errType))
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name:        "error without cause",
			appError:    NewFormatError("unknown version 9.9"),
			wantMessage: "[FORMAT] unknown version 9.9",
		},
		{
			name:        "error with cause",
			appError:    NewStorageError("insert experiment", fmt.Errorf("disk full")),
			wantMessage: "[STORAGE] insert experiment: disk full",
		},
		{
			name:        "error with sorted context",
			appError:    NewParsingError("bad cell", nil).WithContext("line", 12).WithContext("column", "Stirring"),
			wantMessage: "[PARSING] bad cell (column=Stirring, line=12)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_IsSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{name: "format", err: NewFormatError("x"), sentinel: ErrFormat},
		{name: "date", err: NewDateFormatError("yesterday"), sentinel: ErrDateFormat},
		{name: "unsupported", err: NewUnsupportedFeatureError("x"), sentinel: ErrUnsupportedFeature},
		{name: "parse", err: NewParsingError("x", nil), sentinel: ErrParse},
		{name: "storage", err: NewStorageError("x", nil), sentinel: ErrStorage},
		{name: "validation", err: NewAppValidationError("x"), sentinel: ErrValidation},
		{name: "not found", err: NewNotFoundError("experiment"), sentinel: ErrNotFound},
		{name: "ambiguous", err: NewAmbiguousError("experiment", 2), sentinel: ErrAmbiguous},
		{name: "config", err: NewConfigError("x", nil), sentinel: ErrConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			wrapped := fmt.Errorf("load run.csv: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
		})
	}

	assert.NotErrorIs(t, NewFormatError("x"), ErrParse)
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	appErr := NewParsingError("wrapped", cause)

	assert.ErrorIs(t, appErr, cause)

	var target *AppError
	require.True(t, errors.As(fmt.Errorf("outer: %w", appErr), &target))
	assert.Equal(t, ErrTypeParsing, target.Type)
}

func TestTypeOf(t *testing.T) {
	errType, ok := TypeOf(fmt.Errorf("ctx: %w", NewNotFoundError("program")))
	require.True(t, ok)
	assert.Equal(t, ErrTypeNotFound, errType)

	_, ok = TypeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestWithLine(t *testing.T) {
	err := NewParsingError("empty cell", nil).WithLine(7)
	assert.Equal(t, 7, err.Context["line"])
}
