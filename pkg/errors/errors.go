// Package errors provides standardized error types for the dataset service.
package errors

import (
	"errors"
	"fmt"
)

// Error codes used across the dataset service.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyExists    = "ALREADY_EXISTS"
	CodeSchemaError      = "SCHEMA_ERROR"
	CodeSourceUnreadable = "SOURCE_UNREADABLE"
	CodeExportFailed     = "EXPORT_FAILED"
	CodeStorageFailed    = "STORAGE_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeUnavailable      = "UNAVAILABLE"
	CodeDeadlineExceeded = "DEADLINE_EXCEEDED"
	CodeCanceled         = "CANCELED"
	CodeUnauthorized     = "UNAUTHORIZED"
)

// DatasetError represents a dataset service error with code, message, and optional details.
type DatasetError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface.
func (e *DatasetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatasetError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *DatasetError) Is(target error) bool {
	t, ok := target.(*DatasetError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails adds details to the error.
func (e *DatasetError) WithDetails(details map[string]interface{}) *DatasetError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error.
func (e *DatasetError) WithDetail(key string, value interface{}) *DatasetError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Common errors
var (
	ErrDatasetNotFound  = &DatasetError{Code: CodeNotFound, Message: "dataset not found"}
	ErrColumnNotFound   = &DatasetError{Code: CodeNotFound, Message: "column not found"}
	ErrMissingColumns   = &DatasetError{Code: CodeSchemaError, Message: "required columns missing"}
	ErrDuplicateColumn  = &DatasetError{Code: CodeSchemaError, Message: "duplicate column name"}
	ErrSourceUnreadable = &DatasetError{Code: CodeSourceUnreadable, Message: "source unreadable"}
	ErrEmptySource      = &DatasetError{Code: CodeSourceUnreadable, Message: "source contains no header row"}
	ErrInvalidFilter    = &DatasetError{Code: CodeInvalidRequest, Message: "invalid filter specification"}
	ErrInvalidFormat    = &DatasetError{Code: CodeInvalidRequest, Message: "unsupported export format"}
	ErrStorageDisabled  = &DatasetError{Code: CodeUnavailable, Message: "persistent storage not configured"}
)

// New creates a new DatasetError with the given code and message.
func New(code, message string) *DatasetError {
	return &DatasetError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with a DatasetError.
func Wrap(err error, code, message string) *DatasetError {
	if err == nil {
		return nil
	}
	return &DatasetError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *DatasetError {
	if err == nil {
		return nil
	}
	return &DatasetError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	var dsErr *DatasetError
	if errors.As(err, &dsErr) {
		return dsErr.Code == CodeNotFound
	}
	return false
}

// IsSchemaError checks if an error is a schema error.
func IsSchemaError(err error) bool {
	var dsErr *DatasetError
	if errors.As(err, &dsErr) {
		return dsErr.Code == CodeSchemaError
	}
	return false
}

// IsSourceUnreadable checks if an error is a source unreadable error.
func IsSourceUnreadable(err error) bool {
	var dsErr *DatasetError
	if errors.As(err, &dsErr) {
		return dsErr.Code == CodeSourceUnreadable
	}
	return false
}

// IsInvalidRequest checks if an error is an invalid request error.
func IsInvalidRequest(err error) bool {
	var dsErr *DatasetError
	if errors.As(err, &dsErr) {
		return dsErr.Code == CodeInvalidRequest
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) string {
	var dsErr *DatasetError
	if errors.As(err, &dsErr) {
		return dsErr.Code
	}
	return CodeInternal
}

// GetMessage extracts the error message from an error.
func GetMessage(err error) string {
	var dsErr *DatasetError
	if errors.As(err, &dsErr) {
		return dsErr.Message
	}
	return err.Error()
}
