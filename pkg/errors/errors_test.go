package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatasetError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DatasetError
		expected string
	}{
		{
			name: "error without cause",
			err: &DatasetError{
				Code:    CodeSchemaError,
				Message: "required columns missing",
			},
			expected: "SCHEMA_ERROR: required columns missing",
		},
		{
			name: "error with cause",
			err: &DatasetError{
				Code:    CodeSourceUnreadable,
				Message: "source unreadable",
				Cause:   fmt.Errorf("connection refused"),
			},
			expected: "SOURCE_UNREADABLE: source unreadable (caused by: connection refused)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDatasetError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := &DatasetError{
		Code:    CodeInvalidRequest,
		Message: "invalid input",
		Cause:   cause,
	}

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, &DatasetError{Code: CodeInvalidRequest}))
}

func TestDatasetError_Is(t *testing.T) {
	err1 := &DatasetError{Code: CodeNotFound, Message: "not found"}
	err2 := &DatasetError{Code: CodeNotFound, Message: "different message"}
	err3 := &DatasetError{Code: CodeSchemaError, Message: "schema"}
	stdErr := fmt.Errorf("standard error")

	assert.True(t, err1.Is(err2), "errors with same code should match")
	assert.False(t, err1.Is(err3), "errors with different codes should not match")
	assert.False(t, err1.Is(stdErr), "dataset error should not match standard error")
}

func TestDatasetError_WithDetail(t *testing.T) {
	err := &DatasetError{
		Code:    CodeSchemaError,
		Message: "required columns missing",
	}

	err = err.WithDetail("missing_columns", []string{"age", "state"}).WithDetail("source", "data.csv")

	assert.Equal(t, []string{"age", "state"}, err.Details["missing_columns"])
	assert.Equal(t, "data.csv", err.Details["source"])
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("open /tmp/nope.csv: no such file or directory")
	err := Wrap(cause, CodeSourceUnreadable, "failed to open source")

	assert.Equal(t, CodeSourceUnreadable, err.Code)
	assert.Equal(t, cause, err.Cause)
	assert.Nil(t, Wrap(nil, CodeInternal, "no-op"))
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsSchemaError(ErrMissingColumns))
	assert.True(t, IsSourceUnreadable(ErrSourceUnreadable))
	assert.True(t, IsNotFound(ErrDatasetNotFound))
	assert.True(t, IsInvalidRequest(ErrInvalidFilter))
	assert.False(t, IsSchemaError(fmt.Errorf("plain")))

	wrapped := fmt.Errorf("context: %w", ErrMissingColumns)
	assert.True(t, IsSchemaError(wrapped), "predicate should see through wrapping")
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeNotFound, GetCode(ErrDatasetNotFound))
	assert.Equal(t, CodeInternal, GetCode(fmt.Errorf("plain")))
	assert.Equal(t, "dataset not found", GetMessage(ErrDatasetNotFound))
	assert.Equal(t, "plain", GetMessage(fmt.Errorf("plain")))
}
