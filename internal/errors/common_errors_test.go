package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name: "error without cause",
			appError: &AppError{
				Type:    ErrTypeNotFound,
				Message: "output directory not found",
			},
			wantMessage: "[NOT_FOUND] output directory not found",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeNetwork,
				Message: "yahoo chart request failed",
				Cause:   fmt.Errorf("connection refused"),
			},
			wantMessage: "[NETWORK] yahoo chart request failed: connection refused",
		},
		{
			name: "error with empty message",
			appError: &AppError{
				Type: ErrTypeValidation,
			},
			wantMessage: "[VALIDATION] ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	appErr := NewStorageError("write window file", cause)

	assert.Same(t, cause, appErr.Unwrap())
	assert.True(t, errors.Is(appErr, cause))
	assert.Nil(t, NewNotFoundError("ticker file").Unwrap())
}

func TestAppError_WithContext(t *testing.T) {
	appErr := &AppError{Type: ErrTypeParsing, Message: "bad row"}

	result := appErr.WithContext("row", 7)

	assert.Same(t, appErr, result)
	require.Contains(t, result.Context, "row")
	assert.Equal(t, 7, result.Context["row"])
}

func TestHelperConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
	}{
		{"network", NewNetworkError("m", nil), ErrTypeNetwork},
		{"parsing", NewParsingError("m", nil), ErrTypeParsing},
		{"storage", NewStorageError("m", nil), ErrTypeStorage},
		{"validation", NewAppValidationError("m", nil), ErrTypeValidation},
		{"not found", NewNotFoundError("dir"), ErrTypeNotFound},
		{"permission", NewPermissionError("m", nil), ErrTypePermission},
		{"config", NewConfigError("m", nil), ErrTypeConfig},
		{"browser", NewBrowserError("m", nil), ErrTypeBrowser},
		{"empty", NewEmptyResultError("PETR4.SA"), ErrTypeEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.NotNil(t, tt.err.Context)
		})
	}

	assert.Equal(t, "dir not found", NewNotFoundError("dir").Message)
	assert.Equal(t, "no data for PETR4.SA", NewEmptyResultError("PETR4.SA").Message)
}

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("window 2024-01: %w", NewNetworkError("timeout", nil))

	assert.Equal(t, ErrTypeNetwork, TypeOf(wrapped))
	assert.Equal(t, ErrorType(""), TypeOf(errors.New("plain")))
	assert.Equal(t, ErrorType(""), TypeOf(nil))
	assert.True(t, IsType(wrapped, ErrTypeNetwork))
	assert.False(t, IsType(nil, ErrTypeNetwork))
}

func TestIsStructural(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found", NewNotFoundError("directory"), true},
		{"config", NewConfigError("bad", nil), true},
		{"storage", NewStorageError("write", nil), true},
		{"validation", NewAppValidationError("bad", nil), true},
		{"plain error", errors.New("unexpected"), true},
		{"network", NewNetworkError("timeout", nil), false},
		{"parsing", NewParsingError("bad json", nil), false},
		{"browser", NewBrowserError("click", nil), false},
		{"empty", NewEmptyResultError("x"), false},
		{"wrapped network", fmt.Errorf("fetch: %w", NewNetworkError("x", nil)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStructural(tt.err))
		})
	}
}
