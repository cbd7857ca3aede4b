package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns formatted string", func(t *testing.T) {
		err := New(ErrCodeNotFound, "Account not found")
		assert.Equal(t, "NOT_FOUND: Account not found", err.Error())
	})

	t.Run("Error with cause includes cause", func(t *testing.T) {
		cause := errors.New("database connection failed")
		err := Wrap(ErrCodeDatabase, "Database error", cause)
		assert.Contains(t, err.Error(), "DATABASE_ERROR")
		assert.Contains(t, err.Error(), "Database error")
		assert.Contains(t, err.Error(), "database connection failed")
	})

	t.Run("WithCause adds cause to error", func(t *testing.T) {
		cause := errors.New("original error")
		err := New(ErrCodeInternal, "Something went wrong").WithCause(cause)
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("WithDetails adds details to error", func(t *testing.T) {
		details := map[string]string{"field": "timezone", "reason": "unknown zone"}
		err := New(ErrCodeValidation, "Validation failed").WithDetails(details)
		assert.Equal(t, details, err.Details)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name         string
		constructor  func() *AppError
		expectedCode ErrorCode
	}{
		{"NotFound", func() *AppError { return NotFound("Account") }, ErrCodeNotFound},
		{"AlreadyExists", func() *AppError { return AlreadyExists("Account") }, ErrCodeAlreadyExists},
		{"ValidationError", func() *AppError { return ValidationError("test") }, ErrCodeValidation},
		{"InvalidInput", func() *AppError { return InvalidInput("proxy", "invalid") }, ErrCodeInvalidInput},
		{"MissingRequired", func() *AppError { return MissingRequired("auth token") }, ErrCodeMissingRequired},
		{"SessionActive", func() *AppError { return SessionActive(7) }, ErrCodeSessionActive},
		{"AccountRetired", func() *AppError { return AccountRetired(7) }, ErrCodeAccountRetired},
		{"Internal", func() *AppError { return Internal("test") }, ErrCodeInternal},
		{"Database", func() *AppError { return Database("test", nil) }, ErrCodeDatabase},
		{"External", func() *AppError { return External("test", nil) }, ErrCodeExternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedCode, tt.constructor().Code)
		})
	}
}

func TestAsAppError(t *testing.T) {
	t.Run("extracts AppError from chain", func(t *testing.T) {
		wrapped := fmt.Errorf("outer: %w", NotFound("Account"))
		appErr, ok := AsAppError(wrapped)
		assert.True(t, ok)
		assert.Equal(t, ErrCodeNotFound, appErr.Code)
	})

	t.Run("plain errors are not AppErrors", func(t *testing.T) {
		_, ok := AsAppError(errors.New("plain"))
		assert.False(t, ok)
	})
}

func TestIs(t *testing.T) {
	assert.True(t, Is(SessionActive(1), ErrCodeSessionActive))
	assert.False(t, Is(SessionActive(1), ErrCodeNotFound))
	assert.False(t, Is(errors.New("plain"), ErrCodeNotFound))
}
