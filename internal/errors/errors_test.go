package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", Validation("title", "must not be empty"), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"wrapped validation", fmt.Errorf("create todo: %w", Validation("title", "x")), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"not found", ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"wrapped not found", fmt.Errorf("todo: %w", ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"auth required", ErrAuthRequired, http.StatusUnauthorized, "AUTH_REQUIRED"},
		{"credentials", ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"duplicate", fmt.Errorf("%w: email already registered", ErrDuplicate), http.StatusConflict, "DUPLICATE_RESOURCE"},
		{"unavailable", fmt.Errorf("store upload ticket: %w", ErrUnavailable), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"storage", errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.wantStatus, httpErr.StatusCode)
			assert.Equal(t, tt.wantCode, httpErr.Code)
		})
	}
}

func TestMapErrorToHTTP_HidesStorageDetails(t *testing.T) {
	httpErr := MapErrorToHTTP(errors.New("dial tcp 10.0.0.1:3306: refused"))
	assert.Equal(t, "internal server error", httpErr.ToErrorResponse().Error)
}

func TestValidationError_Message(t *testing.T) {
	assert.Equal(t, "title: must not be empty", Validation("title", "must not be empty").Error())
	assert.Equal(t, "bad input", Validation("", "bad input").Error())
	assert.True(t, IsValidation(fmt.Errorf("wrap: %w", Validation("a", "b"))))
	assert.False(t, IsValidation(ErrNotFound))
}
